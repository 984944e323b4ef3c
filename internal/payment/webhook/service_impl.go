package webhook

import (
	"context"
	"errors"
	"net/http"
	"strings"

	obsmetrics "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/observability/metrics"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/payment/adapters"
	paymentdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Router     paymentdomain.Router
	Adapters   *adapters.Registry
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	router     paymentdomain.Router
	adapters   *adapters.Registry
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		log:        p.Log.Named("payment.webhook"),
		router:     p.Router,
		adapters:   p.Adapters,
		obsMetrics: p.ObsMetrics,
	}
}

// IngestWebhook verifies payload with the provider's adapter and hands the typed notification
// to the router.
func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (*paymentdomain.Result, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return nil, paymentdomain.ErrInvalidProvider
	}
	adapter, err := s.adapters.Adapter(provider)
	if err != nil {
		return nil, err
	}

	notification, err := adapter.Parse(ctx, payload, headers)
	if err != nil {
		s.reject(ctx, provider, err)
		return nil, err
	}

	switch n := notification.(type) {
	case *paymentdomain.BankTransferEvent:
		return s.router.HandleBankTransfer(ctx, n, payload)
	case *paymentdomain.CheckoutEvent:
		return s.router.HandleCheckoutWebhook(ctx, n, payload)
	default:
		return nil, paymentdomain.ErrInvalidEvent
	}
}

func (s *Service) reject(ctx context.Context, provider string, err error) {
	fields := []zap.Field{zap.String("provider", provider), zap.Error(err)}
	if errors.Is(err, paymentdomain.ErrUnauthorized) ||
		errors.Is(err, paymentdomain.ErrMissingSignature) ||
		errors.Is(err, paymentdomain.ErrInvalidSignature) {
		s.log.Warn("webhook rejected", fields...)
	} else {
		s.log.Info("webhook payload unreadable", fields...)
	}
	if s.obsMetrics != nil {
		s.obsMetrics.RecordWebhookEvent(ctx, provider, string(paymentdomain.OutcomeRejected))
	}
}
