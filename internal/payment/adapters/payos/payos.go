// Package payos turns verified payOS checkout webhooks into checkout events.
package payos

import (
	"context"
	"errors"
	"net/http"

	gateway "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/gateway/payos"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/payment/domain"
)

type Adapter struct {
	gateway gateway.Gateway
}

func New(gw gateway.Gateway) *Adapter {
	return &Adapter{gateway: gw}
}

func (a *Adapter) Provider() string {
	return domain.ProviderPayOS
}

// Parse verifies the data signature. Nothing in the body is trusted before that.
func (a *Adapter) Parse(_ context.Context, payload []byte, _ http.Header) (domain.Notification, error) {
	hook, err := a.gateway.VerifyWebhook(payload)
	switch {
	case errors.Is(err, gateway.ErrMissingSignature):
		return nil, domain.ErrMissingSignature
	case errors.Is(err, gateway.ErrInvalidSignature):
		return nil, domain.ErrInvalidSignature
	case err != nil:
		return nil, domain.ErrInvalidPayload
	}

	data := hook.Data
	if data.OrderCode <= 0 {
		return nil, domain.ErrInvalidEvent
	}
	return &domain.CheckoutEvent{
		Code:                 hook.Code,
		Desc:                 hook.Desc,
		Success:              hook.Success,
		OrderCode:            data.OrderCode,
		Amount:               data.Amount,
		Description:          data.Description,
		Reference:            data.Reference,
		TransactionDateTime:  data.TransactionDateTime,
		PaymentLinkID:        data.PaymentLinkID,
		AccountNumber:        data.AccountNumber,
		CounterAccountNumber: data.CounterAccountNumber,
		CounterAccountName:   data.CounterAccountName,
		CounterBankName:      data.CounterAccountBankName,
	}, nil
}
