package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/apikey"
	apikeydomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/apikey/domain"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/archive"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/audit"
	auditdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/audit/domain"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/authorization"
	campaigndomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/campaign/domain"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/config"
	donationdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/donation/domain"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/idempotency"
	obsmiddleware "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/observability/logger"
	obsmetrics "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/observability/metrics"
	obstracing "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/observability/tracing"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/payment"
	paymentdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/payment/domain"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/providers/pdf"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/ratelimit"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/signup"
	signupdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/signup/domain"
	walletdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/wallet/domain"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/pkg/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module serves the public API, the gateway webhooks and the operator API. Shared domain
// modules (campaign, wallet, donation, gateway, providers) are composed by the caller.
var Module = fx.Module("http.server",
	idempotency.Module,
	archive.Module,
	audit.Module,
	payment.Module,
	signup.Module,
	authorization.Module,
	apikey.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, httpMetrics *telemetry.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Log:             log,
		Metrics:         httpMetrics,
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type engineParams struct {
	fx.In

	Cfg         config.Config
	Log         *zap.Logger
	HTTPMetrics *telemetry.HTTPMetrics `optional:"true"`
}

func registerGin(p engineParams) *gin.Engine {
	if p.Cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(p.Log, p.HTTPMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	campaignSvc     campaigndomain.Service
	donationSvc     donationdomain.Service
	walletSvc       walletdomain.Service
	paymentSvc      paymentdomain.Service
	router          paymentdomain.Router
	signupSvc       signupdomain.Service
	authzSvc        authorization.Service
	auditSvc        auditdomain.Service
	operators       apikeydomain.Authenticator
	receipts        pdf.Provider
	donationLimiter *ratelimit.DonationLimiter
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	CampaignSvc     campaigndomain.Service
	DonationSvc     donationdomain.Service
	WalletSvc       walletdomain.Service
	PaymentSvc      paymentdomain.Service
	Router          paymentdomain.Router
	SignupSvc       signupdomain.Service
	AuthzSvc        authorization.Service
	AuditSvc        auditdomain.Service
	Operators       apikeydomain.Authenticator
	Receipts        pdf.Provider
	DonationLimiter *ratelimit.DonationLimiter `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics        `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http"),
		campaignSvc:     p.CampaignSvc,
		donationSvc:     p.DonationSvc,
		walletSvc:       p.WalletSvc,
		paymentSvc:      p.PaymentSvc,
		router:          p.Router,
		signupSvc:       p.SignupSvc,
		authzSvc:        p.AuthzSvc,
		auditSvc:        p.AuditSvc,
		operators:       p.Operators,
		receipts:        p.Receipts,
		donationLimiter: p.DonationLimiter,
		obsMetrics:      p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerWebhookRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.POST("/signup", s.Signup)

	// -------- Donations --------
	api.POST("/donations", s.DonationRateLimit(), s.CreateDonation)
	api.GET("/donations/:id", s.GetDonation)
	api.GET("/donations/:id/receipt.pdf", s.GetDonationReceipt)
	api.GET("/payments/orders/:orderCode/status", s.GetPaymentStatus)

	// -------- Wallets --------
	api.GET("/wallets/:ownerId/balance", s.GetWalletBalance)
	api.GET("/wallets/:ownerId/transactions", s.ListWalletTransactions)
	api.GET("/wallets/:ownerId/stats", s.GetWalletStats)
}

func (s *Server) registerWebhookRoutes() {
	hooks := s.engine.Group("/api/webhooks")

	hooks.POST("/sepay", s.HandleBankTransferWebhook)
	hooks.POST("/payos", s.HandleCheckoutWebhook)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin")
	admin.Use(s.OperatorKeyRequired())

	admin.POST("/wallets",
		s.authorizeOperator(authorization.ObjectWallet, authorization.ActionWalletCreate),
		s.CreateWallet)
	admin.GET("/wallets/system",
		s.authorizeOperator(authorization.ObjectSystemWallet, authorization.ActionSystemWalletView),
		s.GetSystemWallet)
	admin.POST("/wallets/:id/withdrawals",
		s.authorizeOperator(authorization.ObjectWallet, authorization.ActionWalletWithdraw),
		s.CreateWithdrawal)
	admin.POST("/wallets/:id/adjustments",
		s.authorizeOperator(authorization.ObjectWallet, authorization.ActionWalletAdjust),
		s.CreateAdjustment)

	admin.POST("/payment-transactions/:id/override",
		s.authorizeOperator(authorization.ObjectPaymentTransaction, authorization.ActionPaymentOverride),
		s.OverridePayment)
	admin.POST("/payment-transactions/:id/refund",
		s.authorizeOperator(authorization.ObjectPaymentTransaction, authorization.ActionPaymentRefund),
		s.RefundPayment)

	admin.GET("/webhook-events",
		s.authorizeOperator(authorization.ObjectWebhookEvent, authorization.ActionWebhookEventView),
		s.ListWebhookEvents)
	admin.GET("/audit-logs",
		s.authorizeOperator(authorization.ObjectAuditLog, authorization.ActionAuditLogView),
		s.ListAuditLogs)
}
