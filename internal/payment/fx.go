package payment

import (
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/config"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/gateway/payos"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/payment/adapters"
	payosadapter "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/payment/adapters/payos"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/payment/adapters/sepay"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/payment/repository"
	paymentservice "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/payment/service"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(cfg config.Config, gw payos.Gateway) *adapters.Registry {
		return adapters.NewRegistry(
			sepay.New(cfg.Sepay.APIKey),
			payosadapter.New(gw),
		)
	}),
	fx.Provide(paymentservice.NewService),
	fx.Provide(webhook.NewService),
)
