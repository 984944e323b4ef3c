package wallet

import (
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/wallet/repository"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/wallet/service"
	"go.uber.org/fx"
)

var Module = fx.Module("wallet.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
