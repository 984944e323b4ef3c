package campaign

import (
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/campaign/repository"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/campaign/service"
	"go.uber.org/fx"
)

var Module = fx.Module("campaign.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
