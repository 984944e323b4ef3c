package donation

import (
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/donation/repository"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/donation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("donation.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
