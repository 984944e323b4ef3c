package apikey

import (
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/apikey/service"
	"go.uber.org/fx"
)

var Module = fx.Module("apikey.service",
	fx.Provide(service.New),
)
