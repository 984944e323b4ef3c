package providers

import (
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/providers/awsconf"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/providers/cognito"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/providers/pdf"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/providers/profile"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/providers/slack"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	awsconf.Module,
	slack.Module,
	pdf.Module,
	fx.Provide(cognito.Provide),
	fx.Provide(profile.New),
)
