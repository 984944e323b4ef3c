package slack

import (
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/notify"
	"go.uber.org/fx"
)

var Module = fx.Module("slack",
	fx.Provide(New),
	fx.Provide(notify.AsSink(NewSink)),
)
