package notify

import "go.uber.org/fx"

var Module = fx.Module("notify",
	fx.Provide(NewDispatcher),
)

// AsSink registers a constructor's result in the notify sink group.
func AsSink(f any) any {
	return fx.Annotate(f, fx.As(new(Sink)), fx.ResultTags(`group:"notify.sinks"`))
}
