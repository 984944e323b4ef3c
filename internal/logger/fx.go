package logger

import (
	"context"

	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/config"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/pkg/log/ctxlogger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewFromConfig creates a zap logger from Config and replaces globals.
func NewFromConfig(appCfg config.Config) (*zap.Logger, error) {
	ctxlogger.SetServiceName(appCfg.AppName)
	return New(appCfg.Logger.Level, appCfg.Logger.Format, FileConfig{
		Path:       appCfg.Logger.FilePath,
		MaxSizeMB:  appCfg.Logger.MaxSizeMB,
		MaxBackups: appCfg.Logger.MaxBackups,
		MaxAgeDays: appCfg.Logger.MaxAgeDays,
	})
}

func registerHooks(lc fx.Lifecycle, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = ctx
			_ = log.Sync()
			return nil
		},
	})
}

// Module wires the global zap logger for the application.
var Module = fx.Module("logger",
	fx.Provide(
		NewFromConfig,
	),
	fx.Invoke(registerHooks),
)
