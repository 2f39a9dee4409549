package main

import (
	"github.com/nurburg-dev/redis-sample-project/internal/config"
	"github.com/nurburg-dev/redis-sample-project/internal/logging"
	"github.com/nurburg-dev/redis-sample-project/internal/server"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		fx.Provide(
			// Defaults, CONFIG_FILE, .env and the environment, in that order
			config.Load,
			func(cfg *config.Config) (*zap.Logger, error) {
				return logging.New(cfg.Logging.Level, cfg.Logging.Format)
			},
		),

		server.Module,

		// Configure logging
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	app.Run()
}
