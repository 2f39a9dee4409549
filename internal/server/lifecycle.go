package server

import (
	"context"
	"fmt"

	"github.com/nurburg-dev/redis-sample-project/internal/config"
	"github.com/nurburg-dev/redis-sample-project/internal/store"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var openStore = store.Open

// NewStore opens the configured store and registers its lifecycle. The store
// is pinged in OnStart, so an unreachable store aborts startup before the
// HTTP listener is bound. OnStop closes it after the server has drained.
func NewStore(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	if cfg.Store.Defaulted {
		logger.Warn("REDIS_URL not set, using default", zap.String("url", config.DefaultStoreURL))
	}

	s, err := openStore(cfg.Store.URL)
	if err != nil {
		return nil, fmt.Errorf("store setup failed: %w", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			reply, err := s.Ping(ctx)
			if err != nil {
				logger.Error("Failed to connect to store",
					zap.String("url", cfg.RedactedStoreURL()),
					zap.Error(err),
				)
				// OnStop does not run for a hook whose OnStart failed
				if closeErr := s.Close(); closeErr != nil {
					logger.Warn("Failed to close store", zap.Error(closeErr))
				}
				return fmt.Errorf("store setup failed: %w", err)
			}
			logger.Info("Connected to store",
				zap.String("url", cfg.RedactedStoreURL()),
				zap.String("ping", reply),
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Closing store connection")
			return s.Close()
		},
	})

	return store.WithTimeout(s, cfg.Store.OperationTimeout.Duration), nil
}

// ServerLifecycle manages the server lifecycle with fx
type ServerLifecycle struct {
	server *Server
	logger *zap.Logger
}

func NewServerLifecycle(server *Server, logger *zap.Logger) *ServerLifecycle {
	return &ServerLifecycle{
		server: server,
		logger: logger,
	}
}

func (sl *ServerLifecycle) Start(ctx context.Context) error {
	if err := sl.server.Start(); err != nil {
		sl.logger.Error("Server startup failed", zap.Error(err))
		return err
	}
	return nil
}

func (sl *ServerLifecycle) Stop(ctx context.Context) error {
	return sl.server.Stop(ctx)
}

// Module wires the gateway into an fx application
var Module = fx.Options(
	fx.Provide(
		NewStore,
		New,
		NewServerLifecycle,
	),
	fx.Invoke(
		func(lifecycle fx.Lifecycle, serverLifecycle *ServerLifecycle) {
			lifecycle.Append(fx.Hook{
				OnStart: serverLifecycle.Start,
				OnStop:  serverLifecycle.Stop,
			})
		},
	),
)
