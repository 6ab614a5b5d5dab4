// Package dispatch implements the high-frequency dispatcher bounded
// context: sharded queues and a pinned worker pool sitting between the
// arbitrage detectors and the risk/execution pipeline.
package dispatch

import (
	"context"
	"fmt"

	dispatchApp "github.com/fd1az/arb-core/business/dispatch/app"
	dispatchDI "github.com/fd1az/arb-core/business/dispatch/di"
	"github.com/fd1az/arb-core/internal/config"
	"github.com/fd1az/arb-core/internal/di"
	"github.com/fd1az/arb-core/internal/health"
	"github.com/fd1az/arb-core/internal/logger"
	"github.com/fd1az/arb-core/internal/monolith"
)

// Module implements the dispatch bounded context.
type Module struct{}

// RegisterServices registers the sharded Queue and its worker pool.
func (m *Module) RegisterServices(c di.Container) error {
	cfg := di.Resolve[*config.Config](c, "config")
	lg := di.Resolve[logger.LoggerInterface](c, "logger")

	queueCfg := dispatchApp.DefaultConfig()
	if cfg.Dispatch.ShardCount > 0 {
		queueCfg.ShardCount = cfg.Dispatch.ShardCount
	}
	if cfg.Dispatch.QueueDepth > 0 {
		queueCfg.QueueDepth = cfg.Dispatch.QueueDepth
	}
	if cfg.Dispatch.BatchSize > 0 {
		queueCfg.BatchSize = cfg.Dispatch.BatchSize
	}
	queue := dispatchApp.New(queueCfg)
	c.Register(dispatchDI.Queue, queue)

	poolCfg := dispatchApp.WorkerPoolConfig{
		WorkerCount:     cfg.Dispatch.WorkerCount,
		PinCores:        cfg.Dispatch.PinWorkerCores,
		WorkerCoreStart: cfg.Dispatch.WorkerCoreStart,
	}
	pool := dispatchApp.NewWorkerPool(queue, poolCfg, lg)
	c.Register(dispatchDI.WorkerPool, pool)

	return nil
}

// Startup launches the worker pool, registers a health check reflecting
// queue saturation, and runs until ctx is cancelled.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	services := mono.Services()
	pool := di.Resolve[*dispatchApp.WorkerPool](services, dispatchDI.WorkerPool)
	queue := di.Resolve[*dispatchApp.Queue](services, dispatchDI.Queue)
	pool.Start(ctx)

	if svc, ok := services.Get(health.ContainerToken); ok {
		if healthSrv, ok := svc.(*health.Server); ok {
			healthSrv.RegisterCheck("dispatch.queue", func(ctx context.Context) (bool, string) {
				stats := queue.Stats()
				capacity := queue.Capacity()
				if capacity > 0 && stats.Queued >= capacity {
					return false, fmt.Sprintf("queue saturated: %d/%d", stats.Queued, capacity)
				}
				return true, ""
			})
		}
	}

	mono.Logger().Info(ctx, "dispatch module started")
	return nil
}
