package app

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/arb-core/business/dispatch/domain"
	"github.com/fd1az/arb-core/internal/logger"
)

// WorkerPoolConfig controls how many workers drain the queue's shards and
// whether they pin to specific cores.
type WorkerPoolConfig struct {
	WorkerCount     int
	PinCores        bool
	WorkerCoreStart int
	PollInterval    time.Duration
}

// WorkerPool drains Queue's shards in round-robin batches, forwarding each
// task's opportunity to the queue's installed Handler. Shutdown is
// cooperative: a shared atomic flag is polled between batches, and each
// worker drains at most one final batch before exiting.
type WorkerPool struct {
	queue *Queue
	cfg   WorkerPoolConfig
	log   logger.LoggerInterface

	stopping atomic.Bool
	wg       sync.WaitGroup
}

// NewWorkerPool builds a WorkerPool over queue.
func NewWorkerPool(queue *Queue, cfg WorkerPoolConfig, log logger.LoggerInterface) *WorkerPool {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Millisecond
	}
	return &WorkerPool{queue: queue, cfg: cfg, log: log}
}

// Start launches cfg.WorkerCount worker goroutines, each assigned a subset
// of the queue's shards round-robin, running until ctx is cancelled or Stop
// is called.
func (p *WorkerPool) Start(ctx context.Context) {
	shardCount := p.queue.ShardCount()
	for w := 0; w < p.cfg.WorkerCount; w++ {
		var assigned []int
		for s := w; s < shardCount; s += p.cfg.WorkerCount {
			assigned = append(assigned, s)
		}
		if len(assigned) == 0 {
			continue
		}
		p.wg.Add(1)
		go p.runWorker(ctx, w, assigned)
	}
}

// Stop signals every worker to drain its final batch and exit, then waits
// for them.
func (p *WorkerPool) Stop() {
	p.stopping.Store(true)
	p.wg.Wait()
}

func (p *WorkerPool) runWorker(ctx context.Context, workerID int, shards []int) {
	defer p.wg.Done()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if p.cfg.PinCores {
		if err := pinToCore(p.cfg.WorkerCoreStart + workerID); err != nil {
			p.log.Warn(ctx, "dispatch worker: failed to pin core", "worker", workerID, "error", err)
		}
	}

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.drainFinal(ctx, shards)
			return
		case <-ticker.C:
			if p.stopping.Load() {
				p.drainFinal(ctx, shards)
				return
			}
			p.processShards(ctx, shards)
		}
	}
}

func (p *WorkerPool) drainFinal(ctx context.Context, shards []int) {
	p.processShards(ctx, shards)
}

func (p *WorkerPool) processShards(ctx context.Context, shards []int) {
	for _, idx := range shards {
		batch := p.queue.shards[idx].drainBatch(p.queue.cfg.BatchSize)
		if len(batch) == 0 {
			continue
		}
		p.processBatch(ctx, batch)
	}
}

// processBatch runs every task in batch through the installed handler. This
// is a plain scalar loop: no portable SIMD intrinsics exist in the module's
// dependency stack, so the "vectorized filter/compare" the design calls for
// is this unrolled-by-the-compiler loop over a fixed-size Go slice instead.
func (p *WorkerPool) processBatch(ctx context.Context, batch []domain.ProcessingTask) {
	handlerPtr := p.queue.handler.Load()
	for i := range batch {
		task := batch[i]
		taskCtx, span := p.queue.tracer.Start(ctx, "dispatch.process_task",
			trace.WithAttributes(attribute.String("symbol", task.Opportunity.Symbol)))
		p.handleTask(taskCtx, handlerPtr, task)
		span.End()
	}
}

func (p *WorkerPool) handleTask(ctx context.Context, handlerPtr *Handler, task domain.ProcessingTask) {
	if task.Opportunity.Expired(time.Now()) {
		return
	}
	if handlerPtr == nil {
		return
	}
	if err := (*handlerPtr)(ctx, task.Opportunity); err != nil {
		if p.queue.handlerErrors != nil {
			p.queue.handlerErrors.Add(ctx, 1)
		}
		p.log.Debug(ctx, "dispatch handler error", "error", err, "symbol", task.Opportunity.Symbol)
		return
	}
	if p.queue.processed != nil {
		p.queue.processed.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(task.Opportunity.Kind))))
	}
}
