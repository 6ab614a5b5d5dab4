// Package app implements the high-frequency dispatcher: N sharded bounded
// queues, fed by arbitrage detectors and drained by a pinned worker pool,
// each batch run through a caller-supplied Handler before results move on
// to the risk stage. Shape grounded in the tradSys HFT core's
// TradeChannel/workerPool/stats pattern, generalized from a single channel
// to N independently-drained shards keyed by symbol hash.
package app

import (
	"context"
	"hash/fnv"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	arbdomain "github.com/fd1az/arb-core/business/arbitrage/domain"
	"github.com/fd1az/arb-core/business/dispatch/domain"
)

const (
	tracerName = "github.com/fd1az/arb-core/business/dispatch/app"
	meterName  = tracerName
)

// Handler processes one dispatched opportunity, normally chaining a risk
// check and, if approved, execution. Returning an error only logs; it never
// blocks the worker loop.
type Handler func(ctx context.Context, opp arbdomain.Opportunity) error

// Config bounds the dispatcher's shard/queue/batch sizing.
type Config struct {
	ShardCount int
	QueueDepth int
	BatchSize  int
}

// DefaultConfig mirrors the design's stated defaults: 32 shards, 2048-entry
// batches, a 16384-deep queue per shard.
func DefaultConfig() Config {
	return Config{ShardCount: 32, QueueDepth: 16384, BatchSize: 2048}
}

// Queue is the sharded task queue arbitrage detectors submit into and the
// worker pool drains from.
type Queue struct {
	cfg    Config
	shards []*shard

	handler atomic.Pointer[Handler]

	tracer        trace.Tracer
	submitted     metric.Int64Counter
	dropped       metric.Int64Counter
	processed     metric.Int64Counter
	handlerErrors metric.Int64Counter
}

// New builds a Queue with cfg, creating ShardCount independent shards each
// bounded to QueueDepth.
func New(cfg Config) *Queue {
	if cfg.ShardCount <= 0 {
		cfg.ShardCount = DefaultConfig().ShardCount
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = DefaultConfig().QueueDepth
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}

	shards := make([]*shard, cfg.ShardCount)
	for i := range shards {
		shards[i] = newShard(cfg.QueueDepth)
	}

	meter := otel.Meter(meterName)
	submitted, _ := meter.Int64Counter("dispatch.tasks_submitted_total")
	dropped, _ := meter.Int64Counter("dispatch.tasks_dropped_total")
	processed, _ := meter.Int64Counter("dispatch.tasks_processed_total")
	handlerErrors, _ := meter.Int64Counter("dispatch.handler_errors_total")

	return &Queue{
		cfg:           cfg,
		shards:        shards,
		tracer:        otel.Tracer(tracerName),
		submitted:     submitted,
		dropped:       dropped,
		processed:     processed,
		handlerErrors: handlerErrors,
	}
}

// SetHandler installs h as the batch processor; safe to call concurrently
// with worker loops already draining shards (the composition root wires
// this once, right after the risk/execution services are constructed).
func (q *Queue) SetHandler(h Handler) {
	q.handler.Store(&h)
}

func shardIndex(key string, shardCount int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32()) % shardCount
}

// Submit enqueues opp's task onto the shard its symbol hashes to. Satisfies
// business/arbitrage/app.Sink.
func (q *Queue) Submit(ctx context.Context, opp arbdomain.Opportunity) error {
	task := domain.ProcessingTask{Opportunity: opp, EnqueuedAt: time.Now()}
	idx := shardIndex(task.ShardKey(), len(q.shards))

	if q.submitted != nil {
		q.submitted.Add(ctx, 1, metric.WithAttributes(attribute.Int("shard", idx)))
	}

	if q.shards[idx].push(task) {
		if q.dropped != nil {
			q.dropped.Add(ctx, 1, metric.WithAttributes(attribute.Int("shard", idx)))
		}
	}
	return nil
}

// ShardCount returns the number of shards the queue was built with.
func (q *Queue) ShardCount() int { return len(q.shards) }

// Capacity returns the total number of tasks the queue can hold across all
// shards before Submit starts dropping.
func (q *Queue) Capacity() int { return len(q.shards) * q.cfg.QueueDepth }

// Stats reports total queued and dropped across every shard.
type Stats struct {
	Queued  int
	Dropped int64
}

// Stats aggregates per-shard occupancy and drop counts.
func (q *Queue) Stats() Stats {
	var s Stats
	for _, sh := range q.shards {
		s.Queued += sh.len()
		s.Dropped += sh.droppedCount()
	}
	return s
}
