package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/sneaker-customizer-service/internal/model"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/obs"
)

// Queue is an unbounded FIFO of index ops fed to a buffered channel by a
// background broker. Enqueue never blocks the caller.
type Queue struct {
	mu           sync.Mutex
	backlog      []model.IndexOp
	notify       chan struct{}
	out          chan model.IndexOp
	shuttingDown atomic.Bool

	enqueued  atomic.Uint64
	processed atomic.Uint64
	failed    atomic.Uint64
}

// New creates a Queue with a buffered output channel.
func New(outBuffer int) *Queue {
	if outBuffer <= 0 {
		outBuffer = 64
	}
	return &Queue{
		notify: make(chan struct{}, 1),
		out:    make(chan model.IndexOp, outBuffer),
	}
}

// Start runs the broker loop.
func (q *Queue) Start(ctx context.Context, highWatermark int) {
	go q.broker(ctx, highWatermark)
}

func (q *Queue) broker(ctx context.Context, highWatermark int) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	warned := false
	for {
		q.flushOnce()
		if highWatermark > 0 {
			sz := q.BacklogSize()
			if sz > highWatermark && !warned {
				obs.Logger.Warn("index_queue_backlog_high", "backlog_size", sz, "high_watermark", highWatermark)
			}
			warned = sz > highWatermark
		}
		select {
		case <-ctx.Done():
			return
		case <-q.notify:
		case <-ticker.C:
		}
	}
}

// flushOnce moves backlog into the output buffer while it has room.
func (q *Queue) flushOnce() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.backlog) > 0 && len(q.out) < cap(q.out) {
		op := q.backlog[0]
		q.backlog = q.backlog[1:]
		q.out <- op
	}
}

// Enqueue appends op to the backlog. It reports false once intake is closed.
func (q *Queue) Enqueue(op model.IndexOp) bool {
	if q.shuttingDown.Load() {
		return false
	}
	q.enqueued.Add(1)
	q.mu.Lock()
	q.backlog = append(q.backlog, op)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

func (q *Queue) Out() <-chan model.IndexOp { return q.out }

// BacklogSize returns ops not yet handed to the output channel.
func (q *Queue) BacklogSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}

// QueueDepth returns backlog plus buffered output items.
func (q *Queue) QueueDepth() int {
	q.mu.Lock()
	bl := len(q.backlog)
	q.mu.Unlock()
	return bl + len(q.out)
}

// MarkProcessed counts a finished op; failed ops count as processed too.
func (q *Queue) MarkProcessed(failed bool) {
	if failed {
		q.failed.Add(1)
	}
	q.processed.Add(1)
}

// Metrics is a snapshot of queue counters.
type Metrics struct {
	Enqueued  uint64 `json:"enqueued"`
	Processed uint64 `json:"processed"`
	Failed    uint64 `json:"failed"`
	Backlog   int    `json:"backlog"`
	Depth     int    `json:"depth"`
}

func (q *Queue) Metrics() Metrics {
	return Metrics{
		Enqueued:  q.enqueued.Load(),
		Processed: q.processed.Load(),
		Failed:    q.failed.Load(),
		Backlog:   q.BacklogSize(),
		Depth:     q.QueueDepth(),
	}
}

// CloseIntake disallows future enqueues.
func (q *Queue) CloseIntake() { q.shuttingDown.Store(true) }

func (q *Queue) IsShuttingDown() bool { return q.shuttingDown.Load() }
