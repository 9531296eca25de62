// Package queue applies ownership index ops in the background.
//
// A single worker consumes the queue so ops reach the index in the order
// they were accepted. Failures are logged and counted, never returned to
// the request that caused them.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/fairyhunter13/sneaker-customizer-service/internal/config"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/model"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/obs"
)

// Applier performs one index op.
type Applier interface {
	Apply(ctx context.Context, op model.IndexOp) error
}

// Manager owns the queue and its worker.
type Manager struct {
	cfg    config.Config
	q      *Queue
	target Applier
	seq    Sequencer

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(cfg config.Config, q *Queue, target Applier) *Manager {
	return &Manager{cfg: cfg, q: q, target: target}
}

// Start launches the broker and the worker.
func (m *Manager) Start(parent context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.q.Start(ctx, m.cfg.QueueHighWatermark)
	go m.worker(ctx)
	obs.Logger.Info("index_worker_started", "buffer", m.cfg.IndexQueueBuffer)
}

// Stop cancels the worker and waits for it to exit. Ops still queued are
// dropped; call DrainUntil first to flush them.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel = nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *Manager) worker(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-m.q.Out():
			m.apply(ctx, op)
		}
	}
}

func (m *Manager) apply(ctx context.Context, op model.IndexOp) {
	err := m.target.Apply(ctx, op)
	m.q.MarkProcessed(err != nil)
	if err != nil {
		obs.Logger.Error("ownership_index_write_failed",
			"op", string(op.Kind), "id", op.ID, "seq", op.Sequence,
			"request_id", op.RequestID, "error", err.Error())
		return
	}
	obs.Logger.Debug("ownership_index_applied", "op", string(op.Kind), "id", op.ID, "seq", op.Sequence)
}

// Enqueue stamps op with a sequence number and queues it.
func (m *Manager) Enqueue(op model.IndexOp) bool {
	op.Sequence = m.seq.Next()
	return m.q.Enqueue(op)
}

func (m *Manager) IsShuttingDown() bool { return m.q.IsShuttingDown() }

// CloseIntake disallows future enqueues.
func (m *Manager) CloseIntake() { m.q.CloseIntake() }

func (m *Manager) Metrics() Metrics { return m.q.Metrics() }

// DrainUntil blocks until every accepted op has been applied or ctx is done.
func (m *Manager) DrainUntil(ctx context.Context) bool {
	for {
		mt := m.q.Metrics()
		if mt.Backlog == 0 && mt.Depth == 0 && mt.Enqueued == mt.Processed {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(20 * time.Millisecond):
		}
	}
}
