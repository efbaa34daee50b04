package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"RegimeLab/internal/domain/models"
	domrepo "RegimeLab/internal/domain/repository"
)

// Runner is the minimal detection surface the guard needs.
type Runner interface {
	RunOnce(ctx context.Context, force bool) (*models.Detection, error)
}

// Enqueuer pushes run requests onto the async queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) error
}

// RunGuard is a middleware between refit requests (API or schedule) and the
// detector. It throttles repeat requests, dedupes while work is pending, and
// buffers requests when the queue is unavailable.
type RunGuard struct {
	runner   Runner
	queue    Enqueuer
	metrics  domrepo.Metrics
	symbol   string
	minGap   time.Duration
	bufSize  int
	bufCh    chan models.RunRequest
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen time.Time // last accepted request time
}

type GuardOption func(*RunGuard)

// WithMinInterval sets the minimum gap between accepted refit requests.
func WithMinInterval(d time.Duration) GuardOption {
	return func(g *RunGuard) {
		if d > 0 {
			g.minGap = d
		}
	}
}

// WithMaxPending sets the request buffer size.
func WithMaxPending(n int) GuardOption {
	return func(g *RunGuard) {
		if n > 0 {
			g.bufSize = n
		}
	}
}

// WithQueue routes accepted requests through an async queue instead of
// running them on the guard's own worker.
func WithQueue(q Enqueuer) GuardOption {
	return func(g *RunGuard) { g.queue = q }
}

// NewRunGuard creates a new guard.
func NewRunGuard(runner Runner, metrics domrepo.Metrics, symbol string, opts ...GuardOption) *RunGuard {
	g := &RunGuard{
		runner:  runner,
		metrics: metrics,
		symbol:  symbol,
		minGap:  10 * time.Minute, // default refit throttle
		bufSize: 16,               // default pending buffer
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.bufCh = make(chan models.RunRequest, g.bufSize)
	return g
}

// Start launches the background worker that drains buffered requests.
func (g *RunGuard) Start(ctx context.Context) {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return
	}
	g.started = true
	g.mu.Unlock()

	go func() {
		backoff := time.Second
		for {
			select {
			case <-g.stopCh:
				return
			case <-ctx.Done():
				return
			case req := <-g.bufCh:
				if err := g.dispatch(ctx, req); err != nil {
					// exponential backoff with cap
					if backoff < time.Minute {
						backoff *= 2
					}
					g.metrics.RecordError("guard_dispatch")
					select {
					case <-ctx.Done():
						return
					case <-time.After(backoff):
					}
					// requeue if space; drop otherwise
					select {
					case g.bufCh <- req:
					default:
						g.metrics.RecordError("guard_buffer_drop")
					}
				} else {
					backoff = time.Second
				}
			}
		}
	}()
}

// Stop stops the background worker.
func (g *RunGuard) Stop() {
	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		return
	}
	g.started = false
	g.mu.Unlock()
	close(g.stopCh)
}

// Submit admits, throttles, or rejects a refit request. Accepted requests are
// buffered and dispatched by the background worker.
func (g *RunGuard) Submit(ctx context.Context, req models.RunRequest) (*models.RunAccepted, error) {
	now := time.Now()

	g.mu.Lock()
	if !g.lastSeen.IsZero() && now.Sub(g.lastSeen) < g.minGap && !req.Force {
		wait := g.minGap - now.Sub(g.lastSeen)
		g.mu.Unlock()
		g.metrics.RecordError("guard_throttle")
		return &models.RunAccepted{
			Status:   "throttled",
			Symbol:   g.symbol,
			Throttle: wait.Truncate(time.Second).String(),
		}, nil
	}
	g.lastSeen = now
	g.mu.Unlock()

	select {
	case g.bufCh <- req:
	default:
		g.metrics.RecordError("guard_buffer_full")
		return &models.RunAccepted{
			Status: "rejected",
			Symbol: g.symbol,
			Dedupe: true,
		}, fmt.Errorf("run buffer full")
	}

	return &models.RunAccepted{
		Status: "queued",
		Queued: true,
		Symbol: g.symbol,
	}, nil
}

// dispatch hands one request to the queue, or runs it inline without one.
func (g *RunGuard) dispatch(ctx context.Context, req models.RunRequest) error {
	if g.queue != nil {
		return g.queue.Enqueue(ctx, "detect.run", map[string]interface{}{"force": req.Force})
	}
	_, err := g.runner.RunOnce(ctx, req.Force)
	return err
}
