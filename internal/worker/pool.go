package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iconidentify/tunegrab/internal/domain"
)

var (
	// ErrShutdownTimeout is returned when workers don't stop within timeout.
	ErrShutdownTimeout = errors.New("worker pool shutdown timed out")

	// ErrPoolStopped is returned by Submit after Stop has been called.
	ErrPoolStopped = errors.New("worker pool stopped")
)

// Handler processes one request.
type Handler interface {
	Handle(ctx context.Context, req *domain.Request) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req *domain.Request) error

// Handle calls f(ctx, req).
func (f HandlerFunc) Handle(ctx context.Context, req *domain.Request) error {
	return f(ctx, req)
}

// Config holds worker pool configuration.
type Config struct {
	Workers   int
	QueueSize int
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Workers   int   `json:"workers"`
	Active    int64 `json:"active"`
	Queued    int   `json:"queued"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// Pool runs requests on a fixed number of workers fed by a bounded queue.
type Pool struct {
	workers int
	handler Handler
	logger  *slog.Logger

	queue    chan *domain.Request
	stopping chan struct{}
	stopOnce sync.Once
	mu       sync.RWMutex
	closed   bool

	active    atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPool creates a new worker pool.
func NewPool(cfg Config, handler Handler, logger *slog.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		workers:  cfg.Workers,
		handler:  handler,
		logger:   logger,
		queue:    make(chan *domain.Request, cfg.QueueSize),
		stopping: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches all workers.
func (p *Pool) Start() {
	p.logger.Info("starting worker pool", "workers", p.workers, "queue_size", cap(p.queue))

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Submit enqueues a request, blocking while the queue is full.
func (p *Pool) Submit(ctx context.Context, req *domain.Request) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolStopped
	}

	select {
	case p.queue <- req:
		return nil
	case <-p.stopping:
		return ErrPoolStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop stops accepting requests and waits for queued and in-flight
// requests to finish. When timeout elapses first, in-flight requests are
// canceled and ErrShutdownTimeout is returned.
func (p *Pool) Stop(timeout time.Duration) error {
	p.logger.Info("stopping worker pool", "queued", len(p.queue))

	p.stopOnce.Do(func() {
		close(p.stopping)
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		p.cancel()
		p.logger.Info("worker pool stopped gracefully")
		return nil
	case <-timer.C:
		p.cancel()
		return ErrShutdownTimeout
	}
}

// Stats returns current pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.workers,
		Active:    p.active.Load(),
		Queued:    len(p.queue),
		Processed: p.processed.Load(),
		Failed:    p.failed.Load(),
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	logger := p.logger.With("worker_id", id)
	logger.Debug("worker started")

	for req := range p.queue {
		p.process(logger, req)
	}

	logger.Debug("worker stopping")
}

func (p *Pool) process(logger *slog.Logger, req *domain.Request) {
	p.active.Add(1)
	defer p.active.Add(-1)

	logger = logger.With("workspace", req.Workspace, "chat_id", req.ChatID)
	logger.Debug("processing request")

	err := p.run(req)
	p.processed.Add(1)
	if err != nil {
		p.failed.Add(1)
		logger.Debug("request ended without delivery", "error", err)
		return
	}
	logger.Debug("request completed")
}

func (p *Pool) run(req *domain.Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("request handler panicked", "workspace", req.Workspace, "panic", r)
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return p.handler.Handle(p.ctx, req)
}
