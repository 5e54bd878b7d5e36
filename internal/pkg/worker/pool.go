// Package worker provides goroutine pool management.
//
// Background work never runs on a naked goroutine. Request-scoped work goes
// through Pool.Submit; work that must outlive the request (file cleanup after
// a client is deleted, OFD refresh fan-out) goes through Pools.SubmitDetached.
//
// Import Path: supportportal.io/portal/internal/pkg/worker
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"supportportal.io/portal/internal/pkg/logger"
)

// ErrPoolClosed is returned when submitting to a closed pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// Pool names accepted by SubmitDetached.
const (
	PoolGeneral     = "general"
	PoolIntegration = "integration"
)

// Task is a context-aware task function.
type Task func(ctx context.Context)

// Pool wraps ants.Pool with context-aware submission.
type Pool struct {
	pool *ants.Pool
	name string
}

// Pools is the worker pool collection.
type Pools struct {
	// General runs short local tasks (disk cleanup, report assembly).
	General *Pool
	// Integration runs tasks that talk to external systems (OFD script, SMTP, SSH).
	Integration *Pool

	serviceCtx    context.Context
	serviceCancel context.CancelFunc
}

// PoolConfig contains worker pool configuration.
type PoolConfig struct {
	GeneralPoolSize     int
	IntegrationPoolSize int
}

// DefaultPoolConfig returns default configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		GeneralPoolSize:     50,
		IntegrationPoolSize: 8,
	}
}

// NewPools creates the worker pool collection.
func NewPools(ctx context.Context, cfg PoolConfig) (*Pools, error) {
	serviceCtx, serviceCancel := context.WithCancel(ctx)

	panicHandler := func(p interface{}) {
		logger.Error("Worker panic recovered",
			zap.Any("panic", p),
			zap.Stack("stack"),
		)
	}

	generalAnts, err := ants.NewPool(cfg.GeneralPoolSize,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(10*time.Second),
	)
	if err != nil {
		serviceCancel()
		return nil, err
	}

	integrationAnts, err := ants.NewPool(cfg.IntegrationPoolSize,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(time.Minute),
	)
	if err != nil {
		generalAnts.Release()
		serviceCancel()
		return nil, err
	}

	return &Pools{
		General:       &Pool{pool: generalAnts, name: PoolGeneral},
		Integration:   &Pool{pool: integrationAnts, name: PoolIntegration},
		serviceCtx:    serviceCtx,
		serviceCancel: serviceCancel,
	}, nil
}

// Submit submits a context-aware task.
// If ctx is already cancelled, returns ctx.Err() without submitting. A task
// whose context is cancelled while queued is skipped.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	return p.submit(ctx, task, nil)
}

// submit runs finish once the queued task has run or been skipped. finish is
// not called when submit returns an error.
func (p *Pool) submit(ctx context.Context, task Task, finish func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := p.pool.Submit(func() {
		if finish != nil {
			defer finish()
		}
		if ctx.Err() != nil {
			logger.Debug("Task skipped: context cancelled",
				zap.String("pool", p.name),
				zap.Error(ctx.Err()),
			)
			return
		}
		task(ctx)
	})
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPoolClosed
	}
	return err
}

// RunAll submits every task and waits until all of them have finished or
// ctx is done. Tasks still queued when ctx is done are skipped. It returns
// the first submission error, or ctx.Err() when ctx ended first.
func (p *Pool) RunAll(ctx context.Context, tasks []Task) error {
	result := make(chan error, 1)

	// Submission blocks while the pool is saturated, so it runs off the
	// caller's goroutine and without holding a pool slot.
	go func() { //nolint:naked-goroutine // ends once every task ran or was skipped
		var wg sync.WaitGroup
		var firstErr error
		for _, task := range tasks {
			wg.Add(1)
			if err := p.submit(ctx, task, wg.Done); err != nil {
				wg.Done()
				firstErr = err
				break
			}
		}
		wg.Wait()
		result <- firstErr
	}()

	select {
	case err := <-result:
		if err == nil {
			err = ctx.Err()
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitDetached submits a task bound to the service lifecycle context
// instead of a request context. It survives request cancellation but still
// stops on graceful shutdown.
func (p *Pools) SubmitDetached(poolName string, task Task) error {
	pool := p.General
	if poolName == PoolIntegration {
		pool = p.Integration
	}

	return pool.pool.Submit(func() {
		select {
		case <-p.serviceCtx.Done():
			logger.Debug("Detached task skipped: service shutting down",
				zap.String("pool", pool.name),
			)
			return
		default:
		}
		task(p.serviceCtx)
	})
}

// Shutdown cancels the service context, then waits up to 30s for running tasks.
func (p *Pools) Shutdown() {
	p.serviceCancel()

	const shutdownTimeout = 30 * time.Second
	for _, pool := range []*Pool{p.General, p.Integration} {
		if err := pool.pool.ReleaseTimeout(shutdownTimeout); err != nil {
			logger.Warn("Worker pool shutdown timeout",
				zap.String("pool", pool.name),
				zap.Error(err),
			)
		}
	}
}

// Metrics returns pool metrics for the health endpoint.
func (p *Pools) Metrics() map[string]interface{} {
	out := make(map[string]interface{}, 2)
	for _, pool := range []*Pool{p.General, p.Integration} {
		out[pool.name] = map[string]int{
			"running": pool.pool.Running(),
			"free":    pool.pool.Free(),
			"cap":     pool.pool.Cap(),
		}
	}
	return out
}
