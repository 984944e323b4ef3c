// Package notify runs best-effort side effects off the request path on a bounded worker pool.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	EventDonationCreated      = "donation.created"
	EventDonationSucceeded    = "donation.succeeded"
	EventUnattributedTransfer = "transfer.unattributed"
	EventManualIntervention   = "saga.manual_intervention"

	defaultPoolSize    = 64
	defaultTaskTimeout = 10 * time.Second
)

// Event is a notification fanned out to every sink.
type Event struct {
	Type   string
	Title  string
	Fields map[string]string
}

// Sink delivers one event to a destination such as a chat channel.
type Sink interface {
	Notify(ctx context.Context, event Event) error
}

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
	Sinks     []Sink `group:"notify.sinks"`
}

type Dispatcher struct {
	pool    *ants.Pool
	sinks   []Sink
	timeout time.Duration
	log     *zap.Logger
}

func NewDispatcher(p Params) (*Dispatcher, error) {
	d, err := New(p.Config.Notify.PoolSize, p.Log, p.Sinks...)
	if err != nil {
		return nil, err
	}
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return d.Close(ctx)
		},
	})
	return d, nil
}

// New builds a dispatcher without lifecycle hooks. Callers must Close it.
func New(size int, log *zap.Logger, sinks ...Sink) (*Dispatcher, error) {
	if size <= 0 {
		size = defaultPoolSize
	}
	logger := log.Named("notify.dispatcher")
	pool, err := ants.NewPool(size,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(v any) {
			logger.Error("notify task panicked", zap.Any("panic", v))
		}),
	)
	if err != nil {
		return nil, err
	}

	active := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}
	return &Dispatcher{pool: pool, sinks: active, timeout: defaultTaskTimeout, log: logger}, nil
}

// Dispatch hands the event to every sink asynchronously. It never fails the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) {
	if d == nil || len(d.sinks) == 0 {
		return
	}
	for _, sink := range d.sinks {
		d.Go(ctx, event.Type, func(ctx context.Context) error {
			return sink.Notify(ctx, event)
		})
	}
}

// Go runs fn on the pool with a detached, time-limited context. A saturated pool drops the
// task with a warning.
func (d *Dispatcher) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	if d == nil {
		return
	}
	base := context.WithoutCancel(ctx)
	err := d.pool.Submit(func() {
		tctx, cancel := context.WithTimeout(base, d.timeout)
		defer cancel()
		if err := fn(tctx); err != nil {
			d.log.Warn("async task failed", zap.String("task", name), zap.Error(err))
		}
	})
	if err != nil {
		if errors.Is(err, ants.ErrPoolOverload) {
			d.log.Warn("notify pool saturated, task dropped", zap.String("task", name))
			return
		}
		d.log.Warn("notify submit failed", zap.String("task", name), zap.Error(err))
	}
}

// Close waits up to the context deadline for running tasks.
func (d *Dispatcher) Close(ctx context.Context) error {
	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	return d.pool.ReleaseTimeout(timeout)
}
