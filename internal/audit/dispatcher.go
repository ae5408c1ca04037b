package audit

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit count and discard events instead of blocking
	// the request when the buffer is full.
	DropIfFull bool
	Logger     *zap.Logger
}

// queued pairs an event with the request context it was raised under,
// detached from cancellation so the sink still sees trace and client
// values after the request returns.
type queued struct {
	ctx   context.Context
	event Event
}

// Dispatcher forwards audit events to a sink on a single background
// goroutine. A nil *Dispatcher is valid and discards everything.
type Dispatcher struct {
	cfg      Config
	sink     Sink
	logger   *zap.Logger
	queue    chan queued
	stop     chan struct{}
	wg       sync.WaitGroup
	dropped  atomic.Uint64
	panicked atomic.Uint64
	closed   atomic.Bool
	once     sync.Once
}

func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{
		cfg:    cfg,
		sink:   sink,
		logger: logger.Named("audit"),
		queue:  make(chan queued, cfg.BufferSize),
		stop:   make(chan struct{}),
	}
	d.wg.Add(1)
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer d.wg.Done()
	for {
		select {
		case q := <-d.queue:
			d.deliver(q)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

// drain delivers whatever is still buffered at Close.
func (d *Dispatcher) drain() {
	for {
		select {
		case q := <-d.queue:
			d.deliver(q)
		default:
			return
		}
	}
}

// deliver isolates the dispatcher from a misbehaving sink.
func (d *Dispatcher) deliver(q queued) {
	defer func() {
		if r := recover(); r != nil {
			d.panicked.Add(1)
			d.logger.Error("audit sink panicked",
				zap.String("event_type", q.event.EventType),
				zap.Any("panic", r),
			)
		}
	}()
	d.sink.Emit(q.ctx, q.event)
}

// Emit queues event. In blocking mode it waits for buffer space until ctx
// is done or the dispatcher closes.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	q := queued{ctx: context.WithoutCancel(ctx), event: event}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- q:
		case <-d.stop:
		default:
			if d.dropped.Add(1) == 1 {
				d.logger.Warn("audit buffer full, dropping events", zap.Int("buffer", d.cfg.BufferSize))
			}
		}
		return
	}

	select {
	case d.queue <- q:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.stop:
	}
}

// Close stops accepting events and waits until the buffer is flushed.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.stop)
		d.wg.Wait()
	})
}

// Dropped counts events discarded on a full buffer or an expired request
// context.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Panics counts sink invocations that panicked.
func (d *Dispatcher) Panics() uint64 {
	if d == nil {
		return 0
	}
	return d.panicked.Load()
}
