package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
	// DropIfFull makes Emit non-blocking; overflow is counted in Dropped.
	DropIfFull bool `yaml:"drop_if_full"`
}

// Dispatcher hands events to a sink from a single worker goroutine, so a slow
// sink never sits on the login or validation path.
//
// A nil *Dispatcher is valid and discards everything, which is what
// NewDispatcher returns when auditing is disabled.
type Dispatcher struct {
	cfg    Config
	sink   Sink
	logger *slog.Logger

	queue chan Event
	stop  chan struct{}
	wg    sync.WaitGroup

	dropped  atomic.Uint64
	panicked atomic.Uint64
	closed   atomic.Bool
	once     sync.Once
}

// NewDispatcher starts the worker. A nil sink discards events and a nil
// logger uses slog.Default.
func NewDispatcher(cfg Config, sink Sink, logger *slog.Logger) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		queue:  make(chan Event, cfg.BufferSize),
		stop:   make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case e := <-d.queue:
			d.deliver(e)
		case <-d.stop:
			for {
				select {
				case e := <-d.queue:
					d.deliver(e)
				default:
					return
				}
			}
		}
	}
}

// deliver isolates the worker from a misbehaving sink: a panic loses one event,
// not the audit trail.
func (d *Dispatcher) deliver(e Event) {
	defer func() {
		if r := recover(); r != nil {
			d.panicked.Add(1)
			d.logger.Error("audit sink panicked", "event_type", e.EventType, "panic", r)
		}
	}()
	d.sink.Emit(context.Background(), e)
}

// Emit queues e, stamping Timestamp when unset. With DropIfFull it never
// blocks; otherwise it waits for room until ctx ends or the dispatcher closes.
func (d *Dispatcher) Emit(ctx context.Context, e Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- e:
		case <-d.stop:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- e:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.stop:
	}
}

// Close stops accepting events, delivers what is queued and waits for the
// worker to exit. It is safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closed.Store(true)
		close(d.stop)
		d.wg.Wait()
		if n := d.dropped.Load(); n > 0 {
			d.logger.Warn("audit events dropped", "count", n)
		}
	})
}

// Dropped reports how many events were discarded because the queue was full
// or the caller gave up waiting.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// SinkPanics reports how many deliveries were lost to a panicking sink.
func (d *Dispatcher) SinkPanics() uint64 {
	if d == nil {
		return 0
	}
	return d.panicked.Load()
}
