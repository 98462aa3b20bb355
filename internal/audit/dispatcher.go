package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking the caller when the buffer is full.
	DropIfFull bool
}

// Dispatcher forwards events to a Sink from a single background goroutine.
// Under DropIfFull only non-critical events are discarded; lockouts, replays
// and privileged account changes wait for buffer space like in blocking mode.
// A nil *Dispatcher is a valid no-op.
type Dispatcher struct {
	cfg       Config
	sink      Sink
	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	droppedBy map[Category]*atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts a dispatcher, or returns nil when cfg is disabled.
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

	d := &Dispatcher{
		cfg:       cfg,
		sink:      sink,
		ch:        make(chan Event, cfg.BufferSize),
		done:      make(chan struct{}),
		droppedBy: make(map[Category]*atomic.Uint64, len(Categories)),
	}
	for _, c := range Categories {
		d.droppedBy[c] = new(atomic.Uint64)
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case event := <-d.ch:
			d.sink.Emit(context.Background(), event)
		case <-d.done:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.ch:
			d.sink.Emit(context.Background(), event)
		default:
			return
		}
	}
}

// Emit stamps the event category and queues event. After Close it is a no-op.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	category := event.EventType.Category()
	if event.Category == "" {
		event.Category = category
	}

	if d.cfg.DropIfFull && !event.EventType.Critical() {
		select {
		case d.ch <- event:
		case <-d.done:
		default:
			d.dropped.Add(1)
			d.droppedBy[category].Add(1)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
	case <-d.done:
	}
}

// Close stops accepting events, delivers what is buffered and waits for the
// background goroutine to exit. It is safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped returns the number of events discarded under backpressure.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// DroppedByCategory returns the discarded events per category. Categories
// with no drops are included with zero.
func (d *Dispatcher) DroppedByCategory() map[Category]uint64 {
	out := make(map[Category]uint64, len(Categories))
	for _, c := range Categories {
		out[c] = 0
		if d != nil {
			out[c] = d.droppedBy[c].Load()
		}
	}
	return out
}
