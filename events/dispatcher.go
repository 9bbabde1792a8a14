package events

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// DispatcherConfig controls post-event buffering behavior.
type DispatcherConfig struct {
	BufferSize int
	// DropIfFull drops events instead of blocking when the buffer is full.
	DropIfFull bool
}

// Dispatcher asynchronously forwards post events to a sink. Notify errors
// are logged and counted, never propagated.
type Dispatcher struct {
	cfg       DispatcherConfig
	sink      Sink
	log       zerolog.Logger
	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts the forwarding goroutine.
func NewDispatcher(cfg DispatcherConfig, sink Sink, log zerolog.Logger) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:  cfg,
		sink: sink,
		log:  log,
		ch:   make(chan Event, cfg.BufferSize),
		done: make(chan struct{}),
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
			d.deliver(event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.deliver(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(event Event) {
	if err := d.sink.Notify(context.Background(), event); err != nil {
		d.log.Warn().
			Str("event", string(event.Type)).
			Str("user_id", event.UserID).
			Err(err).
			Msg("post event delivery failed")
	}
}

// Emit enqueues a post event. It never blocks past the buffer when
// DropIfFull is set; dropped events are counted.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Dropped reports how many events were discarded under backpressure.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Close stops intake and drains the buffer.
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

// Pipeline bundles the synchronous sink calls (pre events, MFA probe) with
// the async dispatcher for post events. A nil receiver or nil sink is a
// no-op pipeline.
type Pipeline struct {
	sink Sink
	disp *Dispatcher
}

// NewPipeline wires a sink and its post-event dispatcher.
func NewPipeline(cfg DispatcherConfig, sink Sink, log zerolog.Logger) *Pipeline {
	if sink == nil {
		sink = NoOpSink{}
	}
	return &Pipeline{
		sink: sink,
		disp: NewDispatcher(cfg, sink, log),
	}
}

// Pre delivers a pre event synchronously; an error aborts the operation.
func (p *Pipeline) Pre(ctx context.Context, event Event) error {
	if p == nil || p.sink == nil {
		return nil
	}
	return p.sink.Notify(ctx, event)
}

// Post enqueues a best-effort post event.
func (p *Pipeline) Post(ctx context.Context, event Event) {
	if p == nil {
		return
	}
	p.disp.Emit(ctx, event)
}

// Deliver sends an event synchronously and propagates the sink error. Used
// where losing the event would lose data (confirmation codes) or where a
// post event participates in a transaction.
func (p *Pipeline) Deliver(ctx context.Context, event Event) error {
	if p == nil || p.sink == nil {
		return nil
	}
	return p.sink.Notify(ctx, event)
}

// RequireMFA asks the collaborator whether MFA must be enforced.
func (p *Pipeline) RequireMFA(ctx context.Context, event Event) (bool, error) {
	if p == nil || p.sink == nil {
		return false, nil
	}
	return p.sink.MFARequired(ctx, event)
}

// Dropped reports dropped post events.
func (p *Pipeline) Dropped() uint64 {
	if p == nil {
		return 0
	}
	return p.disp.Dropped()
}

// Close drains and stops the dispatcher.
func (p *Pipeline) Close() {
	if p == nil {
		return
	}
	p.disp.Close()
}
