package alert

import (
	"sync"
	"time"

	"github.com/macrokit/macroguard/internal/logger"
)

// Sink delivers alert events to one external channel (log, store, feed).
// Deliver must not be assumed fast or reliable; the dispatcher isolates
// slow and failing sinks from each other.
type Sink interface {
	Name() string
	Deliver(event Event) error
}

const sinkQueueSize = 128

// Dispatcher fans alert events out to the configured sinks.
// Each sink gets its own goroutine and buffered queue so one blocked or
// failing sink never delays delivery to the others.
type Dispatcher struct {
	limiter *rateLimiter
	sinks   []*sinkWorker
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
}

type sinkWorker struct {
	sink Sink
	ch   chan Event
}

// NewDispatcher creates a dispatcher with the given rate-limit window
func NewDispatcher(rateLimitWindow time.Duration, sinks ...Sink) *Dispatcher {
	d := &Dispatcher{
		limiter: newRateLimiter(rateLimitWindow),
	}

	for _, s := range sinks {
		d.AddSink(s)
	}

	return d
}

// AddSink attaches another sink and starts its worker. No-op after Close.
func (d *Dispatcher) AddSink(s Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	w := &sinkWorker{
		sink: s,
		ch:   make(chan Event, sinkQueueSize),
	}
	d.sinks = append(d.sinks, w)
	d.wg.Add(1)
	go d.run(w)
}

// Publish delivers an event to every sink. Repeated identical alerts for the
// same (subject, kind) pair within the rate-limit window are suppressed,
// except EmergencyShutdown which is always delivered.
func (d *Dispatcher) Publish(event Event) {
	if event.Kind != KindEmergencyShutdown && !d.limiter.allow(event.Subject, event.Kind) {
		logger.Debug().
			Str("kind", string(event.Kind)).
			Str("subject", event.Subject).
			Msg("Alert suppressed by rate limiter")
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	for _, w := range d.sinks {
		select {
		case w.ch <- event:
		default:
			logger.Warn().
				Str("sink", w.sink.Name()).
				Str("kind", string(event.Kind)).
				Msg("Sink queue full, dropping alert")
		}
	}
}

// Close stops all sink workers after draining their queues
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, w := range d.sinks {
		close(w.ch)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) run(w *sinkWorker) {
	defer d.wg.Done()

	for event := range w.ch {
		if err := w.sink.Deliver(event); err != nil {
			logger.Warn().
				Err(err).
				Str("sink", w.sink.Name()).
				Str("kind", string(event.Kind)).
				Str("subject", event.Subject).
				Msg("Alert delivery failed")
		}
	}
}
