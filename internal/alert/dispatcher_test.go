package alert

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type captureSink struct {
	name   string
	mu     sync.Mutex
	events []Event
	err    error
	block  chan struct{}
}

func (s *captureSink) Name() string { return s.name }

func (s *captureSink) Deliver(event Event) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return s.err
}

func (s *captureSink) captured() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func TestDispatcherDeliversToAllSinks(t *testing.T) {
	a := &captureSink{name: "a"}
	b := &captureSink{name: "b"}
	d := NewDispatcher(0, a, b)

	d.Publish(NewEvent(KindPatternWarning, "m1", SeverityWarning, "careful"))
	d.Close()

	for _, sink := range []*captureSink{a, b} {
		events := sink.captured()
		if len(events) != 1 {
			t.Fatalf("sink %s got %d events, want 1", sink.name, len(events))
		}
		if events[0].Kind != KindPatternWarning || events[0].Subject != "m1" {
			t.Errorf("sink %s got unexpected event: %+v", sink.name, events[0])
		}
	}
}

func TestDispatcherRateLimits(t *testing.T) {
	sink := &captureSink{name: "a"}
	d := NewDispatcher(time.Minute, sink)

	d.Publish(NewEvent(KindPatternWarning, "m1", SeverityWarning, "first"))
	d.Publish(NewEvent(KindPatternWarning, "m1", SeverityWarning, "suppressed"))
	d.Publish(NewEvent(KindPatternWarning, "m2", SeverityWarning, "other subject"))
	d.Close()

	events := sink.captured()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Message != "first" || events[1].Message != "other subject" {
		t.Errorf("unexpected deliveries: %+v", events)
	}
}

// Emergency shutdown alerts bypass rate limiting entirely.
func TestDispatcherEmergencyBypassesLimiter(t *testing.T) {
	sink := &captureSink{name: "a"}
	d := NewDispatcher(time.Minute, sink)

	d.Publish(NewEvent(KindEmergencyShutdown, SubjectSystem, SeverityCritical, "one"))
	d.Publish(NewEvent(KindEmergencyShutdown, SubjectSystem, SeverityCritical, "two"))
	d.Close()

	if got := len(sink.captured()); got != 2 {
		t.Errorf("got %d emergency events, want 2", got)
	}
}

// A failing sink must not stop delivery to the others.
func TestDispatcherIsolatesFailingSink(t *testing.T) {
	failing := &captureSink{name: "failing", err: errors.New("sink broken")}
	healthy := &captureSink{name: "healthy"}
	d := NewDispatcher(0, failing, healthy)

	for i := 0; i < 3; i++ {
		d.Publish(NewEvent(KindResourceWarning, SubjectSystem, SeverityWarning, "mem"))
	}
	d.Close()

	if got := len(healthy.captured()); got != 3 {
		t.Errorf("healthy sink got %d events, want 3", got)
	}
}

// A blocked sink drops once its queue fills; other sinks keep receiving.
func TestDispatcherBlockedSinkDoesNotBlockOthers(t *testing.T) {
	blocked := &captureSink{name: "blocked", block: make(chan struct{})}
	healthy := &captureSink{name: "healthy"}
	d := NewDispatcher(0, blocked, healthy)

	for i := 0; i < sinkQueueSize+10; i++ {
		d.Publish(NewEvent(KindPatternWarning, "m1", SeverityWarning, "spam"))
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(healthy.captured()) < sinkQueueSize+10 {
		if time.Now().After(deadline) {
			t.Fatalf("healthy sink received %d of %d events", len(healthy.captured()), sinkQueueSize+10)
		}
		time.Sleep(5 * time.Millisecond)
	}

	close(blocked.block)
	d.Close()
}

func TestDispatcherPublishAfterClose(t *testing.T) {
	sink := &captureSink{name: "a"}
	d := NewDispatcher(0, sink)
	d.Close()

	d.Publish(NewEvent(KindPatternWarning, "m1", SeverityWarning, "late"))
	d.Close() // second close is safe

	if got := len(sink.captured()); got != 0 {
		t.Errorf("got %d events after close, want 0", got)
	}
}

func TestAddSinkAfterConstruction(t *testing.T) {
	d := NewDispatcher(0)
	sink := &captureSink{name: "late"}
	d.AddSink(sink)

	d.Publish(NewEvent(KindPatternIntervention, "m1", SeverityWarning, "paused"))
	d.Close()

	if got := len(sink.captured()); got != 1 {
		t.Errorf("late-added sink got %d events, want 1", got)
	}
}

func TestNewEventStampsIDAndTime(t *testing.T) {
	e := NewEvent(KindPatternWarning, "m1", SeverityInfo, "msg")
	if e.ID == "" {
		t.Error("event id must be set")
	}
	if e.Timestamp.IsZero() {
		t.Error("event timestamp must be set")
	}

	other := NewEvent(KindPatternWarning, "m1", SeverityInfo, "msg")
	if other.ID == e.ID {
		t.Error("event ids must be unique")
	}
}
