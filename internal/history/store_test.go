package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/macrokit/macroguard/internal/alert"
	"github.com/macrokit/macroguard/internal/logger"
)

func TestMain(m *testing.M) {
	logger.InitQuiet()
	os.Exit(m.Run())
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "alerts.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveAndRecentAlerts(t *testing.T) {
	store := newTestStore(t)

	base := time.Now()
	events := []alert.Event{
		{ID: "1", Kind: alert.KindPatternWarning, Subject: "m1", Severity: alert.SeverityWarning, Message: "first", Timestamp: base},
		{ID: "2", Kind: alert.KindPatternIntervention, Subject: "m1", Severity: alert.SeverityCritical, Message: "second", Timestamp: base.Add(time.Second)},
		{ID: "3", Kind: alert.KindResourceWarning, Subject: "system", Severity: alert.SeverityWarning, Message: "third", Timestamp: base.Add(2 * time.Second)},
	}
	for _, e := range events {
		if err := store.SaveAlert(e); err != nil {
			t.Fatalf("SaveAlert(%s) failed: %v", e.ID, err)
		}
	}

	got, err := store.RecentAlerts(10)
	if err != nil {
		t.Fatalf("RecentAlerts failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d alerts, want 3", len(got))
	}

	// Chronological order
	for i, want := range []string{"first", "second", "third"} {
		if got[i].Message != want {
			t.Errorf("alert[%d].Message = %q, want %q", i, got[i].Message, want)
		}
	}

	// Round-trip fidelity
	if got[1].Kind != alert.KindPatternIntervention || got[1].Severity != alert.SeverityCritical {
		t.Errorf("round-trip mismatch: %+v", got[1])
	}
	if !got[0].Timestamp.Equal(base) {
		t.Errorf("timestamp = %s, want %s", got[0].Timestamp, base)
	}

	// Limit applies to the most recent
	limited, err := store.RecentAlerts(2)
	if err != nil {
		t.Fatalf("RecentAlerts(2) failed: %v", err)
	}
	if len(limited) != 2 || limited[0].Message != "second" {
		t.Errorf("limited = %+v, want last two chronologically", limited)
	}
}

func TestSaveAlertIdempotent(t *testing.T) {
	store := newTestStore(t)

	event := alert.Event{ID: "dup", Kind: alert.KindPatternWarning, Subject: "m1", Severity: alert.SeverityWarning, Timestamp: time.Now()}
	if err := store.SaveAlert(event); err != nil {
		t.Fatalf("SaveAlert failed: %v", err)
	}
	if err := store.SaveAlert(event); err != nil {
		t.Fatalf("duplicate SaveAlert failed: %v", err)
	}

	got, err := store.RecentAlerts(10)
	if err != nil {
		t.Fatalf("RecentAlerts failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d alerts, want 1 (duplicate id ignored)", len(got))
	}
}

func TestSubjectAlerts(t *testing.T) {
	store := newTestStore(t)

	base := time.Now()
	for i, subject := range []string{"m1", "m2", "m1"} {
		event := alert.Event{
			ID: string(rune('a' + i)), Kind: alert.KindPatternWarning,
			Subject: subject, Severity: alert.SeverityWarning,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
		if err := store.SaveAlert(event); err != nil {
			t.Fatalf("SaveAlert failed: %v", err)
		}
	}

	got, err := store.SubjectAlerts("m1", 10)
	if err != nil {
		t.Fatalf("SubjectAlerts failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d alerts for m1, want 2", len(got))
	}
	for _, e := range got {
		if e.Subject != "m1" {
			t.Errorf("unexpected subject %s", e.Subject)
		}
	}
}

func TestCountByKind(t *testing.T) {
	store := newTestStore(t)

	kinds := []alert.Kind{
		alert.KindPatternWarning,
		alert.KindPatternWarning,
		alert.KindEmergencyShutdown,
	}
	for i, kind := range kinds {
		event := alert.Event{
			ID: string(rune('a' + i)), Kind: kind, Subject: "m1",
			Severity: alert.SeverityWarning, Timestamp: time.Now(),
		}
		if err := store.SaveAlert(event); err != nil {
			t.Fatalf("SaveAlert failed: %v", err)
		}
	}

	counts, err := store.CountByKind()
	if err != nil {
		t.Fatalf("CountByKind failed: %v", err)
	}
	if counts[alert.KindPatternWarning] != 2 || counts[alert.KindEmergencyShutdown] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestCleanupOldAlerts(t *testing.T) {
	store := newTestStore(t)

	old := alert.Event{ID: "old", Kind: alert.KindPatternWarning, Subject: "m1", Severity: alert.SeverityWarning, Timestamp: time.Now().Add(-48 * time.Hour)}
	fresh := alert.Event{ID: "fresh", Kind: alert.KindPatternWarning, Subject: "m1", Severity: alert.SeverityWarning, Timestamp: time.Now()}
	for _, e := range []alert.Event{old, fresh} {
		if err := store.SaveAlert(e); err != nil {
			t.Fatalf("SaveAlert failed: %v", err)
		}
	}

	deleted, err := store.CleanupOldAlerts(24 * time.Hour)
	if err != nil {
		t.Fatalf("CleanupOldAlerts failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	got, err := store.RecentAlerts(10)
	if err != nil {
		t.Fatalf("RecentAlerts failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "fresh" {
		t.Errorf("remaining alerts = %+v, want only fresh", got)
	}
}

func TestSinkDelivers(t *testing.T) {
	store := newTestStore(t)
	sink := NewSink(store)

	if sink.Name() != "history" {
		t.Errorf("sink name = %q, want history", sink.Name())
	}

	event := alert.Event{ID: "s1", Kind: alert.KindResourceWarning, Subject: "system", Severity: alert.SeverityWarning, Timestamp: time.Now()}
	if err := sink.Deliver(event); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	got, err := store.RecentAlerts(10)
	if err != nil {
		t.Fatalf("RecentAlerts failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "s1" {
		t.Errorf("stored = %+v, want the delivered event", got)
	}
}
