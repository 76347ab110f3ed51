package history

import (
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/macrokit/macroguard/internal/alert"
	"github.com/macrokit/macroguard/internal/logger"

	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

// Store defines the interface for alert history persistence
type Store interface {
	SaveAlert(event alert.Event) error
	RecentAlerts(limit int) ([]alert.Event, error)
	SubjectAlerts(subject string, limit int) ([]alert.Event, error)
	CountByKind() (map[alert.Kind]int, error)
	CleanupOldAlerts(ttl time.Duration) (int64, error)
	Close() error
}

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// NewSQLiteStore creates a new SQLite-backed alert history store
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(homeDir, ".macroguard", "history", "alerts.db")
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	// WAL mode for better concurrency between the dispatcher sink and
	// the daemon's read queries
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}

	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Debug().
		Str("path", dbPath).
		Msg("Opened alert history store")

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		subject TEXT NOT NULL,
		severity TEXT NOT NULL,
		message TEXT,
		timestamp INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_subject ON alerts(subject, timestamp);
	CREATE INDEX IF NOT EXISTS idx_alerts_timestamp ON alerts(timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveAlert stores one alert event
func (s *SQLiteStore) SaveAlert(event alert.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO alerts (id, kind, subject, severity, message, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID,
		string(event.Kind),
		event.Subject,
		string(event.Severity),
		event.Message,
		event.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to store alert: %w", err)
	}

	return nil
}

// RecentAlerts retrieves the most recent alerts in chronological order
func (s *SQLiteStore) RecentAlerts(limit int) ([]alert.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, kind, subject, severity, message, timestamp
		 FROM alerts
		 ORDER BY timestamp DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events, err := scanAlerts(rows)
	if err != nil {
		return nil, err
	}

	// Reverse to chronological order
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}

	return events, nil
}

// SubjectAlerts retrieves the most recent alerts for one subject in
// chronological order
func (s *SQLiteStore) SubjectAlerts(subject string, limit int) ([]alert.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, kind, subject, severity, message, timestamp
		 FROM alerts
		 WHERE subject = ?
		 ORDER BY timestamp DESC
		 LIMIT ?`,
		subject, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get subject alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events, err := scanAlerts(rows)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}

	return events, nil
}

// CountByKind returns alert totals grouped by kind
func (s *SQLiteStore) CountByKind() (map[alert.Kind]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT kind, COUNT(*) FROM alerts GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[alert.Kind]int)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan alert count: %w", err)
		}
		counts[alert.Kind(kind)] = count
	}

	return counts, rows.Err()
}

// CleanupOldAlerts removes alerts older than the given TTL
func (s *SQLiteStore) CleanupOldAlerts(ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-ttl).UnixNano()

	result, err := s.db.Exec("DELETE FROM alerts WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old alerts: %w", err)
	}

	deleted, _ := result.RowsAffected()
	if deleted > 0 {
		logger.Debug().
			Int64("deleted", deleted).
			Str("ttl", ttl.String()).
			Msg("Cleaned up old alerts")
	}

	return deleted, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanAlerts(rows *sql.Rows) ([]alert.Event, error) {
	var events []alert.Event

	for rows.Next() {
		var event alert.Event
		var kind, severity string
		var timestamp int64

		if err := rows.Scan(&event.ID, &kind, &event.Subject, &severity, &event.Message, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}

		event.Kind = alert.Kind(kind)
		event.Severity = alert.Severity(severity)
		event.Timestamp = time.Unix(0, timestamp)
		events = append(events, event)
	}

	return events, rows.Err()
}

// Sink adapts a Store into an alert sink for the dispatcher
type Sink struct {
	store Store
}

// NewSink creates a dispatcher sink backed by the store
func NewSink(store Store) *Sink {
	return &Sink{store: store}
}

// Name identifies the sink in delivery diagnostics
func (s *Sink) Name() string { return "history" }

// Deliver persists the alert
func (s *Sink) Deliver(event alert.Event) error {
	return s.store.SaveAlert(event)
}

// MaybeRunCleanup runs retention cleanup with the given probability
func MaybeRunCleanup(store Store, ttl time.Duration, probability float64) {
	if rand.Float64() > probability {
		return
	}

	go func() {
		if _, err := store.CleanupOldAlerts(ttl); err != nil {
			logger.Debug().Err(err).Msg("Failed to cleanup old alerts")
		}
	}()
}
