package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS notification_history (
	id                TEXT    PRIMARY KEY,
	dispatched_at     TEXT    NOT NULL,
	event_date        TEXT    NOT NULL,
	venue_id          TEXT    NOT NULL,
	venue_name        TEXT    NOT NULL,
	race_number       INTEGER NOT NULL,
	deadline_time     TEXT    NOT NULL,
	minutes_remaining REAL    NOT NULL,
	mode              TEXT    NOT NULL
)`

// Fixed-width so lexical order matches time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteSink is the local durable notification log.
type SQLiteSink struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenSQLite opens (creating if needed) the log at path.
func OpenSQLite(path string) (*SQLiteSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		sqliteSchema,
		`CREATE INDEX IF NOT EXISTS idx_nh_dispatched_at ON notification_history(dispatched_at)`,
		`CREATE INDEX IF NOT EXISTS idx_nh_event ON notification_history(event_date, venue_id, race_number)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}

	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Name() string { return "sqlite" }

func (s *SQLiteSink) Record(ctx context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_history
			(id, dispatched_at, event_date, venue_id, venue_name, race_number, deadline_time, minutes_remaining, mode)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.DispatchedAt.UTC().Format(sqliteTimeLayout), r.EventDate, r.VenueID,
		r.VenueName, r.Number, r.DeadlineTime, r.MinutesRemaining, r.Mode,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *SQLiteSink) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, dispatched_at, event_date, venue_id, venue_name, race_number, deadline_time, minutes_remaining, mode
		 FROM notification_history ORDER BY dispatched_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			r      Record
			id, at string
		)
		if err := rows.Scan(&id, &at, &r.EventDate, &r.VenueID, &r.VenueName,
			&r.Number, &r.DeadlineTime, &r.MinutesRemaining, &r.Mode); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse record id: %w", err)
		}
		if r.DispatchedAt, err = time.Parse(sqliteTimeLayout, at); err != nil {
			return nil, fmt.Errorf("parse dispatched_at: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Prune deletes records dispatched before cutoff.
func (s *SQLiteSink) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notification_history WHERE dispatched_at < ?`,
		cutoff.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
