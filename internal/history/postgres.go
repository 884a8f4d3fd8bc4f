package history

import (
	"context"
	"fmt"
	"time"

	"github.com/albapepper/racewatch/internal/db"
)

// PostgresSink appends records to the remote tabular store.
type PostgresSink struct {
	pool *db.Pool
}

func NewPostgresSink(pool *db.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

func (s *PostgresSink) Name() string { return "postgres" }

func (s *PostgresSink) Record(ctx context.Context, r Record) error {
	_, err := s.pool.Exec(ctx, db.StmtInsertHistory,
		r.ID, r.DispatchedAt, r.EventDate, r.VenueID, r.VenueName,
		r.Number, r.DeadlineTime, r.MinutesRemaining, r.Mode)
	if err != nil {
		return fmt.Errorf("insert into %s: %w", s.pool.Table(), err)
	}
	return nil
}

// Recent returns up to limit records from the remote table, newest first.
func (s *PostgresSink) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, db.StmtRecentHistory, limit)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.pool.Table(), err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.DispatchedAt, &r.EventDate, &r.VenueID, &r.VenueName,
			&r.Number, &r.DeadlineTime, &r.MinutesRemaining, &r.Mode); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *PostgresSink) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, db.StmtPruneHistory, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune %s: %w", s.pool.Table(), err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}
