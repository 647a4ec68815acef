package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AggregateRow is one quarter-hour bucket row written by the Status
// Aggregator (§4.4).
type AggregateRow struct {
	BucketStart  time.Time
	Queued       int
	Started      int
	Finished     int
	AvgStartMs   float64
	AvgFinishMs  float64
	QueueDepth   int
}

// AggregateStore persists Status Aggregator bucket rows.
type AggregateStore struct {
	db *DB
}

func NewAggregateStore(db *DB) *AggregateStore {
	return &AggregateStore{db: db}
}

// Latest returns the most recent bucket row, or nil if none exist yet.
func (s *AggregateStore) Latest(ctx context.Context) (*AggregateRow, error) {
	query := `SELECT bucket_start, queued, started, finished, avg_start_ms, avg_finish_ms, queue_depth
		FROM job_aggregates ORDER BY bucket_start DESC LIMIT 1`
	var row AggregateRow
	err := s.db.QueryRowContext(ctx, query).Scan(
		&row.BucketStart, &row.Queued, &row.Started, &row.Finished, &row.AvgStartMs, &row.AvgFinishMs, &row.QueueDepth,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest aggregate: %w", err)
	}
	return &row, nil
}

// Upsert inserts a new bucket row or updates an existing one — the
// open (current) bucket is always updated rather than inserted on
// subsequent runs, per §4.4.
func (s *AggregateStore) Upsert(ctx context.Context, row AggregateRow) error {
	query := `INSERT INTO job_aggregates (bucket_start, queued, started, finished, avg_start_ms, avg_finish_ms, queue_depth)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (bucket_start) DO UPDATE SET
			queued = EXCLUDED.queued,
			started = EXCLUDED.started,
			finished = EXCLUDED.finished,
			avg_start_ms = EXCLUDED.avg_start_ms,
			avg_finish_ms = EXCLUDED.avg_finish_ms,
			queue_depth = EXCLUDED.queue_depth`
	_, err := s.db.ExecContext(ctx, query,
		row.BucketStart, row.Queued, row.Started, row.Finished, row.AvgStartMs, row.AvgFinishMs, row.QueueDepth)
	if err != nil {
		return fmt.Errorf("upsert aggregate: %w", err)
	}
	return nil
}
