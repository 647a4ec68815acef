// Package store implements the durable Job record: Postgres-backed
// CRUD written only by the Sync Service (§4.3 "the datastore Job record
// is mutated only by the sync layer") and read by the Status
// Aggregator, plus the aggregator's bucket rows.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/google/uuid"

	"scanpipeline/internal/job"
)

// DB wraps the pool of connections to the durable job record.
type DB struct {
	*sql.DB
}

// NewPostgres opens and configures the connection pool, matching the
// teacher's high-concurrency Postgres setup.
func NewPostgres(ctx context.Context, url string) (*DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &DB{DB: db}, nil
}

// RunMigrations applies pending schema migrations from migrationsPath.
func (d *DB) RunMigrations(migrationsPath string) error {
	driver, err := postgres.WithInstance(d.DB, &postgres.Config{})
	if err != nil {
		return err
	}

	absPath, err := filepath.Abs(migrationsPath)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+absPath, "postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func (d *DB) HealthCheck(ctx context.Context) error {
	return d.PingContext(ctx)
}

// JobStore is the durable-record CRUD surface consumed by the sync
// layer. Hints and config are stored as JSON columns: they are ordered
// sequences with internal structure that doesn't warrant relational
// decomposition at this scale.
type JobStore struct {
	db *DB
}

func NewJobStore(db *DB) *JobStore {
	return &JobStore{db: db}
}

// Create inserts a new pending job.
func (s *JobStore) Create(ctx context.Context, j *job.Job) error {
	hints, err := json.Marshal(j.Hints)
	if err != nil {
		return fmt.Errorf("marshal hints: %w", err)
	}
	cfg, err := json.Marshal(j.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	query := `INSERT INTO jobs (id, url, status, hints, config, queued, max_run_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = s.db.ExecContext(ctx, query, j.ID, j.URL, j.Status, hints, cfg, j.Queued, j.MaxRunTime)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// GetByID loads a job by id.
func (s *JobStore) GetByID(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	query := `SELECT id, url, status, hints, config, queued, started, finished, max_run_time, error, engine_version
		FROM jobs WHERE id = $1`

	var j job.Job
	var hints, cfg []byte
	var errPayload []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&j.ID, &j.URL, &j.Status, &hints, &cfg, &j.Queued, &j.Started, &j.Finished, &j.MaxRunTime, &errPayload, &j.EngineVersion,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if err := json.Unmarshal(hints, &j.Hints); err != nil {
		return nil, fmt.Errorf("unmarshal hints: %w", err)
	}
	if err := json.Unmarshal(cfg, &j.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(errPayload) > 0 {
		if err := json.Unmarshal(errPayload, &j.Error); err != nil {
			return nil, fmt.Errorf("unmarshal error payload: %w", err)
		}
	}
	return &j, nil
}

// Save persists the full job record, called by the sync layer after
// applying a merge under the per-job lock.
func (s *JobStore) Save(ctx context.Context, j *job.Job) error {
	hints, err := json.Marshal(j.Hints)
	if err != nil {
		return fmt.Errorf("marshal hints: %w", err)
	}
	cfg, err := json.Marshal(j.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	var errPayload []byte
	if j.Error != nil {
		errPayload, err = json.Marshal(j.Error)
		if err != nil {
			return fmt.Errorf("marshal error payload: %w", err)
		}
	}

	query := `UPDATE jobs SET status = $2, hints = $3, config = $4, started = $5, finished = $6,
		error = $7, engine_version = $8 WHERE id = $1`
	_, err = s.db.ExecContext(ctx, query, j.ID, j.Status, hints, cfg, j.Started, j.Finished, errPayload, j.EngineVersion)
	if err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

// CountInBucket counts jobs whose queued/started/finished timestamp
// falls within [bucketStart, bucketEnd), for the Status Aggregator.
func (s *JobStore) CountInBucket(ctx context.Context, bucketStart, bucketEnd time.Time) (queued, started, finished int, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE queued >= $1 AND queued < $2`, bucketStart, bucketEnd)
	if err = row.Scan(&queued); err != nil {
		return 0, 0, 0, err
	}
	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE started >= $1 AND started < $2`, bucketStart, bucketEnd)
	if err = row.Scan(&started); err != nil {
		return 0, 0, 0, err
	}
	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE finished >= $1 AND finished < $2`, bucketStart, bucketEnd)
	if err = row.Scan(&finished); err != nil {
		return 0, 0, 0, err
	}
	return queued, started, finished, nil
}

// AverageDurations computes mean(started-queued) and mean(finished-started)
// in milliseconds for jobs whose terminal event lies in the bucket.
func (s *JobStore) AverageDurations(ctx context.Context, bucketStart, bucketEnd time.Time) (avgStartMs, avgFinishMs float64, err error) {
	query := `SELECT
		COALESCE(AVG(EXTRACT(EPOCH FROM (started - queued)) * 1000), 0),
		COALESCE(AVG(EXTRACT(EPOCH FROM (finished - started)) * 1000), 0)
		FROM jobs
		WHERE finished >= $1 AND finished < $2 AND started IS NOT NULL`
	row := s.db.QueryRowContext(ctx, query, bucketStart, bucketEnd)
	if err := row.Scan(&avgStartMs, &avgFinishMs); err != nil {
		return 0, 0, err
	}
	return avgStartMs, avgFinishMs, nil
}
