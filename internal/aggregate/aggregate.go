// Package aggregate implements the Status Aggregator: a scheduled
// backfill of quarter-hour bucket rows summarizing job throughput and
// latency, plus the live queue-depth gauge (§4.4).
package aggregate

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"scanpipeline/internal/config"
	"scanpipeline/internal/queue"
	"scanpipeline/internal/store"
	"scanpipeline/internal/worker"
)

// Service is the Status Aggregator.
type Service struct {
	logger    *zap.Logger
	jobs      *store.JobStore
	aggs      *store.AggregateStore
	q         queue.Queue
	cfg       *config.Config
	scheduler *gocron.Scheduler
}

// New builds a Service ready to Run.
func New(logger *zap.Logger, jobs *store.JobStore, aggs *store.AggregateStore, q queue.Queue, cfg *config.Config) *Service {
	return &Service{
		logger:    logger,
		jobs:      jobs,
		aggs:      aggs,
		q:         q,
		cfg:       cfg,
		scheduler: gocron.NewScheduler(time.UTC),
	}
}

// Run schedules the bucket backfill on cfg.AggregateBucket and blocks
// until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	minutes := int(s.cfg.AggregateBucket / time.Minute)
	if minutes < 1 {
		minutes = 1
	}

	// Align ticks to bucket boundaries: the first scheduled run is the
	// next boundary after now, and every later run is one bucket on.
	next := time.Now().UTC().Truncate(s.cfg.AggregateBucket).Add(s.cfg.AggregateBucket)
	if _, err := s.scheduler.Every(minutes).Minutes().StartAt(next).Do(func() {
		if err := s.backfill(ctx); err != nil {
			s.logger.Error("bucket backfill failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	// Run one pass immediately so a freshly started aggregator doesn't
	// wait a full bucket interval before the first row appears.
	if err := s.backfill(ctx); err != nil {
		s.logger.Error("initial bucket backfill failed", zap.Error(err))
	}

	s.scheduler.StartAsync()
	<-ctx.Done()
	s.scheduler.Stop()
	return nil
}

// backfill computes and upserts the current open bucket, and any
// bucket since the last recorded one that the aggregator missed while
// it wasn't running, per §4.4's "update, not insert" rule for the
// open bucket.
func (s *Service) backfill(ctx context.Context) error {
	bucket := s.cfg.AggregateBucket
	now := time.Now().UTC()
	currentStart := now.Truncate(bucket)

	latest, err := s.aggs.Latest(ctx)
	if err != nil {
		return err
	}

	start := currentStart
	if latest != nil && latest.BucketStart.Before(currentStart) {
		start = latest.BucketStart
	}

	for b := start; !b.After(currentStart); b = b.Add(bucket) {
		if err := s.writeBucket(ctx, b, b.Add(bucket)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) writeBucket(ctx context.Context, bucketStart, bucketEnd time.Time) error {
	queued, started, finished, err := s.jobs.CountInBucket(ctx, bucketStart, bucketEnd)
	if err != nil {
		return err
	}
	avgStartMs, avgFinishMs, err := s.jobs.AverageDurations(ctx, bucketStart, bucketEnd)
	if err != nil {
		return err
	}
	depth, err := s.q.GetMessagesCount(worker.JobsSubject)
	if err != nil {
		s.logger.Warn("failed to read queue depth for bucket", zap.Error(err))
		depth = 0
	}

	return s.aggs.Upsert(ctx, store.AggregateRow{
		BucketStart: bucketStart,
		Queued:      queued,
		Started:     started,
		Finished:    finished,
		AvgStartMs:  avgStartMs,
		AvgFinishMs: avgFinishMs,
		QueueDepth:  depth,
	})
}
