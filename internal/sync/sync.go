// Package sync implements the Sync Service: it consumes ResultMessages
// from the results queue and merges each into the durable Job record
// under a per-job lock (§4.3).
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"scanpipeline/internal/config"
	"scanpipeline/internal/job"
	"scanpipeline/internal/lock"
	"scanpipeline/internal/observability"
	"scanpipeline/internal/queue"
	"scanpipeline/internal/store"
	"scanpipeline/internal/worker"
)

// ResultsSubject is the subject the Sync Service consumes. Shared with
// the Worker Service's send side.
const ResultsSubject = worker.ResultsSubject

// DLQSubject receives result messages that could not be merged (the
// job's lock was held elsewhere, or loading or saving the record
// failed), a supplemented feature beyond the
// spec's core merge algorithm so operators can inspect abandoned
// sub-jobs instead of losing them silently.
const DLQSubject = "scan.results.dlq"

// Service is the Sync Service.
type Service struct {
	logger  *zap.Logger
	metrics *observability.Metrics
	q       queue.Queue
	jobs    *store.JobStore
	locks   *lock.Client
	cfg     *config.Config
}

// New builds a Service ready to Run.
func New(logger *zap.Logger, metrics *observability.Metrics, q queue.Queue, jobs *store.JobStore, locks *lock.Client, cfg *config.Config) *Service {
	return &Service{logger: logger, metrics: metrics, q: q, jobs: jobs, locks: locks, cfg: cfg}
}

// Run subscribes to the results queue and blocks until ctx is
// cancelled.
func (s *Service) Run(ctx context.Context) error {
	sub, err := s.q.Listen(ctx, ResultsSubject, "sync", s.handle)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	return nil
}

// handle decodes one ResultMessage and merges it under the job's lock.
// A lock-acquisition failure is not retried: like any other merge
// failure, the message is published to DLQSubject at once rather than
// blocking this consumer on contention, and handle returns nil.
func (s *Service) handle(ctx context.Context, body []byte) error {
	var msg job.ResultMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		s.logger.Error("dropping malformed result message", zap.Error(err))
		return nil
	}

	if err := s.mergeOne(ctx, msg); err != nil {
		if errors.Is(err, lock.ErrContended) {
			s.metrics.LockContended.Add(ctx, 1)
			s.logger.Warn("job lock contended, dropping to dead-letter rather than blocking this consumer",
				zap.String("job_id", msg.ID.String()))
		} else {
			s.logger.Error("failed to merge result message, routing to dead-letter",
				zap.String("job_id", msg.ID.String()), zap.Error(err))
		}
		s.deadLetter(ctx, msg, err)
	}
	return nil
}

// mergeOne performs exactly the steps §4.3 prescribes: acquire the
// job's lease, load the record, apply the pure merge, persist, release.
func (s *Service) mergeOne(ctx context.Context, msg job.ResultMessage) error {
	lease, err := lock.Lock(ctx, s.locks, msg.ID, s.cfg.LockTTL)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Unlock(ctx, s.locks, lease); err != nil {
			s.logger.Warn("failed to release job lock", zap.String("job_id", msg.ID.String()), zap.Error(err))
		}
	}()

	dbJob, err := s.jobs.GetByID(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("load job record: %w", err)
	}

	job.Merge(dbJob, &msg)

	if err := s.jobs.Save(ctx, dbJob); err != nil {
		return fmt.Errorf("save job record: %w", err)
	}
	return nil
}

// deadLetter publishes a result message that could not be merged to
// the DLQ subject for operator inspection.
func (s *Service) deadLetter(ctx context.Context, msg job.ResultMessage, mergeErr error) {
	payload := struct {
		Result job.ResultMessage `json:"result"`
		Reason string            `json:"reason"`
	}{Result: msg, Reason: mergeErr.Error()}

	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to marshal dead-letter payload", zap.Error(err))
		return
	}
	if _, err := s.q.SendMessage(ctx, DLQSubject, body); err != nil {
		s.logger.Error("failed to publish to dead-letter subject", zap.Error(err))
	}
}
