// Package worker implements the Worker Service: it consumes sub-jobs
// from the jobs queue, runs each in an isolated Scan Runner child
// process under a deadline, and emits started/terminal ResultMessages
// to the results queue (§4.1).
package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"scanpipeline/internal/config"
	"scanpipeline/internal/job"
	"scanpipeline/internal/observability"
	"scanpipeline/internal/queue"
)

const (
	JobsSubject    = "scan.jobs"
	ResultsSubject = "scan.results"
)

// Service is the Worker Service. One Service bounds its in-flight
// sub-jobs to cfg.QueueConcurrency, matching the teacher's fixed-pool
// consumer shape.
type Service struct {
	logger  *zap.Logger
	metrics *observability.Metrics
	q       queue.Queue
	cfg     *config.Config

	sem  chan struct{}
	wg   sync.WaitGroup
	stop chan struct{}
}

// New builds a Service ready to Run.
func New(logger *zap.Logger, metrics *observability.Metrics, q queue.Queue, cfg *config.Config) *Service {
	concurrency := cfg.QueueConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{
		logger:  logger,
		metrics: metrics,
		q:       q,
		cfg:     cfg,
		sem:     make(chan struct{}, concurrency),
		stop:    make(chan struct{}),
	}
}

// Run subscribes to the jobs queue and blocks until ctx is cancelled,
// then drains in-flight sub-jobs for up to cfg.ShutdownDrainTimeout
// before returning (§7 "Graceful shutdown").
func (s *Service) Run(ctx context.Context) error {
	sub, err := s.q.Listen(ctx, JobsSubject, "workers", s.handle)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	close(s.stop)
	s.logger.Info("worker service draining in-flight sub-jobs", zap.Duration("timeout", s.cfg.ShutdownDrainTimeout))

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(s.cfg.ShutdownDrainTimeout):
		s.logger.Warn("shutdown drain timeout elapsed with sub-jobs still in flight")
	}
	return nil
}

// handle decodes one jobs-queue message and processes it, bounded by
// the worker's concurrency semaphore. It always returns nil: a
// malformed message is logged and dropped rather than redelivered
// forever, and a sub-job that fails Validate is reported as a started
// plus an error terminal without spawning a child.
func (s *Service) handle(ctx context.Context, body []byte) error {
	var sub job.SubJob
	if err := json.Unmarshal(body, &sub); err != nil {
		s.logger.Error("dropping malformed sub-job message", zap.Error(err))
		return nil
	}
	if err := sub.Validate(); err != nil {
		s.logger.Error("rejecting invalid sub-job message", zap.String("job_id", sub.ID.String()), zap.Error(err))
		startedAt := time.Now().UTC()
		s.sendStarted(ctx, ResultsSubject, job.ResultMessage{
			ID:       sub.ID,
			PartInfo: sub.PartInfo,
			Status:   job.StatusStarted,
			Started:  &startedAt,
		})
		engineErr := &job.EngineError{Message: err.Error()}
		s.emitTerminal(ctx, sub, job.StatusError, ResolveError(&sub, engineErr), engineErr)
		return nil
	}

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.sem }()
		s.processSubJob(ctx, sub)
	}()
	return nil
}

// processSubJob runs the full §4.1 lifecycle for one sub-job: ACCEPTED
// (emit started) -> RUNNING (spawn child) -> COMPLETE/FAILED/TIMED_OUT
// (emit terminal), guaranteeing exactly one started and exactly one
// terminal result within max(maxRunTime, DEFAULT_RUN_TIME).
func (s *Service) processSubJob(ctx context.Context, sub job.SubJob) {
	deadline := s.cfg.RunTime(sub.MaxRunTime)
	runCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	startedAt := time.Now().UTC()
	s.metrics.JobsStarted.Add(ctx, 1)
	s.sendStarted(ctx, ResultsSubject, job.ResultMessage{
		ID:       sub.ID,
		PartInfo: sub.PartInfo,
		Status:   job.StatusStarted,
		Started:  &startedAt,
	})

	c, err := spawnChild(runCtx, sub)
	if err != nil {
		s.logger.Error("failed to spawn scan runner", zap.String("job_id", sub.ID.String()), zap.Error(err))
		engineErr := &job.EngineError{Message: err.Error()}
		s.emitTerminal(ctx, sub, job.StatusError, ResolveError(&sub, engineErr), engineErr)
		return
	}

	select {
	case ev := <-c.done:
		s.finishFromChildEvent(ctx, sub, ev)
	case <-runCtx.Done():
		s.finishFromTimeout(ctx, sub, c)
	}
}

// finishFromChildEvent classifies a completed child: a successful
// engine response, an engine-reported failure, or a process crash.
func (s *Service) finishFromChildEvent(ctx context.Context, sub job.SubJob, ev childEvent) {
	if ev.exitErr != nil {
		s.logger.Warn("scan runner exited abnormally", zap.String("job_id", sub.ID.String()), zap.Error(ev.exitErr))
		engineErr := &job.EngineError{Message: ev.exitErr.Error()}
		s.emitTerminal(ctx, sub, job.StatusError, ResolveError(&sub, engineErr), engineErr)
		return
	}

	resp := ev.response
	if !resp.OK {
		s.emitTerminal(ctx, sub, job.StatusError, ResolveError(&sub, resp.Error), resp.Error)
		return
	}
	s.emitTerminal(ctx, sub, job.StatusFinished, ResolveSuccess(&sub, resp.Messages), nil)
}

// finishFromTimeout implements the deadline teardown: SIGTERM the
// child's process group, give it a short grace period, then SIGKILL,
// and resolve every still-pending hint to pass (§4.1 step 5b).
func (s *Service) finishFromTimeout(ctx context.Context, sub job.SubJob, c *child) {
	s.logger.Warn("sub-job exceeded its deadline, terminating scan runner", zap.String("job_id", sub.ID.String()))
	c.terminate()

	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		c.kill()
		<-c.done
	}

	s.emitTerminal(ctx, sub, job.StatusFinished, ResolveTimeout(&sub), &job.EngineError{Message: "TIMEOUT"})
}

// emitTerminal builds and sends the single terminal ResultMessage for
// a sub-job, recording the corresponding metric.
func (s *Service) emitTerminal(ctx context.Context, sub job.SubJob, status job.Status, hints []job.HintResult, engineErr *job.EngineError) {
	finishedAt := time.Now().UTC()
	if status == job.StatusError {
		s.metrics.JobsErrored.Add(ctx, 1)
	} else {
		s.metrics.JobsFinished.Add(ctx, 1)
	}

	s.sendTerminal(ctx, ResultsSubject, job.ResultMessage{
		ID:       sub.ID,
		PartInfo: sub.PartInfo,
		Status:   status,
		Hints:    hints,
		Finished: &finishedAt,
		Error:    engineErr,
	})
}
