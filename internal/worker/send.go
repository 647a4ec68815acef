package worker

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"scanpipeline/internal/job"
	"scanpipeline/internal/queue"
)

// sendStarted emits the started ResultMessage. Oversize is not a
// concern here (a started message carries no engine findings), so only
// transient-retry applies.
func (s *Service) sendStarted(ctx context.Context, subject string, msg job.ResultMessage) {
	s.sendWithRetry(ctx, subject, msg)
}

// sendTerminal applies the full §4.1.3 oversize policy and emits the
// resulting one-or-more ResultMessages.
func (s *Service) sendTerminal(ctx context.Context, subject string, msg job.ResultMessage) {
	parts := PrepareForSend(msg, s.cfg.MaxMessageSize)
	for _, part := range parts {
		s.sendOnePartition(ctx, subject, part)
	}
}

// sendOnePartition sends a single partition and, on a bus oversize
// rejection, collapses the messages of every hint that carries any and
// resends exactly once (§4.1.3 step 4: "the resend is treated as
// final"). Hints without messages are resent unchanged.
func (s *Service) sendOnePartition(ctx context.Context, subject string, msg job.ResultMessage) {
	result := s.sendWithRetry(ctx, subject, msg)
	if result != queue.SendOversize {
		return
	}

	s.logger.Warn("result message rejected as oversize, collapsing and retrying once",
		zap.String("job_id", msg.ID.String()))

	collapsed := msg
	collapsed.Hints = make([]job.HintResult, len(msg.Hints))
	for i, h := range msg.Hints {
		if len(h.Messages) == 0 {
			collapsed.Hints[i] = h
			continue
		}
		collapsed.Hints[i] = collapseOversizeHint(h)
	}

	final := s.sendWithRetry(ctx, subject, collapsed)
	if final != queue.SendOK {
		s.logger.Error("abandoning sub-job after final oversize retry failed",
			zap.String("job_id", msg.ID.String()))
	}
}

// sendWithRetry sends body with bounded exponential backoff on
// transient failures (§4.1 "Failure semantics"). Fatal and oversize
// results are returned immediately for the caller to classify.
func (s *Service) sendWithRetry(ctx context.Context, subject string, msg job.ResultMessage) queue.SendResult {
	body, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("failed to marshal result message", zap.Error(err))
		return queue.SendFatal
	}

	delay := s.cfg.QueueRetryBaseDelay
	var lastResult queue.SendResult
	for attempt := 0; attempt < s.cfg.QueueRetryAttempts; attempt++ {
		result, err := s.q.SendMessage(ctx, subject, body)
		lastResult = result
		if result == queue.SendOK {
			return result
		}
		if result != queue.SendTransient {
			if err != nil {
				s.logger.Error("failed to send result message", zap.String("result", sendResultName(result)), zap.Error(err))
			}
			return result
		}

		s.logger.Warn("transient queue send failure, retrying",
			zap.Int("attempt", attempt+1), zap.Duration("delay", delay), zap.Error(err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return result
		}

		delay *= 2
		if delay > s.cfg.QueueRetryMaxDelay {
			delay = s.cfg.QueueRetryMaxDelay
		}
	}

	s.logger.Error("exhausted queue send retries, dropping sub-job result",
		zap.String("job_id", msg.ID.String()))
	return lastResult
}

func sendResultName(r queue.SendResult) string {
	switch r {
	case queue.SendOK:
		return "ok"
	case queue.SendOversize:
		return "oversize"
	case queue.SendTransient:
		return "transient"
	default:
		return "fatal"
	}
}
