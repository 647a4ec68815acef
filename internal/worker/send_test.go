package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scanpipeline/internal/config"
	"scanpipeline/internal/job"
	"scanpipeline/internal/observability"
	"scanpipeline/internal/queue"
)

type fakeQueue struct {
	sends   []string
	results []queue.SendResult
}

func (f *fakeQueue) Listen(ctx context.Context, subject, group string, handler queue.Handler) (queue.Subscription, error) {
	return nil, nil
}

func (f *fakeQueue) SendMessage(ctx context.Context, subject string, body []byte) (queue.SendResult, error) {
	i := len(f.sends)
	f.sends = append(f.sends, subject)
	if i < len(f.results) {
		return f.results[i], nil
	}
	return queue.SendOK, nil
}

func (f *fakeQueue) GetMessagesCount(subject string) (int, error) { return 0, nil }
func (f *fakeQueue) Close() error                                 { return nil }

func newTestService(q queue.Queue) *Service {
	cfg := &config.Config{
		QueueRetryAttempts:  3,
		QueueRetryBaseDelay: time.Millisecond,
		QueueRetryMaxDelay:  5 * time.Millisecond,
		MaxMessageSize:      262144,
	}
	metrics, err := observability.NewMetrics("worker-test-" + uuid.NewString())
	if err != nil {
		panic(err)
	}
	return New(zap.NewNop(), metrics, q, cfg)
}

func TestSendWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	q := &fakeQueue{results: []queue.SendResult{queue.SendTransient, queue.SendTransient, queue.SendOK}}
	s := newTestService(q)

	result := s.sendWithRetry(context.Background(), "subj", job.ResultMessage{ID: uuid.New()})
	if result != queue.SendOK {
		t.Fatalf("result = %v, want SendOK", result)
	}
	if len(q.sends) != 3 {
		t.Fatalf("got %d send attempts, want 3", len(q.sends))
	}
}

func TestSendWithRetry_GivesUpAfterExhaustingAttempts(t *testing.T) {
	q := &fakeQueue{results: []queue.SendResult{queue.SendTransient, queue.SendTransient, queue.SendTransient}}
	s := newTestService(q)

	result := s.sendWithRetry(context.Background(), "subj", job.ResultMessage{ID: uuid.New()})
	if result != queue.SendTransient {
		t.Fatalf("result = %v, want SendTransient after exhausting retries", result)
	}
	if len(q.sends) != 3 {
		t.Fatalf("got %d send attempts, want exactly QueueRetryAttempts=3", len(q.sends))
	}
}

func TestSendOnePartition_CollapsesAndResendsOnceOnOversize(t *testing.T) {
	q := &fakeQueue{results: []queue.SendResult{queue.SendOversize, queue.SendOK}}
	s := newTestService(q)

	msg := job.ResultMessage{
		ID:     uuid.New(),
		Status: job.StatusFinished,
		Hints:  []job.HintResult{{Name: "axe", Status: job.HintError, Messages: []job.Message{{HintID: "axe", Message: "finding"}}}},
	}
	s.sendOnePartition(context.Background(), "subj", msg)

	if len(q.sends) != 2 {
		t.Fatalf("got %d send attempts, want exactly 2 (original + one collapsed retry)", len(q.sends))
	}
}
