package job_test

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"scanpipeline/internal/job"
)

func newPendingJob(hints ...string) *job.Job {
	j := &job.Job{
		ID:     uuid.New(),
		Status: job.StatusPending,
		Queued: time.Now(),
	}
	for _, h := range hints {
		j.Hints = append(j.Hints, job.HintResult{Name: h, Status: job.HintPending})
	}
	return j
}

func TestMerge_StartedOnlyFirstWriterWins(t *testing.T) {
	dbJob := newPendingJob("axe")
	t1 := time.Now()
	job.Merge(dbJob, &job.ResultMessage{Status: job.StatusStarted, Started: &t1, EngineVersion: "1.0.0"})

	t2 := t1.Add(time.Minute)
	job.Merge(dbJob, &job.ResultMessage{Status: job.StatusStarted, Started: &t2, EngineVersion: "2.0.0"})

	if dbJob.Status != job.StatusStarted {
		t.Fatalf("status = %s, want started", dbJob.Status)
	}
	if dbJob.Started == nil || !dbJob.Started.Equal(t1) {
		t.Fatalf("started = %v, want first writer's %v", dbJob.Started, t1)
	}
	if dbJob.EngineVersion != "1.0.0" {
		t.Fatalf("engineVersion = %s, want first writer's 1.0.0", dbJob.EngineVersion)
	}
}

func TestMerge_HappyPath(t *testing.T) {
	dbJob := newPendingJob("content-type")
	started := time.Now()
	job.Merge(dbJob, &job.ResultMessage{Status: job.StatusStarted, Started: &started})

	finished := started.Add(time.Second)
	job.Merge(dbJob, &job.ResultMessage{
		Status:   job.StatusFinished,
		Finished: &finished,
		Hints:    []job.HintResult{{Name: "content-type", Status: job.HintPass}},
	})

	if dbJob.Status != job.StatusFinished {
		t.Fatalf("status = %s, want finished", dbJob.Status)
	}
	if h := dbJob.HintByName("content-type"); h == nil || h.Status != job.HintPass {
		t.Fatalf("content-type = %+v, want pass", h)
	}
}

func TestMerge_ErrorDominatesAfterFinished(t *testing.T) {
	dbJob := newPendingJob("axe")
	finished := time.Now()
	job.Merge(dbJob, &job.ResultMessage{
		Status:   job.StatusFinished,
		Finished: &finished,
		Hints:    []job.HintResult{{Name: "axe", Status: job.HintPass}},
	})
	if dbJob.Status != job.StatusFinished {
		t.Fatalf("status = %s, want finished", dbJob.Status)
	}

	// A late error terminal for a sibling partition must still flip the
	// job to error even though it already reached finished.
	errTime := finished.Add(time.Second)
	job.Merge(dbJob, &job.ResultMessage{
		Status:   job.StatusError,
		Finished: &errTime,
		Error:    &job.EngineError{Message: "boom"},
	})

	if dbJob.Status != job.StatusError {
		t.Fatalf("status = %s, want error (error must dominate)", dbJob.Status)
	}
}

func TestMerge_ErrorIsAbsorbing(t *testing.T) {
	dbJob := newPendingJob("axe")
	dbJob.Status = job.StatusError

	job.Merge(dbJob, &job.ResultMessage{
		Status: job.StatusFinished,
		Hints:  []job.HintResult{{Name: "axe", Status: job.HintPass}},
	})

	if dbJob.Status != job.StatusError {
		t.Fatalf("status changed from error, got %s", dbJob.Status)
	}
	if h := dbJob.HintByName("axe"); h.Status != job.HintPending {
		t.Fatalf("hint mutated after job reached error: %+v", h)
	}
}

func TestMerge_DuplicateTerminalIsNoOp(t *testing.T) {
	dbJob := newPendingJob("axe")
	finished := time.Now()
	msg := &job.ResultMessage{
		Status:   job.StatusFinished,
		Finished: &finished,
		Hints:    []job.HintResult{{Name: "axe", Status: job.HintWarning, Messages: []job.Message{{HintID: "axe/1", Message: "m"}}}},
	}

	job.Merge(dbJob, msg)
	first := *dbJob.HintByName("axe")

	job.Merge(dbJob, msg)
	second := *dbJob.HintByName("axe")

	if first.Status != second.Status || len(first.Messages) != len(second.Messages) {
		t.Fatalf("duplicate merge changed hint: %+v -> %+v", first, second)
	}
}

func TestMerge_PartitionedTerminalsEquivalentToUnpartitioned(t *testing.T) {
	finished := time.Now()
	unpartitioned := newPendingJob("axe", "content-type")
	job.Merge(unpartitioned, &job.ResultMessage{
		Status:   job.StatusFinished,
		Finished: &finished,
		Hints: []job.HintResult{
			{Name: "axe", Status: job.HintWarning},
			{Name: "content-type", Status: job.HintPass},
		},
	})

	partitioned := newPendingJob("axe", "content-type")
	job.Merge(partitioned, &job.ResultMessage{
		Status:   job.StatusFinished,
		Finished: &finished,
		Hints:    []job.HintResult{{Name: "axe", Status: job.HintWarning}},
	})
	job.Merge(partitioned, &job.ResultMessage{
		Status:   job.StatusFinished,
		Finished: &finished,
		Hints:    []job.HintResult{{Name: "content-type", Status: job.HintPass}},
	})

	if partitioned.Status != unpartitioned.Status {
		t.Fatalf("partitioned status = %s, want %s", partitioned.Status, unpartitioned.Status)
	}
	for _, name := range []string{"axe", "content-type"} {
		a := partitioned.HintByName(name)
		b := unpartitioned.HintByName(name)
		if a.Status != b.Status {
			t.Fatalf("hint %s: partitioned=%s unpartitioned=%s", name, a.Status, b.Status)
		}
	}
}

func TestMerge_FinishedOnlyWhenAllHintsDecided(t *testing.T) {
	dbJob := newPendingJob("axe", "manifest-exists")
	finished := time.Now()
	job.Merge(dbJob, &job.ResultMessage{
		Status:   job.StatusFinished,
		Finished: &finished,
		Hints:    []job.HintResult{{Name: "axe", Status: job.HintPass}},
	})

	if dbJob.Status == job.StatusFinished {
		t.Fatalf("job finished while manifest-exists is still pending")
	}
	if dbJob.Status != job.StatusPending && dbJob.Status != job.StatusStarted {
		// pending is the expected resting state here, since no started
		// message was merged first; started is accepted as well
		t.Fatalf("unexpected status %s", dbJob.Status)
	}
}

func TestHighestSeverity(t *testing.T) {
	cases := []struct{ a, b, want job.HintStatus }{
		{job.HintPass, job.HintWarning, job.HintWarning},
		{job.HintError, job.HintWarning, job.HintError},
		{job.HintWarning, job.HintWarning, job.HintWarning},
	}
	for _, c := range cases {
		if got := job.HighestSeverity(c.a, c.b); got != c.want {
			t.Errorf("HighestSeverity(%s, %s) = %s, want %s", c.a, c.b, got, c.want)
		}
	}
}
