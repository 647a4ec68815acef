package worker_test

import (
	"testing"

	"github.com/google/uuid"

	"scanpipeline/internal/job"
	"scanpipeline/internal/worker"
)

func errSeverity() *string {
	s := "error"
	return &s
}

func subJobWith(hints map[string]job.ConfigEntry) job.SubJob {
	return job.SubJob{ID: uuid.New(), URL: "https://example.com", Config: job.ConfigBundle{Hints: hints}}
}

func TestResolveSuccess_OffHintStaysOff(t *testing.T) {
	sub := subJobWith(map[string]job.ConfigEntry{"axe": {Severity: "off"}})
	hints := worker.ResolveSuccess(&sub, nil)

	if len(hints) != 1 || hints[0].Status != job.HintOff {
		t.Fatalf("got %+v, want axe off", hints)
	}
}

func TestResolveSuccess_NoMessagesMeansPass(t *testing.T) {
	sub := subJobWith(map[string]job.ConfigEntry{"content-type": {Severity: "error"}})
	hints := worker.ResolveSuccess(&sub, nil)

	if len(hints) != 1 || hints[0].Status != job.HintPass {
		t.Fatalf("got %+v, want content-type pass", hints)
	}
}

func TestResolveSuccess_BucketsHighestSeverity(t *testing.T) {
	sub := subJobWith(map[string]job.ConfigEntry{"axe": {Severity: "error"}})
	messages := []job.Message{
		{HintID: "axe", Message: "warn finding"},
		{HintID: "axe", Message: "error finding", Severity: errSeverity()},
	}

	hints := worker.ResolveSuccess(&sub, messages)
	if len(hints) != 1 || hints[0].Status != job.HintError {
		t.Fatalf("got %+v, want axe error (highest severity wins)", hints)
	}
	if len(hints[0].Messages) != 2 {
		t.Fatalf("got %d messages, want both bucketed", len(hints[0].Messages))
	}
}

func TestResolveError_NonOffHintsBecomeError(t *testing.T) {
	sub := subJobWith(map[string]job.ConfigEntry{
		"axe":          {Severity: "error"},
		"manifest":     {Severity: "off"},
		"content-type": {Severity: "warning"},
	})

	hints := worker.ResolveError(&sub, &job.EngineError{Message: "engine crashed"})

	byName := make(map[string]job.HintResult)
	for _, h := range hints {
		byName[h.Name] = h
	}
	if byName["axe"].Status != job.HintError {
		t.Fatalf("axe = %s, want error", byName["axe"].Status)
	}
	if byName["manifest"].Status != job.HintOff {
		t.Fatalf("manifest = %s, want off", byName["manifest"].Status)
	}
	if byName["content-type"].Status != job.HintError {
		t.Fatalf("content-type = %s, want error", byName["content-type"].Status)
	}
}

func TestResolveTimeout_PendingHintsBecomePass(t *testing.T) {
	sub := subJobWith(map[string]job.ConfigEntry{"axe": {Severity: "error"}})
	sub.Hints = []job.HintResult{{Name: "axe", Status: job.HintPending}}

	hints := worker.ResolveTimeout(&sub)
	if len(hints) != 1 || hints[0].Status != job.HintPass {
		t.Fatalf("got %+v, want axe pass on timeout", hints)
	}
}

func TestResolveTimeout_AlreadyDecidedHintUntouched(t *testing.T) {
	sub := subJobWith(map[string]job.ConfigEntry{"axe": {Severity: "error"}})
	sub.Hints = []job.HintResult{{Name: "axe", Status: job.HintWarning}}

	hints := worker.ResolveTimeout(&sub)
	if hints[0].Status != job.HintWarning {
		t.Fatalf("got %s, want warning preserved", hints[0].Status)
	}
}
