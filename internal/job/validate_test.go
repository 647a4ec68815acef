package job_test

import (
	"testing"

	"scanpipeline/internal/job"
)

func TestValidate_RejectsBadURL(t *testing.T) {
	sub := job.SubJob{URL: "not-a-url", Config: job.ConfigBundle{Hints: map[string]job.ConfigEntry{"axe": {Severity: "error"}}}}
	if err := sub.Validate(); err == nil {
		t.Fatal("expected an error for a malformed URL")
	}
}

func TestValidate_RejectsNegativeRunTime(t *testing.T) {
	sub := job.SubJob{URL: "https://example.com", MaxRunTime: -1}
	if err := sub.Validate(); err == nil {
		t.Fatal("expected an error for negative max run time")
	}
}

func TestValidate_RejectsUnconfiguredSeverity(t *testing.T) {
	sub := job.SubJob{URL: "https://example.com", Config: job.ConfigBundle{Hints: map[string]job.ConfigEntry{"axe": {}}}}
	if err := sub.Validate(); err == nil {
		t.Fatal("expected an error for a hint with an empty severity")
	}
}

func TestValidate_AcceptsWellFormedSubJob(t *testing.T) {
	sub := job.SubJob{URL: "https://example.com", Config: job.ConfigBundle{Hints: map[string]job.ConfigEntry{"axe": {Severity: "error"}}}}
	if err := sub.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
