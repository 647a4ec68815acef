package worker

import (
	"scanpipeline/internal/job"
)

// ResolveSuccess applies §4.1.1's hint-status resolution to a
// successful engine response: each hint the sub-job declares is
// resolved against the configuration bundle and the bucketed engine
// messages. Hints the sub-job doesn't mention are left untouched
// (still pending; a later sub-job is responsible).
func ResolveSuccess(sub *job.SubJob, messages []job.Message) []job.HintResult {
	buckets := make(map[string][]job.Message)
	for _, m := range messages {
		buckets[m.HintID] = append(buckets[m.HintID], m)
	}

	hints := cloneHints(sub.Hints)
	for _, name := range sub.HintNames() {
		entry, mentioned := sub.Config.Hints[name]
		h := findOrAppend(&hints, name)

		switch {
		case mentioned && entry.IsOff():
			h.Status = job.HintOff
			h.Messages = nil
		case len(buckets[name]) > 0:
			h.Status = bucketSeverity(buckets[name])
			h.Messages = buckets[name]
		case mentioned:
			h.Status = job.HintPass
			h.Messages = nil
		}
	}
	return hints
}

// ResolveError applies §4.1.2's rule for an ok:false engine response:
// every non-off hint the bundle mentions becomes error with a single
// synthetic message; off hints stay off; unmentioned hints stay
// pending.
func ResolveError(sub *job.SubJob, engineErr *job.EngineError) []job.HintResult {
	hints := cloneHints(sub.Hints)
	for name, entry := range sub.Config.Hints {
		h := findOrAppend(&hints, name)
		if entry.IsOff() {
			h.Status = job.HintOff
			h.Messages = nil
			continue
		}
		h.Status = job.HintError
		h.Messages = []job.Message{{HintID: name, Message: engineErr.Message}}
	}
	return hints
}

// ResolveTimeout applies §4.1's deadline behavior: every hint the
// sub-job was responsible for and that hasn't yet been decided is
// marked pass ("nothing found" semantics — flagged as Open Question
// (a): this spec adopts the observed source behavior as-is).
func ResolveTimeout(sub *job.SubJob) []job.HintResult {
	hints := cloneHints(sub.Hints)
	for _, name := range sub.HintNames() {
		h := findOrAppend(&hints, name)
		if h.Status == job.HintPending {
			h.Status = job.HintPass
		}
	}
	return hints
}

// bucketSeverity picks the highest severity among a hint's bucketed
// messages, per §4.1.1. A message without an explicit severity is
// treated as a warning: the engine reported a finding, which by
// definition outranks an unreported pass.
func bucketSeverity(messages []job.Message) job.HintStatus {
	status := job.HintWarning
	for _, m := range messages {
		status = job.HighestSeverity(status, messageSeverity(m))
	}
	return status
}

func messageSeverity(m job.Message) job.HintStatus {
	if m.Severity == nil {
		return job.HintWarning
	}
	switch *m.Severity {
	case "error":
		return job.HintError
	case "warning":
		return job.HintWarning
	default:
		return job.HintWarning
	}
}

func cloneHints(in []job.HintResult) []job.HintResult {
	out := make([]job.HintResult, len(in))
	copy(out, in)
	return out
}

func findOrAppend(hints *[]job.HintResult, name string) *job.HintResult {
	for i := range *hints {
		if (*hints)[i].Name == name {
			return &(*hints)[i]
		}
	}
	*hints = append(*hints, job.HintResult{Name: name, Status: job.HintPending})
	return &(*hints)[len(*hints)-1]
}
