// Package job defines the durable Job record, its hint results, and the
// sub-job/ResultMessage projections that travel over the queues.
package job

import (
	"time"

	"github.com/google/uuid"
)

// Status is a Job's overall lifecycle state.
type Status string

const (
	StatusPending Status = "pending"
	StatusStarted Status = "started"
	StatusFinished Status = "finished"
	StatusError   Status = "error"
)

// HintStatus is the lifecycle state of a single hint.
type HintStatus string

const (
	HintPending HintStatus = "pending"
	HintPass    HintStatus = "pass"
	HintWarning HintStatus = "warning"
	HintError   HintStatus = "error"
	HintOff     HintStatus = "off"
)

// severityRank orders hint statuses for the "highest severity wins" rule
// in the engine-message bucketing (§4.1.1 of the pipeline spec).
var severityRank = map[HintStatus]int{
	HintPass:    0,
	HintWarning: 1,
	HintError:   2,
}

// HighestSeverity returns whichever of a, b ranks higher under
// error > warning > pass.
func HighestSeverity(a, b HintStatus) HintStatus {
	if severityRank[b] > severityRank[a] {
		return b
	}
	return a
}

// Message is a single engine finding attached to a hint.
type Message struct {
	HintID   string `json:"hintId"`
	Message  string `json:"message"`
	Location *string `json:"location,omitempty"`
	Severity *string `json:"severity,omitempty"`
}

// HintResult is the per-hint state carried on a Job and on messages.
type HintResult struct {
	Name     string     `json:"name"`
	Status   HintStatus `json:"status"`
	Messages []Message  `json:"messages,omitempty"`
}

// EngineError is the synthetic payload attached to an error-status
// ResultMessage or HintResult message.
type EngineError struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// ConfigEntry is one hint's configuration value inside a bundle: either
// a literal severity string ("off", "error", "warning"...) or a tuple
// whose first element is the severity and second is engine options.
// It has custom JSON (un)marshaling — see config_entry.go — since
// neither wire shape decodes into a plain struct.
type ConfigEntry struct {
	Severity string
	Options  map[string]any
}

// IsOff reports whether this configuration entry disables the hint.
func (c ConfigEntry) IsOff() bool {
	return c.Severity == "off"
}

// ConfigBundle is one configuration-partitioned slice of a Job: the set
// of hints it is responsible for, keyed by hint name.
type ConfigBundle struct {
	Hints map[string]ConfigEntry `json:"hints"`
}

// PartInfo identifies a sub-job's position among its siblings.
type PartInfo struct {
	Part       int `json:"part"`
	TotalParts int `json:"totalParts"`
}

// Job is the durable record, mutated only by the sync layer.
type Job struct {
	ID            uuid.UUID      `json:"id"`
	URL           string         `json:"url"`
	Status        Status         `json:"status"`
	Hints         []HintResult   `json:"hints"`
	Config        []ConfigBundle `json:"config"`
	Queued        time.Time      `json:"queued"`
	Started       *time.Time     `json:"started,omitempty"`
	Finished      *time.Time     `json:"finished,omitempty"`
	MaxRunTime    int            `json:"maxRunTime"`
	Error         *EngineError   `json:"error,omitempty"`
	EngineVersion string         `json:"engineVersion,omitempty"`
}

// HintByName finds a hint result by name, or nil if absent.
func (j *Job) HintByName(name string) *HintResult {
	for i := range j.Hints {
		if j.Hints[i].Name == name {
			return &j.Hints[i]
		}
	}
	return nil
}

// AllHintsDecided reports whether every hint on the job is non-pending.
func (j *Job) AllHintsDecided() bool {
	for _, h := range j.Hints {
		if h.Status == HintPending {
			return false
		}
	}
	return true
}

// SubJob is a Job projection carrying exactly one configuration bundle,
// the unit of work on the jobs queue.
type SubJob struct {
	ID         uuid.UUID    `json:"id"`
	URL        string       `json:"url"`
	Config     ConfigBundle `json:"config"`
	Hints      []HintResult `json:"hints"`
	PartInfo   PartInfo     `json:"partInfo"`
	MaxRunTime int          `json:"maxRunTime,omitempty"`
}

// HintNames returns the hint names this sub-job is responsible for:
// every hint its configuration bundle mentions, plus any hints already
// carried on its (possibly pre-seeded) hint list.
func (s *SubJob) HintNames() []string {
	seen := make(map[string]struct{}, len(s.Config.Hints)+len(s.Hints))
	var names []string
	for name := range s.Config.Hints {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	for _, h := range s.Hints {
		if _, ok := seen[h.Name]; !ok {
			seen[h.Name] = struct{}{}
			names = append(names, h.Name)
		}
	}
	return names
}

// ResultMessage is the results-queue payload: a sub-job with its hints
// populated and a terminal or started status.
type ResultMessage struct {
	ID            uuid.UUID    `json:"id"`
	PartInfo      PartInfo     `json:"partInfo"`
	Status        Status       `json:"status"`
	Hints         []HintResult `json:"hints"`
	Started       *time.Time   `json:"started,omitempty"`
	Finished      *time.Time   `json:"finished,omitempty"`
	Error         *EngineError `json:"error,omitempty"`
	EngineVersion string       `json:"engineVersion,omitempty"`
}
