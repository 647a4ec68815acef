package engine

import (
	"context"
	"fmt"
	"math/rand"

	"scanpipeline/internal/job"
)

// Mock is a randomized stand-in for the real scan engine, mirroring
// the teacher's mock provider: a handful of tunable outcome rates
// instead of a live network call.
type Mock struct {
	name        string
	errorRate   float64
	warningRate float64
}

// NewMock returns a Mock with reasonable default outcome rates.
func NewMock() *Mock {
	return &Mock{name: "mock-engine", errorRate: 0.05, warningRate: 0.2}
}

func (m *Mock) Name() string { return m.name }

// Scan produces zero or more messages per non-off hint in cfg, with a
// severity drawn from the mock's configured rates.
func (m *Mock) Scan(ctx context.Context, url string, cfg job.ConfigBundle) Result {
	var messages []job.Message
	for name, entry := range cfg.Hints {
		if entry.IsOff() {
			continue
		}
		r := rand.Float64()
		switch {
		case r < m.errorRate:
			messages = append(messages, job.Message{HintID: name, Message: fmt.Sprintf("%s: mock error finding", name), Severity: severityPtr("error")})
		case r < m.errorRate+m.warningRate:
			messages = append(messages, job.Message{HintID: name, Message: fmt.Sprintf("%s: mock warning finding", name), Severity: severityPtr("warning")})
		}
	}
	return Result{Messages: messages}
}

func severityPtr(s string) *string { return &s }
