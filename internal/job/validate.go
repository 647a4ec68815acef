package job

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type subJobValidation struct {
	URL        string `validate:"required,url"`
	MaxRunTime int    `validate:"gte=0"`
}

// Validate checks the fields of a SubJob that the Worker Service
// cannot safely proceed without: a well-formed URL, a non-negative
// run-time budget, and a non-empty severity on every configured hint
// (ConfigEntry's own UnmarshalJSON already rejects the wrong wire
// shape entirely; this only catches a well-formed but empty severity).
func (s *SubJob) Validate() error {
	v := subJobValidation{URL: s.URL, MaxRunTime: s.MaxRunTime}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid sub-job: %w", err)
	}
	for name, entry := range s.Config.Hints {
		if entry.Severity == "" {
			return fmt.Errorf("invalid sub-job: hint %q has no configured severity", name)
		}
	}
	return nil
}
