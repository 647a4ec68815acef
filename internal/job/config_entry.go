package job

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON emits the bare string form when Options is empty, and
// the two-element tuple form otherwise, matching §6's wire format.
func (c ConfigEntry) MarshalJSON() ([]byte, error) {
	if len(c.Options) == 0 {
		return json.Marshal(c.Severity)
	}
	return json.Marshal([2]any{c.Severity, c.Options})
}

// UnmarshalJSON accepts both shapes §6 and the §8 scenarios use for a
// hint's config entry: a bare severity string ("warning"), or a
// 2-element tuple (["off", {}]) whose second element is the engine
// options passed through to the scan engine.
func (c *ConfigEntry) UnmarshalJSON(data []byte) error {
	var severity string
	if err := json.Unmarshal(data, &severity); err == nil {
		c.Severity = severity
		c.Options = nil
		return nil
	}

	var tuple [2]json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("config entry must be a severity string or a [severity, options] tuple: %w", err)
	}
	if err := json.Unmarshal(tuple[0], &severity); err != nil {
		return fmt.Errorf("config entry tuple's first element must be a severity string: %w", err)
	}
	var options map[string]any
	if err := json.Unmarshal(tuple[1], &options); err != nil {
		return fmt.Errorf("config entry tuple's second element must be an options object: %w", err)
	}
	c.Severity = severity
	c.Options = options
	return nil
}
