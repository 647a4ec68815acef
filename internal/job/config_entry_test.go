package job_test

import (
	"encoding/json"
	"testing"

	"scanpipeline/internal/job"
)

func TestConfigEntry_UnmarshalBareString(t *testing.T) {
	var entry job.ConfigEntry
	if err := json.Unmarshal([]byte(`"warning"`), &entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Severity != "warning" || entry.Options != nil {
		t.Fatalf("got %+v, want severity=warning options=nil", entry)
	}
}

func TestConfigEntry_UnmarshalTuple(t *testing.T) {
	var entry job.ConfigEntry
	if err := json.Unmarshal([]byte(`["off", {}]`), &entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Severity != "off" {
		t.Fatalf("got severity %q, want off", entry.Severity)
	}
	if entry.Options == nil || len(entry.Options) != 0 {
		t.Fatalf("got options %+v, want empty non-nil map", entry.Options)
	}
}

func TestConfigEntry_UnmarshalTupleWithOptions(t *testing.T) {
	var entry job.ConfigEntry
	if err := json.Unmarshal([]byte(`["error", {"maxDepth": 3}]`), &entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Severity != "error" {
		t.Fatalf("got severity %q, want error", entry.Severity)
	}
	if got, ok := entry.Options["maxDepth"]; !ok || got.(float64) != 3 {
		t.Fatalf("got options %+v, want maxDepth=3", entry.Options)
	}
}

func TestConfigEntry_UnmarshalRejectsBadShape(t *testing.T) {
	var entry job.ConfigEntry
	if err := json.Unmarshal([]byte(`42`), &entry); err == nil {
		t.Fatal("expected an error for a number, which is neither a string nor a tuple")
	}
}

func TestConfigEntry_UnmarshalBundle(t *testing.T) {
	var bundle job.ConfigBundle
	raw := []byte(`{"hints":{"axe":"warning","content-type":"error","disown-opener":["off",{}]}}`)
	if err := json.Unmarshal(raw, &bundle); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bundle.Hints["axe"].Severity != "warning" {
		t.Fatalf("got axe severity %q, want warning", bundle.Hints["axe"].Severity)
	}
	if bundle.Hints["content-type"].Severity != "error" {
		t.Fatalf("got content-type severity %q, want error", bundle.Hints["content-type"].Severity)
	}
	if !bundle.Hints["disown-opener"].IsOff() {
		t.Fatalf("got disown-opener %+v, want off", bundle.Hints["disown-opener"])
	}
}

func TestConfigEntry_MarshalRoundTrip(t *testing.T) {
	bare := job.ConfigEntry{Severity: "warning"}
	data, err := json.Marshal(bare)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `"warning"` {
		t.Fatalf("got %s, want bare string form", data)
	}

	withOptions := job.ConfigEntry{Severity: "off", Options: map[string]any{"maxDepth": 3.0}}
	data, err = json.Marshal(withOptions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var roundTripped job.ConfigEntry
	if err := json.Unmarshal(data, &roundTripped); err != nil {
		t.Fatalf("unexpected error round-tripping: %v", err)
	}
	if roundTripped.Severity != "off" || roundTripped.Options["maxDepth"].(float64) != 3 {
		t.Fatalf("got %+v after round-trip", roundTripped)
	}
}
