// Package engine models the scan engine invoked by the Scan Runner: a
// black box from the core's perspective (§1 "Out of scope... the scan
// engine itself"). Engine is the seam the Scan Runner depends on; Mock
// is the only implementation this repository ships, standing in for
// the real third-party scanning library.
package engine

import (
	"context"

	"scanpipeline/internal/job"
)

// Result is what an engine run reports back to the Scan Runner: either
// a list of messages, or an error.
type Result struct {
	Messages []job.Message
	Err      error
}

// Engine runs a scan against a URL using a configuration bundle.
type Engine interface {
	Scan(ctx context.Context, url string, cfg job.ConfigBundle) Result
}
