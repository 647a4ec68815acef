// Package runner implements the Scan Runner: the single-shot child
// process spawned by the Worker Service to run the scan engine in
// isolation (§4.2). The IPC contract is exactly one request and one
// response (§6 "Child IPC"): the sub-job verbatim in, a
// {ok:true,messages} or {ok:false,error} reply out.
package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"scanpipeline/internal/engine"
	"scanpipeline/internal/job"
)

// Request is the IPC request body: the sub-job verbatim.
type Request struct {
	SubJob job.SubJob `json:"subJob"`
}

// Response is the IPC response body.
type Response struct {
	OK       bool             `json:"ok"`
	Messages []job.Message    `json:"messages,omitempty"`
	Error    *job.EngineError `json:"error,omitempty"`
}

// RunOnce reads a single Request from r, runs eng against it, and
// writes a single Response to w. It never returns an error for an
// engine failure — that is reported inside the Response — only for IO
// or malformed-request failures at the IPC boundary itself.
func RunOnce(r io.Reader, w io.Writer, eng engine.Engine) error {
	var req Request
	dec := json.NewDecoder(bufio.NewReader(r))
	if err := dec.Decode(&req); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}

	resp := scan(req, eng)

	enc := json.NewEncoder(w)
	if err := enc.Encode(&resp); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return nil
}

func scan(req Request, eng engine.Engine) (resp Response) {
	defer func() {
		// A panicking engine is reported as an ok:false response, not a
		// bare process crash, so the parent always gets a terminal
		// signal rather than having to infer failure from exit status.
		if r := recover(); r != nil {
			resp = Response{OK: false, Error: &job.EngineError{Message: fmt.Sprintf("panic: %v", r)}}
		}
	}()

	result := eng.Scan(context.Background(), req.SubJob.URL, req.SubJob.Config)
	if result.Err != nil {
		return Response{OK: false, Error: &job.EngineError{Message: result.Err.Error()}}
	}
	return Response{OK: true, Messages: result.Messages}
}
