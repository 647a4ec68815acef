package runner

import (
	"os"

	"scanpipeline/internal/engine"
)

// ReexecArg is the hidden subcommand the worker binary re-execs itself
// with to become a Scan Runner child (§4.2), avoiding a second binary
// to build and ship.
const ReexecArg = "__scanrunner__"

// ReqFD and RespFD are the extra file descriptors the worker passes to
// the child via exec.Cmd.ExtraFiles, carrying the IPC pipes.
const (
	ReqFD  = 3
	RespFD = 4
)

// Main is the child-process entrypoint: read the request, run the
// engine, write the response, exit. A bare SIGTERM/SIGINT (no response
// sent yet) terminates the process directly — the default Go signal
// behavior already satisfies "close cleanly, then exit" since Mock
// holds no resources across the single request it serves.
func Main() int {
	reqFile := os.NewFile(ReqFD, "scanrunner-req")
	respFile := os.NewFile(RespFD, "scanrunner-resp")
	defer reqFile.Close()
	defer respFile.Close()

	if err := RunOnce(reqFile, respFile, engine.NewMock()); err != nil {
		return 1
	}
	return 0
}
