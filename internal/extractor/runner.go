package extractor

import (
	"bytes"
	"os/exec"
	"time"
)

// waitDelay bounds how long Run waits for output pipes after the process
// exits or the context is cancelled.
const waitDelay = 5 * time.Second

// Runner executes a prepared command and returns its captured output.
type Runner interface {
	Run(cmd *exec.Cmd) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands directly.
type ExecRunner struct{}

// Run drains both output streams and waits for the process on every path,
// including cancellation of the command's context.
func (ExecRunner) Run(cmd *exec.Cmd) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
