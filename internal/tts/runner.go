package tts

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"sync"
)

type Command struct {
	Path string
	Args []string
}

type Outcome struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Runner executes a synthesis command. err is reserved for failures to run
// the command at all; a non-zero exit is reported through Outcome.
type Runner interface {
	Run(ctx context.Context, cmd Command, stdin []byte) (Outcome, error)
}

// ExecRunner spawns the engine as a child process. Calls are serialized
// because the engine is not safe to run concurrently from one process.
type ExecRunner struct {
	mu sync.Mutex
}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

func (r *ExecRunner) Run(ctx context.Context, c Command, stdin []byte) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Stdin = bytes.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	out := Outcome{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return out, nil
	case errors.As(err, &exitErr):
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	default:
		return out, err
	}
}
