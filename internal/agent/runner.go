package agent

import (
	"context"
	"errors"
	"os/exec"
	"sync"
)

// JobRunner runs one kernel process at a time.
type JobRunner interface {
	Start(ctx context.Context, spec KernelSpec) error
	Stop() error
	Running() bool
}

var errNoCommand = errors.New("kernel spec has no command")

// ExecRunner runs spec.Command as a child process. Starting a new job kills
// the previous one.
type ExecRunner struct {
	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

func (r *ExecRunner) Start(ctx context.Context, spec KernelSpec) error {
	if spec.Command == "" {
		return errNoCommand
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	cmd := exec.CommandContext(ctx, spec.Command, spec.Args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()
	r.cmd, r.done = cmd, done
	return nil
}

func (r *ExecRunner) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	return nil
}

func (r *ExecRunner) stopLocked() {
	if r.cmd == nil {
		return
	}
	_ = r.cmd.Process.Kill()
	<-r.done
	r.cmd, r.done = nil, nil
}

func (r *ExecRunner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}
