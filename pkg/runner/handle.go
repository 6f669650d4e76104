package runner

import (
	"context"
	"io"
	"os/exec"
	"sync"

	"github.com/matzehuels/npmunifier/pkg/errors"
)

// Handle is a live, detached process started by [Exec.Start].
//
// The caller owns the handle: it must consume Output and then call Wait, or
// call Kill. Output must be read to EOF before Wait, since Wait closes the
// pipe once the process exits.
type Handle struct {
	ctx    context.Context
	cmd    *exec.Cmd
	output io.Reader

	once sync.Once
	code int
	err  error
}

// Pid returns the operating system process id.
func (h *Handle) Pid() int {
	return h.cmd.Process.Pid
}

// Argv returns the argument vector the process was started with.
func (h *Handle) Argv() []string {
	return h.cmd.Args
}

// Output returns the process's standard output with standard error merged in.
func (h *Handle) Output() io.Reader {
	return h.output
}

// Wait blocks until the process exits and returns its exit code.
// It is safe to call more than once; later calls return the first result.
func (h *Handle) Wait() (int, error) {
	h.once.Do(func() {
		h.code, h.err = exitStatus(h.ctx, h.cmd.Wait())
	})
	return h.code, h.err
}

// Kill terminates the process (and its process group on unix).
// The caller still calls Wait to release resources.
func (h *Handle) Kill() error {
	if err := killProcGroup(h.cmd); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "kill process %d", h.Pid())
	}
	return nil
}

// Collect reads all remaining output and waits for the process to exit.
func (h *Handle) Collect() ([]byte, int, error) {
	out, readErr := io.ReadAll(h.output)
	code, err := h.Wait()
	if err != nil {
		return out, code, err
	}
	if readErr != nil {
		return out, code, errors.Wrap(errors.ErrCodeInternal, readErr, "read process output")
	}
	return out, code, nil
}
