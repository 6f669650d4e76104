// Package runner invokes external package-manager executables.
//
// An [Invocation] describes one call: executable, optional subcommand token,
// arguments and working directory. [Exec] runs it either synchronously
// ([Exec.Run], blocking until exit) or detached ([Exec.Start], returning a
// [Handle] whose stderr is merged into stdout).
//
// A nonzero exit status is returned as a plain value, never as an error.
// Errors are reserved for failures of the call itself:
//   - INVALID_WORKING_DIRECTORY when Dir does not exist or is not a directory
//   - LAUNCH_FAILURE when the executable is missing or cannot be executed
//   - CANCELED when ctx is done before or while the process runs
//
// No timeouts are imposed. Callers wanting bounded waits cancel ctx, which
// terminates the process (its whole process group on unix).
package runner

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"os/exec"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/npmunifier/pkg/errors"
)

// Invocation is a single call of an external executable.
type Invocation struct {
	Dir     string   // Working directory; must exist. Empty means ".".
	Bin     string   // Executable name or path (e.g., "npm", "/usr/local/bin/pnpm")
	Command string   // Subcommand token; empty means bare invocation
	Args    []string // Arguments following the subcommand token
	Env     []string // Environment; nil inherits the current process environment

	// Streams for Run. Nil values inherit the current process's streams.
	// Start ignores them: the handle owns a merged output pipe instead.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Argv returns the argument vector [Bin, Command?, Args...].
// The command token is omitted when empty.
func (inv Invocation) Argv() []string {
	argv := make([]string, 0, len(inv.Args)+2)
	argv = append(argv, inv.Bin)
	if inv.Command != "" {
		argv = append(argv, inv.Command)
	}
	return append(argv, inv.Args...)
}

// WorkDir returns the effective working directory.
func (inv Invocation) WorkDir() string {
	if inv.Dir == "" {
		return "."
	}
	return inv.Dir
}

// Runner launches invocations. [Exec] is the process-spawning implementation;
// tests substitute recording fakes.
type Runner interface {
	// Run blocks until the process exits and returns its exit code.
	Run(ctx context.Context, inv Invocation) (int, error)
	// Start launches the process and returns immediately. The caller owns
	// the returned handle and must Wait on it or Kill it.
	Start(ctx context.Context, inv Invocation) (*Handle, error)
}

// Exec runs invocations as OS processes.
type Exec struct {
	Logger *log.Logger
}

// New creates an Exec runner. If logger is nil, logging is discarded.
func New(logger *log.Logger) *Exec {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Exec{Logger: logger}
}

// Run executes inv and waits for it to finish.
func (r *Exec) Run(ctx context.Context, inv Invocation) (int, error) {
	cmd, err := r.command(ctx, inv)
	if err != nil {
		return -1, err
	}
	cmd.Stdin = orReader(inv.Stdin, os.Stdin)
	cmd.Stdout = orWriter(inv.Stdout, os.Stdout)
	cmd.Stderr = orWriter(inv.Stderr, os.Stderr)

	if err := start(ctx, cmd); err != nil {
		return -1, err
	}
	code, err := exitStatus(ctx, cmd.Wait())
	r.Logger.Debug("process exited", "argv", cmd.Args, "code", code)
	return code, err
}

// Start launches inv without waiting. Standard error is merged into standard
// output, which is readable from [Handle.Output].
func (r *Exec) Start(ctx context.Context, inv Invocation) (*Handle, error) {
	cmd, err := r.command(ctx, inv)
	if err != nil {
		return nil, err
	}
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "create output pipe")
	}
	cmd.Stderr = cmd.Stdout

	if err := start(ctx, cmd); err != nil {
		return nil, err
	}
	r.Logger.Debug("process detached", "argv", cmd.Args, "pid", cmd.Process.Pid)
	return &Handle{ctx: ctx, cmd: cmd, output: out}, nil
}

func (r *Exec) command(ctx context.Context, inv Invocation) (*exec.Cmd, error) {
	if inv.Bin == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "executable name cannot be empty")
	}
	dir := inv.WorkDir()
	if err := checkDir(dir); err != nil {
		return nil, err
	}

	argv := inv.Argv()
	r.Logger.Debug("exec", "argv", argv, "dir", dir)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = inv.Env
	setProcGroup(cmd)
	cmd.Cancel = func() error {
		return killProcGroup(cmd)
	}
	return cmd, nil
}

func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidWorkingDirectory, err, "working directory %s", dir)
	}
	if !info.IsDir() {
		return errors.New(errors.ErrCodeInvalidWorkingDirectory, "working directory %s is not a directory", dir)
	}
	return nil
}

// start launches cmd, classifying failures. A done context wins over any
// launch error since exec refuses to start in that case.
func start(ctx context.Context, cmd *exec.Cmd) error {
	err := cmd.Start()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return errors.Wrap(errors.ErrCodeCanceled, ctx.Err(), "%s not started", cmd.Path)
	}
	return errors.Wrap(errors.ErrCodeLaunchFailure, err, "start %s", cmd.Args[0])
}

// exitStatus converts the result of cmd.Wait into an exit code.
func exitStatus(ctx context.Context, err error) (int, error) {
	if ctx.Err() != nil {
		return -1, errors.Wrap(errors.ErrCodeCanceled, ctx.Err(), "process terminated")
	}
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, errors.Wrap(errors.ErrCodeInternal, err, "wait for process")
}

func orReader(r, fallback io.Reader) io.Reader {
	if r != nil {
		return r
	}
	return fallback
}

func orWriter(w, fallback io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return fallback
}

// Ensure Exec implements Runner.
var _ Runner = (*Exec)(nil)
