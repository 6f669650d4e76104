package pm

import (
	"context"
	"io"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/npmunifier/pkg/errors"
	"github.com/matzehuels/npmunifier/pkg/runner"
)

// Locator yields the directory holding a project's manifest.
// *manifest.Store implements it.
type Locator interface {
	Dir() (string, error)
}

// Dir is a Locator for an already known directory.
type Dir string

// Dir returns d unchanged.
func (d Dir) Dir() (string, error) { return string(d), nil }

// Manager is the uniform command surface over one package-manager variant,
// bound to one manifest directory.
//
// A Manager is meant for single-owner use. Managers and stores operating on
// the same manifest path from several goroutines must be serialized by the
// caller.
type Manager struct {
	variant Variant
	dir     string
	runner  runner.Runner
	logger  *log.Logger
	env     []string
	stdout  io.Writer
	stderr  io.Writer
}

// Option configures a Manager.
type Option func(*Manager)

// WithRunner sets the process runner. Defaults to runner.New.
func WithRunner(r runner.Runner) Option {
	return func(m *Manager) { m.runner = r }
}

// WithLogger sets the logger. Defaults to a discarding logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithEnv sets the environment of spawned processes.
func WithEnv(env []string) Option {
	return func(m *Manager) { m.env = slices.Clone(env) }
}

// WithOutput redirects the streams of waited invocations.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(m *Manager) {
		m.stdout = stdout
		m.stderr = stderr
	}
}

// New binds variant v to the manifest directory reported by loc.
func New(v Variant, loc Locator, opts ...Option) (*Manager, error) {
	if v.Bin == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "variant %q has no executable", v.Name)
	}
	dir, err := loc.Dir()
	if err != nil {
		return nil, err
	}

	m := &Manager{variant: v.clone(), dir: dir}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = log.New(io.Discard)
	}
	if m.runner == nil {
		m.runner = runner.New(m.logger)
	}
	return m, nil
}

// Variant returns a copy of the bound variant.
func (m *Manager) Variant() Variant { return m.variant.clone() }

// Dir returns the working directory of all invocations.
func (m *Manager) Dir() string { return m.dir }

// Commands returns the allow-list of the bound variant.
func (m *Manager) Commands() []string { return slices.Clone(m.variant.Commands) }

// Supports reports whether the logical command is registered.
func (m *Manager) Supports(name string) bool { return m.variant.Supports(name) }

// Command looks up a logical command and binds it to this manager.
// It fails with an *errors.UnsupportedCommandError for unregistered names.
func (m *Manager) Command(name string) (Command, error) {
	token, err := m.variant.Token(name)
	if err != nil {
		m.logger.Debug("unsupported command", "manager", m.variant.Name, "command", name)
		return Command{}, err
	}
	return Command{Name: Normalize(name), Token: token, m: m}, nil
}

// Run invokes a logical command and waits for it to exit.
// Nonzero exit codes are returned as values.
func (m *Manager) Run(ctx context.Context, name string, args ...string) (int, error) {
	cmd, err := m.Command(name)
	if err != nil {
		return -1, err
	}
	return cmd.Run(ctx, args...)
}

// Start invokes a logical command without waiting.
// The caller owns the returned handle.
func (m *Manager) Start(ctx context.Context, name string, args ...string) (*runner.Handle, error) {
	cmd, err := m.Command(name)
	if err != nil {
		return nil, err
	}
	return cmd.Start(ctx, args...)
}

// Command is a logical command bound to a Manager.
type Command struct {
	Name  string // Normalized logical name
	Token string // CLI subcommand token; empty for a bare invocation
	m     *Manager
}

// Invocation builds the runner invocation for the given arguments.
func (c Command) Invocation(args ...string) runner.Invocation {
	return runner.Invocation{
		Dir:     c.m.dir,
		Bin:     c.m.variant.Bin,
		Command: c.Token,
		Args:    slices.Clone(args),
		Env:     c.m.env,
		Stdout:  c.m.stdout,
		Stderr:  c.m.stderr,
	}
}

// Run executes the command and waits for it to exit.
func (c Command) Run(ctx context.Context, args ...string) (int, error) {
	inv := c.Invocation(args...)
	c.m.logger.Info("running", "cmd", inv.Argv(), "dir", inv.Dir)
	code, err := c.m.runner.Run(ctx, inv)
	if err != nil {
		return code, err
	}
	if code != 0 {
		c.m.logger.Warn("command exited with nonzero status", "cmd", c.Name, "code", code)
	}
	return code, nil
}

// Start launches the command detached.
func (c Command) Start(ctx context.Context, args ...string) (*runner.Handle, error) {
	inv := c.Invocation(args...)
	c.m.logger.Info("starting", "cmd", inv.Argv(), "dir", inv.Dir)
	return c.m.runner.Start(ctx, inv)
}
