package project

import (
	"context"
	"io"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/npmunifier/pkg/errors"
	"github.com/matzehuels/npmunifier/pkg/manifest"
	"github.com/matzehuels/npmunifier/pkg/pm"
	"github.com/matzehuels/npmunifier/pkg/runner"
)

// Project is a Node.js project driven by a project configuration: its
// manifest is translated on open and commands run through the configured
// package manager.
type Project struct {
	Config *Config
	Result *Result

	manager *pm.Manager
	logger  *log.Logger
}

type openOptions struct {
	logger         *log.Logger
	runner         runner.Runner
	output         OutputMode
	packageManager string
	tempDir        string
	stdout, stderr io.Writer
}

// Option configures Open and New.
type Option func(*openOptions)

// WithLogger sets the logger used by the project and everything it creates.
func WithLogger(l *log.Logger) Option {
	return func(o *openOptions) { o.logger = l }
}

// WithRunner replaces the process runner.
func WithRunner(r runner.Runner) Option {
	return func(o *openOptions) { o.runner = r }
}

// WithOutputMode overrides the configured output mode.
func WithOutputMode(m OutputMode) Option {
	return func(o *openOptions) { o.output = m }
}

// WithPackageManager overrides the configured package manager.
func WithPackageManager(name string) Option {
	return func(o *openOptions) { o.packageManager = name }
}

// WithTemporaryDir sets the parent directory for temporary output.
func WithTemporaryDir(dir string) Option {
	return func(o *openOptions) { o.tempDir = dir }
}

// WithStreams sets where command output goes. Defaults to the process's own.
func WithStreams(stdout, stderr io.Writer) Option {
	return func(o *openOptions) { o.stdout, o.stderr = stdout, stderr }
}

// Open loads the configuration at path and opens the project it describes.
func Open(ctx context.Context, path string, opts ...Option) (*Project, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg, opts...)
}

// New translates cfg and prepares the package manager, if one is configured.
// Callers must Close the project to release temporary output.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Project, error) {
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.New(io.Discard)
	}

	// Overrides apply to the project's own copy; cfg stays as loaded.
	c := *cfg
	c.Options.Commands = slices.Clone(cfg.Options.Commands)
	if o.output != "" {
		c.Options.Output = o.output
	}
	if o.packageManager != "" {
		c.Options.PackageManager = o.packageManager
	}
	cfg = &c
	for _, key := range cfg.Unknown {
		o.logger.Debug("unknown config key", "key", key)
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCanceled, err, "open project")
	}

	tr := NewTranslator(WithTranslatorLogger(o.logger), WithTempDir(o.tempDir))
	res, err := tr.Translate(cfg)
	if err != nil {
		return nil, err
	}
	p := &Project{Config: cfg, Result: res, logger: o.logger}

	if cfg.Options.PackageManager == "" {
		return p, nil
	}
	m, err := p.newManager(o)
	if err != nil {
		_ = res.Cleanup()
		return nil, err
	}
	p.manager = m
	return p, nil
}

func (p *Project) newManager(o openOptions) (*pm.Manager, error) {
	opts := p.Config.Options
	v, err := pm.Select(opts.PackageManager, p.Config.ProjectDir())
	if err != nil {
		return nil, err
	}
	if opts.PackageManagerBin != "" {
		v = v.WithBin(opts.PackageManagerBin)
	}
	if opts.Commands != nil {
		if v, err = v.WithCommands(opts.Commands); err != nil {
			return nil, err
		}
	}
	p.logger.Debug("package manager selected", "name", v.Name, "bin", v.Bin)

	mopts := []pm.Option{pm.WithLogger(p.logger)}
	if o.runner != nil {
		mopts = append(mopts, pm.WithRunner(o.runner))
	}
	if o.stdout != nil || o.stderr != nil {
		mopts = append(mopts, pm.WithOutput(o.stdout, o.stderr))
	}
	return pm.New(v, p.Result.Store(), mopts...)
}

// Manifest returns the store holding the translated manifest.
func (p *Project) Manifest() *manifest.Store { return p.Result.Store() }

// Manager returns the package manager facade. Fails with NO_PACKAGE_MANAGER
// when none is configured.
func (p *Project) Manager() (*pm.Manager, error) {
	if p.manager == nil {
		return nil, errors.New(errors.ErrCodeNoPackageManager, "no package manager configured (set package_manager in [tool.%s])", SectionName)
	}
	return p.manager, nil
}

// Run executes a logical command and waits for it. See [pm.Manager.Run].
func (p *Project) Run(ctx context.Context, command string, args ...string) (int, error) {
	m, err := p.Manager()
	if err != nil {
		return -1, err
	}
	return m.Run(ctx, command, args...)
}

// Start launches a logical command without waiting. See [pm.Manager.Start].
func (p *Project) Start(ctx context.Context, command string, args ...string) (*runner.Handle, error) {
	m, err := p.Manager()
	if err != nil {
		return nil, err
	}
	return m.Start(ctx, command, args...)
}

// Close releases temporary output.
func (p *Project) Close() error {
	return p.Result.Cleanup()
}
