package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/npmunifier/pkg/buildinfo"
	"github.com/matzehuels/npmunifier/pkg/project"
)

const appName = "npmunifier"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// ExitError carries a nonzero exit status of a package manager command.
// main exits with Code without printing anything further.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath     string
	output         string
	packageManager string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger:     newLogger(w, level),
		configPath: project.DefaultConfigFile,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "One command surface for npm, pnpm and yarn",
		Long: `npmunifier runs npm, pnpm and yarn through a single set of logical commands
and keeps package.json in sync with the project configuration in pyproject.toml.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.StringVarP(&c.configPath, "config", "c", project.DefaultConfigFile, "project configuration file (TOML or YAML)")
	pf.StringVarP(&c.output, "output", "o", "", "override output mode: temporary, memory or persistent")
	pf.StringVarP(&c.packageManager, "package-manager", "p", "", "override package manager: npm, pnpm, yarn, auto or a binary")

	root.AddCommand(c.translateCommand())
	root.AddCommand(c.runCommand())
	root.AddCommand(c.commandsCommand())
	root.AddCommand(c.manifestCommand())
	root.AddCommand(c.detectCommand())
	root.AddCommand(c.completionCommand())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(stdout, buildinfo.String())
		},
	})

	return root
}

// openProject opens the configured project, applying flag overrides.
// force, when non-empty, wins over both the flag and the configuration.
func (c *CLI) openProject(ctx context.Context, force project.OutputMode) (*project.Project, error) {
	opts := []project.Option{project.WithLogger(loggerFromContext(ctx))}

	mode := force
	if mode == "" && c.output != "" {
		m, err := project.ParseOutputMode(c.output)
		if err != nil {
			return nil, err
		}
		mode = m
	}
	if mode != "" {
		opts = append(opts, project.WithOutputMode(mode))
	}
	if c.packageManager != "" {
		opts = append(opts, project.WithPackageManager(c.packageManager))
	}
	return project.Open(ctx, c.configPath, opts...)
}
