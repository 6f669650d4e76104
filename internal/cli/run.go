package cli

import (
	"context"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/npmunifier/pkg/project"
	"github.com/matzehuels/npmunifier/pkg/runner"
)

func (c *CLI) runCommand() *cobra.Command {
	var detach, watch bool

	cmd := &cobra.Command{
		Use:   "run <command> [args...]",
		Short: "Run a logical command with the configured package manager",
		Long: `Run a logical command such as install, test or run-script.

The command is mapped onto the selected package manager's own subcommand;
arguments after the command name are passed through unchanged. The package
manager's exit status becomes npmunifier's exit status.

With --detach the command is started without waiting and its combined
output is streamed as it arrives. --watch shows it in a live view instead.`,
		Example: `  npmunifier run install --frozen-lockfile
  npmunifier run run-script build
  npmunifier run --watch test`,
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: c.completeCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := c.openProject(ctx, "")
			if err != nil {
				return err
			}
			defer p.Close()

			name, rest := args[0], args[1:]
			if !detach && !watch {
				code, err := p.Run(ctx, name, rest...)
				if err != nil {
					return err
				}
				return exitStatus(code)
			}

			h, err := p.Start(ctx, name, rest...)
			if err != nil {
				return err
			}
			var code int
			if watch {
				code, err = watchHandle(ctx, h)
			} else {
				code, err = streamHandle(h)
			}
			if err != nil {
				return err
			}
			return exitStatus(code)
		},
	}

	cmd.Flags().SetInterspersed(false)
	cmd.Flags().BoolVarP(&detach, "detach", "d", false, "start without waiting and stream combined output")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "show combined output in a live view")
	return cmd
}

// streamHandle copies a detached command's output to stdout, then waits.
func streamHandle(h *runner.Handle) (int, error) {
	printInfo("started %s (pid %d)", strings.Join(h.Argv(), " "), h.Pid())
	if _, err := io.Copy(stdout, h.Output()); err != nil {
		_ = h.Kill()
	}
	return h.Wait()
}

func exitStatus(code int) error {
	if code == 0 {
		return nil
	}
	return &ExitError{Code: code}
}

// completeCommands completes logical command names for the configured
// package manager without writing anything.
func (c *CLI) completeCommands(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveDefault
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = withLogger(ctx, log.New(io.Discard))
	p, err := c.openProject(ctx, project.OutputMemory)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	defer p.Close()
	m, err := p.Manager()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return m.Commands(), cobra.ShellCompDirectiveNoFileComp
}
