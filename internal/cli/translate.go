package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/npmunifier/pkg/project"
)

func (c *CLI) translateCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Write package.json from the project configuration",
		Long: `Translate the project configuration into package.json.

Generated keys are merged into an existing manifest; keys the configuration
does not manage are kept. With --dry-run the merged result is printed and
nothing in the project is modified.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			prog := newProgress(loggerFromContext(ctx))

			var force project.OutputMode
			if dryRun {
				force = project.OutputTemporary
			}
			p, err := c.openProject(ctx, force)
			if err != nil {
				return err
			}
			defer p.Close()

			res := p.Result
			if dryRun {
				data, err := res.Document.Bytes()
				if err != nil {
					return err
				}
				fmt.Fprint(stdout, string(data))
				return nil
			}
			prog.done("Translated manifest")

			switch {
			case res.Mode == project.OutputMemory:
				printSuccess("Translated manifest in memory (%d keys)", res.Document.Len())
			case !res.Written:
				printInfo("Manifest up to date")
				printFile(res.Path)
				return nil
			default:
				printSuccess("Translated manifest")
				printFile(res.Path)
			}
			if len(res.Changed) > 0 {
				printDetail("changed: %s", strings.Join(res.Changed, ", "))
			}
			if res.Mode == project.OutputTemporary {
				printWarning("temporary output is removed on exit")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the merged manifest without writing it")
	return cmd
}
