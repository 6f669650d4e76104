package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/npmunifier/pkg/manifest"
	"github.com/matzehuels/npmunifier/pkg/project"
)

// manifestCommand groups commands inspecting the project's package.json.
func (c *CLI) manifestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect the project's package.json",
	}

	cmd.AddCommand(c.manifestPathCommand())
	cmd.AddCommand(c.manifestShowCommand())

	return cmd
}

func (c *CLI) manifestPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the manifest path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := project.LoadConfig(c.configPath)
			if err != nil {
				return err
			}
			path, err := manifest.ResolvePath(cfg.ProjectDir())
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, path)
			return nil
		},
	}
}

func (c *CLI) manifestShowCommand() *cobra.Command {
	var generated bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the manifest on disk",
		Long: `Print the manifest on disk.

With --generated, print only what the configuration generates, without
merging it into the existing manifest.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var doc *manifest.Document
			if generated {
				p, err := c.openProject(cmd.Context(), project.OutputMemory)
				if err != nil {
					return err
				}
				defer p.Close()
				doc = p.Result.Document
			} else {
				cfg, err := project.LoadConfig(c.configPath)
				if err != nil {
					return err
				}
				store, err := manifest.NewStore(cfg.ProjectDir(), manifest.WithStoreLogger(loggerFromContext(cmd.Context())))
				if err != nil {
					return err
				}
				if doc, err = store.Load(); err != nil {
					return err
				}
			}

			data, err := doc.Bytes()
			if err != nil {
				return err
			}
			fmt.Fprint(stdout, string(data))
			return nil
		},
	}

	cmd.Flags().BoolVar(&generated, "generated", false, "print the generated manifest only")
	return cmd
}
