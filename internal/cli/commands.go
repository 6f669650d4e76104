package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/npmunifier/pkg/errors"
	"github.com/matzehuels/npmunifier/pkg/pm"
	"github.com/matzehuels/npmunifier/pkg/project"
)

// commandsCommand lists the logical commands of the configured package manager.
func (c *CLI) commandsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List logical commands and what they invoke",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := c.openProject(cmd.Context(), project.OutputMemory)
			if err != nil {
				return err
			}
			defer p.Close()

			m, err := p.Manager()
			if err != nil {
				return err
			}

			v := m.Variant()
			rows := make([][]string, 0, len(v.Commands))
			for _, name := range v.Commands {
				bound, err := m.Command(name)
				if err != nil {
					return err
				}
				rows = append(rows, []string{name, strings.Join(bound.Invocation().Argv(), " ")})
			}

			printKeyValue("manager", v.Name)
			printKeyValue("directory", m.Dir())
			if len(rows) == 0 {
				printWarning("%s has no commands configured", v.Name)
				return nil
			}
			fmt.Fprintln(stdout, commandTable(rows))
			printNextStep("Run one", appName+" run "+v.Commands[0])
			return nil
		},
	}
}

func commandTable(rows [][]string) string {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Command", "Invokes").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			switch {
			case row == table.HeaderRow:
				return headerStyle.Padding(0, 1)
			case col == 1:
				return s.Foreground(colorBlue)
			}
			return s
		}).
		String()
}

// detectCommand reports the package manager implied by lock files.
func (c *CLI) detectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "detect [dir]",
		Short: "Detect the package manager from lock files",
		Long: `Detect the package manager from lock files in dir.

Without dir, the node project directory of the configuration is used, or the
current directory when there is no configuration file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := c.detectDir(args)
			if err != nil {
				return err
			}
			v, ok := pm.Detect(dir)
			if !ok {
				return errors.New(errors.ErrCodeUnknownPackageManager, "no lock file found in %s", dir)
			}
			printSuccess("Detected %s", v.Name)
			for _, lock := range v.Lockfiles {
				if _, err := os.Stat(filepath.Join(dir, lock)); err == nil {
					printFile(filepath.Join(dir, lock))
				}
			}
			return nil
		},
	}
}

func (c *CLI) detectDir(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	cfg, err := project.LoadConfig(c.configPath)
	switch {
	case err == nil:
		return cfg.ProjectDir(), nil
	case errors.Is(err, errors.ErrCodeConfigNotFound):
		return ".", nil
	}
	return "", err
}
