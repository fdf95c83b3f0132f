// Package commands wires the stmtimport CLI.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwulff/stmtimport/internal/buildinfo"
	"github.com/jwulff/stmtimport/internal/config"
)

type globalOptions struct {
	configPath string
}

func (g *globalOptions) path() string {
	if g.configPath != "" {
		return g.configPath
	}
	return config.DefaultPath()
}

// load reads the config file, then applies environment overrides.
func (g *globalOptions) load() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(g.path())
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	g := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:     "stmtimport",
		Short:   "Import bank statements into your finance backend",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", "",
		fmt.Sprintf("config file (default %s)", config.DefaultPath()))

	rootCmd.AddCommand(newReviewCommand(g))
	rootCmd.AddCommand(newHistoryCommand(g))
	rootCmd.AddCommand(newConfigCommand(g))

	return rootCmd
}
