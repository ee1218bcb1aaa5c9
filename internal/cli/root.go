// Package cli implements the livewall command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jacentio/livewall/internal/config"
)

// ConfigEnv names the environment variable read when --config is not given.
const ConfigEnv = "LIVEWALL_CONFIG"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

// NewRootCommand creates the root command for the livewall CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "livewall",
		Short: "Live photo walls",
		Long: `livewall serves live photo walls: guests upload images to a wall and
every open display receives them as they arrive.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "",
		"path to YAML config (default $"+ConfigEnv+", else built-in defaults)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTablesCommand(opts))
	cmd.AddCommand(NewWallCommand(opts))

	return cmd
}

// loadConfig resolves the config path from the flag or environment.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	path := o.ConfigPath
	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}
