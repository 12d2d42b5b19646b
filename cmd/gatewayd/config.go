package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// defaultConfigPath mirrors the teacher's profile.DefaultConfigPath: prefer
// an explicit env var, then a file next to the working directory, falling
// back to a name in the user's home config dir.
func defaultConfigPath() string {
	if p := os.Getenv("GATEWAYD_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("gatewayd.yaml"); err == nil {
		return "gatewayd.yaml"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "gatewayd.yaml"
	}
	return filepath.Join(home, ".config", "gatewayd", "gatewayd.yaml")
}

func buildConfigCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the resolved configuration",
	}
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the merged, secret-masked configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd, resolveConfigPath(configPath))
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")
	cmd.AddCommand(show)
	return cmd
}

func resolveConfigPath(p string) string {
	if p == "" {
		return defaultConfigPath()
	}
	return p
}
