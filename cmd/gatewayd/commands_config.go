package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ruizzmauri/gsv-sub000/internal/config"
	"github.com/ruizzmauri/gsv-sub000/internal/pstore"
)

// runConfigShow loads config from disk without starting the gateway and
// prints the safe (secret-masked) view, matching config.Store.Get("").
func runConfigShow(cmd *cobra.Command, configPath string) error {
	defaults, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := config.NewStore(pstore.NewMemoryKV(), defaults)
	if err != nil {
		return fmt.Errorf("build config store: %w", err)
	}
	safe, _ := store.Get("")
	out, err := yaml.Marshal(safe)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
