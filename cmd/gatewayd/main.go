// Command gatewayd is the agent gateway's process entrypoint: a small
// cobra CLI (mirroring the teacher's cmd/nexus command tree) wrapping the
// "serve" command that builds and runs internal/server.Server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gatewayd",
		Short: "Agent gateway: peer registry, tool router, session agents, scheduler",
		Long: `gatewayd terminates long-lived client/node/channel connections, routes
tool calls between sessions and nodes, drives the per-conversation agent
loop, and schedules heartbeats and cron jobs.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(buildServeCmd(), buildConfigCmd(), buildVersionCmd())
	return cmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the gatewayd version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"
