// Command agentstream runs agent conversations and replays recorded event
// streams, printing display entries as JSON Lines.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "agentstream: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "agentstream",
		Short:         "Stream, persist and display agent conversations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (default $"+envConfig+")")

	load := func() (Config, error) {
		return loadConfig(configPath, os.Getenv)
	}

	cmd.AddCommand(newChatCmd(load))
	cmd.AddCommand(newReplayCmd(load))
	cmd.AddCommand(newHistoryCmd(load))
	cmd.AddCommand(newMigrateCmd(load))

	return cmd
}
