package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "julesq",
		Short: "Jules Queue - retry queue for the Jules agent",
		Long: `Jules Queue watches GitHub issues worked by the Jules agent. When the
agent hits its concurrency limit it queues the issue, then retries it
automatically once capacity frees up.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
