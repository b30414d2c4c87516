// Command crowdwatch runs the crowd monitoring dashboard and manages its
// accounts.
//
//	crowdwatch serve
//	crowdwatch users create --name Admin --email admin@example.com --admin
//	crowdwatch users list
//
// Configuration comes from .env, crowdwatch.yaml and the environment; see
// internal/config.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "crowdwatch",
	Short:        "Live crowd monitoring dashboard",
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
