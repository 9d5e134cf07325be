// Package config provides the CLI commands for pythautom configuration:
// show, set, keys and path.
package config

import (
	"github.com/spf13/cobra"
)

// Register adds the configuration commands to the root command.
func Register(rootCmd *cobra.Command) {
	rootCmd.AddCommand(configCmd)
}
