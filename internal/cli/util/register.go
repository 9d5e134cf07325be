// Package util provides the utility commands of pythautom: history and
// version.
package util

import (
	"github.com/spf13/cobra"
)

// Register adds the utility commands to the root command.
func Register(rootCmd *cobra.Command) {
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}
