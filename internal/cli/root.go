// Package cli provides the Cobra-based commands of pythautom: project
// management, the chat/generate/run workflow, connection and export, and the
// interactive terminal UI.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pythautom/pythautom/internal/cli/config"
	"github.com/pythautom/pythautom/internal/cli/shared"
	"github.com/pythautom/pythautom/internal/cli/util"
	cfgpkg "github.com/pythautom/pythautom/internal/config"
	apperrors "github.com/pythautom/pythautom/internal/errors"
)

var rootCmd = &cobra.Command{
	Use:   "pythautom",
	Short: "LLM-driven Python project automation",
	Long: `pythautom turns plain-language requests into runnable Python projects.

A request is planned (dependencies), generated, installed into the project's
uv environment and run. Failed runs are corrected automatically: missing
imports are resolved to packages and installed, other errors are sent back to
the model together with the failing code.`,
	Example: `  # Create a project and connect to the configured backend
  pythautom project new snake
  pythautom connect

  # Ask for a program, then run it
  pythautom chat --project snake "a snake game with pygame"
  pythautom run --project snake

  # Interactive session
  pythautom tui --project snake`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and prints any error the way the user needs
// to see it.
func Execute() error {
	err := rootCmd.Execute()
	if err == nil || shared.IsExitError(err) {
		return err
	}
	if cliErr := apperrors.AsCLIError(err); cliErr != nil {
		apperrors.PrintError(cliErr)
	} else {
		fmt.Fprint(os.Stderr, apperrors.FormatSimpleError(err, apperrors.Runtime))
	}
	return err
}

// ExitCode returns the process exit code for an Execute error.
func ExitCode(err error) int {
	return shared.ExitCode(err)
}

func init() {
	rootCmd.AddGroup(&cobra.Group{ID: shared.GroupProjects, Title: "Projects:"})
	rootCmd.AddGroup(&cobra.Group{ID: shared.GroupWorkflow, Title: "Workflow:"})
	rootCmd.AddGroup(&cobra.Group{ID: shared.GroupConfiguration, Title: "Configuration:"})

	rootCmd.SetHelpCommandGroupID(shared.GroupConfiguration)
	rootCmd.SetCompletionCommandGroupID(shared.GroupConfiguration)

	rootCmd.PersistentFlags().StringP("config", "c", cfgpkg.LocalConfigPath, "Path to config file")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringP("project", "p", "", "Project to work on")

	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(tuiCmd)

	config.Register(rootCmd)
	util.Register(rootCmd)
}
