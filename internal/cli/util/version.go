package util

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pythautom/pythautom/internal/cli/shared"
	"github.com/pythautom/pythautom/internal/pyenv"
)

var (
	// Version information, set via ldflags during build.
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Aliases: []string{"v"},
	Short:   "Display version information (v)",
	Long:    "Display the pythautom version, commit, build date, Go version and the uv found on this machine.",
	Example: `  pythautom version
  pythautom version --plain`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		plain, _ := cmd.Flags().GetBool("plain")
		uv := uvVersion(cmd)
		if plain {
			printPlainVersion(cmd, uv)
			return
		}
		printPrettyVersion(cmd, uv)
	},
}

func init() {
	versionCmd.GroupID = shared.GroupConfiguration
	versionCmd.Flags().Bool("plain", false, "Plain output without formatting")
}

// uvVersion reports the configured uv's version, or why it is unavailable.
func uvVersion(cmd *cobra.Command) string {
	uvCmd := "uv"
	if app, err := shared.LoadApp(cmd); err == nil {
		uvCmd = app.Config.UVCmd
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := pyenv.NewManager(uvCmd, 0).Version(ctx)
	if err != nil {
		return "not found"
	}
	return v
}

func versionInfo(uv string) [][2]string {
	return [][2]string{
		{"Version", Version},
		{"Commit", truncateCommit(Commit)},
		{"Built", BuildDate},
		{"Go", runtime.Version()},
		{"Platform", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)},
		{"uv", uv},
	}
}

func printPlainVersion(cmd *cobra.Command, uv string) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "pythautom %s\n", Version)
	for _, item := range versionInfo(uv)[1:] {
		fmt.Fprintf(out, "%s: %s\n", item[0], item[1])
	}
}

func printPrettyVersion(cmd *cobra.Command, uv string) {
	out := cmd.OutOrStdout()
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	white := color.New(color.FgWhite, color.Bold).SprintFunc()

	fmt.Fprintf(out, "\n  %s\n\n", cyan("pythautom"))
	for _, item := range versionInfo(uv) {
		fmt.Fprintf(out, "  %s    %s\n", yellow(fmt.Sprintf("%10s", item[0])), white(item[1]))
	}
	fmt.Fprintln(out)
}

// truncateCommit shortens a commit hash to eight characters.
func truncateCommit(commit string) string {
	if len(commit) > 8 {
		return commit[:8]
	}
	return commit
}
