package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pythautom/pythautom/internal/cli/shared"
	"github.com/pythautom/pythautom/internal/config"
	"github.com/pythautom/pythautom/internal/history"
	"github.com/pythautom/pythautom/internal/llm"
	"github.com/pythautom/pythautom/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive terminal UI",
	Long: `Open a full-screen session with the code, chat and console panes.

Type a request to generate or refine code, or a slash command such as /run,
/install or /export. /help lists them all. Esc cancels a running generation.`,
	Example: `  pythautom tui --project snake
  pythautom tui --connect`,
	GroupID: shared.GroupWorkflow,
	Args:    cobra.NoArgs,
	RunE:    runTUI,
}

func init() {
	tuiCmd.Flags().Bool("connect", false, "Connect to the configured backend on start")
	tuiCmd.Flags().String("editor", "", "Editor for /edit (default $EDITOR)")
}

func runTUI(cmd *cobra.Command, _ []string) error {
	app, err := shared.LoadApp(cmd)
	if err != nil {
		return err
	}
	// Log output would tear the full-screen view.
	if debug, _ := cmd.Flags().GetBool("debug"); !debug {
		app.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		app.History = history.NewWriter(app.Config.StateDir, app.Config.HistoryMaxEntries, app.Logger)
	}

	screen := tui.NewScreen()
	sess, err := app.NewSession(screen, nil)
	if err != nil {
		return err
	}
	ctrl := sess.Controller
	if flag, _ := cmd.Flags().GetString("project"); flag != "" {
		name, err := app.ProjectName(cmd)
		if err != nil {
			return err
		}
		if err := ctrl.SelectProject(name); err != nil {
			return err
		}
	}

	connect, _ := cmd.Flags().GetBool("connect")
	editor, _ := cmd.Flags().GetString("editor")
	return tui.Run(cmd.Context(), tui.Options{
		Screen:        screen,
		Controller:    ctrl,
		Events:        sess.Runner.Events(),
		FlushInterval: app.Config.FlushInterval(),
		Projects:      app.Store,
		NewBackend: func() (llm.Backend, error) {
			return shared.NewBackend(app.Config)
		},
		OnConnected: func(llm.Backend) {
			if err := config.SaveLastUsed(app.Config); err != nil {
				app.Logger.Warn("could not save last used backend settings", "error", err)
			}
		},
		ConnectOnStart: connect,
		Editor:         editor,
		Logger:         app.Logger,
	})
}
