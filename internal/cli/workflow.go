package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pythautom/pythautom/internal/cli/shared"
	apperrors "github.com/pythautom/pythautom/internal/errors"
	"github.com/pythautom/pythautom/internal/export"
	"github.com/pythautom/pythautom/internal/history"
	"github.com/pythautom/pythautom/internal/orchestrator"
	"github.com/pythautom/pythautom/internal/progress"
	"github.com/pythautom/pythautom/internal/pyenv"
)

var chatCmd = &cobra.Command{
	Use:   "chat <request>",
	Short: "Generate or refine the project's code from a request",
	Long: `Send a plain-language request for the selected project.

The backend first lists the packages the program needs, then writes the code.
New packages are installed into the project's environment. Press Ctrl+C while
code is being generated to cancel the generation.`,
	Example: `  pythautom chat --project snake "a snake game with pygame"
  pythautom chat -p snake --run "make the snake faster"`,
	GroupID: shared.GroupWorkflow,
	Args:    cobra.ArbitraryArgs,
	RunE:    runChat,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the project's script, correcting it on failure",
	Long: `Run main.py inside the project's environment.

With auto_correct enabled a failed run starts the correction cycle: a missing
import is resolved to a package and installed, any other error is sent to the
backend with the failing code, up to max_correction_attempts times.`,
	GroupID: shared.GroupWorkflow,
	Args:    cobra.NoArgs,
	RunE:    runRun,
}

var installCmd = &cobra.Command{
	Use:     "install <package>...",
	Short:   "Install packages into the project's environment",
	Example: `  pythautom install --project snake pygame numpy`,
	GroupID: shared.GroupWorkflow,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runInstall,
}

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Check the environment and connect to the configured LLM backend",
	Long: `Check that uv is installed and the data directories are usable, then connect
to the configured backend. Working settings are saved as the last used ones.`,
	GroupID: shared.GroupWorkflow,
	Args:    cobra.NoArgs,
	RunE:    runConnect,
}

var exportCmd = &cobra.Command{
	Use:     "export",
	Short:   "Export the project as an executable bundle or source archive",
	GroupID: shared.GroupWorkflow,
}

var exportExeCmd = &cobra.Command{
	Use:   "exe <output.zip>",
	Short: "Build a single-file executable with PyInstaller and zip it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd, args[0], true)
	},
}

var exportSourceCmd = &cobra.Command{
	Use:   "source <output.zip>",
	Short: "Zip the project's source files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd, args[0], false)
	},
}

func init() {
	chatCmd.Flags().Bool("show-code", false, "Print the generated code")
	chatCmd.Flags().Bool("run", false, "Run the script after the request succeeds")
	runCmd.Flags().Bool("no-correct", false, "Do not correct a failed run")
	runCmd.Flags().BoolP("quiet", "q", false, "Hide the script's output")
	runCmd.Flags().Bool("show-code", false, "Print corrected code")
	exportExeCmd.Flags().BoolP("force", "f", false, "Overwrite an existing archive")
	exportSourceCmd.Flags().BoolP("force", "f", false, "Overwrite an existing archive")

	exportCmd.AddCommand(exportExeCmd)
	exportCmd.AddCommand(exportSourceCmd)
}

// workflow is a session with a terminal sink and a loaded project.
type workflow struct {
	*shared.Session
	sink *shared.TerminalSink
}

func openWorkflow(cmd *cobra.Command) (*workflow, error) {
	app, err := shared.LoadApp(cmd)
	if err != nil {
		return nil, err
	}
	name, err := app.ProjectName(cmd)
	if err != nil {
		return nil, err
	}
	sink := shared.NewTerminalSink(progress.DetectTerminalCapabilities(), cmd.ErrOrStderr(), cmd.OutOrStdout(), app.History)
	sess, err := app.NewSession(sink, sink)
	if err != nil {
		return nil, err
	}
	sink.Attach(sess.Controller)
	if err := sess.Controller.SelectProject(name); err != nil {
		return nil, err
	}
	return &workflow{Session: sess, sink: sink}, nil
}

// finish turns the last task outcome into the command's exit status.
func (w *workflow) finish(err error) error {
	if err != nil {
		return err
	}
	if w.sink.LastStatus() != history.StatusCompleted {
		return shared.NewExitError(shared.ExitFailure)
	}
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	request := strings.TrimSpace(strings.Join(args, " "))
	if request == "" {
		return apperrors.MissingChatRequest()
	}
	w, err := openWorkflow(cmd)
	if err != nil {
		return err
	}
	w.sink.ShowCode, _ = cmd.Flags().GetBool("show-code")
	ctx := cmd.Context()

	if err := w.Connect(ctx); err != nil {
		return err
	}
	if err := w.Controller.StartChatRequest(ctx, request); err != nil {
		return err
	}
	if err := w.finish(w.Wait(ctx)); err != nil {
		return err
	}

	if run, _ := cmd.Flags().GetBool("run"); run {
		if err := w.Controller.RunScript(ctx); err != nil {
			return err
		}
		return w.finish(w.Wait(ctx))
	}
	return nil
}

func runRun(cmd *cobra.Command, _ []string) error {
	w, err := openWorkflow(cmd)
	if err != nil {
		return err
	}
	w.sink.Quiet, _ = cmd.Flags().GetBool("quiet")
	w.sink.ShowCode, _ = cmd.Flags().GetBool("show-code")
	ctx := cmd.Context()

	if noCorrect, _ := cmd.Flags().GetBool("no-correct"); noCorrect {
		w.Controller.SetAutoCorrect(false)
	}
	if w.Controller.Settings().AutoCorrect {
		// Without a backend the run still happens; only correction is lost.
		if err := w.Connect(ctx); err != nil {
			w.sink.Notice(noticeFromError("Auto-correction unavailable", err))
			w.Controller.SetAutoCorrect(false)
		}
	}
	if err := w.Controller.RunScript(ctx); err != nil {
		return err
	}
	return w.finish(w.Wait(ctx))
}

func runInstall(cmd *cobra.Command, args []string) error {
	w, err := openWorkflow(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := w.Controller.InstallDependencies(ctx, args); err != nil {
		return err
	}
	return w.finish(w.Wait(ctx))
}

func runConnect(cmd *cobra.Command, _ []string) error {
	app, err := shared.LoadApp(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := preflight(ctx, app); err != nil {
		return err
	}

	sink := shared.NewTerminalSink(progress.DetectTerminalCapabilities(), cmd.ErrOrStderr(), cmd.OutOrStdout(), app.History)
	sess, err := app.NewSession(sink, sink)
	if err != nil {
		return err
	}
	sink.Attach(sess.Controller)
	if err := sess.Connect(ctx); err != nil {
		return err
	}
	backend := sess.Controller.Backend()
	fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s, model %s\n", backend.Name(), backend.Model())
	return nil
}

// preflight checks uv and the data directories concurrently.
func preflight(ctx context.Context, app *shared.App) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		version, err := app.Env.Version(gctx)
		if errors.Is(err, pyenv.ErrToolNotFound) {
			return apperrors.UVNotFound(app.Config.UVCmd)
		}
		if err != nil {
			return apperrors.WrapWithMessage(err, apperrors.Prerequisite, "checking uv failed")
		}
		app.Logger.Debug("uv found", "version", version)
		return nil
	})
	for _, dir := range []string{app.Config.ProjectsDir, app.Config.StateDir} {
		g.Go(func() error {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return apperrors.WrapWithMessage(err, apperrors.Configuration,
					fmt.Sprintf("directory %s is not usable", dir),
					"Point projects_dir and state_dir at writable directories with 'pythautom config set'")
			}
			return nil
		})
	}
	return g.Wait()
}

func runExport(cmd *cobra.Command, output string, executable bool) error {
	w, err := openWorkflow(cmd)
	if err != nil {
		return err
	}
	output = export.NormalizeOutputPath(output)
	if force, _ := cmd.Flags().GetBool("force"); !force {
		if _, err := os.Stat(output); err == nil {
			return apperrors.NewArgumentError(
				fmt.Sprintf("%s already exists", output),
				"Pass --force to overwrite it",
				"Or choose another output path",
			)
		}
	}

	ctx := cmd.Context()
	if executable {
		err = w.Controller.ExportExecutable(ctx, output)
	} else {
		err = w.Controller.ExportSource(ctx, output)
	}
	if err != nil {
		return err
	}
	return w.finish(w.Wait(ctx))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func noticeFromError(title string, err error) orchestrator.Notice {
	return orchestrator.Notice{Level: orchestrator.NoticeWarning, Title: title, Message: err.Error()}
}
