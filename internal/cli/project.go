package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pythautom/pythautom/internal/cli/shared"
	apperrors "github.com/pythautom/pythautom/internal/errors"
	"github.com/pythautom/pythautom/internal/progress"
	"github.com/pythautom/pythautom/internal/project"
	"github.com/pythautom/pythautom/internal/pyenv"
)

var projectCmd = &cobra.Command{
	Use:     "project",
	Aliases: []string{"p"},
	Short:   "Manage projects (p)",
	Long:    `Create, list, inspect and delete projects. Each project is a directory holding main.py, its metadata and a uv environment.`,
	GroupID: shared.GroupProjects,
}

var projectNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a project and its Python environment",
	Example: `  pythautom project new snake
  pythautom project new "my tool"   # stored as my_tool`,
	Args: cobra.ExactArgs(1),
	RunE: runProjectNew,
}

var projectListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List projects",
	Args:    cobra.NoArgs,
	RunE:    runProjectList,
}

var projectShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show a project's metadata and files",
	Long:  `Show a project's dependencies, timestamps, environment state and file listing. Defaults to --project.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProjectShow,
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a project directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectDelete,
}

var projectAddCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Copy a file or folder into the project",
	Long: `Copy a file or folder into the top level of the --project project, so it is
listed to the model with the project's files. Items matching the listing
exclusions (.venv, __pycache__, build output) are refused.`,
	Example: `  pythautom project add ./assets --project snake
  pythautom project add config.toml --project snake --force`,
	Args: cobra.ExactArgs(1),
	RunE: runProjectAdd,
}

func init() {
	projectCmd.AddCommand(projectNewCmd)
	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectDeleteCmd)

	projectNewCmd.Flags().Bool("no-env", false, "Skip creating the uv environment")
	projectDeleteCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	projectAddCmd.Flags().BoolP("force", "f", false, "Overwrite an existing item without asking")
}

func runProjectNew(cmd *cobra.Command, args []string) error {
	app, err := shared.LoadApp(cmd)
	if err != nil {
		return err
	}
	caps := progress.DetectTerminalCapabilities()
	sink := shared.NewTerminalSink(caps, cmd.ErrOrStderr(), cmd.OutOrStdout(), app.History)
	sess, err := app.NewSession(sink, sink)
	if err != nil {
		return err
	}
	sink.Attach(sess.Controller)

	name, err := sess.Controller.CreateProject(args[0])
	switch {
	case errors.Is(err, project.ErrInvalidName):
		return apperrors.InvalidProjectName(args[0])
	case errors.Is(err, project.ErrExists):
		return apperrors.ProjectExists(args[0])
	case err != nil:
		return err
	}

	if skip, _ := cmd.Flags().GetBool("no-env"); !skip {
		createEnvironment(cmd, app, name, caps)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created project %s\n", name)
	return nil
}

// createEnvironment sets up the project's uv environment. A failure is only
// reported: the environment is created again by the first install or run.
func createEnvironment(cmd *cobra.Command, app *shared.App, name string, caps progress.TerminalCapabilities) {
	dir, err := app.Store.Path(name)
	if err != nil {
		return
	}
	display := progress.NewDisplay(caps, cmd.ErrOrStderr())
	if err := display.Start(progress.TaskInfo{Label: "Creating Python environment"}); err != nil {
		return
	}
	if err := app.Env.EnsureEnvironment(cmd.Context(), dir, display.Println); err != nil {
		display.Fail(err)
		if errors.Is(err, pyenv.ErrToolNotFound) {
			apperrors.FprintError(cmd.ErrOrStderr(), apperrors.UVNotFound(app.Config.UVCmd))
		}
		return
	}
	display.Complete()
}

func runProjectList(cmd *cobra.Command, _ []string) error {
	app, err := shared.LoadApp(cmd)
	if err != nil {
		return err
	}
	names, err := app.Store.List()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(names) == 0 {
		fmt.Fprintf(out, "No projects in %s.\n", app.Config.ProjectsDir)
		return nil
	}

	current, _ := cmd.Flags().GetString("project")
	for _, name := range names {
		meta, err := app.Store.LoadMetadata(name)
		if err != nil {
			fmt.Fprintf(out, "  %-24s  %s\n", name, color.RedString("unreadable metadata"))
			continue
		}
		marker := " "
		if name == current {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %-24s  %d dependencies  modified %s\n",
			marker, name, len(meta.Dependencies), formatTime(meta.LastModified))
	}
	return nil
}

func runProjectShow(cmd *cobra.Command, args []string) error {
	app, err := shared.LoadApp(cmd)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		if err := cmd.Flags().Set("project", args[0]); err != nil {
			return err
		}
	}
	name, err := app.ProjectName(cmd)
	if err != nil {
		return err
	}
	dir, err := app.Store.Path(name)
	if err != nil {
		return err
	}
	meta, err := app.Store.LoadMetadata(name)
	if err != nil {
		return err
	}
	structure, err := app.Store.StructureInfo(name, app.Config.StructureInfoMaxLen)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	bold := color.New(color.Bold).SprintFunc()
	deps := "none"
	if len(meta.Dependencies) > 0 {
		deps = strings.Join(meta.Dependencies, ", ")
	}
	envState := "not created"
	if pyenv.HasEnvironment(dir) {
		envState = pyenv.VenvPath(dir)
	}
	fmt.Fprintf(out, "%s %s\n", bold("Project:     "), meta.Name)
	fmt.Fprintf(out, "%s %s\n", bold("Path:        "), dir)
	fmt.Fprintf(out, "%s %s\n", bold("Dependencies:"), deps)
	fmt.Fprintf(out, "%s %s\n", bold("Environment: "), envState)
	fmt.Fprintf(out, "%s %s\n", bold("Created:     "), formatTime(meta.CreatedAt))
	fmt.Fprintf(out, "%s %s\n", bold("Modified:    "), formatTime(meta.LastModified))
	fmt.Fprintf(out, "\n%s\n", structure)
	return nil
}

func runProjectDelete(cmd *cobra.Command, args []string) error {
	app, err := shared.LoadApp(cmd)
	if err != nil {
		return err
	}
	name, err := project.Sanitize(args[0])
	if err != nil {
		return apperrors.InvalidProjectName(args[0])
	}
	if _, err := app.Store.Path(name); err != nil {
		return apperrors.ProjectNotFound(name)
	}

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		ok, err := confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), fmt.Sprintf("Delete project %s and all its files?", name))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.ErrOrStderr(), "Aborted.")
			return nil
		}
	}

	sess, err := app.NewSession(nil, nil)
	if err != nil {
		return err
	}
	if err := sess.Controller.DeleteProject(name); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted project %s\n", name)
	return nil
}

func runProjectAdd(cmd *cobra.Command, args []string) error {
	app, err := shared.LoadApp(cmd)
	if err != nil {
		return err
	}
	name, err := app.ProjectName(cmd)
	if err != nil {
		return err
	}
	sess, err := app.NewSession(nil, nil)
	if err != nil {
		return err
	}
	if err := sess.Controller.SelectProject(name); err != nil {
		return err
	}

	force, _ := cmd.Flags().GetBool("force")
	item, err := sess.Controller.AddItem(args[0], force)
	if errors.Is(err, project.ErrItemExists) {
		ok, cerr := confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), fmt.Sprintf("%s already exists in %s. Overwrite it?", filepath.Base(args[0]), name))
		if cerr != nil {
			return cerr
		}
		if !ok {
			fmt.Fprintln(cmd.ErrOrStderr(), "Skipped.")
			return nil
		}
		item, err = sess.Controller.AddItem(args[0], true)
	}
	switch {
	case errors.Is(err, project.ErrExcluded):
		return apperrors.NewArgumentError(err.Error(), "Build output, environments and caches cannot be added")
	case err != nil:
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %s to project %s\n", item, name)
	return nil
}

// confirm asks a yes/no question, defaulting to no.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("reading answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
