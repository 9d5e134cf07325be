package util

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pythautom/pythautom/internal/cli/shared"
	apperrors "github.com/pythautom/pythautom/internal/errors"
	"github.com/pythautom/pythautom/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View the task history",
	Long: `View the finished tasks with timestamp, project, task, outcome and duration.

With --project only that project's tasks are listed.`,
	Example: `  pythautom history -n 20
  pythautom history --project snake --status failed
  pythautom history --clear`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.GroupID = shared.GroupConfiguration
	historyCmd.Flags().IntP("limit", "n", 0, "Limit to last N entries (most recent)")
	historyCmd.Flags().Bool("clear", false, "Clear all history")
	historyCmd.Flags().String("status", "", "Filter by status (completed, failed, cancelled)")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	app, err := shared.LoadApp(cmd)
	if err != nil {
		return err
	}
	return runHistoryWithStateDir(cmd, app.Config.StateDir)
}

func runHistoryWithStateDir(cmd *cobra.Command, stateDir string) error {
	clearFlag, _ := cmd.Flags().GetBool("clear")
	projectFilter, _ := cmd.Flags().GetString("project")
	statusFilter, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")

	if limit < 0 {
		return apperrors.NewArgumentError(fmt.Sprintf("limit must be positive, got %d", limit))
	}

	if clearFlag {
		if err := history.ClearHistory(stateDir); err != nil {
			return fmt.Errorf("clearing history: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
		return nil
	}

	histFile, err := history.LoadHistory(stateDir)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	entries := filterByStatus(histFile.Filter(projectFilter, 0), statusFilter)
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), buildEmptyMessage(projectFilter, statusFilter))
		return nil
	}
	displayEntries(cmd, entries)
	return nil
}

func filterByStatus(entries []history.HistoryEntry, status string) []history.HistoryEntry {
	if status == "" {
		return entries
	}
	var out []history.HistoryEntry
	for _, e := range entries {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out
}

// buildEmptyMessage explains why nothing was listed.
func buildEmptyMessage(projectFilter, statusFilter string) string {
	switch {
	case projectFilter != "" && statusFilter != "":
		return fmt.Sprintf("No matching entries for project '%s' and status '%s'.", projectFilter, statusFilter)
	case projectFilter != "":
		return fmt.Sprintf("No matching entries for project '%s'.", projectFilter)
	case statusFilter != "":
		return fmt.Sprintf("No matching entries for status '%s'.", statusFilter)
	default:
		return "No history available."
	}
}

func displayEntries(cmd *cobra.Command, entries []history.HistoryEntry) {
	out := cmd.OutOrStdout()

	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	for _, entry := range entries {
		project := entry.Project
		if project == "" {
			project = "-"
		}
		fmt.Fprintf(out, "%s  %-10s  %-22s  %-16s  %s\n",
			cyan(entry.Timestamp.Local().Format("2006-01-02 15:04:05")),
			formatStatus(entry.Status, green, yellow, red),
			entry.Task,
			project,
			entry.Duration,
		)
		if entry.Detail != "" {
			fmt.Fprintf(out, "    %s\n", dim(entry.Detail))
		}
	}
}

// formatStatus returns a color-coded, padded status.
func formatStatus(status string, green, yellow, red func(a ...any) string) string {
	padded := fmt.Sprintf("%-10s", status)
	switch status {
	case history.StatusCompleted:
		return green(padded)
	case history.StatusCancelled:
		return yellow(padded)
	case history.StatusFailed:
		return red(padded)
	default:
		if status == "" {
			return fmt.Sprintf("%-10s", "-")
		}
		return padded
	}
}
