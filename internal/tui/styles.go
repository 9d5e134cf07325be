package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/pythautom/pythautom/internal/orchestrator"
)

var (
	primary = lipgloss.AdaptiveColor{Light: "#5A3FC0", Dark: "#A78BFA"}
	muted   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	warning = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
	danger  = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	success = lipgloss.AdaptiveColor{Light: "#047857", Dark: "#34D399"}

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted)
	focusedPaneStyle = paneStyle.BorderForeground(primary)

	titleStyle      = lipgloss.NewStyle().Bold(true).Foreground(primary)
	lineNumberStyle = lipgloss.NewStyle().Foreground(muted)
	systemStyle     = lipgloss.NewStyle().Foreground(primary)
	userStyle       = lipgloss.NewStyle().Bold(true)

	statusBarStyle = lipgloss.NewStyle().Foreground(muted)
	busyStyle      = lipgloss.NewStyle().Foreground(warning).Bold(true)
	idleStyle      = lipgloss.NewStyle().Foreground(success)

	noticeStyles = map[orchestrator.NoticeLevel]lipgloss.Style{
		orchestrator.NoticeInfo:    lipgloss.NewStyle().Foreground(primary),
		orchestrator.NoticeWarning: lipgloss.NewStyle().Foreground(warning).Bold(true),
		orchestrator.NoticeError:   lipgloss.NewStyle().Foreground(danger).Bold(true),
	}
)
