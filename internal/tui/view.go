package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pythautom/pythautom/internal/orchestrator"
)

// Rows outside the panes: notice, prompt and status bar.
const chromeRows = 3

// layout sizes the panes for the window. Borders take two cells each way.
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	consoleHeight := max(3, m.height/4)
	topHeight := max(3, m.height-chromeRows-consoleHeight-4)
	codeWidth := max(10, m.width*3/5-2)
	chatWidth := max(10, m.width-codeWidth-4)

	m.code.Width, m.code.Height = codeWidth, topHeight-1
	m.chat.Width, m.chat.Height = chatWidth, topHeight-1
	m.console.Width, m.console.Height = max(10, m.width-2), consoleHeight
	m.input.Width = max(10, m.width-len(m.input.Prompt)-1)
	m.screen.dirty.code, m.screen.dirty.chat, m.screen.dirty.console = true, true, true
}

// sync copies the changed screen panes into their viewports.
func (m *Model) sync() {
	d := &m.screen.dirty
	if d.code {
		m.code.SetContent(numberLines(m.screen.code))
		if m.screen.streaming {
			m.code.GotoBottom()
		}
		d.code = false
	}
	if d.chat {
		m.chat.SetContent(renderChat(m.screen.chat, m.chat.Width))
		m.chat.GotoBottom()
		d.chat = false
	}
	if d.console {
		m.console.SetContent(lipgloss.NewStyle().Width(m.console.Width).Render(strings.Join(m.screen.console, "\n")))
		m.console.GotoBottom()
		d.console = false
	}
}

func numberLines(code string) string {
	if code == "" {
		return lineNumberStyle.Render("(no code)")
	}
	lines := strings.Split(code, "\n")
	width := len(fmt.Sprint(len(lines)))
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(lineNumberStyle.Render(fmt.Sprintf("%*d ", width, i+1)))
		b.WriteString(line)
	}
	return b.String()
}

func renderChat(lines []string, width int) string {
	wrap := lipgloss.NewStyle().Width(max(1, width))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		sender, msg, ok := strings.Cut(line, ": ")
		if !ok {
			out = append(out, wrap.Render(line))
			continue
		}
		style := userStyle
		if sender == orchestrator.SystemSender {
			style = systemStyle
		}
		out = append(out, wrap.Render(style.Render(sender+":")+" "+msg))
	}
	return strings.Join(out, "\n")
}

func (m Model) View() string {
	if m.width == 0 {
		return "Starting..."
	}
	title := "Code"
	if name := m.ctrl.Project(); name != "" {
		title = name + "/" + scriptName(m.opts.Projects)
	}
	top := lipgloss.JoinHorizontal(lipgloss.Top,
		m.pane(paneCode, title, m.code.View()),
		m.pane(paneChat, "Chat", m.chat.View()),
	)
	console := m.paneStyle(paneConsole).Render(m.console.View())

	return lipgloss.JoinVertical(lipgloss.Left,
		top,
		console,
		m.noticeLine(),
		m.input.View(),
		m.statusBar(),
	)
}

func (m Model) paneStyle(p pane) lipgloss.Style {
	if p == m.focus {
		return focusedPaneStyle
	}
	return paneStyle
}

func (m Model) pane(p pane, title, body string) string {
	return m.paneStyle(p).Render(titleStyle.Render(title) + "\n" + body)
}

func (m Model) noticeLine() string {
	n := m.screen.notice
	if n == nil {
		return ""
	}
	style, ok := noticeStyles[n.Level]
	if !ok {
		style = noticeStyles[orchestrator.NoticeInfo]
	}
	line := style.Render(n.Title+":") + " " + n.Message + statusBarStyle.Render("  (esc to dismiss)")
	return lipgloss.NewStyle().MaxWidth(m.width).Render(line)
}

func (m Model) statusBar() string {
	controls := m.ctrl.Controls()
	state := idleStyle.Render("Idle")
	if controls.Busy {
		state = m.spin.View() + " " + busyStyle.Render(m.ctrl.Phase().Label())
		if controls.CancelVisible {
			state += statusBarStyle.Render(" [esc] " + controls.CancelLabel)
		}
	}

	backend := "not connected"
	if b := m.ctrl.Backend(); b != nil && m.ctrl.Connected() {
		backend = b.Name() + "/" + b.Model()
	}
	project := m.ctrl.Project()
	if project == "" {
		project = "no project"
	}
	autoCorrect := "off"
	if m.ctrl.Settings().AutoCorrect {
		autoCorrect = "on"
	}

	left := fmt.Sprintf("%s | %s | %s | auto-correct %s", state, project, backend, autoCorrect)
	if m.screen.status != "" {
		left += " | " + m.screen.status
	}
	return statusBarStyle.MaxWidth(m.width).Render(left)
}

func scriptName(p Projects) string {
	if p == nil {
		return "main.py"
	}
	return p.ScriptName()
}
