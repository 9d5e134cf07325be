package tui

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pythautom/pythautom/internal/export"
	"github.com/pythautom/pythautom/internal/project"
)

const helpText = `/project <name>   load a project          /new <name>      create a project
/projects         list projects           /delete <name>   delete a project
/add <path>       copy a file or folder   /savelog [file]  save the status and console logs
/run              run the script          /install <pkg>.. install packages
/connect          connect to the backend  /edit            open the script in $EDITOR
/export exe|source <file.zip>             /autocorrect on|off
/attempts <n>     correction attempts     /quit
Anything else is sent to the backend as a request.`

// submit handles one line of the prompt.
func (m *Model) submit(line string) tea.Cmd {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		m.report(m.ctrl.StartChatRequest(m.ctx, line))
		return nil
	}

	fields := strings.Fields(line)
	name, args := fields[0], fields[1:]
	confirming := m.pendingConfirm
	m.pendingConfirm = ""
	switch name {
	case "/help", "/?":
		m.screen.Console(helpText + "\n" + m.keys.helpLine())
	case "/quit", "/exit":
		return tea.Quit
	case "/run":
		m.report(m.ctrl.RunScript(m.ctx))
	case "/install":
		if len(args) == 0 {
			m.info("Usage", "/install <package>...")
			return nil
		}
		m.report(m.ctrl.InstallDependencies(m.ctx, args))
	case "/connect":
		m.connect()
	case "/project":
		if len(args) != 1 {
			m.info("Usage", "/project <name>")
			return nil
		}
		m.report(m.ctrl.SelectProject(args[0]))
	case "/projects":
		m.listProjects()
	case "/new":
		if len(args) != 1 {
			m.info("Usage", "/new <name>")
			return nil
		}
		_, err := m.ctrl.CreateProject(args[0])
		m.report(err)
	case "/delete":
		m.deleteProject(line, confirming, args)
	case "/edit":
		return m.edit()
	case "/export":
		m.export(line, confirming, args)
	case "/add":
		m.addItem(line, confirming, strings.TrimSpace(strings.TrimPrefix(line, name)))
	case "/savelog":
		m.saveLog(line, confirming, strings.TrimSpace(strings.TrimPrefix(line, name)))
	case "/autocorrect":
		m.autoCorrect(args)
	case "/attempts":
		n, err := strconv.Atoi(strings.Join(args, ""))
		if err != nil {
			m.info("Usage", "/attempts <n>")
			return nil
		}
		if err := m.ctrl.SetMaxAttempts(n); err != nil {
			m.report(err)
			return nil
		}
		m.screen.Status(fmt.Sprintf("Max correction attempts set to %d.", m.ctrl.Settings().MaxAttempts))
	default:
		m.info("Unknown command", name+" (type /help)")
	}
	return nil
}

func (m *Model) connect() {
	if !m.ctrl.Controls().Connect {
		m.info("Busy", "Wait for the running task to finish.")
		return
	}
	if m.opts.NewBackend == nil {
		m.info("Connect", "No backend is configured.")
		return
	}
	backend, err := m.opts.NewBackend()
	if err != nil {
		m.report(err)
		return
	}
	if err := m.ctrl.AttemptConnection(m.ctx, backend); err != nil {
		m.report(err)
		return
	}
	m.connecting = true
}

func (m *Model) listProjects() {
	if m.opts.Projects == nil {
		return
	}
	names, err := m.opts.Projects.List()
	if err != nil {
		m.report(err)
		return
	}
	if len(names) == 0 {
		m.screen.Console("No projects yet. Create one with /new <name>.")
		return
	}
	for _, name := range names {
		marker := "  "
		if name == m.ctrl.Project() {
			marker = "* "
		}
		m.screen.Console(marker + name)
	}
}

// confirm reports whether line repeats the command awaiting confirmation,
// and otherwise asks for it to be repeated.
func (m *Model) confirm(line, confirming, question string) bool {
	if line == confirming {
		return true
	}
	m.pendingConfirm = line
	m.info("Confirm", question+" Repeat the command to confirm.")
	return false
}

func (m *Model) deleteProject(line, confirming string, args []string) {
	if len(args) != 1 {
		m.info("Usage", "/delete <name>")
		return
	}
	if !m.confirm(line, confirming, fmt.Sprintf("Delete project %s and all its files?", args[0])) {
		return
	}
	m.report(m.ctrl.DeleteProject(args[0]))
}

func (m *Model) export(line, confirming string, args []string) {
	if len(args) != 2 || (args[0] != "exe" && args[0] != "source") {
		m.info("Usage", "/export exe|source <file.zip>")
		return
	}
	output := export.NormalizeOutputPath(args[1])
	if _, err := os.Stat(output); err == nil {
		if !m.confirm(line, confirming, fmt.Sprintf("%s already exists. Overwrite it?", output)) {
			return
		}
	}
	if args[0] == "exe" {
		m.report(m.ctrl.ExportExecutable(m.ctx, output))
		return
	}
	m.report(m.ctrl.ExportSource(m.ctx, output))
}

func (m *Model) addItem(line, confirming, src string) {
	if src == "" {
		m.info("Usage", "/add <file or folder>")
		return
	}
	_, err := m.ctrl.AddItem(src, line == confirming)
	switch {
	case errors.Is(err, project.ErrItemExists):
		m.confirm(line, confirming, fmt.Sprintf("'%s' already exists in the project. Overwrite it?", filepath.Base(src)))
	case errors.Is(err, project.ErrExcluded):
		m.info("Cannot Add", fmt.Sprintf("'%s' matches an exclusion pattern.", filepath.Base(src)))
	default:
		m.report(err)
	}
}

func (m *Model) saveLog(line, confirming, path string) {
	if !m.ctrl.Ready() {
		m.info("Busy", "Cannot save logs now.")
		return
	}
	if path == "" {
		path = fmt.Sprintf("pythautom_logs_%s.log", time.Now().Format("2006-01-02T15-04-05"))
	}
	if _, err := os.Stat(path); err == nil {
		if !m.confirm(line, confirming, fmt.Sprintf("%s already exists. Overwrite it?", path)) {
			return
		}
	}
	var buf bytes.Buffer
	if err := m.screen.WriteLog(&buf); err != nil {
		m.report(err)
		return
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		m.screen.Status(fmt.Sprintf("! Error saving logs: %v", err))
		m.report(err)
		return
	}
	m.screen.Status(fmt.Sprintf("Logs saved successfully to '%s'.", filepath.Base(path)))
}

func (m *Model) autoCorrect(args []string) {
	switch strings.Join(args, "") {
	case "on":
		m.ctrl.SetAutoCorrect(true)
	case "off":
		m.ctrl.SetAutoCorrect(false)
	default:
		m.info("Usage", "/autocorrect on|off")
		return
	}
	m.screen.Status(fmt.Sprintf("Auto-correction %s.", args[0]))
}

// edit suspends the UI and opens the script in the editor.
func (m *Model) edit() tea.Cmd {
	if m.ctrl.Project() == "" {
		m.info("No Project", "Please select or create a project first.")
		return nil
	}
	if !m.ctrl.Controls().EditCode {
		m.info("Busy", "Wait for the running task to finish.")
		return nil
	}
	if m.opts.Projects == nil {
		return nil
	}
	dir, err := m.opts.Projects.Path(m.ctrl.Project())
	if err != nil {
		m.report(err)
		return nil
	}
	editor := m.opts.Editor
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	cmd := exec.Command(parts[0], append(parts[1:], filepath.Join(dir, m.opts.Projects.ScriptName()))...)
	return tea.ExecProcess(cmd, func(err error) tea.Msg { return editorDoneMsg{err: err} })
}

// editorDone reloads the project so the edited script becomes the code.
func (m *Model) editorDone(err error) {
	if err != nil {
		m.report(fmt.Errorf("editor: %w", err))
	}
	if name := m.ctrl.Project(); name != "" {
		m.report(m.ctrl.SelectProject(name))
	}
	m.afterController()
}
