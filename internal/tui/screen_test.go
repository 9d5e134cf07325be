package tui

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pythautom/pythautom/internal/enablement"
	"github.com/pythautom/pythautom/internal/orchestrator"
)

func TestScreenStreaming(t *testing.T) {
	t.Parallel()

	s := NewScreen()
	s.CodeReplaced("print('old')")
	assert.False(t, s.streaming)

	s.CodeFragment("import pygame\n")
	s.CodeFragment("pygame.init()")
	assert.True(t, s.streaming)
	assert.Equal(t, "import pygame\npygame.init()", s.code, "first fragment replaces the old code")

	s.CodeReplaced("import pygame\npygame.init()\n")
	assert.False(t, s.streaming)
	assert.Equal(t, "import pygame\npygame.init()\n", s.code)
}

func TestScreenAbandonedStream(t *testing.T) {
	t.Parallel()

	s := NewScreen()
	s.CodeReplaced("print('saved')")
	s.CodeFragment("partial")
	s.Controls(enablement.Compute(enablement.Inputs{ProjectLoaded: true}))

	assert.False(t, s.streaming)
	assert.Equal(t, "partial", s.code, "without a controller the view keeps what it has")
	assert.True(t, s.dirty.code)
}

func TestScreenTranscripts(t *testing.T) {
	t.Parallel()

	s := NewScreen()
	s.Status("Running...")
	s.Console("line one\nline two\n")
	s.Chat(orchestrator.SystemSender, "done")
	s.Notice(orchestrator.Notice{Level: orchestrator.NoticeWarning, Title: "Busy", Message: "wait"})

	assert.Equal(t, "Running...", s.status)
	assert.Equal(t, []string{"Running...", "line one", "line two", "Busy: wait"}, s.console)
	assert.Equal(t, []string{"System: done"}, s.chat)
	assert.Equal(t, "Busy", s.notice.Title)

	s.DismissNotice()
	assert.Nil(t, s.notice)
}

func TestAppendBounded(t *testing.T) {
	t.Parallel()

	var lines []string
	for i := range maxLines + 10 {
		lines = appendBounded(lines, fmt.Sprint(i))
	}
	assert.Len(t, lines, maxLines)
	assert.Equal(t, "10", lines[0])
	assert.Equal(t, fmt.Sprint(maxLines+9), lines[len(lines)-1])
}

func TestRenderHelpers(t *testing.T) {
	t.Parallel()

	assert.Contains(t, numberLines(""), "(no code)")
	numbered := numberLines("a\nb")
	assert.Contains(t, numbered, "1 a")
	assert.Contains(t, numbered, "2 b")

	chat := renderChat([]string{"User: hi", "System: hello"}, 40)
	assert.Contains(t, chat, "User: hi")
	assert.Contains(t, chat, "System: hello")
}
