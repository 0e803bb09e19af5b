package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/olivier-w/beatframe/internal/render"
)

type tickMsg time.Time
type progressMsg render.Progress
type thumbMsg string
type doneMsg struct {
	result *render.Result
	err    error
}

func tickCmd() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
