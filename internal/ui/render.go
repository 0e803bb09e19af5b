// Package ui implements the interactive render progress screen.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/olivier-w/beatframe/internal/render"
	"github.com/olivier-w/beatframe/internal/util"
)

// Job is the part of a render job the screen drives.
type Job interface {
	Cancel()
	Wait() (*render.Result, error)
}

// RenderModel shows a running job until it reaches a terminal state.
type RenderModel struct {
	title    string
	subtitle string
	job      Job
	feed     *Feed

	spinner  spinner.Model
	progress progress.Model
	status   render.Progress
	thumb    string
	started  time.Time
	now      time.Time

	cancelling bool
	done       bool
	result     *render.Result
	err        error
	width      int
}

// NewRender creates the screen for a started job.
func NewRender(title, subtitle string, job Job, feed *Feed) RenderModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#555555", Dark: "#AAAAAA"})

	p := progress.New(
		progress.WithScaledGradient("#FF8C00", "#FF5F1F"),
		progress.WithoutPercentage(),
	)
	p.Width = 40

	now := time.Now()
	return RenderModel{
		title:    title,
		subtitle: subtitle,
		job:      job,
		feed:     feed,
		spinner:  s,
		progress: p,
		status:   render.Progress{Phase: render.Initializing.Label()},
		started:  now,
		now:      now,
	}
}

// Outcome returns the job result once the program has exited.
func (m RenderModel) Outcome() (*render.Result, error) {
	if !m.done {
		return nil, render.ErrCancelled
	}
	return m.result, m.err
}

func (m RenderModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		tickCmd(),
		m.waitForProgress(),
		m.waitForThumb(),
		m.waitForDone(),
	)
}

func (m RenderModel) waitForProgress() tea.Cmd {
	if m.feed == nil {
		return nil
	}
	return func() tea.Msg {
		p, ok := <-m.feed.progress
		if !ok {
			return nil
		}
		return progressMsg(p)
	}
}

func (m RenderModel) waitForThumb() tea.Cmd {
	if m.feed == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := <-m.feed.thumbs
		if !ok {
			return nil
		}
		return thumbMsg(s)
	}
}

func (m RenderModel) waitForDone() tea.Cmd {
	return func() tea.Msg {
		res, err := m.job.Wait()
		if m.feed != nil {
			m.feed.Close()
		}
		return doneMsg{result: res, err: err}
	}
}

func (m RenderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if isQuit(msg) && !m.cancelling {
			m.cancelling = true
			m.job.Cancel()
		}
		return m, nil

	case progressMsg:
		m.status = render.Progress(msg)
		return m, m.waitForProgress()

	case thumbMsg:
		m.thumb = string(msg)
		return m, m.waitForThumb()

	case doneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit

	case tickMsg:
		m.now = time.Time(msg)
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = min(max(msg.Width-16, 20), 60)
		if m.feed != nil {
			m.feed.SetSize(max(msg.Width-8, 16), max(msg.Height-12, 4))
		}
		return m, nil
	}
	return m, nil
}

func (m RenderModel) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n  " + headerStyle.Render("beatframe") + "\n\n")
	b.WriteString("  " + titleStyle.Render(m.title) + "\n")
	if m.subtitle != "" {
		b.WriteString("  " + subtitleStyle.Render(m.subtitle) + "\n")
	}
	b.WriteString("\n")

	if m.thumb != "" {
		for _, line := range strings.Split(thumbStyle.Render(m.thumb), "\n") {
			b.WriteString("  " + line + "\n")
		}
		b.WriteString("\n")
	}

	phase := m.status.Phase
	if phase == "" {
		phase = m.status.State.String()
	}
	b.WriteString("  " + m.spinner.View() + " " + statusStyle.Render(phase) + "\n")

	percent := float64(m.status.Percent) / 100
	line := "  " + m.progress.ViewAs(percent) + fmt.Sprintf("  %3d%%", m.status.Percent)
	if m.status.TotalFrames > 0 {
		line += timeStyle.Render(fmt.Sprintf("  frame %d/%d", m.status.Frame, m.status.TotalFrames))
	}
	b.WriteString(line + "\n")
	b.WriteString("  " + timeStyle.Render("elapsed "+util.FormatDuration(m.now.Sub(m.started))) + "\n\n")

	help := helpText(m.cancelling)
	if m.cancelling {
		b.WriteString("  " + warnStyle.Render(help) + "\n")
	} else {
		b.WriteString("  " + helpStyle.Render(help) + "\n")
	}
	return b.String()
}
