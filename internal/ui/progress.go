package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
)

// SampleMsg reports one finished sweep sample.
type SampleMsg struct {
	Key     string
	Done    int
	Total   int
	Elapsed time.Duration
}

// DoneMsg ends the progress view.
type DoneMsg struct {
	Err error
}

// SweepProgressModel shows how far a sweep has got.
type SweepProgressModel struct {
	Profile string
	Total   int
	Done    int
	Current string
	Last    time.Duration

	Finished bool
	Quitting bool
	Err      error

	// OnQuit runs when the user interrupts the view.
	OnQuit func()

	progress progress.Model
	width    int
}

func NewSweepProgressModel(profile string, total int) SweepProgressModel {
	p := progress.New(progress.WithDefaultGradient())
	p.Width = 40
	return SweepProgressModel{
		Profile:  profile,
		Total:    total,
		progress: p,
	}
}

func (m SweepProgressModel) Init() tea.Cmd {
	return nil
}

func (m SweepProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.Quitting = true
			if m.OnQuit != nil {
				m.OnQuit()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = msg.Width - 20
		if m.progress.Width > 60 {
			m.progress.Width = 60
		}
		if m.progress.Width < 10 {
			m.progress.Width = 10
		}
		return m, nil

	case SampleMsg:
		m.Done = msg.Done
		if msg.Total > 0 {
			m.Total = msg.Total
		}
		m.Current = msg.Key
		m.Last = msg.Elapsed
		return m, nil

	case DoneMsg:
		m.Finished = true
		m.Err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

// Percent is the completed share of samples.
func (m SweepProgressModel) Percent() float64 {
	if m.Total <= 0 {
		return 0
	}
	p := float64(m.Done) / float64(m.Total)
	if p > 1 {
		p = 1
	}
	return p
}

func (m SweepProgressModel) View() string {
	if m.Quitting {
		return ""
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("SWEEP "+m.Profile) + "\n\n")
	s.WriteString(m.progress.ViewAs(m.Percent()) + "  ")
	s.WriteString(countStyle.Render(fmt.Sprintf("%d/%d", m.Done, m.Total)) + "\n")

	switch {
	case m.Err != nil:
		s.WriteString(errorStyle.Render("failed: "+m.Err.Error()) + "\n")
	case m.Finished:
		s.WriteString(doneStyle.Render("done") + "\n")
	case m.Current != "":
		s.WriteString(fmt.Sprintf("last: %s in %s\n", caseStyle.Render(m.Current), m.Last.Round(time.Millisecond)))
	}

	if !m.Finished {
		s.WriteString(helpStyle.Render("(q) abort") + "\n")
	}
	return s.String()
}
