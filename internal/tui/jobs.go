package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cog-cli/internal/model"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// JobLister is the read side the jobs monitor polls.
type JobLister interface {
	ListJobs(ctx context.Context, seriesID string) ([]model.Job, error)
}

const jobsPollInterval = time.Second

type jobsMsg struct {
	jobs []model.Job
	err  error
}

type jobsTickMsg struct{}

// jobsModel shows pipeline jobs of a series with a progress bar each, until every
// job is terminal or the user quits.
type jobsModel struct {
	ctx      context.Context
	lister   JobLister
	seriesID string
	jobs     []model.Job
	err      error
	bar      progress.Model
	width    int
	done     bool
}

func newJobsModel(ctx context.Context, lister JobLister, seriesID string) jobsModel {
	return jobsModel{
		ctx:      ctx,
		lister:   lister,
		seriesID: seriesID,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		width:    80,
	}
}

func (m jobsModel) poll() tea.Cmd {
	ctx, l, id := m.ctx, m.lister, m.seriesID
	return func() tea.Msg {
		jobs, err := l.ListJobs(ctx, id)
		return jobsMsg{jobs: jobs, err: err}
	}
}

func (m jobsModel) Init() tea.Cmd { return m.poll() }

func (m jobsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(msg.Width-48, 10)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil
	case jobsMsg:
		m.jobs, m.err = msg.jobs, msg.err
		if msg.err == nil && allTerminal(msg.jobs) {
			m.done = true
			return m, tea.Quit
		}
		return m, tea.Tick(jobsPollInterval, func(time.Time) tea.Msg { return jobsTickMsg{} })
	case jobsTickMsg:
		return m, m.poll()
	}
	return m, nil
}

func allTerminal(jobs []model.Job) bool {
	for _, j := range jobs {
		if !j.Status.Terminal() {
			return false
		}
	}
	return true
}

func (m jobsModel) View() string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render("Jobs for "+m.seriesID) + "\n\n")
	if m.err != nil {
		b.WriteString(styleError().Render(m.err.Error()) + "\n")
	}
	if len(m.jobs) == 0 {
		b.WriteString(styleMuted().Render("no jobs") + "\n")
	}
	for _, j := range m.jobs {
		done, total := j.Progress()
		pct := 0.0
		if total > 0 {
			pct = float64(done) / float64(total)
		}
		line := fmt.Sprintf("%-14s %-10s %s %d/%d  %s",
			j.ID, j.Status, m.bar.ViewAs(pct), done, total, humanize.Time(j.UpdatedAt))
		b.WriteString(normalizePane(line, m.width, 1) + "\n")
		if j.Error != "" {
			b.WriteString("  " + styleError().Render(j.Error) + "\n")
		}
	}
	b.WriteString("\n" + styleMuted().Render("q: quit"))
	return b.String()
}

// WatchJobs polls jobs of seriesID until all are terminal or the user quits.
func WatchJobs(ctx context.Context, lister JobLister, seriesID string) error {
	applyThemePreference()
	applyColorProfilePreference()
	_, err := tea.NewProgram(newJobsModel(ctx, lister, seriesID), tea.WithContext(ctx)).Run()
	return err
}
