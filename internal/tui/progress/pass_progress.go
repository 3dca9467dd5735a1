package progress

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Digital-Shane/sort-me-down/internal/core"
	"github.com/Digital-Shane/sort-me-down/internal/tui/theme"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// PassStarter starts a pass and streams its events. The channel must deliver
// a final event carrying the Report before it closes.
type PassStarter interface {
	Start(ctx context.Context) <-chan core.PassEvent
}

type passEventMsg struct {
	event core.PassEvent
	done  bool
}

const recentLimit = 5

// PassProgressModel renders a live view of one sort pass.
type PassProgressModel struct {
	starter PassStarter
	events  <-chan core.PassEvent
	summary core.PassSummary
	recent  []core.Record
	report  *core.Report
	err     error

	width  int
	height int

	progress progress.Model
	theme    theme.Theme

	ctx      context.Context
	cancel   context.CancelFunc
	stopping bool
	done     bool
}

// NewPassProgressModel creates a model that runs the pass from starter when
// the program starts.
func NewPassProgressModel(ctx context.Context, starter PassStarter, th theme.Theme) *PassProgressModel {
	if ctx == nil {
		ctx = context.Background()
	}
	from, to := th.ProgressGradient()
	prog := progress.New(progress.WithGradient(from, to))
	prog.Width = 50

	m := &PassProgressModel{
		starter:  starter,
		width:    80,
		height:   14,
		progress: prog,
		theme:    th,
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	return m
}

// Init starts the pass.
func (m *PassProgressModel) Init() tea.Cmd {
	if m.starter == nil {
		m.done = true
		return tea.Quit
	}
	m.events = m.starter.Start(m.ctx)
	return m.waitForEvent()
}

func (m *PassProgressModel) waitForEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	return func() tea.Msg {
		evt, ok := <-m.events
		if !ok {
			return passEventMsg{done: true}
		}
		return passEventMsg{event: evt}
	}
}

// Update processes Bubble Tea messages.
func (m *PassProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.progress.Width = max(msg.Width-4, 10)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			// The pass stops between files; keep draining until the final event.
			m.stopping = true
			m.cancel()
			return m, nil
		}
	case passEventMsg:
		return m.handleEvent(msg)
	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *PassProgressModel) handleEvent(msg passEventMsg) (tea.Model, tea.Cmd) {
	if msg.done {
		m.finish()
		return m, tea.Quit
	}

	ev := msg.event
	m.summary = ev.Summary
	if ev.Record != nil {
		m.recent = append(m.recent, *ev.Record)
		if len(m.recent) > recentLimit {
			m.recent = m.recent[len(m.recent)-recentLimit:]
		}
	}
	if ev.Err != nil && !errors.Is(ev.Err, context.Canceled) {
		m.err = ev.Err
	}
	if ev.Report != nil {
		report := *ev.Report
		m.report = &report
	}

	cmd := m.progress.SetPercent(passRatio(m.summary))
	if m.summary.Done {
		m.finish()
		return m, tea.Batch(cmd, tea.Quit)
	}
	return m, tea.Batch(cmd, m.waitForEvent())
}

func (m *PassProgressModel) finish() {
	m.done = true
	m.cancel()
}

// passRatio weighs lookups and moves equally.
func passRatio(s core.PassSummary) float64 {
	if s.Total == 0 {
		if s.Done {
			return 1
		}
		return 0
	}
	return float64(s.LookedUp+s.Processed) / float64(2*s.Total)
}

// Report returns the final pass report, or nil if the pass never finished.
func (m *PassProgressModel) Report() *core.Report {
	return m.report
}

// Err returns the pass error, ignoring cancellation.
func (m *PassProgressModel) Err() error {
	return m.err
}

// Canceled reports whether the user interrupted the pass.
func (m *PassProgressModel) Canceled() bool {
	return m.stopping || m.summary.Canceled
}

// View renders the progress screen.
func (m *PassProgressModel) View() string {
	header := m.theme.HeaderStyle().Width(m.width).Render("Sorting Media")

	colors := m.theme.Colors()
	phaseStyle := lipgloss.NewStyle().Bold(true).Foreground(colors.Accent)
	mutedStyle := lipgloss.NewStyle().Foreground(colors.Muted)

	phase := m.summary.Phase
	if phase == "" {
		phase = core.PhaseScan
	}
	phaseLine := phaseStyle.Render(fmt.Sprintf("%s %s", m.theme.Icon("folder"), strings.ToUpper(phase)))
	if m.stopping && !m.done {
		phaseLine += mutedStyle.Render("  stopping after current file…")
	}

	info := mutedStyle.Render(fmt.Sprintf("Files: %d  Looked up: %d  Processed: %d  Workers: %d",
		m.summary.Total, m.summary.LookedUp, m.summary.Processed, m.summary.Workers))

	sections := []string{header, "", phaseLine, m.progress.View(), info, "", m.renderCounts()}

	if len(m.recent) > 0 {
		sections = append(sections, m.renderRecent())
	}
	if m.err != nil {
		errStyle := lipgloss.NewStyle().Foreground(colors.Error).Bold(true)
		sections = append(sections, errStyle.Render("Error: "+m.err.Error()))
	}

	status := "Press Ctrl+C to stop"
	if m.done {
		status = "Done"
		if m.report != nil {
			status = fmt.Sprintf("Done in %s, %s", m.report.Duration().Round(10*time.Millisecond), humanize.Bytes(uint64(max(m.report.Bytes(), 0))))
		}
	}
	sections = append(sections, m.theme.StatusBarStyle().Width(m.width).Render(status))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *PassProgressModel) renderCounts() string {
	c := m.summary.Counts
	badges := []string{
		m.theme.BadgeStyle(theme.BadgeSuccess).Render(fmt.Sprintf("%s sorted %d", m.theme.Icon("sorted"), c.Sorted)),
		m.theme.BadgeStyle(theme.BadgeWarning).Render(fmt.Sprintf("%s mismatched %d", m.theme.Icon("mismatched"), c.Mismatched)),
		m.theme.BadgeStyle(theme.BadgeError).Render(fmt.Sprintf("%s errored %d", m.theme.Icon("errored"), c.Errored)),
		m.theme.BadgeStyle(theme.BadgeMuted).Render(fmt.Sprintf("%s skipped %d", m.theme.Icon("skipped"), c.Skipped)),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, strings.Join(badges, " "))
}

func (m *PassProgressModel) renderRecent() string {
	panel := m.theme.PanelStyle()
	width := m.width - panel.GetHorizontalFrameSize()
	lines := make([]string, 0, len(m.recent))
	for _, rec := range m.recent {
		lines = append(lines, fmt.Sprintf("%s %s", m.theme.Icon(recordIcon(rec)), describeRecord(rec)))
	}
	return panel.Width(max(width, 20)).Render(strings.Join(lines, "\n"))
}

func recordIcon(rec core.Record) string {
	switch rec.Outcome {
	case core.OutcomeSorted:
		if rec.Category != core.CategoryNone {
			return string(rec.Category)
		}
		return "sorted"
	case core.OutcomeMismatched:
		return "mismatched"
	case core.OutcomeErrored:
		return "errored"
	default:
		return "skipped"
	}
}

func describeRecord(rec core.Record) string {
	name := filepath.Base(rec.Source)
	switch rec.Outcome {
	case core.OutcomeSorted, core.OutcomeMismatched:
		if rec.Destination != "" {
			return fmt.Sprintf("%s → %s", name, rec.Destination)
		}
	case core.OutcomeErrored:
		if rec.Err != nil {
			return fmt.Sprintf("%s: %v", name, rec.Err)
		}
	case core.OutcomeSkipped:
		if rec.Reason != "" {
			return fmt.Sprintf("%s (%s)", name, rec.Reason)
		}
	}
	return name
}
