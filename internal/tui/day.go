package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/ehazan/timearc/internal/store"
	"github.com/ehazan/timearc/internal/timeline"
)

// dayModel renders one date's reconciled timeline of scheduled, logged and
// free blocks.
type dayModel struct {
	store  *store.Store
	width  int
	height int

	date     string
	blocks   []timeline.Block
	hasPlans bool

	formActive bool
	form       *huh.Form

	// Form field pointers (survive value copies)
	formStart    *string
	formEnd      *string
	formActivity *string
}

func newDayModel(s *store.Store) dayModel {
	start, end, act := "", "", ""
	return dayModel{
		store:        s,
		formStart:    &start,
		formEnd:      &end,
		formActivity: &act,
	}
}

func (d *dayModel) setSize(w, h int) {
	d.width = w
	d.height = h
}

type dayDataMsg struct {
	date     string
	blocks   []timeline.Block
	hasPlans bool
}

func (d dayModel) refresh() tea.Cmd {
	date := d.date
	return func() tea.Msg {
		if date == "" {
			date = d.store.Today()
		}
		blocks, err := d.store.DayTimeline(date, time.Now())
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Timeline error: %v", err), isError: true}
		}
		hasPlans, _ := d.store.HasDayPlans(date)
		return dayDataMsg{date: date, blocks: blocks, hasPlans: hasPlans}
	}
}

func (d dayModel) shiftDate(days int) (dayModel, tea.Cmd) {
	base, err := time.Parse(timeline.ISODate, d.date)
	if err != nil {
		return d, d.refresh()
	}
	d.date = base.AddDate(0, 0, days).Format(timeline.ISODate)
	return d, d.refresh()
}

func (d dayModel) update(msg tea.Msg) (dayModel, tea.Cmd) {
	if d.formActive && d.form != nil {
		return d.updateForm(msg)
	}

	switch msg := msg.(type) {
	case dayDataMsg:
		d.date = msg.date
		d.blocks = msg.blocks
		d.hasPlans = msg.hasPlans
		return d, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left):
			return d.shiftDate(-1)
		case key.Matches(msg, keys.Right):
			return d.shiftDate(1)
		case key.Matches(msg, keys.Toggle):
			return d.togglePlans()
		case key.Matches(msg, keys.New):
			return d.showBackfillForm()
		}
	}
	return d, nil
}

func (d dayModel) togglePlans() (dayModel, tea.Cmd) {
	has, err := d.store.ToggleDay(d.date)
	if err != nil {
		return d, func() tea.Msg {
			return statusMsg{text: fmt.Sprintf("Toggle error: %v", err), isError: true}
		}
	}
	text := "Plans cleared for " + d.date
	if has {
		text = "Plans instantiated for " + d.date
	}
	return d, tea.Batch(
		d.refresh(),
		func() tea.Msg { return statusMsg{text: text} },
	)
}

// showBackfillForm opens a form to record a finished session on this date.
func (d dayModel) showBackfillForm() (dayModel, tea.Cmd) {
	activities, err := d.store.ListActivities()
	if err != nil || len(activities) == 0 {
		return d, func() tea.Msg {
			return statusMsg{text: "No activities to record against", isError: true}
		}
	}

	*d.formStart = ""
	*d.formEnd = ""
	*d.formActivity = activities[0].Name

	options := make([]huh.Option[string], len(activities))
	for i, a := range activities {
		options[i] = huh.NewOption(a.Name, a.Name)
	}

	d.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().Title("Activity").Options(options...).Value(d.formActivity),
			huh.NewInput().Title("Start (HH:MM)").Value(d.formStart),
			huh.NewInput().Title("End (HH:MM)").Value(d.formEnd),
		),
	).WithShowHelp(true).WithShowErrors(true)

	d.formActive = true
	return d, d.form.Init()
}

func (d dayModel) updateForm(msg tea.Msg) (dayModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			d.formActive = false
			d.form = nil
			return d, nil
		}
	}

	form, cmd := d.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		d.form = f
	}

	if d.form.State == huh.StateCompleted {
		d.formActive = false
		return d, tea.Batch(d.saveBackfill(), d.refresh())
	}
	return d, cmd
}

func (d dayModel) saveBackfill() tea.Cmd {
	date, name := d.date, *d.formActivity
	startClock, endClock := *d.formStart, *d.formEnd
	return func() tea.Msg {
		settings, err := d.store.ScheduleSettingsFor(date)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		day, err := time.ParseInLocation(timeline.ISODate, date, store.Location(settings.Timezone))
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		start, err := timeline.At(day, startClock)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		end, err := timeline.At(day, endClock)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		actID, err := d.store.UpsertActivity(name)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		_, err = d.store.InsertCompletedSession(&actID, nil, "", start.UnixMilli(), end.UnixMilli(), true)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		return statusMsg{text: "Recorded " + startClock + "-" + endClock + " " + name}
	}
}

func (d dayModel) view() string {
	w := d.width - 4

	if d.formActive && d.form != nil {
		title := titleStyle.Render("Record Session — " + d.date)
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", d.form.View()),
		)
	}

	planState := mutedStyle.Render("no plans")
	if d.hasPlans {
		planState = successStyle.Render("plans active")
	}
	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("Day "+d.date), "  ", planState,
	)

	var rows []string
	rows = append(rows, header)
	rows = append(rows, "")
	if len(d.blocks) == 0 {
		rows = append(rows, mutedStyle.Render("  Empty day"))
	}
	for _, b := range d.blocks {
		rows = append(rows, d.renderBlock(b))
	}

	if len(d.blocks) > 0 {
		rows = append(rows, "")
		rows = append(rows, d.renderBar(w-4))
	}

	rows = append(rows, "")
	rows = append(rows, d.renderTotals())
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  ←/→: day  t: toggle plans  n: record session"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dayModel) renderBlock(b timeline.Block) string {
	span := fmt.Sprintf("%s-%s", b.Start.Format("15:04"), b.End.Format("15:04"))
	mins := int(b.Duration().Minutes())

	switch b.Type {
	case timeline.BlockLogged:
		dot := blockStyle(b.Color).Render("●")
		title := lipgloss.NewStyle().
			Background(lipgloss.Color(b.Color)).
			Foreground(readableTextOn(b.Color)).
			Padding(0, 1).
			Render(b.Title)
		return fmt.Sprintf("  %s %s %s  %s",
			span, dot, title, subtitleStyle.Render(fmt.Sprintf("%dm logged", mins)))
	case timeline.BlockScheduled:
		dotStyle := blockStyle(b.Color)
		if d.date < d.store.Today() {
			// Past plans that never became sessions render dim.
			dotStyle = lipgloss.NewStyle().Foreground(dimmed(b.Color))
		}
		return fmt.Sprintf("  %s %s %s  %s",
			span, dotStyle.Render("○"), normalItemStyle.Render(b.Title), subtitleStyle.Render(fmt.Sprintf("%dm planned", mins)))
	default:
		return mutedStyle.Render(fmt.Sprintf("  %s   %s  %dm", span, b.Title, mins))
	}
}

// renderBar draws the day as one stacked bar, each block sized by its share
// of the waking window.
func (d dayModel) renderBar(width int) string {
	if width < 10 || len(d.blocks) == 0 {
		return ""
	}
	total := d.blocks[len(d.blocks)-1].End.Sub(d.blocks[0].Start)
	if total <= 0 {
		return ""
	}

	var bar strings.Builder
	used := 0
	for i, b := range d.blocks {
		cells := int(float64(width) * float64(b.Duration()) / float64(total))
		if i == len(d.blocks)-1 {
			cells = width - used
		}
		if cells <= 0 {
			continue
		}
		used += cells
		seg := strings.Repeat("█", cells)
		switch b.Type {
		case timeline.BlockLogged:
			bar.WriteString(blockStyle(b.Color).Render(seg))
		case timeline.BlockScheduled:
			bar.WriteString(lipgloss.NewStyle().Foreground(dimmed(b.Color)).Render(seg))
		default:
			bar.WriteString(lipgloss.NewStyle().Foreground(colorSubtle).Render(seg))
		}
	}
	return "  " + bar.String()
}

func (d dayModel) renderTotals() string {
	var logged, scheduled, free time.Duration
	for _, b := range d.blocks {
		switch b.Type {
		case timeline.BlockLogged:
			logged += b.Duration()
		case timeline.BlockScheduled:
			scheduled += b.Duration()
		default:
			free += b.Duration()
		}
	}
	return fmt.Sprintf("  %s %s   %s %s   %s %s",
		successStyle.Render("logged"), formatHoursMinutes(logged.Milliseconds()),
		highlightStyle.Render("planned"), formatHoursMinutes(scheduled.Milliseconds()),
		mutedStyle.Render("free"), formatHoursMinutes(free.Milliseconds()),
	)
}
