package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/ehazan/timearc/internal/store"
)

// settingsModel edits the waking-window settings. Saving appends a new
// version effective from today, so past days keep the window they had.
type settingsModel struct {
	store  *store.Store
	width  int
	height int

	settings   store.ScheduleSettings
	formActive bool
	form       *huh.Form

	// Form values as pointers (survive value copies)
	wakeTime  *string
	sleepTime *string
	timezone  *string
}

func newSettingsModel(s *store.Store) settingsModel {
	wt, st, tz := "", "", ""
	return settingsModel{
		store:     s,
		wakeTime:  &wt,
		sleepTime: &st,
		timezone:  &tz,
	}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

type settingsDataMsg struct {
	settings store.ScheduleSettings
}

func (s settingsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		settings, _ := s.store.ScheduleSettingsFor(s.store.Today())
		return settingsDataMsg{settings: settings}
	}
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	switch msg := msg.(type) {
	case settingsDataMsg:
		s.settings = msg.settings
		return s, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Enter), key.Matches(msg, keys.New):
			return s.showForm()
		}
	}
	return s, nil
}

func (s settingsModel) showForm() (settingsModel, tea.Cmd) {
	*s.wakeTime = s.settings.WakeTime
	*s.sleepTime = s.settings.SleepTime
	*s.timezone = s.settings.Timezone

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Wake time (HH:MM)").Value(s.wakeTime),
			huh.NewInput().Title("Sleep time (HH:MM)").Value(s.sleepTime),
			huh.NewSelect[string]().Title("Timezone").
				Options(
					huh.NewOption("PST", "PST"),
					huh.NewOption("Beijing", "Beijing"),
				).Value(s.timezone),
		),
	).WithShowHelp(true).WithShowErrors(true)

	s.formActive = true
	return s, s.form.Init()
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			s.formActive = false
			s.form = nil
			return s, nil
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.formActive = false
		if err := s.store.SetScheduleSettings(*s.wakeTime, *s.sleepTime, *s.timezone); err != nil {
			return s, func() tea.Msg {
				return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
			}
		}
		return s, tea.Batch(
			s.refresh(),
			func() tea.Msg { return statusMsg{text: "Settings saved, effective today"} },
		)
	}
	return s, cmd
}

func (s settingsModel) view() string {
	w := s.width - 4

	if s.formActive && s.form != nil {
		title := titleStyle.Render("Schedule Settings")
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", s.form.View()),
		)
	}

	title := titleStyle.Render("Schedule Settings")
	effective := s.settings.EffectiveDate
	if effective == "" {
		effective = "defaults"
	}

	rows := []string{
		title,
		"",
		fmt.Sprintf("  %s %s", lipgloss.NewStyle().Width(16).Render("Wake time"), highlightStyle.Render(s.settings.WakeTime)),
		fmt.Sprintf("  %s %s", lipgloss.NewStyle().Width(16).Render("Sleep time"), highlightStyle.Render(s.settings.SleepTime)),
		fmt.Sprintf("  %s %s", lipgloss.NewStyle().Width(16).Render("Timezone"), highlightStyle.Render(s.settings.Timezone)),
		fmt.Sprintf("  %s %s", lipgloss.NewStyle().Width(16).Render("Effective since"), subtitleStyle.Render(effective)),
		"",
		mutedStyle.Render("Press enter to edit settings"),
	}

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
