package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/ehazan/timearc/internal/store"
	"github.com/ehazan/timearc/internal/timeline"
)

var weekdayNames = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// scheduleModel edits the weekly recurring template and the one-off manual
// plans. Template edits always go through SetWeeklyTemplate, so past
// versions stay frozen and today is re-instantiated.
type scheduleModel struct {
	store  *store.Store
	width  int
	height int

	events      []store.WeeklyEvent
	manualPlans []store.ManualPlan
	cursor      int
	manualMode  bool

	formActive bool
	form       *huh.Form
	formManual bool

	// Form field pointers (survive value copies)
	formWeekday  *string
	formDate     *string
	formStart    *string
	formEnd      *string
	formActivity *string
	formSub      *string
}

func newScheduleModel(s *store.Store) scheduleModel {
	wd, date, start, end, act, sub := "", "", "", "", "", ""
	return scheduleModel{
		store:        s,
		formWeekday:  &wd,
		formDate:     &date,
		formStart:    &start,
		formEnd:      &end,
		formActivity: &act,
		formSub:      &sub,
	}
}

func (m *scheduleModel) setSize(w, h int) {
	m.width = w
	m.height = h
}

type scheduleDataMsg struct {
	events      []store.WeeklyEvent
	manualPlans []store.ManualPlan
}

func (m scheduleModel) refresh() tea.Cmd {
	return func() tea.Msg {
		events, _ := m.store.WeeklyTemplate()
		plans, _, _ := m.store.ManualPlans(1, 50)
		return scheduleDataMsg{events: events, manualPlans: plans}
	}
}

func (m scheduleModel) update(msg tea.Msg) (scheduleModel, tea.Cmd) {
	if m.formActive && m.form != nil {
		return m.updateForm(msg)
	}

	switch msg := msg.(type) {
	case scheduleDataMsg:
		m.events = msg.events
		m.manualPlans = msg.manualPlans
		if m.cursor >= m.itemCount() {
			m.cursor = max(0, m.itemCount()-1)
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < m.itemCount()-1 {
				m.cursor++
			}
		case key.Matches(msg, keys.Enter):
			m.manualMode = !m.manualMode
			m.cursor = 0
		case key.Matches(msg, keys.New):
			if m.manualMode {
				return m.showManualForm()
			}
			return m.showTemplateForm()
		case key.Matches(msg, keys.Delete):
			return m.deleteSelected()
		}
	}
	return m, nil
}

func (m scheduleModel) itemCount() int {
	if m.manualMode {
		return len(m.manualPlans)
	}
	return len(m.events)
}

// sortedTemplate returns the template entries flattened weekday by weekday,
// matching the rendering order so the cursor lines up.
func (m scheduleModel) sortedTemplate() []store.WeeklyEvent {
	grouped := store.GroupTemplateByWeekday(m.events)
	var out []store.WeeklyEvent
	for day := 0; day < 7; day++ {
		out = append(out, grouped[day]...)
	}
	return out
}

func (m scheduleModel) deleteSelected() (scheduleModel, tea.Cmd) {
	if m.manualMode {
		if m.cursor >= len(m.manualPlans) {
			return m, nil
		}
		plan := m.manualPlans[m.cursor]
		if err := m.store.DeleteManualPlan(plan.ID); err != nil {
			return m, func() tea.Msg {
				return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
			}
		}
		return m, m.refresh()
	}

	flat := m.sortedTemplate()
	if m.cursor >= len(flat) {
		return m, nil
	}
	removed := flat[m.cursor]
	var kept []store.WeeklyEvent
	for _, ev := range flat {
		if ev.ID != removed.ID {
			kept = append(kept, ev)
		}
	}
	if err := m.store.SetWeeklyTemplate(kept); err != nil {
		return m, func() tea.Msg {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
	}
	return m, tea.Batch(
		m.refresh(),
		func() tea.Msg { return statusMsg{text: "Template entry removed"} },
	)
}

func (m scheduleModel) activityOptions() ([]huh.Option[string], error) {
	activities, err := m.store.ListActivities()
	if err != nil {
		return nil, err
	}
	if len(activities) == 0 {
		return nil, fmt.Errorf("no activities defined")
	}
	options := make([]huh.Option[string], len(activities))
	for i, a := range activities {
		options[i] = huh.NewOption(a.Name, a.Name)
	}
	return options, nil
}

func (m scheduleModel) showTemplateForm() (scheduleModel, tea.Cmd) {
	actOptions, err := m.activityOptions()
	if err != nil {
		return m, func() tea.Msg {
			return statusMsg{text: "Create an activity first (press 4)", isError: true}
		}
	}

	*m.formWeekday = "1"
	*m.formStart = ""
	*m.formEnd = ""
	*m.formActivity = actOptions[0].Value
	*m.formSub = ""
	m.formManual = false

	dayOptions := make([]huh.Option[string], 7)
	for i, name := range weekdayNames {
		dayOptions[i] = huh.NewOption(name, strconv.Itoa(i))
	}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().Title("Weekday").Options(dayOptions...).Value(m.formWeekday),
			huh.NewInput().Title("Start (HH:MM)").Value(m.formStart),
			huh.NewInput().Title("End (HH:MM)").Value(m.formEnd),
			huh.NewSelect[string]().Title("Activity").Options(actOptions...).Value(m.formActivity),
			huh.NewInput().Title("Sub-activity (optional)").Value(m.formSub),
		),
	).WithShowHelp(true).WithShowErrors(true)

	m.formActive = true
	return m, m.form.Init()
}

func (m scheduleModel) showManualForm() (scheduleModel, tea.Cmd) {
	actOptions, err := m.activityOptions()
	if err != nil {
		return m, func() tea.Msg {
			return statusMsg{text: "Create an activity first (press 4)", isError: true}
		}
	}

	*m.formDate = m.store.Today()
	*m.formStart = ""
	*m.formEnd = ""
	*m.formActivity = actOptions[0].Value
	*m.formSub = ""
	m.formManual = true

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Date (YYYY-MM-DD)").Value(m.formDate),
			huh.NewInput().Title("Start (HH:MM)").Value(m.formStart),
			huh.NewInput().Title("End (HH:MM)").Value(m.formEnd),
			huh.NewSelect[string]().Title("Activity").Options(actOptions...).Value(m.formActivity),
			huh.NewInput().Title("Sub-activity (optional)").Value(m.formSub),
		),
	).WithShowHelp(true).WithShowErrors(true)

	m.formActive = true
	return m, m.form.Init()
}

func (m scheduleModel) updateForm(msg tea.Msg) (scheduleModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			m.formActive = false
			m.form = nil
			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.formActive = false
		if m.formManual {
			return m, tea.Batch(m.saveManualPlan(), m.refresh())
		}
		return m, tea.Batch(m.saveTemplateEntry(), m.refresh())
	}
	return m, cmd
}

func (m scheduleModel) resolveActivity() (int64, *int64, error) {
	actID, err := m.store.UpsertActivity(*m.formActivity)
	if err != nil {
		return 0, nil, err
	}
	var subID *int64
	if *m.formSub != "" {
		id, err := m.store.UpsertSubActivity(actID, *m.formSub)
		if err != nil {
			return 0, nil, err
		}
		subID = &id
	}
	return actID, subID, nil
}

func (m scheduleModel) saveTemplateEntry() tea.Cmd {
	weekday, _ := strconv.Atoi(*m.formWeekday)
	start, end := *m.formStart, *m.formEnd
	events := m.sortedTemplate()
	return func() tea.Msg {
		actID, subID, err := m.resolveActivity()
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		events = append(events, store.WeeklyEvent{
			DayOfWeek:     weekday,
			StartTime:     start,
			EndTime:       end,
			ActivityID:    actID,
			SubActivityID: subID,
		})
		if err := m.store.SetWeeklyTemplate(events); err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		return statusMsg{text: "Template updated"}
	}
}

func (m scheduleModel) saveManualPlan() tea.Cmd {
	date, start, end := *m.formDate, *m.formStart, *m.formEnd
	return func() tea.Msg {
		actID, subID, err := m.resolveActivity()
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		if _, err := m.store.AddManualPlan(date, start, end, actID, subID); err != nil {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
		return statusMsg{text: "Manual plan added for " + date}
	}
}

func (m scheduleModel) view() string {
	w := m.width - 4

	if m.formActive && m.form != nil {
		title := titleStyle.Render("New Template Entry")
		if m.formManual {
			title = titleStyle.Render("New Manual Plan")
		}
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", m.form.View()),
		)
	}

	if m.manualMode {
		return m.renderManualPlans(w)
	}
	return m.renderTemplate(w)
}

func (m scheduleModel) renderTemplate(w int) string {
	title := titleStyle.Render("Weekly Template")
	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")

	if len(m.events) == 0 {
		rows = append(rows, mutedStyle.Render("  Empty template. Press n to add an entry."))
	}

	grouped := store.GroupTemplateByWeekday(m.events)
	idx := 0
	for day := 0; day < 7; day++ {
		entries := grouped[day]
		if len(entries) == 0 {
			continue
		}
		rows = append(rows, weekdayStyle.Render(weekdayNames[day]))
		for _, ev := range entries {
			dot := blockStyle(ev.ColorHex).Render("●")
			cursor := "  "
			style := normalItemStyle
			if idx == m.cursor {
				cursor = "> "
				style = selectedItemStyle
			}
			label := timeline.JoinTitle(ev.Activity, ev.SubActivity)
			rows = append(rows, style.Render(fmt.Sprintf("%s%s %s-%s  %s", cursor, dot, ev.StartTime, ev.EndTime, label)))
			idx++
		}
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new  d: delete  enter: manual plans"))
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (m scheduleModel) renderManualPlans(w int) string {
	title := titleStyle.Render("Manual Plans")
	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")

	if len(m.manualPlans) == 0 {
		rows = append(rows, mutedStyle.Render("  No manual plans. Press n to add one."))
	}
	for i, p := range m.manualPlans {
		dot := blockStyle(p.ColorHex).Render("●")
		cursor := "  "
		style := normalItemStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		label := timeline.JoinTitle(p.Activity, p.SubActivity)
		rows = append(rows, style.Render(fmt.Sprintf("%s%s %s %s-%s  %s", cursor, dot, p.PlanDate, p.StartTime, p.EndTime, label)))
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new  d: delete  enter: template"))
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
