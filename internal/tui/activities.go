package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/ehazan/timearc/internal/store"
)

var palette = []string{"#3B82F6", "#F97316", "#8B5CF6", "#F59E0B", "#2ECC71", "#E74C3C", "#F8D7DA", "#3498DB"}

type activitiesModel struct {
	store  *store.Store
	width  int
	height int

	activities []store.Activity
	subs       []store.SubActivity
	cursor     int
	subCursor  int
	viewingSub bool

	formActive bool
	form       *huh.Form
	formType   string // "activity", "sub", "color"

	// Form field pointers (survive value copies)
	formName  *string
	formColor *string
	formText  *string
}

func newActivitiesModel(s *store.Store) activitiesModel {
	name, color, text := "", palette[0], "#FFFFFF"
	return activitiesModel{
		store:     s,
		formName:  &name,
		formColor: &color,
		formText:  &text,
	}
}

func (a *activitiesModel) setSize(w, h int) {
	a.width = w
	a.height = h
}

type activitiesDataMsg struct {
	activities []store.Activity
}

type subsDataMsg struct {
	subs []store.SubActivity
}

func (a activitiesModel) refresh() tea.Cmd {
	return func() tea.Msg {
		activities, _ := a.store.ListActivities()
		return activitiesDataMsg{activities: activities}
	}
}

func (a activitiesModel) refreshSubs() tea.Cmd {
	if a.cursor >= len(a.activities) {
		return nil
	}
	id := a.activities[a.cursor].ID
	return func() tea.Msg {
		subs, _ := a.store.ListSubActivities(&id)
		return subsDataMsg{subs: subs}
	}
}

func (a activitiesModel) update(msg tea.Msg) (activitiesModel, tea.Cmd) {
	if a.formActive && a.form != nil {
		return a.updateForm(msg)
	}

	switch msg := msg.(type) {
	case activitiesDataMsg:
		a.activities = msg.activities
		if a.cursor >= len(a.activities) {
			a.cursor = max(0, len(a.activities)-1)
		}
		return a, nil

	case subsDataMsg:
		a.subs = msg.subs
		if a.subCursor >= len(a.subs) {
			a.subCursor = max(0, len(a.subs)-1)
		}
		return a, nil

	case tea.KeyMsg:
		if a.viewingSub {
			return a.updateSubView(msg)
		}
		return a.updateList(msg)
	}
	return a, nil
}

func (a activitiesModel) updateList(msg tea.KeyMsg) (activitiesModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.cursor > 0 {
			a.cursor--
		}
	case key.Matches(msg, keys.Down):
		if a.cursor < len(a.activities)-1 {
			a.cursor++
		}
	case key.Matches(msg, keys.Enter):
		if len(a.activities) > 0 {
			a.viewingSub = true
			a.subCursor = 0
			return a, a.refreshSubs()
		}
	case key.Matches(msg, keys.New):
		return a.showNameForm("activity", "New Activity")
	case key.Matches(msg, keys.Color):
		if len(a.activities) > 0 {
			return a.showColorForm()
		}
	case key.Matches(msg, keys.Delete):
		if len(a.activities) > 0 {
			return a.deleteActivity()
		}
	}
	return a, nil
}

func (a activitiesModel) updateSubView(msg tea.KeyMsg) (activitiesModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Back):
		a.viewingSub = false
		return a, nil
	case key.Matches(msg, keys.Up):
		if a.subCursor > 0 {
			a.subCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.subCursor < len(a.subs)-1 {
			a.subCursor++
		}
	case key.Matches(msg, keys.New):
		return a.showNameForm("sub", "New Sub-activity")
	case key.Matches(msg, keys.Delete):
		if len(a.subs) > 0 {
			return a.deleteSub()
		}
	}
	return a, nil
}

// deleteActivity runs the guarded delete and surfaces the refusal reason
// when the activity is still referenced.
func (a activitiesModel) deleteActivity() (activitiesModel, tea.Cmd) {
	act := a.activities[a.cursor]
	res, err := a.store.DeleteActivity(act.ID)
	if err != nil {
		return a, func() tea.Msg {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
	}
	if !res.OK {
		reason := res.Reason
		return a, func() tea.Msg {
			return statusMsg{text: "Cannot delete " + act.Name + ": " + reason, isError: true}
		}
	}
	return a, tea.Batch(
		a.refresh(),
		func() tea.Msg { return statusMsg{text: "Deleted " + act.Name} },
	)
}

func (a activitiesModel) deleteSub() (activitiesModel, tea.Cmd) {
	sub := a.subs[a.subCursor]
	res, err := a.store.DeleteSubActivity(sub.ID)
	if err != nil {
		return a, func() tea.Msg {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
	}
	if !res.OK {
		reason := res.Reason
		return a, func() tea.Msg {
			return statusMsg{text: "Cannot delete " + sub.Name + ": " + reason, isError: true}
		}
	}
	return a, a.refreshSubs()
}

func (a activitiesModel) showNameForm(formType, title string) (activitiesModel, tea.Cmd) {
	*a.formName = ""
	a.formType = formType

	a.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title(title).Value(a.formName),
		),
	).WithShowHelp(true).WithShowErrors(true)

	a.formActive = true
	return a, a.form.Init()
}

func (a activitiesModel) showColorForm() (activitiesModel, tea.Cmd) {
	act := a.activities[a.cursor]
	*a.formColor = act.ColorHex
	*a.formText = act.TextColor
	a.formType = "color"

	colorOptions := make([]huh.Option[string], len(palette))
	for i, c := range palette {
		colorOptions[i] = huh.NewOption(fmt.Sprintf("● %s", c), c)
	}

	a.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().Title("Color").Options(colorOptions...).Value(a.formColor),
			huh.NewSelect[string]().Title("Text color").
				Options(
					huh.NewOption("White", "#FFFFFF"),
					huh.NewOption("Black", "#000000"),
				).Value(a.formText),
		),
	).WithShowHelp(true).WithShowErrors(true)

	a.formActive = true
	return a, a.form.Init()
}

func (a activitiesModel) updateForm(msg tea.Msg) (activitiesModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			a.formActive = false
			a.form = nil
			return a, nil
		}
	}

	form, cmd := a.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.form = f
	}

	if a.form.State == huh.StateCompleted {
		a.formActive = false
		switch a.formType {
		case "activity":
			if *a.formName != "" {
				a.store.UpsertActivity(*a.formName)
			}
			return a, a.refresh()
		case "sub":
			if *a.formName != "" && a.cursor < len(a.activities) {
				a.store.UpsertSubActivity(a.activities[a.cursor].ID, *a.formName)
			}
			return a, a.refreshSubs()
		case "color":
			act := a.activities[a.cursor]
			a.store.SaveActivityColor(act.ID, *a.formColor, "", *a.formText)
			return a, a.refresh()
		}
	}
	return a, cmd
}

func (a activitiesModel) view() string {
	w := a.width - 4

	if a.formActive && a.form != nil {
		title := titleStyle.Render("Activities")
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", a.form.View()),
		)
	}

	if a.viewingSub {
		return a.renderSubView(w)
	}
	return a.renderList(w)
}

func (a activitiesModel) renderList(w int) string {
	title := titleStyle.Render("Activities")

	if len(a.activities) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("No activities yet. Press n to create one."),
		))
	}

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	for i, act := range a.activities {
		dot := blockStyle(act.ColorHex).Render("●")
		cursor := "  "
		style := normalItemStyle
		if i == a.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(fmt.Sprintf("%s%s %-24s %s", cursor, dot, act.Name, act.ColorHex)))
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new  c: color  d: delete  enter: sub-activities"))
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (a activitiesModel) renderSubView(w int) string {
	act := a.activities[a.cursor]
	dot := blockStyle(act.ColorHex).Render("●")
	title := titleStyle.Render(fmt.Sprintf("%s %s — Sub-activities", dot, act.Name))

	if len(a.subs) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("No sub-activities. Press n to add one."),
		))
	}

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	for i, sub := range a.subs {
		cursor := "  "
		style := normalItemStyle
		if i == a.subCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+sub.Name))
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new  d: delete  esc: back"))
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
