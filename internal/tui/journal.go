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
)

type journalModel struct {
	store  *store.Store
	width  int
	height int

	entries []store.JournalEntry
	cursor  int

	formActive bool
	form       *huh.Form
	editingID  int64 // 0 means new entry

	formContent *string
}

func newJournalModel(s *store.Store) journalModel {
	content := ""
	return journalModel{
		store:       s,
		formContent: &content,
	}
}

func (j *journalModel) setSize(w, h int) {
	j.width = w
	j.height = h
}

type journalDataMsg struct {
	entries []store.JournalEntry
}

func (j journalModel) refresh() tea.Cmd {
	return func() tea.Msg {
		entries, _ := j.store.JournalRecent(30, 0)
		return journalDataMsg{entries: entries}
	}
}

func (j journalModel) update(msg tea.Msg) (journalModel, tea.Cmd) {
	if j.formActive && j.form != nil {
		return j.updateForm(msg)
	}

	switch msg := msg.(type) {
	case journalDataMsg:
		j.entries = msg.entries
		if j.cursor >= len(j.entries) {
			j.cursor = max(0, len(j.entries)-1)
		}
		return j, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if j.cursor > 0 {
				j.cursor--
			}
		case key.Matches(msg, keys.Down):
			if j.cursor < len(j.entries)-1 {
				j.cursor++
			}
		case key.Matches(msg, keys.New):
			return j.showForm(0, "")
		case key.Matches(msg, keys.Edit):
			if len(j.entries) > 0 {
				e := j.entries[j.cursor]
				return j.showForm(e.ID, e.Content)
			}
		case key.Matches(msg, keys.Delete):
			if len(j.entries) > 0 {
				j.store.DeleteJournalEntry(j.entries[j.cursor].ID)
				return j, j.refresh()
			}
		}
	}
	return j, nil
}

func (j journalModel) showForm(id int64, content string) (journalModel, tea.Cmd) {
	*j.formContent = content
	j.editingID = id

	j.form = huh.NewForm(
		huh.NewGroup(
			huh.NewText().Title("Entry").Value(j.formContent),
		),
	).WithShowHelp(true).WithShowErrors(true)

	j.formActive = true
	return j, j.form.Init()
}

func (j journalModel) updateForm(msg tea.Msg) (journalModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			j.formActive = false
			j.form = nil
			return j, nil
		}
	}

	form, cmd := j.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		j.form = f
	}

	if j.form.State == huh.StateCompleted {
		j.formActive = false
		if *j.formContent != "" {
			var err error
			if j.editingID == 0 {
				_, err = j.store.AddJournalEntry(*j.formContent)
			} else {
				err = j.store.UpdateJournalEntry(j.editingID, *j.formContent)
			}
			if err != nil {
				return j, func() tea.Msg {
					return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
				}
			}
		}
		return j, j.refresh()
	}
	return j, cmd
}

func (j journalModel) view() string {
	w := j.width - 4

	if j.formActive && j.form != nil {
		title := titleStyle.Render("Journal Entry")
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", j.form.View()),
		)
	}

	title := titleStyle.Render("Journal")
	if len(j.entries) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("No entries yet. Press n to write one."),
		))
	}

	var rows []string
	rows = append(rows, title)
	rows = append(rows, "")
	for i, e := range j.entries {
		cursor := "  "
		style := normalItemStyle
		if i == j.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		stamp := time.UnixMilli(e.CreatedMs).Format("15:04")
		edited := ""
		if e.EditedMs != nil {
			edited = mutedStyle.Render(" (edited)")
		}
		preview := e.Content
		if idx := strings.IndexByte(preview, '\n'); idx >= 0 {
			preview = preview[:idx]
		}
		if len(preview) > 60 {
			preview = preview[:60] + "…"
		}
		rows = append(rows, style.Render(fmt.Sprintf("%s%s %s  %s", cursor, subtitleStyle.Render(e.EntryDate), stamp, preview))+edited)
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new  e: edit  d: delete"))
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
