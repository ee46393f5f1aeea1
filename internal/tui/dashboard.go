package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ehazan/timearc/internal/store"
	"github.com/ehazan/timearc/internal/timeline"
)

type dashboardModel struct {
	store  *store.Store
	timer  timerModel
	width  int
	height int

	today        string
	todaySummary []store.SummaryRow
	weekTotals   []dayTotal
	activities   []store.Activity

	chart barchart.Model

	// Activity picker state
	picking      bool
	pickingSub   bool
	pickerCursor int
	subs         []store.SubActivity
	pickedAct    store.Activity
}

type dayTotal struct {
	date   string
	millis int64
}

func newDashboardModel(s *store.Store) dashboardModel {
	return dashboardModel{
		store: s,
		timer: newTimerModel(s),
		chart: barchart.New(60, 10),
	}
}

func (d dashboardModel) Init() tea.Cmd {
	return d.loadData()
}

func (d *dashboardModel) setSize(w, h int) {
	d.width = w
	d.height = h
}

func (d dashboardModel) isRunning() bool { return d.timer.running() }
func (d dashboardModel) elapsed() time.Duration {
	return d.timer.currentElapsed()
}

type dashboardDataMsg struct {
	today        string
	todaySummary []store.SummaryRow
	weekTotals   []dayTotal
	activities   []store.Activity
}

func (d dashboardModel) loadData() tea.Cmd {
	return func() tea.Msg {
		today := d.store.Today()
		settings, _ := d.store.ScheduleSettingsFor(today)
		tzOffset := timeline.OffsetFor(settings.Timezone)

		summary, _ := d.store.DaySummary(today, tzOffset)
		activities, _ := d.store.ListActivities()

		base, err := time.Parse(timeline.ISODate, today)
		var week []dayTotal
		if err == nil {
			for i := 6; i >= 0; i-- {
				date := base.AddDate(0, 0, -i).Format(timeline.ISODate)
				rows, _ := d.store.DaySummary(date, tzOffset)
				var total int64
				for _, r := range rows {
					total += r.Millis
				}
				week = append(week, dayTotal{date: date, millis: total})
			}
		}

		return dashboardDataMsg{
			today:        today,
			todaySummary: summary,
			weekTotals:   week,
			activities:   activities,
		}
	}
}

func (d dashboardModel) update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		d.today = msg.today
		d.todaySummary = msg.todaySummary
		d.weekTotals = msg.weekTotals
		d.activities = msg.activities
		d.buildChart()
		return d, nil

	case tickMsg:
		d.timer.tick()
		return d, nil

	case tea.KeyMsg:
		if d.picking {
			return d.updatePicker(msg)
		}

		switch {
		case key.Matches(msg, keys.Start):
			if d.timer.running() {
				return d, nil
			}
			if len(d.activities) == 0 {
				return d, func() tea.Msg {
					return statusMsg{text: "No activities yet. Press 4 to create one.", isError: true}
				}
			}
			d.picking = true
			d.pickingSub = false
			d.pickerCursor = 0
			return d, nil

		case key.Matches(msg, keys.Stop):
			return d.stopSession()
		}
	}
	return d, nil
}

func (d dashboardModel) updatePicker(msg tea.KeyMsg) (dashboardModel, tea.Cmd) {
	items := len(d.activities)
	if d.pickingSub {
		items = len(d.subs) + 1 // extra slot for "(none)"
	}

	switch {
	case key.Matches(msg, keys.Up):
		if d.pickerCursor > 0 {
			d.pickerCursor--
		}
	case key.Matches(msg, keys.Down):
		if d.pickerCursor < items-1 {
			d.pickerCursor++
		}
	case key.Matches(msg, keys.Enter):
		if d.pickingSub {
			var subID *int64
			label := d.pickedAct.Name
			if d.pickerCursor > 0 {
				sub := d.subs[d.pickerCursor-1]
				subID = &sub.ID
				label = timeline.JoinTitle(d.pickedAct.Name, sub.Name)
			}
			d.picking = false
			return d.startSession(&d.pickedAct.ID, subID, label)
		}
		act := d.activities[d.pickerCursor]
		subs, _ := d.store.ListSubActivities(&act.ID)
		if len(subs) == 0 {
			d.picking = false
			return d.startSession(&act.ID, nil, act.Name)
		}
		d.pickedAct = act
		d.subs = subs
		d.pickingSub = true
		d.pickerCursor = 0
	case key.Matches(msg, keys.Back):
		if d.pickingSub {
			d.pickingSub = false
			d.pickerCursor = 0
			return d, nil
		}
		d.picking = false
	}
	return d, nil
}

func (d dashboardModel) startSession(activityID, subActivityID *int64, label string) (dashboardModel, tea.Cmd) {
	if err := d.timer.start(activityID, subActivityID, label); err != nil {
		return d, func() tea.Msg {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
	}
	return d, func() tea.Msg { return sessionStartedMsg{} }
}

func (d dashboardModel) stopSession() (dashboardModel, tea.Cmd) {
	stopped, err := d.timer.stop()
	if err != nil {
		return d, func() tea.Msg {
			return statusMsg{text: fmt.Sprintf("Error: %v", err), isError: true}
		}
	}
	if !stopped {
		return d, nil
	}
	return d, tea.Batch(
		d.loadData(),
		func() tea.Msg { return sessionStoppedMsg{} },
	)
}

func (d *dashboardModel) buildChart() {
	chartWidth := d.width - 8
	if chartWidth < 20 {
		chartWidth = 20
	}
	d.chart = barchart.New(chartWidth, 10)

	var bars []barchart.BarData
	for _, day := range d.weekTotals {
		hours := float64(day.millis) / 3600000.0
		label := day.date[5:] // MM-DD
		style := lipgloss.NewStyle().Foreground(colorPrimary)
		if day.date == d.today {
			style = lipgloss.NewStyle().Foreground(colorSuccess)
		}
		bars = append(bars, barchart.BarData{
			Label:  label,
			Values: []barchart.BarValue{{Name: day.date, Value: hours, Style: style}},
		})
	}
	d.chart.PushAll(bars)
	d.chart.Draw()
}

func (d dashboardModel) view() string {
	if d.width < 20 {
		return "Terminal too small"
	}
	contentWidth := d.width - 4

	timerPanel := d.renderTimerPanel(contentWidth)
	summaryPanel := d.renderSummaryPanel(contentWidth)

	var bottomPanel string
	if d.picking {
		bottomPanel = d.renderPicker(contentWidth)
	} else {
		bottomPanel = d.renderWeekPanel(contentWidth)
	}

	return lipgloss.JoinVertical(lipgloss.Left, timerPanel, summaryPanel, bottomPanel)
}

func (d dashboardModel) renderTimerPanel(w int) string {
	if d.timer.running() {
		timeStr := formatDuration(d.timer.currentElapsed())
		content := lipgloss.JoinVertical(lipgloss.Center,
			timerRunningStyle.Width(w-6).Render(timeStr),
			successStyle.Render("●  RUNNING"),
			highlightStyle.Render(d.timer.label),
		)
		return activePanelStyle.Width(w).Render(content)
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		timerStyle.Width(w-6).Render("00:00:00"),
		mutedStyle.Render("■  STOPPED"),
		mutedStyle.Render("Press s to start tracking"),
	)
	return panelStyle.Width(w).Render(content)
}

func (d dashboardModel) renderSummaryPanel(w int) string {
	var total int64
	for _, r := range d.todaySummary {
		total += r.Millis
	}
	header := fmt.Sprintf("%s  %s",
		titleStyle.Render("Today "+d.today),
		highlightStyle.Render(formatMillis(total)),
	)

	if len(d.todaySummary) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			header,
			mutedStyle.Render("No sessions today"),
		))
	}

	var rows []string
	rows = append(rows, header)
	for _, r := range d.todaySummary {
		rows = append(rows, fmt.Sprintf("  %-32s %s", r.Key, formatMillis(r.Millis)))
	}
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderWeekPanel(w int) string {
	title := titleStyle.Render("Last 7 Days")
	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, "", d.chart.View()),
	)
}

func (d dashboardModel) renderPicker(w int) string {
	title := titleStyle.Render("Select Activity")
	if d.pickingSub {
		title = titleStyle.Render("Select Sub-activity — " + d.pickedAct.Name)
	}

	var rows []string
	rows = append(rows, title)
	if d.pickingSub {
		rows = append(rows, d.pickerRow(0, "", "(none)"))
		for i, sub := range d.subs {
			rows = append(rows, d.pickerRow(i+1, d.pickedAct.ColorHex, sub.Name))
		}
	} else {
		for i, act := range d.activities {
			rows = append(rows, d.pickerRow(i, act.ColorHex, act.Name))
		}
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: select  esc: cancel"))

	return activePanelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) pickerRow(i int, hex, name string) string {
	dot := " "
	if hex != "" {
		dot = blockStyle(hex).Render("●")
	}
	cursor := "  "
	style := normalItemStyle
	if i == d.pickerCursor {
		cursor = "> "
		style = selectedItemStyle
	}
	return style.Render(fmt.Sprintf("%s%s %s", cursor, dot, name))
}
