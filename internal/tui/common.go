package tui

import (
	"fmt"
	"time"
)

// viewState represents the currently active view.
type viewState int

const (
	viewDashboard viewState = iota
	viewDay
	viewSchedule
	viewActivities
	viewJournal
	viewSettings
)

var viewNames = []string{"Dashboard", "Day", "Schedule", "Activities", "Journal", "Settings"}

// --- Messages ---

type sessionStartedMsg struct{}

type sessionStoppedMsg struct{}

type statusMsg struct {
	text    string
	isError bool
}

type tickMsg time.Time

type exportDoneMsg struct {
	path string
}

// --- Helpers ---

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func formatMillis(ms int64) string {
	return formatDuration(time.Duration(ms) * time.Millisecond)
}

func formatHoursMinutes(ms int64) string {
	minutes := ms / 60000
	return fmt.Sprintf("%dh %02dm", minutes/60, minutes%60)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
