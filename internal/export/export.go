// Package export writes the tracked data out as CSV or as a JSON bundle
// suitable for backup and re-import.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ehazan/timearc/internal/store"
	"github.com/ehazan/timearc/internal/timeline"
)

var csvHeader = []string{
	"id", "activity", "sub_activity", "note",
	"start", "end", "duration_minutes", "manual",
}

// WriteSessionsCSV writes sessions as CSV with millisecond stamps rendered
// as RFC 3339 in the given location. Running sessions get an empty end and
// duration.
func WriteSessionsCSV(w io.Writer, sessions []store.Session, loc *time.Location) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, s := range sessions {
		end, minutes := "", ""
		if s.EndMs != nil {
			end = time.UnixMilli(*s.EndMs).In(loc).Format(time.RFC3339)
			minutes = strconv.FormatInt((*s.EndMs-s.StartMs)/60000, 10)
		}
		rec := []string{
			strconv.FormatInt(s.ID, 10),
			s.Activity,
			s.SubActivity,
			s.Note,
			time.UnixMilli(s.StartMs).In(loc).Format(time.RFC3339),
			end,
			minutes,
			strconv.FormatBool(s.IsManual),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row %d: %w", s.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Bundle is a full snapshot of the database in a portable shape.
type Bundle struct {
	ID         string                 `json:"id"`
	ExportedAt string                 `json:"exported_at"`
	Settings   store.ScheduleSettings `json:"settings"`
	Activities []store.Activity       `json:"activities"`
	Sessions   []store.Session        `json:"sessions"`
	Template   []store.WeeklyEvent    `json:"weekly_template"`
	Journal    []store.JournalEntry   `json:"journal"`
}

// BuildBundle snapshots the store into a Bundle stamped with a fresh ID.
func BuildBundle(s *store.Store) (Bundle, error) {
	settings, err := s.ScheduleSettingsFor(s.Today())
	if err != nil {
		return Bundle{}, err
	}
	activities, err := s.ListActivities()
	if err != nil {
		return Bundle{}, err
	}
	sessions, err := s.AllSessions()
	if err != nil {
		return Bundle{}, err
	}
	template, err := s.WeeklyTemplate()
	if err != nil {
		return Bundle{}, err
	}
	journal, err := s.JournalRecent(10000, 0)
	if err != nil {
		return Bundle{}, err
	}
	return Bundle{
		ID:         uuid.NewString(),
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Settings:   settings,
		Activities: activities,
		Sessions:   sessions,
		Template:   template,
		Journal:    journal,
	}, nil
}

// WriteBundleJSON writes the bundle as indented JSON.
func WriteBundleJSON(w io.Writer, b Bundle) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}

// WriteTimelineCSV writes one day's reconciled blocks as CSV rows.
func WriteTimelineCSV(w io.Writer, blocks []timeline.Block) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"start", "end", "type", "title", "minutes"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, b := range blocks {
		rec := []string{
			b.Start.Format("15:04"),
			b.End.Format("15:04"),
			string(b.Type),
			b.Title,
			strconv.Itoa(int(b.Duration().Minutes())),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
