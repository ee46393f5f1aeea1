package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ehazan/timearc/internal/store"
	"github.com/ehazan/timearc/internal/timeline"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func ms(id int64) *int64 { return &id }

func TestWriteSessionsCSV(t *testing.T) {
	loc := time.FixedZone("PST", -7*3600)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, loc)
	sessions := []store.Session{
		{
			ID: 1, Activity: "Study", SubActivity: "Math", Note: "morning",
			StartMs: start.UnixMilli(),
			EndMs:   ms(start.Add(90 * time.Minute).UnixMilli()),
		},
		{
			ID: 2, Activity: "Gaming",
			StartMs:  start.Add(3 * time.Hour).UnixMilli(),
			IsManual: true,
		},
	}

	var buf bytes.Buffer
	if err := WriteSessionsCSV(&buf, sessions, loc); err != nil {
		t.Fatal(err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "id" || rows[0][6] != "duration_minutes" {
		t.Fatalf("unexpected header: %v", rows[0])
	}

	closed := rows[1]
	if closed[1] != "Study" || closed[2] != "Math" || closed[3] != "morning" {
		t.Fatalf("unexpected closed row: %v", closed)
	}
	if !strings.HasPrefix(closed[4], "2026-03-02T09:00:00") {
		t.Fatalf("start stamp = %q", closed[4])
	}
	if closed[6] != "90" {
		t.Fatalf("duration = %q", closed[6])
	}
	if closed[7] != "false" {
		t.Fatalf("manual flag = %q", closed[7])
	}

	// Running session: empty end and duration
	running := rows[2]
	if running[5] != "" || running[6] != "" {
		t.Fatalf("running session should have empty end: %v", running)
	}
	if running[7] != "true" {
		t.Fatalf("manual flag = %q", running[7])
	}
}

func TestBuildBundle(t *testing.T) {
	s := newTestStore(t)
	act, err := s.UpsertActivity("Study")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.InsertCompletedSession(&act, nil, "", 1000, 61000, false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddJournalEntry("note"); err != nil {
		t.Fatal(err)
	}

	b, err := BuildBundle(s)
	if err != nil {
		t.Fatal(err)
	}
	if b.ID == "" {
		t.Fatal("bundle should carry an ID")
	}
	if _, err := time.Parse(time.RFC3339, b.ExportedAt); err != nil {
		t.Fatalf("exported_at = %q: %v", b.ExportedAt, err)
	}
	if len(b.Activities) == 0 {
		t.Fatal("activities missing from bundle")
	}
	if len(b.Sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(b.Sessions))
	}
	if len(b.Journal) != 1 {
		t.Fatalf("expected 1 journal entry, got %d", len(b.Journal))
	}
	if b.Settings.WakeTime != store.DefaultWakeTime {
		t.Fatalf("settings = %+v", b.Settings)
	}

	// Distinct IDs per export
	b2, err := BuildBundle(s)
	if err != nil {
		t.Fatal(err)
	}
	if b2.ID == b.ID {
		t.Fatal("each bundle should get a fresh ID")
	}
}

func TestWriteBundleJSON(t *testing.T) {
	var buf bytes.Buffer
	b := Bundle{ID: "abc", ExportedAt: "2026-03-02T12:00:00Z"}
	if err := WriteBundleJSON(&buf, b); err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["id"] != "abc" {
		t.Fatalf("id = %v", decoded["id"])
	}
	if _, ok := decoded["weekly_template"]; !ok {
		t.Fatal("weekly_template key missing")
	}
}

func TestWriteTimelineCSV(t *testing.T) {
	loc := time.FixedZone("PST", -7*3600)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, loc)
	at := func(clock string) time.Time {
		ts, err := timeline.At(day, clock)
		if err != nil {
			t.Fatal(err)
		}
		return ts
	}

	blocks := []timeline.Block{
		{Start: at("08:00"), End: at("09:00"), Type: timeline.BlockGap},
		{Start: at("09:00"), End: at("10:30"), Type: timeline.BlockLogged, Title: "Study / Math"},
	}

	var buf bytes.Buffer
	if err := WriteTimelineCSV(&buf, blocks); err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	logged := rows[2]
	if logged[0] != "09:00" || logged[1] != "10:30" {
		t.Fatalf("unexpected span: %v", logged)
	}
	if logged[2] != string(timeline.BlockLogged) || logged[3] != "Study / Math" {
		t.Fatalf("unexpected row: %v", logged)
	}
	if logged[4] != "90" {
		t.Fatalf("minutes = %q", logged[4])
	}
}
