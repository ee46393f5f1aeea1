package store

import (
	"testing"
	"time"

	"github.com/ehazan/timearc/internal/timeline"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// msAt returns the unix ms stamp for a clock time on an ISO date in the
// default app timezone.
func msAt(t *testing.T, isoDate, clock string) int64 {
	t.Helper()
	day, err := time.ParseInLocation(timeline.ISODate, isoDate, appLocation(DefaultTimezone))
	if err != nil {
		t.Fatalf("parse %s: %v", isoDate, err)
	}
	ts, err := timeline.At(day, clock)
	if err != nil {
		t.Fatalf("at %s: %v", clock, err)
	}
	return ts.UnixMilli()
}

func activityID(t *testing.T, s *Store, name string) int64 {
	t.Helper()
	id, err := s.UpsertActivity(name)
	if err != nil {
		t.Fatalf("upsert %s: %v", name, err)
	}
	return id
}

// fullWeekTemplate installs one template entry per weekday so weekday
// dependent tests don't care what day they run on.
func fullWeekTemplate(t *testing.T, s *Store, actID int64) {
	t.Helper()
	var events []WeeklyEvent
	for day := 0; day < 7; day++ {
		events = append(events, WeeklyEvent{
			DayOfWeek: day, StartTime: "09:00", EndTime: "10:00", ActivityID: actID,
		})
	}
	if err := s.SetWeeklyTemplate(events); err != nil {
		t.Fatalf("set template: %v", err)
	}
}

// ============================================================
// Store initialization
// ============================================================

func TestNewMemory(t *testing.T) {
	s, err := NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	var version int
	s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if version != currentVersion {
		t.Fatalf("expected user_version %d, got %d", currentVersion, version)
	}
}

func TestNewWithPath(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/sub/timearc.db"
	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Reopen — should succeed and not re-migrate
	s2, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	s2.Close()
}

func TestMigrationIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.migrate(); err != nil {
		t.Fatalf("second migration failed: %v", err)
	}
}

func TestSeedDefaults(t *testing.T) {
	s := newTestStore(t)
	activities, err := s.ListActivities()
	if err != nil {
		t.Fatal(err)
	}
	if len(activities) == 0 {
		t.Fatal("fresh store should have seeded activities")
	}
	for _, a := range activities {
		if a.ColorHex == "" {
			t.Fatalf("seeded activity %s has no color", a.Name)
		}
	}
}

// ============================================================
// Activities
// ============================================================

func TestUpsertActivityIdempotent(t *testing.T) {
	s := newTestStore(t)
	id1 := activityID(t, s, "Reading")
	id2 := activityID(t, s, "Reading")
	if id1 != id2 {
		t.Fatalf("upsert should return the same ID: %d vs %d", id1, id2)
	}
}

func TestSubActivities(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Study")
	sub1, err := s.UpsertSubActivity(act, "Math")
	if err != nil {
		t.Fatal(err)
	}
	sub2, err := s.UpsertSubActivity(act, "Math")
	if err != nil {
		t.Fatal(err)
	}
	if sub1 != sub2 {
		t.Fatal("duplicate sub-activity should reuse the row")
	}

	subs, err := s.ListSubActivities(&act)
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 || subs[0].Name != "Math" {
		t.Fatalf("unexpected subs: %+v", subs)
	}
}

func TestActivityColorRoundtrip(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Gaming2")

	// No row yet: defaults
	c, err := s.ActivityColor(act)
	if err != nil {
		t.Fatal(err)
	}
	if c.ColorHex != DefaultColorHex || c.TextColor != DefaultTextColor {
		t.Fatalf("expected defaults, got %+v", c)
	}

	if err := s.SaveActivityColor(act, "#F8D7DA", "#F8D7DA", "#721C24"); err != nil {
		t.Fatal(err)
	}
	c, err = s.ActivityColor(act)
	if err != nil {
		t.Fatal(err)
	}
	if c.ColorHex != "#F8D7DA" || c.TextColor != "#721C24" {
		t.Fatalf("color not saved: %+v", c)
	}

	// Upsert path
	if err := s.SaveActivityColor(act, "#000000", "", "#FFFFFF"); err != nil {
		t.Fatal(err)
	}
	c, _ = s.ActivityColor(act)
	if c.ColorHex != "#000000" {
		t.Fatalf("color not replaced: %+v", c)
	}
}

func TestDeleteActivityBlockedByReferences(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Busy")
	if _, err := s.InsertCompletedSession(&act, nil, "", 1000, 61000, false); err != nil {
		t.Fatal(err)
	}

	res, err := s.DeleteActivity(act)
	if err != nil {
		t.Fatal(err)
	}
	if res.OK {
		t.Fatal("delete should be blocked while sessions reference the activity")
	}
	if res.Reason == "" {
		t.Fatal("blocked delete should carry a reason")
	}

	// Still present
	activities, _ := s.ListActivities()
	found := false
	for _, a := range activities {
		if a.ID == act {
			found = true
		}
	}
	if !found {
		t.Fatal("blocked activity should remain")
	}
}

func TestDeleteActivityUnreferenced(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Ephemeral")
	s.UpsertSubActivity(act, "Sub")
	s.SaveActivityColor(act, "#123456", "", "#FFFFFF")

	res, err := s.DeleteActivity(act)
	if err != nil {
		t.Fatal(err)
	}
	if !res.OK {
		t.Fatalf("delete should succeed, reason: %s", res.Reason)
	}

	subs, _ := s.ListSubActivities(&act)
	if len(subs) != 0 {
		t.Fatal("sub-activities should be removed with the activity")
	}
}

// ============================================================
// Sessions
// ============================================================

func TestStartSessionClosesRunning(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Study")

	id1, err := s.StartSession(&act, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	id2, err := s.StartSession(&act, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if id1 == id2 {
		t.Fatal("expected a new session row")
	}

	running, err := s.RunningSession()
	if err != nil {
		t.Fatal(err)
	}
	if running == nil || running.ID != id2 {
		t.Fatalf("expected session %d running, got %+v", id2, running)
	}

	// Only one open row ever
	var open int
	s.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE end_ms IS NULL`).Scan(&open)
	if open != 1 {
		t.Fatalf("expected 1 open session, got %d", open)
	}
}

func TestStopSession(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Study")
	s.StartSession(&act, nil, "")

	stopped, err := s.StopSession()
	if err != nil {
		t.Fatal(err)
	}
	if !stopped {
		t.Fatal("expected a session to stop")
	}

	running, _ := s.RunningSession()
	if running != nil {
		t.Fatal("no session should be running")
	}

	stopped, err = s.StopSession()
	if err != nil {
		t.Fatal(err)
	}
	if stopped {
		t.Fatal("second stop should be a no-op")
	}
}

func TestInsertCompletedSessionValidation(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Study")
	if _, err := s.InsertCompletedSession(&act, nil, "", 2000, 1000, true); err == nil {
		t.Fatal("end before start should be rejected")
	}
	if _, err := s.InsertCompletedSession(&act, nil, "", 1000, 1000, true); err == nil {
		t.Fatal("zero-length session should be rejected")
	}
}

func TestSessionsForDay(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Study")
	sub, _ := s.UpsertSubActivity(act, "Math")

	date := "2026-03-02"
	s.InsertCompletedSession(&act, &sub, "morning", msAt(t, date, "09:00"), msAt(t, date, "10:00"), false)
	s.InsertCompletedSession(&act, nil, "next day", msAt(t, "2026-03-03", "09:00"), msAt(t, "2026-03-03", "10:00"), false)

	sessions, err := s.SessionsForDay(date, timeline.OffsetFor(DefaultTimezone))
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	got := sessions[0]
	if got.Activity != "Study" || got.SubActivity != "Math" {
		t.Fatalf("names not resolved: %+v", got)
	}
	if got.ColorHex == "" {
		t.Fatal("color should be resolved or defaulted")
	}
}

func TestManualRecordsPagination(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Study")
	base := msAt(t, "2026-03-02", "08:00")
	for i := 0; i < 5; i++ {
		off := int64(i) * 3600_000
		s.InsertCompletedSession(&act, nil, "", base+off, base+off+1800_000, true)
	}
	s.InsertCompletedSession(&act, nil, "", base+10*3600_000, base+11*3600_000, false)

	records, page, err := s.ManualRecords(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if page.Total != 5 || page.TotalPages != 3 {
		t.Fatalf("unexpected page info: %+v", page)
	}
	// Newest first
	if records[0].StartMs < records[1].StartMs {
		t.Fatal("records should be newest first")
	}
}

func TestDeleteManualRecordOnlyManual(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Study")
	id, _ := s.InsertCompletedSession(&act, nil, "", 1000, 61000, false)

	ok, err := s.DeleteManualRecord(id)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("non-manual sessions must not be deletable as manual records")
	}

	manualID, _ := s.InsertCompletedSession(&act, nil, "", 1000, 61000, true)
	ok, err = s.DeleteManualRecord(manualID)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("manual record should be deleted")
	}
}

func TestDaySummary(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Study")
	sub, _ := s.UpsertSubActivity(act, "Math")
	date := "2026-03-02"
	s.InsertCompletedSession(&act, &sub, "", msAt(t, date, "09:00"), msAt(t, date, "10:00"), false)
	s.InsertCompletedSession(&act, &sub, "", msAt(t, date, "14:00"), msAt(t, date, "14:30"), false)

	rows, err := s.DaySummary(date, timeline.OffsetFor(DefaultTimezone))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 summary row, got %d", len(rows))
	}
	if rows[0].Key != "Study / Math" {
		t.Fatalf("key = %q", rows[0].Key)
	}
	if rows[0].Millis != 90*60*1000 {
		t.Fatalf("millis = %d, want 90m", rows[0].Millis)
	}
}

func TestDaysWithDataInMonth(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Study")
	s.InsertCompletedSession(&act, nil, "", msAt(t, "2026-03-02", "12:00"), msAt(t, "2026-03-02", "13:00"), false)
	s.InsertCompletedSession(&act, nil, "", msAt(t, "2026-03-15", "12:00"), msAt(t, "2026-03-15", "13:00"), false)
	s.InsertCompletedSession(&act, nil, "", msAt(t, "2026-04-01", "12:00"), msAt(t, "2026-04-01", "13:00"), false)

	days, err := s.DaysWithDataInMonth("2026-03")
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 2 {
		t.Fatalf("expected 2 days, got %v", days)
	}
}

// ============================================================
// Schedule settings
// ============================================================

func TestScheduleSettingsDefaults(t *testing.T) {
	s := newTestStore(t)
	settings, err := s.ScheduleSettingsFor("2026-03-02")
	if err != nil {
		t.Fatal(err)
	}
	if settings.WakeTime != DefaultWakeTime || settings.SleepTime != DefaultSleepTime || settings.Timezone != DefaultTimezone {
		t.Fatalf("unexpected defaults: %+v", settings)
	}
}

func TestScheduleSettingsVersioning(t *testing.T) {
	s := newTestStore(t)
	s.db.Exec(`INSERT INTO daily_schedule_settings (effective_date, wake_time, sleep_time, timezone) VALUES (?, ?, ?, ?)`,
		"2026-01-01", "07:00", "22:00", "PST")
	s.db.Exec(`INSERT INTO daily_schedule_settings (effective_date, wake_time, sleep_time, timezone) VALUES (?, ?, ?, ?)`,
		"2026-03-01", "09:00", "23:00", "Beijing")

	// Before the first version: defaults
	settings, _ := s.ScheduleSettingsFor("2025-12-31")
	if settings.WakeTime != DefaultWakeTime {
		t.Fatalf("pre-history date should get defaults, got %+v", settings)
	}

	// Between versions: the earlier row
	settings, _ = s.ScheduleSettingsFor("2026-02-15")
	if settings.WakeTime != "07:00" || settings.Timezone != "PST" {
		t.Fatalf("mid-history date got %+v", settings)
	}

	// After the second version
	settings, _ = s.ScheduleSettingsFor("2026-03-02")
	if settings.WakeTime != "09:00" || settings.Timezone != "Beijing" {
		t.Fatalf("latest date got %+v", settings)
	}
}

func TestSetScheduleSettingsKeepsEmptyFields(t *testing.T) {
	s := newTestStore(t)
	if err := s.SetScheduleSettings("06:30", "", ""); err != nil {
		t.Fatal(err)
	}
	settings, _ := s.ScheduleSettingsFor(s.Today())
	if settings.WakeTime != "06:30" {
		t.Fatalf("wake time not saved: %+v", settings)
	}
	if settings.SleepTime != DefaultSleepTime || settings.Timezone != DefaultTimezone {
		t.Fatalf("empty fields should keep current values: %+v", settings)
	}
}

func TestSetScheduleSettingsValidatesClock(t *testing.T) {
	s := newTestStore(t)
	if err := s.SetScheduleSettings("25:00", "", ""); err == nil {
		t.Fatal("bad wake time should be rejected")
	}
	if err := s.SetScheduleSettings("", "12:61", ""); err == nil {
		t.Fatal("bad sleep time should be rejected")
	}
}

// ============================================================
// Weekly template
// ============================================================

func TestSetWeeklyTemplateRejectsOverlap(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Study")
	err := s.SetWeeklyTemplate([]WeeklyEvent{
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "11:00", ActivityID: act},
		{DayOfWeek: 1, StartTime: "10:00", EndTime: "12:00", ActivityID: act},
	})
	if err == nil {
		t.Fatal("overlapping same-day entries should be rejected")
	}
}

func TestSetWeeklyTemplateAllowsTouchingAndOtherDays(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Study")
	err := s.SetWeeklyTemplate([]WeeklyEvent{
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "10:00", ActivityID: act},
		{DayOfWeek: 1, StartTime: "10:00", EndTime: "11:00", ActivityID: act},
		{DayOfWeek: 2, StartTime: "09:30", EndTime: "10:30", ActivityID: act},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSetWeeklyTemplateRejectsInvertedEntry(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Study")
	err := s.SetWeeklyTemplate([]WeeklyEvent{
		{DayOfWeek: 1, StartTime: "11:00", EndTime: "10:00", ActivityID: act},
	})
	if err == nil {
		t.Fatal("inverted entry should be rejected")
	}
}

func TestWeeklyTemplateReturnsLatestVersion(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Study")

	// Historical version, stamped in the past
	s.db.Exec(`INSERT INTO weekly_schedule_events (effective_date, day_of_week, start_time, end_time, activity_id) VALUES (?, ?, ?, ?, ?)`,
		"2020-01-01", 1, "06:00", "07:00", act)

	fullWeekTemplate(t, s, act)

	events, err := s.WeeklyTemplate()
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 7 {
		t.Fatalf("expected 7 current entries, got %d", len(events))
	}
	for _, ev := range events {
		if ev.StartTime == "06:00" {
			t.Fatal("historical version leaked into current template")
		}
	}

	// The historical row itself is untouched
	var count int
	s.db.QueryRow(`SELECT COUNT(*) FROM weekly_schedule_events WHERE effective_date = '2020-01-01'`).Scan(&count)
	if count != 1 {
		t.Fatal("past template versions must not be rewritten")
	}
}

func TestSetWeeklyTemplateInstantiatesToday(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Study")
	fullWeekTemplate(t, s, act)

	plans, err := s.DailyPlansForDate(s.Today())
	if err != nil {
		t.Fatal(err)
	}
	if len(plans) != 1 {
		t.Fatalf("today should be instantiated from the new template, got %d plans", len(plans))
	}
}

func TestGroupTemplateByWeekday(t *testing.T) {
	events := []WeeklyEvent{
		{DayOfWeek: 1, StartTime: "14:00", EndTime: "15:00"},
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "10:00"},
		{DayOfWeek: 3, StartTime: "09:00", EndTime: "10:00"},
	}
	grouped := GroupTemplateByWeekday(events)
	if len(grouped[1]) != 2 || len(grouped[3]) != 1 {
		t.Fatalf("unexpected grouping: %+v", grouped)
	}
	if grouped[1][0].StartTime != "09:00" {
		t.Fatal("entries should be sorted by start time")
	}
}

// ============================================================
// Manual plans
// ============================================================

func TestAddManualPlanValidation(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Study")
	if _, err := s.AddManualPlan("03/02/2026", "09:00", "10:00", act, nil); err == nil {
		t.Fatal("bad date should be rejected")
	}
	if _, err := s.AddManualPlan("2026-03-02", "9am", "10:00", act, nil); err == nil {
		t.Fatal("bad clock should be rejected")
	}
	if _, err := s.AddManualPlan("2026-03-02", "09:00", "10:00", act, nil); err != nil {
		t.Fatal(err)
	}
}

func TestManualPlansForDate(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Study")
	s.AddManualPlan("2026-03-02", "14:00", "15:00", act, nil)
	s.AddManualPlan("2026-03-02", "09:00", "10:00", act, nil)
	s.AddManualPlan("2026-03-03", "09:00", "10:00", act, nil)

	plans, err := s.ManualPlansForDate("2026-03-02")
	if err != nil {
		t.Fatal(err)
	}
	if len(plans) != 2 {
		t.Fatalf("expected 2 plans, got %d", len(plans))
	}
	if plans[0].StartTime != "09:00" {
		t.Fatal("plans should be sorted by start time")
	}
	if plans[0].Activity != "Study" {
		t.Fatalf("activity name not resolved: %+v", plans[0])
	}
}

func TestDeleteManualPlan(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Study")
	id, _ := s.AddManualPlan("2026-03-02", "09:00", "10:00", act, nil)
	if err := s.DeleteManualPlan(id); err != nil {
		t.Fatal(err)
	}
	plans, _ := s.ManualPlansForDate("2026-03-02")
	if len(plans) != 0 {
		t.Fatal("plan should be gone")
	}
}

// ============================================================
// Daily plan instantiation
// ============================================================

func TestInstantiateDayMatchesWeekday(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Study")
	// Monday-only entry
	if err := s.SetWeeklyTemplate([]WeeklyEvent{
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "10:00", ActivityID: act},
	}); err != nil {
		t.Fatal(err)
	}

	if err := s.InstantiateDay("2026-03-02"); err != nil { // a Monday
		t.Fatal(err)
	}
	plans, _ := s.DailyPlansForDate("2026-03-02")
	if len(plans) != 1 {
		t.Fatalf("Monday should get 1 plan, got %d", len(plans))
	}
	if plans[0].Source != PlanSourceWeekly {
		t.Fatalf("source = %q", plans[0].Source)
	}
	if plans[0].Title != "Study" {
		t.Fatalf("snapshot title = %q", plans[0].Title)
	}

	if err := s.InstantiateDay("2026-03-03"); err != nil { // a Tuesday
		t.Fatal(err)
	}
	plans, _ = s.DailyPlansForDate("2026-03-03")
	if len(plans) != 0 {
		t.Fatalf("Tuesday should get 0 plans, got %d", len(plans))
	}
}

func TestInstantiateDayIdempotent(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Study")
	fullWeekTemplate(t, s, act)

	if err := s.InstantiateDay("2026-03-02"); err != nil {
		t.Fatal(err)
	}
	if err := s.InstantiateDay("2026-03-02"); err != nil {
		t.Fatal(err)
	}
	plans, _ := s.DailyPlansForDate("2026-03-02")
	if len(plans) != 1 {
		t.Fatalf("re-instantiation should not duplicate, got %d plans", len(plans))
	}
}

func TestToggleDay(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Study")
	fullWeekTemplate(t, s, act)

	date := "2026-03-02"
	has, err := s.ToggleDay(date)
	if err != nil {
		t.Fatal(err)
	}
	if !has {
		t.Fatal("first toggle should instantiate")
	}

	has, err = s.ToggleDay(date)
	if err != nil {
		t.Fatal(err)
	}
	if has {
		t.Fatal("second toggle should clear")
	}
	plans, _ := s.DailyPlansForDate(date)
	if len(plans) != 0 {
		t.Fatal("plans should be cleared")
	}
}

func TestEnsureTodayOnlyInstantiatesToday(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Study")
	fullWeekTemplate(t, s, act)
	s.ClearDay(s.Today())

	// A past date stays empty
	if err := s.EnsureToday("2020-01-06"); err != nil {
		t.Fatal(err)
	}
	plans, _ := s.DailyPlansForDate("2020-01-06")
	if len(plans) != 0 {
		t.Fatal("past dates must not be auto-instantiated")
	}

	// Today fills in
	if err := s.EnsureToday(s.Today()); err != nil {
		t.Fatal(err)
	}
	plans, _ = s.DailyPlansForDate(s.Today())
	if len(plans) != 1 {
		t.Fatalf("today should be instantiated, got %d plans", len(plans))
	}

	// A second call leaves a cleared-then-filled day alone
	if err := s.EnsureToday(s.Today()); err != nil {
		t.Fatal(err)
	}
	plans, _ = s.DailyPlansForDate(s.Today())
	if len(plans) != 1 {
		t.Fatal("EnsureToday must not duplicate plans")
	}
}

func TestPlannedMonthSummary(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Study")
	if err := s.SetWeeklyTemplate([]WeeklyEvent{
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "10:30", ActivityID: act},
	}); err != nil {
		t.Fatal(err)
	}
	s.InstantiateDay("2026-03-02")
	s.InstantiateDay("2026-03-09")

	rows, err := s.PlannedMonthSummary("2026-03")
	if err != nil {
		t.Fatal(err)
	}
	var total int64
	for _, r := range rows {
		if r.Key == "Study / "+NoSubActivityLabel {
			total = r.Millis
		}
	}
	if total != 2*90*60*1000 {
		t.Fatalf("planned total = %d, want 180m", total)
	}
}

func TestCombinedMonthSummary(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Study")
	if err := s.SetWeeklyTemplate([]WeeklyEvent{
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "10:00", ActivityID: act},
	}); err != nil {
		t.Fatal(err)
	}
	s.InstantiateDay("2026-03-02")
	s.InsertCompletedSession(&act, nil, "", msAt(t, "2026-03-10", "12:00"), msAt(t, "2026-03-10", "12:30"), false)

	rows, err := s.CombinedMonthSummary("2026-03")
	if err != nil {
		t.Fatal(err)
	}
	var total int64
	for _, r := range rows {
		total += r.Millis
	}
	if total != 90*60*1000 {
		t.Fatalf("combined total = %d, want 90m", total)
	}
}

func TestBackfillPlanActivities(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Study")
	sub, _ := s.UpsertSubActivity(act, "Math")

	s.db.Exec(`INSERT INTO daily_instantiated_plans (plan_date, start_time, end_time, title, subtitle, source) VALUES (?, ?, ?, ?, ?, 'weekly')`,
		"2025-01-06", "09:00", "10:00", "Study / Math", nil)
	s.db.Exec(`INSERT INTO daily_instantiated_plans (plan_date, start_time, end_time, title, source) VALUES (?, ?, ?, ?, 'weekly')`,
		"2025-01-06", "10:00", "11:00", "Unknown Thing")

	n, err := s.BackfillPlanActivities()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row backfilled, got %d", n)
	}

	plans, _ := s.DailyPlansForDate("2025-01-06")
	var linked *DailyPlan
	for i := range plans {
		if plans[i].Title == "Study / Math" {
			linked = &plans[i]
		}
	}
	if linked == nil || linked.ActivityID == nil || *linked.ActivityID != act {
		t.Fatalf("plan not linked: %+v", linked)
	}
	if linked.SubActivityID == nil || *linked.SubActivityID != sub {
		t.Fatalf("sub-activity not linked: %+v", linked)
	}

	// Idempotent
	n, err = s.BackfillPlanActivities()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("second backfill should touch nothing, got %d", n)
	}
}

// ============================================================
// Journal
// ============================================================

func TestJournalAddAndList(t *testing.T) {
	s := newTestStore(t)
	e, err := s.AddJournalEntry("  reviewed calculus  ")
	if err != nil {
		t.Fatal(err)
	}
	if e.Content != "reviewed calculus" {
		t.Fatalf("content not trimmed: %q", e.Content)
	}
	if e.EntryDate != s.Today() {
		t.Fatalf("entry date %q, want today", e.EntryDate)
	}

	entries, err := s.JournalByDay(s.Today())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].ID != e.ID {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestJournalRejectsEmpty(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.AddJournalEntry("   "); err == nil {
		t.Fatal("blank entry should be rejected")
	}
}

func TestJournalUpdate(t *testing.T) {
	s := newTestStore(t)
	e, _ := s.AddJournalEntry("draft")
	if err := s.UpdateJournalEntry(e.ID, "final"); err != nil {
		t.Fatal(err)
	}
	entries, _ := s.JournalByDay(s.Today())
	if entries[0].Content != "final" {
		t.Fatalf("content = %q", entries[0].Content)
	}
	if entries[0].EditedMs == nil {
		t.Fatal("edit should be stamped")
	}

	if err := s.UpdateJournalEntry(9999, "x"); err == nil {
		t.Fatal("missing entry should error")
	}
}

func TestJournalRecentCursor(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		if _, err := s.AddJournalEntry("note"); err != nil {
			t.Fatal(err)
		}
		time.Sleep(2 * time.Millisecond) // distinct created stamps
	}

	page1, err := s.JournalRecent(2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(page1) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(page1))
	}
	if page1[0].CreatedMs < page1[1].CreatedMs {
		t.Fatal("entries should be newest first")
	}

	page2, err := s.JournalRecent(2, page1[len(page1)-1].CreatedMs)
	if err != nil {
		t.Fatal(err)
	}
	if len(page2) != 2 {
		t.Fatalf("expected 2 entries on page 2, got %d", len(page2))
	}
	if page2[0].CreatedMs >= page1[1].CreatedMs {
		t.Fatal("page 2 should be strictly older")
	}
}

func TestJournalDelete(t *testing.T) {
	s := newTestStore(t)
	e, _ := s.AddJournalEntry("gone soon")
	if err := s.DeleteJournalEntry(e.ID); err != nil {
		t.Fatal(err)
	}
	entries, _ := s.JournalByDay(s.Today())
	if len(entries) != 0 {
		t.Fatal("entry should be deleted")
	}
}

func TestJournalDaysInMonth(t *testing.T) {
	s := newTestStore(t)
	s.db.Exec(`INSERT INTO journal_entries (day_date, content, created_ms) VALUES (?, ?, ?)`, "2026-03-02", "a", 1)
	s.db.Exec(`INSERT INTO journal_entries (day_date, content, created_ms) VALUES (?, ?, ?)`, "2026-03-02", "b", 2)
	s.db.Exec(`INSERT INTO journal_entries (day_date, content, created_ms) VALUES (?, ?, ?)`, "2026-04-01", "c", 3)

	days, err := s.JournalDaysInMonth("2026-03")
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 1 || days[0] != "2026-03-02" {
		t.Fatalf("days = %v", days)
	}
}

// ============================================================
// Day timeline assembly
// ============================================================

func TestDayTimelinePastDay(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Study")
	sub, _ := s.UpsertSubActivity(act, "Math")

	date := "2026-03-02"
	s.InsertCompletedSession(&act, &sub, "", msAt(t, date, "12:00"), msAt(t, date, "13:00"), false)

	blocks, err := s.DayTimeline(date, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) == 0 {
		t.Fatal("expected blocks")
	}

	var found bool
	for _, b := range blocks {
		if b.Type == timeline.BlockLogged {
			found = true
			if b.Title != "Study / Math" {
				t.Fatalf("logged title = %q", b.Title)
			}
			if b.Duration() != time.Hour {
				t.Fatalf("logged duration = %v", b.Duration())
			}
		}
	}
	if !found {
		t.Fatal("no logged block in timeline")
	}

	// Window bounds follow the default settings
	first, last := blocks[0], blocks[len(blocks)-1]
	if first.Start.Format("15:04") != DefaultWakeTime {
		t.Fatalf("window starts %s", first.Start.Format("15:04"))
	}
	if last.End.Format("15:04") != DefaultSleepTime {
		t.Fatalf("window ends %s", last.End.Format("15:04"))
	}
}

func TestDayTimelineManualSessionAsPlan(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Exercise")

	date := "2026-03-02"
	s.InsertCompletedSession(&act, nil, "", msAt(t, date, "17:00"), msAt(t, date, "18:00"), true)

	blocks, err := s.DayTimeline(date, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	// The manual session backs both layers, so the logged overlay wins
	// exactly over its own scheduled block.
	var logged bool
	for _, b := range blocks {
		if b.Type == timeline.BlockLogged && b.Title == "Exercise" {
			logged = true
			if b.Duration() != time.Hour {
				t.Fatalf("duration = %v", b.Duration())
			}
		}
		if b.Type == timeline.BlockScheduled && b.Title == "Exercise" {
			t.Fatalf("scheduled remnant should be fully covered: %+v", b)
		}
	}
	if !logged {
		t.Fatal("manual session missing from timeline")
	}
}

func TestDayTimelineInstantiatedPlans(t *testing.T) {
	s := newTestStore(t)
	act := activityID(t, s, "Study")
	if err := s.SetWeeklyTemplate([]WeeklyEvent{
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "10:00", ActivityID: act},
	}); err != nil {
		t.Fatal(err)
	}
	date := "2026-03-02" // a Monday
	s.InstantiateDay(date)

	blocks, err := s.DayTimeline(date, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, b := range blocks {
		if b.Type == timeline.BlockScheduled && b.Title == "Study" {
			found = true
		}
	}
	if !found {
		t.Fatal("instantiated plan missing from timeline")
	}
}

func TestTodayFormat(t *testing.T) {
	today := newTestStore(t).Today()
	if _, err := time.Parse(timeline.ISODate, today); err != nil {
		t.Fatalf("Today() = %q: %v", today, err)
	}
}
