package store

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/ehazan/timearc/internal/timeline"
)

// appLocation maps the timezone shorthand stored in settings to a fixed
// offset matching the sqlite datetime modifiers used in day queries.
func appLocation(tz string) *time.Location {
	if tz == "Beijing" {
		return time.FixedZone("Beijing", 8*3600)
	}
	return time.FixedZone("PST", -7*3600)
}

// Location returns the time.Location matching an app timezone shorthand.
func Location(tz string) *time.Location {
	return appLocation(tz)
}

// Today returns today's ISO date in the application's configured timezone.
func (s *Store) Today() string {
	return s.todayAt(time.Now())
}

func (s *Store) todayAt(now time.Time) string {
	sys := now.UTC().Format(timeline.ISODate)
	settings, err := s.ScheduleSettingsFor(sys)
	if err != nil {
		settings.Timezone = DefaultTimezone
	}
	return now.In(appLocation(settings.Timezone)).Format(timeline.ISODate)
}

// ScheduleSettingsFor returns the waking-window settings in force for a
// date: the row with the greatest effective date <= the target, or the
// defaults when none exists.
func (s *Store) ScheduleSettingsFor(isoDate string) (ScheduleSettings, error) {
	out := ScheduleSettings{
		WakeTime:  DefaultWakeTime,
		SleepTime: DefaultSleepTime,
		Timezone:  DefaultTimezone,
	}
	var tz sql.NullString
	err := s.db.QueryRow(`
		SELECT effective_date, wake_time, sleep_time, timezone
		FROM daily_schedule_settings
		WHERE effective_date <= ?
		ORDER BY effective_date DESC
		LIMIT 1`,
		isoDate,
	).Scan(&out.EffectiveDate, &out.WakeTime, &out.SleepTime, &tz)
	if err == sql.ErrNoRows {
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("schedule settings for %s: %w", isoDate, err)
	}
	if tz.Valid && tz.String != "" {
		out.Timezone = tz.String
	}
	return out, nil
}

// SetScheduleSettings appends a settings row effective from today. Empty
// fields keep their currently effective values, so history is never
// rewritten.
func (s *Store) SetScheduleSettings(wakeTime, sleepTime, tz string) error {
	if wakeTime != "" {
		if _, _, err := timeline.ParseClock(wakeTime); err != nil {
			return err
		}
	}
	if sleepTime != "" {
		if _, _, err := timeline.ParseClock(sleepTime); err != nil {
			return err
		}
	}

	today := s.Today()
	current, err := s.ScheduleSettingsFor(today)
	if err != nil {
		return err
	}
	if wakeTime == "" {
		wakeTime = current.WakeTime
	}
	if sleepTime == "" {
		sleepTime = current.SleepTime
	}
	if tz == "" {
		tz = current.Timezone
	}

	_, err = s.db.Exec(
		`INSERT INTO daily_schedule_settings (effective_date, wake_time, sleep_time, timezone) VALUES (?, ?, ?, ?)`,
		today, wakeTime, sleepTime, tz,
	)
	if err != nil {
		return fmt.Errorf("set schedule settings: %w", err)
	}
	return nil
}

const weeklyEventColumns = `
	wse.id, wse.effective_date, wse.day_of_week, wse.start_time, wse.end_time,
	wse.activity_id, wse.sub_activity_id,
	COALESCE(a.name, ''), COALESCE(sa.name, ''),
	COALESCE(ac.color_hex, '` + DefaultColorHex + `'),
	COALESCE(ac.background_color, ''),
	COALESCE(ac.text_color, '` + DefaultTextColor + `')`

// WeeklyTemplate returns the template currently in force: all rows at the
// maximum effective date, sorted by start time.
func (s *Store) WeeklyTemplate() ([]WeeklyEvent, error) {
	rows, err := s.db.Query(`
		SELECT ` + weeklyEventColumns + `
		FROM weekly_schedule_events wse
		LEFT JOIN activities a ON a.id = wse.activity_id
		LEFT JOIN sub_activities sa ON sa.id = wse.sub_activity_id
		LEFT JOIN activity_colors ac ON ac.activity_id = wse.activity_id
		WHERE wse.effective_date = (SELECT MAX(effective_date) FROM weekly_schedule_events)
		ORDER BY wse.start_time ASC`)
	if err != nil {
		return nil, fmt.Errorf("weekly template: %w", err)
	}
	defer rows.Close()

	var events []WeeklyEvent
	for rows.Next() {
		var ev WeeklyEvent
		var subID sql.NullInt64
		if err := rows.Scan(
			&ev.ID, &ev.EffectiveDate, &ev.DayOfWeek, &ev.StartTime, &ev.EndTime,
			&ev.ActivityID, &subID,
			&ev.Activity, &ev.SubActivity,
			&ev.ColorHex, &ev.Backgrnd, &ev.TextColor,
		); err != nil {
			return nil, err
		}
		if subID.Valid {
			ev.SubActivityID = &subID.Int64
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// GroupTemplateByWeekday splits a template into per-weekday lists, each
// sorted by start time.
func GroupTemplateByWeekday(events []WeeklyEvent) map[int][]WeeklyEvent {
	grouped := make(map[int][]WeeklyEvent, 7)
	for _, ev := range events {
		grouped[ev.DayOfWeek] = append(grouped[ev.DayOfWeek], ev)
	}
	for day := range grouped {
		list := grouped[day]
		sort.Slice(list, func(i, j int) bool { return list[i].StartTime < list[j].StartTime })
	}
	return grouped
}

// SetWeeklyTemplate replaces the template from today forward: rows with
// effective date >= today are deleted and the new events inserted stamped
// with today, so past template versions stay untouched. Entries for the
// same weekday must not overlap. Today's instantiated plans are rebuilt
// from the new template so the active view reflects the change
// immediately.
func (s *Store) SetWeeklyTemplate(events []WeeklyEvent) error {
	if err := checkTemplateOverlap(events); err != nil {
		return err
	}
	today := s.Today()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM weekly_schedule_events WHERE effective_date >= ?`, today); err != nil {
		return fmt.Errorf("clear pending template: %w", err)
	}
	for _, ev := range events {
		if ev.DayOfWeek < 0 || ev.DayOfWeek > 6 {
			return fmt.Errorf("set weekly template: day of week %d out of range", ev.DayOfWeek)
		}
		_, err := tx.Exec(
			`INSERT INTO weekly_schedule_events (effective_date, day_of_week, start_time, end_time, activity_id, sub_activity_id)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			today, ev.DayOfWeek, ev.StartTime, ev.EndTime, ev.ActivityID, ev.SubActivityID,
		)
		if err != nil {
			return fmt.Errorf("insert template event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	// Rebuild today's instantiation from the new template.
	return s.InstantiateDay(today)
}

// checkTemplateOverlap validates start < end for each entry and rejects
// same-day overlaps.
func checkTemplateOverlap(events []WeeklyEvent) error {
	type span struct {
		start, end int
		ev         WeeklyEvent
	}
	byDay := make(map[int][]span)
	for _, ev := range events {
		sh, sm, err := timeline.ParseClock(ev.StartTime)
		if err != nil {
			return err
		}
		eh, em, err := timeline.ParseClock(ev.EndTime)
		if err != nil {
			return err
		}
		start, end := sh*60+sm, eh*60+em
		if start >= end {
			return fmt.Errorf("template entry %s-%s: start not before end", ev.StartTime, ev.EndTime)
		}
		byDay[ev.DayOfWeek] = append(byDay[ev.DayOfWeek], span{start, end, ev})
	}
	for day, spans := range byDay {
		sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
		for i := 1; i < len(spans); i++ {
			if spans[i].start < spans[i-1].end {
				return fmt.Errorf("template entries overlap on weekday %d: %s-%s and %s-%s",
					day,
					spans[i-1].ev.StartTime, spans[i-1].ev.EndTime,
					spans[i].ev.StartTime, spans[i].ev.EndTime)
			}
		}
	}
	return nil
}

const manualPlanColumns = `
	msp.id, msp.plan_date, msp.start_time, msp.end_time,
	msp.activity_id, msp.sub_activity_id,
	COALESCE(a.name, ''), COALESCE(sa.name, ''),
	COALESCE(ac.color_hex, '` + DefaultColorHex + `'),
	COALESCE(ac.background_color, ''),
	COALESCE(ac.text_color, '` + DefaultTextColor + `')`

const manualPlanJoins = `
	LEFT JOIN activities a ON a.id = msp.activity_id
	LEFT JOIN sub_activities sa ON sa.id = msp.sub_activity_id
	LEFT JOIN activity_colors ac ON ac.activity_id = msp.activity_id`

// AddManualPlan records a one-off planned interval for a specific date.
func (s *Store) AddManualPlan(planDate, startTime, endTime string, activityID int64, subActivityID *int64) (int64, error) {
	if _, err := time.Parse(timeline.ISODate, planDate); err != nil {
		return 0, fmt.Errorf("add manual plan: %w", err)
	}
	if _, _, err := timeline.ParseClock(startTime); err != nil {
		return 0, err
	}
	if _, _, err := timeline.ParseClock(endTime); err != nil {
		return 0, err
	}
	res, err := s.db.Exec(
		`INSERT INTO manual_study_plans (plan_date, start_time, end_time, activity_id, sub_activity_id)
		 VALUES (?, ?, ?, ?, ?)`,
		planDate, startTime, endTime, activityID, subActivityID,
	)
	if err != nil {
		return 0, fmt.Errorf("add manual plan: %w", err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// ManualPlansForDate returns the manual plans for one date with resolved
// names and colors, sorted by start time.
func (s *Store) ManualPlansForDate(isoDate string) ([]ManualPlan, error) {
	rows, err := s.db.Query(`
		SELECT `+manualPlanColumns+`
		FROM manual_study_plans msp`+manualPlanJoins+`
		WHERE msp.plan_date = ?
		ORDER BY msp.start_time ASC`,
		isoDate,
	)
	if err != nil {
		return nil, fmt.Errorf("manual plans for %s: %w", isoDate, err)
	}
	defer rows.Close()
	return collectManualPlans(rows)
}

// ManualPlans returns a page of manual plans, newest date first.
func (s *Store) ManualPlans(page, pageSize int) ([]ManualPlan, Page, error) {
	if page < 1 {
		page = 1
	}
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM manual_study_plans`).Scan(&total); err != nil {
		return nil, Page{}, fmt.Errorf("count manual plans: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT `+manualPlanColumns+`
		FROM manual_study_plans msp`+manualPlanJoins+`
		ORDER BY msp.plan_date DESC, msp.start_time ASC
		LIMIT ? OFFSET ?`,
		pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, Page{}, fmt.Errorf("list manual plans: %w", err)
	}
	defer rows.Close()

	plans, err := collectManualPlans(rows)
	if err != nil {
		return nil, Page{}, err
	}
	return plans, Page{
		Current:    page,
		Size:       pageSize,
		Total:      total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

func collectManualPlans(rows *sql.Rows) ([]ManualPlan, error) {
	var plans []ManualPlan
	for rows.Next() {
		var p ManualPlan
		var subID sql.NullInt64
		if err := rows.Scan(
			&p.ID, &p.PlanDate, &p.StartTime, &p.EndTime,
			&p.ActivityID, &subID,
			&p.Activity, &p.SubActivity,
			&p.ColorHex, &p.Backgrnd, &p.TextColor,
		); err != nil {
			return nil, err
		}
		if subID.Valid {
			p.SubActivityID = &subID.Int64
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// DeleteManualPlan deletes a manual plan by ID.
func (s *Store) DeleteManualPlan(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM manual_study_plans WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete manual plan: %w", err)
	}
	return nil
}
