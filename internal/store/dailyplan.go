package store

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ehazan/timearc/internal/timeline"
)

// InstantiateDay projects the currently effective weekly template onto one
// concrete date: existing rows for the date are deleted first, then one
// plan row is inserted per template entry matching the date's weekday.
// Delete-then-insert makes the operation idempotent per date.
func (s *Store) InstantiateDay(isoDate string) error {
	weekday, err := timeline.Weekday(isoDate)
	if err != nil {
		return err
	}
	events, err := s.WeeklyTemplate()
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM daily_instantiated_plans WHERE plan_date = ?`, isoDate); err != nil {
		return fmt.Errorf("clear daily plans %s: %w", isoDate, err)
	}
	for _, ev := range events {
		if ev.DayOfWeek != weekday {
			continue
		}
		var subtitle any
		if ev.SubActivity != "" {
			subtitle = ev.SubActivity
		}
		_, err := tx.Exec(
			`INSERT INTO daily_instantiated_plans (plan_date, start_time, end_time, activity_id, sub_activity_id, title, subtitle, source)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			isoDate, ev.StartTime, ev.EndTime, ev.ActivityID, ev.SubActivityID,
			ev.Activity, subtitle, PlanSourceWeekly,
		)
		if err != nil {
			return fmt.Errorf("instantiate plan %s %s-%s: %w", isoDate, ev.StartTime, ev.EndTime, err)
		}
	}
	return tx.Commit()
}

// ClearDay removes the instantiated plans for one date.
func (s *Store) ClearDay(isoDate string) error {
	if _, err := s.db.Exec(`DELETE FROM daily_instantiated_plans WHERE plan_date = ?`, isoDate); err != nil {
		return fmt.Errorf("clear daily plans %s: %w", isoDate, err)
	}
	return nil
}

// HasDayPlans reports whether any instantiated plan exists for the date.
func (s *Store) HasDayPlans(isoDate string) (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM daily_instantiated_plans WHERE plan_date = ?`, isoDate).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check daily plans %s: %w", isoDate, err)
	}
	return count > 0, nil
}

// ToggleDay flips a date between instantiated and cleared, letting the user
// freeze a custom day or reset it to the template. Returns whether the date
// has plans afterwards.
func (s *Store) ToggleDay(isoDate string) (bool, error) {
	has, err := s.HasDayPlans(isoDate)
	if err != nil {
		return false, err
	}
	if has {
		return false, s.ClearDay(isoDate)
	}
	return true, s.InstantiateDay(isoDate)
}

// EnsureToday instantiates the date only when it is today and has no plans
// yet. Past dates keep their history; future dates wait until the template
// is final.
func (s *Store) EnsureToday(isoDate string) error {
	if isoDate != s.Today() {
		return nil
	}
	has, err := s.HasDayPlans(isoDate)
	if err != nil || has {
		return err
	}
	return s.InstantiateDay(isoDate)
}

// DailyPlansForDate returns the instantiated plans for one date with
// resolved names and colors, sorted by start time.
func (s *Store) DailyPlansForDate(isoDate string) ([]DailyPlan, error) {
	rows, err := s.db.Query(`
		SELECT dip.id, dip.plan_date, dip.start_time, dip.end_time,
		       dip.activity_id, dip.sub_activity_id,
		       COALESCE(dip.title, ''), COALESCE(dip.subtitle, ''), dip.source,
		       COALESCE(a.name, ''), COALESCE(sa.name, ''),
		       COALESCE(ac.color_hex, ?),
		       COALESCE(ac.background_color, ''),
		       COALESCE(ac.text_color, ?)
		FROM daily_instantiated_plans dip
		LEFT JOIN activities a ON a.id = dip.activity_id
		LEFT JOIN sub_activities sa ON sa.id = dip.sub_activity_id
		LEFT JOIN activity_colors ac ON ac.activity_id = dip.activity_id
		WHERE dip.plan_date = ?
		ORDER BY dip.start_time ASC`,
		DefaultColorHex, DefaultTextColor, isoDate,
	)
	if err != nil {
		return nil, fmt.Errorf("daily plans for %s: %w", isoDate, err)
	}
	defer rows.Close()

	var plans []DailyPlan
	for rows.Next() {
		var p DailyPlan
		var actID, subID sql.NullInt64
		if err := rows.Scan(
			&p.ID, &p.PlanDate, &p.StartTime, &p.EndTime,
			&actID, &subID,
			&p.Title, &p.Subtitle, &p.Source,
			&p.Activity, &p.SubActivity,
			&p.ColorHex, &p.Backgrnd, &p.TextColor,
		); err != nil {
			return nil, err
		}
		if actID.Valid {
			p.ActivityID = &actID.Int64
		}
		if subID.Valid {
			p.SubActivityID = &subID.Int64
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// DisplayTitle resolves the plan's label, preferring the live activity
// names over the snapshot title columns.
func (p DailyPlan) DisplayTitle() string {
	activity := p.Activity
	if activity == "" {
		activity = p.Title
	}
	sub := p.SubActivity
	if sub == "" {
		sub = p.Subtitle
	}
	return timeline.JoinTitle(activity, sub)
}

// PlannedMonthSummary aggregates the instantiated plans of a month by
// activity/sub-activity label, using each plan's clock-time length.
func (s *Store) PlannedMonthSummary(yyyyMM string) ([]SummaryRow, error) {
	start := yyyyMM + "-01"
	t, err := time.Parse(timeline.ISODate, start)
	if err != nil {
		return nil, fmt.Errorf("planned month summary: %w", err)
	}
	end := t.AddDate(0, 1, 0).Format(timeline.ISODate)

	rows, err := s.db.Query(`
		SELECT dip.start_time, dip.end_time,
		       COALESCE(a.name, dip.title, ?), COALESCE(sa.name, dip.subtitle, ?)
		FROM daily_instantiated_plans dip
		LEFT JOIN activities a ON a.id = dip.activity_id
		LEFT JOIN sub_activities sa ON sa.id = dip.sub_activity_id
		WHERE dip.plan_date >= ? AND dip.plan_date < ?
		ORDER BY dip.plan_date ASC, dip.start_time ASC`,
		NoActivityLabel, NoSubActivityLabel, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("planned month summary %s: %w", yyyyMM, err)
	}
	defer rows.Close()

	acc := make(map[string]int64)
	for rows.Next() {
		var startTime, endTime, activity, sub string
		if err := rows.Scan(&startTime, &endTime, &activity, &sub); err != nil {
			return nil, err
		}
		sh, sm, err := timeline.ParseClock(startTime)
		if err != nil {
			continue // one bad row must not sink the whole summary
		}
		eh, em, err := timeline.ParseClock(endTime)
		if err != nil {
			continue
		}
		minutes := (eh*60 + em) - (sh*60 + sm)
		if minutes <= 0 {
			continue
		}
		if activity == "" {
			activity = NoActivityLabel
		}
		if sub == "" {
			sub = NoSubActivityLabel
		}
		acc[activity+" / "+sub] += int64(minutes) * 60 * 1000
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sortedSummary(acc), nil
}

// CombinedMonthSummary merges actual session time and planned time for a
// month into one label-keyed aggregation.
func (s *Store) CombinedMonthSummary(yyyyMM string) ([]SummaryRow, error) {
	actual, err := s.MonthSummary(yyyyMM)
	if err != nil {
		return nil, err
	}
	planned, err := s.PlannedMonthSummary(yyyyMM)
	if err != nil {
		return nil, err
	}

	acc := make(map[string]int64)
	for _, r := range actual {
		acc[r.Key] += r.Millis
	}
	for _, r := range planned {
		acc[r.Key] += r.Millis
	}
	return sortedSummary(acc), nil
}

func sortedSummary(acc map[string]int64) []SummaryRow {
	out := make([]SummaryRow, 0, len(acc))
	for key, millis := range acc {
		out = append(out, SummaryRow{Key: key, Millis: millis})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Millis != out[j].Millis {
			return out[i].Millis > out[j].Millis
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// BackfillPlanActivities links legacy plan rows that predate the activity
// foreign keys by matching their snapshot titles against activity names.
// Idempotent and safe to rerun.
func (s *Store) BackfillPlanActivities() (int, error) {
	rows, err := s.db.Query(`
		SELECT id, COALESCE(title, ''), COALESCE(subtitle, '')
		FROM daily_instantiated_plans
		WHERE activity_id IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("backfill scan: %w", err)
	}
	type legacy struct {
		id              int64
		title, subtitle string
	}
	var pending []legacy
	for rows.Next() {
		var l legacy
		if err := rows.Scan(&l.id, &l.title, &l.subtitle); err != nil {
			rows.Close()
			return 0, err
		}
		pending = append(pending, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	updated := 0
	for _, l := range pending {
		actName, subName := splitLegacyTitle(l.title)
		if l.subtitle != "" {
			subName = l.subtitle
		}
		if actName == "" {
			continue
		}

		var actID int64
		err := s.db.QueryRow(`SELECT id FROM activities WHERE name = ?`, actName).Scan(&actID)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return updated, fmt.Errorf("backfill lookup %q: %w", actName, err)
		}

		var subID *int64
		if subName != "" {
			var id int64
			err := s.db.QueryRow(
				`SELECT id FROM sub_activities WHERE activity_id = ? AND name = ?`,
				actID, subName,
			).Scan(&id)
			if err == nil {
				subID = &id
			} else if err != sql.ErrNoRows {
				return updated, fmt.Errorf("backfill sub lookup %q: %w", subName, err)
			}
		}

		_, err = s.db.Exec(
			`UPDATE daily_instantiated_plans SET activity_id = ?, sub_activity_id = ? WHERE id = ?`,
			actID, subID, l.id,
		)
		if err != nil {
			return updated, fmt.Errorf("backfill update %d: %w", l.id, err)
		}
		updated++
	}
	return updated, nil
}

// splitLegacyTitle splits an "Activity / Sub" snapshot title, tolerating
// the fullwidth slash found in old rows.
func splitLegacyTitle(title string) (activity, sub string) {
	normalized := strings.ReplaceAll(title, "／", "/")
	parts := strings.SplitN(normalized, "/", 2)
	activity = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		sub = strings.TrimSpace(parts[1])
	}
	return
}
