package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// ListActivities returns all activities with their presentation colors,
// sorted by name.
func (s *Store) ListActivities() ([]Activity, error) {
	rows, err := s.db.Query(`
		SELECT a.id, a.name,
		       COALESCE(ac.color_hex, ?),
		       COALESCE(ac.background_color, ''),
		       COALESCE(ac.text_color, ?)
		FROM activities a
		LEFT JOIN activity_colors ac ON ac.activity_id = a.id
		ORDER BY a.name ASC`,
		DefaultColorHex, DefaultTextColor,
	)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var activities []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.ID, &a.Name, &a.ColorHex, &a.Backgrnd, &a.TextColor); err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

// UpsertActivity creates an activity by name if missing and returns its ID.
func (s *Store) UpsertActivity(name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("upsert activity: empty name")
	}
	res, err := s.db.Exec(`INSERT OR IGNORE INTO activities(name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("upsert activity %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		id, _ := res.LastInsertId()
		return id, nil
	}
	var id int64
	err = s.db.QueryRow(`SELECT id FROM activities WHERE name = ?`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("get activity %q: %w", name, err)
	}
	return id, nil
}

// ListSubActivities returns sub-activities, optionally restricted to one
// activity, sorted by name.
func (s *Store) ListSubActivities(activityID *int64) ([]SubActivity, error) {
	query := `SELECT id, activity_id, name FROM sub_activities`
	var args []any
	if activityID != nil {
		query += ` WHERE activity_id = ?`
		args = append(args, *activityID)
	}
	query += ` ORDER BY name ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sub-activities: %w", err)
	}
	defer rows.Close()

	var subs []SubActivity
	for rows.Next() {
		var sa SubActivity
		if err := rows.Scan(&sa.ID, &sa.ActivityID, &sa.Name); err != nil {
			return nil, err
		}
		subs = append(subs, sa)
	}
	return subs, rows.Err()
}

// UpsertSubActivity creates a sub-activity under the given activity if
// missing and returns its ID.
func (s *Store) UpsertSubActivity(activityID int64, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("upsert sub-activity: empty name")
	}
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO sub_activities(activity_id, name) VALUES (?, ?)`,
		activityID, name,
	)
	if err != nil {
		return 0, fmt.Errorf("upsert sub-activity %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		id, _ := res.LastInsertId()
		return id, nil
	}
	var id int64
	err = s.db.QueryRow(
		`SELECT id FROM sub_activities WHERE activity_id = ? AND name = ?`,
		activityID, name,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("get sub-activity %q: %w", name, err)
	}
	return id, nil
}

// DeleteActivity removes an activity and its sub-activities, unless any
// session or plan references them. Blocked deletes never cascade into
// history.
func (s *Store) DeleteActivity(activityID int64) (DeleteResult, error) {
	var cnt int
	err := s.db.QueryRow(`
		SELECT
		  (SELECT COUNT(*) FROM sessions WHERE activity_id = ?1) +
		  (SELECT COUNT(*) FROM sessions
		     WHERE sub_activity_id IN (SELECT id FROM sub_activities WHERE activity_id = ?1)) +
		  (SELECT COUNT(*) FROM weekly_schedule_events WHERE activity_id = ?1) +
		  (SELECT COUNT(*) FROM manual_study_plans WHERE activity_id = ?1) +
		  (SELECT COUNT(*) FROM daily_instantiated_plans WHERE activity_id = ?1)`,
		activityID,
	).Scan(&cnt)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("check activity references: %w", err)
	}
	if cnt > 0 {
		return DeleteResult{OK: false, Reason: "activity is referenced by session or plan history and cannot be deleted"}, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return DeleteResult{}, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM sub_activities WHERE activity_id = ?`, activityID); err != nil {
		return DeleteResult{}, fmt.Errorf("delete sub-activities: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM activity_colors WHERE activity_id = ?`, activityID); err != nil {
		return DeleteResult{}, fmt.Errorf("delete activity color: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM activities WHERE id = ?`, activityID); err != nil {
		return DeleteResult{}, fmt.Errorf("delete activity: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return DeleteResult{}, err
	}
	return DeleteResult{OK: true}, nil
}

// DeleteSubActivity removes a sub-activity unless referenced by any session
// or plan.
func (s *Store) DeleteSubActivity(subID int64) (DeleteResult, error) {
	var cnt int
	err := s.db.QueryRow(`
		SELECT
		  (SELECT COUNT(*) FROM sessions WHERE sub_activity_id = ?1) +
		  (SELECT COUNT(*) FROM weekly_schedule_events WHERE sub_activity_id = ?1) +
		  (SELECT COUNT(*) FROM manual_study_plans WHERE sub_activity_id = ?1) +
		  (SELECT COUNT(*) FROM daily_instantiated_plans WHERE sub_activity_id = ?1)`,
		subID,
	).Scan(&cnt)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("check sub-activity references: %w", err)
	}
	if cnt > 0 {
		return DeleteResult{OK: false, Reason: "sub-activity is referenced by session or plan history and cannot be deleted"}, nil
	}
	if _, err := s.db.Exec(`DELETE FROM sub_activities WHERE id = ?`, subID); err != nil {
		return DeleteResult{}, fmt.Errorf("delete sub-activity: %w", err)
	}
	return DeleteResult{OK: true}, nil
}

// SaveActivityColor upserts the presentation color for an activity.
func (s *Store) SaveActivityColor(activityID int64, colorHex, background, textColor string) error {
	var bg any
	if background != "" {
		bg = background
	}
	_, err := s.db.Exec(`
		INSERT INTO activity_colors (activity_id, color_hex, background_color, text_color, updated_at)
		VALUES (?, ?, ?, ?, strftime('%s','now'))
		ON CONFLICT(activity_id) DO UPDATE SET
		  color_hex = excluded.color_hex,
		  background_color = excluded.background_color,
		  text_color = excluded.text_color,
		  updated_at = excluded.updated_at`,
		activityID, colorHex, bg, textColor,
	)
	if err != nil {
		return fmt.Errorf("save activity color: %w", err)
	}
	return nil
}

// ActivityColor returns the color row for an activity, with defaults when
// none is configured.
func (s *Store) ActivityColor(activityID int64) (ActivityColor, error) {
	c := ActivityColor{ActivityID: activityID, ColorHex: DefaultColorHex, TextColor: DefaultTextColor}
	var bg sql.NullString
	err := s.db.QueryRow(
		`SELECT color_hex, background_color, text_color FROM activity_colors WHERE activity_id = ?`,
		activityID,
	).Scan(&c.ColorHex, &bg, &c.TextColor)
	if err == sql.ErrNoRows {
		return c, nil
	}
	if err != nil {
		return ActivityColor{}, fmt.Errorf("get activity color %d: %w", activityID, err)
	}
	if bg.Valid {
		c.Backgrnd = bg.String
	}
	return c, nil
}
