package store

import (
	"database/sql"
	"fmt"
	"time"
)

// StartSession opens a new running session. If a session is already running
// it is closed first with the current timestamp, inside the same
// transaction, so at no point do two rows have a null end.
func (s *Store) StartSession(activityID, subActivityID *int64, note string) (int64, error) {
	now := time.Now().UnixMilli()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var runningID, runningStart int64
	err = tx.QueryRow(
		`SELECT id, start_ms FROM sessions WHERE end_ms IS NULL ORDER BY id DESC LIMIT 1`,
	).Scan(&runningID, &runningStart)
	switch {
	case err == sql.ErrNoRows:
		// nothing running
	case err != nil:
		return 0, fmt.Errorf("check running session: %w", err)
	default:
		_, err = tx.Exec(
			`UPDATE sessions SET end_ms = ?, duration_ms = ? WHERE id = ?`,
			now, now-runningStart, runningID,
		)
		if err != nil {
			return 0, fmt.Errorf("close running session: %w", err)
		}
	}

	res, err := tx.Exec(
		`INSERT INTO sessions (activity_id, sub_activity_id, note, start_ms) VALUES (?, ?, ?, ?)`,
		activityID, subActivityID, note, now,
	)
	if err != nil {
		return 0, fmt.Errorf("start session: %w", err)
	}
	id, _ := res.LastInsertId()
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// StopSession closes the running session, if any. Returns false when
// nothing was running.
func (s *Store) StopSession() (bool, error) {
	now := time.Now().UnixMilli()

	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var id, startMs int64
	err = tx.QueryRow(
		`SELECT id, start_ms FROM sessions WHERE end_ms IS NULL ORDER BY id DESC LIMIT 1`,
	).Scan(&id, &startMs)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get running session: %w", err)
	}

	_, err = tx.Exec(
		`UPDATE sessions SET end_ms = ?, duration_ms = ? WHERE id = ?`,
		now, now-startMs, id,
	)
	if err != nil {
		return false, fmt.Errorf("stop session: %w", err)
	}
	return true, tx.Commit()
}

// InsertCompletedSession records a closed session wholesale, used for
// backfilled records. Manual sessions also appear as scheduled blocks on
// the day timeline.
func (s *Store) InsertCompletedSession(activityID, subActivityID *int64, note string, startMs, endMs int64, manual bool) (int64, error) {
	if endMs <= startMs {
		return 0, fmt.Errorf("insert session: end %d not after start %d", endMs, startMs)
	}
	isManual := 0
	if manual {
		isManual = 1
	}
	res, err := s.db.Exec(
		`INSERT INTO sessions (activity_id, sub_activity_id, note, start_ms, end_ms, duration_ms, is_manual)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		activityID, subActivityID, note, startMs, endMs, endMs-startMs, isManual,
	)
	if err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// RunningSession returns the currently running session, or nil.
func (s *Store) RunningSession() (*Session, error) {
	row := s.db.QueryRow(`
		SELECT s.id, s.activity_id, s.sub_activity_id, s.note, s.start_ms, s.end_ms, s.duration_ms, s.is_manual,
		       COALESCE(a.name, ''), COALESCE(sa.name, '')
		FROM sessions s
		LEFT JOIN activities a ON a.id = s.activity_id
		LEFT JOIN sub_activities sa ON sa.id = s.sub_activity_id
		WHERE s.end_ms IS NULL ORDER BY s.id DESC LIMIT 1`)

	sess, err := scanSession(row, false)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get running session: %w", err)
	}
	return sess, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner, withColors bool) (*Session, error) {
	var sess Session
	var actID, subID, endMs, durMs sql.NullInt64
	var manual int

	dest := []any{
		&sess.ID, &actID, &subID, &sess.Note, &sess.StartMs, &endMs, &durMs, &manual,
		&sess.Activity, &sess.SubActivity,
	}
	if withColors {
		dest = append(dest, &sess.ColorHex, &sess.Backgrnd, &sess.TextColor)
	}
	if err := r.Scan(dest...); err != nil {
		return nil, err
	}
	if actID.Valid {
		sess.ActivityID = &actID.Int64
	}
	if subID.Valid {
		sess.SubActivityID = &subID.Int64
	}
	if endMs.Valid {
		sess.EndMs = &endMs.Int64
	}
	if durMs.Valid {
		sess.DurationMs = &durMs.Int64
	}
	sess.IsManual = manual == 1
	return &sess, nil
}

const sessionColumns = `
	s.id, s.activity_id, s.sub_activity_id, s.note, s.start_ms, s.end_ms, s.duration_ms, s.is_manual,
	COALESCE(a.name, ''), COALESCE(sa.name, ''),
	COALESCE(ac.color_hex, '` + DefaultColorHex + `'),
	COALESCE(ac.background_color, ''),
	COALESCE(ac.text_color, '` + DefaultTextColor + `')`

const sessionJoins = `
	LEFT JOIN activities a ON a.id = s.activity_id
	LEFT JOIN sub_activities sa ON sa.id = s.sub_activity_id
	LEFT JOIN activity_colors ac ON ac.activity_id = s.activity_id`

// SessionsForDay returns every session whose start falls on the given ISO
// date under the supplied timezone offset modifier (e.g. "-7 hours"),
// sorted by start time, with resolved names and colors.
func (s *Store) SessionsForDay(isoDate, tzOffset string) ([]Session, error) {
	rows, err := s.db.Query(`
		SELECT `+sessionColumns+`
		FROM sessions s`+sessionJoins+`
		WHERE strftime('%Y-%m-%d', s.start_ms / 1000, 'unixepoch', ?) = ?
		ORDER BY s.start_ms ASC`,
		tzOffset, isoDate,
	)
	if err != nil {
		return nil, fmt.Errorf("sessions for day %s: %w", isoDate, err)
	}
	defer rows.Close()
	return collectSessions(rows)
}

// ManualSessionsForDate returns manually backfilled sessions for one date.
func (s *Store) ManualSessionsForDate(isoDate, tzOffset string) ([]Session, error) {
	rows, err := s.db.Query(`
		SELECT `+sessionColumns+`
		FROM sessions s`+sessionJoins+`
		WHERE s.is_manual = 1
		  AND strftime('%Y-%m-%d', s.start_ms / 1000, 'unixepoch', ?) = ?
		ORDER BY s.start_ms ASC`,
		tzOffset, isoDate,
	)
	if err != nil {
		return nil, fmt.Errorf("manual sessions for %s: %w", isoDate, err)
	}
	defer rows.Close()
	return collectSessions(rows)
}

func collectSessions(rows *sql.Rows) ([]Session, error) {
	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows, true)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

// AllSessions returns every session in chronological order with resolved
// names and colors. Used by the exporters.
func (s *Store) AllSessions() ([]Session, error) {
	rows, err := s.db.Query(`
		SELECT ` + sessionColumns + `
		FROM sessions s` + sessionJoins + `
		ORDER BY s.start_ms ASC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	return collectSessions(rows)
}

// ManualRecords returns a page of manually backfilled sessions, newest
// first.
func (s *Store) ManualRecords(page, pageSize int) ([]Session, Page, error) {
	if page < 1 {
		page = 1
	}
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE is_manual = 1`).Scan(&total); err != nil {
		return nil, Page{}, fmt.Errorf("count manual records: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT `+sessionColumns+`
		FROM sessions s`+sessionJoins+`
		WHERE s.is_manual = 1
		ORDER BY s.start_ms DESC
		LIMIT ? OFFSET ?`,
		pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, Page{}, fmt.Errorf("list manual records: %w", err)
	}
	defer rows.Close()

	sessions, err := collectSessions(rows)
	if err != nil {
		return nil, Page{}, err
	}
	return sessions, Page{
		Current:    page,
		Size:       pageSize,
		Total:      total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}, nil
}

// DeleteManualRecord deletes a manually backfilled session by ID.
func (s *Store) DeleteManualRecord(id int64) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM sessions WHERE id = ? AND is_manual = 1`, id)
	if err != nil {
		return false, fmt.Errorf("delete manual record: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DaySummary aggregates closed sessions on one date by activity and
// sub-activity label, longest first.
func (s *Store) DaySummary(isoDate, tzOffset string) ([]SummaryRow, error) {
	rows, err := s.db.Query(`
		SELECT COALESCE(a.name, ?) || ' / ' || COALESCE(sa.name, ?) AS key,
		       SUM(COALESCE(s.duration_ms, 0)) AS millis
		FROM sessions s
		LEFT JOIN activities a ON a.id = s.activity_id
		LEFT JOIN sub_activities sa ON sa.id = s.sub_activity_id
		WHERE s.end_ms IS NOT NULL
		  AND strftime('%Y-%m-%d', s.start_ms / 1000, 'unixepoch', ?) = ?
		GROUP BY key
		HAVING millis > 0
		ORDER BY millis DESC`,
		NoActivityLabel, NoSubActivityLabel, tzOffset, isoDate,
	)
	if err != nil {
		return nil, fmt.Errorf("day summary %s: %w", isoDate, err)
	}
	defer rows.Close()
	return collectSummary(rows)
}

// MonthSummary aggregates all sessions in a month (yyyyMM as "2006-01") by
// activity/sub-activity label.
func (s *Store) MonthSummary(yyyyMM string) ([]SummaryRow, error) {
	rows, err := s.db.Query(`
		WITH r AS (
		  SELECT strftime('%s', ?1 || '-01 00:00:00') * 1000 AS start_ms,
		         strftime('%s', ?1 || '-01 00:00:00', 'start of month', '+1 month') * 1000 AS end_ms
		)
		SELECT COALESCE(a.name, ?2) || ' / ' || COALESCE(sa.name, ?3) AS key,
		       SUM(COALESCE(s.duration_ms, 0)) AS millis
		FROM sessions s
		LEFT JOIN activities a ON a.id = s.activity_id
		LEFT JOIN sub_activities sa ON sa.id = s.sub_activity_id, r
		WHERE s.start_ms >= r.start_ms AND COALESCE(s.end_ms, r.end_ms) <= r.end_ms
		GROUP BY key
		ORDER BY millis DESC`,
		yyyyMM, NoActivityLabel, NoSubActivityLabel,
	)
	if err != nil {
		return nil, fmt.Errorf("month summary %s: %w", yyyyMM, err)
	}
	defer rows.Close()
	return collectSummary(rows)
}

func collectSummary(rows *sql.Rows) ([]SummaryRow, error) {
	var out []SummaryRow
	for rows.Next() {
		var r SummaryRow
		if err := rows.Scan(&r.Key, &r.Millis); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DaysWithDataInMonth lists the ISO dates in a month that have at least one
// session.
func (s *Store) DaysWithDataInMonth(yyyyMM string) ([]string, error) {
	rows, err := s.db.Query(`
		WITH r AS (
		  SELECT strftime('%s', ?1 || '-01 00:00:00') * 1000 AS start_ms,
		         strftime('%s', ?1 || '-01 00:00:00', 'start of month', '+1 month') * 1000 AS end_ms
		)
		SELECT DISTINCT strftime('%Y-%m-%d', s.start_ms / 1000, 'unixepoch') AS day
		FROM sessions s, r
		WHERE s.start_ms >= r.start_ms AND s.start_ms < r.end_ms
		ORDER BY day`,
		yyyyMM,
	)
	if err != nil {
		return nil, fmt.Errorf("days with data %s: %w", yyyyMM, err)
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}
