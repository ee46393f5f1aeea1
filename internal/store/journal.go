package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// AddJournalEntry records a free-form note stamped with today's date in
// the app timezone.
func (s *Store) AddJournalEntry(content string) (JournalEntry, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return JournalEntry{}, fmt.Errorf("journal entry is empty")
	}
	now := time.Now().UnixMilli()
	day := s.Today()
	res, err := s.db.Exec(
		`INSERT INTO journal_entries (day_date, content, created_ms) VALUES (?, ?, ?)`,
		day, content, now,
	)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("add journal entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return JournalEntry{}, err
	}
	return JournalEntry{ID: id, EntryDate: day, Content: content, CreatedMs: now}, nil
}

// JournalByDay returns the entries written on one date, oldest first.
func (s *Store) JournalByDay(isoDate string) ([]JournalEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, day_date, content, created_ms, edited_ms
		FROM journal_entries
		WHERE day_date = ?
		ORDER BY created_ms ASC, id ASC`, isoDate)
	if err != nil {
		return nil, fmt.Errorf("journal for %s: %w", isoDate, err)
	}
	return collectJournal(rows)
}

// JournalRecent pages backwards through the journal. A zero beforeMs
// starts from the newest entry; pass the oldest creation stamp of the
// previous page to fetch the next one.
func (s *Store) JournalRecent(limit int, beforeMs int64) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	if beforeMs <= 0 {
		beforeMs = time.Now().UnixMilli() + 1
	}
	rows, err := s.db.Query(`
		SELECT id, day_date, content, created_ms, edited_ms
		FROM journal_entries
		WHERE created_ms < ?
		ORDER BY created_ms DESC, id DESC
		LIMIT ?`, beforeMs, limit)
	if err != nil {
		return nil, fmt.Errorf("recent journal: %w", err)
	}
	return collectJournal(rows)
}

// UpdateJournalEntry replaces an entry's content and stamps the edit time.
func (s *Store) UpdateJournalEntry(id int64, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("journal entry is empty")
	}
	res, err := s.db.Exec(
		`UPDATE journal_entries SET content = ?, edited_ms = ? WHERE id = ?`,
		content, time.Now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("update journal entry %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("journal entry %d not found", id)
	}
	return nil
}

// DeleteJournalEntry removes one entry.
func (s *Store) DeleteJournalEntry(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM journal_entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete journal entry %d: %w", id, err)
	}
	return nil
}

// JournalDaysInMonth lists the dates of a month that carry at least one
// entry, for calendar markers.
func (s *Store) JournalDaysInMonth(yyyyMM string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT day_date
		FROM journal_entries
		WHERE day_date LIKE ?
		ORDER BY day_date ASC`, yyyyMM+"-%")
	if err != nil {
		return nil, fmt.Errorf("journal days %s: %w", yyyyMM, err)
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

func collectJournal(rows *sql.Rows) ([]JournalEntry, error) {
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var edited sql.NullInt64
		if err := rows.Scan(&e.ID, &e.EntryDate, &e.Content, &e.CreatedMs, &edited); err != nil {
			return nil, err
		}
		if edited.Valid {
			e.EditedMs = &edited.Int64
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
