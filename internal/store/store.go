package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const currentVersion = 1

type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewMemory creates an in-memory store for testing.
func NewMemory() (*Store, error) {
	return New(":memory:")
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}

	_, err = s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

func (s *Store) migrateV1() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS activities (
		id    INTEGER PRIMARY KEY AUTOINCREMENT,
		name  TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS sub_activities (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		activity_id  INTEGER NOT NULL REFERENCES activities(id),
		name         TEXT NOT NULL,
		UNIQUE(activity_id, name)
	);

	CREATE TABLE IF NOT EXISTS activity_colors (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		activity_id       INTEGER NOT NULL UNIQUE REFERENCES activities(id) ON DELETE CASCADE,
		color_hex         TEXT NOT NULL DEFAULT '#3B82F6',
		background_color  TEXT,
		text_color        TEXT NOT NULL DEFAULT '#FFFFFF',
		created_at        INTEGER DEFAULT (strftime('%s','now')),
		updated_at        INTEGER DEFAULT (strftime('%s','now'))
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		activity_id      INTEGER REFERENCES activities(id),
		sub_activity_id  INTEGER REFERENCES sub_activities(id),
		note             TEXT NOT NULL DEFAULT '',
		start_ms         INTEGER NOT NULL,
		end_ms           INTEGER,
		duration_ms      INTEGER,
		is_manual        INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_start ON sessions(start_ms);

	CREATE TABLE IF NOT EXISTS daily_schedule_settings (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		effective_date  TEXT NOT NULL,
		wake_time       TEXT NOT NULL,
		sleep_time      TEXT NOT NULL,
		timezone        TEXT,
		created_at      INTEGER DEFAULT (strftime('%s','now'))
	);
	CREATE INDEX IF NOT EXISTS idx_schedule_date ON daily_schedule_settings(effective_date);

	CREATE TABLE IF NOT EXISTS weekly_schedule_events (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		effective_date   TEXT NOT NULL,
		day_of_week      INTEGER NOT NULL,
		start_time       TEXT NOT NULL,
		end_time         TEXT NOT NULL,
		activity_id      INTEGER NOT NULL REFERENCES activities(id),
		sub_activity_id  INTEGER REFERENCES sub_activities(id),
		created_at       INTEGER DEFAULT (strftime('%s','now'))
	);
	CREATE INDEX IF NOT EXISTS idx_weekly_schedule ON weekly_schedule_events(effective_date, day_of_week);

	CREATE TABLE IF NOT EXISTS manual_study_plans (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		plan_date        TEXT NOT NULL,
		start_time       TEXT NOT NULL,
		end_time         TEXT NOT NULL,
		activity_id      INTEGER NOT NULL REFERENCES activities(id),
		sub_activity_id  INTEGER REFERENCES sub_activities(id),
		created_at       INTEGER DEFAULT (strftime('%s','now'))
	);
	CREATE INDEX IF NOT EXISTS idx_manual_plans_date_time ON manual_study_plans(plan_date, start_time, end_time);

	CREATE TABLE IF NOT EXISTS daily_instantiated_plans (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		plan_date        TEXT NOT NULL,
		start_time       TEXT NOT NULL,
		end_time         TEXT NOT NULL,
		activity_id      INTEGER REFERENCES activities(id),
		sub_activity_id  INTEGER REFERENCES sub_activities(id),
		title            TEXT,
		subtitle         TEXT,
		source           TEXT NOT NULL DEFAULT 'weekly',
		created_at       INTEGER DEFAULT (strftime('%s','now'))
	);
	CREATE INDEX IF NOT EXISTS idx_daily_plans_date_time ON daily_instantiated_plans(plan_date, start_time, end_time);

	CREATE TABLE IF NOT EXISTS journal_entries (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		day_date    TEXT NOT NULL,
		created_ms  INTEGER NOT NULL,
		content     TEXT NOT NULL,
		edited_ms   INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_journal_day ON journal_entries(day_date);
	CREATE INDEX IF NOT EXISTS idx_journal_created ON journal_entries(created_ms);
	`
	if _, err := s.db.Exec(ddl); err != nil {
		return err
	}
	return s.seedDefaults()
}

// seedDefaults preloads a fresh database with a starter set of activities
// and their colors. Existing databases are left alone.
func (s *Store) seedDefaults() error {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM activities`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	seed := []struct {
		name  string
		color string
		text  string
	}{
		{"Study", "#3B82F6", "#FFFFFF"},
		{"Exercise", "#F97316", "#FFFFFF"},
		{"Gaming", "#F8D7DA", "#721C24"},
		{"Class", "#8B5CF6", "#FFFFFF"},
		{"Test", "#F59E0B", "#FFFFFF"},
	}
	for _, a := range seed {
		res, err := s.db.Exec(`INSERT OR IGNORE INTO activities(name) VALUES (?)`, a.name)
		if err != nil {
			return fmt.Errorf("seed activity %q: %w", a.name, err)
		}
		id, _ := res.LastInsertId()
		_, err = s.db.Exec(
			`INSERT OR IGNORE INTO activity_colors (activity_id, color_hex, text_color) VALUES (?, ?, ?)`,
			id, a.color, a.text,
		)
		if err != nil {
			return fmt.Errorf("seed color for %q: %w", a.name, err)
		}
	}
	return nil
}

// DefaultDBPath returns ~/.config/timearc/timearc.db
func DefaultDBPath() (string, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg, "timearc", "timearc.db"), nil
}
