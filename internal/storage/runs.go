// Package storage keeps a SQLite ledger of report runs.
package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunPartial   = "partial"
	RunFailed    = "failed"

	SectionOK     = "ok"
	SectionFailed = "failed"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	afm             TEXT NOT NULL DEFAULT '',
	company_name    TEXT NOT NULL DEFAULT '',
	source          TEXT NOT NULL,
	output_dir      TEXT NOT NULL DEFAULT '',
	html_path       TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'running',
	error           TEXT NOT NULL DEFAULT '',
	sections_ok     INTEGER NOT NULL DEFAULT 0,
	sections_failed INTEGER NOT NULL DEFAULT 0,
	started_at      DATETIME NOT NULL,
	finished_at     DATETIME
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_afm ON runs(afm);

CREATE TABLE IF NOT EXISTS section_results (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	section     INTEGER NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_sr_run ON section_results(run_id);

CREATE TABLE IF NOT EXISTS file_classifications (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id    TEXT NOT NULL,
	filename  TEXT NOT NULL,
	sections  TEXT NOT NULL DEFAULT '',
	reasoning TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_fc_run ON file_classifications(run_id);
`

type Run struct {
	ID             string       `db:"id"`
	AFM            string       `db:"afm"`
	CompanyName    string       `db:"company_name"`
	Source         string       `db:"source"`
	OutputDir      string       `db:"output_dir"`
	HTMLPath       string       `db:"html_path"`
	Status         string       `db:"status"`
	Error          string       `db:"error"`
	SectionsOK     int          `db:"sections_ok"`
	SectionsFailed int          `db:"sections_failed"`
	StartedAt      time.Time    `db:"started_at"`
	FinishedAt     sql.NullTime `db:"finished_at"`
}

type SectionResult struct {
	RunID      string `db:"run_id"`
	Section    int    `db:"section"`
	Status     string `db:"status"`
	Error      string `db:"error"`
	DurationMS int64  `db:"duration_ms"`
}

type FileClassification struct {
	RunID     string `db:"run_id"`
	Filename  string `db:"filename"`
	Sections  string `db:"sections"`
	Reasoning string `db:"reasoning"`
}

// SectionList renders section numbers as a comma separated column value.
func SectionList(sections []int) string {
	parts := make([]string, len(sections))
	for i, n := range sections {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

type Store struct {
	db *sqlx.DB
}

func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) StartRun(r Run) error {
	if r.Status == "" {
		r.Status = RunRunning
	}
	_, err := s.db.NamedExec(
		`INSERT INTO runs (id, afm, company_name, source, output_dir, status, started_at)
		 VALUES (:id, :afm, :company_name, :source, :output_dir, :status, :started_at)`, r)
	return err
}

// FinishRun stores the final state of a run.
func (s *Store) FinishRun(r Run) error {
	_, err := s.db.NamedExec(
		`UPDATE runs SET afm = :afm, company_name = :company_name, output_dir = :output_dir,
		 html_path = :html_path, status = :status, error = :error, sections_ok = :sections_ok,
		 sections_failed = :sections_failed, finished_at = :finished_at
		 WHERE id = :id`, r)
	return err
}

func (s *Store) RecordSection(res SectionResult) error {
	_, err := s.db.NamedExec(
		`INSERT INTO section_results (run_id, section, status, error, duration_ms)
		 VALUES (:run_id, :section, :status, :error, :duration_ms)`, res)
	return err
}

func (s *Store) RecordClassifications(items []FileClassification) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, it := range items {
		if _, err := tx.NamedExec(
			`INSERT INTO file_classifications (run_id, filename, sections, reasoning)
			 VALUES (:run_id, :filename, :sections, :reasoning)`, it); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) GetRun(id string) (Run, error) {
	var r Run
	err := s.db.Get(&r, `SELECT * FROM runs WHERE id = ?`, id)
	return r, err
}

// RecentRuns lists runs newest first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []Run
	err := s.db.Select(&runs, `SELECT * FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	return runs, err
}

func (s *Store) SectionResults(runID string) ([]SectionResult, error) {
	var out []SectionResult
	err := s.db.Select(&out,
		`SELECT run_id, section, status, error, duration_ms FROM section_results
		 WHERE run_id = ? ORDER BY section, id`, runID)
	return out, err
}

func (s *Store) Classifications(runID string) ([]FileClassification, error) {
	var out []FileClassification
	err := s.db.Select(&out,
		`SELECT run_id, filename, sections, reasoning FROM file_classifications
		 WHERE run_id = ? ORDER BY id`, runID)
	return out, err
}
