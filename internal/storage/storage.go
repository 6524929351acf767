package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Rename outcomes.
const (
	RenameDone      = "renamed"
	RenameDryRun    = "dry_run"
	RenameCollision = "collision"
	RenameFailed    = "failed"
)

// Store is the rename journal. A nil *Store accepts every Record call and
// stores nothing, so callers need not check whether journaling is enabled.
type Store struct {
	DB *sql.DB
}

// New opens (or creates) the journal at path and ensures schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{DB: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
            id TEXT PRIMARY KEY,
            job_type TEXT NOT NULL,
            status TEXT NOT NULL,
            directory TEXT,
            map_file TEXT,
            dry_run BOOLEAN DEFAULT TRUE,
            options_json TEXT,
            summary_json TEXT,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            started_at TIMESTAMP,
            completed_at TIMESTAMP,
            error_message TEXT
        );`,
		`CREATE TABLE IF NOT EXISTS renames (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            run_id TEXT NOT NULL,
            source TEXT NOT NULL,
            destination TEXT NOT NULL,
            outcome TEXT NOT NULL,
            error_message TEXT,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE INDEX IF NOT EXISTS idx_renames_run_id ON renames(run_id);`,
		`CREATE INDEX IF NOT EXISTS idx_renames_source ON renames(source);`,
	}
	for _, stmt := range stmts {
		if _, err := s.DB.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying DB.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// RunRecord captures one batch as persisted.
type RunRecord struct {
	ID          string
	JobType     string
	Status      string
	Directory   string
	MapFile     string
	DryRun      bool
	OptionsJSON string
	Summary     map[string]any
	Error       string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// RenameRecord is one file handled by a run.
type RenameRecord struct {
	RunID       string
	Source      string
	Destination string
	Outcome     string
	Error       string
	CreatedAt   time.Time
}

// RecordRunQueued inserts a pending run.
func (s *Store) RecordRunQueued(rec RunRecord) error {
	if s == nil {
		return nil
	}
	_, err := s.DB.Exec(`INSERT OR REPLACE INTO runs (id, job_type, status, directory, map_file, dry_run, options_json) VALUES (?, ?, ?, ?, ?, ?, ?);`,
		rec.ID, rec.JobType, StatusQueued, rec.Directory, rec.MapFile, rec.DryRun, rec.OptionsJSON)
	return err
}

// RecordRunStart marks a run as running.
func (s *Store) RecordRunStart(id string) error {
	if s == nil {
		return nil
	}
	_, err := s.DB.Exec(`UPDATE runs SET status=?, started_at=CURRENT_TIMESTAMP WHERE id=?;`, StatusRunning, id)
	return err
}

// RecordRunResult finalizes a run with status and summary.
func (s *Store) RecordRunResult(id string, status string, summary map[string]any, errMsg string) error {
	if s == nil {
		return nil
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	_, err = s.DB.Exec(`UPDATE runs SET status=?, completed_at=CURRENT_TIMESTAMP, summary_json=?, error_message=? WHERE id=?;`,
		status, string(summaryJSON), errMsg, id)
	return err
}

// RecordRename appends one file outcome to a run.
func (s *Store) RecordRename(rec RenameRecord) error {
	if s == nil {
		return nil
	}
	_, err := s.DB.Exec(`INSERT INTO renames (run_id, source, destination, outcome, error_message) VALUES (?, ?, ?, ?, ?);`,
		rec.RunID, rec.Source, rec.Destination, rec.Outcome, rec.Error)
	return err
}

// RecentRuns returns the latest runs up to limit, newest first.
func (s *Store) RecentRuns(limit int) ([]RunRecord, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	rows, err := s.DB.Query(`SELECT id, job_type, status, directory, map_file, dry_run, options_json, summary_json, created_at, started_at, completed_at, error_message FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []RunRecord
	for rows.Next() {
		var rec RunRecord
		var dir, mapFile, opts, summary, errorMsg sql.NullString
		var started, completed sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.JobType, &rec.Status, &dir, &mapFile, &rec.DryRun, &opts, &summary, &rec.CreatedAt, &started, &completed, &errorMsg); err != nil {
			return nil, err
		}
		rec.Directory = dir.String
		rec.MapFile = mapFile.String
		rec.OptionsJSON = opts.String
		rec.Error = errorMsg.String
		if started.Valid {
			rec.StartedAt = &started.Time
		}
		if completed.Valid {
			rec.CompletedAt = &completed.Time
		}
		if summary.Valid && summary.String != "" {
			if err := json.Unmarshal([]byte(summary.String), &rec.Summary); err != nil {
				return nil, fmt.Errorf("unmarshal summary: %w", err)
			}
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// RunRenames lists the files handled by a run in the order they were handled.
func (s *Store) RunRenames(runID string) ([]RenameRecord, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	rows, err := s.DB.Query(`SELECT run_id, source, destination, outcome, error_message, created_at FROM renames WHERE run_id=? ORDER BY id;`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []RenameRecord
	for rows.Next() {
		var rec RenameRecord
		var errorMsg sql.NullString
		if err := rows.Scan(&rec.RunID, &rec.Source, &rec.Destination, &rec.Outcome, &errorMsg, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Error = errorMsg.String
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
