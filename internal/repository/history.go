package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/linetrace/linelist-tracker/constants"
	"github.com/linetrace/linelist-tracker/internal/common"
)

// HistoryEntry is one extraction run in the local audit log.
type HistoryEntry struct {
	ID              uuid.UUID
	JobID           string // empty when the backend completed synchronously
	PrimaryFilename string
	Template        string
	EnrichmentCount int
	SubmittedAt     time.Time
	FinishedAt      *time.Time
	Status          constants.HistoryStatus
	RecordCount     int
	SourcesOK       int
	ErrorMessage    string
}

// HistoryRepository records extraction submissions and their outcomes.
type HistoryRepository interface {
	Init(ctx context.Context) error
	RecordSubmission(ctx context.Context, entry *HistoryEntry) error
	RecordOutcome(ctx context.Context, id uuid.UUID, status constants.HistoryStatus, recordCount, sourcesOK int, errorMessage string) error
	GetByID(ctx context.Context, id uuid.UUID) (*HistoryEntry, error)
	ListRecent(ctx context.Context, limit int) ([]*HistoryEntry, error)
}

type historyRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenHistoryDB opens (creating if needed) the local sqlite history file.
func OpenHistoryDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	return db, nil
}

// NewHistoryRepository creates a sqlite-backed history repository.
func NewHistoryRepository(db *sql.DB, logger *slog.Logger) HistoryRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &historyRepository{db: db, logger: logger}
}

const historySchema = `
CREATE TABLE IF NOT EXISTS extraction_history (
	id               TEXT PRIMARY KEY,
	job_id           TEXT NOT NULL DEFAULT '',
	primary_filename TEXT NOT NULL,
	template         TEXT NOT NULL,
	enrichment_count INTEGER NOT NULL,
	submitted_at     TEXT NOT NULL,
	finished_at      TEXT,
	status           TEXT NOT NULL,
	record_count     INTEGER NOT NULL DEFAULT 0,
	sources_ok       INTEGER NOT NULL DEFAULT 0,
	error_message    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_history_submitted_at ON extraction_history (submitted_at DESC);
`

func (r *historyRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, historySchema); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

func (r *historyRepository) RecordSubmission(ctx context.Context, entry *HistoryEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.SubmittedAt.IsZero() {
		entry.SubmittedAt = time.Now().UTC()
	}
	if entry.Status == "" {
		entry.Status = constants.HistoryStatusSubmitted
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO extraction_history
			(id, job_id, primary_filename, template, enrichment_count, submitted_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID.String(),
		entry.JobID,
		entry.PrimaryFilename,
		entry.Template,
		entry.EnrichmentCount,
		entry.SubmittedAt.Format(time.RFC3339Nano),
		string(entry.Status),
	)
	if err != nil {
		r.logger.Error("failed to record submission", "id", entry.ID, "error", err)
		return fmt.Errorf("record submission: %w", err)
	}
	return nil
}

func (r *historyRepository) RecordOutcome(ctx context.Context, id uuid.UUID, status constants.HistoryStatus, recordCount, sourcesOK int, errorMessage string) error {
	finished := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := r.db.ExecContext(ctx, `
		UPDATE extraction_history
		SET status = ?, record_count = ?, sources_ok = ?, error_message = ?, finished_at = ?
		WHERE id = ?`,
		string(status), recordCount, sourcesOK, errorMessage, finished, id.String(),
	)
	if err != nil {
		r.logger.Error("failed to record outcome", "id", id, "error", err)
		return fmt.Errorf("record outcome: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("record outcome for %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (r *historyRepository) GetByID(ctx context.Context, id uuid.UUID) (*HistoryEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, job_id, primary_filename, template, enrichment_count,
		       submitted_at, finished_at, status, record_count, sources_ok, error_message
		FROM extraction_history WHERE id = ?`, id.String())
	return scanHistoryEntry(row)
}

func (r *historyRepository) ListRecent(ctx context.Context, limit int) ([]*HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, job_id, primary_filename, template, enrichment_count,
		       submitted_at, finished_at, status, record_count, sources_ok, error_message
		FROM extraction_history
		ORDER BY submitted_at DESC
		LIMIT ?`, limit)
	if err != nil {
		r.logger.Error("failed to list history", "error", err)
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []*HistoryEntry
	for rows.Next() {
		entry, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHistoryEntry(row rowScanner) (*HistoryEntry, error) {
	var (
		entry       HistoryEntry
		idStr       string
		submittedAt string
		finishedAt  sql.NullString
		status      string
	)
	err := row.Scan(
		&idStr,
		&entry.JobID,
		&entry.PrimaryFilename,
		&entry.Template,
		&entry.EnrichmentCount,
		&submittedAt,
		&finishedAt,
		&status,
		&entry.RecordCount,
		&entry.SourcesOK,
		&entry.ErrorMessage,
	)
	if err != nil {
		return nil, fmt.Errorf("scan history row: %w", err)
	}

	entry.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse history id: %w", err)
	}
	entry.SubmittedAt, err = time.Parse(time.RFC3339Nano, submittedAt)
	if err != nil {
		return nil, fmt.Errorf("parse submitted_at: %w", err)
	}
	if finishedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		entry.FinishedAt = &t
	}
	entry.Status = constants.HistoryStatus(status)
	return &entry, nil
}
