package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cisco7507/langid-mr/internal/apperrors"
	"github.com/cisco7507/langid-mr/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresStore is the multi-process JobStore backend spec.md §4.1 calls
// for when a single mutex can't serialize claims across processes: it uses
// `UPDATE ... WHERE status='queued' ... RETURNING` so Postgres's row lock
// does the serializing instead of an in-process mutex.
type PostgresStore struct {
	db         *sqlx.DB
	storageDir string
}

// NewPostgresStore opens a Postgres connection and ensures the jobs table
// exists.
func NewPostgresStore(dsn, storageDir string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db, storageDir: storageDir}, nil
}

func ensureSchema(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL DEFAULT 'queued',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			attempts INTEGER NOT NULL DEFAULT 0,
			progress INTEGER NOT NULL DEFAULT 0,
			input_path TEXT NOT NULL,
			original_filename TEXT NOT NULL,
			target_lang TEXT,
			result_json TEXT,
			error TEXT
		);
		CREATE INDEX IF NOT EXISTS jobs_status_idx ON jobs (status);
		CREATE INDEX IF NOT EXISTS jobs_created_at_idx ON jobs (created_at);
	`)
	return err
}

func (s *PostgresStore) Create(ctx context.Context, job *models.Job) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, status, attempts, progress, input_path, original_filename, target_lang, result_json, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.Status, job.Attempts, job.Progress, job.InputPath, job.OriginalFilename,
		job.TargetLang, job.ResultJSON, job.Error)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	err := s.db.GetContext(ctx, &job, `SELECT * FROM jobs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.JobFilter) ([]models.Job, error) {
	query := `SELECT * FROM jobs WHERE 1=1`
	args := []any{}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var jobs []models.Job
	if err := s.db.SelectContext(ctx, &jobs, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return jobs, nil
}

// ClaimNext relies on Postgres's row-level locking via UPDATE ... RETURNING
// instead of a process-wide mutex, so it stays correct across any number of
// worker processes sharing this database.
func (s *PostgresStore) ClaimNext(ctx context.Context) (*models.Job, error) {
	var job models.Job
	err := s.db.GetContext(ctx, &job, `
		UPDATE jobs SET status = 'running', progress = 10, updated_at = now()
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = 'queued'
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, fields UpdateFields) error {
	sets := []string{"updated_at = now()"}
	args := []any{}

	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if fields.Status != nil {
		add("status", *fields.Status)
	}
	if fields.Attempts != nil {
		add("attempts", *fields.Attempts)
	}
	if fields.Progress != nil {
		add("progress", *fields.Progress)
	}
	if fields.ResultJSON != nil {
		add("result_json", *fields.ResultJSON)
	}
	if fields.Error != nil {
		add("error", *fields.Error)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE jobs SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	var jobs []models.Job
	query, args, err := sqlxIn(`SELECT * FROM jobs WHERE id IN (?)`, ids)
	if err != nil {
		return err
	}
	if err := s.db.SelectContext(ctx, &jobs, s.db.Rebind(query), args...); err != nil {
		return err
	}

	delQuery, delArgs, err := sqlxIn(`DELETE FROM jobs WHERE id IN (?)`, ids)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(delQuery), delArgs...); err != nil {
		return err
	}

	for _, job := range jobs {
		if job.InputPath == "" {
			continue
		}
		if err := removeArtifactFromRoot(s.storageDir, job.InputPath); err != nil {
			return fmt.Errorf("removing artifact for job %s: %w", job.ID, err)
		}
	}
	return nil
}

func sqlxIn(query string, ids []string) (string, []any, error) {
	return sqlx.In(query, ids)
}

// removeArtifactFromRoot is shared symlink-safe deletion logic, factored
// out so both backends enforce the same storage-root containment rule.
func removeArtifactFromRoot(storageDir, inputPath string) error {
	if storageDir == "" {
		return nil
	}
	full := filepath.Join(storageDir, filepath.Base(inputPath))

	resolvedRoot, err := filepath.EvalSymlinks(storageDir)
	if err != nil {
		return nil
	}
	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	rel, err := filepath.Rel(resolvedRoot, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("refusing to remove artifact outside storage root: %s", full)
	}
	return os.Remove(full)
}
