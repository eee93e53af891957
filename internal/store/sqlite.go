package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cisco7507/langid-mr/internal/apperrors"
	"github.com/cisco7507/langid-mr/internal/models"

	"gorm.io/gorm"
)

// SqliteStore is the single-process JobStore backend: a GORM handle over
// glebarez/sqlite guarded by a process-wide mutex for ClaimNext, matching
// spec.md §4.1's "process-wide mutex wrapping a read+update transaction".
type SqliteStore struct {
	db         *gorm.DB
	storageDir string
	claimMu    sync.Mutex
}

// NewSqliteStore builds a store bound to db, removing on-disk artifacts
// under storageDir on Delete.
func NewSqliteStore(db *gorm.DB, storageDir string) *SqliteStore {
	return &SqliteStore{db: db, storageDir: storageDir}
}

func (s *SqliteStore) Create(ctx context.Context, job *models.Job) error {
	return s.db.WithContext(ctx).Create(job).Error
}

func (s *SqliteStore) Get(ctx context.Context, id string) (*models.Job, error) {
	var job models.Job
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *SqliteStore) List(ctx context.Context, filter models.JobFilter) ([]models.Job, error) {
	q := s.db.WithContext(ctx).Model(&models.Job{})
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.Since != nil {
		q = q.Where("created_at >= ?", *filter.Since)
	}
	q = q.Order("created_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var jobs []models.Job
	if err := q.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// ClaimNext selects the oldest queued job and transitions it to running
// under a process-wide mutex, so no two workers in this process ever claim
// the same row. A single transaction re-checks the status before writing,
// protecting against the (vanishingly unlikely) case of a concurrent
// external writer.
func (s *SqliteStore) ClaimNext(ctx context.Context) (*models.Job, error) {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	var claimed *models.Job
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.Job
		err := tx.Where("status = ?", models.StatusQueued).
			Order("created_at ASC").
			First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		res := tx.Model(&models.Job{}).
			Where("id = ? AND status = ?", job.ID, models.StatusQueued).
			Updates(map[string]any{"status": models.StatusRunning, "progress": 10})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		job.Status = models.StatusRunning
		job.Progress = 10
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (s *SqliteStore) Update(ctx context.Context, id string, fields UpdateFields) error {
	updates := map[string]any{}
	if fields.Status != nil {
		updates["status"] = *fields.Status
	}
	if fields.Attempts != nil {
		updates["attempts"] = *fields.Attempts
	}
	if fields.Progress != nil {
		updates["progress"] = *fields.Progress
	}
	if fields.ResultJSON != nil {
		updates["result_json"] = *fields.ResultJSON
	}
	if fields.Error != nil {
		updates["error"] = *fields.Error
	}
	if len(updates) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Delete removes the job rows and their on-disk artifacts. It refuses to
// follow symlinks that resolve outside storageDir, per spec.md §4.1.
func (s *SqliteStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	var jobs []models.Job
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&jobs).Error; err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Job{}).Error; err != nil {
		return err
	}

	for _, job := range jobs {
		if job.InputPath == "" {
			continue
		}
		if err := s.removeArtifact(job.InputPath); err != nil {
			return fmt.Errorf("removing artifact for job %s: %w", job.ID, err)
		}
	}
	return nil
}

func (s *SqliteStore) removeArtifact(inputPath string) error {
	return removeArtifactFromRoot(s.storageDir, inputPath)
}
