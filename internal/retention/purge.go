// Package retention implements the batched job/file purge described by the
// original service's app/maintenance/purge_db.py: delete old succeeded/
// failed jobs in batches, optionally VACUUM the database, and optionally
// sweep the storage directory for orphaned or stale files.
package retention

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cisco7507/langid-mr/internal/models"
	"github.com/cisco7507/langid-mr/pkg/logger"

	"gorm.io/gorm"
)

// Options configures one purge run.
type Options struct {
	KeepDays   int
	BatchSize  int
	Vacuum     bool
	PurgeFiles bool
	StorageDir string
}

// Result reports what a purge run did.
type Result struct {
	DeletedJobs  int
	ScannedFiles int
	DeletedFiles int
}

// DefaultOptions mirrors purge_db.py's argparse defaults.
func DefaultOptions(storageDir string) Options {
	return Options{KeepDays: 30, BatchSize: 2000, StorageDir: storageDir}
}

// Run purges jobs older than opts.KeepDays in batches of opts.BatchSize,
// then optionally sweeps orphaned storage files and VACUUMs the database.
func Run(db *gorm.DB, opts Options) (Result, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 2000
	}

	var result Result
	cutoff := time.Now().UTC().AddDate(0, 0, -opts.KeepDays)

	var ids []string
	if err := db.Model(&models.Job{}).
		Where("status IN ? AND updated_at < ?", []models.JobStatus{models.StatusSucceeded, models.StatusFailed}, cutoff).
		Pluck("id", &ids).Error; err != nil {
		return result, fmt.Errorf("selecting purge candidates: %w", err)
	}

	for i := 0; i < len(ids); i += opts.BatchSize {
		end := i + opts.BatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[i:end]
		res := db.Where("id IN ?", batch).Delete(&models.Job{})
		if res.Error != nil {
			return result, fmt.Errorf("deleting purge batch: %w", res.Error)
		}
		result.DeletedJobs += int(res.RowsAffected)
	}
	logger.Info("purge: deleted jobs", "count", result.DeletedJobs)

	if opts.PurgeFiles && opts.StorageDir != "" {
		known, err := knownIDs(db)
		if err != nil {
			return result, fmt.Errorf("loading known job ids: %w", err)
		}
		scanned, removed := purgeOrphanFiles(opts.StorageDir, known, cutoff)
		result.ScannedFiles = scanned
		result.DeletedFiles = removed
		logger.Info("purge: swept storage files", "scanned", scanned, "removed", removed)
	}

	if opts.Vacuum {
		if err := db.Exec("PRAGMA optimize").Error; err != nil {
			logger.Warn("purge: PRAGMA optimize failed", "error", err)
		}
		if err := db.Exec("VACUUM").Error; err != nil {
			return result, fmt.Errorf("vacuuming database: %w", err)
		}
	}

	return result, nil
}

func knownIDs(db *gorm.DB) (map[string]bool, error) {
	var ids []string
	if err := db.Model(&models.Job{}).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	return known, nil
}

// purgeOrphanFiles removes any file under storageDir whose <job_id> prefix
// (the name up to the first '.') doesn't appear in known, or whose mtime is
// older than cutoff.
func purgeOrphanFiles(storageDir string, known map[string]bool, cutoff time.Time) (scanned, removed int) {
	entries, err := os.ReadDir(storageDir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("purge: reading storage dir failed", "error", err)
		}
		return 0, 0
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		scanned++

		name := entry.Name()
		jobID := name
		if idx := strings.Index(name, "."); idx >= 0 {
			jobID = name[:idx]
		}

		info, err := entry.Info()
		mtime := time.Unix(0, 0).UTC()
		if err == nil {
			mtime = info.ModTime().UTC()
		}

		if !known[jobID] || mtime.Before(cutoff) {
			if err := os.Remove(filepath.Join(storageDir, name)); err == nil {
				removed++
			}
		}
	}
	return scanned, removed
}
