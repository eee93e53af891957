package retention

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cisco7507/langid-mr/internal/database"
	"github.com/cisco7507/langid-mr/internal/models"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "purge_test.db")
	require.NoError(t, database.Initialize(dbPath))
	t.Cleanup(func() { _ = database.Close() })
}

func TestRun_DeletesOldTerminalJobsOnly(t *testing.T) {
	openTestDB(t)
	db := database.DB

	old := &models.Job{ID: "n1-old", Status: models.StatusSucceeded, InputPath: "x"}
	require.NoError(t, db.Create(old).Error)
	require.NoError(t, db.Model(old).UpdateColumn("updated_at", time.Now().UTC().AddDate(0, 0, -60)).Error)

	recent := &models.Job{ID: "n1-recent", Status: models.StatusSucceeded, InputPath: "x"}
	require.NoError(t, db.Create(recent).Error)

	running := &models.Job{ID: "n1-running", Status: models.StatusRunning, InputPath: "x"}
	require.NoError(t, db.Create(running).Error)
	require.NoError(t, db.Model(running).UpdateColumn("updated_at", time.Now().UTC().AddDate(0, 0, -60)).Error)

	result, err := Run(db, Options{KeepDays: 30, BatchSize: 10})
	require.NoError(t, err)
	require.Equal(t, 1, result.DeletedJobs)

	var remaining []models.Job
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 2)
}

func TestRun_PurgesOrphanFiles(t *testing.T) {
	openTestDB(t)
	db := database.DB
	storageDir := t.TempDir()

	known := &models.Job{ID: "n1-known", Status: models.StatusSucceeded, InputPath: "known"}
	require.NoError(t, db.Create(known).Error)

	require.NoError(t, os.WriteFile(filepath.Join(storageDir, "n1-known.wav"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(storageDir, "n1-orphan.wav"), []byte("b"), 0o644))

	result, err := Run(db, Options{KeepDays: 30, BatchSize: 10, PurgeFiles: true, StorageDir: storageDir})
	require.NoError(t, err)
	require.Equal(t, 2, result.ScannedFiles)
	require.Equal(t, 1, result.DeletedFiles)

	_, err = os.Stat(filepath.Join(storageDir, "n1-known.wav"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(storageDir, "n1-orphan.wav"))
	require.True(t, os.IsNotExist(err))
}
