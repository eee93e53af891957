package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cisco7507/langid-mr/internal/apperrors"
	"github.com/cisco7507/langid-mr/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Job{}))
	return db
}

func TestSqliteStore_CreateGetUpdateDelete(t *testing.T) {
	db := newTestDB(t)
	storageDir := t.TempDir()
	s := NewSqliteStore(db, storageDir)
	ctx := context.Background()

	artifact := filepath.Join(storageDir, "n1-abc.wav")
	require.NoError(t, os.WriteFile(artifact, []byte("riff"), 0644))

	job := &models.Job{
		ID:               "n1-abc",
		Status:           models.StatusQueued,
		InputPath:        artifact,
		OriginalFilename: "clip.wav",
	}
	require.NoError(t, s.Create(ctx, job))

	got, err := s.Get(ctx, "n1-abc")
	require.NoError(t, err)
	require.Equal(t, models.StatusQueued, got.Status)

	succeeded := models.StatusSucceeded
	resultJSON := `{"language":"en"}`
	require.NoError(t, s.Update(ctx, "n1-abc", UpdateFields{Status: &succeeded, ResultJSON: &resultJSON}))

	got, err = s.Get(ctx, "n1-abc")
	require.NoError(t, err)
	require.Equal(t, models.StatusSucceeded, got.Status)
	require.Equal(t, resultJSON, *got.ResultJSON)

	require.NoError(t, s.Delete(ctx, []string{"n1-abc"}))
	_, err = s.Get(ctx, "n1-abc")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, statErr := os.Stat(artifact)
	require.True(t, os.IsNotExist(statErr))
}

func TestSqliteStore_Get_NotFound(t *testing.T) {
	db := newTestDB(t)
	s := NewSqliteStore(db, t.TempDir())
	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSqliteStore_ClaimNext_OldestQueuedFirst(t *testing.T) {
	db := newTestDB(t)
	s := NewSqliteStore(db, t.TempDir())
	ctx := context.Background()

	older := &models.Job{ID: "n1-old", Status: models.StatusQueued, CreatedAt: time.Now().UTC().Add(-time.Hour)}
	newer := &models.Job{ID: "n1-new", Status: models.StatusQueued, CreatedAt: time.Now().UTC()}
	require.NoError(t, db.Create(older).Error)
	require.NoError(t, db.Create(newer).Error)

	claimed, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.Equal(t, "n1-old", claimed.ID)
	require.Equal(t, models.StatusRunning, claimed.Status)

	next, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	require.Equal(t, "n1-new", next.ID)

	none, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestSqliteStore_List_FiltersByStatusAndLimit(t *testing.T) {
	db := newTestDB(t)
	s := NewSqliteStore(db, t.TempDir())
	ctx := context.Background()

	require.NoError(t, db.Create(&models.Job{ID: "n1-a", Status: models.StatusQueued}).Error)
	require.NoError(t, db.Create(&models.Job{ID: "n1-b", Status: models.StatusSucceeded}).Error)
	require.NoError(t, db.Create(&models.Job{ID: "n1-c", Status: models.StatusSucceeded}).Error)

	succeeded := models.StatusSucceeded
	jobs, err := s.List(ctx, models.JobFilter{Status: &succeeded, Limit: 1})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, models.StatusSucceeded, jobs[0].Status)
}

func TestSqliteStore_Update_UnknownJobReturnsNotFound(t *testing.T) {
	db := newTestDB(t)
	s := NewSqliteStore(db, t.TempDir())
	status := models.StatusFailed
	err := s.Update(context.Background(), "missing", UpdateFields{Status: &status})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}
