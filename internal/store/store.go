// Package store implements the job persistence contract from spec.md §4.1:
// create/get/list/claim_next/update/delete, with claim_next guaranteed
// atomic against concurrent workers.
package store

import (
	"context"
	"time"

	"github.com/cisco7507/langid-mr/internal/models"
)

// UpdateFields is a sparse patch applied by Update; nil fields are left
// untouched.
type UpdateFields struct {
	Status     *models.JobStatus
	Attempts   *int
	Progress   *int
	ResultJSON *string
	Error      *string
}

// JobStore is the persistence contract every backend (sqlite, postgres)
// satisfies identically.
type JobStore interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id string) (*models.Job, error)
	List(ctx context.Context, filter models.JobFilter) ([]models.Job, error)
	ClaimNext(ctx context.Context) (*models.Job, error)
	Update(ctx context.Context, id string, fields UpdateFields) error
	Delete(ctx context.Context, ids []string) error
}

// now is overridable in tests that need deterministic timestamps.
var now = func() time.Time { return time.Now().UTC() }
