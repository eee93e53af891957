// Package api implements the HTTP surface from spec.md §6: job ingress with
// round-robin distribution, owner-proxied job reads/writes, local and
// cluster-wide admin/metrics views. One Handler struct holds every
// collaborator and is constructed once at startup, following
// original_source/langid_service/app/main.py's route semantics.
package api

import (
	"time"

	"github.com/cisco7507/langid-mr/internal/cluster"
	"github.com/cisco7507/langid-mr/internal/config"
	"github.com/cisco7507/langid-mr/internal/decoder"
	"github.com/cisco7507/langid-mr/internal/langgate"
	"github.com/cisco7507/langid-mr/internal/metrics"
	"github.com/cisco7507/langid-mr/internal/queue"
	"github.com/cisco7507/langid-mr/internal/service"
	"github.com/cisco7507/langid-mr/internal/store"
)

// Handler holds every collaborator the HTTP surface needs: the job store,
// the synchronous ingress-time decoder/gate pair spec.md §4.4 requires when
// ENFR_STRICT_REJECT is set, the cluster topology watcher and its derived
// scheduler/router/health/aggregator, the metrics registry, the worker pool
// (read-only, for its active-job count) and the filesystem helper for
// uploads.
type Handler struct {
	cfg         *config.Config
	store       store.JobStore
	fileService service.FileService
	metrics     *metrics.Registry
	decoder     decoder.Decoder
	gate        *langgate.Gate
	pool        *queue.Pool

	watcher    *cluster.Watcher
	scheduler  *cluster.Scheduler
	router     *cluster.Router
	health     *cluster.HealthChecker
	aggregator *cluster.Aggregator

	version   string
	startedAt time.Time
}

// NewHandler builds a Handler from its collaborators.
func NewHandler(
	cfg *config.Config,
	st store.JobStore,
	fileService service.FileService,
	reg *metrics.Registry,
	dec decoder.Decoder,
	gate *langgate.Gate,
	pool *queue.Pool,
	watcher *cluster.Watcher,
	scheduler *cluster.Scheduler,
	router *cluster.Router,
	health *cluster.HealthChecker,
	aggregator *cluster.Aggregator,
	version string,
) *Handler {
	return &Handler{
		cfg:         cfg,
		store:       st,
		fileService: fileService,
		metrics:     reg,
		decoder:     dec,
		gate:        gate,
		pool:        pool,
		watcher:     watcher,
		scheduler:   scheduler,
		router:      router,
		health:      health,
		aggregator:  aggregator,
		version:     version,
		startedAt:   time.Now().UTC(),
	}
}

func (h *Handler) selfName() string {
	return h.watcher.Get().SelfName
}
