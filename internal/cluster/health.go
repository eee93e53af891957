package cluster

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cisco7507/langid-mr/internal/metrics"
	"github.com/cisco7507/langid-mr/internal/models"
)

// HealthChecker runs the periodic peer polling loop from spec.md §4.5: a
// single background task that GETs every peer's /health on an interval and
// keeps an in-memory NodeHealth view, ported from cluster/health.py's
// check_cluster_health.
type HealthChecker struct {
	watcher *Watcher
	metrics *metrics.Registry
	client  *http.Client

	mu    sync.RWMutex
	state map[string]models.NodeHealth
}

// NewHealthChecker builds a checker bound to watcher's live config.
func NewHealthChecker(watcher *Watcher, reg *metrics.Registry) *HealthChecker {
	return &HealthChecker{
		watcher: watcher,
		metrics: reg,
		client:  &http.Client{},
		state:   map[string]models.NodeHealth{},
	}
}

// Snapshot returns the current per-node health view, sorted by node name by
// the caller if ordering matters.
func (h *HealthChecker) Snapshot() map[string]models.NodeHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]models.NodeHealth, len(h.state))
	for k, v := range h.state {
		out[k] = v
	}
	return out
}

// Run loops until ctx is cancelled, polling every peer at the configured
// interval.
func (h *HealthChecker) Run(ctx context.Context) {
	for {
		cfg := h.watcher.Get()
		interval := time.Duration(cfg.HealthCheckIntervalSeconds) * time.Second
		if interval <= 0 {
			interval = 5 * time.Second
		}

		h.checkAll(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func (h *HealthChecker) checkAll(ctx context.Context) {
	cfg := h.watcher.Get()
	timeout := time.Duration(cfg.InternalRequestTimeoutSeconds) * time.Second

	g, gctx := errgroup.WithContext(ctx)
	for name, baseURL := range cfg.Nodes {
		name, baseURL := name, baseURL
		g.Go(func() error {
			h.checkOne(gctx, name, baseURL, timeout)
			return nil
		})
	}
	_ = g.Wait()
}

func (h *HealthChecker) checkOne(ctx context.Context, name, baseURL string, timeout time.Duration) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	up := false
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, baseURL+"/health", nil)
	if err == nil {
		resp, doErr := h.client.Do(req)
		if doErr == nil {
			up = resp.StatusCode == http.StatusOK
			resp.Body.Close()
		}
	}

	h.mu.Lock()
	prev := h.state[name]
	now := time.Now().UTC()
	if up {
		h.state[name] = models.NodeHealth{Status: "up", LastSeen: &now}
		h.metrics.NodeUp.WithLabelValues(name).Set(1)
		h.metrics.NodeLastHealth.WithLabelValues(name).Set(float64(now.Unix()))
	} else {
		h.state[name] = models.NodeHealth{Status: "down", LastSeen: prev.LastSeen}
		h.metrics.NodeUp.WithLabelValues(name).Set(0)
	}
	h.mu.Unlock()
}
