package cluster

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cisco7507/langid-mr/internal/models"
)

// NodeJobs is one peer's contribution to a /cluster/jobs fan-out.
type NodeJobs struct {
	Node      string        `json:"node"`
	Reachable bool          `json:"reachable"`
	JobCount  int           `json:"job_count"`
	Jobs      []models.Job  `json:"jobs,omitempty"`
}

// ClusterJobsResult is the /cluster/jobs response body.
type ClusterJobsResult struct {
	Jobs  []models.Job `json:"jobs"`
	Nodes []NodeJobs   `json:"nodes"`
}

// Aggregator fans requests out to every peer and merges the results,
// grounded on spec.md §4.5's cluster job/metrics aggregation and the
// get_metrics_summary helper in metrics/prometheus.py.
type Aggregator struct {
	watcher *Watcher
	health  *HealthChecker
	client  *http.Client
}

// NewAggregator builds an Aggregator bound to watcher's live config.
func NewAggregator(watcher *Watcher, health *HealthChecker) *Aggregator {
	return &Aggregator{watcher: watcher, health: health, client: &http.Client{}}
}

// AggregateJobs fans GET /admin/jobs out to every peer concurrently, merges
// the results, sorts by created_at descending, and applies limit. Self's
// jobs are supplied directly by the caller (the /cluster/jobs handler) rather
// than proxied to itself.
func (a *Aggregator) AggregateJobs(ctx context.Context, selfJobs []models.Job, limit int) ClusterJobsResult {
	cfg := a.watcher.Get()
	timeout := time.Duration(cfg.InternalRequestTimeoutSeconds) * time.Second

	names := cfg.SortedNodeNames()
	perNode := make([]NodeJobs, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			if name == cfg.SelfName {
				perNode[i] = NodeJobs{Node: name, Reachable: true, JobCount: len(selfJobs), Jobs: selfJobs}
				return nil
			}
			jobs, ok := a.fetchPeerJobs(gctx, cfg.NodeURL(name), timeout)
			if !ok {
				perNode[i] = NodeJobs{Node: name, Reachable: false, JobCount: 0}
				return nil
			}
			perNode[i] = NodeJobs{Node: name, Reachable: true, JobCount: len(jobs), Jobs: jobs}
			return nil
		})
	}
	_ = g.Wait()

	var merged []models.Job
	for _, n := range perNode {
		merged = append(merged, n.Jobs...)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}

	return ClusterJobsResult{Jobs: merged, Nodes: perNode}
}

func (a *Aggregator) fetchPeerJobs(ctx context.Context, baseURL string, timeout time.Duration) ([]models.Job, bool) {
	if baseURL == "" {
		return nil, false
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, baseURL+"/admin/jobs", nil)
	if err != nil {
		return nil, false
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, false
	}

	var jobs []models.Job
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return nil, false
	}
	return jobs, true
}

// LocalMetricsSnapshot is the payload GET /cluster/local-metrics returns for
// one node, the unit the metrics-summary aggregation pulls from every peer.
type LocalMetricsSnapshot struct {
	Node            string                `json:"node"`
	JobsOwnedTotal  int                   `json:"jobs_owned_total"`
	JobsActive      int                   `json:"jobs_active"`
	JobsSubmitted   []SubmissionCount     `json:"jobs_submitted"`
}

// SubmissionCount is one (ingress_node, target_node) -> count entry from the
// langid_jobs_submitted_total counter vector.
type SubmissionCount struct {
	Ingress string `json:"ingress"`
	Target  string `json:"target"`
	Count   int    `json:"count"`
}

// NodeMetricsSummary is one node's row in the /cluster/metrics-summary
// response, mirroring get_metrics_summary's per-node dict exactly.
type NodeMetricsSummary struct {
	Name                  string     `json:"name"`
	Up                    bool       `json:"up"`
	JobsOwnedTotal        int        `json:"jobs_owned_total"`
	JobsActive            int        `json:"jobs_active"`
	JobsSubmittedAsTarget int        `json:"jobs_submitted_as_target"`
	LastHealthTS          *time.Time `json:"last_health_ts"`
}

// MetricsSummary is the /cluster/metrics-summary response body.
type MetricsSummary struct {
	Nodes []NodeMetricsSummary `json:"nodes"`
}

// AggregateMetrics pulls every peer's local-metrics snapshot (substituting
// selfSnapshot for the current node instead of proxying to itself), sums
// submission counters cluster-wide, and uses the health checker's current
// view for up/down per node.
func (a *Aggregator) AggregateMetrics(ctx context.Context, selfSnapshot LocalMetricsSnapshot) MetricsSummary {
	cfg := a.watcher.Get()
	timeout := time.Duration(cfg.InternalRequestTimeoutSeconds) * time.Second
	names := cfg.SortedNodeNames()

	snapshots := make([]LocalMetricsSnapshot, len(names))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			if name == cfg.SelfName {
				mu.Lock()
				snapshots[i] = selfSnapshot
				mu.Unlock()
				return nil
			}
			snap, ok := a.fetchPeerMetrics(gctx, cfg.NodeURL(name), timeout)
			if ok {
				mu.Lock()
				snapshots[i] = snap
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	submittedAsTarget := map[string]int{}
	for _, snap := range snapshots {
		for _, sc := range snap.JobsSubmitted {
			submittedAsTarget[sc.Target] += sc.Count
		}
	}

	byName := map[string]LocalMetricsSnapshot{}
	for _, snap := range snapshots {
		if snap.Node != "" {
			byName[snap.Node] = snap
		}
	}

	health := a.health.Snapshot()

	result := MetricsSummary{}
	for _, name := range names {
		snap := byName[name]
		h := health[name]
		result.Nodes = append(result.Nodes, NodeMetricsSummary{
			Name:                  name,
			Up:                    h.Status == "up",
			JobsOwnedTotal:        snap.JobsOwnedTotal,
			JobsActive:            snap.JobsActive,
			JobsSubmittedAsTarget: submittedAsTarget[name],
			LastHealthTS:          h.LastSeen,
		})
	}
	return result
}

func (a *Aggregator) fetchPeerMetrics(ctx context.Context, baseURL string, timeout time.Duration) (LocalMetricsSnapshot, bool) {
	if baseURL == "" {
		return LocalMetricsSnapshot{}, false
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, baseURL+"/cluster/local-metrics", nil)
	if err != nil {
		return LocalMetricsSnapshot{}, false
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return LocalMetricsSnapshot{}, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return LocalMetricsSnapshot{}, false
	}

	var snap LocalMetricsSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return LocalMetricsSnapshot{}, false
	}
	return snap, true
}
