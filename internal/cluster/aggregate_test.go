package cluster

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cisco7507/langid-mr/internal/metrics"
	"github.com/cisco7507/langid-mr/internal/models"
)

func TestAggregator_AggregateJobs_MergesAndSortsByCreatedAt(t *testing.T) {
	older := time.Now().UTC().Add(-time.Hour)
	newer := time.Now().UTC()

	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]models.Job{{ID: "n2-a", CreatedAt: newer}})
	}))
	defer peer.Close()

	watcher := watcherWithNodes(t, "n1", map[string]string{"n1": "http://local", "n2": peer.URL})
	agg := NewAggregator(watcher, NewHealthChecker(watcher, metrics.New()))

	selfJobs := []models.Job{{ID: "n1-a", CreatedAt: older}}
	result := agg.AggregateJobs(context.Background(), selfJobs, 0)

	require.Len(t, result.Jobs, 2)
	require.Equal(t, "n2-a", result.Jobs[0].ID)
	require.Equal(t, "n1-a", result.Jobs[1].ID)
	require.Len(t, result.Nodes, 2)
}

func TestAggregator_AggregateJobs_UnreachablePeerReportedButExcluded(t *testing.T) {
	watcher := watcherWithNodes(t, "n1", map[string]string{"n1": "http://local", "n2": "http://127.0.0.1:1"})
	agg := NewAggregator(watcher, NewHealthChecker(watcher, metrics.New()))

	result := agg.AggregateJobs(context.Background(), nil, 0)

	require.Len(t, result.Jobs, 0)
	var n2 NodeJobs
	for _, n := range result.Nodes {
		if n.Node == "n2" {
			n2 = n
		}
	}
	require.False(t, n2.Reachable)
}

func TestAggregator_AggregateJobs_AppliesLimit(t *testing.T) {
	watcher := watcherWithNodes(t, "n1", map[string]string{"n1": "http://local"})
	agg := NewAggregator(watcher, NewHealthChecker(watcher, metrics.New()))

	selfJobs := []models.Job{
		{ID: "a", CreatedAt: time.Now().UTC()},
		{ID: "b", CreatedAt: time.Now().UTC().Add(-time.Minute)},
	}
	result := agg.AggregateJobs(context.Background(), selfJobs, 1)
	require.Len(t, result.Jobs, 1)
}

func TestAggregator_AggregateMetrics_SumsSubmissionsAndUsesHealthSnapshot(t *testing.T) {
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(LocalMetricsSnapshot{
			Node:           "n2",
			JobsOwnedTotal: 4,
			JobsActive:     1,
			JobsSubmitted:  []SubmissionCount{{Ingress: "n2", Target: "n1", Count: 3}},
		})
	}))
	defer peer.Close()

	watcher := watcherWithNodes(t, "n1", map[string]string{"n1": "http://local", "n2": peer.URL})
	hc := NewHealthChecker(watcher, metrics.New())
	hc.checkAll(context.Background())
	agg := NewAggregator(watcher, hc)

	self := LocalMetricsSnapshot{Node: "n1", JobsOwnedTotal: 2, JobsActive: 0}
	summary := agg.AggregateMetrics(context.Background(), self)

	require.Len(t, summary.Nodes, 2)
	byName := map[string]NodeMetricsSummary{}
	for _, n := range summary.Nodes {
		byName[n.Name] = n
	}
	require.Equal(t, 3, byName["n1"].JobsSubmittedAsTarget)
	require.True(t, byName["n2"].Up)
	require.Equal(t, 4, byName["n2"].JobsOwnedTotal)
}
