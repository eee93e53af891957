package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cisco7507/langid-mr/internal/metrics"
	"github.com/cisco7507/langid-mr/internal/models"
)

// fakeClaimer hands out a fixed set of job ids once each, then reports
// nothing queued.
type fakeClaimer struct {
	mu   sync.Mutex
	ids  []string
	next int
}

func (c *fakeClaimer) ClaimNext(_ context.Context) (*models.Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.next >= len(c.ids) {
		return nil, nil
	}
	id := c.ids[c.next]
	c.next++
	return &models.Job{ID: id}, nil
}

// blockingProcessor holds every job open until release is closed, so tests
// can observe the active-worker count mid-flight.
type blockingProcessor struct {
	started chan string
	release chan struct{}
}

func (p *blockingProcessor) ProcessJob(_ context.Context, jobID string) error {
	p.started <- jobID
	<-p.release
	return nil
}

func TestPool_ActiveWorkersReflectsInFlightJobs(t *testing.T) {
	claimer := &fakeClaimer{ids: []string{"n1-a", "n1-b"}}
	proc := &blockingProcessor{started: make(chan string, 2), release: make(chan struct{})}
	reg := metrics.New()

	pool := NewPool(2, claimer, proc, reg, "n1")
	pool.Start()
	defer pool.Stop()

	<-proc.started
	<-proc.started

	require.Eventually(t, func() bool {
		return pool.ActiveWorkers() == 2
	}, time.Second, 5*time.Millisecond)

	values := reg.Values("langid_jobs_active")
	require.Len(t, values, 1)
	require.Equal(t, "n1", values[0].Labels["owner_node"])
	require.Equal(t, float64(2), values[0].Value)

	close(proc.release)

	require.Eventually(t, func() bool {
		return pool.ActiveWorkers() == 0
	}, time.Second, 5*time.Millisecond)
}

type panicProcessor struct{ processed chan string }

func (p *panicProcessor) ProcessJob(_ context.Context, jobID string) error {
	p.processed <- jobID
	panic("boom")
}

func TestPool_RecoversPanicAndKeepsPolling(t *testing.T) {
	claimer := &fakeClaimer{ids: []string{"n1-a", "n1-b"}}
	proc := &panicProcessor{processed: make(chan string, 2)}

	pool := NewPool(1, claimer, proc, nil, "")
	pool.Start()
	defer pool.Stop()

	first := <-proc.processed
	second := <-proc.processed
	require.Equal(t, "n1-a", first)
	require.Equal(t, "n1-b", second)
}
