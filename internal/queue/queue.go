// Package queue implements the worker pool from spec.md §4.2: a fixed
// number of goroutines each looping claim_next -> run pipeline -> repeat,
// sleeping briefly when the store has nothing queued. A Pool struct owns a
// context/cancel pair, a WaitGroup, and a start/stop lifecycle, driving a
// polling claim instead of a channel push.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/cisco7507/langid-mr/internal/metrics"
	"github.com/cisco7507/langid-mr/internal/models"
	"github.com/cisco7507/langid-mr/pkg/logger"
)

const claimPollInterval = 50 * time.Millisecond

// JobProcessor runs the full per-job pipeline for a claimed job id.
type JobProcessor interface {
	ProcessJob(ctx context.Context, jobID string) error
}

// Claimer is the subset of store.JobStore the pool needs to pull work. A
// nil job with a nil error means nothing was queued.
type Claimer interface {
	ClaimNext(ctx context.Context) (*models.Job, error)
}

// Pool runs MaxWorkers goroutines against a JobProcessor.
type Pool struct {
	maxWorkers int
	processor  JobProcessor
	claimer    Claimer
	metrics    *metrics.Registry
	selfNode   string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	activeMu sync.Mutex
	active   int
}

// NewPool builds a worker pool with the given worker count. reg/selfNode may
// be nil/empty in tests that don't care about the langid_jobs_active gauge.
func NewPool(maxWorkers int, claimer Claimer, processor JobProcessor, reg *metrics.Registry, selfNode string) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		maxWorkers: maxWorkers,
		processor:  processor,
		claimer:    claimer,
		metrics:    reg,
		selfNode:   selfNode,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the configured number of worker goroutines.
func (p *Pool) Start() {
	logger.Info("starting worker pool", "workers", p.maxWorkers)
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop signals every worker to exit after its current job and waits for
// them to drain.
func (p *Pool) Stop() {
	logger.Info("stopping worker pool")
	p.cancel()
	p.wg.Wait()
	logger.Info("worker pool stopped")
}

// ActiveWorkers reports how many workers are mid-pipeline right now.
func (p *Pool) ActiveWorkers() int {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	return p.active
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	logger.WorkerOperation(id, "", "started")

	for {
		select {
		case <-p.ctx.Done():
			logger.WorkerOperation(id, "", "stopped")
			return
		default:
		}

		job, err := p.claimer.ClaimNext(p.ctx)
		if err != nil {
			logger.Error("claim_next failed", "worker_id", id, "error", err)
			sleepOrStop(p.ctx, claimPollInterval)
			continue
		}
		if job == nil {
			sleepOrStop(p.ctx, claimPollInterval)
			continue
		}

		p.runJob(id, job.ID)
	}
}

func (p *Pool) runJob(workerID int, jobID string) {
	p.activeMu.Lock()
	p.active++
	active := p.active
	p.activeMu.Unlock()
	p.setActiveGauge(active)
	defer func() {
		p.activeMu.Lock()
		p.active--
		active := p.active
		p.activeMu.Unlock()
		p.setActiveGauge(active)
	}()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker panic recovered", "worker_id", workerID, "job_id", jobID, "panic", r)
		}
	}()

	logger.JobClaimed(jobID, workerID, 0)
	if err := p.processor.ProcessJob(p.ctx, jobID); err != nil {
		logger.Error("job processing returned error", "worker_id", workerID, "job_id", jobID, "error", err)
	}
}

func (p *Pool) setActiveGauge(active int) {
	if p.metrics == nil || p.selfNode == "" {
		return
	}
	p.metrics.JobsActive.WithLabelValues(p.selfNode).Set(float64(active))
}

func sleepOrStop(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
