package cluster

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/cisco7507/langid-mr/pkg/logger"
)

// rrState is the on-disk shape of the round-robin index, per spec.md §6's
// optional rr_state_file.
type rrState struct {
	Index int `json:"index"`
}

// Scheduler is the process-global, mutex-protected round-robin counter from
// spec.md §4.4, ported from cluster/scheduler.py's RoundRobinScheduler.
// Unlike the Python original it loads its persisted index eagerly at
// construction instead of lazily on first use, since Go has no equivalent
// async-lock-protected lazy-init idiom worth reproducing.
type Scheduler struct {
	mu      sync.Mutex
	index   int
	watcher *Watcher
}

// NewScheduler builds a scheduler bound to watcher's live config, restoring
// any persisted index from the configured state file.
func NewScheduler(watcher *Watcher) *Scheduler {
	s := &Scheduler{watcher: watcher}
	s.loadState()
	return s
}

func (s *Scheduler) loadState() {
	cfg := s.watcher.Get()
	if cfg.RRStateFile == "" {
		return
	}
	data, err := os.ReadFile(cfg.RRStateFile)
	if err != nil {
		return
	}
	var st rrState
	if err := json.Unmarshal(data, &st); err != nil {
		return
	}
	s.index = st.Index
}

func (s *Scheduler) saveState() {
	cfg := s.watcher.Get()
	if cfg.RRStateFile == "" {
		return
	}
	data, err := json.Marshal(rrState{Index: s.index})
	if err != nil {
		return
	}
	if err := os.WriteFile(cfg.RRStateFile, data, 0o644); err != nil {
		logger.Warn("failed to persist round-robin state", "error", err)
	}
}

// NextTarget returns the node name to own the next submitted job, advancing
// and persisting the index. When round-robin is disabled it always returns
// self.
func (s *Scheduler) NextTarget() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.watcher.Get()
	if !cfg.EnableRoundRobin {
		return cfg.SelfName
	}

	nodes := cfg.SortedNodeNames()
	if len(nodes) == 0 {
		return cfg.SelfName
	}

	target := nodes[s.index%len(nodes)]
	s.index = (s.index + 1) % len(nodes)
	s.saveState()
	return target
}
