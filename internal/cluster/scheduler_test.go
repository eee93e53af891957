package cluster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T, cfg *Config) *Watcher {
	t.Helper()
	return &Watcher{cfg: cfg}
}

func TestScheduler_RoundRobinSequence(t *testing.T) {
	cfg := &Config{
		SelfName: "node-a",
		Nodes: map[string]string{
			"node-a": "http://node-a:8080",
			"node-b": "http://node-b:8080",
			"node-c": "http://node-c:8080",
		},
		EnableRoundRobin: true,
	}
	s := NewScheduler(newTestWatcher(t, cfg))

	require.Equal(t, "node-a", s.NextTarget())
	require.Equal(t, "node-b", s.NextTarget())
	require.Equal(t, "node-c", s.NextTarget())
	require.Equal(t, "node-a", s.NextTarget())
}

func TestScheduler_DisabledReturnsSelf(t *testing.T) {
	cfg := &Config{
		SelfName:         "node-a",
		Nodes:            map[string]string{"node-a": "x", "node-b": "y"},
		EnableRoundRobin: false,
	}
	s := NewScheduler(newTestWatcher(t, cfg))

	require.Equal(t, "node-a", s.NextTarget())
	require.Equal(t, "node-a", s.NextTarget())
}

func TestScheduler_PersistsAndReloadsIndex(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "rr_state.json")

	cfg := &Config{
		SelfName:         "node-a",
		Nodes:            map[string]string{"node-a": "x", "node-b": "y"},
		EnableRoundRobin: true,
		RRStateFile:      statePath,
	}
	s := NewScheduler(newTestWatcher(t, cfg))
	require.Equal(t, "node-a", s.NextTarget())

	_, err := os.Stat(statePath)
	require.NoError(t, err)

	// A freshly constructed scheduler reading the same state file should
	// resume from where the first left off.
	s2 := NewScheduler(newTestWatcher(t, cfg))
	require.Equal(t, "node-b", s2.NextTarget())
}
