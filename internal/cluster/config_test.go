package cluster

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeClusterConfig(t *testing.T, path string, cfg Config) {
	t.Helper()
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestNewWatcher_EmptyPathFallsBackToStandalone(t *testing.T) {
	w, err := NewWatcher("")
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	cfg := w.Get()
	require.Equal(t, "standalone", cfg.SelfName)
	require.Equal(t, 5, cfg.HealthCheckIntervalSeconds)
}

func TestNewWatcher_MissingFileFallsBackToStandalone(t *testing.T) {
	w, err := NewWatcher(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	require.Equal(t, "standalone", w.Get().SelfName)
}

func TestNewWatcher_LoadsFileAndRejectsUnknownSelfName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cluster.json")
	writeClusterConfig(t, path, Config{
		SelfName: "n1",
		Nodes:    map[string]string{"n1": "http://n1:8080", "n2": "http://n2:8080"},
	})

	w, err := NewWatcher(path)
	require.NoError(t, err)
	cfg := w.Get()
	require.Equal(t, "n1", cfg.SelfName)
	require.ElementsMatch(t, []string{"n1", "n2"}, cfg.SortedNodeNames())
	require.Equal(t, "http://n2:8080", cfg.NodeURL("n2"))

	writeClusterConfig(t, path, Config{SelfName: "ghost", Nodes: map[string]string{"n1": "http://n1:8080"}})
	_, err = NewWatcher(path)
	require.Error(t, err)
}

func TestWatcher_HotReloadsOnFileWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cluster.json")
	writeClusterConfig(t, path, Config{
		SelfName: "n1",
		Nodes:    map[string]string{"n1": "http://n1:8080"},
	})

	w, err := NewWatcher(path)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	writeClusterConfig(t, path, Config{
		SelfName: "n1",
		Nodes:    map[string]string{"n1": "http://n1:8080", "n2": "http://n2:8080"},
	})

	require.Eventually(t, func() bool {
		return len(w.Get().Nodes) == 2
	}, 2*time.Second, 20*time.Millisecond)
}
