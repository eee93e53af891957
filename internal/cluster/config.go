// Package cluster implements the cluster-aware ingress, round-robin
// scheduling, owner routing and health/aggregation behavior from
// spec.md §4.4/§4.5, grounded on the original service's cluster/config.py,
// cluster/scheduler.py, cluster/router.py and cluster/health.py.
package cluster

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/cisco7507/langid-mr/pkg/logger"
)

// Config is the cluster topology, loaded from the JSON file named by
// spec.md §6: self_name, nodes, health_check_interval_seconds,
// internal_request_timeout_seconds, enable_round_robin, rr_state_file.
type Config struct {
	SelfName                      string            `json:"self_name"`
	Nodes                         map[string]string `json:"nodes"`
	HealthCheckIntervalSeconds    int               `json:"health_check_interval_seconds"`
	InternalRequestTimeoutSeconds int               `json:"internal_request_timeout_seconds"`
	EnableRoundRobin              bool              `json:"enable_round_robin"`
	RRStateFile                   string            `json:"rr_state_file"`
}

// standaloneConfig is used when no cluster config file is set, so a single
// node can still start up and serve traffic, matching the original's
// dev-mode fallback.
func standaloneConfig() *Config {
	return &Config{
		SelfName:                      "standalone",
		Nodes:                         map[string]string{"standalone": "http://localhost:8080"},
		HealthCheckIntervalSeconds:    5,
		InternalRequestTimeoutSeconds: 5,
		EnableRoundRobin:              false,
	}
}

func loadFile(path string) (*Config, error) {
	if path == "" {
		return standaloneConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("cluster config file not found, starting standalone", "path", path)
			return standaloneConfig(), nil
		}
		return nil, fmt.Errorf("reading cluster config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing cluster config: %w", err)
	}
	if cfg.HealthCheckIntervalSeconds <= 0 {
		cfg.HealthCheckIntervalSeconds = 5
	}
	if cfg.InternalRequestTimeoutSeconds <= 0 {
		cfg.InternalRequestTimeoutSeconds = 5
	}
	if _, ok := cfg.Nodes[cfg.SelfName]; !ok {
		return nil, fmt.Errorf("self_name %q not found in nodes %v", cfg.SelfName, nodeNames(cfg.Nodes))
	}
	return &cfg, nil
}

func nodeNames(nodes map[string]string) []string {
	names := make([]string, 0, len(nodes))
	for n := range nodes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NodeURL returns the base URL configured for name, or "" if unknown.
func (c *Config) NodeURL(name string) string {
	return c.Nodes[name]
}

// SortedNodeNames returns every configured node name in sorted order, the
// iteration order the round-robin scheduler and health loop both rely on.
func (c *Config) SortedNodeNames() []string {
	return nodeNames(c.Nodes)
}

// Watcher holds the live Config and hot-reloads it from disk with fsnotify,
// watching a single config file instead of a directory tree.
type Watcher struct {
	path string

	mu  sync.RWMutex
	cfg *Config

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher loads path once (or falls back to standalone mode if path is
// empty or missing) and prepares to hot-reload on write.
func NewWatcher(path string) (*Watcher, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	return &Watcher{path: path, cfg: cfg, done: make(chan struct{})}, nil
}

// Get returns the current configuration snapshot.
func (w *Watcher) Get() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}

// Start begins watching the config file for changes, if one was configured.
// It is a no-op in standalone mode.
func (w *Watcher) Start() error {
	if w.path == "" {
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating cluster config watcher: %w", err)
	}
	if err := fw.Add(w.path); err != nil {
		fw.Close()
		return fmt.Errorf("watching cluster config file: %w", err)
	}
	w.watcher = fw

	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := loadFile(w.path)
			if err != nil {
				logger.Error("cluster config reload failed, keeping previous config", "error", err)
				continue
			}
			w.mu.Lock()
			w.cfg = cfg
			w.mu.Unlock()
			logger.Info("cluster config reloaded", "path", w.path)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("cluster config watcher error", "error", err)
		}
	}
}

// Stop tears down the file watcher.
func (w *Watcher) Stop() {
	if w.watcher == nil {
		return
	}
	close(w.done)
	w.watcher.Close()
}
