package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cisco7507/langid-mr/internal/api"
	_ "github.com/cisco7507/langid-mr/api-docs"
	"github.com/cisco7507/langid-mr/internal/asr"
	"github.com/cisco7507/langid-mr/internal/cluster"
	"github.com/cisco7507/langid-mr/internal/config"
	"github.com/cisco7507/langid-mr/internal/database"
	"github.com/cisco7507/langid-mr/internal/decoder"
	"github.com/cisco7507/langid-mr/internal/langgate"
	"github.com/cisco7507/langid-mr/internal/metrics"
	"github.com/cisco7507/langid-mr/internal/pipeline"
	"github.com/cisco7507/langid-mr/internal/queue"
	"github.com/cisco7507/langid-mr/internal/service"
	"github.com/cisco7507/langid-mr/internal/store"
	"github.com/cisco7507/langid-mr/internal/translate"
	"github.com/cisco7507/langid-mr/pkg/logger"
)

// Version is set at build time via -ldflags; defaults to "dev" for local
// builds.
var Version = "dev"

// app bundles every long-lived collaborator the server needs, so both the
// plain `serve` command and the kardianos/service wrapper can start and stop
// the same thing.
type app struct {
	cfg     *config.Config
	store   store.JobStore
	pool    *queue.Pool
	watcher *cluster.Watcher
	health  *cluster.HealthChecker
	server  *http.Server
}

// buildApp wires every SPEC_FULL.md component: store, ASR manager, language
// gate, pipeline, worker pool, cluster topology watcher and its derived
// scheduler/router/health/aggregator, and the HTTP handler/router.
func buildApp(cfg *config.Config) (*app, error) {
	logger.Init(cfg.LogLevel)
	logger.Startup("config", "configuration loaded", "storage", cfg.StorageDir, "store_driver", cfg.StoreDriver)

	var st store.JobStore
	switch cfg.StoreDriver {
	case "postgres":
		pgStore, err := store.NewPostgresStore(cfg.DBURL, cfg.StorageDir)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres store: %w", err)
		}
		st = pgStore
		logger.Startup("store", "connected to postgres store")
	default:
		if err := database.Initialize(cfg.DBURL); err != nil {
			return nil, fmt.Errorf("initializing sqlite database: %w", err)
		}
		st = store.NewSqliteStore(database.DB, cfg.StorageDir)
		logger.Startup("store", "opened sqlite store", "path", cfg.DBURL)
	}

	watcher, err := cluster.NewWatcher(cfg.ClusterConfigFile)
	if err != nil {
		return nil, fmt.Errorf("loading cluster config: %w", err)
	}
	if err := watcher.Start(); err != nil {
		return nil, fmt.Errorf("starting cluster config watcher: %w", err)
	}
	logger.Startup("cluster", "watching topology", "self", watcher.Get().SelfName, "file", cfg.ClusterConfigFile)

	reg := metrics.New()

	engine := asr.NewFakeEngine()
	mgr := asr.NewManager(func() asr.Engine { return engine })
	if _, err := mgr.EnsureRunning(context.Background()); err != nil {
		return nil, fmt.Errorf("starting asr engine: %w", err)
	}

	dec := decoder.NewWavDecoder()

	thresholds := langgate.Thresholds{
		AllowedLangs:       cfg.AllowedLangs,
		LangDetectMinProb:  cfg.LangDetectMinProb,
		EnfrStrictReject:   cfg.EnfrStrictReject,
		MidLower:           cfg.LangMidLower,
		MidUpper:           cfg.LangMidUpper,
		MinStopwordEn:      cfg.LangMinStopwordEn,
		MinStopwordFr:      cfg.LangMinStopwordFr,
		StopwordMargin:     cfg.LangStopwordMargin,
		MinTokensHeuristic: cfg.LangMinTokens,
		MinTokensSpeech:    cfg.LangMinTokensSpeech,
		MinStopwordSpeech:  cfg.LangMinStopwordSpeech,
		ProbeDurationS:     cfg.ProbeDurationS,
	}
	gate := langgate.NewGate(engine, thresholds)

	tr := translate.NewFakeTranslator()

	pl := pipeline.New(st, dec, gate, mgr, tr, reg, cfg.MaxRetries)

	pool := queue.NewPool(cfg.MaxWorkers, st, pl, reg, watcher.Get().SelfName)

	scheduler := cluster.NewScheduler(watcher)
	router := cluster.NewRouter(watcher)
	health := cluster.NewHealthChecker(watcher, reg)
	aggregator := cluster.NewAggregator(watcher, health)

	fileService := service.NewFileService()

	handler := api.NewHandler(cfg, st, fileService, reg, dec, gate, pool, watcher, scheduler, router, health, aggregator, Version)
	engine2 := api.SetupRoutes(handler)

	srv := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: engine2,
	}

	return &app{
		cfg:     cfg,
		store:   st,
		pool:    pool,
		watcher: watcher,
		health:  health,
		server:  srv,
	}, nil
}

// run starts the worker pool, health poller and HTTP listener, then blocks
// until ctx is cancelled, shutting everything down gracefully.
func (a *app) run(ctx context.Context) error {
	a.pool.Start()
	defer a.pool.Stop()

	healthCtx, cancelHealth := context.WithCancel(ctx)
	defer cancelHealth()
	go a.health.Run(healthCtx)

	errCh := make(chan error, 1)
	go func() {
		logger.Startup("http", "listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return a.server.Shutdown(shutdownCtx)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the language-identification server in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		a, err := buildApp(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sig
			cancel()
		}()

		return a.run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
