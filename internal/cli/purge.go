package cli

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/cisco7507/langid-mr/internal/config"
	"github.com/cisco7507/langid-mr/internal/database"
	"github.com/cisco7507/langid-mr/internal/retention"
)

var (
	purgeKeepDays   int
	purgeBatchSize  int
	purgeVacuum     bool
	purgeFiles      bool
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete old succeeded/failed jobs (and, with --purge-files, orphaned or stale stored audio)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if cfg.StoreDriver == "postgres" {
			return fmt.Errorf("purge is only implemented against the sqlite store driver")
		}

		if err := database.Initialize(cfg.DBURL); err != nil {
			return fmt.Errorf("opening database: %w", err)
		}

		opts := retention.DefaultOptions(cfg.StorageDir)
		if cmd.Flags().Changed("keep-days") {
			opts.KeepDays = purgeKeepDays
		}
		if cmd.Flags().Changed("batch-size") {
			opts.BatchSize = purgeBatchSize
		}
		opts.Vacuum = purgeVacuum
		opts.PurgeFiles = purgeFiles

		result, err := retention.Run(database.DB, opts)
		if err != nil {
			return fmt.Errorf("running purge: %w", err)
		}

		log.Printf("purge complete: deleted_jobs=%d scanned_files=%d deleted_files=%d",
			result.DeletedJobs, result.ScannedFiles, result.DeletedFiles)
		return nil
	},
}

func init() {
	purgeCmd.Flags().IntVar(&purgeKeepDays, "keep-days", 30, "delete succeeded/failed jobs older than this many days")
	purgeCmd.Flags().IntVar(&purgeBatchSize, "batch-size", 2000, "number of jobs to delete per batch")
	purgeCmd.Flags().BoolVar(&purgeVacuum, "vacuum", false, "VACUUM the database after purging")
	purgeCmd.Flags().BoolVar(&purgeFiles, "purge-files", false, "also sweep the storage directory for orphaned files")
	rootCmd.AddCommand(purgeCmd)
}
