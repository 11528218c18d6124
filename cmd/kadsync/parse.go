package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/astrelkov/kadsync/internal/chronology"
	"github.com/astrelkov/kadsync/internal/config"
	"github.com/astrelkov/kadsync/internal/crm"
	"github.com/astrelkov/kadsync/internal/db"
	"github.com/astrelkov/kadsync/internal/dispatch"
	"github.com/astrelkov/kadsync/internal/kad"
	"github.com/astrelkov/kadsync/internal/observability"
	"github.com/astrelkov/kadsync/internal/runner"
	"github.com/astrelkov/kadsync/internal/store"
)

func parseCmd() *cobra.Command {
	var (
		batchSize  int
		pause      time.Duration
		startIndex int
		resume     bool
	)

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Scrape tracked cases and deliver changes to the CRM",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(
				observability.WithCommand(cmd.Context(), "parse"),
				syscall.SIGINT, syscall.SIGTERM,
			)
			defer stop()
			log := slog.Default()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if batchSize <= 0 {
				batchSize = cfg.Batch.Size
			}
			if !cmd.Flags().Changed("pause") {
				pause = cfg.Batch.Pause
			}

			database, err := db.New(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer database.Close()
			st := store.New(database.Querier())

			scraper := kad.NewClient(cfg.Scraper.Timeout, cfg.Scraper.Retries, log)
			defer scraper.Close()

			client := crm.NewClient(cfg.CRM.APIKey, cfg.CRM.Company)
			scheduler := crm.NewScheduler(client, cfg.CRM.EventCalendarID, log)
			comments := crm.CommentBuilder{UserID: cfg.CRM.UserID, UserName: cfg.CRM.UserName}
			dispatcher := dispatch.New(st, client, scheduler, comments, log)

			checkpoint := runner.NewCheckpointFile(cfg.Database.Path + ".checkpoint.json")
			run := runner.New(st, scraper, chronology.NewEngine(st), dispatcher, checkpoint, log)

			summary, err := run.Run(ctx, runner.Options{
				BatchSize:  batchSize,
				Pause:      pause,
				StartIndex: startIndex,
				Resume:     resume,
			})
			if errors.Is(err, context.Canceled) {
				log.WarnContext(ctx, "run interrupted, checkpoint kept",
					slog.Int("processed", summary.Processed))
				return nil
			}
			if err != nil {
				return err
			}

			logQueryTimings(ctx, cfg, database, log)
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "cases per batch (default from KADSYNC_BATCH_SIZE)")
	cmd.Flags().DurationVar(&pause, "pause", 0, "rest between batches (default from KADSYNC_BATCH_PAUSE_SECONDS)")
	cmd.Flags().IntVar(&startIndex, "start-index", 0, "skip cases before this position in the roster")
	cmd.Flags().BoolVar(&resume, "resume", false, "continue from the stored checkpoint")
	return cmd
}
