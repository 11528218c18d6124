package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/astrelkov/kadsync/internal/config"
	"github.com/astrelkov/kadsync/internal/crm"
	"github.com/astrelkov/kadsync/internal/db"
	"github.com/astrelkov/kadsync/internal/observability"
	"github.com/astrelkov/kadsync/internal/roster"
	"github.com/astrelkov/kadsync/internal/store"
)

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the tracked case roster against CRM projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := observability.WithCommand(cmd.Context(), "sync")
			log := slog.Default()

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			database, err := db.New(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer database.Close()

			client := crm.NewClient(cfg.CRM.APIKey, cfg.CRM.Company)
			projects, err := client.ListProjects(ctx)
			if err != nil {
				return err
			}
			log.InfoContext(ctx, "loaded CRM projects", slog.Int("count", len(projects)))

			summary, err := roster.New(store.New(database.Querier()), log).Reconcile(ctx, projects)
			if err != nil {
				return err
			}

			log.InfoContext(ctx, "roster sync complete",
				slog.Int("added", summary.Added),
				slog.Int("updated", summary.Updated),
				slog.Int("reactivated", summary.Reactivated),
				slog.Int("soft_deleted", summary.SoftDeleted),
				slog.Int("conflicts", summary.Conflicts))

			logQueryTimings(ctx, cfg, database, log)
			return nil
		},
	}
}

// logQueryTimings dumps per-query latency percentiles when KADSYNC_DB_TIMING
// is enabled.
func logQueryTimings(ctx context.Context, cfg config.Config, database *db.Database, log *slog.Logger) {
	if !cfg.Database.LogTiming {
		return
	}
	for _, stats := range database.QueryLatencyStats() {
		log.InfoContext(ctx, "query timing",
			slog.String("query", stats.Name),
			slog.Int("count", stats.Count),
			slog.Duration("p50", stats.P50),
			slog.Duration("p95", stats.P95),
			slog.Duration("max", stats.Max))
	}
}
