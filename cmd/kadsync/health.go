package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/astrelkov/kadsync/internal/config"
	"github.com/astrelkov/kadsync/internal/crm"
	"github.com/astrelkov/kadsync/internal/db"
	"github.com/astrelkov/kadsync/internal/observability"
)

func healthCmd() *cobra.Command {
	var skipCRM bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check configuration, database and CRM connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := observability.WithCommand(cmd.Context(), "health")
			log := slog.Default()
			failed := false

			cfg, err := config.Load()
			if err != nil {
				if skipCRM {
					cfg, err = config.LoadForTool()
				}
				if err != nil {
					return fmt.Errorf("config: %w", err)
				}
				log.WarnContext(ctx, "CRM credentials missing, checked without them")
			} else {
				log.InfoContext(ctx, "config ok",
					slog.String("company", cfg.CRM.Company),
					slog.String("db_path", cfg.Database.Path))
			}

			database, err := db.New(cfg.Database.Path)
			if err != nil {
				log.ErrorContext(ctx, "database open failed", slog.Any("error", err))
				failed = true
			} else {
				defer database.Close()
				if err := database.Ping(ctx); err != nil {
					log.ErrorContext(ctx, "database ping failed", slog.Any("error", err))
					failed = true
				} else {
					log.InfoContext(ctx, "database ok")
				}
			}

			if !skipCRM {
				client := crm.NewClient(cfg.CRM.APIKey, cfg.CRM.Company)
				projects, err := client.ListProjects(ctx)
				if err != nil {
					log.ErrorContext(ctx, "CRM projects check failed", slog.Any("error", err))
					failed = true
				} else {
					log.InfoContext(ctx, "CRM projects ok", slog.Int("count", len(projects)))
				}

				calendars, err := client.ListCalendars(ctx)
				if err != nil {
					log.ErrorContext(ctx, "CRM calendars check failed", slog.Any("error", err))
					failed = true
				} else {
					log.InfoContext(ctx, "CRM calendars ok", slog.Int("count", len(calendars)))
				}
			}

			if failed {
				return fmt.Errorf("health check failed")
			}
			log.InfoContext(ctx, "all checks passed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipCRM, "skip-crm", false, "skip CRM connectivity checks")
	return cmd
}
