// Command kadsync mirrors arbitration-court case activity from the public
// kad.arbitr.ru registry into Aspro.Cloud CRM projects.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/astrelkov/kadsync/internal/observability"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:          "kadsync",
		Short:        "Sync arbitration case chronology from kad.arbitr.ru into Aspro.Cloud",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(); err != nil {
				fmt.Fprintln(os.Stderr, "no .env file loaded:", err)
			}
			setupLogging(logLevel)
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level: debug, info, warn or error (default from KADSYNC_LOG_LEVEL)")

	cmd.AddCommand(syncCmd(), parseCmd(), healthCmd())
	return cmd
}

func setupLogging(level string) {
	if level == "" {
		level = os.Getenv("KADSYNC_LOG_LEVEL")
	}

	var leveler slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		leveler = slog.LevelDebug
	case "warn":
		leveler = slog.LevelWarn
	case "error":
		leveler = slog.LevelError
	default:
		leveler = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: leveler})
	slog.SetDefault(slog.New(observability.WrapSlogHandler(handler)))
}
