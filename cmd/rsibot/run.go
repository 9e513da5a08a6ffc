package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/rsibot/internal/adapters/metrics"
	"github.com/alejandrodnm/rsibot/internal/adapters/notify"
	"github.com/alejandrodnm/rsibot/internal/adapters/storage"
	"github.com/alejandrodnm/rsibot/internal/application/engine"
	"github.com/alejandrodnm/rsibot/internal/ports"
	"github.com/spf13/cobra"
)

var runPaper bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading loop until interrupted",
	Long: `Run connects to the venue, restores the saved state and trades continuously.

SIGINT or SIGTERM stops the loop, saves the state and prints a summary.
With --paper every order goes to a simulated account.`,
	RunE: runTrading,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runPaper, "paper", false, "trade against the simulated venue")
}

func runTrading(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(runPaper); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mode := "live"
	if runPaper {
		mode = "paper"
	}
	slog.Info("rsibot starting",
		"config", configPath,
		"mode", mode,
		"account", cfg.Venue.AccountType,
		"assets", len(cfg.Strategy.Assets),
		"cycle", cfg.Cycle(),
	)

	journal, err := storage.NewJournal(cfg.Storage.JournalDSN)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer journal.Close()

	store := storage.NewFileStore(cfg.Storage.StatePath)
	v := buildVenue(ctx, runPaper)
	defer v.Close(poolCloseWait)

	m := metrics.New(mode)
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr); err != nil {
				slog.Warn("metrics server stopped", "err", err)
			}
		}()
	}

	var alerter ports.Alerter
	if d := notify.NewDiscord(cfg.Alerts.DiscordWebhook, cfg.Alerts.Source); d.Enabled() {
		alerter = d
	}

	e := engine.New(engineConfig(), engine.Deps{
		Venue:    v,
		Resolver: buildResolver(v),
		Store:    store,
		Journal:  journal,
		Alerter:  alerter,
		Observer: m,
	})
	if err := e.Restore(ctx); err != nil {
		return err
	}

	if err := e.Run(ctx); err != nil {
		slog.Error("engine exited with error", "err", err)
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Warn("failed to save state on shutdown", "err", err)
	}

	capital, known := e.Capital()
	report := notify.Report{
		Title:        "SHUTDOWN SUMMARY",
		Capital:      capital,
		CapitalKnown: known,
		Snapshot:     e.Snapshot(),
	}
	if totals, err := journal.Totals(shutdownCtx); err == nil {
		report.Journal = &totals
	}
	notify.NewConsole().PrintReport(report)

	slog.Info("rsibot stopped cleanly")
	return nil
}
