package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/rsibot/internal/adapters/notify"
	"github.com/alejandrodnm/rsibot/internal/adapters/storage"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print statistics from the saved state and the journal",
	RunE:  runReport,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Back up the state file and start from a clean one",
	Long: `Reset copies the state file to <backup_dir>/state-<timestamp>.json and
writes an empty snapshot in its place. The journal is left untouched.`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(reportCmd, resetCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	snap, ok, err := storage.NewFileStore(cfg.Storage.StatePath).Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if !ok {
		slog.Warn("no saved state yet", "path", cfg.Storage.StatePath)
	}

	report := notify.Report{Title: "STRATEGY REPORT", Snapshot: snap}
	journal, err := storage.NewJournal(cfg.Storage.JournalDSN)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer journal.Close()
	if totals, err := journal.Totals(ctx); err != nil {
		slog.Warn("journal totals unavailable", "err", err)
	} else {
		report.Journal = &totals
	}

	notify.NewConsole().PrintReport(report)
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	store := storage.NewFileStore(cfg.Storage.StatePath)
	backup, err := store.Reset(cmd.Context(), cfg.Storage.BackupDir, time.Now())
	if err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	if backup == "" {
		slog.Info("no previous state, wrote a fresh one", "path", store.Path())
		return nil
	}
	slog.Info("state reset", "path", store.Path(), "backup", backup)
	return nil
}
