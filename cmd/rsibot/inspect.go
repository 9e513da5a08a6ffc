package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/rsibot/internal/adapters/notify"
	"github.com/alejandrodnm/rsibot/internal/adapters/storage"
	"github.com/spf13/cobra"
)

var (
	inspectPaper bool
	recentLimit  int
)

var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "List the instruments the venue has open right now",
	RunE:  runAssets,
}

var orderCmd = &cobra.Command{
	Use:   "order <id>",
	Short: "Show what the journal and the venue know about one order",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrder,
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show recent venue positions and the tail of the journal",
	RunE:  runRecent,
}

func init() {
	rootCmd.AddCommand(assetsCmd, orderCmd, recentCmd)
	for _, c := range []*cobra.Command{assetsCmd, orderCmd, recentCmd} {
		c.Flags().BoolVar(&inspectPaper, "paper", false, "query the simulated venue")
	}
	recentCmd.Flags().IntVarP(&recentLimit, "limit", "n", 20, "number of rows")
}

func runAssets(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(inspectPaper); err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	v := buildVenue(ctx, inspectPaper)
	defer v.Close(poolCloseWait)
	if err := v.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	open, err := v.OpenInstruments(ctx)
	if err != nil {
		return fmt.Errorf("open instruments: %w", err)
	}
	console := notify.NewConsole()
	console.PrintInstruments(open)

	bindings, err := buildResolver(v).ResolveAll(ctx, cfg.Strategy.Assets)
	if err != nil {
		return fmt.Errorf("resolve instruments: %w", err)
	}
	console.PrintBindings(cfg.Strategy.Assets, bindings)
	return nil
}

func runOrder(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	id := args[0]
	lookup := notify.OrderLookup{ID: id}

	journal, err := storage.NewJournal(cfg.Storage.JournalDSN)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer journal.Close()
	order, res, found, err := journal.ByID(ctx, id)
	if err != nil {
		return fmt.Errorf("journal lookup: %w", err)
	}
	if found {
		lookup.Order, lookup.Resolution = &order, &res
	}

	if err := cfg.Validate(inspectPaper); err != nil {
		lookup.StatusError = err
	} else {
		v := buildVenue(ctx, inspectPaper)
		defer v.Close(poolCloseWait)
		lookup.StatusError = v.Connect(ctx)
		if lookup.StatusError == nil {
			rec, ok, err := v.OrderStatus(ctx, id)
			switch {
			case err != nil:
				lookup.StatusError = err
			case ok:
				lookup.Status = &rec
			}
		}
	}

	notify.NewConsole().PrintOrder(lookup)
	if !found && lookup.Status == nil {
		return errors.New("order not found")
	}
	return nil
}

func runRecent(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(inspectPaper); err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	v := buildVenue(ctx, inspectPaper)
	defer v.Close(poolCloseWait)
	if err := v.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	history, err := v.History(ctx, recentLimit)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}

	journal, err := storage.NewJournal(cfg.Storage.JournalDSN)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer journal.Close()
	resolutions, err := journal.Recent(ctx, recentLimit)
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}

	console := notify.NewConsole()
	console.PrintSettlements(history)
	console.PrintResolutions(resolutions)
	return nil
}
