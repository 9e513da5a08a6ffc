package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/rsibot/internal/adapters/notify"
	"github.com/alejandrodnm/rsibot/internal/domain"
	"github.com/alejandrodnm/rsibot/internal/indicator"
	"github.com/spf13/cobra"
)

var checkPaper bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Dry run: connect, read balance, resolve assets and compute RSI once",
	Long: `Check exercises every venue call the loop needs without placing orders:
connect, balance, instrument resolution and one candle fetch per asset.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVar(&checkPaper, "paper", false, "check against the simulated venue")
}

func runCheck(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(checkPaper); err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	v := buildVenue(ctx, checkPaper)
	defer v.Close(poolCloseWait)

	if err := v.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	capital, err := v.Balance(ctx)
	if err != nil {
		return fmt.Errorf("balance: %w", err)
	}
	stake := domain.PositionSize(capital, cfg.Strategy.PositionPct, cfg.Strategy.PositionFloor)
	slog.Info("check: account", "capital", fmt.Sprintf("%.2f", capital), "stake", fmt.Sprintf("%.2f", stake))

	bindings, err := buildResolver(v).ResolveAll(ctx, cfg.Strategy.Assets)
	if err != nil {
		return fmt.Errorf("resolve instruments: %w", err)
	}
	notify.NewConsole().PrintBindings(cfg.Strategy.Assets, bindings)

	failed := 0
	for _, asset := range cfg.Strategy.Assets {
		b, ok := bindings[asset]
		if !ok {
			continue
		}
		bars, err := v.Candles(ctx, b.Instrument, cfg.CandleSize(), cfg.Strategy.CandleCount, time.Now())
		if err != nil {
			slog.Warn("check: candles failed", "asset", asset, "instrument", b.Instrument, "err", err)
			failed++
			continue
		}
		rsi, ok := indicator.RSI(bars, cfg.Strategy.RSIPeriod)
		if !ok {
			slog.Warn("check: not enough candles", "asset", asset, "bars", len(bars))
			continue
		}
		sig := "none"
		if dir, fired := indicator.Classify(rsi, cfg.Strategy.Oversold, cfg.Strategy.Overbought); fired {
			sig = dir.Label()
		}
		slog.Info("check: rsi", "asset", asset, "instrument", b.Instrument, "bars", len(bars),
			"rsi", fmt.Sprintf("%.2f", rsi), "signal", sig)
	}
	if failed > 0 {
		return fmt.Errorf("candles failed for %d assets", failed)
	}
	slog.Info("check: ok", "tradable", len(bindings), "configured", len(cfg.Strategy.Assets))
	return nil
}
