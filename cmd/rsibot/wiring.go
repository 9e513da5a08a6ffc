package main

import (
	"context"
	"strings"
	"time"

	"github.com/alejandrodnm/rsibot/internal/adapters/paper"
	"github.com/alejandrodnm/rsibot/internal/adapters/venue"
	"github.com/alejandrodnm/rsibot/internal/application/engine"
	"github.com/alejandrodnm/rsibot/internal/application/resolver"
	"github.com/alejandrodnm/rsibot/internal/application/risk"
	"github.com/alejandrodnm/rsibot/internal/domain"
	"github.com/alejandrodnm/rsibot/internal/ports"
)

const poolCloseWait = 3 * time.Second

// buildVenue wires the broker bridge, or the simulated account, behind the guarded pool.
// The settlement stream, when configured, lives until ctx ends.
func buildVenue(ctx context.Context, paperMode bool) *venue.Guarded {
	var next ports.Venue
	if paperMode {
		next = paper.New(paper.Config{
			StartBalance:   cfg.Paper.StartBalance,
			WinProbability: cfg.Paper.WinProbability,
			TieProbability: cfg.Paper.TieProbability,
			PayoutPct:      cfg.Paper.PayoutPct,
			Instruments:    paperInstruments(),
			Seed:           cfg.Paper.Seed,
		}, nil)
	} else {
		var stream *venue.Stream
		if cfg.Venue.StreamURL != "" {
			stream = venue.NewStream(cfg.Venue.StreamURL)
			go stream.Run(ctx)
		}
		next = venue.NewBridge(cfg.Venue.BridgeURL, venue.Credentials{
			Email:       cfg.Venue.Email,
			Password:    cfg.Venue.Password,
			AccountType: cfg.Venue.AccountType,
		}, stream)
	}
	return venue.NewGuarded(next, cfg.Venue.Workers, cfg.CallTimeout())
}

func buildResolver(src ports.InstrumentSource) *resolver.Resolver {
	categories := make([]domain.Category, 0, len(cfg.Venue.Categories))
	for _, c := range cfg.Venue.Categories {
		categories = append(categories, domain.Category(strings.ToLower(c)))
	}
	return resolver.New(src, resolver.Config{
		Mapping:    cfg.Venue.Mapping,
		Suffixes:   cfg.Venue.Suffixes,
		Categories: categories,
	})
}

func engineConfig() engine.Config {
	return engine.Config{
		Assets:          cfg.Strategy.Assets,
		RSIPeriod:       cfg.Strategy.RSIPeriod,
		Oversold:        cfg.Strategy.Oversold,
		Overbought:      cfg.Strategy.Overbought,
		Expiry:          cfg.Expiry(),
		CandleSize:      cfg.CandleSize(),
		CandleCount:     cfg.Strategy.CandleCount,
		PositionPct:     cfg.Strategy.PositionPct,
		PositionFloor:   cfg.Strategy.PositionFloor,
		SignalSpacing:   cfg.SignalSpacing(),
		Cycle:           cfg.Cycle(),
		MinSleep:        cfg.MinSleep(),
		SaveEvery:       cfg.Loop.SaveEvery,
		ResolveEvery:    cfg.Loop.ResolveEvery,
		SettleGuard:     cfg.SettleGuard(),
		StatusAfter:     cfg.StatusAfter(),
		SettleTimeout:   cfg.SettleTimeout(),
		BalanceEpsilon:  cfg.Settlement.BalanceEpsilon,
		PayoutPct:       cfg.Strategy.PayoutPct,
		Risk: risk.Config{
			AbsoluteStopPct:           cfg.Risk.AbsoluteStopPct,
			PeriodStopPct:             cfg.Risk.MonthlyStopPct,
			MaxDailyConsecutiveLosses: cfg.Risk.MaxDailyConsecutiveLosses,
			Warmup:                    cfg.Warmup(),
		},
	}
}

// paperInstruments offers exactly the first instrument each asset would resolve to.
func paperInstruments() []string {
	out := make([]string, 0, len(cfg.Strategy.Assets))
	for _, a := range cfg.Strategy.Assets {
		if name, ok := cfg.Venue.Mapping[a]; ok {
			out = append(out, name)
			continue
		}
		out = append(out, strings.ToUpper(a))
	}
	return out
}
