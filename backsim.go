// Package backsim evaluates trading strategies against historical price
// data and produces reproducible, cacheable performance reports.
package backsim

import (
	"context"
	"fmt"

	"github.com/raykavin/backsim/pkg/backtest"
	"github.com/raykavin/backsim/pkg/core"
	"github.com/raykavin/backsim/pkg/risk"
	"github.com/raykavin/backsim/pkg/strategy"
)

// SimpleBacktestOptions configures a one-shot backtest with the bundled
// mean-reversion strategy and default risk rules.
type SimpleBacktestOptions struct {
	DataFile        string
	Timeframe       string
	Symbol          string
	StartingBalance float64
	// CachePath enables the backtest cache when non-empty.
	CachePath string
	// TickData reads the file as timestamp,price,qty ticks instead of bars.
	TickData     bool
	SlippageBPS  int
	FeeBPS       int
	ShowProgress bool
}

// SimpleBacktest runs one backtest end to end: mean-reversion signals, a 5%
// stop-loss and 10% take-profit, cache-assisted loading when a cache path
// is given.
func SimpleBacktest(ctx context.Context, opts SimpleBacktestOptions) (*backtest.Report, error) {
	symbol := opts.Symbol
	if symbol == "" {
		symbol = "UNK/UNK"
	}
	balance := opts.StartingBalance
	if balance <= 0 {
		balance = 10_000
	}

	var cache *backtest.Cache
	if opts.CachePath != "" {
		var err error
		cache, err = backtest.OpenCache(opts.CachePath)
		if err != nil {
			return nil, fmt.Errorf("open backtest cache: %w", err)
		}
		defer cache.Close()
	}

	var provider core.DataProvider
	if opts.TickData {
		provider = backtest.NewTickCSVProvider(symbol, cache, DefaultLog)
	} else {
		provider = backtest.NewCSVProvider(symbol, cache, DefaultLog)
	}

	bt := &backtest.Backtester{
		Provider:        provider,
		Timeframe:       opts.Timeframe,
		StartingBalance: balance,
		Strategies: []core.Strategy{
			strategy.NewMeanReversion(symbol, opts.Timeframe, 20, 2.0, 0.02, 0.01),
		},
		RiskRules: []risk.Rule{
			risk.NewStopLoss(0.05),
			risk.NewTakeProfit(0.10),
		},
		SlippageBPS:  opts.SlippageBPS,
		FeeBPS:       opts.FeeBPS,
		Cache:        cache,
		Log:          DefaultLog,
		ShowProgress: opts.ShowProgress,
	}
	if err := bt.Validate(); err != nil {
		return nil, err
	}

	return bt.Run(ctx, opts.DataFile)
}
