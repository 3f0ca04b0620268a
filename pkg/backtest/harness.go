package backtest

import (
	"context"
	"fmt"

	"github.com/raykavin/backsim/pkg/core"
	"github.com/raykavin/backsim/pkg/logger"
	"github.com/raykavin/backsim/pkg/risk"
	"github.com/raykavin/backsim/pkg/strategy"
	"github.com/samber/lo"
)

const secondsPerDay = 86_400

// WalkForwardConfig governs window slicing for walk-forward evaluation.
// All spans are day counts, converted to seconds against the bar
// timestamps. Immutable once constructed.
type WalkForwardConfig struct {
	TrainDays int64
	TestDays  int64
	StepDays  int64
}

// WalkForward slides a train/test window across a dataset and backtests
// each test slice independently, producing one report per non-empty
// window. The train slice is reserved for parameter fitting by callers and
// is not simulated by this simple harness.
type WalkForward struct {
	// Provider loads the full dataset once.
	Provider core.DataProvider
	// Timeframe label forwarded to each window's backtester.
	Timeframe string
	// Config controls window spans.
	Config WalkForwardConfig
	// StartingBalance for each window run (default 10 000).
	StartingBalance float64
	// NewStrategies builds a fresh strategy set per window. Defaults to a
	// single mean-reversion strategy.
	NewStrategies func() []core.Strategy
	// NewRiskRules builds the risk-rule set per window. Defaults to a
	// 5% stop-loss with a 10% take-profit.
	NewRiskRules func() []risk.Rule
	// Log defaults to a no-op logger.
	Log logger.Logger
}

// Run evaluates every window over the dataset at dataFile and returns the
// reports in chronological window order. A dataset shorter than
// train+test yields an empty (non-error) result.
func (w *WalkForward) Run(ctx context.Context, dataFile string) ([]*Report, error) {
	if w.Config.TrainDays <= 0 || w.Config.TestDays <= 0 || w.Config.StepDays <= 0 {
		return nil, fmt.Errorf("walk-forward: train, test and step spans must be positive")
	}

	log := w.Log
	if log == nil {
		log = logger.Nop()
	}

	allData, err := w.Provider.Load(dataFile)
	if err != nil {
		return nil, err
	}
	if len(allData) == 0 {
		return nil, core.ErrNoData
	}

	var (
		startTS   = allData[0].Timestamp
		endTS     = allData[len(allData)-1].Timestamp
		trainSecs = w.Config.TrainDays * secondsPerDay
		testSecs  = w.Config.TestDays * secondsPerDay
		stepSecs  = w.Config.StepDays * secondsPerDay
	)

	reports := make([]*Report, 0)
	for windowStart := startTS; windowStart+trainSecs+testSecs <= endTS; windowStart += stepSecs {
		trainEnd := windowStart + trainSecs
		testEnd := trainEnd + testSecs

		testSlice := lo.Filter(allData, func(d core.MarketData, _ int) bool {
			return d.Timestamp >= trainEnd && d.Timestamp < testEnd
		})
		if len(testSlice) == 0 {
			continue
		}

		bt := &Backtester{
			Provider:        NewSliceProvider(testSlice),
			Timeframe:       w.Timeframe,
			StartingBalance: w.startingBalance(),
			Strategies:      w.strategies(),
			RiskRules:       w.riskRules(),
			Log:             log,
		}

		report, err := bt.Run(ctx, "")
		if err != nil {
			return nil, err
		}
		log.Debugf("walk-forward window [%d, %d): %d trades", trainEnd, testEnd, report.TotalTrades)
		reports = append(reports, report)
	}

	return reports, nil
}

func (w *WalkForward) startingBalance() float64 {
	if w.StartingBalance > 0 {
		return w.StartingBalance
	}
	return 10_000
}

func (w *WalkForward) strategies() []core.Strategy {
	if w.NewStrategies != nil {
		return w.NewStrategies()
	}
	return []core.Strategy{
		strategy.NewMeanReversion("UNK/UNK", w.Timeframe, 20, 2.0, 0.02, 0.01),
	}
}

func (w *WalkForward) riskRules() []risk.Rule {
	if w.NewRiskRules != nil {
		return w.NewRiskRules()
	}
	return []risk.Rule{
		risk.NewStopLoss(0.05),
		risk.NewTakeProfit(0.10),
	}
}
