package backtest

import (
	"context"
	"fmt"
	"sort"

	"github.com/raykavin/backsim/internal/metric"
	"github.com/raykavin/backsim/pkg/core"
	"github.com/raykavin/backsim/pkg/logger"
	"github.com/raykavin/backsim/pkg/performance"
	"github.com/raykavin/backsim/pkg/portfolio"
	"github.com/raykavin/backsim/pkg/risk"
	"github.com/raykavin/backsim/pkg/storage"
	"github.com/schollz/progressbar/v3"
)

// multiStrategyKey identifies runs with more than one participating
// strategy in the report cache.
const multiStrategyKey = "multi"

// Backtester replays a historical series through a set of strategies
// against a simulated portfolio. One instance performs one run; bars are
// processed strictly sequentially because equity, drawdown and position
// state depend on the previous bar.
type Backtester struct {
	// Provider loads the historical series.
	Provider core.DataProvider
	// Timeframe is the candle interval label, part of the report cache key.
	Timeframe string
	// StartingBalance is the opening quote-currency balance.
	StartingBalance float64
	// Strategies run in slice order within each bar.
	Strategies []core.Strategy
	// RiskRules are evaluated in slice order per open position per bar;
	// the first trigger wins.
	RiskRules []risk.Rule
	// SlippageBPS is per-trade slippage in basis points.
	SlippageBPS int
	// FeeBPS is the trading fee in basis points, paid on notional.
	FeeBPS int
	// Cache, when set, short-circuits repeated runs and persists results.
	Cache *Cache
	// Persistence, when set, receives a run summary (best-effort).
	Persistence storage.Persistence
	// Monitor, when set, receives closed-trade outcomes during the run.
	Monitor *performance.Monitor
	// Log defaults to a no-op logger.
	Log logger.Logger
	// ShowProgress renders a progress bar over the bar loop.
	ShowProgress bool
}

// Run executes one backtest over the series at dataFile. The identical run
// (same strategy identity, symbol, timeframe and time range) is served from
// the report cache without re-simulating.
func (b *Backtester) Run(ctx context.Context, dataFile string) (*Report, error) {
	log := b.Log
	if log == nil {
		log = logger.Nop()
	}

	data, err := b.Provider.Load(dataFile)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, core.ErrNoData
	}

	startTS := data[0].Timestamp
	endTS := data[len(data)-1].Timestamp
	symbol := data[0].Symbol
	if symbol == "" {
		symbol = "UNK"
	}
	strategyKey := b.strategyKey()

	if b.Cache != nil {
		cached, err := b.Cache.GetReport(strategyKey, symbol, b.Timeframe, startTS, endTS)
		if err != nil {
			return nil, err
		}
		if cached != nil {
			log.Debugf("report cache hit for %s %s [%d, %d]", strategyKey, symbol, startTS, endTS)
			return cached, nil
		}
	}

	report := b.simulate(ctx, data, log)

	if b.Cache != nil {
		if err := b.Cache.PutReport(strategyKey, symbol, b.Timeframe, startTS, endTS, report); err != nil {
			log.WithError(err).Warn("report cache write failed")
		}
	}
	if b.Persistence != nil {
		summary := &storage.Summary{
			Strategy:     strategyKey,
			Symbol:       symbol,
			Timeframe:    b.Timeframe,
			StartBalance: report.StartingBalance,
			EndBalance:   report.EndingBalance,
			Sharpe:       report.Sharpe,
			MaxDrawdown:  report.MaxDrawdown,
		}
		if err := b.Persistence.SaveSummary(ctx, summary); err != nil {
			log.WithError(err).Warn("summary persistence failed")
		}
	}

	return report, nil
}

// simulate runs the bar loop and assembles the report.
func (b *Backtester) simulate(ctx context.Context, data []core.MarketData, log logger.Logger) *Report {
	pf := portfolio.New(b.StartingBalance)
	prices := make(map[string]float64)

	var (
		totalTrades   int
		winningTrades int
		peakEquity    = b.StartingBalance
		maxDrawdown   float64
		equityCurve   = make([]float64, 0, len(data))
		tradePnLs     []float64
	)

	var bar *progressbar.ProgressBar
	if b.ShowProgress {
		bar = progressbar.Default(int64(len(data)))
	}

	for i := range data {
		point := &data[i]
		prices[point.Symbol] = point.Close

		for _, strat := range b.Strategies {
			for _, sig := range strat.GenerateSignals(ctx, point) {
				trade, ok := b.toTrade(sig)
				if !ok {
					continue
				}
				realized := b.applyTrade(pf, &trade)
				totalTrades++
				if realized > 0 {
					winningTrades++
				}
				if trade.Side == core.SideSell {
					tradePnLs = append(tradePnLs, realized)
					if b.Monitor != nil {
						b.Monitor.RecordTrade(strat.Name(), realized)
					}
				}
				b.notifyFill(&trade)
			}
		}

		equity := pf.Equity(prices)
		if equity > peakEquity {
			peakEquity = equity
		}
		if drawdown := (peakEquity - equity) / peakEquity; drawdown > maxDrawdown {
			maxDrawdown = drawdown
		}
		equityCurve = append(equityCurve, equity)

		b.applyRiskRules(pf, prices, point.Timestamp, &totalTrades, &winningTrades, &tradePnLs)

		if bar != nil {
			if err := bar.Add(1); err != nil {
				log.Warnf("update progressbar fail: %v", err)
			}
		}
	}

	returns := simpleReturns(equityCurve)

	var payoff, profitFactor float64
	if len(tradePnLs) > 0 {
		payoff = metric.Payoff(tradePnLs)
		profitFactor = metric.ProfitFactor(tradePnLs)
	}

	return &Report{
		StartingBalance: b.StartingBalance,
		EndingBalance:   pf.Equity(prices),
		RealizedPnL:     pf.RealizedPnL,
		MaxDrawdown:     maxDrawdown,
		TotalTrades:     totalTrades,
		WinningTrades:   winningTrades,
		EquityCurve:     equityCurve,
		Returns:         returns,
		Sharpe:          metric.Sharpe(returns),
		Payoff:          payoff,
		ProfitFactor:    profitFactor,
	}
}

// toTrade converts an actionable signal into a fill at the slippage-adjusted
// price. Non-trading signal kinds and non-positive sizes are dropped.
func (b *Backtester) toTrade(sig core.Signal) (SimulatedTrade, bool) {
	if sig.Size <= 0 {
		return SimulatedTrade{}, false
	}

	slip := float64(b.SlippageBPS) / 10_000

	var side core.Side
	var execPrice float64
	switch sig.Type {
	case core.SignalBuy:
		side = core.SideBuy
		execPrice = sig.Price * (1 + slip)
	case core.SignalSell:
		side = core.SideSell
		execPrice = sig.Price * (1 - slip)
	default:
		return SimulatedTrade{}, false
	}

	return SimulatedTrade{
		Timestamp: sig.Timestamp,
		Symbol:    sig.Symbol,
		Side:      side,
		Quantity:  sig.Size,
		Price:     execPrice,
	}, true
}

// applyTrade executes the fill against the ledger, debits the fee and
// returns the PnL realized by this fill.
func (b *Backtester) applyTrade(pf *portfolio.Portfolio, trade *SimulatedTrade) float64 {
	before := pf.RealizedPnL

	switch trade.Side {
	case core.SideBuy:
		pf.UpdateOnBuy(trade.Symbol, trade.Quantity, trade.Price)
	case core.SideSell:
		pf.UpdateOnSell(trade.Symbol, trade.Quantity, trade.Price)
	}

	fee := trade.Quantity * trade.Price * float64(b.FeeBPS) / 10_000
	pf.Cash -= fee

	trade.PnL = pf.RealizedPnL - before
	return trade.PnL
}

// applyRiskRules evaluates the configured rules against every open
// position, in a stable symbol order for deterministic replay. The first
// triggering rule liquidates the full position at the current mark price
// and stops further evaluation for that position this bar.
func (b *Backtester) applyRiskRules(pf *portfolio.Portfolio, prices map[string]float64, timestamp int64, totalTrades, winningTrades *int, tradePnLs *[]float64) {
	if len(b.RiskRules) == 0 {
		return
	}

	symbols := make([]string, 0, len(pf.Positions))
	for symbol := range pf.Positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	for _, symbol := range symbols {
		pos := pf.Positions[symbol]
		if pos.Size <= 0 {
			continue
		}
		price, ok := prices[symbol]
		if !ok {
			continue
		}

		for _, rule := range b.RiskRules {
			action, triggered := rule.Evaluate(symbol, pos, price)
			if !triggered || action != risk.ClosePosition {
				continue
			}

			trade := SimulatedTrade{
				Timestamp: timestamp,
				Symbol:    symbol,
				Side:      core.SideSell,
				Quantity:  pos.Size,
				Price:     price,
			}
			realized := b.applyTrade(pf, &trade)
			*totalTrades++
			if realized > 0 {
				*winningTrades++
			}
			*tradePnLs = append(*tradePnLs, realized)
			if b.Monitor != nil {
				b.Monitor.RecordTrade(rule.Name(), realized)
			}
			b.notifyFill(&trade)
			break
		}
	}
}

// notifyFill reports a simulated fill to every strategy.
func (b *Backtester) notifyFill(trade *SimulatedTrade) {
	order := &core.Order{
		Symbol:    trade.Symbol,
		Side:      trade.Side,
		Quantity:  trade.Quantity,
		Price:     trade.Price,
		Timestamp: trade.Timestamp,
	}
	for _, strat := range b.Strategies {
		strat.OnOrderFilled(order)
	}
}

// strategyKey is the strategy component of the report cache key.
func (b *Backtester) strategyKey() string {
	if len(b.Strategies) == 1 {
		return b.Strategies[0].Name()
	}
	return multiStrategyKey
}

// simpleReturns derives per-bar simple returns from consecutive equity
// values, skipping pairs with a non-positive denominator.
func simpleReturns(equityCurve []float64) []float64 {
	if len(equityCurve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equityCurve)-1)
	for i := 1; i < len(equityCurve); i++ {
		prev := equityCurve[i-1]
		if prev <= 0 {
			continue
		}
		returns = append(returns, (equityCurve[i]-prev)/prev)
	}
	return returns
}

// Validate reports obvious misconfiguration before a run.
func (b *Backtester) Validate() error {
	if b.Provider == nil {
		return fmt.Errorf("backtester: no data provider configured")
	}
	if len(b.Strategies) == 0 {
		return fmt.Errorf("backtester: no strategies configured")
	}
	if b.StartingBalance <= 0 {
		return fmt.Errorf("backtester: starting balance must be positive")
	}
	return nil
}
