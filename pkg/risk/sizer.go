package risk

import (
	"context"
	"math"

	"github.com/raykavin/backsim/pkg/performance"
)

// PositionSizer converts account equity into a trade size expressed in base
// currency units. Implementations are pure functions of their inputs except
// LiveKellySizer, which consults live performance statistics; none mutate
// the portfolio.
type PositionSizer interface {
	Size(ctx context.Context, equity float64, symbol string) float64
}

// ATRSource supplies the latest average-true-range value for a symbol. It
// is injected by the caller so that sizing stays deterministic instead of
// reading ambient shared state.
type ATRSource interface {
	ATR(symbol string) (float64, bool)
}

// FixedFractionalSizer trades a constant fraction of equity.
type FixedFractionalSizer struct {
	Pct float64 // e.g. 0.01 = 1% of equity
}

func NewFixedFractional(pct float64) *FixedFractionalSizer {
	return &FixedFractionalSizer{Pct: pct}
}

func (s *FixedFractionalSizer) Size(_ context.Context, equity float64, _ string) float64 {
	return equity * s.Pct
}

// KellySizer applies the Kelly criterion with static parameters:
// fraction = (b*p - q)/b capped to [0, Cap], size = equity * fraction.
type KellySizer struct {
	WinRate     float64 // p
	PayoffRatio float64 // b
	Cap         float64 // max fraction (e.g. 0.25 for quarter-Kelly)
}

func NewKelly(winRate, payoffRatio, cap float64) *KellySizer {
	return &KellySizer{WinRate: winRate, PayoffRatio: payoffRatio, Cap: cap}
}

func (s *KellySizer) Size(_ context.Context, equity float64, _ string) float64 {
	return equity * kellyFraction(s.WinRate, s.PayoffRatio, s.Cap)
}

// kellyFraction computes (b*p - q)/b clamped to [0, cap]. A non-positive
// payoff ratio is treated as 1.
func kellyFraction(winRate, payoffRatio, cap float64) float64 {
	p := math.Min(math.Max(winRate, 0), 1)
	b := payoffRatio
	if b <= 0 {
		b = 1
	}
	q := 1 - p
	kelly := (b*p - q) / b
	return math.Min(math.Max(kelly, 0), cap)
}

// LiveKellySizer derives the Kelly parameters on demand from a performance
// monitor snapshot aggregated across all tracked strategies. It sizes to
// zero until at least one trade has been recorded.
type LiveKellySizer struct {
	Cap     float64
	monitor *performance.Monitor
}

func NewLiveKelly(cap float64, monitor *performance.Monitor) *LiveKellySizer {
	return &LiveKellySizer{Cap: cap, monitor: monitor}
}

func (s *LiveKellySizer) Size(_ context.Context, equity float64, _ string) float64 {
	snapshot := s.monitor.Snapshot()
	if len(snapshot) == 0 {
		return 0
	}

	var totalTrades, totalWins, totalLosses int
	var grossProfit, grossLoss float64
	for _, m := range snapshot {
		totalTrades += m.TotalTrades
		totalWins += m.WinningTrades
		totalLosses += m.LosingTrades
		grossProfit += m.GrossProfit
		grossLoss += m.GrossLoss
	}
	if totalTrades == 0 {
		return 0
	}

	p := float64(totalWins) / float64(totalTrades)
	avgWin := grossProfit / math.Max(float64(totalWins), 1)
	avgLoss := grossLoss / math.Max(float64(totalLosses), 1)
	b := 1.0
	if avgLoss > 0 {
		b = avgWin / avgLoss
	}

	return equity * kellyFraction(p, b, s.Cap)
}

// VolatilitySizer scales size inversely with volatility:
// size = equity*RiskPct / (atr*ATRMult). It sizes to zero when the ATR
// source has no value or a non-positive one.
type VolatilitySizer struct {
	RiskPct float64 // equity risk fraction
	ATRMult float64 // stop distance in ATRs
	source  ATRSource
}

func NewVolatility(riskPct, atrMult float64, source ATRSource) *VolatilitySizer {
	return &VolatilitySizer{RiskPct: riskPct, ATRMult: atrMult, source: source}
}

func (s *VolatilitySizer) Size(_ context.Context, equity float64, symbol string) float64 {
	atr, ok := s.source.ATR(symbol)
	if !ok || atr <= 0 {
		return 0
	}
	return (equity * s.RiskPct) / (atr * s.ATRMult)
}
