package risk

import "github.com/raykavin/backsim/pkg/portfolio"

// Action is the decision requested by a triggered risk rule.
type Action int

const (
	// ClosePosition requests liquidation of the full position at the
	// current mark price.
	ClosePosition Action = iota
)

// Rule is a per-bar exit evaluator. It inspects a single position against
// the current price and signals an action without mutating any state; the
// caller performs the liquidation against the ledger. Rules are evaluated
// in configured order and the first trigger wins.
type Rule interface {
	Name() string
	Evaluate(symbol string, pos *portfolio.Position, currentPrice float64) (Action, bool)
}

// StopLossRule closes a long position once price drops pct or more below
// the average entry.
type StopLossRule struct {
	pct float64
}

func NewStopLoss(pct float64) *StopLossRule {
	return &StopLossRule{pct: pct}
}

func (r *StopLossRule) Name() string { return "stop_loss" }

func (r *StopLossRule) Evaluate(_ string, pos *portfolio.Position, currentPrice float64) (Action, bool) {
	if pos.Size > 0 {
		threshold := pos.AverageEntryPrice * (1 - r.pct)
		if currentPrice <= threshold {
			return ClosePosition, true
		}
	}
	return 0, false
}

// TakeProfitRule closes a position once price rises pct or more above the
// average entry.
type TakeProfitRule struct {
	pct float64
}

func NewTakeProfit(pct float64) *TakeProfitRule {
	return &TakeProfitRule{pct: pct}
}

func (r *TakeProfitRule) Name() string { return "take_profit" }

func (r *TakeProfitRule) Evaluate(_ string, pos *portfolio.Position, currentPrice float64) (Action, bool) {
	if pos.Size > 0 {
		threshold := pos.AverageEntryPrice * (1 + r.pct)
		if currentPrice >= threshold {
			return ClosePosition, true
		}
	}
	return 0, false
}
