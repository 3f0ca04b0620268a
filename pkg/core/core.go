package core

import "context"

// Side identifies the direction of an executed order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// SignalType classifies a strategy signal. Only Buy and Sell are actionable
// inside the simulator; the remaining kinds exist for live-engine consumers
// and are ignored during a backtest.
type SignalType string

const (
	SignalBuy       SignalType = "BUY"
	SignalSell      SignalType = "SELL"
	SignalClose     SignalType = "CLOSE"
	SignalCancel    SignalType = "CANCEL"
	SignalArbitrage SignalType = "ARBITRAGE"
)

// MarketData is a single market sample (bar or tick) processed atomically by
// the simulation loop. Timestamp is unix seconds and must be non-decreasing
// across a loaded sequence. Open/High/Low/Volume may be zero when the source
// does not carry them; Close is always set.
type MarketData struct {
	Symbol    string
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Signal is a trading intention emitted by a strategy for a single sample.
type Signal struct {
	Symbol    string
	Type      SignalType
	Price     float64
	Size      float64
	Timestamp int64
}

// Order describes a simulated fill reported back to strategies.
type Order struct {
	Symbol    string
	Side      Side
	Quantity  float64
	Price     float64
	Timestamp int64
}

// Strategy is the signal-generation contract consumed by the backtester.
// GenerateSignals is called once per sample, strictly in data order; the
// caller waits for the returned slice before advancing, so implementations
// may keep per-call mutable state without locking.
type Strategy interface {
	// Name identifies the strategy, used in cache keys and metrics.
	Name() string
	// Timeframe is the candle interval the strategy operates on, e.g. "1h".
	Timeframe() string
	// Symbols returns the symbols this strategy trades.
	Symbols() []string
	// GenerateSignals inspects one market sample and returns zero or more
	// trading signals.
	GenerateSignals(ctx context.Context, data *MarketData) []Signal
	// OnOrderFilled notifies the strategy after each simulated fill. It
	// cannot veto the fill.
	OnOrderFilled(order *Order)
}

// DataProvider loads an ordered sequence of market samples from a source
// file. Implementations must be cheap to construct since the walk-forward
// harness builds a fresh provider per window.
type DataProvider interface {
	Load(path string) ([]MarketData, error)
}
