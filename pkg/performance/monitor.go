package performance

import "sync"

// StrategyMetrics aggregates trade outcomes for a single strategy.
type StrategyMetrics struct {
	Strategy      string
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	TotalPnL      float64
	GrossProfit   float64
	GrossLoss     float64 // stored as a positive magnitude
}

// WinRate returns the fraction of winning trades, 0 when no trades were
// recorded.
func (m StrategyMetrics) WinRate() float64 {
	if m.TotalTrades == 0 {
		return 0
	}
	return float64(m.WinningTrades) / float64(m.TotalTrades)
}

// Monitor tracks live trade outcomes across strategies. Writers append
// outcomes through RecordTrade while readers take consistent snapshots;
// reads never hold the lock across a caller's computation.
type Monitor struct {
	mu      sync.RWMutex
	metrics map[string]*StrategyMetrics
}

func NewMonitor() *Monitor {
	return &Monitor{metrics: make(map[string]*StrategyMetrics)}
}

// RecordTrade appends one closed-trade outcome for the named strategy.
func (m *Monitor) RecordTrade(strategy string, pnl float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics, ok := m.metrics[strategy]
	if !ok {
		metrics = &StrategyMetrics{Strategy: strategy}
		m.metrics[strategy] = metrics
	}

	metrics.TotalTrades++
	metrics.TotalPnL += pnl
	if pnl > 0 {
		metrics.WinningTrades++
		metrics.GrossProfit += pnl
	} else {
		metrics.LosingTrades++
		metrics.GrossLoss += -pnl
	}
}

// Snapshot returns a copy of the per-strategy metrics, safe to iterate
// without holding the monitor lock.
func (m *Monitor) Snapshot() []StrategyMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]StrategyMetrics, 0, len(m.metrics))
	for _, metrics := range m.metrics {
		out = append(out, *metrics)
	}
	return out
}
