package indicator

import (
	"sync"

	"github.com/markcheno/go-talib"
	"github.com/raykavin/backsim/pkg/core"
)

// ATRTracker computes rolling average-true-range values per symbol from the
// bars fed through Update. It implements risk.ATRSource and is owned by the
// caller, which feeds it bar-by-bar alongside the simulation; the lock only
// guards against a concurrent sizing read.
type ATRTracker struct {
	mu     sync.RWMutex
	period int
	highs  map[string][]float64
	lows   map[string][]float64
	closes map[string][]float64
	latest map[string]float64
}

func NewATRTracker(period int) *ATRTracker {
	return &ATRTracker{
		period: period,
		highs:  make(map[string][]float64),
		lows:   make(map[string][]float64),
		closes: make(map[string][]float64),
		latest: make(map[string]float64),
	}
}

// Update folds one bar into the tracker. Bars without a high/low range
// degrade to the close price, which yields a close-to-close range.
func (t *ATRTracker) Update(data *core.MarketData) {
	high, low := data.High, data.Low
	if high == 0 {
		high = data.Close
	}
	if low == 0 {
		low = data.Close
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	symbol := data.Symbol
	t.highs[symbol] = appendBounded(t.highs[symbol], high, t.period*3)
	t.lows[symbol] = appendBounded(t.lows[symbol], low, t.period*3)
	t.closes[symbol] = appendBounded(t.closes[symbol], data.Close, t.period*3)

	if len(t.closes[symbol]) > t.period {
		atr := talib.Atr(t.highs[symbol], t.lows[symbol], t.closes[symbol], t.period)
		t.latest[symbol] = atr[len(atr)-1]
	}
}

// ATR returns the most recent value for symbol, reporting false until
// enough bars have been seen.
func (t *ATRTracker) ATR(symbol string) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	atr, ok := t.latest[symbol]
	return atr, ok
}

func appendBounded(values []float64, v float64, max int) []float64 {
	values = append(values, v)
	if len(values) > max {
		values = values[len(values)-max:]
	}
	return values
}
