package strategy

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raykavin/backsim/pkg/core"
)

func feed(s *MeanReversion, closes []float64) []core.Signal {
	var signals []core.Signal
	for i, c := range closes {
		signals = append(signals, s.GenerateSignals(context.Background(), &core.MarketData{
			Symbol:    "BTC/USDT",
			Timestamp: int64(i),
			Close:     c,
		})...)
	}
	return signals
}

func TestNoSignalsDuringWarmup(t *testing.T) {
	s := NewMeanReversion("BTC/USDT", "1h", 20, 2.0, 0.02, 0.01)

	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100
	}
	assert.Empty(t, feed(s, closes))
}

func TestBuysOnDeepDip(t *testing.T) {
	s := NewMeanReversion("BTC/USDT", "1h", 20, 2.0, 0.02, 0.01)

	// Stable series then a sharp collapse: deep negative z-score, RSI
	// pinned low, close under the lower band.
	closes := make([]float64, 0, 40)
	for i := 0; i < 30; i++ {
		closes = append(closes, 100+math.Sin(float64(i))*0.1)
	}
	for i := 0; i < 6; i++ {
		closes = append(closes, 99-float64(i)*2)
	}

	signals := feed(s, closes)
	require.NotEmpty(t, signals)
	assert.Equal(t, core.SignalBuy, signals[0].Type)
	assert.Equal(t, "BTC/USDT", signals[0].Symbol)
	assert.Greater(t, signals[0].Size, 0.0)
}

func TestLongOnlyNeverShortsWhenFlat(t *testing.T) {
	s := NewMeanReversion("BTC/USDT", "1h", 20, 2.0, 0.02, 0.01)

	// A strong rally would tempt a short entry; the strategy must stay
	// flat instead.
	closes := make([]float64, 0, 40)
	for i := 0; i < 30; i++ {
		closes = append(closes, 100)
	}
	for i := 0; i < 8; i++ {
		closes = append(closes, 102+float64(i)*3)
	}

	for _, sig := range feed(s, closes) {
		assert.NotEqual(t, core.SignalSell, sig.Type)
	}
}

func TestExitsOnStopLoss(t *testing.T) {
	s := NewMeanReversion("BTC/USDT", "1h", 20, 2.0, 0.02, 0.01)

	// Warm up, then simulate an entry fill and keep falling.
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100
	}
	feed(s, closes)

	s.OnOrderFilled(&core.Order{Symbol: "BTC/USDT", Side: core.SideBuy, Price: 100, Quantity: 1})
	require.True(t, s.inPosition)

	// 2% drop breaches the 1% stop.
	signals := s.GenerateSignals(context.Background(), &core.MarketData{
		Symbol: "BTC/USDT", Timestamp: 99, Close: 98,
	})
	require.Len(t, signals, 1)
	assert.Equal(t, core.SignalSell, signals[0].Type)

	s.OnOrderFilled(&core.Order{Symbol: "BTC/USDT", Side: core.SideSell, Price: 98, Quantity: 1})
	assert.False(t, s.inPosition)
}

func TestIgnoresFillsForOtherSymbols(t *testing.T) {
	s := NewMeanReversion("BTC/USDT", "1h", 20, 2.0, 0.02, 0.01)

	s.OnOrderFilled(&core.Order{Symbol: "ETH/USDT", Side: core.SideBuy, Price: 50, Quantity: 1})
	assert.False(t, s.inPosition)
}

func TestStrategyIdentity(t *testing.T) {
	s := NewMeanReversion("BTC/USDT", "4h", 20, 2.0, 0.02, 0.01)
	assert.Equal(t, "mean_reversion", s.Name())
	assert.Equal(t, "4h", s.Timeframe())
	assert.Equal(t, []string{"BTC/USDT"}, s.Symbols())
}
