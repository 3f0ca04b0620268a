package risk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/raykavin/backsim/pkg/performance"
)

type stubATR struct {
	value float64
	ok    bool
}

func (s stubATR) ATR(string) (float64, bool) { return s.value, s.ok }

func TestFixedFractional(t *testing.T) {
	sizer := NewFixedFractional(0.02)
	assert.InDelta(t, 200.0, sizer.Size(context.Background(), 10_000, "BTC/USDT"), 1e-12)
}

func TestKellyFractionBounds(t *testing.T) {
	cases := []struct {
		name    string
		winRate float64
		payoff  float64
	}{
		{"certain win", 1.0, 2.0},
		{"certain loss", 0.0, 2.0},
		{"negative edge", 0.3, 1.0},
		{"strong edge", 0.9, 3.0},
		{"zero payoff", 0.6, 0},
		{"negative payoff", 0.6, -2},
		{"win rate above one", 1.5, 2.0},
		{"negative win rate", -0.5, 2.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := kellyFraction(tc.winRate, tc.payoff, 0.25)
			assert.GreaterOrEqual(t, f, 0.0)
			assert.LessOrEqual(t, f, 0.25)
		})
	}
}

func TestKellyKnownValue(t *testing.T) {
	// p=0.6, b=2: (2*0.6 - 0.4)/2 = 0.4, capped to 0.25.
	assert.InDelta(t, 0.25, kellyFraction(0.6, 2.0, 0.25), 1e-12)
	// Uncapped region: p=0.55, b=1: 0.55 - 0.45 = 0.10.
	assert.InDelta(t, 0.10, kellyFraction(0.55, 1.0, 0.25), 1e-12)
}

func TestKellySizerAppliesFractionToEquity(t *testing.T) {
	sizer := NewKelly(0.55, 1.0, 0.25)
	assert.InDelta(t, 1_000.0, sizer.Size(context.Background(), 10_000, "BTC/USDT"), 1e-9)
}

func TestLiveKellyNoHistory(t *testing.T) {
	sizer := NewLiveKelly(0.25, performance.NewMonitor())
	assert.Zero(t, sizer.Size(context.Background(), 10_000, "BTC/USDT"))
}

func TestLiveKellyDerivesFromMonitor(t *testing.T) {
	monitor := performance.NewMonitor()
	// 2 wins of 100, 2 losses of 50: p=0.5, b=2, kelly=(2*0.5-0.5)/2=0.25.
	monitor.RecordTrade("mean_reversion", 100)
	monitor.RecordTrade("mean_reversion", 100)
	monitor.RecordTrade("mean_reversion", -50)
	monitor.RecordTrade("mean_reversion", -50)

	sizer := NewLiveKelly(0.5, monitor)
	assert.InDelta(t, 2_500.0, sizer.Size(context.Background(), 10_000, "BTC/USDT"), 1e-9)
}

func TestVolatilitySizer(t *testing.T) {
	sizer := NewVolatility(0.01, 2.0, stubATR{value: 50, ok: true})
	// 10_000*0.01 / (50*2) = 1.
	assert.InDelta(t, 1.0, sizer.Size(context.Background(), 10_000, "BTC/USDT"), 1e-12)
}

func TestVolatilitySizerNoATR(t *testing.T) {
	assert.Zero(t, NewVolatility(0.01, 2.0, stubATR{ok: false}).Size(context.Background(), 10_000, "BTC/USDT"))
	assert.Zero(t, NewVolatility(0.01, 2.0, stubATR{value: 0, ok: true}).Size(context.Background(), 10_000, "BTC/USDT"))
}
