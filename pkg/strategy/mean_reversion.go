package strategy

import (
	"context"
	"math"

	"github.com/markcheno/go-talib"
	"github.com/raykavin/backsim/pkg/core"
)

const (
	rsiPeriod    = 14
	bbandsPeriod = 20
)

// MeanReversion trades deviations from a rolling mean: it enters long when
// the close sits several standard deviations below the mean with oversold
// confirmation, and exits on take-profit, stop-loss or once the z-score
// reverts toward zero. Long-only, one open position at a time.
type MeanReversion struct {
	symbol          string
	timeframe       string
	lookback        int
	zscoreThreshold float64
	takeProfitPct   float64
	stopLossPct     float64
	positionSize    float64

	closes     []float64
	inPosition bool
	entryPrice float64
}

// NewMeanReversion builds the strategy. takeProfitPct and stopLossPct are
// fractions (0.02 = 2%).
func NewMeanReversion(symbol, timeframe string, lookback int, zscoreThreshold, takeProfitPct, stopLossPct float64) *MeanReversion {
	return &MeanReversion{
		symbol:          symbol,
		timeframe:       timeframe,
		lookback:        lookback,
		zscoreThreshold: zscoreThreshold,
		takeProfitPct:   takeProfitPct,
		stopLossPct:     stopLossPct,
		positionSize:    1.0,
	}
}

func (s *MeanReversion) Name() string      { return "mean_reversion" }
func (s *MeanReversion) Timeframe() string { return s.timeframe }
func (s *MeanReversion) Symbols() []string { return []string{s.symbol} }

// GenerateSignals implements core.Strategy.
func (s *MeanReversion) GenerateSignals(_ context.Context, data *core.MarketData) []core.Signal {
	s.closes = append(s.closes, data.Close)
	if len(s.closes) > s.lookback*4 {
		s.closes = s.closes[len(s.closes)-s.lookback*4:]
	}

	warmup := s.lookback
	if warmup < bbandsPeriod {
		warmup = bbandsPeriod
	}
	if len(s.closes) <= warmup {
		return nil
	}

	zscore := s.zscore(data.Close)

	if s.inPosition {
		if s.shouldExit(data.Close, zscore) {
			return []core.Signal{{
				Symbol:    s.symbol,
				Type:      core.SignalSell,
				Price:     data.Close,
				Size:      s.positionSize,
				Timestamp: data.Timestamp,
			}}
		}
		return nil
	}

	rsi := last(talib.Rsi(s.closes, rsiPeriod))
	_, _, bbLower := talib.BBands(s.closes, bbandsPeriod, 2.0, 2.0, talib.SMA)

	// Oversold: deep below the mean, weak RSI, under the lower band.
	if zscore < -s.zscoreThreshold && rsi < 30 && data.Close < last(bbLower) {
		return []core.Signal{{
			Symbol:    s.symbol,
			Type:      core.SignalBuy,
			Price:     data.Close,
			Size:      s.positionSize,
			Timestamp: data.Timestamp,
		}}
	}

	return nil
}

// OnOrderFilled implements core.Strategy.
func (s *MeanReversion) OnOrderFilled(order *core.Order) {
	if order.Symbol != s.symbol {
		return
	}
	switch order.Side {
	case core.SideBuy:
		s.inPosition = true
		s.entryPrice = order.Price
	case core.SideSell:
		s.inPosition = false
		s.entryPrice = 0
	}
}

func (s *MeanReversion) zscore(price float64) float64 {
	mean := last(talib.Sma(s.closes, s.lookback))
	std := math.Max(last(talib.StdDev(s.closes, s.lookback, 1.0)), 0.0001)
	return (price - mean) / std
}

func (s *MeanReversion) shouldExit(price, zscore float64) bool {
	if s.entryPrice <= 0 {
		return false
	}
	pnlPct := (price - s.entryPrice) / s.entryPrice

	if pnlPct >= s.takeProfitPct {
		return true
	}
	if pnlPct <= -s.stopLossPct {
		return true
	}
	// Reversion has mostly played out.
	return math.Abs(zscore) < s.zscoreThreshold*0.5
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}
