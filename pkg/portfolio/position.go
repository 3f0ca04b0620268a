package portfolio

import "math"

// epsilon is the threshold under which a position size is considered flat.
var epsilon = math.Nextafter(1, 2) - 1

// Position tracks a single spot-long holding: its size, weighted average
// entry price and the profit realized against it so far. It is mutated only
// through UpdateOnBuy and UpdateOnSell.
type Position struct {
	Size              float64
	AverageEntryPrice float64
	RealizedPnL       float64
}

// UpdateOnBuy increases the position and recomputes the weighted average
// entry price.
func (p *Position) UpdateOnBuy(qty, price float64) {
	newSize := p.Size + qty
	if math.Abs(newSize) < epsilon {
		p.AverageEntryPrice = 0
	} else {
		p.AverageEntryPrice = (p.Size*p.AverageEntryPrice + qty*price) / newSize
	}
	p.Size = newSize
}

// UpdateOnSell realizes profit on min(qty, size) against the average entry
// price and returns the realized amount. Selling beyond the held size
// realizes nothing on the excess. When the position goes flat the average
// entry price resets to zero.
func (p *Position) UpdateOnSell(qty, price float64) float64 {
	closeQty := math.Min(qty, p.Size)
	pnl := (price - p.AverageEntryPrice) * closeQty
	p.Size -= closeQty
	if math.Abs(p.Size) < epsilon {
		p.AverageEntryPrice = 0
	}
	p.RealizedPnL += pnl
	return pnl
}

// UnrealizedPnL values the open size against the given mark price.
func (p *Position) UnrealizedPnL(currentPrice float64) float64 {
	return (currentPrice - p.AverageEntryPrice) * p.Size
}
