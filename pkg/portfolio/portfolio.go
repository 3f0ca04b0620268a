package portfolio

import "math"

// Portfolio is the in-memory accounting ledger used during a simulation
// run: cash, per-symbol positions and the running realized PnL total. One
// instance is created per run and discarded once the report is assembled.
type Portfolio struct {
	Cash        float64
	Positions   map[string]*Position
	RealizedPnL float64
}

func New(startingCash float64) *Portfolio {
	return &Portfolio{
		Cash:      startingCash,
		Positions: make(map[string]*Position),
	}
}

// UpdateOnBuy debits cash by qty*price and grows the symbol position.
// Quantity and price are caller-validated; the simulator never applies
// non-positive values.
func (p *Portfolio) UpdateOnBuy(symbol string, qty, price float64) {
	p.Cash -= qty * price
	pos, ok := p.Positions[symbol]
	if !ok {
		pos = &Position{}
		p.Positions[symbol] = pos
	}
	pos.UpdateOnBuy(qty, price)
}

// UpdateOnSell credits cash by qty*price, realizes PnL on the held size and
// returns the realized amount. A sell with no matching position (or beyond
// the held size) still credits cash with zero PnL attribution; this
// pass-through is intentional. Flat positions are evicted from the map.
func (p *Portfolio) UpdateOnSell(symbol string, qty, price float64) float64 {
	p.Cash += qty * price

	pos, ok := p.Positions[symbol]
	if !ok {
		return 0
	}

	pnl := pos.UpdateOnSell(qty, price)
	p.RealizedPnL += pnl

	if math.Abs(pos.Size) < epsilon {
		delete(p.Positions, symbol)
	}
	return pnl
}

// Equity marks the ledger to the given price map: cash plus the value of
// every position with a resolvable price. Symbols missing from the map
// contribute nothing.
func (p *Portfolio) Equity(prices map[string]float64) float64 {
	equity := p.Cash
	for symbol, pos := range p.Positions {
		if price, ok := prices[symbol]; ok {
			equity += pos.Size * price
		}
	}
	return equity
}
