package backtest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"
	"github.com/raykavin/backsim/pkg/core"
)

// SimulatedTrade records a single fill executed against the ledger.
type SimulatedTrade struct {
	Timestamp int64
	Symbol    string
	Side      core.Side
	Quantity  float64
	Price     float64
	PnL       float64
}

// Report is the immutable result of one backtest run. It is assembled once
// at the end of the simulation, persisted verbatim to the report cache and
// never mutated afterwards.
type Report struct {
	StartingBalance float64   `json:"starting_balance"`
	EndingBalance   float64   `json:"ending_balance"`
	RealizedPnL     float64   `json:"realized_pnl"`
	MaxDrawdown     float64   `json:"max_drawdown"`
	TotalTrades     int       `json:"total_trades"`
	WinningTrades   int       `json:"winning_trades"`
	EquityCurve     []float64 `json:"equity_curve"`
	Returns         []float64 `json:"returns"`
	Sharpe          float64   `json:"sharpe"`
	Payoff          float64   `json:"payoff"`
	ProfitFactor    float64   `json:"profit_factor"`
}

// WriteCSV exports the equity curve as index,equity rows.
func (r *Report) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"index", "equity"}); err != nil {
		return err
	}
	for i, equity := range r.EquityCurve {
		row := []string{strconv.Itoa(i), strconv.FormatFloat(equity, 'f', -1, 64)}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Print writes a summary table followed by a histogram of per-bar returns.
func (r *Report) Print(w io.Writer) {
	winRate := 0.0
	if r.TotalTrades > 0 {
		winRate = float64(r.WinningTrades) / float64(r.TotalTrades) * 100
	}

	buffer := bytes.NewBuffer(nil)
	table := tablewriter.NewWriter(buffer)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Start Balance", fmt.Sprintf("%.2f", r.StartingBalance)})
	table.Append([]string{"End Balance", fmt.Sprintf("%.2f", r.EndingBalance)})
	table.Append([]string{"Realized PnL", fmt.Sprintf("%.2f", r.RealizedPnL)})
	table.Append([]string{"Max Drawdown", fmt.Sprintf("%.2f %%", r.MaxDrawdown*100)})
	table.Append([]string{"Total Trades", strconv.Itoa(r.TotalTrades)})
	table.Append([]string{"Winning Trades", fmt.Sprintf("%d (%.1f %%)", r.WinningTrades, winRate)})
	table.Append([]string{"Sharpe Ratio", fmt.Sprintf("%.2f", r.Sharpe)})
	table.Append([]string{"Payoff", fmt.Sprintf("%.2f", r.Payoff)})
	table.Append([]string{"Profit Factor", fmt.Sprintf("%.2f", r.ProfitFactor)})
	table.Render()
	fmt.Fprintln(w, buffer.String())

	if len(r.Returns) == 0 {
		return
	}

	fmt.Fprintln(w, "------ RETURNS -------")
	returnsPercent := make([]float64, len(r.Returns))
	for i, ret := range r.Returns {
		returnsPercent[i] = ret * 100
	}
	hist := histogram.Hist(15, returnsPercent)
	if err := histogram.Fprint(w, hist, histogram.Linear(10)); err != nil {
		fmt.Fprintf(w, "histogram render failed: %v\n", err)
	}
	fmt.Fprintln(w)
}
