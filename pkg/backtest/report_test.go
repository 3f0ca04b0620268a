package backtest

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	report := &Report{EquityCurve: []float64{10_000, 10_100, 10_050}}
	path := filepath.Join(t.TempDir(), "equity.csv")

	require.NoError(t, report.WriteCSV(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"index", "equity"}, rows[0])
	assert.Equal(t, []string{"1", "10100"}, rows[2])
}

func TestPrint(t *testing.T) {
	report := &Report{
		StartingBalance: 10_000,
		EndingBalance:   10_250,
		RealizedPnL:     250,
		MaxDrawdown:     0.015,
		TotalTrades:     4,
		WinningTrades:   3,
		Returns:         []float64{0.01, -0.005, 0.02, 0.0},
		Sharpe:          1.2,
		Payoff:          1.8,
		ProfitFactor:    2.4,
	}

	var buf bytes.Buffer
	report.Print(&buf)

	out := buf.String()
	assert.Contains(t, out, "Start Balance")
	assert.Contains(t, out, "10250.00")
	assert.Contains(t, out, "3 (75.0 %)")
	assert.Contains(t, out, "Payoff")
	assert.Contains(t, out, "2.40")
	assert.Contains(t, out, "RETURNS")
}

func TestPrintEmptyReturns(t *testing.T) {
	var buf bytes.Buffer
	(&Report{StartingBalance: 1_000, EndingBalance: 1_000}).Print(&buf)
	assert.NotContains(t, buf.String(), "RETURNS")
}
