package main

import (
	"fmt"
	"os"

	"github.com/raykavin/backsim"
	"github.com/raykavin/backsim/pkg/backtest"
	"github.com/spf13/cobra"
)

// Command line flags
var (
	dataFile   string
	timeframe  string
	symbol     string
	balance    float64
	cachePath  string
	outputFile string
	tickData   bool
	slippage   int
	fee        int

	// Walk-forward flags
	trainDays int64
	testDays  int64
	stepDays  int64
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "backsim",
		Short:   "Backtesting and walk-forward evaluation for trading strategies",
		Version: "1.0.0",
	}

	rootCmd.AddCommand(buildBacktestCmd())
	rootCmd.AddCommand(buildWalkForwardCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildBacktestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run a single backtest over a CSV data file",
		RunE:  runBacktest,
	}

	cmd.Flags().StringVarP(&dataFile, "data", "d", "", "CSV data file")
	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "1h", "Timeframe label (e.g. 1h)")
	cmd.Flags().StringVarP(&symbol, "symbol", "s", "UNK/UNK", "Symbol label")
	cmd.Flags().Float64VarP(&balance, "balance", "b", 10_000, "Starting balance")
	cmd.Flags().StringVarP(&cachePath, "cache", "c", "", "Backtest cache path (empty disables caching)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Equity curve CSV output path")
	cmd.Flags().BoolVar(&tickData, "ticks", false, "Read the file as tick data (timestamp,price,qty)")
	cmd.Flags().IntVar(&slippage, "slippage-bps", 0, "Per-trade slippage in basis points")
	cmd.Flags().IntVar(&fee, "fee-bps", 8, "Trading fee in basis points")

	cmd.MarkFlagRequired("data")

	return cmd
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	report, err := backsim.SimpleBacktest(cmd.Context(), backsim.SimpleBacktestOptions{
		DataFile:        dataFile,
		Timeframe:       timeframe,
		Symbol:          symbol,
		StartingBalance: balance,
		CachePath:       cachePath,
		TickData:        tickData,
		SlippageBPS:     slippage,
		FeeBPS:          fee,
		ShowProgress:    true,
	})
	if err != nil {
		return err
	}

	report.Print(os.Stdout)

	if outputFile != "" {
		if err := report.WriteCSV(outputFile); err != nil {
			return fmt.Errorf("write report CSV: %w", err)
		}
		backsim.DefaultLog.Infof("equity curve written to %s", outputFile)
	}

	return nil
}

func buildWalkForwardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "walkforward",
		Short: "Run walk-forward evaluation over a CSV data file",
		RunE:  runWalkForward,
	}

	cmd.Flags().StringVarP(&dataFile, "data", "d", "", "CSV data file")
	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "1h", "Timeframe label (e.g. 1h)")
	cmd.Flags().StringVarP(&symbol, "symbol", "s", "UNK/UNK", "Symbol label")
	cmd.Flags().Float64VarP(&balance, "balance", "b", 10_000, "Starting balance per window")
	cmd.Flags().Int64Var(&trainDays, "train-days", 90, "Training window span in days")
	cmd.Flags().Int64Var(&testDays, "test-days", 30, "Test window span in days")
	cmd.Flags().Int64Var(&stepDays, "step-days", 30, "Step between windows in days")

	cmd.MarkFlagRequired("data")

	return cmd
}

func runWalkForward(cmd *cobra.Command, _ []string) error {
	harness := &backtest.WalkForward{
		Provider:  backtest.NewCSVProvider(symbol, nil, backsim.DefaultLog),
		Timeframe: timeframe,
		Config: backtest.WalkForwardConfig{
			TrainDays: trainDays,
			TestDays:  testDays,
			StepDays:  stepDays,
		},
		StartingBalance: balance,
		Log:             backsim.DefaultLog,
	}

	reports, err := harness.Run(cmd.Context(), dataFile)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		backsim.DefaultLog.Warn("dataset shorter than train+test: no windows evaluated")
		return nil
	}

	for i, report := range reports {
		fmt.Printf("===== WINDOW %d =====\n", i+1)
		report.Print(os.Stdout)
	}

	return nil
}
