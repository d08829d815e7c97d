package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	flag "github.com/spf13/pflag"

	"binaryOptionsBot/internal/domain"
	"binaryOptionsBot/internal/strategy/analytics"
	"binaryOptionsBot/internal/utils"
)

func main() {
	dir := flag.StringP("dir", "d", "data", "directory holding backtest trade CSVs")
	prefix := flag.String("prefix", "backtest_trades_", "trade file name prefix")
	initialFunds := flag.Float64("initial-funds", 1000, "starting balance for drawdown and ROI")
	flag.Parse()

	// Find all backtest trade files
	files, err := findBacktestFiles(*dir, *prefix)
	if err != nil {
		log.Fatalf("Error finding backtest files: %v", err)
	}

	if len(files) == 0 {
		log.Println("No backtest files found. Run the backtest runner first.")
		return
	}

	// Create a tabwriter for formatted output
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Strategy\tTrades\tWinRate\tAvgWin\tAvgLoss\tTotalPnL\tMaxDD\tPF\tSharpe\tExpectancy\t")

	reports := make(map[string]*analytics.PerformanceMetrics, len(files))
	for _, file := range files {
		trades, err := utils.ReadTradesFromCSV(file)
		if err != nil {
			log.Printf("Error reading trades from %s: %v", file, err)
			continue
		}

		name := strategyFromFilename(file, *prefix)
		m := analytics.AnalyzePerformance(trades, *initialFunds)
		reports[name] = m

		fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.4f\t%.2f\t%.3f\t%.3f\t\n",
			name,
			m.TotalTrades,
			m.WinRate*100,
			m.AverageWin,
			m.AverageLoss,
			m.TotalProfit,
			m.MaxDrawdown,
			m.ProfitFactor,
			m.SharpeRatio,
			m.Expectancy,
		)
	}
	w.Flush()

	fmt.Println("\n## Direction Breakdown")
	printDirections(reports)

	fmt.Println("\n## Streaks")
	for _, name := range sortedNames(reports) {
		m := reports[name]
		fmt.Printf("%s: best run %d wins, worst run %d losses, avg duration %s\n",
			name, m.MaxConsecutiveWins, m.MaxConsecutiveLosses, m.AverageTradeDuration)
	}
}

// findBacktestFiles finds all backtest trade files in the specified directory
func findBacktestFiles(dir, prefix string) ([]string, error) {
	var files []string

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) && strings.HasSuffix(entry.Name(), ".csv") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// strategyFromFilename extracts the strategy ID from a filename
// e.g., backtest_trades_momentum-1.csv -> momentum-1
func strategyFromFilename(filename, prefix string) string {
	return strings.TrimSuffix(strings.TrimPrefix(filepath.Base(filename), prefix), ".csv")
}

func sortedNames(reports map[string]*analytics.PerformanceMetrics) []string {
	names := make([]string, 0, len(reports))
	for name := range reports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func printDirections(reports map[string]*analytics.PerformanceMetrics) {
	fmt.Println("Strategy\tDirection\tTrades\tWinRate\tPnL")
	for _, name := range sortedNames(reports) {
		for _, dir := range []domain.Direction{domain.DirectionUp, domain.DirectionDown} {
			ds, ok := reports[name].ByDirection[dir]
			if !ok {
				continue
			}
			fmt.Printf("%s\t%s\t%d\t%.2f\t%.2f\n", name, dir, ds.Trades, ds.WinRate*100, ds.Profit)
		}
	}
}
