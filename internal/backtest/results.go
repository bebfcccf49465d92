package backtest

import (
	"os"
	"path/filepath"

	"github.com/rxtech-lab/argo-engine/internal/backtest/writers"
	"github.com/rxtech-lab/argo-engine/internal/logger"
	"github.com/rxtech-lab/argo-engine/internal/types"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
	"go.uber.org/zap"
)

// Result file names inside a results folder.
const (
	StatsFile        = "stats.yaml"
	OriginalBarsFile = "original_bars.csv"
	ReplayedBarsFile = "replayed_bars.csv"
	BarsParquetFile  = "bars.parquet"
	OrdersFile       = "orders.parquet"
	TradesFile       = "trades.parquet"
)

// WriteResults writes the summary, both bar series and the order and trade
// tables into folder, creating it if needed.
func WriteResults(result *Result, folder string, log *logger.Logger) error {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestWriteFailed, "failed to create results folder", err)
	}

	if err := types.WriteTradeSummary(filepath.Join(folder, StatsFile), result.Summary); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestWriteFailed, "failed to write stats", err)
	}

	if err := writeBarsCSV(filepath.Join(folder, OriginalBarsFile), result.OriginalBars); err != nil {
		return err
	}

	if err := writeBarsCSV(filepath.Join(folder, ReplayedBarsFile), result.ReplayedBars); err != nil {
		return err
	}

	if err := writers.WriteBars(filepath.Join(folder, BarsParquetFile), result.Summary.Symbol, result.OriginalBars); err != nil {
		return err
	}

	if err := writers.WriteOrders(filepath.Join(folder, OrdersFile), result.Orders, log); err != nil {
		return err
	}

	if err := writers.WriteTrades(filepath.Join(folder, TradesFile), result.Fills, log); err != nil {
		return err
	}

	log.Named("backtest").Info("results written", zap.String("folder", folder), zap.String("run_id", result.RunID))

	return nil
}

func writeBarsCSV(path string, bars []types.Bar) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeBacktestWriteFailed, "failed to create bar file", err)
	}

	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrap(errors.ErrCodeBacktestWriteFailed, "failed to close bar file", cerr)
		}
	}()

	return types.WriteBars(f, bars)
}
