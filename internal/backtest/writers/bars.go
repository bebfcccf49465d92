// Package writers exports backtest results as parquet files.
package writers

import (
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/rxtech-lab/argo-engine/internal/types"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
)

// BarRecord is the parquet schema of an exported bar. Files in this layout
// can be replayed by the replay broker.
type BarRecord struct {
	Symbol         string  `parquet:"symbol"`
	Time           int64   `parquet:"time,timestamp(millisecond)"` // Unix ms
	BarSizeSeconds int64   `parquet:"bar_size_seconds"`
	Open           float64 `parquet:"open"`
	High           float64 `parquet:"high"`
	Low            float64 `parquet:"low"`
	Close          float64 `parquet:"close"`
	Volume         float64 `parquet:"volume"`
	Trades         int64   `parquet:"trades"`
	WAP            float64 `parquet:"wap"`
}

// WriteBars writes bars to a parquet file at path.
func WriteBars(path string, symbol string, bars []types.Bar) error {
	records := make([]BarRecord, 0, len(bars))

	for _, b := range bars {
		records = append(records, BarRecord{
			Symbol:         symbol,
			Time:           b.Time.UnixMilli(),
			BarSizeSeconds: int64(b.BarSizeSeconds),
			Open:           b.Open,
			High:           b.High,
			Low:            b.Low,
			Close:          b.Close,
			Volume:         b.Volume,
			Trades:         b.Trades,
			WAP:            b.WAP,
		})
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestWriteFailed, "failed to create bar folder", err)
	}

	if err := parquet.WriteFile(path, records); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestWriteFailed, "failed to write bars parquet", err)
	}

	return nil
}

// ReadBars reads a file written by WriteBars.
func ReadBars(path string) ([]types.Bar, error) {
	records, err := parquet.ReadFile[BarRecord](path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMarketDataParseFailed, "failed to read bars parquet", err)
	}

	bars := make([]types.Bar, 0, len(records))

	for _, r := range records {
		bars = append(bars, types.NewBar(int(r.BarSizeSeconds), time.UnixMilli(r.Time), r.Open, r.High, r.Low, r.Close, r.Volume, r.Trades, r.WAP))
	}

	return bars, nil
}
