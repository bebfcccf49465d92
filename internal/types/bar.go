package types

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rxtech-lab/argo-engine/pkg/errors"
)

// BarCSVHeader is the header row of the bar-series text export.
const BarCSVHeader = "datetime,high,open,close,low,volume,trades,wap"

const barColumns = 8

// Bar summarises one fixed-size interval of trading.
type Bar struct {
	// BarSizeSeconds is the width of the interval the bar covers.
	BarSizeSeconds int `yaml:"bar_size_seconds" json:"bar_size_seconds" parquet:"bar_size_seconds"`
	// Time is the start of the interval, always UTC.
	Time   time.Time `yaml:"time" json:"time" parquet:"time"`
	Open   float64   `yaml:"open" json:"open" parquet:"open"`
	High   float64   `yaml:"high" json:"high" parquet:"high"`
	Low    float64   `yaml:"low" json:"low" parquet:"low"`
	Close  float64   `yaml:"close" json:"close" parquet:"close"`
	Volume float64   `yaml:"volume" json:"volume" parquet:"volume"`
	Trades int64     `yaml:"trades" json:"trades" parquet:"trades"`
	// WAP is the volume weighted average price of the interval.
	WAP float64 `yaml:"wap" json:"wap" parquet:"wap"`
}

// NewBar builds a Bar and normalises its timestamp to UTC.
func NewBar(barSizeSeconds int, t time.Time, open, high, low, closePrice, volume float64, trades int64, wap float64) Bar {
	return Bar{
		BarSizeSeconds: barSizeSeconds,
		Time:           t.UTC(),
		Open:           open,
		High:           high,
		Low:            low,
		Close:          closePrice,
		Volume:         volume,
		Trades:         trades,
		WAP:            wap,
	}
}

// End returns the end of the interval covered by the bar.
func (b Bar) End() time.Time {
	return b.Time.Add(time.Duration(b.BarSizeSeconds) * time.Second)
}

// FormatBarRow renders a bar in the column order of BarCSVHeader.
func FormatBarRow(b Bar) string {
	return strings.Join(barRecord(b), ",")
}

// ParseBarRow parses a comma-delimited row in the column order of BarCSVHeader.
func ParseBarRow(row string, barSizeSeconds int) (Bar, error) {
	return parseBarRecord(strings.Split(strings.TrimSpace(row), ","), barSizeSeconds)
}

// WriteBars writes the header followed by one row per bar.
func WriteBars(w io.Writer, bars []Bar) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(strings.Split(BarCSVHeader, ",")); err != nil {
		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to write bar header", err)
	}

	for _, b := range bars {
		if err := writer.Write(barRecord(b)); err != nil {
			return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to write bar row", err)
		}
	}

	writer.Flush()

	if err := writer.Error(); err != nil {
		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to flush bars", err)
	}

	return nil
}

// ReadBars reads rows written by WriteBars. The header row is optional.
func ReadBars(r io.Reader, barSizeSeconds int) ([]Bar, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = barColumns
	reader.TrimLeadingSpace = true

	var bars []Bar

	line := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}

		line++

		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "failed to read bar row %d", line)
		}

		if line == 1 && record[0] == "datetime" {
			continue
		}

		bar, err := parseBarRecord(record, barSizeSeconds)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "invalid bar row %d", line)
		}

		bars = append(bars, bar)
	}

	return bars, nil
}

func barRecord(b Bar) []string {
	return []string{
		b.Time.UTC().Format(time.RFC3339Nano),
		formatFloat(b.High),
		formatFloat(b.Open),
		formatFloat(b.Close),
		formatFloat(b.Low),
		formatFloat(b.Volume),
		strconv.FormatInt(b.Trades, 10),
		formatFloat(b.WAP),
	}
}

func parseBarRecord(fields []string, barSizeSeconds int) (Bar, error) {
	if len(fields) != barColumns {
		return Bar{}, errors.Newf(errors.ErrCodeInvalidBarRow, "expected %d columns, got %d", barColumns, len(fields))
	}

	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(fields[0]))
	if err != nil {
		return Bar{}, errors.Wrap(errors.ErrCodeInvalidBarRow, "invalid datetime", err)
	}

	values := make([]float64, 0, 6)

	for _, idx := range []int{1, 2, 3, 4, 5, 7} {
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[idx]), 64)
		if err != nil {
			return Bar{}, errors.Wrapf(errors.ErrCodeInvalidBarRow, err, "invalid number in column %d", idx)
		}

		values = append(values, v)
	}

	trades, err := strconv.ParseInt(strings.TrimSpace(fields[6]), 10, 64)
	if err != nil {
		return Bar{}, errors.Wrap(errors.ErrCodeInvalidBarRow, "invalid trade count", err)
	}

	// values: high, open, close, low, volume, wap
	return NewBar(barSizeSeconds, t, values[1], values[0], values[3], values[2], values[4], trades, values[5]), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// String implements fmt.Stringer.
func (b Bar) String() string {
	return fmt.Sprintf("%s %ds O:%s H:%s L:%s C:%s V:%s", b.Time.Format(time.RFC3339), b.BarSizeSeconds,
		formatFloat(b.Open), formatFloat(b.High), formatFloat(b.Low), formatFloat(b.Close), formatFloat(b.Volume))
}
