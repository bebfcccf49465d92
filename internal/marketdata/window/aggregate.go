package window

import (
	"strings"

	"github.com/rxtech-lab/argo-engine/internal/types"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
)

// Aggregation selects how raw bars are folded into one candle.
type Aggregation string

const (
	// AggregateOHLC takes the first open, highest high, lowest low and last
	// close. Volume and trades are summed and WAP is volume weighted.
	AggregateOHLC Aggregation = "ohlc"
	// AggregateSum sums every field, prices included.
	AggregateSum Aggregation = "sum"
)

// ParseAggregation maps a config value to an Aggregation. Empty means ohlc.
func ParseAggregation(s string) (Aggregation, error) {
	switch Aggregation(strings.ToLower(strings.TrimSpace(s))) {
	case "", AggregateOHLC:
		return AggregateOHLC, nil
	case AggregateSum:
		return AggregateSum, nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidConfiguration, "unknown aggregation %q", s)
	}
}

func (a Aggregation) fold(width int, bars []types.Bar) types.Bar {
	if a == AggregateSum {
		return sumBars(width, bars)
	}

	return ohlcBars(width, bars)
}

func ohlcBars(width int, bars []types.Bar) types.Bar {
	first := bars[0]
	out := types.NewBar(width, first.Time, first.Open, first.High, first.Low, bars[len(bars)-1].Close, 0, 0, 0)

	weighted := 0.0
	wapSum := 0.0

	for _, b := range bars {
		out.High = max(out.High, b.High)
		out.Low = min(out.Low, b.Low)
		out.Volume += b.Volume
		out.Trades += b.Trades
		weighted += b.WAP * b.Volume
		wapSum += b.WAP
	}

	if out.Volume > 0 {
		out.WAP = weighted / out.Volume
	} else {
		out.WAP = wapSum / float64(len(bars))
	}

	return out
}

func sumBars(width int, bars []types.Bar) types.Bar {
	out := types.NewBar(width, bars[0].Time, 0, 0, 0, 0, 0, 0, 0)

	for _, b := range bars {
		out.Open += b.Open
		out.High += b.High
		out.Low += b.Low
		out.Close += b.Close
		out.Volume += b.Volume
		out.Trades += b.Trades
		out.WAP += b.WAP
	}

	return out
}
