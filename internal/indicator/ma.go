// Package indicator computes technical indicators over candles.
package indicator

import (
	"github.com/rxtech-lab/argo-engine/internal/types"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
)

// SMA returns the simple moving average of the closes of the last period
// candles.
func SMA(candles []types.Bar, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "period must be a positive integer, got %d", period)
	}

	if len(candles) < period {
		return 0, errors.Newf(errors.ErrCodeDataNotFound, "SMA(%d) needs %d candles, got %d", period, period, len(candles))
	}

	sum := 0.0
	for _, c := range candles[len(candles)-period:] {
		sum += c.Close
	}

	return sum / float64(period), nil
}
