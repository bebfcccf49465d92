package position

import "maps"

// DefaultMultipliers is the closed table of contract multipliers. Equities
// move one unit of currency per point; index futures carry their contract size.
var DefaultMultipliers = map[string]float64{
	"AAPL":  1,
	"MSFT":  1,
	"SPY":   1,
	"QQQ":   1,
	"TSLA":  1,
	"NVDA":  1,
	"AMZN":  1,
	"GOOGL": 1,
	"META":  1,
	"IWM":   1,
	"ES":    50,
	"MES":   5,
	"NQ":    20,
	"MNQ":   2,
	"YM":    5,
	"RTY":   50,
}

func copyMultipliers(table map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(table))
	maps.Copy(out, table)

	return out
}
