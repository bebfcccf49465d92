package writers

import (
	"github.com/rxtech-lab/argo-engine/internal/logger"
	"github.com/rxtech-lab/argo-engine/internal/ordermanager"
)

const tradesDDL = `
	CREATE TABLE trades (
		order_id TEXT,
		parent_id TEXT,
		role TEXT,
		symbol TEXT,
		direction TEXT,
		bar_time TIMESTAMP,
		quantity DOUBLE,
		price DOUBLE,
		commission DOUBLE,
		complete BOOLEAN
	)
`

var tradeColumns = []string{
	"order_id", "parent_id", "role", "symbol", "direction", "bar_time",
	"quantity", "price", "commission", "complete",
}

// WriteTrades writes one row per fill to a parquet file at path. quantity is
// signed: negative for sales.
func WriteTrades(path string, fills []ordermanager.Fill, log *logger.Logger) (err error) {
	w, err := newTableWriter("trades", tradesDDL, log)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := w.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for _, f := range fills {
		err := w.insert(tradeColumns,
			f.OrderID,
			f.ParentID,
			string(f.Role),
			f.Instrument,
			string(f.Direction),
			f.Bar.Time.UTC(),
			f.SignedIncrement(),
			f.Price,
			f.Commission,
			f.Complete,
		)
		if err != nil {
			return err
		}
	}

	return w.finalize(path)
}
