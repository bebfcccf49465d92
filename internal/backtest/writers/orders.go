package writers

import (
	"github.com/rxtech-lab/argo-engine/internal/logger"
	"github.com/rxtech-lab/argo-engine/internal/order"
)

const ordersDDL = `
	CREATE TABLE orders (
		order_id TEXT,
		parent_id TEXT,
		role TEXT,
		symbol TEXT,
		direction TEXT,
		exec_type TEXT,
		quantity DOUBLE,
		price DOUBLE,
		status TEXT,
		filled_quantity DOUBLE,
		avg_fill_price DOUBLE,
		commission DOUBLE
	)
`

var orderColumns = []string{
	"order_id", "parent_id", "role", "symbol", "direction", "exec_type",
	"quantity", "price", "status", "filled_quantity", "avg_fill_price", "commission",
}

// WriteOrders writes one row per leg to a parquet file at path. Bracket legs
// carry the bracket id as parent_id.
func WriteOrders(path string, orders []order.Order, log *logger.Logger) (err error) {
	w, err := newTableWriter("orders", ordersDDL, log)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := w.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for _, o := range orders {
		for _, leg := range order.Flatten(o) {
			err := w.insert(orderColumns,
				leg.ID(),
				leg.ParentID(),
				string(leg.Role()),
				leg.Instrument(),
				string(leg.Direction()),
				string(leg.ExecType()),
				leg.Quantity(),
				leg.TargetPrice(),
				string(leg.Status()),
				leg.FilledQuantity(),
				leg.AvgFillPrice(),
				leg.TotalCommission(),
			)
			if err != nil {
				return err
			}
		}
	}

	return w.finalize(path)
}
