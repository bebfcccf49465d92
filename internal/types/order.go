package types

// Direction is the side of an order.
type Direction string

// ExecType is how an order is executed once it reaches its target price.
type ExecType string

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

const (
	ExecTypeLimit ExecType = "LIMIT"
	ExecTypeStop  ExecType = "STOP"
)

const (
	OrderStatusUnTransmitted     OrderStatus = "UN_TRANSMITTED"
	OrderStatusShortLocatingHold OrderStatus = "SHORT_LOCATING_HOLD"
	OrderStatusPendingAccept     OrderStatus = "PENDING_ACCEPT"
	OrderStatusAccepted          OrderStatus = "ACCEPTED"
	OrderStatusPendingCancel     OrderStatus = "PENDING_CANCEL"
	OrderStatusFilled            OrderStatus = "FILLED"
	OrderStatusCancelled         OrderStatus = "CANCELLED"
)

// Opposite returns the other side.
func (d Direction) Opposite() Direction {
	if d == DirectionBuy {
		return DirectionSell
	}

	return DirectionBuy
}

// Sign returns +1 for buys and -1 for sells.
func (d Direction) Sign() float64 {
	if d == DirectionBuy {
		return 1
	}

	return -1
}

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool {
	return d == DirectionBuy || d == DirectionSell
}

// Valid reports whether e is one of the known execution types.
func (e ExecType) Valid() bool {
	return e == ExecTypeLimit || e == ExecTypeStop
}

// IsTerminal is true for Filled and Cancelled.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled
}
