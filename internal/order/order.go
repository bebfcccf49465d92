// Package order models trade orders: a closed set of variants (Simple and
// Bracket) sharing one state machine.
//
//	UnTransmitted -> Accepted -> Filled
//	                 Accepted -> Cancelled
//
// ShortLocatingHold, PendingAccept and PendingCancel are recognised states
// that only a live broker drives. Filled and Cancelled are terminal.
package order

import (
	"github.com/rxtech-lab/argo-engine/internal/event"
	"github.com/rxtech-lab/argo-engine/internal/types"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
)

// Order is implemented by *Simple and *Bracket only.
type Order interface {
	ID() string
	Instrument() string
	Quantity() float64
	Direction() types.Direction
	ExecType() types.ExecType
	TargetPrice() float64
	Status() types.OrderStatus
	FilledQuantity() float64
	AvgFillPrice() float64
	TotalCommission() float64

	// SetTransmitted moves the order from UnTransmitted to Accepted.
	SetTransmitted() error
	// SetCancelled moves the order to Cancelled regardless of its state.
	SetCancelled()

	// StatusChanged fires on every status transition.
	StatusChanged() *event.Signal[StatusChange]
	// Filled fires on every fill, partial or complete.
	Filled() *event.Signal[FillEvent]

	sealed()
}

// Role describes where a Simple order sits.
type Role string

const (
	RoleStandalone  Role = "standalone"
	RoleEntry       Role = "entry"
	RoleProfitTaker Role = "profit_taker"
	RoleStopLoss    Role = "stop_loss"
)

// StatusChange is emitted when an order changes status.
type StatusChange struct {
	OrderID string
	Old     types.OrderStatus
	New     types.OrderStatus
}

// FillEvent is emitted when an order receives a fill.
type FillEvent struct {
	OrderID string
	// ParentID is the bracket id for bracket legs, empty otherwise.
	ParentID   string
	Role       Role
	Instrument string
	Direction  types.Direction
	// Increment is the quantity filled by this event alone.
	Increment float64
	// Price is the average fill price reported with the event.
	Price float64
	// IncrementPrice is the price of this increment alone, derived from the
	// change in cumulative notional. It equals Price for a single full fill.
	IncrementPrice float64
	// Commission is the commission attributable to this increment.
	Commission float64
	// Complete is true when the order is now fully filled.
	Complete bool
}

// SignedIncrement returns the increment as a signed position change.
func (f FillEvent) SignedIncrement() float64 {
	return f.Increment * f.Direction.Sign()
}

func errNotUnTransmitted(id string, status types.OrderStatus) error {
	return errors.Newf(errors.ErrCodeInvalidOrderState,
		"can only transmit from untransmitted: order %s is %s", id, status)
}
