package broker

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-engine/internal/order"
	"github.com/rxtech-lab/argo-engine/internal/types"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
)

// WireOrder is a single leg as sent to a venue.
type WireOrder struct {
	ID         string          `json:"id" validate:"required"`
	ParentID   string          `json:"parent_id,omitempty"`
	Role       order.Role      `json:"role" validate:"required,oneof=standalone entry profit_taker stop_loss"`
	Instrument string          `json:"instrument" validate:"required"`
	Direction  types.Direction `json:"direction" validate:"required,oneof=BUY SELL"`
	ExecType   types.ExecType  `json:"exec_type" validate:"required,oneof=LIMIT STOP"`
	Quantity   float64         `json:"quantity" validate:"required,gt=0"`
	Price      float64         `json:"price" validate:"required,gt=0"`
}

// NewWireOrder converts a leaf order.
func NewWireOrder(o *order.Simple) WireOrder {
	return WireOrder{
		ID:         o.ID(),
		ParentID:   o.ParentID(),
		Role:       o.Role(),
		Instrument: o.Instrument(),
		Direction:  o.Direction(),
		ExecType:   o.ExecType(),
		Quantity:   o.Quantity(),
		Price:      o.TargetPrice(),
	}
}

// WireOrders flattens an order into legs, entry first for brackets.
func WireOrders(o order.Order) []WireOrder {
	legs := order.Flatten(o)
	out := make([]WireOrder, 0, len(legs))

	for _, leg := range legs {
		out = append(out, NewWireOrder(leg))
	}

	return out
}

// Validate checks the struct tags.
func (w WireOrder) Validate() error {
	validate := validator.New()
	if err := validate.Struct(w); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidWireOrder, "invalid wire order", err)
	}

	return nil
}

// OrderStatusUpdate is a venue report about one leg.
type OrderStatusUpdate struct {
	OrderID string
	Status  types.OrderStatus
	// FilledQuantity, AvgFillPrice and TotalCommission are cumulative and only
	// meaningful for fill reports.
	FilledQuantity  float64
	AvgFillPrice    float64
	TotalCommission float64
}

// OrderGateway places and cancels legs at a venue.
type OrderGateway interface {
	PlaceOrder(ctx context.Context, order WireOrder) error
	CancelOrder(ctx context.Context, orderID string) error
}
