package order

import (
	"sync"

	"github.com/rxtech-lab/argo-engine/internal/event"
	"github.com/rxtech-lab/argo-engine/internal/types"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
)

// Simple is a single limit or stop order.
type Simple struct {
	id          string
	parentID    string
	role        Role
	instrument  string
	quantity    float64
	direction   types.Direction
	execType    types.ExecType
	targetPrice float64

	mu              sync.Mutex
	status          types.OrderStatus
	filledQuantity  float64
	avgFillPrice    float64
	totalCommission float64

	statusChanged *event.Signal[StatusChange]
	filled        *event.Signal[FillEvent]
}

// NewSimple creates an untransmitted standalone order.
func NewSimple(gen IDGenerator, instrument string, direction types.Direction, execType types.ExecType, quantity float64, targetPrice float64) (*Simple, error) {
	if err := validateLeg(instrument, direction, execType, quantity, targetPrice); err != nil {
		return nil, err
	}

	return newSimple(gen.NextID(), "", RoleStandalone, instrument, direction, execType, quantity, targetPrice), nil
}

func newSimple(id string, parentID string, role Role, instrument string, direction types.Direction, execType types.ExecType, quantity float64, targetPrice float64) *Simple {
	return &Simple{
		id:              id,
		parentID:        parentID,
		role:            role,
		instrument:      instrument,
		quantity:        quantity,
		direction:       direction,
		execType:        execType,
		targetPrice:     targetPrice,
		mu:              sync.Mutex{},
		status:          types.OrderStatusUnTransmitted,
		filledQuantity:  0,
		avgFillPrice:    0,
		totalCommission: 0,
		statusChanged:   event.NewSignal[StatusChange](),
		filled:          event.NewSignal[FillEvent](),
	}
}

func validateLeg(instrument string, direction types.Direction, execType types.ExecType, quantity float64, targetPrice float64) error {
	if instrument == "" {
		return errors.New(errors.ErrCodeInvalidParameter, "instrument is required")
	}

	if !direction.Valid() {
		return errors.Newf(errors.ErrCodeInvalidParameter, "invalid direction %q", direction)
	}

	if !execType.Valid() {
		return errors.Newf(errors.ErrCodeInvalidParameter, "invalid execution type %q", execType)
	}

	if quantity <= 0 {
		return errors.Newf(errors.ErrCodeInvalidQuantity, "quantity must be positive, got %v", quantity)
	}

	if targetPrice <= 0 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "target price must be positive, got %v", targetPrice)
	}

	return nil
}

func (o *Simple) sealed() {}

// ID implements Order.
func (o *Simple) ID() string { return o.id }

// ParentID is the id of the owning bracket, empty for standalone orders.
func (o *Simple) ParentID() string { return o.parentID }

// Role reports where the order sits.
func (o *Simple) Role() Role { return o.role }

// Instrument implements Order.
func (o *Simple) Instrument() string { return o.instrument }

// Quantity implements Order.
func (o *Simple) Quantity() float64 { return o.quantity }

// Direction implements Order.
func (o *Simple) Direction() types.Direction { return o.direction }

// ExecType implements Order.
func (o *Simple) ExecType() types.ExecType { return o.execType }

// TargetPrice implements Order.
func (o *Simple) TargetPrice() float64 { return o.targetPrice }

// EffectiveDirection is the side of the market whose move triggers the order:
// the order's own direction for limits and the opposite one for stops.
func (o *Simple) EffectiveDirection() types.Direction {
	if o.execType == types.ExecTypeStop {
		return o.direction.Opposite()
	}

	return o.direction
}

// Status implements Order.
func (o *Simple) Status() types.OrderStatus {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.status
}

// FilledQuantity implements Order.
func (o *Simple) FilledQuantity() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.filledQuantity
}

// AvgFillPrice implements Order.
func (o *Simple) AvgFillPrice() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.avgFillPrice
}

// TotalCommission implements Order.
func (o *Simple) TotalCommission() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.totalCommission
}

// StatusChanged implements Order.
func (o *Simple) StatusChanged() *event.Signal[StatusChange] { return o.statusChanged }

// Filled implements Order.
func (o *Simple) Filled() *event.Signal[FillEvent] { return o.filled }

// SetTransmitted implements Order.
func (o *Simple) SetTransmitted() error {
	o.mu.Lock()
	old := o.status
	if old != types.OrderStatusUnTransmitted {
		o.mu.Unlock()

		return errNotUnTransmitted(o.id, old)
	}
	o.status = types.OrderStatusAccepted
	o.mu.Unlock()

	o.statusChanged.Emit(StatusChange{
		OrderID: o.id,
		Old:     old,
		New:     types.OrderStatusAccepted,
	})

	return nil
}

// SetFilled records cumulative fill data. filledQuantity is the total filled
// so far, not the increment. A fill event is emitted for every call; the order
// becomes Filled once filledQuantity reaches the requested quantity.
func (o *Simple) SetFilled(avgPrice float64, totalCommission float64, filledQuantity float64) error {
	o.mu.Lock()

	switch {
	case o.status == types.OrderStatusUnTransmitted || o.status.IsTerminal():
		status := o.status
		o.mu.Unlock()

		return errors.Newf(errors.ErrCodeInvalidOrderState, "cannot fill order %s in state %s", o.id, status)
	case filledQuantity > o.quantity:
		o.mu.Unlock()

		return errors.Newf(errors.ErrCodeOverfill, "order %s: filled quantity %v exceeds requested %v", o.id, filledQuantity, o.quantity)
	case filledQuantity < o.filledQuantity:
		previous := o.filledQuantity
		o.mu.Unlock()

		return errors.Newf(errors.ErrCodeInvalidQuantity, "order %s: filled quantity %v is below previous %v", o.id, filledQuantity, previous)
	}

	increment := filledQuantity - o.filledQuantity
	commission := totalCommission - o.totalCommission
	incrementPrice := avgPrice
	if increment > 0 {
		incrementPrice = (avgPrice*filledQuantity - o.avgFillPrice*o.filledQuantity) / increment
	}
	o.filledQuantity = filledQuantity
	o.avgFillPrice = avgPrice
	o.totalCommission = totalCommission
	complete := filledQuantity == o.quantity
	o.mu.Unlock()

	if complete {
		o.SetState(types.OrderStatusFilled)
	}

	o.filled.Emit(FillEvent{
		OrderID:        o.id,
		ParentID:       o.parentID,
		Role:           o.role,
		Instrument:     o.instrument,
		Direction:      o.direction,
		Increment:      increment,
		Price:          avgPrice,
		IncrementPrice: incrementPrice,
		Commission:     commission,
		Complete:       complete,
	})

	return nil
}

// SetCancelled implements Order.
func (o *Simple) SetCancelled() {
	o.SetState(types.OrderStatusCancelled)
}

// SetState is the low-level transition every other transition goes through.
// It emits a StatusChange when the status actually changes.
func (o *Simple) SetState(newState types.OrderStatus) {
	o.mu.Lock()
	old := o.status
	o.status = newState
	o.mu.Unlock()

	if old == newState {
		return
	}

	o.statusChanged.Emit(StatusChange{
		OrderID: o.id,
		Old:     old,
		New:     newState,
	})
}
