package order

import (
	"sync"

	"github.com/rxtech-lab/argo-engine/internal/event"
	"github.com/rxtech-lab/argo-engine/internal/types"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
)

// BracketPhase tracks which legs of a bracket are live.
type BracketPhase string

const (
	// BracketEntryPending: only the entry can fill.
	BracketEntryPending BracketPhase = "entry_pending"
	// BracketWaitingForChildren: the entry filled, one exit is expected to fill.
	BracketWaitingForChildren BracketPhase = "waiting_for_children"
	// BracketDone: an exit filled or the bracket was cancelled.
	BracketDone BracketPhase = "done"
)

// Bracket is an entry order with a profit-taker and a stop-loss exit.
// Both exits trade the opposite direction of the entry for the same
// instrument and quantity.
type Bracket struct {
	id          string
	entry       *Simple
	profitTaker *Simple
	stopLoss    *Simple

	mu     sync.Mutex
	status types.OrderStatus
	phase  BracketPhase

	statusChanged *event.Signal[StatusChange]
	filled        *event.Signal[FillEvent]
	legs          event.Group
}

// NewBracket validates the prices and builds the bracket. For a BUY entry the
// profit price must be above and the stop price below the entry price; a SELL
// entry mirrors that.
func NewBracket(gen IDGenerator, instrument string, direction types.Direction, quantity float64, entryType types.ExecType, entryPrice float64, profitPrice float64, stopPrice float64) (*Bracket, error) {
	if err := validateLeg(instrument, direction, entryType, quantity, entryPrice); err != nil {
		return nil, err
	}

	if profitPrice <= 0 || stopPrice <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidBracketPricing, "profit and stop prices must be positive")
	}

	switch direction {
	case types.DirectionBuy:
		if profitPrice <= entryPrice {
			return nil, errors.Newf(errors.ErrCodeInvalidBracketPricing,
				"buy bracket profit price %v must be above entry price %v", profitPrice, entryPrice)
		}

		if stopPrice >= entryPrice {
			return nil, errors.Newf(errors.ErrCodeInvalidBracketPricing,
				"buy bracket stop price %v must be below entry price %v", stopPrice, entryPrice)
		}
	case types.DirectionSell:
		if profitPrice >= entryPrice {
			return nil, errors.Newf(errors.ErrCodeInvalidBracketPricing,
				"sell bracket profit price %v must be below entry price %v", profitPrice, entryPrice)
		}

		if stopPrice <= entryPrice {
			return nil, errors.Newf(errors.ErrCodeInvalidBracketPricing,
				"sell bracket stop price %v must be above entry price %v", stopPrice, entryPrice)
		}
	}

	id := gen.NextID()
	exit := direction.Opposite()

	b := &Bracket{
		id:            id,
		entry:         newSimple(gen.NextID(), id, RoleEntry, instrument, direction, entryType, quantity, entryPrice),
		profitTaker:   newSimple(gen.NextID(), id, RoleProfitTaker, instrument, exit, types.ExecTypeLimit, quantity, profitPrice),
		stopLoss:      newSimple(gen.NextID(), id, RoleStopLoss, instrument, exit, types.ExecTypeStop, quantity, stopPrice),
		mu:            sync.Mutex{},
		status:        types.OrderStatusUnTransmitted,
		phase:         BracketEntryPending,
		statusChanged: event.NewSignal[StatusChange](),
		filled:        event.NewSignal[FillEvent](),
		legs:          nil,
	}

	b.legs = event.Group{
		b.entry.Filled().Subscribe(b.onEntryFilled),
		b.profitTaker.Filled().Subscribe(b.onExitFilled),
		b.stopLoss.Filled().Subscribe(b.onExitFilled),
	}

	return b, nil
}

func (b *Bracket) sealed() {}

// ID implements Order.
func (b *Bracket) ID() string { return b.id }

// Entry returns the entry leg.
func (b *Bracket) Entry() *Simple { return b.entry }

// ProfitTaker returns the profit-taking exit leg.
func (b *Bracket) ProfitTaker() *Simple { return b.profitTaker }

// StopLoss returns the stop-loss exit leg.
func (b *Bracket) StopLoss() *Simple { return b.stopLoss }

// Legs returns entry, profit-taker and stop-loss in that order.
func (b *Bracket) Legs() []*Simple {
	return []*Simple{b.entry, b.profitTaker, b.stopLoss}
}

// Instrument implements Order.
func (b *Bracket) Instrument() string { return b.entry.Instrument() }

// Quantity implements Order.
func (b *Bracket) Quantity() float64 { return b.entry.Quantity() }

// Direction implements Order.
func (b *Bracket) Direction() types.Direction { return b.entry.Direction() }

// ExecType implements Order.
func (b *Bracket) ExecType() types.ExecType { return b.entry.ExecType() }

// TargetPrice implements Order.
func (b *Bracket) TargetPrice() float64 { return b.entry.TargetPrice() }

// FilledQuantity implements Order. It reports the entry's fill.
func (b *Bracket) FilledQuantity() float64 { return b.entry.FilledQuantity() }

// AvgFillPrice implements Order. It reports the entry's fill price.
func (b *Bracket) AvgFillPrice() float64 { return b.entry.AvgFillPrice() }

// TotalCommission implements Order. It sums the commission of all legs.
func (b *Bracket) TotalCommission() float64 {
	return b.entry.TotalCommission() + b.profitTaker.TotalCommission() + b.stopLoss.TotalCommission()
}

// Status implements Order.
func (b *Bracket) Status() types.OrderStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.status
}

// Phase returns the current bracket phase.
func (b *Bracket) Phase() BracketPhase {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.phase
}

// StatusChanged implements Order.
func (b *Bracket) StatusChanged() *event.Signal[StatusChange] { return b.statusChanged }

// Filled implements Order. It relays the fills of every leg.
func (b *Bracket) Filled() *event.Signal[FillEvent] { return b.filled }

// SetTransmitted implements Order. All three legs are transmitted together.
func (b *Bracket) SetTransmitted() error {
	b.mu.Lock()
	old := b.status
	if old != types.OrderStatusUnTransmitted {
		b.mu.Unlock()

		return errNotUnTransmitted(b.id, old)
	}
	b.status = types.OrderStatusAccepted
	b.mu.Unlock()

	// legs are owned by the bracket and only transmitted through it
	for _, leg := range b.Legs() {
		if err := leg.SetTransmitted(); err != nil {
			return err
		}
	}

	b.statusChanged.Emit(StatusChange{
		OrderID: b.id,
		Old:     old,
		New:     types.OrderStatusAccepted,
	})

	return nil
}

// SetCancelled implements Order. Legs that are not yet terminal are cancelled.
func (b *Bracket) SetCancelled() {
	b.mu.Lock()
	b.phase = BracketDone
	b.mu.Unlock()

	for _, leg := range b.Legs() {
		if !leg.Status().IsTerminal() {
			leg.SetCancelled()
		}
	}

	b.SetState(types.OrderStatusCancelled)
}

// SetState is the low-level bracket transition.
func (b *Bracket) SetState(newState types.OrderStatus) {
	b.mu.Lock()
	old := b.status
	b.status = newState
	b.mu.Unlock()

	if old == newState {
		return
	}

	b.statusChanged.Emit(StatusChange{
		OrderID: b.id,
		Old:     old,
		New:     newState,
	})
}

// Outcome returns the exit leg that filled, or nil.
func (b *Bracket) Outcome() *Simple {
	switch {
	case b.stopLoss.Status() == types.OrderStatusFilled:
		return b.stopLoss
	case b.profitTaker.Status() == types.OrderStatusFilled:
		return b.profitTaker
	default:
		return nil
	}
}

func (b *Bracket) onEntryFilled(fill FillEvent) {
	b.filled.Emit(fill)

	if !fill.Complete {
		return
	}

	b.mu.Lock()
	if b.phase == BracketEntryPending {
		b.phase = BracketWaitingForChildren
	}
	b.mu.Unlock()
}

func (b *Bracket) onExitFilled(fill FillEvent) {
	b.filled.Emit(fill)

	if !fill.Complete {
		return
	}

	b.mu.Lock()
	if b.phase == BracketDone {
		b.mu.Unlock()

		return
	}
	b.phase = BracketDone
	b.mu.Unlock()

	sibling := b.stopLoss
	if fill.OrderID == b.stopLoss.ID() {
		sibling = b.profitTaker
	}

	if !sibling.Status().IsTerminal() {
		sibling.SetCancelled()
	}

	b.SetState(types.OrderStatusFilled)
}
