package ordermanager

import (
	"context"
	"time"

	"github.com/rxtech-lab/argo-engine/internal/broker"
	"github.com/rxtech-lab/argo-engine/internal/event"
	"github.com/rxtech-lab/argo-engine/internal/logger"
	"github.com/rxtech-lab/argo-engine/internal/order"
	"github.com/rxtech-lab/argo-engine/internal/position"
	"github.com/rxtech-lab/argo-engine/internal/types"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
	"go.uber.org/zap"
)

const defaultGatewayTimeout = 10 * time.Second

// LiveOrderManager forwards orders to a venue and applies the venue's reports.
type LiveOrderManager struct {
	book
	gateway broker.OrderGateway
	tracker *position.Tracker
	timeout time.Duration
	log     *logger.Logger

	// Filled fires for every fill reported by the venue.
	Filled *event.Signal[order.FillEvent]
}

// LiveOption configures a LiveOrderManager.
type LiveOption func(*LiveOrderManager)

// WithLiveTracker routes reported fills into tracker.
func WithLiveTracker(tracker *position.Tracker) LiveOption {
	return func(m *LiveOrderManager) {
		m.tracker = tracker
	}
}

// WithGatewayTimeout bounds every gateway call.
func WithGatewayTimeout(timeout time.Duration) LiveOption {
	return func(m *LiveOrderManager) {
		m.timeout = timeout
	}
}

// NewLiveOrderManager creates a manager sending orders through gateway.
func NewLiveOrderManager(gateway broker.OrderGateway, log *logger.Logger, opts ...LiveOption) *LiveOrderManager {
	m := &LiveOrderManager{
		book:    book{},
		gateway: gateway,
		tracker: nil,
		timeout: defaultGatewayTimeout,
		log:     log.Named("live_order_manager"),
		Filled:  event.NewSignal[order.FillEvent](),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Transmit places every leg of o. If a leg is rejected the legs already
// placed are cancelled and o stays untransmitted.
func (m *LiveOrderManager) Transmit(o order.Order) error {
	if o.Status() != types.OrderStatusUnTransmitted {
		return errors.Newf(errors.ErrCodeInvalidOrderState,
			"can only transmit from untransmitted: order %s is %s", o.ID(), o.Status())
	}

	wire := broker.WireOrders(o)
	for _, w := range wire {
		if err := w.Validate(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	for i, w := range wire {
		if err := m.gateway.PlaceOrder(ctx, w); err != nil {
			m.rollback(ctx, wire[:i])

			return errors.Wrapf(errors.ErrCodeTransmitFailed, err, "failed to place order %s", w.ID)
		}
	}

	if err := o.SetTransmitted(); err != nil {
		return err
	}

	m.add(o)
	m.log.Info("order transmitted", zap.String("order_id", o.ID()), zap.Int("legs", len(wire)))

	return nil
}

func (m *LiveOrderManager) rollback(ctx context.Context, placed []broker.WireOrder) {
	for _, w := range placed {
		if err := m.gateway.CancelOrder(ctx, w.ID); err != nil {
			m.log.Warn("failed to roll back placed leg", zap.String("order_id", w.ID), zap.Error(err))
		}
	}
}

// Cancel asks the venue to cancel every open leg of an active order.
func (m *LiveOrderManager) Cancel(orderID string) error {
	found := m.find(orderID)
	if found.IsNone() {
		return errUnknownOrder(orderID)
	}

	o := found.Unwrap()

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	for _, leg := range order.Flatten(o) {
		if leg.Status().IsTerminal() {
			continue
		}

		if err := m.gateway.CancelOrder(ctx, leg.ID()); err != nil {
			return errors.Wrapf(errors.ErrCodeOrderFailed, err, "failed to cancel order %s", leg.ID())
		}
	}

	o.SetCancelled()
	m.sweep()

	return nil
}

// HandleOrderStatus applies a venue report to the leg it names.
func (m *LiveOrderManager) HandleOrderStatus(update broker.OrderStatusUpdate) error {
	parent, leg, ok := m.findLeg(update.OrderID)
	if !ok {
		return errUnknownOrder(update.OrderID)
	}

	switch update.Status {
	case types.OrderStatusFilled:
		if err := m.applyFill(leg, update); err != nil {
			return err
		}
	case types.OrderStatusCancelled:
		leg.SetCancelled()

		// an entry cancelled by the venue takes its exits with it
		if b, isBracket := parent.(*order.Bracket); isBracket && leg.Role() == order.RoleEntry {
			b.SetCancelled()
		}
	case types.OrderStatusAccepted, types.OrderStatusPendingAccept,
		types.OrderStatusPendingCancel, types.OrderStatusShortLocatingHold:
		if !leg.Status().IsTerminal() {
			leg.SetState(update.Status)
		}
	default:
		return errors.Newf(errors.ErrCodeInvalidOrderState, "unexpected status %s for order %s", update.Status, update.OrderID)
	}

	if b, isBracket := parent.(*order.Bracket); isBracket && b.Phase() == order.BracketDone {
		m.cancelOpenLegs(b, update.OrderID)
	}

	m.sweep()

	return nil
}

func (m *LiveOrderManager) applyFill(leg *order.Simple, update broker.OrderStatusUpdate) error {
	var fill order.FillEvent

	sub := leg.Filled().Subscribe(func(f order.FillEvent) { fill = f })
	defer sub.Close()

	if err := leg.SetFilled(update.AvgFillPrice, update.TotalCommission, update.FilledQuantity); err != nil {
		return err
	}

	if m.tracker != nil && fill.Increment > 0 {
		if err := m.tracker.HandlePositionUpdate(leg.Instrument(), fill.SignedIncrement(), fill.IncrementPrice); err != nil {
			return err
		}
	}

	m.Filled.Emit(fill)

	return nil
}

// cancelOpenLegs tells the venue about legs cancelled locally, such as the
// sibling of a filled exit. The leg named by the venue report is skipped.
func (m *LiveOrderManager) cancelOpenLegs(b *order.Bracket, reportedID string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	for _, leg := range b.Legs() {
		if leg.ID() == reportedID || leg.Status() == types.OrderStatusFilled {
			continue
		}

		if err := m.gateway.CancelOrder(ctx, leg.ID()); err != nil {
			m.log.Warn("failed to cancel leg at venue", zap.String("order_id", leg.ID()), zap.Error(err))
		}

		if !leg.Status().IsTerminal() {
			leg.SetCancelled()
		}
	}
}

// HasActiveOrders implements OrderManager.
func (m *LiveOrderManager) HasActiveOrders() bool { return m.hasActive() }

// ActiveOrders implements OrderManager.
func (m *LiveOrderManager) ActiveOrders() []order.Order { return m.activeOrders() }

// CompletedOrders implements OrderManager.
func (m *LiveOrderManager) CompletedOrders() []order.Order { return m.completedOrders() }
