package ordermanager

import (
	"github.com/rxtech-lab/argo-engine/internal/event"
	"github.com/rxtech-lab/argo-engine/internal/logger"
	"github.com/rxtech-lab/argo-engine/internal/order"
	"github.com/rxtech-lab/argo-engine/internal/ordermanager/commission_fee"
	"github.com/rxtech-lab/argo-engine/internal/position"
	"github.com/rxtech-lab/argo-engine/internal/types"
	"go.uber.org/zap"
)

// Fill is a fill produced by the backtest manager, stamped with the bar that caused it.
type Fill struct {
	order.FillEvent
	Bar types.Bar
}

// BacktestOrderManager fills orders synchronously against bars.
type BacktestOrderManager struct {
	book
	commission commission_fee.CommissionFee
	tracker    *position.Tracker
	log        *logger.Logger
	fills      []Fill

	// Filled fires for every fill produced by Simulate.
	Filled *event.Signal[Fill]
}

// BacktestOption configures a BacktestOrderManager.
type BacktestOption func(*BacktestOrderManager)

// WithPositionTracker routes every fill into tracker.
func WithPositionTracker(tracker *position.Tracker) BacktestOption {
	return func(m *BacktestOrderManager) {
		m.tracker = tracker
	}
}

// NewBacktestOrderManager creates an empty manager.
func NewBacktestOrderManager(log *logger.Logger, commission commission_fee.CommissionFee, opts ...BacktestOption) *BacktestOrderManager {
	m := &BacktestOrderManager{
		book:       book{},
		commission: commission,
		tracker:    nil,
		log:        log.Named("backtest_order_manager"),
		fills:      nil,
		Filled:     event.NewSignal[Fill](),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Transmit marks o transmitted and starts simulating it.
func (m *BacktestOrderManager) Transmit(o order.Order) error {
	if err := o.SetTransmitted(); err != nil {
		return err
	}

	m.add(o)
	m.log.Debug("order transmitted",
		zap.String("order_id", o.ID()),
		zap.String("instrument", o.Instrument()),
		zap.String("order", order.Print(o)),
	)

	return nil
}

// Cancel cancels an active order. A bracket cancels its open legs.
func (m *BacktestOrderManager) Cancel(orderID string) error {
	found := m.find(orderID)
	if found.IsNone() {
		return errUnknownOrder(orderID)
	}

	found.Unwrap().SetCancelled()
	m.sweep()

	return nil
}

// HasActiveOrders implements OrderManager.
func (m *BacktestOrderManager) HasActiveOrders() bool { return m.hasActive() }

// ActiveOrders implements OrderManager.
func (m *BacktestOrderManager) ActiveOrders() []order.Order { return m.activeOrders() }

// CompletedOrders implements OrderManager.
func (m *BacktestOrderManager) CompletedOrders() []order.Order { return m.completedOrders() }

// Fills returns every fill produced so far, in order.
func (m *BacktestOrderManager) Fills() []Fill {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]Fill(nil), m.fills...)
}

// Simulate evaluates every active order against bar, then moves finished
// orders to the completed set. A bracket whose entry fills on this bar only
// starts evaluating its exits on the next bar. Finished orders are swept even
// when the pass stops on an error.
func (m *BacktestOrderManager) Simulate(bar types.Bar) error {
	defer m.sweep()

	for _, o := range m.activeOrders() {
		if err := m.simulateOrder(o, bar); err != nil {
			return err
		}
	}

	return nil
}

func (m *BacktestOrderManager) simulateOrder(o order.Order, bar types.Bar) error {
	switch v := o.(type) {
	case *order.Simple:
		_, err := m.trySimple(v, bar)

		return err
	case *order.Bracket:
		return m.simulateBracket(v, bar)
	default:
		return nil
	}
}

func (m *BacktestOrderManager) simulateBracket(b *order.Bracket, bar types.Bar) error {
	switch b.Phase() {
	case order.BracketEntryPending:
		_, err := m.trySimple(b.Entry(), bar)

		return err
	case order.BracketWaitingForChildren:
		filled, err := m.trySimple(b.StopLoss(), bar)
		if err != nil || filled {
			return err
		}

		_, err = m.trySimple(b.ProfitTaker(), bar)

		return err
	default:
		return nil
	}
}

// Triggered reports whether bar reaches the target of s. Buys trigger when
// the low reaches down to the target, sells when the high reaches up to it.
// Stops use the opposite of their direction.
func Triggered(s *order.Simple, bar types.Bar) bool {
	if s.EffectiveDirection() == types.DirectionBuy {
		return bar.Low <= s.TargetPrice()
	}

	return bar.High >= s.TargetPrice()
}

func (m *BacktestOrderManager) trySimple(s *order.Simple, bar types.Bar) (bool, error) {
	if s.Status() != types.OrderStatusAccepted || !Triggered(s, bar) {
		return false, nil
	}

	var fill order.FillEvent

	sub := s.Filled().Subscribe(func(f order.FillEvent) { fill = f })
	defer sub.Close()

	if err := s.SetFilled(s.TargetPrice(), m.commission.Calculate(s.Quantity()), s.Quantity()); err != nil {
		return false, err
	}

	if m.tracker != nil {
		if err := m.tracker.HandlePositionUpdate(s.Instrument(), fill.SignedIncrement(), fill.IncrementPrice); err != nil {
			m.log.Error("position update failed", zap.String("order_id", s.ID()), zap.Error(err))

			return true, err
		}
	}

	record := Fill{FillEvent: fill, Bar: bar}

	m.mu.Lock()
	m.fills = append(m.fills, record)
	m.mu.Unlock()

	m.log.Debug("order filled",
		zap.String("order_id", s.ID()),
		zap.String("role", string(s.Role())),
		zap.Float64("price", fill.Price),
		zap.Time("bar_time", bar.Time),
	)

	m.Filled.Emit(record)

	return true, nil
}
