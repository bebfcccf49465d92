// Package ordermanager owns transmitted orders. The backtest variant fills
// them against bars; the live variant forwards them to a venue.
package ordermanager

import (
	"sync"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-engine/internal/order"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
)

// OrderManager takes ownership of orders once they are transmitted.
type OrderManager interface {
	Transmit(o order.Order) error
	Cancel(orderID string) error
	HasActiveOrders() bool
	ActiveOrders() []order.Order
	CompletedOrders() []order.Order
}

// book is the active and completed order sets shared by both managers.
type book struct {
	mu        sync.Mutex
	active    []order.Order
	completed []order.Order
}

func (b *book) add(o order.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.active = append(b.active, o)
}

func (b *book) hasActive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.active) > 0
}

func (b *book) activeOrders() []order.Order {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]order.Order(nil), b.active...)
}

func (b *book) completedOrders() []order.Order {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]order.Order(nil), b.completed...)
}

func (b *book) find(orderID string) optional.Option[order.Order] {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, o := range b.active {
		if o.ID() == orderID {
			return optional.Some(o)
		}
	}

	return optional.None[order.Order]()
}

// findLeg returns the active order owning the leg with orderID.
func (b *book) findLeg(orderID string) (order.Order, *order.Simple, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, o := range b.active {
		for _, leg := range order.Flatten(o) {
			if leg.ID() == orderID {
				return o, leg, true
			}
		}
	}

	return nil, nil, false
}

// sweep moves terminal orders to the completed set.
func (b *book) sweep() []order.Order {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.active[:0]
	var done []order.Order

	for _, o := range b.active {
		if o.Status().IsTerminal() {
			done = append(done, o)

			continue
		}

		kept = append(kept, o)
	}

	clear(b.active[len(kept):])
	b.active = kept
	b.completed = append(b.completed, done...)

	return done
}

func errUnknownOrder(orderID string) error {
	return errors.Newf(errors.ErrCodeUnknownOrder, "order %s is not active", orderID)
}
