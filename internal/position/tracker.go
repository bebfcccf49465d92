// Package position tracks open lots per instrument and realizes profit and
// loss with FIFO cost-basis matching.
package position

import (
	"sync"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-engine/internal/event"
	"github.com/rxtech-lab/argo-engine/internal/logger"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Lot is an open quantity bought or sold at one price.
type Lot struct {
	Quantity float64 `json:"quantity" yaml:"quantity"`
	Price    float64 `json:"price" yaml:"price"`
}

// Snapshot is a copy of one instrument's position.
type Snapshot struct {
	Instrument string  `json:"instrument" yaml:"instrument"`
	Longs      []Lot   `json:"longs" yaml:"longs"`
	Shorts     []Lot   `json:"shorts" yaml:"shorts"`
	Realized   float64 `json:"realized" yaml:"realized"`
}

// Net returns the signed open quantity.
func (s Snapshot) Net() float64 {
	net := 0.0
	for _, l := range s.Longs {
		net += l.Quantity
	}

	for _, l := range s.Shorts {
		net -= l.Quantity
	}

	return net
}

type lot struct {
	quantity decimal.Decimal
	price    decimal.Decimal
}

type position struct {
	longs    []lot
	shorts   []lot
	realized decimal.Decimal
}

// Tracker holds one position per instrument.
type Tracker struct {
	mu          sync.Mutex
	positions   map[string]*position
	multipliers map[string]float64
	log         *logger.Logger

	// PnlChanged fires after every successful update. Subscribers call GetPnl.
	PnlChanged *event.Signal[struct{}]
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithMultipliers replaces the multiplier table.
func WithMultipliers(table map[string]float64) Option {
	return func(t *Tracker) {
		t.multipliers = copyMultipliers(table)
	}
}

// NewTracker creates an empty tracker using DefaultMultipliers.
func NewTracker(log *logger.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		mu:          sync.Mutex{},
		positions:   map[string]*position{},
		multipliers: copyMultipliers(DefaultMultipliers),
		log:         log.Named("position"),
		PnlChanged:  event.NewSignal[struct{}](),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Multiplier returns the contract multiplier for an instrument.
func (t *Tracker) Multiplier(instrument string) (float64, error) {
	m, ok := t.multipliers[instrument]
	if !ok {
		return 0, errors.Newf(errors.ErrCodeUnsupportedInstrument, "instrument %s has no multiplier", instrument)
	}

	return m, nil
}

// HandlePositionUpdate applies a trade. A negative quantity is a sale and a
// positive one a purchase. Trades close the oldest opposing lots first; any
// quantity left over opens a new lot on its own side.
func (t *Tracker) HandlePositionUpdate(instrument string, quantity float64, price float64) error {
	if quantity == 0 {
		return errors.Newf(errors.ErrCodeInvalidQuantity, "position update for %s has zero quantity", instrument)
	}

	multiplier, err := t.Multiplier(instrument)
	if err != nil {
		return err
	}

	px := decimal.NewFromFloat(price)
	mult := decimal.NewFromFloat(multiplier)

	t.mu.Lock()
	pos, ok := t.positions[instrument]
	if !ok {
		pos = &position{longs: nil, shorts: nil, realized: decimal.Zero}
		t.positions[instrument] = pos
	}

	var realized decimal.Decimal
	if quantity < 0 {
		realized = pos.sell(decimal.NewFromFloat(-quantity), px, mult)
	} else {
		realized = pos.buy(decimal.NewFromFloat(quantity), px, mult)
	}

	pos.realized = pos.realized.Add(realized)
	total := pos.realized
	t.mu.Unlock()

	t.log.Debug("position updated",
		zap.String("instrument", instrument),
		zap.Float64("quantity", quantity),
		zap.Float64("price", price),
		zap.Float64("realized", realized.InexactFloat64()),
		zap.Float64("total", total.InexactFloat64()),
	)

	t.PnlChanged.Emit(struct{}{})

	return nil
}

// sell matches against longs. Profit on each lot is (price - lot price).
func (p *position) sell(size decimal.Decimal, price decimal.Decimal, mult decimal.Decimal) decimal.Decimal {
	var realized decimal.Decimal

	p.longs, size, realized = match(p.longs, size, func(l lot, matched decimal.Decimal) decimal.Decimal {
		return price.Sub(l.price).Mul(matched).Mul(mult)
	})

	if size.IsPositive() {
		p.shorts = append(p.shorts, lot{quantity: size, price: price})
	}

	return realized
}

// buy covers shorts. Profit on each lot is (lot price - price).
func (p *position) buy(size decimal.Decimal, price decimal.Decimal, mult decimal.Decimal) decimal.Decimal {
	var realized decimal.Decimal

	p.shorts, size, realized = match(p.shorts, size, func(l lot, matched decimal.Decimal) decimal.Decimal {
		return l.price.Sub(price).Mul(matched).Mul(mult)
	})

	if size.IsPositive() {
		p.longs = append(p.longs, lot{quantity: size, price: price})
	}

	return realized
}

// match consumes lots from the front of queue and returns the remaining
// queue, the unmatched size and the realized amount.
func match(queue []lot, size decimal.Decimal, pnl func(lot, decimal.Decimal) decimal.Decimal) ([]lot, decimal.Decimal, decimal.Decimal) {
	realized := decimal.Zero

	for len(queue) > 0 && size.IsPositive() {
		front := queue[0]
		matched := decimal.Min(size, front.quantity)
		realized = realized.Add(pnl(front, matched))
		size = size.Sub(matched)

		if matched.Equal(front.quantity) {
			queue = queue[1:]

			continue
		}

		queue[0].quantity = front.quantity.Sub(matched)
	}

	return queue, size, realized
}

// GetPnl returns the cumulative realized total per instrument.
func (t *Tracker) GetPnl() map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]float64, len(t.positions))
	for instrument, pos := range t.positions {
		out[instrument] = pos.realized.InexactFloat64()
	}

	return out
}

// TotalPnl sums the realized totals of every instrument.
func (t *Tracker) TotalPnl() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := decimal.Zero
	for _, pos := range t.positions {
		total = total.Add(pos.realized)
	}

	return total
}

// Position returns a copy of an instrument's position, or None if the
// instrument was never traded.
func (t *Tracker) Position(instrument string) optional.Option[Snapshot] {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos, ok := t.positions[instrument]
	if !ok {
		return optional.None[Snapshot]()
	}

	return optional.Some(Snapshot{
		Instrument: instrument,
		Longs:      toLots(pos.longs),
		Shorts:     toLots(pos.shorts),
		Realized:   pos.realized.InexactFloat64(),
	})
}

func toLots(in []lot) []Lot {
	out := make([]Lot, 0, len(in))
	for _, l := range in {
		out = append(out, Lot{
			Quantity: l.quantity.InexactFloat64(),
			Price:    l.price.InexactFloat64(),
		})
	}

	return out
}
