package broker

import (
	"context"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-engine/internal/event"
	"github.com/rxtech-lab/argo-engine/internal/types"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
)

// SubscriptionKind says whether a subscription replays history or follows
// new bars.
type SubscriptionKind string

const (
	SubscriptionHistorical SubscriptionKind = "historical"
	SubscriptionRealtime   SubscriptionKind = "realtime"
)

// Subscription is a request for bars of one instrument. Brokers publish into
// it with Deliver, Finish and Fail; consumers listen on the signals.
type Subscription struct {
	Instrument     string
	BarSizeSeconds int
	Kind           SubscriptionKind
	// From and To bound a historical request. Zero values mean unbounded.
	From time.Time
	To   time.Time

	OnBar    *event.Signal[types.Bar]
	OnEnd    *event.Signal[struct{}]
	OnError  *event.Signal[error]
	OnCancel *event.Signal[struct{}]

	once sync.Once
	done chan struct{}

	mu  sync.Mutex
	err error
}

func newSubscription(instrument string, barSizeSeconds int, kind SubscriptionKind, from, to time.Time) *Subscription {
	return &Subscription{
		Instrument:     instrument,
		BarSizeSeconds: barSizeSeconds,
		Kind:           kind,
		From:           from,
		To:             to,
		OnBar:          event.NewSignal[types.Bar](),
		OnEnd:          event.NewSignal[struct{}](),
		OnError:        event.NewSignal[error](),
		OnCancel:       event.NewSignal[struct{}](),
		once:           sync.Once{},
		done:           make(chan struct{}),
		mu:             sync.Mutex{},
		err:            nil,
	}
}

// NewHistoricalSubscription requests the bars in [from, to).
func NewHistoricalSubscription(instrument string, barSizeSeconds int, from, to time.Time) *Subscription {
	return newSubscription(instrument, barSizeSeconds, SubscriptionHistorical, from, to)
}

// NewRealtimeSubscription requests new bars as they form.
func NewRealtimeSubscription(instrument string, barSizeSeconds int) *Subscription {
	return newSubscription(instrument, barSizeSeconds, SubscriptionRealtime, time.Time{}, time.Time{})
}

// Validate checks the request before a broker accepts it.
func (s *Subscription) Validate() error {
	if s.Instrument == "" {
		return errors.New(errors.ErrCodeInvalidParameter, "subscription instrument is required")
	}

	if s.BarSizeSeconds <= 0 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "subscription bar size must be positive, got %d", s.BarSizeSeconds)
	}

	if s.Kind == SubscriptionHistorical && !s.From.IsZero() && !s.To.IsZero() && !s.From.Before(s.To) {
		return errors.Newf(errors.ErrCodeInvalidParameter, "subscription window %s..%s is empty", s.From, s.To)
	}

	return nil
}

// Contains reports whether t is inside the requested window.
func (s *Subscription) Contains(t time.Time) bool {
	if !s.From.IsZero() && t.Before(s.From) {
		return false
	}

	if !s.To.IsZero() && !t.Before(s.To) {
		return false
	}

	return true
}

// Deliver publishes bars. Bars delivered after the subscription is done are dropped.
func (s *Subscription) Deliver(bars ...types.Bar) {
	for _, b := range bars {
		if s.IsDone() {
			return
		}

		s.OnBar.Emit(b)
	}
}

// Finish marks the end of the data. OnEnd fires at most once.
func (s *Subscription) Finish() {
	s.complete(nil, func() { s.OnEnd.Emit(struct{}{}) })
}

// Fail ends the subscription with err.
func (s *Subscription) Fail(err error) {
	s.complete(err, func() { s.OnError.Emit(err) })
}

// CancelSubscription ends the subscription on the consumer's request.
func (s *Subscription) CancelSubscription() {
	err := errors.New(errors.ErrCodeSubscriptionFailed, "subscription cancelled")
	s.complete(err, func() { s.OnCancel.Emit(struct{}{}) })
}

func (s *Subscription) complete(err error, notify func()) {
	fired := false

	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()

		close(s.done)

		fired = true
	})

	if fired {
		notify()
	}
}

// Done is closed once the subscription ended, failed or was cancelled.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// IsDone reports whether Done is closed.
func (s *Subscription) IsDone() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Err returns the failure, if any, once the subscription is done.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// Wait blocks until the subscription is done or ctx ends.
func (s *Subscription) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
