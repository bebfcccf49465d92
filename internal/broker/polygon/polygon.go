// Package polygon sources historical aggregates from polygon.io.
package polygon

import (
	"context"
	"slices"
	"sync"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/argo-engine/internal/broker"
	"github.com/rxtech-lab/argo-engine/internal/logger"
	"github.com/rxtech-lab/argo-engine/internal/types"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
	"go.uber.org/zap"
)

// AggregatesSource lists aggregate bars.
type AggregatesSource interface {
	ListAggregates(ctx context.Context, ticker string, multiplier int, timespan models.Timespan, from, to time.Time) ([]models.Agg, error)
}

type restSource struct {
	client *polygon.Client
}

func (s *restSource) ListAggregates(ctx context.Context, ticker string, multiplier int, timespan models.Timespan, from, to time.Time) ([]models.Agg, error) {
	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     ticker,
		Multiplier: multiplier,
		Timespan:   timespan,
		From:       models.Millis(from),
		To:         models.Millis(to),
	}.WithLimit(50000)

	iter := s.client.ListAggs(ctx, params)

	var aggs []models.Agg

	for iter.Next() {
		aggs = append(aggs, iter.Item())
	}

	if err := iter.Err(); err != nil {
		return nil, err
	}

	return aggs, nil
}

// Timespan maps a bar size to the coarsest polygon timespan that divides it.
func Timespan(barSizeSeconds int) (int, models.Timespan, error) {
	switch {
	case barSizeSeconds <= 0:
		return 0, "", errors.Newf(errors.ErrCodeInvalidParameter, "bar size must be positive, got %d", barSizeSeconds)
	case barSizeSeconds%86400 == 0:
		return barSizeSeconds / 86400, models.Day, nil
	case barSizeSeconds%3600 == 0:
		return barSizeSeconds / 3600, models.Hour, nil
	case barSizeSeconds%60 == 0:
		return barSizeSeconds / 60, models.Minute, nil
	default:
		return barSizeSeconds, models.Second, nil
	}
}

// Broker serves historical subscriptions. Realtime data needs the websocket
// feed and is not supported.
type Broker struct {
	source AggregatesSource
	log    *logger.Logger
	now    func() time.Time

	mu        sync.Mutex
	connected bool
	feeds     []*broker.Feed
}

// New returns a broker backed by the polygon REST client.
func New(apiKey string, log *logger.Logger) (*Broker, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "polygon api key is required")
	}

	return NewWithSource(&restSource{client: polygon.New(apiKey)}, log), nil
}

// NewWithSource uses an existing source.
func NewWithSource(source AggregatesSource, log *logger.Logger) *Broker {
	return &Broker{
		source:    source,
		log:       log.Named("polygon"),
		now:       time.Now,
		mu:        sync.Mutex{},
		connected: false,
		feeds:     nil,
	}
}

// Connect implements broker.Broker.
func (b *Broker) Connect(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.connected = true

	return nil
}

// Disconnect implements broker.Broker and cancels the open subscriptions.
func (b *Broker) Disconnect() error {
	b.mu.Lock()
	feeds := b.feeds
	b.feeds = nil
	b.connected = false
	b.mu.Unlock()

	for _, f := range feeds {
		f.Sub.CancelSubscription()
	}

	return nil
}

// IsConnected implements broker.Broker.
func (b *Broker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.connected
}

// AddSubscription implements broker.Broker. A realtime subscription is
// accepted and failed on the next cycle.
func (b *Broker) AddSubscription(sub *broker.Subscription) error {
	if err := sub.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected {
		return errors.New(errors.ErrCodeBrokerNotConnected, "polygon broker is not connected")
	}

	b.feeds = append(b.feeds, broker.NewFeed(sub))

	return nil
}

// ProcessCycle fetches every new historical subscription in full.
func (b *Broker) ProcessCycle(ctx context.Context) error {
	b.mu.Lock()
	if !b.connected {
		b.mu.Unlock()

		return errors.New(errors.ErrCodeBrokerNotConnected, "polygon broker is not connected")
	}

	feeds := slices.Clone(b.feeds)
	b.mu.Unlock()

	for _, f := range feeds {
		if err := ctx.Err(); err != nil {
			return err
		}

		if f.Sub.IsDone() {
			continue
		}

		if f.Sub.Kind == broker.SubscriptionRealtime {
			f.Sub.Fail(errors.New(errors.ErrCodeBrokerUnsupported, "polygon broker does not support realtime subscriptions"))

			continue
		}

		if err := b.load(ctx, f); err != nil {
			b.log.Warn("failed to fetch aggregates", zap.String("ticker", f.Sub.Instrument), zap.Error(err))
			f.Sub.Fail(err)

			continue
		}

		f.DeliverBatch(0)
		f.Sub.Finish()
	}

	b.mu.Lock()
	b.feeds = slices.DeleteFunc(b.feeds, func(f *broker.Feed) bool {
		return f.Sub.IsDone()
	})
	b.mu.Unlock()

	return nil
}

func (b *Broker) load(ctx context.Context, f *broker.Feed) error {
	multiplier, timespan, err := Timespan(f.Sub.BarSizeSeconds)
	if err != nil {
		return err
	}

	to := f.Sub.To
	if to.IsZero() {
		to = b.now()
	}

	aggs, err := b.source.ListAggregates(ctx, f.Sub.Instrument, multiplier, timespan, f.Sub.From, to)
	if err != nil {
		return errors.Wrap(errors.ErrCodeHistoricalDataFailed, "error iterating polygon aggregates", err)
	}

	bars := make([]types.Bar, 0, len(aggs))

	for _, agg := range aggs {
		bars = append(bars, types.NewBar(
			f.Sub.BarSizeSeconds,
			time.Time(agg.Timestamp),
			agg.Open,
			agg.High,
			agg.Low,
			agg.Close,
			agg.Volume,
			agg.Transactions,
			agg.VWAP,
		))
	}

	f.Load(bars)

	b.log.Debug("aggregates loaded", zap.String("ticker", f.Sub.Instrument), zap.Int("bars", f.Remaining()))

	return nil
}
