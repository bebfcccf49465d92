// Package binance sources klines from the Binance REST API and places orders
// on Binance spot.
package binance

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/rxtech-lab/argo-engine/internal/broker"
	"github.com/rxtech-lab/argo-engine/internal/logger"
	"github.com/rxtech-lab/argo-engine/internal/types"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
	"go.uber.org/zap"
)

// pageSize is the Binance klines limit per request.
const pageSize = 500

var intervals = map[int]string{
	1:      "1s",
	60:     "1m",
	180:    "3m",
	300:    "5m",
	900:    "15m",
	1800:   "30m",
	3600:   "1h",
	7200:   "2h",
	14400:  "4h",
	21600:  "6h",
	28800:  "8h",
	43200:  "12h",
	86400:  "1d",
	259200: "3d",
	604800: "1w",
}

// Interval maps a bar size to a Binance kline interval.
func Interval(barSizeSeconds int) (string, error) {
	interval, ok := intervals[barSizeSeconds]
	if !ok {
		return "", errors.Newf(errors.ErrCodeBrokerUnsupported, "binance has no %ds kline interval", barSizeSeconds)
	}

	return interval, nil
}

// Broker serves historical klines and polls for newly closed ones on
// realtime subscriptions.
type Broker struct {
	client Client
	log    *logger.Logger
	now    func() time.Time

	mu        sync.Mutex
	connected bool
	feeds     []*feed
}

type feed struct {
	*broker.Feed
	interval string
	// cursor is the open time in ms of the next kline to request.
	cursor int64
}

// Option configures a Broker.
type Option func(*Broker)

// WithClient replaces the REST client.
func WithClient(client Client) Option {
	return func(b *Broker) {
		b.client = client
	}
}

// WithClock replaces time.Now for realtime polling.
func WithClock(now func() time.Time) Option {
	return func(b *Broker) {
		b.now = now
	}
}

// New returns a broker using the public market data endpoints.
func New(log *logger.Logger, opts ...Option) *Broker {
	b := &Broker{
		client:    NewClient("", "", ""),
		log:       log.Named("binance"),
		now:       time.Now,
		mu:        sync.Mutex{},
		connected: false,
		feeds:     nil,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Connect implements broker.Broker. The REST API is stateless.
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

// AddSubscription implements broker.Broker. The bars are fetched on the next cycle.
func (b *Broker) AddSubscription(sub *broker.Subscription) error {
	if err := sub.Validate(); err != nil {
		return err
	}

	interval, err := Interval(sub.BarSizeSeconds)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected {
		return errors.New(errors.ErrCodeBrokerNotConnected, "binance broker is not connected")
	}

	cursor := sub.From.UnixMilli()
	if sub.Kind == broker.SubscriptionRealtime {
		// Start from the kline in progress.
		size := time.Duration(sub.BarSizeSeconds) * time.Second
		cursor = b.now().Truncate(size).UnixMilli()
	}

	b.feeds = append(b.feeds, &feed{
		Feed:     broker.NewFeed(sub),
		interval: interval,
		cursor:   cursor,
	})

	return nil
}

// ProcessCycle fetches pending klines and delivers them. A failed fetch fails
// the subscription and the cycle continues with the others.
func (b *Broker) ProcessCycle(ctx context.Context) error {
	b.mu.Lock()
	if !b.connected {
		b.mu.Unlock()

		return errors.New(errors.ErrCodeBrokerNotConnected, "binance broker is not connected")
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

		switch f.Sub.Kind {
		case broker.SubscriptionHistorical:
			b.processHistorical(ctx, f)
		case broker.SubscriptionRealtime:
			b.processRealtime(ctx, f)
		}
	}

	b.mu.Lock()
	b.feeds = slices.DeleteFunc(b.feeds, func(f *feed) bool {
		return f.Sub.IsDone()
	})
	b.mu.Unlock()

	return nil
}

func (b *Broker) processHistorical(ctx context.Context, f *feed) {
	end := f.Sub.To
	if end.IsZero() {
		end = b.now()
	}

	bars, err := b.fetch(ctx, f, end.UnixMilli())
	if err != nil {
		b.log.Warn("failed to fetch klines", zap.String("symbol", f.Sub.Instrument), zap.Error(err))
		f.Sub.Fail(err)

		return
	}

	f.Load(bars)
	f.DeliverBatch(0)
	f.Sub.Finish()
}

func (b *Broker) processRealtime(ctx context.Context, f *feed) {
	bars, err := b.fetch(ctx, f, b.now().UnixMilli())
	if err != nil {
		b.log.Warn("failed to poll klines", zap.String("symbol", f.Sub.Instrument), zap.Error(err))
		f.Sub.Fail(err)

		return
	}

	f.Append(bars...)
	f.DeliverBatch(0)
}

// fetch pages through klines from the feed cursor up to endMillis and keeps
// only the closed ones. The cursor advances past the last closed kline.
func (b *Broker) fetch(ctx context.Context, f *feed, endMillis int64) ([]types.Bar, error) {
	var bars []types.Bar

	nowMillis := b.now().UnixMilli()

	for f.cursor < endMillis {
		klines, err := b.client.NewKlinesService().
			Symbol(f.Sub.Instrument).
			Interval(f.interval).
			Limit(pageSize).
			StartTime(f.cursor).
			EndTime(endMillis).
			Do(ctx)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "failed to fetch klines from Binance", err)
		}

		for _, k := range klines {
			if k.CloseTime >= nowMillis {
				// still forming
				return bars, nil
			}

			bar, err := klineToBar(k, f.Sub.BarSizeSeconds)
			if err != nil {
				return nil, err
			}

			bars = append(bars, bar)
			f.cursor = k.CloseTime + 1
		}

		if len(klines) < pageSize {
			break
		}
	}

	return bars, nil
}

func klineToBar(k *binance.Kline, barSizeSeconds int) (types.Bar, error) {
	values := make([]float64, 0, 6)

	for _, raw := range []string{k.Open, k.High, k.Low, k.Close, k.Volume, k.QuoteAssetVolume} {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return types.Bar{}, errors.Wrap(errors.ErrCodeMarketDataParseFailed, "invalid kline value", err)
		}

		values = append(values, v)
	}

	open, high, low, closePrice, volume, quoteVolume := values[0], values[1], values[2], values[3], values[4], values[5]

	wap := closePrice
	if volume > 0 {
		wap = quoteVolume / volume
	}

	return types.NewBar(barSizeSeconds, time.UnixMilli(k.OpenTime), open, high, low, closePrice, volume, k.TradeNum, wap), nil
}
