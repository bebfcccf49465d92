// Package window downsamples a marketdata.Stream into a bounded lookback of
// wider candles.
package window

import (
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-engine/internal/event"
	"github.com/rxtech-lab/argo-engine/internal/logger"
	"github.com/rxtech-lab/argo-engine/internal/marketdata"
	"github.com/rxtech-lab/argo-engine/internal/types"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
	"go.uber.org/zap"
)

// Window keeps the last lookback candles of width candleWidthSeconds built
// from the bars of a stream.
type Window struct {
	stream      *marketdata.Stream
	width       int
	ratio       int
	lookback    int
	aggregation Aggregation
	log         *logger.Logger

	mu     sync.Mutex
	ring   []types.Bar
	head   int
	count  int
	cursor int

	subs event.Group
}

// Option configures a Window.
type Option func(*Window)

// WithAggregation selects the aggregation mode. The default is AggregateOHLC.
func WithAggregation(a Aggregation) Option {
	return func(w *Window) {
		w.aggregation = a
	}
}

// New builds a window over stream and samples the bars already merged into it.
func New(stream *marketdata.Stream, candleWidthSeconds int, lookback int, log *logger.Logger, opts ...Option) (*Window, error) {
	barSize := stream.BarSizeSeconds()

	if candleWidthSeconds <= 0 || candleWidthSeconds%barSize != 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidSampling,
			"candle width %ds is not a multiple of bar size %ds", candleWidthSeconds, barSize)
	}

	if lookback <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidSampling, "lookback must be positive, got %d", lookback)
	}

	w := &Window{
		stream:      stream,
		width:       candleWidthSeconds,
		ratio:       candleWidthSeconds / barSize,
		lookback:    lookback,
		aggregation: AggregateOHLC,
		log:         log.Named("window"),
		mu:          sync.Mutex{},
		ring:        make([]types.Bar, lookback),
		head:        0,
		count:       0,
		cursor:      0,
		subs:        nil,
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.aggregation != AggregateOHLC && w.aggregation != AggregateSum {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unknown aggregation %q", w.aggregation)
	}

	w.subs = event.Group{
		stream.Reordered.Subscribe(func(marketdata.Update) { w.reset() }),
		stream.Updated.Subscribe(func(marketdata.Update) { w.update() }),
	}

	w.update()

	return w, nil
}

// Close stops following the stream.
func (w *Window) Close() {
	w.subs.Close()
}

// CandleWidthSeconds returns the width of each candle.
func (w *Window) CandleWidthSeconds() int { return w.width }

// Lookback returns the capacity of the window.
func (w *Window) Lookback() int { return w.lookback }

func (w *Window) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.head = 0
	w.count = 0
	w.cursor = 0

	w.log.Debug("stream reordered, resampling")
}

// update folds every complete run of unconsumed raw bars into candles.
func (w *Window) update() {
	w.mu.Lock()
	defer w.mu.Unlock()

	total := w.stream.Len()
	added := 0

	for w.cursor+w.ratio <= total {
		bars := w.stream.Slice(w.cursor, w.cursor+w.ratio)
		if len(bars) < w.ratio {
			break
		}

		w.push(w.aggregation.fold(w.width, bars))
		w.cursor += w.ratio
		added++
	}

	if added > 0 {
		w.log.Debug("window updated", zap.Int("candles", added), zap.Int("cursor", w.cursor))
	}
}

func (w *Window) push(candle types.Bar) {
	idx := (w.head + w.count) % w.lookback
	w.ring[idx] = candle

	if w.count < w.lookback {
		w.count++

		return
	}

	w.head = (w.head + 1) % w.lookback
}

func (w *Window) candles() []types.Bar {
	out := make([]types.Bar, 0, w.count)
	for i := 0; i < w.count; i++ {
		out = append(out, w.ring[(w.head+i)%w.lookback])
	}

	return out
}

// Ok reports whether the window holds lookback candles.
func (w *Window) Ok() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.count == w.lookback
}

// Len returns the number of candles held.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.count
}

// Cursor returns the number of raw bars consumed so far.
func (w *Window) Cursor() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.cursor
}

// Candles returns the held candles, oldest first.
func (w *Window) Candles() []types.Bar {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.candles()
}

// Last returns the newest candle, if any.
func (w *Window) Last() optional.Option[types.Bar] {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.count == 0 {
		return optional.None[types.Bar]()
	}

	return optional.Some(w.ring[(w.head+w.count-1)%w.lookback])
}

// Snapshot is a private copy of the window's series, oldest first.
type Snapshot struct {
	Timestamps []time.Time
	Opens      []float64
	Highs      []float64
	Lows       []float64
	Closes     []float64
	Volumes    []float64
	Trades     []int64
	WAPs       []float64
}

// Len returns the number of candles in the snapshot.
func (s Snapshot) Len() int { return len(s.Timestamps) }

// Copy returns a consistent snapshot of every series.
func (w *Window) Copy() Snapshot {
	w.mu.Lock()
	candles := w.candles()
	w.mu.Unlock()

	snap := Snapshot{
		Timestamps: make([]time.Time, 0, len(candles)),
		Opens:      make([]float64, 0, len(candles)),
		Highs:      make([]float64, 0, len(candles)),
		Lows:       make([]float64, 0, len(candles)),
		Closes:     make([]float64, 0, len(candles)),
		Volumes:    make([]float64, 0, len(candles)),
		Trades:     make([]int64, 0, len(candles)),
		WAPs:       make([]float64, 0, len(candles)),
	}

	for _, c := range candles {
		snap.Timestamps = append(snap.Timestamps, c.Time)
		snap.Opens = append(snap.Opens, c.Open)
		snap.Highs = append(snap.Highs, c.High)
		snap.Lows = append(snap.Lows, c.Low)
		snap.Closes = append(snap.Closes, c.Close)
		snap.Volumes = append(snap.Volumes, c.Volume)
		snap.Trades = append(snap.Trades, c.Trades)
		snap.WAPs = append(snap.WAPs, c.WAP)
	}

	return snap
}
