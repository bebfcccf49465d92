// Package marketdata holds the bar stream shared by brokers, strategies and
// the backtest engine.
//
// Producers call AddBars, which only appends to a staging buffer. Consumers
// call WaitForData, which drains the buffer and merges the bars into sorted
// columnar storage outside the producer-facing lock.
package marketdata

import (
	"context"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-engine/internal/event"
	"github.com/rxtech-lab/argo-engine/internal/logger"
	"github.com/rxtech-lab/argo-engine/internal/types"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
	"go.uber.org/zap"
)

// Update describes one drain of the staging buffer.
type Update struct {
	// Added is the number of bars merged into the stream.
	Added int
	// Rejected is the number of bars dropped for having the wrong size.
	Rejected int
	// Reordered is true if any bar was inserted before the tail.
	Reordered bool
}

// Stream is a time-ordered series of bars of a single size.
type Stream struct {
	instrument     string
	barSizeSeconds int
	log            *logger.Logger

	stagingMu sync.Mutex
	staging   []types.Bar
	notify    chan struct{}

	mu      sync.RWMutex
	times   []time.Time
	opens   []float64
	highs   []float64
	lows    []float64
	closes  []float64
	volumes []float64
	trades  []int64
	waps    []float64

	rejected atomic.Int64

	// Reordered fires at most once per drain, before Updated, when a bar was
	// inserted anywhere but the tail.
	Reordered *event.Signal[Update]
	// Updated fires after every drain.
	Updated *event.Signal[Update]
}

// NewStream creates an empty stream for bars of barSizeSeconds.
func NewStream(instrument string, barSizeSeconds int, log *logger.Logger) (*Stream, error) {
	if barSizeSeconds <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "bar size must be positive, got %d", barSizeSeconds)
	}

	return &Stream{
		instrument:     instrument,
		barSizeSeconds: barSizeSeconds,
		log:            log.Named("stream").With(zap.String("instrument", instrument)),
		stagingMu:      sync.Mutex{},
		staging:        nil,
		notify:         make(chan struct{}, 1),
		mu:             sync.RWMutex{},
		times:          nil,
		opens:          nil,
		highs:          nil,
		lows:           nil,
		closes:         nil,
		volumes:        nil,
		trades:         nil,
		waps:           nil,
		rejected:       atomic.Int64{},
		Reordered:      event.NewSignal[Update](),
		Updated:        event.NewSignal[Update](),
	}, nil
}

// Instrument returns the instrument the stream carries.
func (s *Stream) Instrument() string { return s.instrument }

// BarSizeSeconds returns the configured bar size.
func (s *Stream) BarSizeSeconds() int { return s.barSizeSeconds }

// AddBars stages bars for the next WaitForData call and wakes a waiter.
func (s *Stream) AddBars(bars ...types.Bar) {
	if len(bars) == 0 {
		return
	}

	s.stagingMu.Lock()
	s.staging = append(s.staging, bars...)
	s.stagingMu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Pending returns the number of staged bars not yet drained.
func (s *Stream) Pending() int {
	s.stagingMu.Lock()
	defer s.stagingMu.Unlock()

	return len(s.staging)
}

// WaitForData blocks until bars are staged or the timeout elapses. It returns
// false on timeout without touching the stream. On success the staged bars
// are merged and the notifications fire before it returns true.
func (s *Stream) WaitForData(timeout time.Duration) bool {
	return s.WaitForDataContext(context.Background(), timeout)
}

// WaitForDataContext is WaitForData that also returns false once ctx is done.
func (s *Stream) WaitForDataContext(ctx context.Context, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if drained := s.drain(); len(drained) > 0 {
			s.merge(drained)

			return true
		}

		select {
		case <-s.notify:
		case <-timer.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

func (s *Stream) drain() []types.Bar {
	s.stagingMu.Lock()
	defer s.stagingMu.Unlock()

	drained := s.staging
	s.staging = nil

	return drained
}

func (s *Stream) merge(bars []types.Bar) {
	update := Update{Added: 0, Rejected: 0, Reordered: false}

	for _, bar := range bars {
		if bar.BarSizeSeconds != s.barSizeSeconds {
			update.Rejected++
			s.rejected.Add(1)

			err := errors.Newf(errors.ErrCodeBarSizeMismatch,
				"bar size %d does not match stream bar size %d", bar.BarSizeSeconds, s.barSizeSeconds)
			s.log.Warn("dropping bar", zap.Time("time", bar.Time), zap.Error(err))

			continue
		}

		if !s.insert(bar) {
			update.Reordered = true
		}

		update.Added++
	}

	if update.Reordered {
		s.Reordered.Emit(update)
	}

	s.Updated.Emit(update)
}

// insert places bar after every bar with an equal or earlier timestamp and
// reports whether it landed at the tail.
func (s *Stream) insert(bar types.Bar) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.times)
	idx := sort.Search(n, func(i int) bool { return s.times[i].After(bar.Time) })

	s.times = slices.Insert(s.times, idx, bar.Time)
	s.opens = slices.Insert(s.opens, idx, bar.Open)
	s.highs = slices.Insert(s.highs, idx, bar.High)
	s.lows = slices.Insert(s.lows, idx, bar.Low)
	s.closes = slices.Insert(s.closes, idx, bar.Close)
	s.volumes = slices.Insert(s.volumes, idx, bar.Volume)
	s.trades = slices.Insert(s.trades, idx, bar.Trades)
	s.waps = slices.Insert(s.waps, idx, bar.WAP)

	return idx == n
}

// Rejected returns how many bars were dropped for having the wrong size.
func (s *Stream) Rejected() int64 {
	return s.rejected.Load()
}

// Len returns the number of merged bars.
func (s *Stream) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.times)
}

// Bar returns the bar at index i. It panics if i is out of range.
func (s *Stream) Bar(i int) types.Bar {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.barAt(i)
}

func (s *Stream) barAt(i int) types.Bar {
	return types.Bar{
		BarSizeSeconds: s.barSizeSeconds,
		Time:           s.times[i],
		Open:           s.opens[i],
		High:           s.highs[i],
		Low:            s.lows[i],
		Close:          s.closes[i],
		Volume:         s.volumes[i],
		Trades:         s.trades[i],
		WAP:            s.waps[i],
	}
}

// Slice returns the bars with index in [start, end), clamped to the stream.
func (s *Stream) Slice(start, end int) []types.Bar {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start = max(start, 0)
	end = min(end, len(s.times))

	if start >= end {
		return nil
	}

	out := make([]types.Bar, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, s.barAt(i))
	}

	return out
}

// Bars returns a copy of every merged bar.
func (s *Stream) Bars() []types.Bar {
	return s.Slice(0, s.Len())
}

// Range returns the bars whose time falls in [from, to).
func (s *Stream) Range(from, to time.Time) []types.Bar {
	s.mu.RLock()
	start := sort.Search(len(s.times), func(i int) bool { return !s.times[i].Before(from) })
	end := sort.Search(len(s.times), func(i int) bool { return !s.times[i].Before(to) })
	s.mu.RUnlock()

	return s.Slice(start, end)
}

// Last returns the most recent bar, if any.
func (s *Stream) Last() optional.Option[types.Bar] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.times) == 0 {
		return optional.None[types.Bar]()
	}

	return optional.Some(s.barAt(len(s.times) - 1))
}

// Timestamps returns a copy of the bar times.
func (s *Stream) Timestamps() []time.Time { return column(s, func() []time.Time { return s.times }) }

// Opens returns a copy of the open prices.
func (s *Stream) Opens() []float64 { return column(s, func() []float64 { return s.opens }) }

// Highs returns a copy of the high prices.
func (s *Stream) Highs() []float64 { return column(s, func() []float64 { return s.highs }) }

// Lows returns a copy of the low prices.
func (s *Stream) Lows() []float64 { return column(s, func() []float64 { return s.lows }) }

// Closes returns a copy of the close prices.
func (s *Stream) Closes() []float64 { return column(s, func() []float64 { return s.closes }) }

// Volumes returns a copy of the volumes.
func (s *Stream) Volumes() []float64 { return column(s, func() []float64 { return s.volumes }) }

// Trades returns a copy of the trade counts.
func (s *Stream) Trades() []int64 { return column(s, func() []int64 { return s.trades }) }

// WAPs returns a copy of the weighted average prices.
func (s *Stream) WAPs() []float64 { return column(s, func() []float64 { return s.waps }) }

func column[T any](s *Stream, col func() []T) []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(col())
}
