package broker

import (
	"github.com/rxtech-lab/argo-engine/internal/types"
)

// Feed pairs a subscription with the bars a broker has fetched for it and
// tracks how many were delivered.
type Feed struct {
	Sub  *Subscription
	bars []types.Bar
	next int
	// loaded is set once the broker fetched the bars for the subscription.
	loaded bool
}

// NewFeed returns a feed with nothing loaded yet.
func NewFeed(sub *Subscription) *Feed {
	return &Feed{
		Sub:    sub,
		bars:   nil,
		next:   0,
		loaded: false,
	}
}

// Loaded reports whether Load was called.
func (f *Feed) Loaded() bool {
	return f.loaded
}

// Load sets the bars to deliver, keeping only those within the subscription window.
func (f *Feed) Load(bars []types.Bar) {
	kept := make([]types.Bar, 0, len(bars))

	for _, b := range bars {
		if f.Sub.Contains(b.Time) {
			kept = append(kept, b)
		}
	}

	f.bars = kept
	f.next = 0
	f.loaded = true
}

// Append adds bars after the ones already loaded.
func (f *Feed) Append(bars ...types.Bar) {
	for _, b := range bars {
		if f.Sub.Contains(b.Time) {
			f.bars = append(f.bars, b)
		}
	}

	f.loaded = true
}

// Remaining returns the number of bars not yet delivered.
func (f *Feed) Remaining() int {
	return len(f.bars) - f.next
}

// DeliverBatch publishes up to n bars (all of them when n <= 0) and returns
// how many were delivered.
func (f *Feed) DeliverBatch(n int) int {
	end := len(f.bars)
	if n > 0 && f.next+n < end {
		end = f.next + n
	}

	batch := f.bars[f.next:end]
	f.next = end

	f.Sub.Deliver(batch...)

	return len(batch)
}

// Exhausted reports whether every loaded bar was delivered.
func (f *Feed) Exhausted() bool {
	return f.loaded && f.next >= len(f.bars)
}
