// Package strategy defines the decision-making contract driven by the
// backtest engine and the live runner.
package strategy

import (
	"github.com/rxtech-lab/argo-engine/internal/marketdata"
	"github.com/rxtech-lab/argo-engine/internal/ordermanager"
)

// Strategy reads its stream and submits orders to its manager. Decide is
// called once per settled group of bars.
type Strategy interface {
	Name() string
	Decide() error
}

// Factory builds a strategy bound to a fresh stream and order manager.
type Factory func(stream *marketdata.Stream, manager ordermanager.OrderManager) (Strategy, error)
