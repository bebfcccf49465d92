// Package broker defines what the engine needs from an external market data
// and order venue: a connection, bar subscriptions and a processing cycle
// pumped by an owning goroutine.
package broker

import (
	"context"
	"time"

	"github.com/rxtech-lab/argo-engine/internal/logger"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
	"go.uber.org/zap"
)

// Broker is a source of bars. Connect, Disconnect and IsConnected are
// idempotent. ProcessCycle pumps pending events and is called in a loop by a
// single goroutine.
type Broker interface {
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool
	AddSubscription(sub *Subscription) error
	ProcessCycle(ctx context.Context) error
}

// RunCycles drives b until ctx is cancelled, sleeping interval between
// cycles. A cycle error is logged and returned.
func RunCycles(ctx context.Context, b Broker, interval time.Duration, log *logger.Logger) error {
	log = log.Named("broker")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := b.ProcessCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}

			log.Error("broker cycle failed", zap.Error(err))

			return errors.Wrap(errors.ErrCodeBrokerConnectionFailed, "broker cycle failed", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
