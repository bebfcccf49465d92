// Package live runs a strategy against a realtime subscription. One task
// pumps the broker, the other waits for bars and lets the strategy decide.
package live

import (
	"context"
	"sync"
	"time"

	"github.com/rxtech-lab/argo-engine/internal/broker"
	"github.com/rxtech-lab/argo-engine/internal/logger"
	"github.com/rxtech-lab/argo-engine/internal/marketdata"
	"github.com/rxtech-lab/argo-engine/internal/ordermanager"
	"github.com/rxtech-lab/argo-engine/internal/position"
	"github.com/rxtech-lab/argo-engine/internal/strategy"
	"github.com/rxtech-lab/argo-engine/internal/types"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Simulator is implemented by order managers that fill orders against bars
// themselves. The runner feeds them every received bar before deciding.
type Simulator interface {
	Simulate(bar types.Bar) error
}

// Status is a point-in-time view of a runner.
type Status struct {
	Instrument      string             `json:"instrument"`
	Strategy        string             `json:"strategy"`
	Running         bool               `json:"running"`
	BarsIngested    int                `json:"bars_ingested"`
	LastBar         *time.Time         `json:"last_bar,omitempty"`
	ActiveOrders    int                `json:"active_orders"`
	CompletedOrders int                `json:"completed_orders"`
	Pnl             map[string]float64 `json:"pnl"`
	TotalPnl        float64            `json:"total_pnl"`
}

// Config selects what the runner subscribes to.
type Config struct {
	Instrument     string
	BarSizeSeconds int
}

// Runner owns one realtime subscription and one strategy.
type Runner struct {
	config        Config
	broker        broker.Broker
	manager       ordermanager.OrderManager
	factory       strategy.Factory
	tracker       *position.Tracker
	log           *logger.Logger
	cycleInterval time.Duration
	decideTimeout time.Duration

	mu           sync.Mutex
	stream       *marketdata.Stream
	strategyName string
	running      bool
	bars         []types.Bar
}

// Option configures a Runner.
type Option func(*Runner)

// WithCycleInterval sets the pause between broker cycles.
func WithCycleInterval(d time.Duration) Option {
	return func(r *Runner) {
		r.cycleInterval = d
	}
}

// WithDecideTimeout sets how long the decision task waits for bars before
// checking the subscription again.
func WithDecideTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.decideTimeout = d
	}
}

// WithTracker reports the tracker's pnl in Status.
func WithTracker(tracker *position.Tracker) Option {
	return func(r *Runner) {
		r.tracker = tracker
	}
}

// NewRunner binds a broker, an order manager and a strategy factory.
func NewRunner(config Config, b broker.Broker, manager ordermanager.OrderManager, factory strategy.Factory, log *logger.Logger, opts ...Option) (*Runner, error) {
	if config.Instrument == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "instrument is required")
	}

	if config.BarSizeSeconds <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "bar size must be positive, got %d", config.BarSizeSeconds)
	}

	if b == nil || manager == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "a broker and an order manager are required")
	}

	if factory == nil {
		return nil, errors.New(errors.ErrCodeBacktestNoStrategy, "a strategy factory is required")
	}

	r := &Runner{
		config:        config,
		broker:        b,
		manager:       manager,
		factory:       factory,
		tracker:       nil,
		log:           log.Named("live").With(zap.String("instrument", config.Instrument)),
		cycleInterval: 100 * time.Millisecond,
		decideTimeout: time.Second,
		mu:            sync.Mutex{},
		stream:        nil,
		strategyName:  "",
		running:       false,
		bars:          nil,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Run subscribes and runs both tasks until ctx is cancelled, the
// subscription ends or a task fails. It returns once both tasks have joined.
func (r *Runner) Run(ctx context.Context) error {
	if !r.broker.IsConnected() {
		if err := r.broker.Connect(ctx); err != nil {
			return errors.Wrap(errors.ErrCodeBrokerConnectionFailed, "failed to connect broker", err)
		}
	}

	stream, err := marketdata.NewStream(r.config.Instrument, r.config.BarSizeSeconds, r.log)
	if err != nil {
		return err
	}

	sub := broker.NewRealtimeSubscription(r.config.Instrument, r.config.BarSizeSeconds)

	onBar := sub.OnBar.Subscribe(func(bar types.Bar) {
		r.mu.Lock()
		r.bars = append(r.bars, bar)
		r.mu.Unlock()

		stream.AddBars(bar)
	})
	defer onBar.Close()

	strat, err := r.factory(stream, r.manager)
	if err != nil {
		return errors.Wrap(errors.ErrCodeBacktestInitFailed, "failed to create strategy", err)
	}

	if closer, ok := strat.(interface{ Close() }); ok {
		defer closer.Close()
	}

	if err := r.broker.AddSubscription(sub); err != nil {
		return errors.Wrap(errors.ErrCodeSubscriptionFailed, "failed to subscribe", err)
	}

	r.mu.Lock()
	r.stream = stream
	r.strategyName = strat.Name()
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	r.log.Info("live runner started", zap.String("strategy", strat.Name()))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return broker.RunCycles(gctx, r.broker, r.cycleInterval, r.log)
	})

	g.Go(func() error {
		// the broker task has nothing left to do once the subscription ends
		defer cancel()

		return r.decide(gctx, stream, sub, strat)
	})

	err = g.Wait()

	if !sub.IsDone() {
		sub.CancelSubscription()
	}

	r.log.Info("live runner stopped", zap.Int("bars", stream.Len()), zap.Error(err))

	return err
}

func (r *Runner) decide(ctx context.Context, stream *marketdata.Stream, sub *broker.Subscription, strat strategy.Strategy) error {
	simulator, simulate := r.manager.(Simulator)

	for {
		if ctx.Err() != nil {
			return nil
		}

		if !stream.WaitForDataContext(ctx, r.decideTimeout) {
			if sub.IsDone() && stream.Pending() == 0 {
				break
			}

			continue
		}

		if simulate {
			for _, bar := range r.takeBars() {
				if err := simulator.Simulate(bar); err != nil {
					r.log.Error("simulation failed", zap.Time("bar", bar.Time), zap.Error(err))

					return err
				}
			}
		}

		if err := strat.Decide(); err != nil {
			r.log.Error("strategy failed", zap.Error(err))

			return errors.Wrap(errors.ErrCodeStrategyRuntimeError, "strategy decide failed", err)
		}
	}

	if err := sub.Err(); err != nil {
		r.log.Warn("subscription failed", zap.Error(err))

		return errors.Wrap(errors.ErrCodeSubscriptionFailed, "realtime subscription failed", err)
	}

	return nil
}

func (r *Runner) takeBars() []types.Bar {
	r.mu.Lock()
	defer r.mu.Unlock()

	bars := r.bars
	r.bars = nil

	return bars
}

// Status returns a snapshot of the runner.
func (r *Runner) Status() Status {
	r.mu.Lock()
	stream := r.stream
	status := Status{
		Instrument:      r.config.Instrument,
		Strategy:        r.strategyName,
		Running:         r.running,
		BarsIngested:    0,
		LastBar:         nil,
		ActiveOrders:    len(r.manager.ActiveOrders()),
		CompletedOrders: len(r.manager.CompletedOrders()),
		Pnl:             map[string]float64{},
		TotalPnl:        0,
	}
	r.mu.Unlock()

	if stream != nil {
		status.BarsIngested = stream.Len()

		if last := stream.Last(); last.IsSome() {
			t := last.Unwrap().Time
			status.LastBar = &t
		}
	}

	if r.tracker != nil {
		status.Pnl = r.tracker.GetPnl()
		status.TotalPnl = r.tracker.TotalPnl().InexactFloat64()
	}

	return status
}
