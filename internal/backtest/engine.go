// Package backtest replays historical bars through a strategy and a
// simulated order manager.
package backtest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-engine/internal/broker"
	"github.com/rxtech-lab/argo-engine/internal/logger"
	"github.com/rxtech-lab/argo-engine/internal/marketdata"
	"github.com/rxtech-lab/argo-engine/internal/order"
	"github.com/rxtech-lab/argo-engine/internal/ordermanager"
	"github.com/rxtech-lab/argo-engine/internal/ordermanager/commission_fee"
	"github.com/rxtech-lab/argo-engine/internal/position"
	"github.com/rxtech-lab/argo-engine/internal/strategy"
	"github.com/rxtech-lab/argo-engine/internal/types"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
	"go.uber.org/zap"
)

// OnProcessDataCallback is called after each replayed bar. Returning an
// error aborts the run.
type OnProcessDataCallback func(current int, total int) error

// OnFillCallback is called for every simulated fill.
type OnFillCallback func(fill ordermanager.Fill)

// Callbacks holds the run callbacks. Nil fields are not invoked.
type Callbacks struct {
	OnProcessData *OnProcessDataCallback
	OnFill        *OnFillCallback
}

// Result is the outcome of a run.
type Result struct {
	RunID   string
	Summary types.TradeSummary
	// OriginalBars is the series as received from the broker.
	OriginalBars []types.Bar
	// ReplayedBars is the series the strategy's stream ended up with.
	ReplayedBars []types.Bar
	Orders       []order.Order
	Fills        []ordermanager.Fill
	Pnl          map[string]float64
}

// Engine runs backtests for one config.
type Engine struct {
	config       Config
	broker       broker.Broker
	factory      strategy.Factory
	commission   commission_fee.CommissionFee
	log          *logger.Logger
	pollInterval time.Duration
	multipliers  map[string]float64
	newRunID     func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithPollInterval sets how long the loader waits for bars after each broker cycle.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.pollInterval = d
	}
}

// WithMultipliers replaces the position tracker's contract multiplier table,
// including the entries taken from the config.
func WithMultipliers(table map[string]float64) Option {
	return func(e *Engine) {
		e.multipliers = table
	}
}

// WithRunID replaces the run id generator.
func WithRunID(newRunID func() string) Option {
	return func(e *Engine) {
		e.newRunID = newRunID
	}
}

// NewEngine validates config and binds the broker and strategy factory.
func NewEngine(config Config, b broker.Broker, factory strategy.Factory, log *logger.Logger, opts ...Option) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if b == nil {
		return nil, errors.New(errors.ErrCodeBacktestInitFailed, "a broker is required")
	}

	if factory == nil {
		return nil, errors.New(errors.ErrCodeBacktestNoStrategy, "a strategy factory is required")
	}

	commission, err := commission_fee.GetCommissionFeeHandler(config.Commission, config.CommissionRate)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBacktestConfigError, "invalid commission", err)
	}

	e := &Engine{
		config:       config,
		broker:       b,
		factory:      factory,
		commission:   commission,
		log:          log.Named("backtest").With(zap.String("symbol", config.Symbol)),
		pollInterval: 10 * time.Millisecond,
		multipliers:  config.multipliers(),
		newRunID:     func() string { return uuid.New().String() },
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Run loads the historical bars and replays them.
func (e *Engine) Run(ctx context.Context, callbacks Callbacks) (*Result, error) {
	runID := e.newRunID()
	log := e.log.With(zap.String("run_id", runID))

	bars, err := e.load(ctx, log)
	if err != nil {
		return nil, err
	}

	log.Info("historical bars loaded", zap.Int("bars", len(bars)))

	return e.replay(ctx, runID, bars, callbacks, log)
}

// load subscribes for the configured period and pumps the broker until the
// subscription ends.
func (e *Engine) load(ctx context.Context, log *logger.Logger) ([]types.Bar, error) {
	if !e.broker.IsConnected() {
		if err := e.broker.Connect(ctx); err != nil {
			return nil, errors.Wrap(errors.ErrCodeBacktestInitFailed, "failed to connect broker", err)
		}
	}

	historical, err := marketdata.NewStream(e.config.Symbol, e.config.BarSizeSeconds, log)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBacktestInitFailed, "failed to create historical stream", err)
	}

	start, end := e.config.period()
	sub := broker.NewHistoricalSubscription(e.config.Symbol, e.config.BarSizeSeconds, start, end)

	onBar := sub.OnBar.Subscribe(func(bar types.Bar) {
		historical.AddBars(bar)
	})
	defer onBar.Close()

	if err := e.broker.AddSubscription(sub); err != nil {
		return nil, errors.Wrap(errors.ErrCodeSubscriptionFailed, "failed to subscribe to historical bars", err)
	}

	for !sub.IsDone() {
		if err := ctx.Err(); err != nil {
			sub.CancelSubscription()

			return nil, err
		}

		if err := e.broker.ProcessCycle(ctx); err != nil {
			sub.CancelSubscription()

			return nil, errors.Wrap(errors.ErrCodeHistoricalDataFailed, "broker cycle failed", err)
		}

		historical.WaitForDataContext(ctx, e.pollInterval)
	}

	if err := sub.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeSubscriptionFailed, "historical subscription failed", err)
	}

	for historical.Pending() > 0 {
		historical.WaitForData(0)
	}

	if rejected := historical.Rejected(); rejected > 0 {
		log.Warn("historical bars rejected", zap.Int64("rejected", rejected))
	}

	if historical.Len() == 0 {
		return nil, errors.Newf(errors.ErrCodeDataNotFound, "no bars for %s in the requested period", e.config.Symbol)
	}

	return historical.Bars(), nil
}

// replay feeds bars one at a time. While orders are active a bar is only
// simulated and buffered; once none are, the buffered bars reach the stream
// and the strategy decides once.
func (e *Engine) replay(ctx context.Context, runID string, bars []types.Bar, callbacks Callbacks, log *logger.Logger) (*Result, error) {
	stream, err := marketdata.NewStream(e.config.Symbol, e.config.BarSizeSeconds, log)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBacktestInitFailed, "failed to create simulation stream", err)
	}

	trackerOpts := []position.Option{}
	if e.multipliers != nil {
		trackerOpts = append(trackerOpts, position.WithMultipliers(e.multipliers))
	}

	tracker := position.NewTracker(log, trackerOpts...)
	manager := ordermanager.NewBacktestOrderManager(log, e.commission, ordermanager.WithPositionTracker(tracker))

	if callbacks.OnFill != nil {
		onFill := *callbacks.OnFill
		sub := manager.Filled.Subscribe(func(fill ordermanager.Fill) { onFill(fill) })

		defer sub.Close()
	}

	strat, err := e.factory(stream, manager)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBacktestInitFailed, "failed to create strategy", err)
	}

	if closer, ok := strat.(interface{ Close() }); ok {
		defer closer.Close()
	}

	log = log.With(zap.String("strategy", strat.Name()))

	var pending []types.Bar

	flush := func() {
		if len(pending) == 0 {
			return
		}

		stream.AddBars(pending...)
		stream.WaitForData(0)

		pending = pending[:0]
	}

	for i, bar := range bars {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pending = append(pending, bar)

		if manager.HasActiveOrders() {
			if err := manager.Simulate(bar); err != nil {
				log.Error("simulation failed", zap.Time("bar", bar.Time), zap.Error(err))

				return nil, err
			}
		} else {
			flush()

			if err := strat.Decide(); err != nil {
				log.Error("strategy failed", zap.Time("bar", bar.Time), zap.Error(err))

				return nil, errors.Wrap(errors.ErrCodeStrategyRuntimeError, "strategy decide failed", err)
			}
		}

		if callbacks.OnProcessData != nil {
			if err := (*callbacks.OnProcessData)(i+1, len(bars)); err != nil {
				return nil, err
			}
		}
	}

	flush()

	orders := append(manager.CompletedOrders(), manager.ActiveOrders()...)

	summary, err := e.summarize(runID, orders, tracker)
	if err != nil {
		return nil, err
	}

	log.Info("backtest finished",
		zap.Int("entries", summary.Entries),
		zap.Int("profit_triggers", summary.ProfitTriggers),
		zap.Int("stop_triggers", summary.StopTriggers),
		zap.Float64("balance", summary.Balance),
	)

	return &Result{
		RunID:        runID,
		Summary:      summary,
		OriginalBars: bars,
		ReplayedBars: stream.Bars(),
		Orders:       orders,
		Fills:        manager.Fills(),
		Pnl:          tracker.GetPnl(),
	}, nil
}

func (e *Engine) summarize(runID string, orders []order.Order, tracker *position.Tracker) (types.TradeSummary, error) {
	summary := types.NewTradeSummary(runID, e.config.Symbol)

	for _, o := range orders {
		err := order.Summarize(o, &summary)
		if err != nil && !errors.HasCode(err, errors.ErrCodeOrderNotFilled) {
			return summary, err
		}
	}

	summary.RealizedPnL = tracker.GetPnl()
	summary.Balance = e.config.InitialCapital + tracker.TotalPnl().InexactFloat64() - summary.Commissions
	summary.Timestamp = time.Now().UTC()

	return summary, nil
}
