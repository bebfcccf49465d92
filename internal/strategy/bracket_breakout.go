package strategy

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-engine/internal/indicator"
	"github.com/rxtech-lab/argo-engine/internal/logger"
	"github.com/rxtech-lab/argo-engine/internal/marketdata"
	"github.com/rxtech-lab/argo-engine/internal/marketdata/window"
	"github.com/rxtech-lab/argo-engine/internal/order"
	"github.com/rxtech-lab/argo-engine/internal/ordermanager"
	"github.com/rxtech-lab/argo-engine/internal/types"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
	"go.uber.org/zap"
)

// BracketBreakoutConfig configures BracketBreakout.
type BracketBreakoutConfig struct {
	CandleWidthSeconds int                `yaml:"candle_width_seconds" json:"candle_width_seconds" validate:"required,gt=0"`
	Lookback           int                `yaml:"lookback" json:"lookback" validate:"required,gt=1"`
	Quantity           float64            `yaml:"quantity" json:"quantity" validate:"required,gt=0"`
	ProfitPercent      float64            `yaml:"profit_percent" json:"profit_percent" validate:"required,gt=0"`
	StopPercent        float64            `yaml:"stop_percent" json:"stop_percent" validate:"required,gt=0,lt=100"`
	Aggregation        window.Aggregation `yaml:"aggregation" json:"aggregation"`
	// TrendPeriod, when set, only takes breakouts that close above the average
	// close of the last TrendPeriod source bars.
	TrendPeriod int `yaml:"trend_period" json:"trend_period" validate:"gte=0"`
}

// DefaultBracketBreakoutConfig breaks out of five one-minute candles with a
// 1% target and a 0.5% stop.
func DefaultBracketBreakoutConfig() BracketBreakoutConfig {
	return BracketBreakoutConfig{
		CandleWidthSeconds: 60,
		Lookback:           5,
		Quantity:           1,
		ProfitPercent:      1,
		StopPercent:        0.5,
		Aggregation:        window.AggregateOHLC,
		TrendPeriod:        0,
	}
}

// BracketBreakout buys a bracket when the newest candle closes above the
// highest high of the candles before it.
type BracketBreakout struct {
	config  BracketBreakoutConfig
	stream  *marketdata.Stream
	manager ordermanager.OrderManager
	window  *window.Window
	ids     order.IDGenerator
	log     *logger.Logger

	lastSignal time.Time
}

// NewBracketBreakoutFactory returns a Factory for BracketBreakout.
func NewBracketBreakoutFactory(config BracketBreakoutConfig, ids order.IDGenerator, log *logger.Logger) Factory {
	return func(stream *marketdata.Stream, manager ordermanager.OrderManager) (Strategy, error) {
		return NewBracketBreakout(config, stream, manager, ids, log)
	}
}

// NewBracketBreakout validates config and builds the downsampling window.
func NewBracketBreakout(config BracketBreakoutConfig, stream *marketdata.Stream, manager ordermanager.OrderManager, ids order.IDGenerator, log *logger.Logger) (*BracketBreakout, error) {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid bracket breakout config", err)
	}

	if config.Aggregation == "" {
		config.Aggregation = window.AggregateOHLC
	}

	w, err := window.New(stream, config.CandleWidthSeconds, config.Lookback, log, window.WithAggregation(config.Aggregation))
	if err != nil {
		return nil, err
	}

	return &BracketBreakout{
		config:     config,
		stream:     stream,
		manager:    manager,
		window:     w,
		ids:        ids,
		log:        log.Named("bracket_breakout"),
		lastSignal: time.Time{},
	}, nil
}

// Name implements Strategy.
func (s *BracketBreakout) Name() string { return "bracket_breakout" }

// Window exposes the strategy's downsampling window.
func (s *BracketBreakout) Window() *window.Window { return s.window }

// Decide implements Strategy.
func (s *BracketBreakout) Decide() error {
	if s.manager.HasActiveOrders() || !s.window.Ok() {
		return nil
	}

	candles := s.window.Candles()
	last := candles[len(candles)-1]

	if !last.Time.After(s.lastSignal) {
		return nil
	}

	previousHigh := candles[0].High
	for _, c := range candles[1 : len(candles)-1] {
		previousHigh = max(previousHigh, c.High)
	}

	if last.Close <= previousHigh {
		return nil
	}

	if s.config.TrendPeriod > 0 {
		n := s.stream.Len()
		if n < s.config.TrendPeriod {
			return nil
		}

		average, err := indicator.SMA(s.stream.Slice(n-s.config.TrendPeriod, n), s.config.TrendPeriod)
		if err != nil {
			return err
		}

		if last.Close <= average {
			return nil
		}
	}

	entry := last.Close
	profit := entry * (1 + s.config.ProfitPercent/100)
	stop := entry * (1 - s.config.StopPercent/100)

	bracket, err := order.NewBracket(s.ids, s.stream.Instrument(), types.DirectionBuy, s.config.Quantity,
		types.ExecTypeLimit, entry, profit, stop)
	if err != nil {
		return err
	}

	if err := s.manager.Transmit(bracket); err != nil {
		return errors.Wrap(errors.ErrCodeStrategyRuntimeError, "failed to transmit bracket", err)
	}

	s.lastSignal = last.Time

	s.log.Debug("breakout",
		zap.Time("candle", last.Time),
		zap.Float64("close", last.Close),
		zap.Float64("previous_high", previousHigh),
		zap.String("order_id", bracket.ID()),
	)

	return nil
}

// Close releases the window subscriptions.
func (s *BracketBreakout) Close() {
	s.window.Close()
}
