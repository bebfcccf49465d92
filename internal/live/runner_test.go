package live

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-engine/internal/broker/replay"
	"github.com/rxtech-lab/argo-engine/internal/logger"
	"github.com/rxtech-lab/argo-engine/internal/marketdata"
	"github.com/rxtech-lab/argo-engine/internal/order"
	"github.com/rxtech-lab/argo-engine/internal/ordermanager"
	"github.com/rxtech-lab/argo-engine/internal/ordermanager/commission_fee"
	"github.com/rxtech-lab/argo-engine/internal/position"
	"github.com/rxtech-lab/argo-engine/internal/strategy"
	"github.com/rxtech-lab/argo-engine/internal/types"
	"github.com/rxtech-lab/argo-engine/mocks"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type RunnerTestSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	log     *logger.Logger
	start   time.Time
	tracker *position.Tracker
	manager *ordermanager.BacktestOrderManager
}

func TestRunnerSuite(t *testing.T) {
	suite.Run(t, new(RunnerTestSuite))
}

func (suite *RunnerTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.log = logger.NewNopLogger()
	suite.start = time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	suite.tracker = position.NewTracker(suite.log)
	suite.manager = ordermanager.NewBacktestOrderManager(suite.log, commission_fee.NewZeroCommissionFee(),
		ordermanager.WithPositionTracker(suite.tracker))
}

func (suite *RunnerTestSuite) TearDownTest() {
	suite.ctrl.Finish()
}

// replayBroker writes count bars, all with low 100 except the ones in dips
// which reach down to 90.
func (suite *RunnerTestSuite) replayBroker(count int, dips ...int) *replay.Broker {
	bars := make([]types.Bar, count)

	for i := range bars {
		low := 100.0
		for _, d := range dips {
			if d == i {
				low = 90
			}
		}

		bars[i] = types.NewBar(60, suite.start.Add(time.Duration(i)*time.Minute), 101, 102, low, 101, 100, 1, 101)
	}

	path := filepath.Join(suite.T().TempDir(), "bars.csv")

	f, err := os.Create(path)
	suite.Require().NoError(err)
	suite.Require().NoError(types.WriteBars(f, bars))
	suite.Require().NoError(f.Close())

	b, err := replay.New(path, 60, suite.log, replay.WithBatchSize(5))
	suite.Require().NoError(err)

	return b
}

func (suite *RunnerTestSuite) runner(b *replay.Broker, factory strategy.Factory) *Runner {
	r, err := NewRunner(Config{Instrument: "AAPL", BarSizeSeconds: 60}, b, suite.manager, factory, suite.log,
		WithCycleInterval(time.Millisecond),
		WithDecideTimeout(20*time.Millisecond),
		WithTracker(suite.tracker),
	)
	suite.Require().NoError(err)

	return r
}

func (suite *RunnerTestSuite) TestNewRunnerValidation() {
	factory := strategy.Factory(func(*marketdata.Stream, ordermanager.OrderManager) (strategy.Strategy, error) {
		return nil, nil
	})
	b := mocks.NewMockBroker(suite.ctrl)

	_, err := NewRunner(Config{Instrument: "", BarSizeSeconds: 60}, b, suite.manager, factory, suite.log)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	_, err = NewRunner(Config{Instrument: "AAPL", BarSizeSeconds: 0}, b, suite.manager, factory, suite.log)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	_, err = NewRunner(Config{Instrument: "AAPL", BarSizeSeconds: 60}, nil, suite.manager, factory, suite.log)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	_, err = NewRunner(Config{Instrument: "AAPL", BarSizeSeconds: 60}, b, suite.manager, nil, suite.log)
	suite.True(errors.HasCode(err, errors.ErrCodeBacktestNoStrategy))
}

func (suite *RunnerTestSuite) TestRunsUntilSubscriptionEnds() {
	var decisions atomic.Int32

	strat := mocks.NewMockStrategy(suite.ctrl)
	strat.EXPECT().Name().Return("counting").AnyTimes()
	strat.EXPECT().Decide().DoAndReturn(func() error {
		decisions.Add(1)

		return nil
	}).MinTimes(1)

	r := suite.runner(suite.replayBroker(20), func(*marketdata.Stream, ordermanager.OrderManager) (strategy.Strategy, error) {
		return strat, nil
	})

	suite.False(r.Status().Running)

	suite.Require().NoError(r.Run(context.Background()))

	status := r.Status()
	suite.Equal("AAPL", status.Instrument)
	suite.Equal("counting", status.Strategy)
	suite.False(status.Running)
	suite.Equal(20, status.BarsIngested)
	suite.Require().NotNil(status.LastBar)
	suite.True(suite.start.Add(19 * time.Minute).Equal(*status.LastBar))
	suite.LessOrEqual(int(decisions.Load()), 20)
}

func (suite *RunnerTestSuite) TestSimulatesFillsBeforeDeciding() {
	var (
		stream  *marketdata.Stream
		manager ordermanager.OrderManager
		placed  bool
	)

	strat := mocks.NewMockStrategy(suite.ctrl)
	strat.EXPECT().Name().Return("dip_buyer").AnyTimes()
	strat.EXPECT().Decide().DoAndReturn(func() error {
		if placed || stream.Len() == 0 {
			return nil
		}

		placed = true

		o, err := order.NewSimple(order.NewSequenceGenerator("live"), "AAPL", types.DirectionBuy, types.ExecTypeLimit, 3, 95)
		if err != nil {
			return err
		}

		return manager.Transmit(o)
	}).MinTimes(1)

	r := suite.runner(suite.replayBroker(20, 12), func(s *marketdata.Stream, m ordermanager.OrderManager) (strategy.Strategy, error) {
		stream = s
		manager = m

		return strat, nil
	})

	suite.Require().NoError(r.Run(context.Background()))

	status := r.Status()
	suite.Equal(0, status.ActiveOrders)
	suite.Equal(1, status.CompletedOrders)

	snapshot := suite.tracker.Position("AAPL")
	suite.Require().True(snapshot.IsSome())
	suite.Equal(3.0, snapshot.Unwrap().Net())
}

func (suite *RunnerTestSuite) TestStrategyErrorStopsRun() {
	strat := mocks.NewMockStrategy(suite.ctrl)
	strat.EXPECT().Name().Return("failing").AnyTimes()
	strat.EXPECT().Decide().Return(errors.New(errors.ErrCodeInvalidParameter, "boom"))

	r := suite.runner(suite.replayBroker(20), func(*marketdata.Stream, ordermanager.OrderManager) (strategy.Strategy, error) {
		return strat, nil
	})

	err := r.Run(context.Background())
	suite.True(errors.HasCode(err, errors.ErrCodeStrategyRuntimeError))
	suite.False(r.Status().Running)
}

func (suite *RunnerTestSuite) TestFactoryError() {
	r := suite.runner(suite.replayBroker(5), func(*marketdata.Stream, ordermanager.OrderManager) (strategy.Strategy, error) {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "bad")
	})

	err := r.Run(context.Background())
	suite.True(errors.HasCode(err, errors.ErrCodeBacktestInitFailed))
}

func (suite *RunnerTestSuite) TestCancelStopsBothTasks() {
	b := mocks.NewMockBroker(suite.ctrl)
	b.EXPECT().IsConnected().Return(false)
	b.EXPECT().Connect(gomock.Any()).Return(nil)
	b.EXPECT().AddSubscription(gomock.Any()).Return(nil)
	b.EXPECT().ProcessCycle(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
		return ctx.Err()
	}).AnyTimes()

	strat := mocks.NewMockStrategy(suite.ctrl)
	strat.EXPECT().Name().Return("idle").AnyTimes()

	r, err := NewRunner(Config{Instrument: "AAPL", BarSizeSeconds: 60}, b, suite.manager,
		func(*marketdata.Stream, ordermanager.OrderManager) (strategy.Strategy, error) { return strat, nil },
		suite.log, WithCycleInterval(time.Millisecond), WithDecideTimeout(5*time.Millisecond))
	suite.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- r.Run(ctx) }()

	suite.Eventually(func() bool { return r.Status().Running }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		suite.NoError(err)
	case <-time.After(2 * time.Second):
		suite.Fail("runner did not stop")
	}

	suite.False(r.Status().Running)
}

func (suite *RunnerTestSuite) TestBrokerFailureStopsRun() {
	b := mocks.NewMockBroker(suite.ctrl)
	b.EXPECT().IsConnected().Return(true)
	b.EXPECT().AddSubscription(gomock.Any()).Return(nil)
	b.EXPECT().ProcessCycle(gomock.Any()).Return(errors.New(errors.ErrCodeBrokerNotConnected, "gone"))

	strat := mocks.NewMockStrategy(suite.ctrl)
	strat.EXPECT().Name().Return("idle").AnyTimes()

	r, err := NewRunner(Config{Instrument: "AAPL", BarSizeSeconds: 60}, b, suite.manager,
		func(*marketdata.Stream, ordermanager.OrderManager) (strategy.Strategy, error) { return strat, nil },
		suite.log, WithCycleInterval(time.Millisecond), WithDecideTimeout(5*time.Millisecond))
	suite.Require().NoError(err)

	err = r.Run(context.Background())
	suite.True(errors.HasCode(err, errors.ErrCodeBrokerConnectionFailed))
}
