package position

import (
	"sync"
	"testing"

	"github.com/rxtech-lab/argo-engine/internal/logger"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type TrackerTestSuite struct {
	suite.Suite
	tracker *Tracker
}

func TestTrackerSuite(t *testing.T) {
	suite.Run(t, new(TrackerTestSuite))
}

func (suite *TrackerTestSuite) SetupTest() {
	suite.tracker = NewTracker(logger.NewNopLogger())
}

type trade struct {
	quantity float64
	price    float64
}

func (suite *TrackerTestSuite) apply(instrument string, trades ...trade) {
	for _, tr := range trades {
		suite.Require().NoError(suite.tracker.HandlePositionUpdate(instrument, tr.quantity, tr.price))
	}
}

func (suite *TrackerTestSuite) TestSimpleRoundTrip() {
	suite.apply("AAPL", trade{10, 100}, trade{-10, 101})

	suite.InDelta(10.0, suite.tracker.GetPnl()["AAPL"], 1e-9)

	snap := suite.tracker.Position("AAPL")
	suite.Require().True(snap.IsSome())
	suite.Empty(snap.Unwrap().Longs)
	suite.Empty(snap.Unwrap().Shorts)
}

func (suite *TrackerTestSuite) TestPartialFIFO() {
	suite.apply("AAPL", trade{2, 100}, trade{1, 103})

	suite.apply("AAPL", trade{-1, 101})
	suite.InDelta(1.0, suite.tracker.GetPnl()["AAPL"], 1e-9)

	suite.apply("AAPL", trade{-1, 102})
	suite.InDelta(3.0, suite.tracker.GetPnl()["AAPL"], 1e-9)

	suite.apply("AAPL", trade{-1, 102})
	suite.InDelta(2.0, suite.tracker.GetPnl()["AAPL"], 1e-9)
}

func (suite *TrackerTestSuite) TestFuturesMultiplier() {
	suite.apply("MES", trade{10, 100}, trade{-10, 101})
	suite.InDelta(50.0, suite.tracker.GetPnl()["MES"], 1e-9)
}

func (suite *TrackerTestSuite) TestInjectedMultipliers() {
	tracker := NewTracker(logger.NewNopLogger(), WithMultipliers(map[string]float64{"BTCUSDT": 1, "XYZ": 5}))
	suite.Require().NoError(tracker.HandlePositionUpdate("XYZ", 10, 100))
	suite.Require().NoError(tracker.HandlePositionUpdate("XYZ", -10, 101))
	suite.InDelta(50.0, tracker.GetPnl()["XYZ"], 1e-9)

	err := tracker.HandlePositionUpdate("AAPL", 1, 100)
	suite.True(errors.HasCode(err, errors.ErrCodeUnsupportedInstrument))
}

func (suite *TrackerTestSuite) TestOversellOpensShort() {
	suite.apply("AAPL", trade{5, 100}, trade{-8, 110})

	snap := suite.tracker.Position("AAPL").Unwrap()
	suite.Empty(snap.Longs)
	suite.Equal([]Lot{{Quantity: 3, Price: 110}}, snap.Shorts)
	suite.InDelta(-3.0, snap.Net(), 1e-9)
	suite.InDelta(50.0, snap.Realized, 1e-9)

	// covering the short below its price is a gain
	suite.apply("AAPL", trade{3, 105})
	suite.InDelta(65.0, suite.tracker.GetPnl()["AAPL"], 1e-9)
	suite.InDelta(0.0, suite.tracker.Position("AAPL").Unwrap().Net(), 1e-9)
}

func (suite *TrackerTestSuite) TestShortThenLong() {
	suite.apply("ES", trade{-2, 4000}, trade{3, 3990})

	snap := suite.tracker.Position("ES").Unwrap()
	suite.Empty(snap.Shorts)
	suite.Equal([]Lot{{Quantity: 1, Price: 3990}}, snap.Longs)
	suite.InDelta(1000.0, snap.Realized, 1e-9)
}

func (suite *TrackerTestSuite) TestUnknownInstrument() {
	count := 0
	sub := suite.tracker.PnlChanged.Subscribe(func(struct{}) { count++ })
	defer sub.Close()

	err := suite.tracker.HandlePositionUpdate("UNKNOWN", 1, 100)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeUnsupportedInstrument))
	suite.True(errors.HasCategory(err, errors.CategoryValidation))
	suite.True(suite.tracker.Position("UNKNOWN").IsNone())
	suite.Empty(suite.tracker.GetPnl())
	suite.Equal(0, count)
}

func (suite *TrackerTestSuite) TestZeroQuantity() {
	err := suite.tracker.HandlePositionUpdate("AAPL", 0, 100)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidQuantity))
}

func (suite *TrackerTestSuite) TestPnlChangedFiresAfterUpdate() {
	var seen []float64
	sub := suite.tracker.PnlChanged.Subscribe(func(struct{}) {
		// re-querying inside the handler must not deadlock
		seen = append(seen, suite.tracker.GetPnl()["AAPL"])
	})
	defer sub.Close()

	suite.apply("AAPL", trade{1, 100}, trade{-1, 104})
	suite.Equal([]float64{0, 4}, seen)
}

func (suite *TrackerTestSuite) TestTotalPnl() {
	suite.apply("AAPL", trade{1, 100}, trade{-1, 102})
	suite.apply("ES", trade{1, 100}, trade{-1, 101})

	suite.InDelta(52.0, suite.tracker.TotalPnl().InexactFloat64(), 1e-9)
}

func (suite *TrackerTestSuite) TestConcurrentUpdates() {
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			suite.NoError(suite.tracker.HandlePositionUpdate("SPY", 1, 100))
			suite.NoError(suite.tracker.HandlePositionUpdate("SPY", -1, 101))
		}()
	}
	wg.Wait()

	snap := suite.tracker.Position("SPY").Unwrap()
	suite.InDelta(0.0, snap.Net(), 1e-9)
}

func (suite *TrackerTestSuite) TestDefaultMultipliersAreCopied() {
	tracker := NewTracker(logger.NewNopLogger())
	DefaultMultipliers["TMP"] = 3
	defer delete(DefaultMultipliers, "TMP")

	_, err := tracker.Multiplier("TMP")
	suite.Error(err)

	m, err := tracker.Multiplier("NQ")
	suite.NoError(err)
	suite.Equal(20.0, m)
}
