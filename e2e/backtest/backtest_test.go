package backtest_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-engine/internal/backtest"
	"github.com/rxtech-lab/argo-engine/internal/backtest/writers"
	"github.com/rxtech-lab/argo-engine/internal/broker/replay"
	"github.com/rxtech-lab/argo-engine/internal/logger"
	"github.com/rxtech-lab/argo-engine/internal/order"
	"github.com/rxtech-lab/argo-engine/internal/ordermanager"
	"github.com/rxtech-lab/argo-engine/internal/strategy"
	"github.com/rxtech-lab/argo-engine/internal/types"
	"github.com/rxtech-lab/argo-engine/mocks"
	"github.com/stretchr/testify/suite"
)

// BacktestE2ETestSuite runs the whole pipeline from a parquet file and a YAML
// config through to the written results.
type BacktestE2ETestSuite struct {
	suite.Suite
	log   *logger.Logger
	dir   string
	start time.Time
	bars  []types.Bar
	data  string
}

func TestBacktestE2E(t *testing.T) {
	suite.Run(t, new(BacktestE2ETestSuite))
}

func (s *BacktestE2ETestSuite) SetupTest() {
	s.log = logger.NewNopLogger()
	s.dir = s.T().TempDir()
	s.start = time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)

	genConfig := mocks.DefaultConfig()
	genConfig.StartTime = s.start
	genConfig.Count = 900
	genConfig.Volatility = 0.004

	s.bars = mocks.NewDataGenerator(7).Generate(genConfig)
	s.data = filepath.Join(s.dir, "AAPL.parquet")
	s.Require().NoError(writers.WriteBars(s.data, "AAPL", s.bars))
}

func (s *BacktestE2ETestSuite) writeConfig(body string) string {
	path := filepath.Join(s.dir, "config.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(body), 0o644))

	return path
}

func (s *BacktestE2ETestSuite) run(config backtest.Config, callbacks backtest.Callbacks) *backtest.Result {
	b, err := replay.New(s.data, config.BarSizeSeconds, s.log, replay.WithBatchSize(128))
	s.Require().NoError(err)

	defer func() { s.NoError(b.Disconnect()) }()

	factory := strategy.NewBracketBreakoutFactory(config.Strategy, order.NewSequenceGenerator("e2e"), s.log)

	engine, err := backtest.NewEngine(config, b, factory, s.log, backtest.WithPollInterval(time.Millisecond))
	s.Require().NoError(err)

	result, err := engine.Run(context.Background(), callbacks)
	s.Require().NoError(err)

	return result
}

func (s *BacktestE2ETestSuite) TestConfiguredWindow() {
	from := s.start.Add(100 * time.Minute)
	to := s.start.Add(800 * time.Minute)

	config, err := backtest.LoadConfig(s.writeConfig(fmt.Sprintf(`
symbol: AAPL
bar_size_seconds: 60
start_time: %s
end_time: %s
initial_capital: 10000
commission: flat
commission_rate: 0.01
strategy:
  candle_width_seconds: 300
  lookback: 3
  quantity: 10
  profit_percent: 0.5
  stop_percent: 0.5
`, from.Format(time.RFC3339), to.Format(time.RFC3339))))
	s.Require().NoError(err)

	processed := 0
	onProcess := backtest.OnProcessDataCallback(func(current int, total int) error {
		processed = current
		s.Equal(700, total)

		return nil
	})

	var fills []ordermanager.Fill
	onFill := backtest.OnFillCallback(func(fill ordermanager.Fill) {
		fills = append(fills, fill)
	})

	result := s.run(config, backtest.Callbacks{OnProcessData: &onProcess, OnFill: &onFill})

	s.Equal(700, processed)
	s.Require().Len(result.OriginalBars, 700)
	s.True(from.Equal(result.OriginalBars[0].Time))
	s.True(to.Add(-time.Minute).Equal(result.OriginalBars[699].Time))
	s.Equal(result.OriginalBars, result.ReplayedBars)
	s.Equal(result.Fills, fills)

	s.Greater(result.Summary.Entries, 0)
	s.LessOrEqual(result.Summary.ProfitTriggers+result.Summary.StopTriggers, result.Summary.Entries)

	// an exit never fills on the bar that filled its entry
	entryBars := map[string]time.Time{}
	for _, fill := range result.Fills {
		switch fill.Role {
		case order.RoleEntry:
			entryBars[fill.ParentID] = fill.Bar.Time
		case order.RoleProfitTaker, order.RoleStopLoss:
			entered, ok := entryBars[fill.ParentID]
			s.Require().True(ok)
			s.True(fill.Bar.Time.After(entered))
		}
	}
}

func (s *BacktestE2ETestSuite) TestResultsCanBeReplayed() {
	config := backtest.TestConfig(s.start, s.start.Add(900*time.Minute), "zero_commission")
	config.Strategy.CandleWidthSeconds = 300
	config.Strategy.Lookback = 3

	result := s.run(config, backtest.Callbacks{})

	folder := filepath.Join(s.dir, "results")
	s.Require().NoError(backtest.WriteResults(result, folder, s.log))

	f, err := os.Open(filepath.Join(folder, backtest.OriginalBarsFile))
	s.Require().NoError(err)
	defer f.Close()

	exported, err := types.ReadBars(f, 60)
	s.Require().NoError(err)
	s.Require().Len(exported, len(s.bars))

	for i := range exported {
		s.True(s.bars[i].Time.Equal(exported[i].Time))
		s.Equal(s.bars[i].Open, exported[i].Open)
		s.Equal(s.bars[i].High, exported[i].High)
		s.Equal(s.bars[i].Low, exported[i].Low)
		s.Equal(s.bars[i].Close, exported[i].Close)
		s.Equal(s.bars[i].Volume, exported[i].Volume)
	}

	summary, err := types.ReadTradeSummary(filepath.Join(folder, backtest.StatsFile))
	s.Require().NoError(err)
	s.Equal(result.Summary.Entries, summary.Entries)
	s.Equal(result.Summary.ProfitTriggers, summary.ProfitTriggers)
	s.Equal(result.Summary.StopTriggers, summary.StopTriggers)
	s.InDelta(result.Summary.Balance, summary.Balance, 1e-9)
}
