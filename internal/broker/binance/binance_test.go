package binance

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/rxtech-lab/argo-engine/internal/broker"
	"github.com/rxtech-lab/argo-engine/internal/logger"
	"github.com/rxtech-lab/argo-engine/internal/order"
	"github.com/rxtech-lab/argo-engine/internal/types"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
	"github.com/stretchr/testify/suite"
)

// Mock implementations for testing

type mockClient struct {
	klines      *mockKlinesService
	createOrder *mockCreateOrderService
	cancelOrder *mockCancelOrderService
}

func newMockClient() *mockClient {
	return &mockClient{
		klines:      &mockKlinesService{},
		createOrder: &mockCreateOrderService{},
		cancelOrder: &mockCancelOrderService{},
	}
}

func (m *mockClient) NewKlinesService() KlinesService {
	return m.klines
}

func (m *mockClient) NewCreateOrderService() CreateOrderService {
	return m.createOrder
}

func (m *mockClient) NewCancelOrderService() CancelOrderService {
	return m.cancelOrder
}

// mockKlinesService serves one kline per minute from series, starting at the
// requested start time.
type mockKlinesService struct {
	series   []*binance.Kline
	err      error
	requests []int64
	start    int64
	end      int64
	limit    int
}

func (m *mockKlinesService) Symbol(string) KlinesService {
	return m
}

func (m *mockKlinesService) Interval(string) KlinesService {
	return m
}

func (m *mockKlinesService) Limit(limit int) KlinesService {
	m.limit = limit

	return m
}

func (m *mockKlinesService) StartTime(startTime int64) KlinesService {
	m.start = startTime

	return m
}

func (m *mockKlinesService) EndTime(endTime int64) KlinesService {
	m.end = endTime

	return m
}

func (m *mockKlinesService) Do(context.Context) ([]*binance.Kline, error) {
	m.requests = append(m.requests, m.start)

	if m.err != nil {
		return nil, m.err
	}

	var out []*binance.Kline

	for _, k := range m.series {
		if k.OpenTime >= m.start && k.OpenTime <= m.end && len(out) < m.limit {
			out = append(out, k)
		}
	}

	return out, nil
}

type mockCreateOrderService struct {
	err       error
	symbol    string
	side      binance.SideType
	orderType binance.OrderType
	quantity  string
	price     string
	stopPrice string
	tif       binance.TimeInForceType
	clientID  string
	calls     int
}

func (m *mockCreateOrderService) Symbol(symbol string) CreateOrderService {
	m.symbol = symbol

	return m
}

func (m *mockCreateOrderService) Side(side binance.SideType) CreateOrderService {
	m.side = side

	return m
}

func (m *mockCreateOrderService) Type(orderType binance.OrderType) CreateOrderService {
	m.orderType = orderType

	return m
}

func (m *mockCreateOrderService) Quantity(quantity string) CreateOrderService {
	m.quantity = quantity

	return m
}

func (m *mockCreateOrderService) Price(price string) CreateOrderService {
	m.price = price

	return m
}

func (m *mockCreateOrderService) StopPrice(stopPrice string) CreateOrderService {
	m.stopPrice = stopPrice

	return m
}

func (m *mockCreateOrderService) TimeInForce(tif binance.TimeInForceType) CreateOrderService {
	m.tif = tif

	return m
}

func (m *mockCreateOrderService) NewClientOrderID(id string) CreateOrderService {
	m.clientID = id

	return m
}

func (m *mockCreateOrderService) Do(context.Context) (*binance.CreateOrderResponse, error) {
	m.calls++

	if m.err != nil {
		return nil, m.err
	}

	return &binance.CreateOrderResponse{}, nil
}

type mockCancelOrderService struct {
	err      error
	symbol   string
	clientID string
	calls    int
}

func (m *mockCancelOrderService) Symbol(symbol string) CancelOrderService {
	m.symbol = symbol

	return m
}

func (m *mockCancelOrderService) OrigClientOrderID(id string) CancelOrderService {
	m.clientID = id

	return m
}

func (m *mockCancelOrderService) Do(context.Context) (*binance.CancelOrderResponse, error) {
	m.calls++

	if m.err != nil {
		return nil, m.err
	}

	return &binance.CancelOrderResponse{}, nil
}

type BinanceTestSuite struct {
	suite.Suite
	t0     time.Time
	now    time.Time
	client *mockClient
	log    *logger.Logger
}

func TestBinanceSuite(t *testing.T) {
	suite.Run(t, new(BinanceTestSuite))
}

func (suite *BinanceTestSuite) SetupTest() {
	suite.t0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	suite.client = newMockClient()
	suite.log = logger.NewNopLogger()
}

func (suite *BinanceTestSuite) klines(n int) []*binance.Kline {
	out := make([]*binance.Kline, 0, n)

	for i := range n {
		open := suite.t0.Add(time.Duration(i) * time.Minute)
		price := 100 + float64(i)

		out = append(out, &binance.Kline{
			OpenTime:                 open.UnixMilli(),
			Open:                     strconv.FormatFloat(price, 'f', -1, 64),
			High:                     strconv.FormatFloat(price+2, 'f', -1, 64),
			Low:                      strconv.FormatFloat(price-1, 'f', -1, 64),
			Close:                    strconv.FormatFloat(price+1, 'f', -1, 64),
			Volume:                   "2",
			CloseTime:                open.Add(time.Minute).UnixMilli() - 1,
			QuoteAssetVolume:         strconv.FormatFloat(2*(price+0.5), 'f', -1, 64),
			TradeNum:                 int64(i + 1),
			TakerBuyBaseAssetVolume:  "1",
			TakerBuyQuoteAssetVolume: "1",
		})
	}

	return out
}

func (suite *BinanceTestSuite) newBroker() *Broker {
	b := New(suite.log, WithClient(suite.client), WithClock(func() time.Time { return suite.now }))
	suite.Require().NoError(b.Connect(context.Background()))

	return b
}

func (suite *BinanceTestSuite) TestInterval() {
	interval, err := Interval(60)
	suite.NoError(err)
	suite.Equal("1m", interval)

	interval, err = Interval(86400)
	suite.NoError(err)
	suite.Equal("1d", interval)

	_, err = Interval(120)
	suite.True(errors.HasCode(err, errors.ErrCodeBrokerUnsupported))
}

func (suite *BinanceTestSuite) TestHistoricalPaginates() {
	suite.client.klines.series = suite.klines(1200)
	suite.now = suite.t0.Add(48 * time.Hour)

	b := suite.newBroker()

	sub := broker.NewHistoricalSubscription("BTCUSDT", 60, suite.t0, suite.t0.Add(1200*time.Minute))

	var bars []types.Bar
	s := sub.OnBar.Subscribe(func(bar types.Bar) { bars = append(bars, bar) })
	defer s.Close()

	suite.Require().NoError(b.AddSubscription(sub))
	suite.NoError(b.ProcessCycle(context.Background()))

	suite.Len(suite.client.klines.requests, 3)
	suite.Equal(suite.t0.UnixMilli(), suite.client.klines.requests[0])
	suite.Equal(suite.t0.Add(500*time.Minute).UnixMilli(), suite.client.klines.requests[1])
	suite.Require().Len(bars, 1200)
	suite.True(sub.IsDone())
	suite.NoError(sub.Err())

	first := bars[0]
	suite.Equal(suite.t0, first.Time)
	suite.Equal(100.0, first.Open)
	suite.Equal(102.0, first.High)
	suite.Equal(99.0, first.Low)
	suite.Equal(101.0, first.Close)
	suite.Equal(2.0, first.Volume)
	suite.Equal(int64(1), first.Trades)
	suite.InDelta(100.5, first.WAP, 1e-9)
}

func (suite *BinanceTestSuite) TestHistoricalFetchFailure() {
	suite.client.klines.err = fmt.Errorf("teapot")
	suite.now = suite.t0.Add(time.Hour)

	b := suite.newBroker()
	sub := broker.NewHistoricalSubscription("BTCUSDT", 60, suite.t0, time.Time{})
	suite.Require().NoError(b.AddSubscription(sub))

	suite.NoError(b.ProcessCycle(context.Background()))
	suite.True(sub.IsDone())
	suite.True(errors.HasCode(sub.Err(), errors.ErrCodeMarketDataFetchFailed))
}

func (suite *BinanceTestSuite) TestRealtimePollsClosedKlines() {
	suite.client.klines.series = suite.klines(10)
	suite.now = suite.t0.Add(3*time.Minute + 30*time.Second)

	b := suite.newBroker()

	// the subscription starts at the kline in progress
	sub := broker.NewRealtimeSubscription("BTCUSDT", 60)

	var bars []types.Bar
	s := sub.OnBar.Subscribe(func(bar types.Bar) { bars = append(bars, bar) })
	defer s.Close()

	suite.Require().NoError(b.AddSubscription(sub))

	suite.NoError(b.ProcessCycle(context.Background()))
	suite.Empty(bars)

	suite.now = suite.t0.Add(5*time.Minute + time.Second)
	suite.NoError(b.ProcessCycle(context.Background()))
	suite.Require().Len(bars, 2)
	suite.Equal(suite.t0.Add(3*time.Minute), bars[0].Time)
	suite.Equal(suite.t0.Add(4*time.Minute), bars[1].Time)

	suite.NoError(b.ProcessCycle(context.Background()))
	suite.Len(bars, 2)
	suite.False(sub.IsDone())

	suite.NoError(b.Disconnect())
	suite.True(sub.IsDone())
}

func (suite *BinanceTestSuite) TestNotConnected() {
	b := New(suite.log, WithClient(suite.client))

	err := b.AddSubscription(broker.NewRealtimeSubscription("BTCUSDT", 60))
	suite.True(errors.HasCode(err, errors.ErrCodeBrokerNotConnected))

	err = b.ProcessCycle(context.Background())
	suite.True(errors.HasCode(err, errors.ErrCodeBrokerNotConnected))
}

func (suite *BinanceTestSuite) TestConfigValidate() {
	config := Config{ApiKey: "", SecretKey: "", BaseURL: ""}
	suite.True(errors.HasCode(config.Validate(), errors.ErrCodeInvalidConfiguration))

	config = Config{ApiKey: "key", SecretKey: "secret", BaseURL: "not a url"}
	suite.Error(config.Validate())

	config = Config{ApiKey: "key", SecretKey: "secret", BaseURL: "https://testnet.binance.vision"}
	suite.NoError(config.Validate())

	_, err := NewGateway(Config{ApiKey: "", SecretKey: "", BaseURL: ""}, suite.log)
	suite.Error(err)
}

func (suite *BinanceTestSuite) TestGatewayPlacesLimitAndStop() {
	gateway := NewGatewayWithClient(suite.client, suite.log)
	ids := order.NewSequenceGenerator("o")

	bracket, err := order.NewBracket(ids, "BTCUSDT", types.DirectionBuy, 0.5, types.ExecTypeLimit, 100, 110, 95)
	suite.Require().NoError(err)

	wires := broker.WireOrders(bracket)
	suite.Require().Len(wires, 3)

	suite.Require().NoError(gateway.PlaceOrder(context.Background(), wires[0]))
	suite.Equal("BTCUSDT", suite.client.createOrder.symbol)
	suite.Equal(binance.SideTypeBuy, suite.client.createOrder.side)
	suite.Equal(binance.OrderTypeLimit, suite.client.createOrder.orderType)
	suite.Equal("0.50000000", suite.client.createOrder.quantity)
	suite.Equal("100", suite.client.createOrder.price)
	suite.Equal(binance.TimeInForceTypeGTC, suite.client.createOrder.tif)
	suite.Equal("o-2", suite.client.createOrder.clientID)

	suite.Require().NoError(gateway.PlaceOrder(context.Background(), wires[2]))
	suite.Equal(binance.SideTypeSell, suite.client.createOrder.side)
	suite.Equal(binance.OrderTypeStopLoss, suite.client.createOrder.orderType)
	suite.Equal("95", suite.client.createOrder.stopPrice)
	suite.Equal("o-4", suite.client.createOrder.clientID)

	suite.Require().NoError(gateway.CancelOrder(context.Background(), "o-4"))
	suite.Equal("BTCUSDT", suite.client.cancelOrder.symbol)
	suite.Equal("o-4", suite.client.cancelOrder.clientID)

	err = gateway.CancelOrder(context.Background(), "o-4")
	suite.True(errors.HasCode(err, errors.ErrCodeUnknownOrder))
}

func (suite *BinanceTestSuite) TestGatewayErrors() {
	gateway := NewGatewayWithClient(suite.client, suite.log)

	invalid := broker.WireOrder{
		ID:         "",
		ParentID:   "",
		Role:       order.RoleStandalone,
		Instrument: "BTCUSDT",
		Direction:  types.DirectionBuy,
		ExecType:   types.ExecTypeLimit,
		Quantity:   1,
		Price:      100,
	}
	suite.True(errors.HasCode(gateway.PlaceOrder(context.Background(), invalid), errors.ErrCodeInvalidWireOrder))
	suite.Equal(0, suite.client.createOrder.calls)

	valid := invalid
	valid.ID = "o-1"
	suite.client.createOrder.err = fmt.Errorf("insufficient balance")
	suite.True(errors.HasCode(gateway.PlaceOrder(context.Background(), valid), errors.ErrCodeOrderFailed))

	// a failed placement is not cancellable
	suite.True(errors.HasCode(gateway.CancelOrder(context.Background(), "o-1"), errors.ErrCodeUnknownOrder))
}
