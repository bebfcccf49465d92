package binance

import (
	"context"
	"strconv"
	"sync"

	"github.com/adshao/go-binance/v2"
	"github.com/rxtech-lab/argo-engine/internal/broker"
	"github.com/rxtech-lab/argo-engine/internal/logger"
	"github.com/rxtech-lab/argo-engine/internal/types"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
	"go.uber.org/zap"
)

// DecimalPrecision is the quantity precision used when formatting orders.
// 8 decimals covers satoshi-level quantities.
const DecimalPrecision = 8

// Gateway places legs on Binance spot. Legs are sent with their order id as
// the client order id so venue reports can be matched back.
type Gateway struct {
	client Client
	log    *logger.Logger

	mu      sync.Mutex
	symbols map[string]string
}

// NewGateway validates config and connects a REST client.
func NewGateway(config Config, log *logger.Logger) (*Gateway, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return NewGatewayWithClient(NewClient(config.ApiKey, config.SecretKey, config.BaseURL), log), nil
}

// NewGatewayWithClient uses an existing client.
func NewGatewayWithClient(client Client, log *logger.Logger) *Gateway {
	return &Gateway{
		client:  client,
		log:     log.Named("binance_gateway"),
		mu:      sync.Mutex{},
		symbols: make(map[string]string),
	}
}

// PlaceOrder implements broker.OrderGateway. LIMIT legs become GTC limit
// orders and STOP legs STOP_LOSS orders triggered at the leg price.
func (g *Gateway) PlaceOrder(ctx context.Context, wire broker.WireOrder) error {
	if err := wire.Validate(); err != nil {
		return err
	}

	var side binance.SideType

	switch wire.Direction {
	case types.DirectionBuy:
		side = binance.SideTypeBuy
	case types.DirectionSell:
		side = binance.SideTypeSell
	default:
		return errors.Newf(errors.ErrCodeInvalidParameter, "unsupported order side: %s", wire.Direction)
	}

	quantity := strconv.FormatFloat(wire.Quantity, 'f', DecimalPrecision, 64)
	price := strconv.FormatFloat(wire.Price, 'f', -1, 64)

	service := g.client.NewCreateOrderService().
		Symbol(wire.Instrument).
		Side(side).
		Quantity(quantity).
		NewClientOrderID(wire.ID)

	switch wire.ExecType {
	case types.ExecTypeLimit:
		service = service.
			Type(binance.OrderTypeLimit).
			Price(price).
			TimeInForce(binance.TimeInForceTypeGTC)
	case types.ExecTypeStop:
		service = service.
			Type(binance.OrderTypeStopLoss).
			StopPrice(price)
	default:
		return errors.Newf(errors.ErrCodeInvalidParameter, "unsupported order type: %s", wire.ExecType)
	}

	if _, err := service.Do(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeOrderFailed, "failed to place order on Binance", err)
	}

	g.mu.Lock()
	g.symbols[wire.ID] = wire.Instrument
	g.mu.Unlock()

	g.log.Debug("order placed",
		zap.String("id", wire.ID),
		zap.String("symbol", wire.Instrument),
		zap.String("side", string(side)),
		zap.String("quantity", quantity),
		zap.String("price", price),
	)

	return nil
}

// CancelOrder implements broker.OrderGateway. Only orders placed through this
// gateway can be cancelled.
func (g *Gateway) CancelOrder(ctx context.Context, orderID string) error {
	g.mu.Lock()
	symbol, ok := g.symbols[orderID]
	g.mu.Unlock()

	if !ok {
		return errors.Newf(errors.ErrCodeUnknownOrder, "order %s was not placed through this gateway", orderID)
	}

	_, err := g.client.NewCancelOrderService().
		Symbol(symbol).
		OrigClientOrderID(orderID).
		Do(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeOrderFailed, "failed to cancel order on Binance", err)
	}

	g.mu.Lock()
	delete(g.symbols, orderID)
	g.mu.Unlock()

	return nil
}
