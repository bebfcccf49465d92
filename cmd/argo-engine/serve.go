package main

import (
	"context"
	"os"
	"time"

	"github.com/rxtech-lab/argo-engine/internal/api"
	"github.com/rxtech-lab/argo-engine/internal/backtest"
	"github.com/rxtech-lab/argo-engine/internal/broker"
	"github.com/rxtech-lab/argo-engine/internal/broker/binance"
	"github.com/rxtech-lab/argo-engine/internal/broker/replay"
	"github.com/rxtech-lab/argo-engine/internal/live"
	"github.com/rxtech-lab/argo-engine/internal/logger"
	"github.com/rxtech-lab/argo-engine/internal/ordermanager"
	"github.com/rxtech-lab/argo-engine/internal/ordermanager/commission_fee"
	"github.com/rxtech-lab/argo-engine/internal/position"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run a strategy on a realtime feed and serve its status over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the config YAML (symbol, bar size, commission and strategy are used)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Bar file to replay as a realtime feed. Without it bars are polled from Binance.",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Status API listen address",
				Value: ":8080",
			},
			&cli.BoolFlag{
				Name:  "paper",
				Usage: "Fill orders locally against incoming bars instead of sending them to Binance",
				Value: true,
			},
			&cli.DurationFlag{
				Name:  "cycle-interval",
				Usage: "Pause between broker cycles",
				Value: time.Second,
			},
		},
		Action: serveAction,
	}
}

// orderManager returns a local simulator for paper trading, otherwise a live
// manager sending orders through the Binance gateway.
func orderManager(paper bool, config backtest.Config, tracker *position.Tracker, log *logger.Logger) (ordermanager.OrderManager, error) {
	if paper {
		commission, err := commission_fee.GetCommissionFeeHandler(config.Commission, config.CommissionRate)
		if err != nil {
			return nil, err
		}

		return ordermanager.NewBacktestOrderManager(log, commission, ordermanager.WithPositionTracker(tracker)), nil
	}

	gateway, err := binance.NewGateway(binance.Config{
		ApiKey:    os.Getenv("BINANCE_API_KEY"),
		SecretKey: os.Getenv("BINANCE_SECRET_KEY"),
		BaseURL:   os.Getenv("BINANCE_BASE_URL"),
	}, log)
	if err != nil {
		return nil, err
	}

	return ordermanager.NewLiveOrderManager(gateway, log, ordermanager.WithLiveTracker(tracker)), nil
}

func realtimeBroker(data string, barSize int, log *logger.Logger) (broker.Broker, error) {
	if data == "" {
		return binance.New(log), nil
	}

	b, err := replay.New(data, barSize, log)
	if err != nil {
		return nil, err
	}

	return b, nil
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	config, err := backtest.LoadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	if !cmd.Bool("paper") && cmd.String("data") != "" {
		return errors.New(errors.ErrCodeInvalidConfiguration, "live order routing needs the Binance feed, drop --data or keep --paper")
	}

	b, err := realtimeBroker(cmd.String("data"), config.BarSizeSeconds, log)
	if err != nil {
		return err
	}
	defer b.Disconnect() //nolint:errcheck

	tracker := position.NewTracker(log)

	manager, err := orderManager(cmd.Bool("paper"), config, tracker, log)
	if err != nil {
		return err
	}

	factory, err := strategyFactory(strategyBracket, config.Strategy, log)
	if err != nil {
		return err
	}

	runner, err := live.NewRunner(live.Config{Instrument: config.Symbol, BarSizeSeconds: config.BarSizeSeconds},
		b, manager, factory, log,
		live.WithTracker(tracker),
		live.WithCycleInterval(cmd.Duration("cycle-interval")),
	)
	if err != nil {
		return err
	}

	server := api.NewServer(runner, log)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := runner.Run(gctx); err != nil {
			return err
		}

		// keep serving the final status until interrupted
		log.Info("feed finished", zap.Int("bars", runner.Status().BarsIngested))

		return nil
	})

	g.Go(func() error {
		return server.ListenAndServe(gctx, cmd.String("addr"))
	})

	return g.Wait()
}
