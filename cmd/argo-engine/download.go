package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/rxtech-lab/argo-engine/internal/backtest/writers"
	"github.com/rxtech-lab/argo-engine/internal/broker"
	"github.com/rxtech-lab/argo-engine/internal/broker/binance"
	"github.com/rxtech-lab/argo-engine/internal/broker/polygon"
	"github.com/rxtech-lab/argo-engine/internal/logger"
	"github.com/rxtech-lab/argo-engine/internal/types"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const (
	providerPolygon = "polygon"
	providerBinance = "binance"
)

func downloadCommand() *cli.Command {
	return &cli.Command{
		Name:  "download",
		Usage: "Download historical bars into a parquet file the replay broker can read",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "symbol",
				Aliases:  []string{"t"},
				Usage:    "Instrument symbol",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   fmt.Sprintf("Data provider (%s, %s)", providerPolygon, providerBinance),
				Value:   providerPolygon,
			},
			&cli.IntFlag{
				Name:  "bar-size",
				Usage: "Bar size in seconds",
				Value: 60,
			},
			&cli.TimestampFlag{
				Name:     "start",
				Aliases:  []string{"s"},
				Usage:    "Start date in `YYYY-MM-DD` format",
				Required: true,
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.TimestampFlag{
				Name:    "end",
				Aliases: []string{"e"},
				Usage:   "End date in `YYYY-MM-DD` format. Defaults to today.",
				Value:   time.Now(),
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02"},
				},
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Output parquet file",
				Value:   "data/bars.parquet",
			},
		},
		Action: downloadAction,
	}
}

// historicalBroker builds the broker for a provider name.
func historicalBroker(provider string, log *logger.Logger) (broker.Broker, error) {
	switch provider {
	case providerPolygon:
		b, err := polygon.New(os.Getenv("POLYGON_API_KEY"), log)
		if err != nil {
			return nil, err
		}

		return b, nil
	case providerBinance:
		return binance.New(log), nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "unknown provider %q", provider)
	}
}

// collect pumps b until sub ends and returns the delivered bars in time order.
func collect(ctx context.Context, b broker.Broker, sub *broker.Subscription, onBars func(n int)) ([]types.Bar, error) {
	var bars []types.Bar

	onBar := sub.OnBar.Subscribe(func(bar types.Bar) {
		bars = append(bars, bar)
	})
	defer onBar.Close()

	if err := b.AddSubscription(sub); err != nil {
		return nil, err
	}

	for !sub.IsDone() {
		if err := b.ProcessCycle(ctx); err != nil {
			sub.CancelSubscription()

			return nil, err
		}

		onBars(len(bars))
	}

	if err := sub.Err(); err != nil {
		return nil, err
	}

	slices.SortStableFunc(bars, func(x, y types.Bar) int { return x.Time.Compare(y.Time) })

	return bars, nil
}

func downloadAction(ctx context.Context, cmd *cli.Command) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	symbol := cmd.String("symbol")
	barSize := int(cmd.Int("bar-size"))
	start := cmd.Timestamp("start").UTC()
	end := cmd.Timestamp("end").UTC()

	b, err := historicalBroker(cmd.String("provider"), log)
	if err != nil {
		return err
	}

	if err := b.Connect(ctx); err != nil {
		return err
	}
	defer b.Disconnect() //nolint:errcheck

	sub := broker.NewHistoricalSubscription(symbol, barSize, start, end)
	if err := sub.Validate(); err != nil {
		return err
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(fmt.Sprintf("Downloading %s", symbol)),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWriter(cmd.Root().ErrWriter),
	)

	bars, err := collect(ctx, b, sub, func(n int) { _ = bar.Set(n) })
	if err != nil {
		return errors.Wrap(errors.ErrCodeHistoricalDataFailed, "download failed", err)
	}

	_ = bar.Finish()

	if len(bars) == 0 {
		return errors.Newf(errors.ErrCodeDataNotFound, "no bars for %s between %s and %s",
			symbol, start.Format(time.DateOnly), end.Format(time.DateOnly))
	}

	out := cmd.String("out")
	if err := writers.WriteBars(out, symbol, bars); err != nil {
		return err
	}

	log.Info("download complete", zap.String("symbol", symbol), zap.Int("bars", len(bars)), zap.String("out", out))

	return nil
}
