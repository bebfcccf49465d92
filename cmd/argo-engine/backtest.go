package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rxtech-lab/argo-engine/internal/backtest"
	"github.com/rxtech-lab/argo-engine/internal/broker/replay"
	"github.com/rxtech-lab/argo-engine/internal/logger"
	"github.com/rxtech-lab/argo-engine/internal/order"
	"github.com/rxtech-lab/argo-engine/internal/strategy"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const strategyBracket = "bracket"

func backtestCommand() *cli.Command {
	return &cli.Command{
		Name:  "backtest",
		Usage: "Replay a bar file through a strategy",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the backtest config YAML",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "data",
				Aliases:  []string{"d"},
				Usage:    "Bar file to replay (.csv or .parquet)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "strategy",
				Aliases: []string{"s"},
				Usage:   "Strategy to run",
				Value:   strategyBracket,
			},
			&cli.StringFlag{
				Name:    "results",
				Aliases: []string{"r"},
				Usage:   "Results folder, overrides results_folder from the config",
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "Hide the progress bar",
			},
		},
		Action: backtestAction,
	}
}

// strategyFactory resolves a strategy name to a factory.
func strategyFactory(name string, config strategy.BracketBreakoutConfig, log *logger.Logger) (strategy.Factory, error) {
	switch name {
	case strategyBracket, "bracket_breakout":
		return strategy.NewBracketBreakoutFactory(config, order.NewUUIDGenerator(), log), nil
	default:
		return nil, errors.Newf(errors.ErrCodeBacktestNoStrategy, "unknown strategy %q", name)
	}
}

// resultsFolder picks the flag, then the config, then ./results, and nests the run id under it.
func resultsFolder(flag string, config backtest.Config, runID string) string {
	folder := flag
	if folder == "" {
		folder = config.ResultsFolder
	}

	if folder == "" {
		folder = "results"
	}

	return filepath.Join(folder, runID)
}

func backtestAction(ctx context.Context, cmd *cli.Command) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	config, err := backtest.LoadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	factory, err := strategyFactory(cmd.String("strategy"), config.Strategy, log)
	if err != nil {
		return err
	}

	b, err := replay.New(cmd.String("data"), config.BarSizeSeconds, log)
	if err != nil {
		return err
	}
	defer b.Disconnect() //nolint:errcheck

	engine, err := backtest.NewEngine(config, b, factory, log)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar

	onProcess := backtest.OnProcessDataCallback(func(current int, total int) error {
		if cmd.Bool("no-progress") {
			return nil
		}

		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription(fmt.Sprintf("Backtesting %s", config.Symbol)),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWriter(cmd.Root().ErrWriter),
			)
		}

		return bar.Set(current)
	})

	result, err := engine.Run(ctx, backtest.Callbacks{OnProcessData: &onProcess, OnFill: nil})
	if err != nil {
		return err
	}

	if bar != nil {
		_ = bar.Finish()
	}

	folder := resultsFolder(cmd.String("results"), config, result.RunID)
	if err := backtest.WriteResults(result, folder, log); err != nil {
		return err
	}

	log.Info("backtest complete", zap.String("results", folder))

	_, err = fmt.Fprintln(cmd.Root().Writer, RenderSummary(result.Summary))

	return err
}
