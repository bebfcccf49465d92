package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rxtech-lab/argo-engine/internal/backtest"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const schemaName = "backtest-config.schema.json"

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Print the backtest config JSON schema",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "out",
				Usage: "Directory to write the schema and a sample config to instead of printing",
			},
		},
		Action: schemaAction,
	}
}

// sampleConfig is EmptyConfig with the optional times left out.
type sampleConfig struct {
	Symbol           string  `yaml:"symbol"`
	BarSizeSeconds   int     `yaml:"bar_size_seconds"`
	InitialCapital   float64 `yaml:"initial_capital"`
	Commission       string  `yaml:"commission"`
	CommissionRate   float64 `yaml:"commission_rate"`
	Strategy         any     `yaml:"strategy"`
	MinEngineVersion string  `yaml:"min_engine_version"`
	ResultsFolder    string  `yaml:"results_folder"`
}

func schemaAction(_ context.Context, cmd *cli.Command) error {
	config := backtest.EmptyConfig()

	schemaJSON, err := config.GenerateSchemaJSON()
	if err != nil {
		return errors.Wrap(errors.ErrCodeBacktestConfigError, "failed to generate schema", err)
	}

	out := cmd.String("out")
	if out == "" {
		_, err := fmt.Fprintln(cmd.Root().Writer, schemaJSON)

		return err
	}

	if err := os.MkdirAll(out, 0o755); err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(out, schemaName), []byte(schemaJSON), 0o644); err != nil {
		return err
	}

	samplePath := filepath.Join(out, "backtest-config.yaml")
	if _, err := os.Stat(samplePath); err == nil {
		return nil
	}

	sample, err := yaml.Marshal(sampleConfig{
		Symbol:           "AAPL",
		BarSizeSeconds:   config.BarSizeSeconds,
		InitialCapital:   10000,
		Commission:       string(config.Commission),
		CommissionRate:   config.CommissionRate,
		Strategy:         config.Strategy,
		MinEngineVersion: "",
		ResultsFolder:    "results",
	})
	if err != nil {
		return err
	}

	sample = append([]byte("# yaml-language-server: $schema="+schemaName+"\n"), sample...)

	return os.WriteFile(samplePath, sample, 0o644)
}
