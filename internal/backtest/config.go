package backtest

import (
	"encoding/json"
	"maps"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-engine/internal/ordermanager/commission_fee"
	"github.com/rxtech-lab/argo-engine/internal/position"
	"github.com/rxtech-lab/argo-engine/internal/strategy"
	"github.com/rxtech-lab/argo-engine/internal/version"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config configures one backtest run.
type Config struct {
	Symbol         string                     `yaml:"symbol" json:"symbol" jsonschema:"title=Symbol,description=Instrument to backtest" validate:"required"`
	BarSizeSeconds int                        `yaml:"bar_size_seconds" json:"bar_size_seconds" jsonschema:"title=Bar Size,description=Width of the source bars in seconds,minimum=1" validate:"required,gt=0"`
	StartTime      optional.Option[time.Time] `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,description=Optional start time for the backtest period"`
	EndTime        optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Optional end time for the backtest period"`
	InitialCapital float64                    `yaml:"initial_capital" json:"initial_capital" jsonschema:"title=Initial Capital,description=Starting capital for the backtest in USD,minimum=0" validate:"gte=0"`
	Commission     commission_fee.Broker      `yaml:"commission" json:"commission" jsonschema:"title=Commission,description=The commission model used for fills"`
	CommissionRate float64                    `yaml:"commission_rate" json:"commission_rate" jsonschema:"title=Commission Rate,description=Per unit rate of the flat commission model,minimum=0" validate:"gte=0"`
	// Multipliers extends the contract multiplier table for this run, e.g.
	// BTCUSDT: 1 for crypto pairs. Entries override the built-in table.
	Multipliers map[string]float64 `yaml:"multipliers" json:"multipliers,omitempty" jsonschema:"title=Multipliers,description=Extra contract multipliers keyed by instrument" validate:"omitempty,dive,keys,required,endkeys,gt=0"`
	// Strategy configures the bracket breakout strategy used by the CLI.
	Strategy         strategy.BracketBreakoutConfig `yaml:"strategy" json:"strategy" jsonschema:"title=Strategy,description=Bracket breakout strategy parameters"`
	MinEngineVersion string                         `yaml:"min_engine_version" json:"min_engine_version,omitempty" jsonschema:"title=Minimum Engine Version,description=Semver constraint the engine must satisfy"`
	ResultsFolder    string                         `yaml:"results_folder" json:"results_folder,omitempty" jsonschema:"title=Results Folder,description=Directory the results are written to"`
}

// UnmarshalYAML implements custom unmarshaling for Config.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type raw struct {
		Symbol           string                         `yaml:"symbol"`
		BarSizeSeconds   int                            `yaml:"bar_size_seconds"`
		StartTime        *time.Time                     `yaml:"start_time"`
		EndTime          *time.Time                     `yaml:"end_time"`
		InitialCapital   float64                        `yaml:"initial_capital"`
		Commission       commission_fee.Broker          `yaml:"commission"`
		CommissionRate   float64                        `yaml:"commission_rate"`
		Multipliers      map[string]float64             `yaml:"multipliers"`
		Strategy         strategy.BracketBreakoutConfig `yaml:"strategy"`
		MinEngineVersion string                         `yaml:"min_engine_version"`
		ResultsFolder    string                         `yaml:"results_folder"`
	}

	// Fields missing from the document keep their current values.
	config := raw{
		Symbol:           c.Symbol,
		BarSizeSeconds:   c.BarSizeSeconds,
		StartTime:        nil,
		EndTime:          nil,
		InitialCapital:   c.InitialCapital,
		Commission:       c.Commission,
		CommissionRate:   c.CommissionRate,
		Multipliers:      c.Multipliers,
		Strategy:         c.Strategy,
		MinEngineVersion: c.MinEngineVersion,
		ResultsFolder:    c.ResultsFolder,
	}
	if err := value.Decode(&config); err != nil {
		return err
	}

	c.Symbol = config.Symbol
	c.BarSizeSeconds = config.BarSizeSeconds
	c.InitialCapital = config.InitialCapital
	c.Commission = config.Commission
	c.CommissionRate = config.CommissionRate
	c.Multipliers = config.Multipliers
	c.Strategy = config.Strategy
	c.MinEngineVersion = config.MinEngineVersion
	c.ResultsFolder = config.ResultsFolder

	if config.StartTime != nil {
		c.StartTime = optional.Some(config.StartTime.UTC())
	}

	if config.EndTime != nil {
		c.EndTime = optional.Some(config.EndTime.UTC())
	}

	return nil
}

// ParseConfig decodes and validates a YAML config.
func ParseConfig(data []byte) (Config, error) {
	config := EmptyConfig()

	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeBacktestConfigError, "failed to parse backtest config", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// LoadConfig reads a YAML config from path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeBacktestConfigError, "failed to read backtest config", err)
	}

	return ParseConfig(data)
}

// Validate checks the struct tags, the period, the commission model and the
// engine version constraint.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestConfigError, "invalid backtest config", err)
	}

	if c.StartTime.IsSome() && c.EndTime.IsSome() && !c.StartTime.Unwrap().Before(c.EndTime.Unwrap()) {
		return errors.Newf(errors.ErrCodeBacktestConfigError, "start time %s must be before end time %s",
			c.StartTime.Unwrap().Format(time.RFC3339), c.EndTime.Unwrap().Format(time.RFC3339))
	}

	if _, err := commission_fee.GetCommissionFeeHandler(c.Commission, c.CommissionRate); err != nil {
		return errors.Wrap(errors.ErrCodeBacktestConfigError, "invalid commission", err)
	}

	if err := version.CheckConstraint(c.MinEngineVersion); err != nil {
		return err
	}

	return nil
}

// multipliers returns the built-in table extended by the configured entries.
func (c *Config) multipliers() map[string]float64 {
	table := maps.Clone(position.DefaultMultipliers)
	maps.Copy(table, c.Multipliers)

	return table
}

// period returns the requested window with zero values for open ends.
func (c *Config) period() (time.Time, time.Time) {
	var start, end time.Time

	if c.StartTime.IsSome() {
		start = c.StartTime.Unwrap()
	}

	if c.EndTime.IsSome() {
		end = c.EndTime.Unwrap()
	}

	return start, end
}

// GenerateSchema generates a JSON schema for Config.
func (c *Config) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t.String() == "optional.Option[time.Time]" {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			}

			if strings.Contains(t.String(), "commission_fee.Broker") {
				return &jsonschema.Schema{
					Type: "string",
					Enum: commission_fee.AllBrokers,
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)

	schema.Title = "argo-engine-backtest-config"
	schema.Description = "Configuration schema for the argo-engine backtest"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates a JSON schema string for Config.
func (c *Config) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}

// TestConfig returns a valid config over [startTime, endTime) for tests.
func TestConfig(startTime time.Time, endTime time.Time, broker commission_fee.Broker) Config {
	return Config{
		Symbol:           "AAPL",
		BarSizeSeconds:   60,
		StartTime:        optional.Some(startTime),
		EndTime:          optional.Some(endTime),
		InitialCapital:   10000,
		Commission:       broker,
		CommissionRate:   0,
		Multipliers:      nil,
		Strategy:         strategy.DefaultBracketBreakoutConfig(),
		MinEngineVersion: "",
		ResultsFolder:    "",
	}
}

// EmptyConfig returns a Config with default values.
func EmptyConfig() Config {
	return Config{
		Symbol:           "",
		BarSizeSeconds:   60,
		StartTime:        optional.None[time.Time](),
		EndTime:          optional.None[time.Time](),
		InitialCapital:   0,
		Commission:       commission_fee.BrokerInteractiveBroker,
		CommissionRate:   0,
		Multipliers:      nil,
		Strategy:         strategy.DefaultBracketBreakoutConfig(),
		MinEngineVersion: "",
		ResultsFolder:    "",
	}
}
