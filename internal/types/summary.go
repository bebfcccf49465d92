package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TradeSummary aggregates the outcome of a run.
type TradeSummary struct {
	// ID is the unique identifier of the run.
	ID string `yaml:"id" json:"id"`
	// Timestamp is when the run finished.
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	// Symbol is the instrument the run traded.
	Symbol string `yaml:"symbol" json:"symbol"`
	// Entries counts filled entry orders, including the entries of brackets.
	Entries int `yaml:"entries" json:"entries"`
	// StopTriggers counts brackets closed by their stop-loss.
	StopTriggers int `yaml:"stop_triggers" json:"stop_triggers"`
	// ProfitTriggers counts brackets closed by their profit-taker.
	ProfitTriggers int `yaml:"profit_triggers" json:"profit_triggers"`
	// SuccessRatio is ProfitTriggers / Entries, zero when there were no entries.
	SuccessRatio float64 `yaml:"success_ratio" json:"success_ratio"`
	// Commissions is the total commission paid.
	Commissions float64 `yaml:"commissions" json:"commissions"`
	// RealizedPnL is the realized profit per instrument.
	RealizedPnL map[string]float64 `yaml:"realized_pnl" json:"realized_pnl"`
	// Balance is starting capital plus realized profit minus commissions.
	Balance float64 `yaml:"balance" json:"balance"`
}

// NewTradeSummary returns an empty summary for a symbol.
func NewTradeSummary(id string, symbol string) TradeSummary {
	return TradeSummary{
		ID:             id,
		Timestamp:      time.Time{},
		Symbol:         symbol,
		Entries:        0,
		StopTriggers:   0,
		ProfitTriggers: 0,
		SuccessRatio:   0,
		Commissions:    0,
		RealizedPnL:    map[string]float64{},
		Balance:        0,
	}
}

// UpdateSuccessRatio recomputes SuccessRatio from the counters.
func (s *TradeSummary) UpdateSuccessRatio() {
	if s.Entries == 0 {
		s.SuccessRatio = 0

		return
	}

	s.SuccessRatio = float64(s.ProfitTriggers) / float64(s.Entries)
}

// WriteTradeSummary writes the summary as YAML.
func WriteTradeSummary(path string, summary TradeSummary) error {
	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal trade summary to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write trade summary to file: %w", err)
	}

	return nil
}

// ReadTradeSummary reads a summary written by WriteTradeSummary.
func ReadTradeSummary(path string) (TradeSummary, error) {
	var summary TradeSummary

	data, err := os.ReadFile(path)
	if err != nil {
		return summary, fmt.Errorf("failed to read trade summary: %w", err)
	}

	if err := yaml.Unmarshal(data, &summary); err != nil {
		return summary, fmt.Errorf("failed to unmarshal trade summary: %w", err)
	}

	return summary, nil
}
