package types

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarRowRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		bar  Bar
	}{
		{
			name: "whole numbers",
			bar:  NewBar(60, time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC), 100, 101, 99, 100.5, 1200, 42, 100.25),
		},
		{
			name: "fractional prices",
			bar:  NewBar(5, time.Date(2023, 6, 30, 9, 30, 5, 0, time.UTC), 4321.25, 4322.75, 4320.0, 4321.5, 17, 3, 4321.3333333333),
		},
		{
			name: "sub-second timestamp",
			bar:  NewBar(1, time.Date(2023, 6, 30, 9, 30, 5, 250000000, time.UTC), 0.1, 0.3, 0.1, 0.2, 0.5, 1, 0.2),
		},
		{
			name: "non utc input is normalised",
			bar:  NewBar(60, time.Date(2024, 3, 1, 9, 30, 0, 0, time.FixedZone("EST", -5*3600)), 10, 11, 9, 10, 1, 1, 10),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			row := FormatBarRow(tc.bar)
			parsed, err := ParseBarRow(row, tc.bar.BarSizeSeconds)
			require.NoError(t, err)

			assert.Equal(t, tc.bar.BarSizeSeconds, parsed.BarSizeSeconds)
			assert.Equal(t, tc.bar.Open, parsed.Open)
			assert.Equal(t, tc.bar.High, parsed.High)
			assert.Equal(t, tc.bar.Low, parsed.Low)
			assert.Equal(t, tc.bar.Close, parsed.Close)
			assert.Equal(t, tc.bar.Volume, parsed.Volume)
			assert.Equal(t, tc.bar.Trades, parsed.Trades)
			assert.Equal(t, tc.bar.WAP, parsed.WAP)
			assert.True(t, tc.bar.Time.Equal(parsed.Time))
			assert.Equal(t, time.UTC, parsed.Time.Location())
		})
	}
}

func TestFormatBarRowColumnOrder(t *testing.T) {
	bar := NewBar(60, time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC), 1, 2, 3, 4, 5, 6, 7)
	assert.Equal(t, "2024-01-02T14:30:00Z,2,1,4,3,5,6,7", FormatBarRow(bar))
}

func TestParseBarRowErrors(t *testing.T) {
	tests := []struct {
		name string
		row  string
	}{
		{"too few columns", "2024-01-02T14:30:00Z,1,2,3"},
		{"bad time", "yesterday,2,1,4,3,5,6,7"},
		{"bad number", "2024-01-02T14:30:00Z,x,1,4,3,5,6,7"},
		{"bad trades", "2024-01-02T14:30:00Z,2,1,4,3,5,6.5,7"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseBarRow(tc.row, 60)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidBarRow))
		})
	}
}

func TestWriteAndReadBars(t *testing.T) {
	start := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	bars := []Bar{
		NewBar(60, start, 100, 101, 99, 100.5, 10, 2, 100.1),
		NewBar(60, start.Add(time.Minute), 100.5, 102, 100, 101.75, 20, 4, 101.2),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteBars(&buf, bars))
	assert.True(t, strings.HasPrefix(buf.String(), BarCSVHeader+"\n"))

	parsed, err := ReadBars(&buf, 60)
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, bars[1].Close, parsed[1].Close)
	assert.True(t, bars[1].Time.Equal(parsed[1].Time))
}

func TestReadBarsWithoutHeader(t *testing.T) {
	input := "2024-01-02T14:30:00Z,2,1,4,3,5,6,7\n"

	bars, err := ReadBars(strings.NewReader(input), 30)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 30, bars[0].BarSizeSeconds)
	assert.Equal(t, 1.0, bars[0].Open)
}

func TestReadBarsInvalidRow(t *testing.T) {
	input := BarCSVHeader + "\n2024-01-02T14:30:00Z,2,1,4,3,5,six,7\n"

	_, err := ReadBars(strings.NewReader(input), 60)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeMarketDataParseFailed))
}

func TestBarEnd(t *testing.T) {
	bar := NewBar(300, time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC), 1, 1, 1, 1, 1, 1, 1)
	assert.Equal(t, time.Date(2024, 1, 2, 14, 35, 0, 0, time.UTC), bar.End())
}
