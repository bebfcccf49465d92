// Package replay implements a Broker that serves recorded bars from a file.
// CSV files use the bar text codec; parquet files are queried through DuckDB.
package replay

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/argo-engine/internal/broker"
	"github.com/rxtech-lab/argo-engine/internal/logger"
	"github.com/rxtech-lab/argo-engine/internal/types"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
	"go.uber.org/zap"
)

// DefaultBatchSize is the number of bars delivered per subscription per cycle.
const DefaultBatchSize = 500

// Broker replays a bar file. It serves a single bar size.
type Broker struct {
	path           string
	barSizeSeconds int
	batchSize      int
	log            *logger.Logger

	mu        sync.Mutex
	connected bool
	csvBars   []types.Bar
	db        *sql.DB
	sq        squirrel.StatementBuilderType
	feeds     []*broker.Feed
}

// Option configures a Broker.
type Option func(*Broker)

// WithBatchSize sets how many bars a subscription receives per cycle.
func WithBatchSize(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// New returns a replay broker for path. Files ending in .parquet are read
// with DuckDB, everything else as CSV.
func New(path string, barSizeSeconds int, log *logger.Logger, opts ...Option) (*Broker, error) {
	if path == "" {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "replay file path is required")
	}

	if barSizeSeconds <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "bar size must be positive, got %d", barSizeSeconds)
	}

	b := &Broker{
		path:           path,
		barSizeSeconds: barSizeSeconds,
		batchSize:      DefaultBatchSize,
		log:            log.Named("replay").With(zap.String("path", path)),
		mu:             sync.Mutex{},
		connected:      false,
		csvBars:        nil,
		db:             nil,
		sq:             squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		feeds:          nil,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

func (b *Broker) isParquet() bool {
	return strings.EqualFold(filepath.Ext(b.path), ".parquet")
}

// Connect opens the file. Calling it again is a no-op.
func (b *Broker) Connect(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.connected {
		return nil
	}

	if b.isParquet() {
		if err := b.openParquet(); err != nil {
			return err
		}
	} else {
		if err := b.readCSV(); err != nil {
			return err
		}
	}

	b.connected = true
	b.log.Debug("replay broker connected")

	return nil
}

func (b *Broker) readCSV() error {
	f, err := os.Open(b.path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeBrokerConnectionFailed, "failed to open replay file", err)
	}
	defer f.Close()

	bars, err := types.ReadBars(f, b.barSizeSeconds)
	if err != nil {
		return err
	}

	slices.SortStableFunc(bars, func(x, y types.Bar) int {
		return x.Time.Compare(y.Time)
	})

	b.csvBars = bars

	return nil
}

func (b *Broker) openParquet() error {
	if _, err := os.Stat(b.path); err != nil {
		return errors.Wrap(errors.ErrCodeBrokerConnectionFailed, "failed to open replay file", err)
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return errors.Wrap(errors.ErrCodeBrokerConnectionFailed, "failed to open duckdb", err)
	}

	// read_parquet does not accept a bound parameter.
	query := fmt.Sprintf(`CREATE VIEW market_data AS SELECT * FROM read_parquet('%s');`, strings.ReplaceAll(b.path, "'", "''"))

	if _, err := db.Exec(query); err != nil {
		db.Close()

		return errors.Wrap(errors.ErrCodeBrokerConnectionFailed, "failed to create market data view", err)
	}

	b.db = db

	return nil
}

// Disconnect releases the file. Calling it again is a no-op.
func (b *Broker) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected {
		return nil
	}

	b.connected = false
	b.csvBars = nil

	if b.db != nil {
		err := b.db.Close()
		b.db = nil

		if err != nil {
			return errors.Wrap(errors.ErrCodeBrokerConnectionFailed, "failed to close duckdb", err)
		}
	}

	return nil
}

// IsConnected implements broker.Broker.
func (b *Broker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.connected
}

// AddSubscription loads the bars requested by sub. Its bar size must match
// the file's.
func (b *Broker) AddSubscription(sub *broker.Subscription) error {
	if err := sub.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected {
		return errors.New(errors.ErrCodeBrokerNotConnected, "replay broker is not connected")
	}

	if sub.BarSizeSeconds != b.barSizeSeconds {
		return errors.Newf(errors.ErrCodeBarSizeMismatch, "file holds %ds bars, subscription wants %ds", b.barSizeSeconds, sub.BarSizeSeconds)
	}

	feed := broker.NewFeed(sub)

	if b.db != nil {
		bars, err := b.queryParquet(sub)
		if err != nil {
			return err
		}

		feed.Load(bars)
	} else {
		feed.Load(b.csvBars)
	}

	b.feeds = append(b.feeds, feed)

	b.log.Debug("subscription added",
		zap.String("instrument", sub.Instrument),
		zap.String("kind", string(sub.Kind)),
		zap.Int("bars", feed.Remaining()),
	)

	return nil
}

func (b *Broker) columns() (map[string]bool, error) {
	rows, err := b.db.Query(`SELECT column_name FROM (DESCRIBE market_data)`)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to describe market data", err)
	}
	defer rows.Close()

	columns := make(map[string]bool)

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan column name", err)
		}

		columns[strings.ToLower(name)] = true
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating columns", err)
	}

	return columns, nil
}

func (b *Broker) queryParquet(sub *broker.Subscription) ([]types.Bar, error) {
	columns, err := b.columns()
	if err != nil {
		return nil, err
	}

	// trades and wap are optional; files exported by market data downloaders lack them.
	trades := "CAST(0 AS BIGINT) AS trades"
	if columns["trades"] {
		trades = "CAST(trades AS BIGINT) AS trades"
	}

	wap := "close AS wap"
	if columns["wap"] {
		wap = "wap"
	}

	query := b.sq.Select("time", "open", "high", "low", "close", "volume", trades, wap).
		From("market_data").
		OrderBy("time ASC")

	if !sub.From.IsZero() {
		query = query.Where(squirrel.GtOrEq{"time": sub.From.UTC()})
	}

	if !sub.To.IsZero() {
		query = query.Where(squirrel.Lt{"time": sub.To.UTC()})
	}

	if columns["symbol"] {
		query = query.Where(squirrel.Eq{"symbol": sub.Instrument})
	}

	sqlQuery, args, err := query.ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build query", err)
	}

	rows, err := b.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query market data", err)
	}
	defer rows.Close()

	result := make([]types.Bar, 0, 1000)

	for rows.Next() {
		var (
			timestamp                            time.Time
			open, high, low, closePrice, volume float64
			tradeCount                           int64
			wapValue                             float64
		)

		if err := rows.Scan(&timestamp, &open, &high, &low, &closePrice, &volume, &tradeCount, &wapValue); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan row", err)
		}

		result = append(result, types.NewBar(b.barSizeSeconds, timestamp, open, high, low, closePrice, volume, tradeCount, wapValue))
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating rows", err)
	}

	return result, nil
}

// ProcessCycle delivers the next batch to every live subscription and ends
// those with no bars left.
func (b *Broker) ProcessCycle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	if !b.connected {
		b.mu.Unlock()

		return errors.New(errors.ErrCodeBrokerNotConnected, "replay broker is not connected")
	}

	feeds := slices.Clone(b.feeds)
	batchSize := b.batchSize
	b.mu.Unlock()

	// Subscriptions are signalled outside the lock so handlers may call back in.
	for _, feed := range feeds {
		if feed.Sub.IsDone() {
			continue
		}

		feed.DeliverBatch(batchSize)

		if feed.Exhausted() {
			feed.Sub.Finish()
		}
	}

	b.mu.Lock()
	b.feeds = slices.DeleteFunc(b.feeds, func(f *broker.Feed) bool {
		return f.Sub.IsDone()
	})
	b.mu.Unlock()

	return nil
}
