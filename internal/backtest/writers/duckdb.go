package writers

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/argo-engine/internal/logger"
	"github.com/rxtech-lab/argo-engine/pkg/errors"
	"go.uber.org/zap"
)

// tableWriter buffers rows in an in-memory DuckDB table inside a single
// transaction and exports the table as parquet.
type tableWriter struct {
	table string
	db    *sql.DB
	tx    *sql.Tx
	sq    squirrel.StatementBuilderType
	log   *logger.Logger
}

// newTableWriter opens DuckDB, creates the table from ddl and begins the transaction.
func newTableWriter(table string, ddl string, log *logger.Logger) (*tableWriter, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBacktestWriteFailed, "failed to open DuckDB connection", err)
	}

	if _, err := db.Exec(ddl); err != nil {
		db.Close()

		return nil, errors.Wrapf(errors.ErrCodeBacktestWriteFailed, err, "failed to create table %s", table)
	}

	tx, err := db.Begin()
	if err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeBacktestWriteFailed, "failed to begin transaction", err)
	}

	return &tableWriter{
		table: table,
		db:    db,
		tx:    tx,
		sq:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		log:   log.Named("writer").With(zap.String("table", table)),
	}, nil
}

// insert adds one row. columns and values must line up.
func (w *tableWriter) insert(columns []string, values ...any) error {
	if w.tx == nil {
		return errors.New(errors.ErrCodeBacktestWriteFailed, "writer is finalized")
	}

	_, err := w.sq.Insert(w.table).
		Columns(columns...).
		Values(values...).
		RunWith(w.tx).
		Exec()
	if err != nil {
		return errors.Wrapf(errors.ErrCodeBacktestWriteFailed, err, "failed to insert into %s", w.table)
	}

	return nil
}

// finalize commits and copies the table to a parquet file at path.
func (w *tableWriter) finalize(path string) error {
	if w.tx == nil {
		return errors.New(errors.ErrCodeBacktestWriteFailed, "writer is finalized")
	}

	if err := w.tx.Commit(); err != nil {
		w.tx.Rollback()
		w.tx = nil

		return errors.Wrap(errors.ErrCodeBacktestWriteFailed, "failed to commit transaction", err)
	}

	w.tx = nil

	// COPY does not accept a bound parameter for the target.
	query := fmt.Sprintf(`COPY %s TO '%s' (FORMAT PARQUET)`, w.table, strings.ReplaceAll(path, "'", "''"))
	if _, err := w.db.Exec(query); err != nil {
		return errors.Wrapf(errors.ErrCodeBacktestWriteFailed, err, "failed to export %s to parquet", w.table)
	}

	w.log.Debug("exported", zap.String("path", path))

	return nil
}

// close rolls back an unfinished transaction and closes the database.
func (w *tableWriter) close() error {
	if w.tx != nil {
		if err := w.tx.Rollback(); err != nil {
			w.log.Warn("failed to rollback transaction during close", zap.Error(err))
		}

		w.tx = nil
	}

	if w.db == nil {
		return nil
	}

	err := w.db.Close()
	w.db = nil

	if err != nil {
		return errors.Wrap(errors.ErrCodeBacktestWriteFailed, "failed to close db connection", err)
	}

	return nil
}
