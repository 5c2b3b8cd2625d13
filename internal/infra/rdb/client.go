package rdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // Use pgx via database/sql
	"github.com/jmoiron/sqlx"

	"github.com/tdnguyen/outcall/internal/core/resilience"
)

// Config holds database connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// Row is a single result row keyed by column name.
type Row = map[string]any

// Client is a schema-agnostic relational data client. Statements are built
// from table names and column maps and executed through the shared call
// executor with a per-table circuit breaker. Only connection-class failures
// are retried; constraint and syntax errors surface immediately.
type Client struct {
	db     *sqlx.DB
	exec   *resilience.Executor
	policy resilience.Policy
	log    *slog.Logger
}

// slowQueryThreshold is the duration above which a statement is logged as
// slow.
const slowQueryThreshold = time.Second

// DatabasePolicy retries connection-class database failures once.
func DatabasePolicy() resilience.Policy {
	return resilience.Policy{
		MaxAttempts: 2,
		Multiplier:  1 * time.Second,
		MinWait:     2 * time.Second,
		MaxWait:     10 * time.Second,
		RetryIf:     retryableDBFailure,
	}
}

// retryableDBFailure admits timeouts, transport failures and the
// connection-exception classes of the SQL state space (08xxx, 57xxx).
func retryableDBFailure(o resilience.Outcome, reason resilience.FailureReason) bool {
	if reason == resilience.ReasonTimeout || reason == resilience.ReasonConnectionError {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(o.Err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57")
	}
	return false
}

// New opens a connection pool and verifies connectivity.
func New(ctx context.Context, cfg Config, exec *resilience.Executor) (*Client, error) {
	db, err := sqlx.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set pool configuration
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	} else {
		db.SetMaxOpenConns(10)
	}
	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(cfg.MinConns)
	} else {
		db.SetMaxIdleConns(2)
	}
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewWithDB(db, exec), nil
}

// NewWithDB wraps an existing connection pool.
func NewWithDB(db *sqlx.DB, exec *resilience.Executor) *Client {
	return &Client{
		db:     db,
		exec:   exec,
		policy: DatabasePolicy(),
		log:    slog.Default(),
	}
}

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// FetchOne returns the first row of table matching the where map, or
// sql.ErrNoRows.
func (c *Client) FetchOne(ctx context.Context, table string, where Row) (Row, error) {
	query, args := buildSelect(table, where, 1)

	var row Row
	err := c.guarded(ctx, "fetch_one", table, func(ctx context.Context) error {
		rows, err := c.db.QueryxContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return err
			}
			return sql.ErrNoRows
		}
		row = make(Row)
		return rows.MapScan(row)
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// FetchAll returns every row of table matching the where map; a nil map
// selects the whole table.
func (c *Client) FetchAll(ctx context.Context, table string, where Row) ([]Row, error) {
	query, args := buildSelect(table, where, 0)

	var out []Row
	err := c.guarded(ctx, "fetch_all", table, func(ctx context.Context) error {
		rows, err := c.db.QueryxContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			row := make(Row)
			if err := rows.MapScan(row); err != nil {
				return err
			}
			out = append(out, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Insert adds one or more rows to table and returns the affected count.
// All rows must share the same column set.
func (c *Client) Insert(ctx context.Context, table string, rows ...Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	query, args, err := buildInsert(table, rows)
	if err != nil {
		return 0, err
	}
	return c.execStatement(ctx, "insert", table, query, args)
}

// Upsert inserts a row, resolving conflicts on conflictCols by updating
// updateCols (or every non-conflict column when updateCols is nil). With
// doNothing, conflicting rows are left untouched.
func (c *Client) Upsert(ctx context.Context, table string, row Row, conflictCols, updateCols []string, doNothing bool) (int64, error) {
	return c.UpsertMany(ctx, table, []Row{row}, conflictCols, updateCols, doNothing)
}

// UpsertMany is the batch form of Upsert.
func (c *Client) UpsertMany(ctx context.Context, table string, rows []Row, conflictCols, updateCols []string, doNothing bool) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	query, args, err := buildUpsert(table, rows, conflictCols, updateCols, doNothing)
	if err != nil {
		return 0, err
	}
	return c.execStatement(ctx, "upsert", table, query, args)
}

// Update modifies the rows of table matching where and returns the affected
// count.
func (c *Client) Update(ctx context.Context, table string, values, where Row) (int64, error) {
	query, args, err := buildUpdate(table, values, where)
	if err != nil {
		return 0, err
	}
	return c.execStatement(ctx, "update", table, query, args)
}

// Delete removes the rows of table matching where and returns the affected
// count.
func (c *Client) Delete(ctx context.Context, table string, where Row) (int64, error) {
	query, args, err := buildDelete(table, where)
	if err != nil {
		return 0, err
	}
	return c.execStatement(ctx, "delete", table, query, args)
}

// Exec runs a raw statement. The escape hatch for anything the builders do
// not cover; still guarded and labeled under the given operation/table.
func (c *Client) Exec(ctx context.Context, operation, table, query string, args ...any) (int64, error) {
	return c.execStatement(ctx, operation, table, query, args)
}

// HealthCheck runs a trivial statement with the fail-fast policy.
func (c *Client) HealthCheck(ctx context.Context) bool {
	call := resilience.Call{
		Key:       "db:health",
		Component: "db",
		Operation: "health",
		Target:    "health",
	}
	_, err := c.exec.Execute(ctx, call, func(ctx context.Context) resilience.Outcome {
		var one int
		return resilience.Outcome{Err: c.db.GetContext(ctx, &one, "SELECT 1")}
	}, resilience.NoRetry())
	if err != nil {
		c.log.Warn("database health check failed", "error", err)
		return false
	}
	return true
}

func (c *Client) execStatement(ctx context.Context, operation, table, query string, args []any) (int64, error) {
	var affected int64
	err := c.guarded(ctx, operation, table, func(ctx context.Context) error {
		res, err := c.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func (c *Client) guarded(ctx context.Context, operation, table string, fn func(ctx context.Context) error) error {
	call := resilience.Call{
		Key:       "db:" + table,
		Component: "db",
		Operation: operation,
		Target:    table,
	}
	_, err := c.exec.Execute(ctx, call, func(ctx context.Context) resilience.Outcome {
		start := time.Now()
		err := fn(ctx)
		if elapsed := time.Since(start); elapsed > slowQueryThreshold {
			c.log.Warn("slow query",
				"operation", operation, "table", table, "elapsed", elapsed)
		}
		return resilience.Outcome{Err: err}
	}, c.policy)
	if err != nil {
		c.log.Warn("database operation failed",
			"operation", operation, "table", table, "error", err)
	}
	return err
}
