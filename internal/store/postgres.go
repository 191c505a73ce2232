package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"

	"wood-catalog-service/internal/config"
)

const (
	maxOpenConns    = 25
	maxIdleConns    = 25
	connMaxLifetime = 5 * time.Minute
)

// PostgresDriver implements Driver over a pooled *sql.DB using lib/pq.
type PostgresDriver struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPostgresDriver wraps an existing connection pool. Used directly by tests.
func NewPostgresDriver(db *sql.DB, timeout time.Duration) *PostgresDriver {
	return &PostgresDriver{db: db, timeout: timeout}
}

// OpenPostgres opens the connection pool described by DATABASE_URL. The pool
// is not pinged here; callers decide when connectivity becomes fatal.
func OpenPostgres(cfg *config.Config) (*PostgresDriver, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, &DatabaseError{Driver: config.ProviderPostgres, Op: "open", Err: err}
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	return NewPostgresDriver(db, cfg.QueryTimeout), nil
}

// opCtx bounds every network call so a hung backend cannot block an operation
// indefinitely.
func (d *PostgresDriver) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.timeout)
}

func (d *PostgresDriver) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	ctx, cancel := d.opCtx(ctx)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, query, normalizeArgs(args)...)
	if err != nil {
		return nil, &DatabaseError{Driver: config.ProviderPostgres, Op: "query", Err: err}
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return nil, &DatabaseError{Driver: config.ProviderPostgres, Op: "query", Err: err}
	}
	return result, nil
}

func (d *PostgresDriver) Select(ctx context.Context, table string, opts SelectOptions) ([]Row, error) {
	query, args := buildSelect(table, opts)
	return d.Query(ctx, query, args...)
}

func (d *PostgresDriver) Insert(ctx context.Context, table string, data Row) (Row, error) {
	if len(data) == 0 {
		return nil, ErrEmptyData
	}
	cols := sortedKeys(map[string]any(data))
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = data[c]
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	rows, err := d.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &DatabaseError{Driver: config.ProviderPostgres, Op: "insert", Err: errors.New("no row returned")}
	}
	return rows[0], nil
}

func (d *PostgresDriver) Update(ctx context.Context, table string, data Row, where map[string]any) (Row, error) {
	if len(data) == 0 {
		return nil, ErrEmptyData
	}
	if len(where) == 0 {
		return nil, ErrEmptyWhere
	}
	setCols := sortedKeys(map[string]any(data))
	whereCols := sortedKeys(where)

	var sets, conds []string
	var args []any
	argID := 1
	for _, c := range setCols {
		sets = append(sets, fmt.Sprintf("%s = $%d", c, argID))
		args = append(args, data[c])
		argID++
	}
	for _, c := range whereCols {
		conds = append(conds, fmt.Sprintf("%s = $%d", c, argID))
		args = append(args, where[c])
		argID++
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s RETURNING *",
		table, strings.Join(sets, ", "), strings.Join(conds, " AND "))

	rows, err := d.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoRowsAffected
	}
	return rows[0], nil
}

func (d *PostgresDriver) Delete(ctx context.Context, table string, where map[string]any) ([]Row, error) {
	if len(where) == 0 {
		return nil, ErrEmptyWhere
	}
	whereCols := sortedKeys(where)
	var conds []string
	var args []any
	for i, c := range whereCols {
		conds = append(conds, fmt.Sprintf("%s = $%d", c, i+1))
		args = append(args, where[c])
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s RETURNING *", table, strings.Join(conds, " AND "))
	return d.Query(ctx, query, args...)
}

func (d *PostgresDriver) Ping(ctx context.Context) error {
	ctx, cancel := d.opCtx(ctx)
	defer cancel()
	if err := d.db.PingContext(ctx); err != nil {
		return &DatabaseError{Driver: config.ProviderPostgres, Op: "ping", Err: err}
	}
	return nil
}

func (d *PostgresDriver) Close() error {
	if d.db == nil {
		return nil
	}
	log.Println("INFO: Closing database connection pool...")
	if err := d.db.Close(); err != nil {
		log.Printf("ERROR: Failed to close database connection pool: %v", err)
		return err
	}
	return nil
}

// buildSelect composes a parameterized SELECT from the generic option shape.
// Where keys are applied in sorted order so the generated SQL is stable.
func buildSelect(table string, opts SelectOptions) (string, []any) {
	columns := "*"
	if len(opts.Columns) > 0 {
		columns = strings.Join(opts.Columns, ", ")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s", columns, table)

	var args []any
	argID := 1
	if len(opts.Where) > 0 {
		conds := make([]string, 0, len(opts.Where))
		for _, c := range sortedKeys(opts.Where) {
			conds = append(conds, fmt.Sprintf("%s = $%d", c, argID))
			args = append(args, opts.Where[c])
			argID++
		}
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	if len(opts.OrderBy) > 0 {
		orders := make([]string, len(opts.OrderBy))
		for i, ob := range opts.OrderBy {
			dir := "ASC"
			if ob.Desc {
				dir = "DESC"
			}
			orders[i] = ob.Column + " " + dir
		}
		sb.WriteString(" ORDER BY " + strings.Join(orders, ", "))
	}
	if opts.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT $%d", argID)
		args = append(args, opts.Limit)
		argID++
	}
	if opts.Offset > 0 {
		fmt.Fprintf(&sb, " OFFSET $%d", argID)
		args = append(args, opts.Offset)
	}
	return sb.String(), args
}

// normalizeArgs lets callers pass plain Go slices without knowing the
// backend: string slices become Postgres arrays.
func normalizeArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		if s, ok := a.([]string); ok {
			out[i] = pq.Array(s)
			continue
		}
		out[i] = a
	}
	return out
}

// scanRows decodes a *sql.Rows into generic rows. Byte slices are converted
// to strings so the translator sees the same types on both backends.
func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	result := make([]Row, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return result, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
