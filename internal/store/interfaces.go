package store

import (
	"context"
	"errors"
	"fmt"

	"wood-catalog-service/internal/config"
)

var (
	// ErrNoRowsAffected is returned by Update when the where clause matched
	// nothing; the row simply does not exist, the backend did not fail.
	ErrNoRowsAffected = errors.New("store: update matched no rows")

	// ErrEmptyWhere is returned by Update and Delete when the where map is
	// empty. Neither driver generates an unscoped write; a deliberate
	// full-table statement must be spelled out through Query.
	ErrEmptyWhere = errors.New("store: empty where clause")

	// ErrEmptyData is returned by Insert and Update when no column values
	// are given.
	ErrEmptyData = errors.New("store: no column values")
)

// Row is a single result row keyed by column name. Both drivers decode into
// this generic shape so callers never depend on a backend-specific type.
type Row map[string]any

// OrderBy names a sort column for Select.
type OrderBy struct {
	Column string
	Desc   bool
}

// SelectOptions is the generic query shape understood by both drivers:
// column list, equality-only where clauses, order-by list, limit and offset.
// Anything richer (OR conditions, joins) must go through Query.
type SelectOptions struct {
	Columns []string
	Where   map[string]any
	OrderBy []OrderBy
	Limit   int
	Offset  int
}

// Driver is the shared contract of the two database backends. A failed call
// returns no rows, never a truncated set, and every backend failure surfaces
// as a *DatabaseError.
type Driver interface {
	// Query executes parameterized raw SQL. On the hosted provider this is
	// tunneled through a server-side RPC; see SupabaseDriver.
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
	Select(ctx context.Context, table string, opts SelectOptions) ([]Row, error)
	Insert(ctx context.Context, table string, data Row) (Row, error)
	Update(ctx context.Context, table string, data Row, where map[string]any) (Row, error)
	Delete(ctx context.Context, table string, where map[string]any) ([]Row, error)
	Ping(ctx context.Context) error
	Close() error
}

// DatabaseError wraps any error coming back from the active backend. The
// backend's own message is preserved and no retry is attempted at this layer.
type DatabaseError struct {
	Driver string
	Op     string
	Err    error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("store: %s %s failed: %v", e.Driver, e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// Open constructs the driver selected by the configuration. It is called once
// at startup and the instance is injected everywhere it is needed; connection
// pools are expensive and must not be duplicated per request.
func Open(cfg *config.Config) (Driver, error) {
	switch cfg.Provider {
	case config.ProviderPostgres:
		return OpenPostgres(cfg)
	case config.ProviderSupabase:
		return OpenSupabase(cfg), nil
	default:
		return nil, &config.Error{Provider: cfg.Provider, Reason: fmt.Sprintf("unknown DB_PROVIDER %q", cfg.Provider)}
	}
}
