package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/supabase-community/postgrest-go"

	"wood-catalog-service/internal/config"
)

// execSQLFunction is the server-side helper the hosted provider needs for raw
// SQL, since PostgREST exposes no generic SQL execution path. Its presence is
// probed by Ping so a deployment without it fails at startup, not on the
// first search.
const execSQLFunction = "exec_sql"

// openEndedLimit stands in for "no limit" when only an offset is requested:
// Range derives its limit from both bounds, so the window needs a far end.
const openEndedLimit = 100_000_000

// SupabaseDriver implements Driver against the hosted PostgREST API.
type SupabaseDriver struct {
	client *postgrest.Client
}

// OpenSupabase builds the PostgREST client from the URL+key pair. No network
// traffic happens here.
func OpenSupabase(cfg *config.Config) *SupabaseDriver {
	headers := map[string]string{
		"apikey":        cfg.SupabaseKey,
		"Authorization": "Bearer " + cfg.SupabaseKey,
	}
	base := strings.TrimRight(cfg.SupabaseURL, "/") + "/rest/v1"
	return &SupabaseDriver{client: postgrest.NewClient(base, "public", headers)}
}

// Query tunnels raw SQL through the exec_sql RPC. Parameters are shipped as a
// JSON array; the server-side function binds them with EXECUTE ... USING.
func (d *SupabaseDriver) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, &DatabaseError{Driver: config.ProviderSupabase, Op: "query", Err: err}
	}
	body := map[string]any{
		"sql_query":    query,
		"query_params": args,
	}
	res := d.client.Rpc(execSQLFunction, "", body)
	if err := d.takeClientError(); err != nil {
		return nil, &DatabaseError{Driver: config.ProviderSupabase, Op: "query", Err: err}
	}
	return decodeRows([]byte(res), "query")
}

func (d *SupabaseDriver) Select(ctx context.Context, table string, opts SelectOptions) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, &DatabaseError{Driver: config.ProviderSupabase, Op: "select", Err: err}
	}
	columns := "*"
	if len(opts.Columns) > 0 {
		columns = strings.Join(opts.Columns, ",")
	}
	fb := d.client.From(table).Select(columns, "", false)
	for _, k := range sortedKeys(opts.Where) {
		fb = fb.Eq(k, fmt.Sprint(opts.Where[k]))
	}
	for _, ob := range opts.OrderBy {
		fb = fb.Order(ob.Column, &postgrest.OrderOpts{Ascending: !ob.Desc})
	}
	switch {
	case opts.Limit > 0 && opts.Offset > 0:
		fb = fb.Range(opts.Offset, opts.Offset+opts.Limit-1, "")
	case opts.Limit > 0:
		fb = fb.Limit(opts.Limit, "")
	case opts.Offset > 0:
		// PostgREST has no bare offset; a negative range end would be sent
		// as a negative limit, so request a window larger than any table.
		fb = fb.Range(opts.Offset, opts.Offset+openEndedLimit-1, "")
	}
	data, _, err := fb.Execute()
	if err != nil {
		return nil, &DatabaseError{Driver: config.ProviderSupabase, Op: "select", Err: err}
	}
	return decodeRows(data, "select")
}

func (d *SupabaseDriver) Insert(ctx context.Context, table string, data Row) (Row, error) {
	if len(data) == 0 {
		return nil, ErrEmptyData
	}
	if err := ctx.Err(); err != nil {
		return nil, &DatabaseError{Driver: config.ProviderSupabase, Op: "insert", Err: err}
	}
	res, _, err := d.client.From(table).Insert(data, false, "", "representation", "").Execute()
	if err != nil {
		return nil, &DatabaseError{Driver: config.ProviderSupabase, Op: "insert", Err: err}
	}
	rows, err := decodeRows(res, "insert")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &DatabaseError{Driver: config.ProviderSupabase, Op: "insert", Err: errors.New("no row returned")}
	}
	return rows[0], nil
}

func (d *SupabaseDriver) Update(ctx context.Context, table string, data Row, where map[string]any) (Row, error) {
	if len(data) == 0 {
		return nil, ErrEmptyData
	}
	if len(where) == 0 {
		return nil, ErrEmptyWhere
	}
	if err := ctx.Err(); err != nil {
		return nil, &DatabaseError{Driver: config.ProviderSupabase, Op: "update", Err: err}
	}
	fb := d.client.From(table).Update(data, "representation", "")
	for _, k := range sortedKeys(where) {
		fb = fb.Eq(k, fmt.Sprint(where[k]))
	}
	res, _, err := fb.Execute()
	if err != nil {
		return nil, &DatabaseError{Driver: config.ProviderSupabase, Op: "update", Err: err}
	}
	rows, err := decodeRows(res, "update")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoRowsAffected
	}
	return rows[0], nil
}

func (d *SupabaseDriver) Delete(ctx context.Context, table string, where map[string]any) ([]Row, error) {
	if len(where) == 0 {
		return nil, ErrEmptyWhere
	}
	if err := ctx.Err(); err != nil {
		return nil, &DatabaseError{Driver: config.ProviderSupabase, Op: "delete", Err: err}
	}
	fb := d.client.From(table).Delete("representation", "")
	for _, k := range sortedKeys(where) {
		fb = fb.Eq(k, fmt.Sprint(where[k]))
	}
	res, _, err := fb.Execute()
	if err != nil {
		return nil, &DatabaseError{Driver: config.ProviderSupabase, Op: "delete", Err: err}
	}
	return decodeRows(res, "delete")
}

// Ping doubles as the capability check for the exec_sql RPC.
func (d *SupabaseDriver) Ping(ctx context.Context) error {
	_, err := d.Query(ctx, "select 1")
	return err
}

func (d *SupabaseDriver) Close() error { return nil }

// takeClientError reads and clears the client-level error the fluent RPC API
// reports out of band.
func (d *SupabaseDriver) takeClientError() error {
	err := d.client.ClientError
	d.client.ClientError = nil
	return err
}

func decodeRows(data []byte, op string) ([]Row, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return []Row{}, nil
	}
	var rows []Row
	if err := json.Unmarshal([]byte(trimmed), &rows); err != nil {
		return nil, &DatabaseError{Driver: config.ProviderSupabase, Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return rows, nil
}
