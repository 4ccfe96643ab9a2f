package repo

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"planner/internal/infra"
)

type simpleRow struct {
	scan func(dest ...any) error
}

func (r simpleRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

// valuesRow scans the given values into dest positionally.
func valuesRow(values ...any) simpleRow {
	return simpleRow{scan: func(dest ...any) error { return fill(dest, values) }}
}

func fill(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(values))
	}
	for i, v := range values {
		target := reflect.ValueOf(dest[i]).Elem()
		if v == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(v))
	}
	return nil
}

type testRows struct {
	data [][]any
	idx  int
	err  error
}

func (r *testRows) Close() {}
func (r *testRows) Err() error { return r.err }
func (r *testRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }
func (r *testRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *testRows) Values() ([]any, error) { return nil, fmt.Errorf("values not supported in test rows") }
func (r *testRows) RawValues() [][]byte { return nil }
func (r *testRows) Conn() *pgx.Conn { return nil }

func (r *testRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *testRows) Scan(dest ...any) error {
	return fill(dest, r.data[r.idx-1])
}

type call struct {
	query string
	args  []any
}

// stubExecutor routes statements by a substring of their SQL text.
type stubExecutor struct {
	rows     map[string]pgx.Row
	queries  map[string][][]any
	affected int64
	execErr  error
	calls    []call
	txCount  int
}

func (s *stubExecutor) record(query string, args []any) {
	s.calls = append(s.calls, call{query: query, args: args})
}

func (s *stubExecutor) match(query string) string {
	for key := range s.rows {
		if strings.Contains(query, key) {
			return key
		}
	}
	for key := range s.queries {
		if strings.Contains(query, key) {
			return key
		}
	}
	return ""
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.record(query, args)
	if s.execErr != nil {
		return pgconn.CommandTag{}, s.execErr
	}
	return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", s.affected)), nil
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.record(query, args)
	if row, ok := s.rows[s.match(query)]; ok {
		return row
	}
	return simpleRow{}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	s.record(query, args)
	return &testRows{data: s.queries[s.match(query)]}, nil
}

func (s *stubExecutor) InTx(ctx context.Context, fn func(infra.SQLExecutor) error) error {
	s.txCount++
	return fn(s)
}

var _ infra.TxExecutor = (*stubExecutor)(nil)
