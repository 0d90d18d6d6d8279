package record

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/schooladmin/school-admin/internal"
	"github.com/schooladmin/school-admin/internal/database"
)

// Database is what the store needs from the connection manager.
type Database interface {
	database.Executor
	WithTransaction(ctx context.Context, work func(database.Executor) error) error
}

// Store turns generic CRUD intents into parameterized SQL against any table.
// Table and column names come from trusted callers and are quoted; every
// value travels as a bound argument.
type Store struct {
	db            Database
	now           func() time.Time
	newID         func() string
	noUpdateStamp map[string]bool
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithoutUpdateStamp lists tables that have no updated_at column.
func WithoutUpdateStamp(tables ...string) Option {
	return func(s *Store) {
		for _, t := range tables {
			s.noUpdateStamp[t] = true
		}
	}
}

func NewStore(db Database, opts ...Option) *Store {
	s := &Store{
		db:            db,
		now:           time.Now,
		newID:         uuid.NewString,
		noUpdateStamp: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Query narrows FindAll. Nil Limit or Offset leaves that clause out.
type Query struct {
	Conditions map[string]any
	OrderBy    []Order
	Limit      *int
	Offset     *int
}

// SearchQuery ORs a case-insensitive substring match of Term over Fields and
// ANDs the result with Conditions.
type SearchQuery struct {
	Fields     []string
	Term       string
	Conditions map[string]any
	OrderBy    []Order
	Limit      *int
	Offset     *int
}

// Int is a convenience for the optional paging fields.
func Int(v int) *int {
	return &v
}

func (s *Store) Create(ctx context.Context, table string, fields map[string]any) (database.Record, error) {
	stmt, err := s.insertStatement(table, fields)
	if err != nil {
		return nil, err
	}
	return first(s.db.Execute(ctx, stmt.SQL, stmt.Args))
}

func (s *Store) FindByID(ctx context.Context, table string, id any) (database.Record, error) {
	if err := ValidIdentifier(table); err != nil {
		return nil, err
	}
	b := NewBuilder()
	b.Write("SELECT * FROM ", b.Ident(table), " WHERE ", b.Ident("id"), " = ", b.Bind(id))
	stmt := b.Statement()
	return first(s.db.Execute(ctx, stmt.SQL, stmt.Args))
}

func (s *Store) FindAll(ctx context.Context, table string, q Query) ([]database.Record, error) {
	stmt, err := selectStatement(table, q)
	if err != nil {
		return nil, err
	}
	return s.db.Execute(ctx, stmt.SQL, stmt.Args)
}

// UpdateByID returns the updated row, or nil when no row has that id.
func (s *Store) UpdateByID(ctx context.Context, table string, id any, fields map[string]any) (database.Record, error) {
	stmt, err := s.updateStatement(table, id, fields)
	if err != nil {
		return nil, err
	}
	return first(s.db.Execute(ctx, stmt.SQL, stmt.Args))
}

// DeleteByID returns the deleted row, or nil when it was already gone.
func (s *Store) DeleteByID(ctx context.Context, table string, id any) (database.Record, error) {
	if err := ValidIdentifier(table); err != nil {
		return nil, err
	}
	b := NewBuilder()
	b.Write("DELETE FROM ", b.Ident(table), " WHERE ", b.Ident("id"), " = ", b.Bind(id), " RETURNING *")
	stmt := b.Statement()
	return first(s.db.Execute(ctx, stmt.SQL, stmt.Args))
}

func (s *Store) Count(ctx context.Context, table string, conditions map[string]any) (int64, error) {
	stmt, err := countStatement(table, conditions, nil)
	if err != nil {
		return 0, err
	}
	return s.scalarCount(ctx, stmt)
}

func (s *Store) Exists(ctx context.Context, table string, conditions map[string]any) (bool, error) {
	n, err := s.Count(ctx, table, conditions)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) Search(ctx context.Context, table string, q SearchQuery) ([]database.Record, error) {
	stmt, err := searchStatement(table, q)
	if err != nil {
		return nil, err
	}
	return s.db.Execute(ctx, stmt.SQL, stmt.Args)
}

// CountSearch counts the rows Search would return without paging.
func (s *Store) CountSearch(ctx context.Context, table string, q SearchQuery) (int64, error) {
	stmt, err := countStatement(table, q.Conditions, &q)
	if err != nil {
		return 0, err
	}
	return s.scalarCount(ctx, stmt)
}

// BulkInsert inserts every record or none. With a nil exec the batch runs in
// its own transaction; a non-nil exec means the caller already owns one.
func (s *Store) BulkInsert(ctx context.Context, table string, records []map[string]any, exec database.Executor) ([]database.Record, error) {
	stmts := make([]Statement, 0, len(records))
	for i, fields := range records {
		stmt, err := s.insertStatement(table, fields)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		stmts = append(stmts, stmt)
	}

	insertAll := func(ex database.Executor) ([]database.Record, error) {
		out := make([]database.Record, 0, len(stmts))
		for _, stmt := range stmts {
			rec, err := first(ex.Execute(ctx, stmt.SQL, stmt.Args))
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
		return out, nil
	}

	if exec != nil {
		return insertAll(exec)
	}

	var inserted []database.Record
	err := s.db.WithTransaction(ctx, func(tx database.Executor) error {
		var err error
		inserted, err = insertAll(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

func (s *Store) insertStatement(table string, fields map[string]any) (Statement, error) {
	if err := ValidIdentifier(table); err != nil {
		return Statement{}, err
	}
	if len(fields) == 0 {
		return Statement{}, internal.ErrEmptyFields
	}

	columns := sortedKeys(fields)
	values := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		values[k] = v
	}
	if id, ok := fields["id"]; !ok || isBlank(id) {
		values["id"] = s.newID()
		columns = append([]string{"id"}, without(columns, "id")...)
	}

	b := NewBuilder()
	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		if err := ValidIdentifier(col); err != nil {
			return Statement{}, err
		}
		quoted[i] = b.Ident(col)
		placeholders[i] = b.Bind(values[col])
	}
	b.Write("INSERT INTO ", b.Ident(table),
		" (", strings.Join(quoted, ", "), ")",
		" VALUES (", strings.Join(placeholders, ", "), ")",
		" RETURNING *")
	return b.Statement(), nil
}

func (s *Store) updateStatement(table string, id any, fields map[string]any) (Statement, error) {
	if err := ValidIdentifier(table); err != nil {
		return Statement{}, err
	}
	if len(fields) == 0 {
		return Statement{}, internal.ErrEmptyFields
	}

	values := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		values[k] = v
	}
	if _, ok := values["updated_at"]; !ok && !s.noUpdateStamp[table] {
		values["updated_at"] = s.now().UTC()
	}

	b := NewBuilder()
	columns := sortedKeys(values)
	assignments := make([]string, len(columns))
	for i, col := range columns {
		if err := ValidIdentifier(col); err != nil {
			return Statement{}, err
		}
		assignments[i] = b.Ident(col) + " = " + b.Bind(values[col])
	}
	b.Write("UPDATE ", b.Ident(table), " SET ", strings.Join(assignments, ", "))
	b.Write(" WHERE ", b.Ident("id"), " = ", b.Bind(id), " RETURNING *")
	return b.Statement(), nil
}

func selectStatement(table string, q Query) (Statement, error) {
	if err := validate(table, q.Conditions, q.OrderBy); err != nil {
		return Statement{}, err
	}
	b := NewBuilder()
	b.Write("SELECT * FROM ", b.Ident(table))
	b.writeWhere(b.equalities(q.Conditions))
	b.writeOrder(q.OrderBy)
	b.writePaging(q.Limit, q.Offset)
	return b.Statement(), nil
}

func searchStatement(table string, q SearchQuery) (Statement, error) {
	if strings.TrimSpace(q.Term) == "" || len(q.Fields) == 0 {
		return selectStatement(table, Query{
			Conditions: q.Conditions,
			OrderBy:    q.OrderBy,
			Limit:      q.Limit,
			Offset:     q.Offset,
		})
	}
	if err := validate(table, q.Conditions, q.OrderBy, q.Fields...); err != nil {
		return Statement{}, err
	}
	b := NewBuilder()
	b.Write("SELECT * FROM ", b.Ident(table))
	b.writeWhere(b.searchPredicates(q))
	b.writeOrder(q.OrderBy)
	b.writePaging(q.Limit, q.Offset)
	return b.Statement(), nil
}

// countStatement counts rows matching conditions and, when search is given,
// its substring match as well.
func countStatement(table string, conditions map[string]any, search *SearchQuery) (Statement, error) {
	var fields []string
	if search != nil && strings.TrimSpace(search.Term) != "" {
		fields = search.Fields
	}
	if err := validate(table, conditions, nil, fields...); err != nil {
		return Statement{}, err
	}
	b := NewBuilder()
	b.Write("SELECT COUNT(*) AS ", b.Ident("count"), " FROM ", b.Ident(table))
	if len(fields) > 0 {
		b.writeWhere(b.searchPredicates(*search))
	} else {
		b.writeWhere(b.equalities(conditions))
	}
	return b.Statement(), nil
}

func (b *Builder) searchPredicates(q SearchQuery) []string {
	preds := b.equalities(q.Conditions)
	pattern := "%" + escapeLike(strings.TrimSpace(q.Term)) + "%"
	matches := make([]string, len(q.Fields))
	for i, f := range q.Fields {
		matches[i] = b.Ident(f) + " ILIKE " + b.Bind(pattern)
	}
	return append(preds, "("+strings.Join(matches, " OR ")+")")
}

func (s *Store) scalarCount(ctx context.Context, stmt Statement) (int64, error) {
	rec, err := first(s.db.Execute(ctx, stmt.SQL, stmt.Args))
	if err != nil {
		return 0, err
	}
	if rec == nil {
		return 0, nil
	}
	return toInt64(rec["count"])
}

func validate(table string, conditions map[string]any, order []Order, extra ...string) error {
	if err := ValidIdentifier(table); err != nil {
		return err
	}
	for col := range conditions {
		if err := ValidIdentifier(col); err != nil {
			return err
		}
	}
	for _, o := range order {
		if err := ValidIdentifier(o.Column); err != nil {
			return err
		}
	}
	for _, col := range extra {
		if err := ValidIdentifier(col); err != nil {
			return err
		}
	}
	return nil
}

func first(records []database.Record, err error) (database.Record, error) {
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	default:
		return 0, internal.NewQueryError("unexpected count value", fmt.Errorf("type %T", v))
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func without(list []string, drop string) []string {
	out := list[:0:0]
	for _, s := range list {
		if s != drop {
			out = append(out, s)
		}
	}
	return out
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
