package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"gardener/internal/domain"
)

// Field binds one column to a record field.
type Field[T any] struct {
	Column string
	Value  func(*T) any
	Dest   func(*T) any
}

// Mapping is the explicit field to column mapping of a record type.
type Mapping[T any] struct {
	Table  string
	Key    string
	ID     func(*T) int64
	KeyDst func(*T) any
	Fields []Field[T]
}

// Table is a durable collection of T keyed by an auto-incrementing id.
type Table[T any] struct {
	db      *sqlx.DB
	mapping Mapping[T]
	schema  TableSchema

	selectQuery string
	insertQuery string
	updateQuery string
}

func NewTable[T any](db *sqlx.DB, m Mapping[T], schema TableSchema) *Table[T] {
	cols := make([]string, len(m.Fields))
	sets := make([]string, len(m.Fields))
	marks := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		cols[i] = f.Column
		sets[i] = f.Column + " = ?"
		marks[i] = "?"
	}

	return &Table[T]{
		db:      db,
		mapping: m,
		schema:  schema,
		selectQuery: fmt.Sprintf("SELECT %s, %s FROM %s ORDER BY %s",
			m.Key, strings.Join(cols, ", "), m.Table, m.Key),
		insertQuery: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
			m.Table, strings.Join(cols, ", "), strings.Join(marks, ", "), m.Key),
		updateQuery: fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
			m.Table, strings.Join(sets, ", "), m.Key),
	}
}

func (t *Table[T]) Name() string {
	return t.mapping.Table
}

// EnsureSchema creates the table when it does not exist yet.
func (t *Table[T]) EnsureSchema(ctx context.Context) error {
	required := append([]string{t.mapping.Key}, t.columns()...)
	for _, col := range required {
		if !t.schema.has(col) {
			return fmt.Errorf("schema for %s lacks column %s", t.mapping.Table, col)
		}
	}

	stmt, err := t.schema.createStatement(t.mapping.Table)
	if err != nil {
		return err
	}

	_, err = GetExecutor(ctx, t.db).ExecContext(ctx, stmt)
	return err
}

// LoadAll returns every row in key order.
func (t *Table[T]) LoadAll(ctx context.Context) ([]*T, error) {
	rows, err := GetExecutor(ctx, t.db).QueryxContext(ctx, t.selectQuery)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", t.mapping.Table, err)
	}
	defer rows.Close()

	var result []*T
	for rows.Next() {
		entity := new(T)
		dests := make([]any, 0, len(t.mapping.Fields)+1)
		dests = append(dests, t.mapping.KeyDst(entity))
		for _, f := range t.mapping.Fields {
			dests = append(dests, f.Dest(entity))
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.mapping.Table, err)
		}
		result = append(result, entity)
	}

	return result, rows.Err()
}

// Upsert inserts entity when its id is zero and returns the new id,
// otherwise it replaces every column of the existing row.
// The entity itself is not modified.
func (t *Table[T]) Upsert(ctx context.Context, entity *T) (int64, error) {
	exec := GetExecutor(ctx, t.db)

	args := make([]any, 0, len(t.mapping.Fields)+1)
	for _, f := range t.mapping.Fields {
		args = append(args, f.Value(entity))
	}

	id := t.mapping.ID(entity)
	if id == 0 {
		var newID int64
		err := exec.QueryRowxContext(ctx, exec.Rebind(t.insertQuery), args...).Scan(&newID)
		if err != nil {
			return 0, fmt.Errorf("%w: insert into %s: %w", domain.ErrStoreWrite, t.mapping.Table, err)
		}
		return newID, nil
	}

	args = append(args, id)
	res, err := exec.ExecContext(ctx, exec.Rebind(t.updateQuery), args...)
	if err != nil {
		return 0, fmt.Errorf("%w: update %s: %w", domain.ErrStoreWrite, t.mapping.Table, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		err = sql.ErrNoRows
	}
	if err != nil {
		return 0, fmt.Errorf("%w: update %s id %d: %w", domain.ErrStoreWrite, t.mapping.Table, id, err)
	}
	return id, nil
}

// Count returns the number of rows in the table.
func (t *Table[T]) Count(ctx context.Context) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, GetExecutor(ctx, t.db), &n, "SELECT COUNT(*) FROM "+t.mapping.Table)
	return n, err
}

func (t *Table[T]) columns() []string {
	cols := make([]string, len(t.mapping.Fields))
	for i, f := range t.mapping.Fields {
		cols[i] = f.Column
	}
	return cols
}

type SchemaEnsurer interface {
	Name() string
	EnsureSchema(ctx context.Context) error
}

// Bootstrap ensures every table inside a single transaction. Tables are
// created in the order given, referenced tables first.
func Bootstrap(ctx context.Context, tm *TransactionManager, tables ...SchemaEnsurer) error {
	return tm.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, table := range tables {
			if err := table.EnsureSchema(txCtx); err != nil {
				return fmt.Errorf("ensure schema %s: %w", table.Name(), err)
			}
		}
		return nil
	})
}
