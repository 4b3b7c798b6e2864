package database

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Queryable is the common surface of *sqlx.DB and *sqlx.Tx which stores
// accept. Passing the Queryable in to each store method (rather than
// binding the store to a connection) lets the caller decide whether
// operations run standalone or inside a shared transaction.
type Queryable interface {
	sqlx.Queryer
	sqlx.Execer

	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	NamedExec(query string, arg interface{}) (sql.Result, error)
	Rebind(query string) string
}

// JsonColumn is a generic container for JSONB columns, allowing
// arbitrary structures to be scanned from (and valued to) the database
// without each model hand-writing sql.Scanner boilerplate.
type JsonColumn[T any] struct {
	val *T
}

func NewJsonColumn[T any](val *T) JsonColumn[T] {
	return JsonColumn[T]{val: val}
}

// Get returns the contained value, which is nil if the column
// was SQL NULL (or was never scanned).
func (col *JsonColumn[T]) Get() *T { return col.val }

func (col *JsonColumn[T]) Scan(src any) error {
	if src == nil {
		col.val = nil
		return nil
	}

	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported source type %T for JsonColumn scan", src)
	}

	val := new(T)
	if err := json.Unmarshal(raw, val); err != nil {
		return fmt.Errorf("failed to unmarshal JsonColumn: %w", err)
	}

	col.val = val
	return nil
}

func (col JsonColumn[T]) Value() (driver.Value, error) {
	if col.val == nil {
		return nil, nil
	}

	return json.Marshal(col.val)
}
