// Package repository holds the generic data-access contracts the snapshot
// store repository is built against.
package repository

import (
	"context"
	"database/sql"
)

// Repository is the generic CRUD contract a concrete repository implements
// for one entity type.
type Repository[T any] interface {
	Create(ctx context.Context, entity *T) error
	GetByID(ctx context.Context, id string) (*T, error)
	Update(ctx context.Context, entity *T) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]*T, int, error)
}

// ListFilter narrows a List call.
type ListFilter struct {
	OwnerID  string `json:"owner_id,omitempty"`
	Offset   int    `json:"offset"`
	Limit    int    `json:"limit"`
	OrderBy  string `json:"order_by,omitempty"`
	OrderDir string `json:"order_dir,omitempty"` // asc/desc
}

// DefaultListFilter returns the filter used when the caller supplies none.
func DefaultListFilter() ListFilter {
	return ListFilter{
		Offset:   0,
		Limit:    20,
		OrderBy:  "updated_at",
		OrderDir: "desc",
	}
}

// WithLimit sets the page size.
func (f ListFilter) WithLimit(limit int) ListFilter {
	f.Limit = limit
	return f
}

// WithOffset sets the page offset.
func (f ListFilter) WithOffset(offset int) ListFilter {
	f.Offset = offset
	return f
}

// WithOwnerID scopes the list to one owner.
func (f ListFilter) WithOwnerID(ownerID string) ListFilter {
	f.OwnerID = ownerID
	return f
}

// DB is the subset of *sql.DB (or *sql.Tx) a repository needs.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Tx is DB plus transaction control.
type Tx interface {
	DB
	Commit() error
	Rollback() error
}

// TxFunc is work run inside a transaction.
type TxFunc func(tx Tx) error

// Scanner abstracts *sql.Row / *sql.Rows for test doubles.
type Scanner interface {
	Scan(dest ...interface{}) error
}
