package store

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrNameTaken indicates an Ensure call could not insert its row because
// another row already holds the name under a different natural key.
var ErrNameTaken = errors.New("name already used by another record")

// Store is the entity store for RBAC records. Every method runs against the
// handle it was built with, so a Store obtained inside Transaction shares
// the transaction.
type Store struct {
	db *gorm.DB
}

// New creates a Store backed by db.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying GORM DB for advanced queries.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn inside a database transaction. fn receives a Store
// bound to the transaction; returning an error rolls everything back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// IsUniqueViolation reports whether err was caused by a unique constraint.
// TranslateError covers drivers that support it; the message checks cover
// SQLite builds and raw driver errors that slip through untranslated.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
