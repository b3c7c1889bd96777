package repositories

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// pgUniqueViolation is the Postgres SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// ErrRecordNotFound is wrapped by every lookup that matches no row.
var ErrRecordNotFound = errors.New("record not found")

// DuplicateKeyError is returned by the in-memory repository when a unique
// column would be duplicated.
type DuplicateKeyError struct {
	Column string
	Value  string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key value violates unique constraint on %s", e.Column)
}

// Detail mirrors the wording Postgres uses for unique violations.
func (e *DuplicateKeyError) Detail() string {
	return fmt.Sprintf("Key (%s)=(%s) already exists.", e.Column, e.Value)
}

// UniqueViolation reports whether err was caused by a unique constraint and
// returns the store's description of the conflict.
func UniqueViolation(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var dup *DuplicateKeyError
	if errors.As(err, &dup) {
		return dup.Detail(), true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		if pgErr.Detail != "" {
			return pgErr.Detail, true
		}
		return pgErr.Message, true
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return sqliteErr.Error(), true
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return err.Error(), true
	}
	return "", false
}
