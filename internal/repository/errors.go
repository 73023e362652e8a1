package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ==============================================
// ERRORS
// ==============================================

var (
	ErrNotFound  = errors.New("record not found")
	ErrStale     = errors.New("conditional update matched no rows")
	ErrDuplicate = errors.New("duplicate key")
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
