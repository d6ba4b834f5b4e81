package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// invalidTextRepresentation is raised when a parameter cannot be cast to
// its column type, such as a malformed uuid.
const invalidTextRepresentation = "22P02"

// NoRows reports whether err means the addressed row does not exist. An id
// that cannot be parsed as the column's type can never match a row, so it
// counts as missing too.
func NoRows(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation
}
