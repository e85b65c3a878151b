package postgres

import (
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	projectsTable       = "cospend_projects"
	currenciesTable     = "cospend_currencies"
	customTable         = "autocurrency_custom"
	historyTable        = "autocurrency_history"
	configTable         = "autocurrency_config"
	uniqueViolationCode = "23505"
)

var (
	psql         = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
