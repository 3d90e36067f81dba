package repository

import (
	"context"
	"database/sql" // Required for sql.Result
	"errors"
	"strings"

	"lms-assessment/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is an interface abstracting *sqlx.DB and *sqlx.Tx for repository use.
type DBTX interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Rebind(query string) string
}

// classifyWriteError maps driver-specific constraint failures to domain errors.
func classifyWriteError(err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return errors.Join(domain.ErrUniqueViolation, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := err.Error()
	return strings.Contains(msg, "ORA-00001") || // oracle
		strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}

// execNamed runs a named statement and reports the rows it affected.
func execNamed(ctx context.Context, exec DBTX, query string, arg interface{}) (int64, error) {
	res, err := exec.NamedExecContext(ctx, query, arg)
	if err != nil {
		return 0, classifyWriteError(err)
	}
	return res.RowsAffected()
}
