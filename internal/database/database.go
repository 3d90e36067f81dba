package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lms-assessment/internal/logger"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	"github.com/jmoiron/sqlx"
	_ "github.com/sijms/go-ora/v2" // registers "oracle"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers "sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverOracle   = "oracle"
)

func init() {
	// sqlx does not know the driver names registered by go-ora and modernc.
	sqlx.BindDriver("oracle", sqlx.NAMED)
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// SQLDriverName maps a configured driver to the database/sql driver name.
func SQLDriverName(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverPostgres, "pgx", "pg":
		return "pgx", nil
	case DriverSQLite, "sqlite3":
		return "sqlite", nil
	case DriverOracle, "go_ora":
		return "oracle", nil
	}
	return "", fmt.Errorf("unsupported database driver: %q", driver)
}

// NewSQLXDB connects to the configured database and verifies the connection.
func NewSQLXDB(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	name, err := SQLDriverName(driver)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.ConnectContext(ctx, name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}
	tunePool(name, db)

	if name == "sqlite" {
		if err := applySQLitePragmas(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}

	logger.Get().Info("Connected to database", zap.String("driver", name))
	return db, nil
}

func tunePool(name string, db *sqlx.DB) {
	switch name {
	case "sqlite":
		// single writer
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	default:
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(45 * time.Minute)
		db.SetConnMaxIdleTime(15 * time.Minute)
	}
}

func applySQLitePragmas(ctx context.Context, db *sqlx.DB) error {
	for _, p := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("failed to apply sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}
