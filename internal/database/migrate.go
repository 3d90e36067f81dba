package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"lms-assessment/database/migrations"
	"lms-assessment/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// RunMigrations applies every pending up script for the connected driver.
func RunMigrations(ctx context.Context, db *sqlx.DB) error {
	if db.DriverName() == "oracle" {
		return runOracleScripts(ctx, db, true)
	}
	m, err := newMigrator(db)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not apply migrations: %w", err)
	}
	logger.Get().Info("Migrations completed successfully", zap.String("driver", db.DriverName()))
	return nil
}

// RollbackMigrations reverts every applied script.
func RollbackMigrations(ctx context.Context, db *sqlx.DB) error {
	if db.DriverName() == "oracle" {
		return runOracleScripts(ctx, db, false)
	}
	m, err := newMigrator(db)
	if err != nil {
		return err
	}
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not revert migrations: %w", err)
	}
	logger.Get().Info("Migrations reverted", zap.String("driver", db.DriverName()))
	return nil
}

// newMigrator builds a golang-migrate instance over the embedded scripts.
// The instance is not closed since closing it would close db.
func newMigrator(db *sqlx.DB) (*migrate.Migrate, error) {
	var (
		dir    string
		dbName string
		driver migratedb.Driver
		err    error
	)
	switch db.DriverName() {
	case "pgx":
		dir, dbName = "postgres", "pgx5"
		driver, err = pgxmigrate.WithInstance(db.DB, &pgxmigrate.Config{})
	case "sqlite":
		dir, dbName = "sqlite", "sqlite"
		driver, err = sqlitemigrate.WithInstance(db.DB, &sqlitemigrate.Config{})
	default:
		return nil, fmt.Errorf("no migrations for driver %q", db.DriverName())
	}
	if err != nil {
		return nil, fmt.Errorf("could not create migration driver: %w", err)
	}

	src, err := iofs.New(migrations.FS, dir)
	if err != nil {
		return nil, fmt.Errorf("could not read embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, dbName, driver)
	if err != nil {
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	return m, nil
}

type script struct {
	version uint64
	name    string
}

// runOracleScripts executes the oracle scripts statement by statement, since
// go-ora runs one statement per call. Applied versions are tracked in
// schema_migrations.
func runOracleScripts(ctx context.Context, db *sqlx.DB, up bool) error {
	log := logger.Get()
	if err := ensureOracleVersionTable(ctx, db); err != nil {
		return err
	}

	suffix := ".down.sql"
	if up {
		suffix = ".up.sql"
	}
	scripts, err := listScripts(migrations.FS, "oracle", suffix)
	if err != nil {
		return err
	}
	if !up {
		sort.Slice(scripts, func(i, j int) bool { return scripts[i].version > scripts[j].version })
	}

	var applied []uint64
	if err := db.SelectContext(ctx, &applied, `SELECT version "version" FROM schema_migrations`); err != nil {
		return fmt.Errorf("could not read applied migrations: %w", err)
	}
	done := make(map[uint64]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	for _, s := range scripts {
		if done[s.version] == up {
			continue
		}
		content, err := fs.ReadFile(migrations.FS, "oracle/"+s.name)
		if err != nil {
			return fmt.Errorf("could not read migration file %s: %w", s.name, err)
		}
		for _, stmt := range splitStatements(string(content)) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("could not execute migration %s: %w", s.name, err)
			}
		}
		if up {
			_, err = db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (:1)`, s.version)
		} else {
			_, err = db.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = :1`, s.version)
		}
		if err != nil {
			return fmt.Errorf("could not record migration %s: %w", s.name, err)
		}
		log.Info("Executed migration", zap.String("file", s.name))
	}

	log.Info("Migrations completed successfully", zap.String("driver", "oracle"))
	return nil
}

func ensureOracleVersionTable(ctx context.Context, db *sqlx.DB) error {
	var n int
	err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM user_tables WHERE table_name = 'SCHEMA_MIGRATIONS'`)
	if err != nil {
		return fmt.Errorf("could not check schema_migrations: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE schema_migrations (version NUMBER(19) PRIMARY KEY)`); err != nil {
		return fmt.Errorf("could not create schema_migrations: %w", err)
	}
	return nil
}

func listScripts(fsys fs.FS, dir, suffix string) ([]script, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("could not read migrations directory: %w", err)
	}
	var out []script
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		prefix, _, _ := strings.Cut(e.Name(), "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("migration %s has no numeric version: %w", e.Name(), err)
		}
		out = append(out, script{version: v, name: e.Name()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

func splitStatements(content string) []string {
	var out []string
	for _, part := range strings.Split(content, ";") {
		var lines []string
		for _, line := range strings.Split(part, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			lines = append(lines, line)
		}
		if stmt := strings.TrimSpace(strings.Join(lines, "\n")); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
