package database

import (
	"context"
	"testing"
	"testing/fstest"

	"lms-assessment/database/migrations"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	got := splitStatements(`
-- courses
CREATE TABLE courses (id NUMBER(19) PRIMARY KEY);

CREATE INDEX ix ON courses (id);
  ;
`)
	assert.Equal(t, []string{
		"CREATE TABLE courses (id NUMBER(19) PRIMARY KEY)",
		"CREATE INDEX ix ON courses (id)",
	}, got)
}

func TestListScripts(t *testing.T) {
	fsys := fstest.MapFS{
		"oracle/000002_more.up.sql":   {Data: []byte("x")},
		"oracle/000001_init.up.sql":   {Data: []byte("x")},
		"oracle/000001_init.down.sql": {Data: []byte("x")},
		"oracle/README.md":            {Data: []byte("x")},
	}
	scripts, err := listScripts(fsys, "oracle", ".up.sql")
	require.NoError(t, err)
	require.Len(t, scripts, 2)
	assert.Equal(t, uint64(1), scripts[0].version)
	assert.Equal(t, "000002_more.up.sql", scripts[1].name)

	_, err = listScripts(fstest.MapFS{"oracle/init.up.sql": {Data: []byte("x")}}, "oracle", ".up.sql")
	assert.Error(t, err)
}

func TestEmbeddedScriptsArePaired(t *testing.T) {
	for _, dir := range []string{"postgres", "sqlite", "oracle"} {
		up, err := listScripts(migrations.FS, dir, ".up.sql")
		require.NoError(t, err)
		down, err := listScripts(migrations.FS, dir, ".down.sql")
		require.NoError(t, err)
		require.NotEmpty(t, up, dir)
		require.Len(t, down, len(up), dir)
		for i := range up {
			assert.Equal(t, up[i].version, down[i].version, dir)
		}
	}
}

func TestSQLDriverName(t *testing.T) {
	for in, want := range map[string]string{"postgres": "pgx", "PG": "pgx", "sqlite": "sqlite", "oracle": "oracle"} {
		got, err := SQLDriverName(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := SQLDriverName("mysql")
	assert.Error(t, err)
}

func TestRunMigrations_SQLite(t *testing.T) {
	ctx := context.Background()
	db, err := NewSQLXDB(ctx, DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, RunMigrations(ctx, db))
	// a second run is a no-op
	require.NoError(t, RunMigrations(ctx, db))

	var tables []string
	require.NoError(t, db.SelectContext(ctx, &tables,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`))
	assert.Contains(t, tables, "quiz_attempts")
	assert.Contains(t, tables, "progress_items")
	assert.Contains(t, tables, "event_log")

	var indexes int
	require.NoError(t, db.GetContext(ctx, &indexes,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'ux_quiz_attempts_open'`))
	assert.Equal(t, 1, indexes)

	require.NoError(t, RollbackMigrations(ctx, db))
	tables = nil
	require.NoError(t, db.SelectContext(ctx, &tables,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'quiz_attempts'`))
	assert.Empty(t, tables)
}
