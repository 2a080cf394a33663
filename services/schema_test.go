package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error {
	return r.scan(dest...)
}

type fakeSchemaConn struct {
	executed    []string
	execErr     func(stmt string) error
	tableExists bool
	// missingColumns marks columns absent from the fake schema; the zero
	// value behaves as a fully initialized table.
	missingColumns map[string]bool
	animeCount     int
	queryErr       error
	closed         bool
}

func (c *fakeSchemaConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.executed = append(c.executed, sql)
	if c.execErr != nil {
		if err := c.execErr(sql); err != nil {
			return pgconn.CommandTag{}, err
		}
	}
	return pgconn.CommandTag{}, nil
}

func (c *fakeSchemaConn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return fakeRow{scan: func(dest ...any) error {
		if c.queryErr != nil {
			return c.queryErr
		}
		if strings.Contains(sql, "information_schema.tables") {
			*(dest[0].(*bool)) = c.tableExists
			return nil
		}
		if strings.Contains(sql, "information_schema.columns") {
			present := 0
			for _, col := range args[0].([]string) {
				if !c.missingColumns[col] {
					present++
				}
			}
			*(dest[0].(*int)) = present
			return nil
		}
		if strings.Contains(sql, "COUNT(*)") {
			*(dest[0].(*int)) = c.animeCount
			return nil
		}
		return fmt.Errorf("unexpected query: %s", sql)
	}}
}

func (c *fakeSchemaConn) Close(ctx context.Context) error {
	c.closed = true
	return nil
}

func newTestApplier(conn *fakeSchemaConn, schemaSQL string) *PostgresSchemaApplier {
	return &PostgresSchemaApplier{
		schemaSQL: schemaSQL,
		connect: func(ctx context.Context, connectionURL string) (schemaConn, error) {
			return conn, nil
		},
	}
}

func TestSplitSQLStatements_EmbeddedSchema(t *testing.T) {
	statements := splitSQLStatements(defaultSchemaSQL)

	require.Len(t, statements, 6)
	assert.True(t, strings.HasPrefix(statements[0], "CREATE TABLE IF NOT EXISTS animes"))
	assert.True(t, strings.HasPrefix(statements[1], "CREATE INDEX IF NOT EXISTS idx_animes_title"))
	assert.Contains(t, statements[2], "NEW.updated_at = CURRENT_TIMESTAMP;",
		"semicolons inside the dollar-quoted trigger body must not split")
	assert.True(t, strings.HasPrefix(statements[3], "DROP TRIGGER IF EXISTS"))
	assert.True(t, strings.HasPrefix(statements[4], "CREATE TRIGGER"))
	assert.True(t, strings.HasPrefix(statements[5], "INSERT INTO animes"))
}

func TestSplitSQLStatements(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{
			name:   "two plain statements",
			script: "SELECT 1;\nSELECT 2;",
			want:   []string{"SELECT 1", "SELECT 2"},
		},
		{
			name:   "semicolon inside string literal",
			script: "INSERT INTO t VALUES ('a;b');",
			want:   []string{"INSERT INTO t VALUES ('a;b')"},
		},
		{
			name:   "escaped quote inside string literal",
			script: "INSERT INTO t VALUES ('it''s;fine');",
			want:   []string{"INSERT INTO t VALUES ('it''s;fine')"},
		},
		{
			name:   "named dollar quote",
			script: "CREATE FUNCTION f() RETURNS int AS $fn$ BEGIN RETURN 1; END; $fn$ LANGUAGE plpgsql;",
			want:   []string{"CREATE FUNCTION f() RETURNS int AS $fn$ BEGIN RETURN 1; END; $fn$ LANGUAGE plpgsql"},
		},
		{
			name:   "line comment dropped",
			script: "-- drop me; entirely\nSELECT 1;",
			want:   []string{"SELECT 1"},
		},
		{
			name:   "trailing statement without semicolon",
			script: "SELECT 1; SELECT 2",
			want:   []string{"SELECT 1", "SELECT 2"},
		},
		{
			name:   "empty script",
			script: "  \n-- only a comment\n",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitSQLStatements(tt.script))
		})
	}
}

func TestSchemaApplier_Apply(t *testing.T) {
	conn := &fakeSchemaConn{}
	applier := newTestApplier(conn, defaultSchemaSQL)

	err := applier.Apply(context.Background(), "postgresql://test")
	require.NoError(t, err)
	assert.Len(t, conn.executed, 6)
	assert.True(t, conn.closed)
}

func TestSchemaApplier_Apply_DuplicateObjectTolerated(t *testing.T) {
	conn := &fakeSchemaConn{
		execErr: func(stmt string) error {
			if strings.HasPrefix(stmt, "CREATE TABLE") {
				return &pgconn.PgError{Code: "42P07", Message: `relation "animes" already exists`}
			}
			return nil
		},
	}
	applier := newTestApplier(conn, defaultSchemaSQL)

	err := applier.Apply(context.Background(), "postgresql://test")
	require.NoError(t, err)
	assert.Len(t, conn.executed, 6, "remaining statements still run")
}

func TestSchemaApplier_Apply_StatementFailure(t *testing.T) {
	conn := &fakeSchemaConn{
		execErr: func(stmt string) error {
			if strings.HasPrefix(stmt, "CREATE INDEX") {
				return errors.New("permission denied for schema public")
			}
			return nil
		},
	}
	applier := newTestApplier(conn, defaultSchemaSQL)

	err := applier.Apply(context.Background(), "postgresql://test")
	require.Error(t, err)

	var schemaErr *SchemaInitError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "apply", schemaErr.Stage)
	assert.Contains(t, schemaErr.Err.Error(), "statement 2/6")
	assert.True(t, conn.closed)
}

func TestSchemaApplier_Apply_ConnectFailure(t *testing.T) {
	applier := &PostgresSchemaApplier{
		schemaSQL: defaultSchemaSQL,
		connect: func(ctx context.Context, connectionURL string) (schemaConn, error) {
			return nil, errors.New("connection refused")
		},
	}

	err := applier.Apply(context.Background(), "postgresql://test")
	require.Error(t, err)

	var schemaErr *SchemaInitError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "connect", schemaErr.Stage)
}

func TestSchemaApplier_Verify(t *testing.T) {
	t.Run("schema present", func(t *testing.T) {
		conn := &fakeSchemaConn{tableExists: true, animeCount: 3}
		applier := newTestApplier(conn, defaultSchemaSQL)
		assert.NoError(t, applier.Verify(context.Background(), "postgresql://test"))
		assert.True(t, conn.closed)
	})

	t.Run("table missing", func(t *testing.T) {
		conn := &fakeSchemaConn{tableExists: false}
		applier := newTestApplier(conn, defaultSchemaSQL)

		err := applier.Verify(context.Background(), "postgresql://test")
		require.Error(t, err)

		var schemaErr *SchemaInitError
		require.True(t, errors.As(err, &schemaErr))
		assert.Equal(t, "verify", schemaErr.Stage)
		assert.Contains(t, schemaErr.Err.Error(), "does not exist")
	})

	t.Run("required column missing", func(t *testing.T) {
		conn := &fakeSchemaConn{
			tableExists:    true,
			missingColumns: map[string]bool{"episodes": true},
		}
		applier := newTestApplier(conn, defaultSchemaSQL)

		err := applier.Verify(context.Background(), "postgresql://test")
		require.Error(t, err)

		var schemaErr *SchemaInitError
		require.True(t, errors.As(err, &schemaErr))
		assert.Equal(t, "verify", schemaErr.Stage)
		assert.Contains(t, schemaErr.Err.Error(), "3 of 4 required columns")
	})

	t.Run("missing timestamp columns only warn", func(t *testing.T) {
		conn := &fakeSchemaConn{
			tableExists:    true,
			animeCount:     3,
			missingColumns: map[string]bool{"created_at": true, "updated_at": true},
		}
		applier := newTestApplier(conn, defaultSchemaSQL)
		assert.NoError(t, applier.Verify(context.Background(), "postgresql://test"))
	})

	t.Run("query failure", func(t *testing.T) {
		conn := &fakeSchemaConn{queryErr: errors.New("connection reset")}
		applier := newTestApplier(conn, defaultSchemaSQL)

		err := applier.Verify(context.Background(), "postgresql://test")
		require.Error(t, err)

		var schemaErr *SchemaInitError
		require.True(t, errors.As(err, &schemaErr))
		assert.Equal(t, "verify", schemaErr.Stage)
	})
}

func TestIsDuplicateObject(t *testing.T) {
	assert.True(t, isDuplicateObject(&pgconn.PgError{Code: "42P07"}))
	assert.True(t, isDuplicateObject(&pgconn.PgError{Code: "42710"}))
	assert.True(t, isDuplicateObject(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "42701"})))
	assert.True(t, isDuplicateObject(errors.New(`trigger "animes_updated_at" already exists`)))
	assert.False(t, isDuplicateObject(&pgconn.PgError{Code: "42601"}))
	assert.False(t, isDuplicateObject(errors.New("syntax error")))
}

func TestLoadSchemaSQL(t *testing.T) {
	t.Run("embedded default", func(t *testing.T) {
		sql, err := LoadSchemaSQL("")
		require.NoError(t, err)
		assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS animes")
	})

	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "schema.sql")
		require.NoError(t, os.WriteFile(path, []byte("SELECT 1;"), 0o644))

		sql, err := LoadSchemaSQL(path)
		require.NoError(t, err)
		assert.Equal(t, "SELECT 1;", sql)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSchemaSQL(filepath.Join(t.TempDir(), "absent.sql"))
		require.Error(t, err)
	})
}
