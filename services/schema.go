package services

import (
	"context"
	_ "embed" // Required for go:embed
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed init.sql
var defaultSchemaSQL string

// schemaConn is the slice of pgx.Conn the applier needs. Tests substitute
// a fake; production connections come from pgx.Connect.
type schemaConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close(ctx context.Context) error
}

// LoadSchemaSQL returns the schema script to apply. An empty path selects
// the embedded default.
func LoadSchemaSQL(path string) (string, error) {
	if path == "" {
		return defaultSchemaSQL, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading schema file %s: %w", path, err)
	}
	return string(data), nil
}

// PostgresSchemaApplier initializes and verifies the application schema
// over a direct database connection.
type PostgresSchemaApplier struct {
	schemaSQL string
	connect   func(ctx context.Context, connectionURL string) (schemaConn, error)
}

func NewSchemaApplier(schemaSQL string) *PostgresSchemaApplier {
	return &PostgresSchemaApplier{
		schemaSQL: schemaSQL,
		connect: func(ctx context.Context, connectionURL string) (schemaConn, error) {
			return pgx.Connect(ctx, connectionURL)
		},
	}
}

var _ SchemaApplier = (*PostgresSchemaApplier)(nil)

// Apply runs every statement of the schema script. Duplicate-object errors
// are tolerated so an already initialized database passes; any other
// statement failure aborts with a SchemaInitError.
func (a *PostgresSchemaApplier) Apply(ctx context.Context, connectionURL string) error {
	conn, err := a.connect(ctx, connectionURL)
	if err != nil {
		return &SchemaInitError{Stage: "connect", Err: err}
	}
	defer conn.Close(ctx)

	statements := splitSQLStatements(a.schemaSQL)
	slog.Debug("Applying database schema", "statements", len(statements))

	for i, statement := range statements {
		if _, err := conn.Exec(ctx, statement); err != nil {
			if isDuplicateObject(err) {
				slog.Debug("Schema statement skipped, object already exists",
					"statement", i+1,
					"error", err)
				continue
			}
			return &SchemaInitError{
				Stage: "apply",
				Err:   fmt.Errorf("statement %d/%d: %w", i+1, len(statements), err),
			}
		}
	}

	return nil
}

// requiredAnimeColumns are the columns the backend cannot run without.
var requiredAnimeColumns = []string{"id", "title", "genre", "episodes"}

// timestampColumns are expected but their absence only degrades change
// tracking, so it is a warning rather than a failure.
var timestampColumns = []string{"created_at", "updated_at"}

// Verify confirms the schema landed: the animes table must exist with its
// required columns and be countable.
func (a *PostgresSchemaApplier) Verify(ctx context.Context, connectionURL string) error {
	conn, err := a.connect(ctx, connectionURL)
	if err != nil {
		return &SchemaInitError{Stage: "connect", Err: err}
	}
	defer conn.Close(ctx)

	var exists bool
	err = conn.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = 'animes'
		)`).Scan(&exists)
	if err != nil {
		return &SchemaInitError{Stage: "verify", Err: err}
	}
	if !exists {
		return &SchemaInitError{Stage: "verify", Err: errors.New("animes table does not exist")}
	}

	present, err := a.countColumns(ctx, conn, requiredAnimeColumns)
	if err != nil {
		return &SchemaInitError{Stage: "verify", Err: err}
	}
	if present != len(requiredAnimeColumns) {
		return &SchemaInitError{
			Stage: "verify",
			Err: fmt.Errorf("animes table has %d of %d required columns (%s)",
				present, len(requiredAnimeColumns), strings.Join(requiredAnimeColumns, ", ")),
		}
	}

	timestamps, err := a.countColumns(ctx, conn, timestampColumns)
	if err != nil {
		return &SchemaInitError{Stage: "verify", Err: err}
	}
	if timestamps != len(timestampColumns) {
		slog.Warn("Anime table is missing timestamp columns",
			"have", timestamps,
			"want", len(timestampColumns))
	}

	var count int
	if err := conn.QueryRow(ctx, "SELECT COUNT(*) FROM animes").Scan(&count); err != nil {
		return &SchemaInitError{Stage: "verify", Err: fmt.Errorf("counting animes: %w", err)}
	}

	slog.Debug("Database schema verified", "anime_count", count)
	return nil
}

func (a *PostgresSchemaApplier) countColumns(ctx context.Context, conn schemaConn, columns []string) (int, error) {
	var present int
	err := conn.QueryRow(ctx, `
		SELECT COUNT(*) FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = 'animes'
		  AND column_name = ANY($1)`, columns).Scan(&present)
	if err != nil {
		return 0, fmt.Errorf("checking animes columns: %w", err)
	}
	return present, nil
}

// Postgres duplicate-object error codes: table, object, column, index
// variants raised when CREATE runs against existing objects.
var duplicateObjectCodes = map[string]bool{
	"42P07": true,
	"42710": true,
	"42701": true,
	"42P06": true,
}

func isDuplicateObject(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return duplicateObjectCodes[pgErr.Code]
	}
	return strings.Contains(err.Error(), "already exists")
}

// splitSQLStatements splits a script on top-level semicolons. Semicolons
// inside single-quoted strings and dollar-quoted bodies (plpgsql function
// definitions) do not split; line comments are dropped.
func splitSQLStatements(script string) []string {
	var statements []string
	var current strings.Builder

	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	for i := 0; i < len(script); {
		if strings.HasPrefix(script[i:], "--") {
			end := strings.IndexByte(script[i:], '\n')
			if end < 0 {
				break
			}
			current.WriteByte('\n')
			i += end + 1
			continue
		}

		if tag := dollarQuoteTag(script[i:]); tag != "" {
			body := script[i+len(tag):]
			end := strings.Index(body, tag)
			if end < 0 {
				current.WriteString(script[i:])
				break
			}
			quoted := script[i : i+len(tag)+end+len(tag)]
			current.WriteString(quoted)
			i += len(quoted)
			continue
		}

		if script[i] == '\'' {
			end := closingSingleQuote(script, i)
			current.WriteString(script[i:end])
			i = end
			continue
		}

		if script[i] == ';' {
			flush()
			i++
			continue
		}

		current.WriteByte(script[i])
		i++
	}
	flush()

	return statements
}

// dollarQuoteTag reports the dollar-quote opener at the start of s ("$$"
// or "$tag$"), or "" when s does not open one.
func dollarQuoteTag(s string) string {
	if len(s) < 2 || s[0] != '$' {
		return ""
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if c == '$' {
			return s[:i+1]
		}
		if !isDollarTagChar(c) {
			return ""
		}
	}
	return ""
}

func isDollarTagChar(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

// closingSingleQuote returns the index just past the string literal that
// opens at script[start], treating '' as an escaped quote.
func closingSingleQuote(script string, start int) int {
	for i := start + 1; i < len(script); i++ {
		if script[i] != '\'' {
			continue
		}
		if i+1 < len(script) && script[i+1] == '\'' {
			i++
			continue
		}
		return i + 1
	}
	return len(script)
}
