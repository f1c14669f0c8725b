package db

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"fmt"
	"regexp"
	"strings"
	"text/template"
	"time"
)

//go:embed scripts/initdb.sql
var bootstrapFS embed.FS

// SchemaVersion is bumped whenever scripts/initdb.sql changes shape.
const SchemaVersion = 1

var nonIdent = regexp.MustCompile(`[^a-z0-9_]+`)

// TableName turns a collection name into a safe Postgres identifier.
func TableName(collection string) string {
	t := nonIdent.ReplaceAllString(strings.ToLower(collection), "_")
	t = strings.Trim(t, "_")
	if t == "" || (t[0] >= '0' && t[0] <= '9') {
		t = "c_" + t
	}
	return t
}

// RenderBootstrap fills the bootstrap script for one collection.
func RenderBootstrap(table string, dim int) (string, error) {
	raw, err := bootstrapFS.ReadFile("scripts/initdb.sql")
	if err != nil {
		return "", fmt.Errorf("read initdb.sql: %w", err)
	}
	tmpl, err := template.New("initdb").Parse(string(raw))
	if err != nil {
		return "", fmt.Errorf("parse initdb.sql: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct {
		Table   string
		Dim     int
		Version int
	}{table, dim, SchemaVersion}); err != nil {
		return "", fmt.Errorf("render initdb.sql: %w", err)
	}
	return buf.String(), nil
}

// EnsureBootstrapped creates the collection table unless the meta table
// already records it at the current schema version.
func EnsureBootstrapped(ctx context.Context, db *sql.DB, table string, dim int) error {
	ctxBoot, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	var exists bool
	err := db.QueryRowContext(ctxBoot, `
		SELECT EXISTS (
		  SELECT 1 FROM information_schema.tables
		  WHERE table_name = 'coursemate_meta'
		)`).
		Scan(&exists)
	if err != nil {
		return fmt.Errorf("meta table check failed: %w", err)
	}
	if !exists {
		return runBootstrap(ctxBoot, db, table, dim)
	}

	var hasVersion bool
	if err := db.QueryRowContext(ctxBoot,
		`SELECT EXISTS (SELECT 1 FROM coursemate_meta WHERE collection = $1 AND version = $2)`,
		table, SchemaVersion,
	).Scan(&hasVersion); err != nil {
		return fmt.Errorf("meta version check failed: %w", err)
	}
	if !hasVersion {
		return runBootstrap(ctxBoot, db, table, dim)
	}
	return nil
}

func runBootstrap(ctx context.Context, db *sql.DB, table string, dim int) error {
	script, err := RenderBootstrap(table, dim)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("exec bootstrap: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bootstrap: %w", err)
	}
	return nil
}
