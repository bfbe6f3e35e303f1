// Package sqliteschema applies embedded, idempotent DDL to a SQLite database.
//
// There is no version ledger: every statement file must be safe to replay
// (CREATE ... IF NOT EXISTS) and the whole set runs inside one transaction on
// every startup.
package sqliteschema

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Ensure executes every .sql file under root in lexical order.
func Ensure(ctx context.Context, sqlDB *sql.DB, schemaFS fs.FS, root string) error {
	if sqlDB == nil {
		return fmt.Errorf("sql db is required")
	}
	if schemaFS == nil {
		return fmt.Errorf("schema fs is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	root = strings.TrimSpace(root)
	if root == "" {
		root = "."
	}
	files, err := schemaFiles(schemaFS, root)
	if err != nil {
		return err
	}

	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	for _, file := range files {
		content, err := fs.ReadFile(schemaFS, path.Join(root, file))
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("read schema %s: %w", file, err)
		}
		statement := strings.TrimSpace(string(content))
		if statement == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, statement); err != nil && !IsAlreadyExistsError(err) {
			_ = tx.Rollback()
			return fmt.Errorf("exec schema %s: %w", file, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// IsAlreadyExistsError reports whether this error indicates idempotent DDL success.
func IsAlreadyExistsError(err error) bool {
	if err == nil {
		return false
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "already exists") || strings.Contains(value, "duplicate column name")
}

func schemaFiles(schemaFS fs.FS, root string) ([]string, error) {
	entries, err := fs.ReadDir(schemaFS, root)
	if err != nil {
		return nil, fmt.Errorf("read schema dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
