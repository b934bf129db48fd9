package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Migrate applies (up) or reverts (down) the SQL files in dir named
// <version>.<direction>.sql. Applied versions are tracked in
// schema_migrations, so running up twice is a no-op. Each file runs in its
// own transaction together with its bookkeeping row.
func Migrate(ctx context.Context, db *sql.DB, dir string, direction Direction, logger *zap.Logger) (int, error) {
	if direction != Up && direction != Down {
		return 0, fmt.Errorf("unknown migration direction %q", direction)
	}

	if _, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	files, err := migrationFiles(dir, direction)
	if err != nil {
		return 0, err
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, filename := range files {
		version := strings.TrimSuffix(filename, "."+string(direction)+".sql")
		if applied[version] == (direction == Up) {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, filename))
		if err != nil {
			return count, fmt.Errorf("read migration file %s: %w", filename, err)
		}

		logger.Info("Running migration", zap.String("file", filename))
		err = WithTransaction(ctx, db, DefaultTxOptions(), func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, string(content)); err != nil {
				return err
			}
			if direction == Up {
				_, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version)
			} else {
				_, err = tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, version)
			}
			return err
		})
		if err != nil {
			return count, fmt.Errorf("execute migration %s: %w", filename, err)
		}
		count++
	}

	return count, nil
}

func migrationFiles(dir string, direction Direction) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migration directory: %w", err)
	}

	suffix := "." + string(direction) + ".sql"
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), suffix) {
			files = append(files, entry.Name())
		}
	}

	sort.Strings(files)
	if direction == Down {
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
	}

	return files, nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[version] = true
	}

	return applied, rows.Err()
}
