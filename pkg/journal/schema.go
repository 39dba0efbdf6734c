package journal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaLogPrefix = "journal:schema"

// MigrationState describes the journal schema against the migration files on disk.
type MigrationState struct {
	TablePresent bool
	Files        int
	Path         string
}

func (s MigrationState) String() string {
	if s.TablePresent {
		return fmt.Sprintf("journal schema up: %s exists (%d migration files in %s)", TableName, s.Files, s.Path)
	}
	return fmt.Sprintf("journal schema missing: %s not found, %d migration files pending in %s", TableName, s.Files, s.Path)
}

// RunMigrations applies the up scripts in order inside one transaction, so a
// failing script leaves the schema untouched.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, migrationFiles []string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s - begin: %w", schemaLogPrefix, err)
	}
	defer tx.Rollback(ctx)

	for i, sql := range migrationFiles {
		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("%s - script %d of %d: %w", schemaLogPrefix, i+1, len(migrationFiles), err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s - commit: %w", schemaLogPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - Applied %d migration scripts", schemaLogPrefix, len(migrationFiles)))
	return nil
}

// CheckMigrations reports whether the journal table exists.
func CheckMigrations(ctx context.Context, pool *pgxpool.Pool, migrationPath string) (*MigrationState, error) {
	files, err := LoadMigrationFiles(migrationPath)
	if err != nil {
		return nil, err
	}
	state := &MigrationState{Files: len(files), Path: migrationPath}
	if err := pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, TableName).Scan(&state.TablePresent); err != nil {
		return nil, fmt.Errorf("%s - look up %s: %w", schemaLogPrefix, TableName, err)
	}
	return state, nil
}

// MigrationDown runs the newest down script in migrationPath. It reports false
// when there is none.
func MigrationDown(ctx context.Context, pool *pgxpool.Pool, migrationPath string) (bool, error) {
	downs, err := LoadDownMigrationFiles(migrationPath)
	if err != nil {
		return false, err
	}
	if len(downs) == 0 {
		slog.Warn(fmt.Sprintf("%s - no down scripts in %s", schemaLogPrefix, migrationPath))
		return false, nil
	}
	if _, err := pool.Exec(ctx, downs[0]); err != nil {
		return false, fmt.Errorf("%s - down script: %w", schemaLogPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - Rolled back newest migration", schemaLogPrefix))
	return true, nil
}
