//go:build integration

package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/intent-bridge/pkg/intent"
	"github.com/morezero/intent-bridge/pkg/response"
)

const journalIntegrationPrefix = "journal:integration_test"

// testDBEnv returns the database URL for integration tests; skips the test if not set.
func testDBEnv(t *testing.T) string {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("journal:integration_test - DATABASE_URL not set, skipping")
	}
	return url
}

func setupIntegrationPool(t *testing.T) (context.Context, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	pool, err := NewPool(ctx, testDBEnv(t))
	if err != nil {
		t.Fatalf("%s - NewPool failed: %v", journalIntegrationPrefix, err)
	}
	t.Cleanup(pool.Close)

	migrationSQL, err := LoadMigrationFiles(filepath.Join("..", "..", "migrations"))
	if err != nil {
		t.Fatalf("%s - LoadMigrationFiles failed: %v", journalIntegrationPrefix, err)
	}
	if err := RunMigrations(ctx, pool, migrationSQL); err != nil {
		t.Fatalf("%s - RunMigrations failed: %v", journalIntegrationPrefix, err)
	}
	if err := ClearJournal(ctx, pool); err != nil {
		t.Fatalf("%s - ClearJournal failed: %v", journalIntegrationPrefix, err)
	}
	return ctx, pool
}

func TestIntegration_ObserverWritesRows(t *testing.T) {
	ctx, pool := setupIntegrationPool(t)
	repo := NewRepository(pool)
	obs := NewObserver(NewObserverParams{Store: repo})

	obs.ObserveDispatch(ctx, &intent.Entity{
		ID:              "req-1",
		Type:            intent.TypeImportCredentials,
		RequestPayload:  intent.RequestPayload{Caller: "did:elastos:app", RequestID: "req-1"},
		ResponsePayload: []map[string]string{{"id": "url1"}},
	}, response.OutcomeDelivered, nil)

	rows, err := repo.ListDispatches(ctx, ListDispatchesParams{RequestID: "req-1"})
	if err != nil {
		t.Fatalf("%s - ListDispatches failed: %v", journalIntegrationPrefix, err)
	}
	if len(rows) != 1 {
		t.Fatalf("%s - expected 1 row, got %d", journalIntegrationPrefix, len(rows))
	}
	if rows[0].Outcome != "delivered" || rows[0].IntentType != "IMPORT_CREDENTIALS" {
		t.Errorf("%s - unexpected row %+v", journalIntegrationPrefix, rows[0])
	}

	counts, err := repo.CountByOutcome(ctx)
	if err != nil {
		t.Fatalf("%s - CountByOutcome failed: %v", journalIntegrationPrefix, err)
	}
	if len(counts) != 1 || counts[0].Count != 1 {
		t.Errorf("%s - unexpected counts %+v", journalIntegrationPrefix, counts)
	}
}

func TestIntegration_MigrationDownAndUp(t *testing.T) {
	ctx, pool := setupIntegrationPool(t)
	migrationPath := filepath.Join("..", "..", "migrations")

	rolledBack, err := MigrationDown(ctx, pool, migrationPath)
	if err != nil {
		t.Fatalf("%s - MigrationDown failed: %v", journalIntegrationPrefix, err)
	}
	if !rolledBack {
		t.Errorf("%s - expected a down script to run", journalIntegrationPrefix)
	}
	var exists bool
	if err := pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, TableName).Scan(&exists); err != nil {
		t.Fatalf("%s - schema check failed: %v", journalIntegrationPrefix, err)
	}
	if exists {
		t.Errorf("%s - expected %s to be dropped", journalIntegrationPrefix, TableName)
	}

	migrationSQL, _ := LoadMigrationFiles(migrationPath)
	if err := RunMigrations(ctx, pool, migrationSQL); err != nil {
		t.Fatalf("%s - RunMigrations failed: %v", journalIntegrationPrefix, err)
	}
	state, err := CheckMigrations(ctx, pool, migrationPath)
	if err != nil {
		t.Fatalf("%s - CheckMigrations failed: %v", journalIntegrationPrefix, err)
	}
	if !state.TablePresent || state.Files != 1 {
		t.Errorf("%s - unexpected state %+v", journalIntegrationPrefix, state)
	}
}
