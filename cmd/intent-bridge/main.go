// Package main is the entrypoint for the intent-bridge.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/intent-bridge/internal/config"
	"github.com/morezero/intent-bridge/internal/server"
	"github.com/morezero/intent-bridge/pkg/journal"
)

const usage = `Usage: intent-bridge [command]
       intent-bridge serve                Start the bridge (NATS, invoke gateway, HTTP health and metrics).
       intent-bridge migrate up           Run journal migrations.
       intent-bridge migrate down         Roll back the newest migration.
       intent-bridge migrate status       Show migration status.
       intent-bridge ensure-db [name]     Create database if missing (default name: intent_bridge). Uses DATABASE_URL host/user.
       intent-bridge clear                Truncate the dispatch journal; schema is preserved.
       intent-bridge journal [requestId]  Print outcome counts and recent dispatches as JSON.

Commands:
  serve              (default) Start the intent bridge.
  migrate up         Run database migrations only.
  migrate down       Roll back the newest migration.
  migrate status     Show current migration status.
  ensure-db [name]   Create database on the same host as DATABASE_URL.
  clear              Truncate journal data; schema preserved.
  journal [id]       Dump the journal, optionally for one request id.

Environment: COMMS_URL, HOST_NAME, SERVICE_NAME, BRIDGE_CODEC, APPLICATION_DID,
DATABASE_URL (required for migrate, clear, journal, ensure-db), MIGRATION_PATH, HTTP_PORT, LOG_LEVEL.
`

const defaultDatabaseName = "intent_bridge"

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "migrate":
		if len(args) < 2 {
			log.Fatalf("intent-bridge migrate: require subcommand (up, down, status)")
		}
		sub := args[1]
		var err error
		switch sub {
		case "up":
			err = withPool(runMigrateUp)
		case "status":
			err = withPool(runMigrateStatus)
		case "down":
			err = withPool(runMigrateDown)
		default:
			log.Fatalf("intent-bridge migrate: unknown subcommand %q (use up, down, status)", sub)
		}
		if err != nil {
			log.Fatalf("intent-bridge migrate %s: %v", sub, err)
		}
		return
	case "clear":
		if err := withPool(func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
			return journal.ClearJournal(ctx, pool)
		}); err != nil {
			log.Fatalf("intent-bridge clear: %v", err)
		}
		return
	case "journal":
		requestID := ""
		if len(args) > 1 {
			requestID = args[1]
		}
		if err := withPool(func(ctx context.Context, _ *config.Config, pool *pgxpool.Pool) error {
			return runJournal(ctx, pool, requestID)
		}); err != nil {
			log.Fatalf("intent-bridge journal: %v", err)
		}
		return
	case "ensure-db":
		dbName := defaultDatabaseName
		if len(args) > 1 && args[1] != "" {
			dbName = args[1]
		}
		if err := runEnsureDB(dbName); err != nil {
			log.Fatalf("intent-bridge ensure-db: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("intent-bridge: %v", err)
	}
}

// withPool loads DB config, opens a pool for fn and closes it afterwards.
func withPool(fn func(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	server.ConfigureLogging(cfg.LogLevel)

	ctx := context.Background()
	pool, err := journal.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	return fn(ctx, cfg, pool)
}

func runMigrateUp(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
	migrationSQL, err := journal.LoadMigrationFiles(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	if err := journal.RunMigrations(ctx, pool, migrationSQL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func runMigrateStatus(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
	state, err := journal.CheckMigrations(ctx, pool, cfg.MigrationPath)
	if err != nil {
		return err
	}
	fmt.Println(state)
	return nil
}

func runMigrateDown(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) error {
	rolledBack, err := journal.MigrationDown(ctx, pool, cfg.MigrationPath)
	if err != nil {
		return err
	}
	if !rolledBack {
		fmt.Printf("No down migrations in %s; restore from a backup instead.\n", cfg.MigrationPath)
	}
	return nil
}

type journalDump struct {
	Outcomes   []journal.OutcomeCount `json:"outcomes"`
	Dispatches []journal.Dispatch     `json:"dispatches"`
}

func runJournal(ctx context.Context, pool *pgxpool.Pool, requestID string) error {
	repo := journal.NewRepository(pool)
	counts, err := repo.CountByOutcome(ctx)
	if err != nil {
		return err
	}
	rows, err := repo.ListDispatches(ctx, journal.ListDispatchesParams{RequestID: requestID})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(journalDump{Outcomes: counts, Dispatches: rows})
}

func runEnsureDB(dbName string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	targetURL, err := targetDatabaseURL(cfg.DatabaseURL, dbName)
	if err != nil {
		return err
	}
	if err := journal.EnsureDatabase(context.Background(), targetURL); err != nil {
		return err
	}
	fmt.Printf("Database %q is ready.\n", dbName)
	return nil
}

// targetDatabaseURL swaps the database name in databaseURL; the query (e.g.
// sslmode) is kept.
func targetDatabaseURL(databaseURL, dbName string) (string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	u.Path = "/" + dbName
	return u.String(), nil
}
