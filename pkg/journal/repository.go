package journal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoLogPrefix = "journal:repository"

// Repository provides database access to the dispatch journal.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertDispatchParams holds parameters for InsertDispatch.
type InsertDispatchParams struct {
	RequestID  string
	IntentType string
	Caller     *string
	Outcome    string
	Error      *string
	// Payload is JSON; nil stores SQL NULL.
	Payload []byte
}

// InsertDispatch appends one dispatch record.
func (r *Repository) InsertDispatch(ctx context.Context, params InsertDispatchParams) (*Dispatch, error) {
	slog.Debug(fmt.Sprintf("%s - InsertDispatch id=%s outcome=%s", repoLogPrefix, params.RequestID, params.Outcome))

	row := r.pool.QueryRow(ctx,
		`INSERT INTO intent_dispatches (request_id, intent_type, caller, outcome, error, payload)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, request_id, intent_type, caller, outcome, error, payload, created`,
		params.RequestID, params.IntentType, params.Caller, params.Outcome, params.Error, params.Payload)

	return scanDispatch(row)
}

// ListDispatchesParams holds parameters for ListDispatches.
type ListDispatchesParams struct {
	// RequestID filters by correlation id when set.
	RequestID string
	// Limit defaults to 50.
	Limit int
}

// ListDispatches returns journal rows, newest first.
func (r *Repository) ListDispatches(ctx context.Context, params ListDispatchesParams) ([]Dispatch, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}

	var rows pgx.Rows
	var err error
	if params.RequestID != "" {
		rows, err = r.pool.Query(ctx,
			`SELECT id, request_id, intent_type, caller, outcome, error, payload, created
			 FROM intent_dispatches
			 WHERE request_id = $1
			 ORDER BY created DESC
			 LIMIT $2`, params.RequestID, limit)
	} else {
		rows, err = r.pool.Query(ctx,
			`SELECT id, request_id, intent_type, caller, outcome, error, payload, created
			 FROM intent_dispatches
			 ORDER BY created DESC
			 LIMIT $1`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("%s - list dispatches: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	var out []Dispatch
	for rows.Next() {
		d, err := scanDispatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s - list dispatches rows: %w", repoLogPrefix, err)
	}
	return out, nil
}

// CountByOutcome returns the number of journal rows per outcome.
func (r *Repository) CountByOutcome(ctx context.Context) ([]OutcomeCount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT outcome, COUNT(*) FROM intent_dispatches GROUP BY outcome ORDER BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("%s - count by outcome: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	var out []OutcomeCount
	for rows.Next() {
		var c OutcomeCount
		if err := rows.Scan(&c.Outcome, &c.Count); err != nil {
			return nil, fmt.Errorf("%s - scan outcome count: %w", repoLogPrefix, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanDispatch(row pgx.Row) (*Dispatch, error) {
	var d Dispatch
	err := row.Scan(&d.ID, &d.RequestID, &d.IntentType, &d.Caller, &d.Outcome, &d.Error, &d.Payload, &d.Created)
	if err != nil {
		return nil, fmt.Errorf("%s - scan dispatch: %w", repoLogPrefix, err)
	}
	return &d, nil
}
