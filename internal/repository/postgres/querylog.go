package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/knoguchi/lexrag/internal/repository"
)

// QueryLogRepo implements repository.QueryLogRepository
type QueryLogRepo struct {
	db *DB
}

// NewQueryLogRepo creates a new query log repository
func NewQueryLogRepo(db *DB) *QueryLogRepo {
	return &QueryLogRepo{db: db}
}

// Create inserts entry.
func (r *QueryLogRepo) Create(ctx context.Context, entry *repository.QueryLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO query_logs (id, session_id, question, tool, latency_ms, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		entry.ID, entry.SessionID, entry.Question, entry.Tool,
		entry.Latency.Milliseconds(), entry.Error, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create query log: %w", err)
	}
	return nil
}

// List returns entries newest first.
func (r *QueryLogRepo) List(ctx context.Context, limit, offset int) ([]*repository.QueryLog, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM query_logs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count query logs: %w", err)
	}

	if limit <= 0 {
		limit = total
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, session_id, question, tool, latency_ms, error, created_at
		FROM query_logs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, max(offset, 0))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list query logs: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*repository.QueryLog, error) {
		var (
			e         repository.QueryLog
			latencyMS int64
		)
		if err := row.Scan(&e.ID, &e.SessionID, &e.Question, &e.Tool, &latencyMS, &e.Error, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Latency = time.Duration(latencyMS) * time.Millisecond
		return &e, nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan query logs: %w", err)
	}
	return entries, total, nil
}

var _ repository.QueryLogRepository = (*QueryLogRepo)(nil)
