package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/knoguchi/lexrag/internal/repository"
)

// QueryLogRepo implements repository.QueryLogRepository on SQLite.
type QueryLogRepo struct {
	db *sql.DB
}

// NewQueryLogRepo creates a new QueryLogRepo.
func NewQueryLogRepo(db *sql.DB) *QueryLogRepo {
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
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO query_logs (id, session_id, question, tool, latency_ms, error, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID.String(), entry.SessionID, entry.Question, entry.Tool,
		entry.Latency.Milliseconds(), entry.Error, formatTime(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create query log: %w", err)
	}
	return nil
}

// List returns entries newest first.
func (r *QueryLogRepo) List(ctx context.Context, limit, offset int) ([]*repository.QueryLog, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM query_logs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count query logs: %w", err)
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, question, tool, latency_ms, error, created_at
		FROM query_logs ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, max(offset, 0))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list query logs: %w", err)
	}
	defer rows.Close()

	var entries []*repository.QueryLog
	for rows.Next() {
		e, err := scanQueryLog(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func scanQueryLog(rows *sql.Rows) (*repository.QueryLog, error) {
	var (
		e           repository.QueryLog
		id, created string
		latencyMS   int64
	)
	if err := rows.Scan(&id, &e.SessionID, &e.Question, &e.Tool, &latencyMS, &e.Error, &created); err != nil {
		return nil, fmt.Errorf("failed to scan query log: %w", err)
	}
	var err error
	if e.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("bad query log id %q: %w", id, err)
	}
	if e.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("bad created_at: %w", err)
	}
	e.Latency = time.Duration(latencyMS) * time.Millisecond
	return &e, nil
}

var _ repository.QueryLogRepository = (*QueryLogRepo)(nil)
