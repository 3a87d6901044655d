package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/loopmill/loopmill/internal/models"
)

// DecisionRecord is one journaled invocation decision.
type DecisionRecord struct {
	ID               string              `json:"id"`
	SessionKey       string              `json:"session_key"`
	SessionID        string              `json:"session_id"`
	ProjectPath      string              `json:"project_path"`
	Iteration        int                 `json:"iteration"`
	Decision         models.DecisionKind `json:"decision"`
	Rule             models.DecisionRule `json:"rule"`
	Reason           string              `json:"reason"`
	Adapter          string              `json:"adapter"`
	Confidence       float64             `json:"confidence"`
	RuntimeSeconds   float64             `json:"runtime_seconds"`
	WallClockSeconds float64             `json:"wall_clock_seconds"`
	CreatedAt        time.Time           `json:"created_at"`
}

// DecisionFilter narrows List queries.
type DecisionFilter struct {
	SessionKey string
	Decision   models.DecisionKind
	Limit      int
}

// DecisionRepository journals invocation decisions.
type DecisionRepository struct {
	db *DB
}

// NewDecisionRepository creates a decision repository.
func NewDecisionRepository(database *DB) *DecisionRepository {
	return &DecisionRepository{db: database}
}

// Create journals a decision record. A missing ID is assigned.
func (r *DecisionRepository) Create(ctx context.Context, record *DecisionRecord) error {
	if record == nil {
		return fmt.Errorf("decision record is required")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO decisions (
			id, session_key, session_id, project_path, iteration,
			decision, rule, reason, adapter, confidence,
			runtime_seconds, wall_clock_seconds, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.SessionKey, record.SessionID, record.ProjectPath, record.Iteration,
		string(record.Decision), string(record.Rule), record.Reason, record.Adapter, record.Confidence,
		record.RuntimeSeconds, record.WallClockSeconds, record.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// List returns journaled decisions, newest first.
func (r *DecisionRepository) List(ctx context.Context, filter DecisionFilter) ([]DecisionRecord, error) {
	query := strings.Builder{}
	query.WriteString(`
		SELECT id, session_key, session_id, project_path, iteration,
			decision, rule, reason, adapter, confidence,
			runtime_seconds, wall_clock_seconds, created_at
		FROM decisions`)

	var conditions []string
	var args []any
	if filter.SessionKey != "" {
		conditions = append(conditions, "session_key = ?")
		args = append(args, filter.SessionKey)
	}
	if filter.Decision != "" {
		conditions = append(conditions, "decision = ?")
		args = append(args, string(filter.Decision))
	}
	if len(conditions) > 0 {
		query.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	query.WriteString(" ORDER BY created_at DESC, id DESC")
	if filter.Limit > 0 {
		query.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var records []DecisionRecord
	for rows.Next() {
		record, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Latest returns the most recent decision for a session key, or nil.
func (r *DecisionRepository) Latest(ctx context.Context, sessionKey string) (*DecisionRecord, error) {
	records, err := r.List(ctx, DecisionFilter{SessionKey: sessionKey, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// CountBySession returns how many decisions are journaled for a session key.
func (r *DecisionRepository) CountBySession(ctx context.Context, sessionKey string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM decisions WHERE session_key = ?", sessionKey).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count decisions: %w", err)
	}
	return count, nil
}

func scanDecision(rows *sql.Rows) (DecisionRecord, error) {
	var record DecisionRecord
	var decision, rule, createdAt string
	err := rows.Scan(
		&record.ID, &record.SessionKey, &record.SessionID, &record.ProjectPath, &record.Iteration,
		&decision, &rule, &record.Reason, &record.Adapter, &record.Confidence,
		&record.RuntimeSeconds, &record.WallClockSeconds, &createdAt,
	)
	if err != nil {
		return record, fmt.Errorf("scan decision: %w", err)
	}
	record.Decision = models.DecisionKind(decision)
	record.Rule = models.DecisionRule(rule)
	if parsed, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		record.CreatedAt = parsed
	}
	return record, nil
}
