package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chrysochos/society/pkg/models"
)

// PurposeRecord is the persisted view of a purpose run.
type PurposeRecord struct {
	ID          string
	Description string
	Context     string
	State       string
	Progress    int
	Summary     string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// SavePurpose inserts or updates a purpose record.
func (db *DB) SavePurpose(rec *PurposeRecord) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		INSERT INTO purposes (id, description, context, state, progress, summary, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			progress = excluded.progress,
			summary = excluded.summary,
			completed_at = excluded.completed_at
	`, rec.ID, rec.Description, rec.Context, rec.State, rec.Progress, rec.Summary,
		formatTime(rec.CreatedAt), nullableTime(rec.CompletedAt))
	if err != nil {
		return fmt.Errorf("save purpose %s: %w", rec.ID, err)
	}
	return nil
}

// GetPurpose returns one purpose record, or nil if not found.
func (db *DB) GetPurpose(id string) (*PurposeRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	row := db.conn.QueryRow(`
		SELECT id, description, COALESCE(context, ''), state, progress, COALESCE(summary, ''), created_at, completed_at
		FROM purposes WHERE id = ?
	`, id)

	rec, err := scanPurpose(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// ListPurposes returns all purpose records, newest first.
func (db *DB) ListPurposes() ([]*PurposeRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT id, description, COALESCE(context, ''), state, progress, COALESCE(summary, ''), created_at, completed_at
		FROM purposes ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list purposes: %w", err)
	}
	defer rows.Close()

	var out []*PurposeRecord
	for rows.Next() {
		rec, err := scanPurpose(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPurpose(row scanner) (*PurposeRecord, error) {
	var rec PurposeRecord
	var createdAt string
	var completedAt sql.NullString
	if err := row.Scan(&rec.ID, &rec.Description, &rec.Context, &rec.State,
		&rec.Progress, &rec.Summary, &createdAt, &completedAt); err != nil {
		return nil, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	rec.CreatedAt = t
	rec.CompletedAt = parseNullableTime(completedAt)
	return &rec, nil
}

// SaveTaskNode inserts or updates a task node for a purpose.
func (db *DB) SaveTaskNode(purposeID string, node *models.TaskNode) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	deps, err := json.Marshal(node.Dependencies)
	if err != nil {
		return fmt.Errorf("marshal dependencies: %w", err)
	}

	_, err = db.conn.Exec(`
		INSERT INTO task_nodes (purpose_id, worker_id, task, context, dependencies, status, result, error, retries, dispatched_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(purpose_id, worker_id) DO UPDATE SET
			status = excluded.status,
			result = excluded.result,
			error = excluded.error,
			retries = excluded.retries,
			dispatched_at = excluded.dispatched_at,
			completed_at = excluded.completed_at
	`, purposeID, node.WorkerID, node.Task, node.Context, string(deps),
		string(node.Status), node.Result, node.Error, node.Retries,
		nullableTime(node.DispatchedAt), nullableTime(node.CompletedAt))
	if err != nil {
		return fmt.Errorf("save task node %s/%s: %w", purposeID, node.WorkerID, err)
	}
	return nil
}

// TaskNodesFor returns the task nodes recorded for a purpose.
func (db *DB) TaskNodesFor(purposeID string) ([]*models.TaskNode, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT worker_id, task, COALESCE(context, ''), COALESCE(dependencies, '[]'), status,
			COALESCE(result, ''), COALESCE(error, ''), retries, dispatched_at, completed_at
		FROM task_nodes WHERE purpose_id = ? ORDER BY worker_id
	`, purposeID)
	if err != nil {
		return nil, fmt.Errorf("list task nodes: %w", err)
	}
	defer rows.Close()

	var out []*models.TaskNode
	for rows.Next() {
		var node models.TaskNode
		var deps, status string
		var dispatchedAt, completedAt sql.NullString
		if err := rows.Scan(&node.WorkerID, &node.Task, &node.Context, &deps, &status,
			&node.Result, &node.Error, &node.Retries, &dispatchedAt, &completedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(deps), &node.Dependencies); err != nil {
			return nil, fmt.Errorf("unmarshal dependencies: %w", err)
		}
		node.Status = models.TaskStatus(status)
		node.DispatchedAt = parseNullableTime(dispatchedAt)
		node.CompletedAt = parseNullableTime(completedAt)
		out = append(out, &node)
	}
	return out, rows.Err()
}

// SaveEscalation inserts or updates an escalation record.
func (db *DB) SaveEscalation(purposeID string, esc *models.EscalationRequest) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	options, err := json.Marshal(esc.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}

	_, err = db.conn.Exec(`
		INSERT INTO escalations (id, purpose_id, priority, question, options, context, created_at, response, responded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			response = excluded.response,
			responded_at = excluded.responded_at
	`, esc.ID, purposeID, string(esc.Priority), esc.Question, string(options),
		esc.Context, formatTime(esc.Timestamp), esc.Response, nullableTime(esc.RespondedAt))
	if err != nil {
		return fmt.Errorf("save escalation %s: %w", esc.ID, err)
	}
	return nil
}

// EscalationsFor returns the escalations recorded for a purpose.
func (db *DB) EscalationsFor(purposeID string) ([]*models.EscalationRequest, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT id, priority, question, COALESCE(options, '[]'), COALESCE(context, ''),
			created_at, COALESCE(response, ''), responded_at
		FROM escalations WHERE purpose_id = ? ORDER BY created_at
	`, purposeID)
	if err != nil {
		return nil, fmt.Errorf("list escalations: %w", err)
	}
	defer rows.Close()

	var out []*models.EscalationRequest
	for rows.Next() {
		var esc models.EscalationRequest
		var priority, options, createdAt string
		var respondedAt sql.NullString
		if err := rows.Scan(&esc.ID, &priority, &esc.Question, &options, &esc.Context,
			&createdAt, &esc.Response, &respondedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(options), &esc.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options: %w", err)
		}
		esc.Priority = models.EscalationPriority(priority)
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		esc.Timestamp = t
		esc.RespondedAt = parseNullableTime(respondedAt)
		out = append(out, &esc)
	}
	return out, rows.Err()
}
