package checkpoint

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"claude-knowledge/internal/logging"
	"claude-knowledge/internal/store"
)

// Store manages Workflow, Milestone, and SessionMetric state. clock is
// injected so tests can pin CreatedAt/UpdatedAt to a fixed time.
type Store struct {
	st    *store.Store
	clock Clock
}

// New wraps a store handle with RealClock. Use NewWithClock in tests.
func New(st *store.Store) *Store {
	return &Store{st: st, clock: RealClock{}}
}

// NewWithClock wraps a store handle with an injected Clock.
func NewWithClock(st *store.Store, clock Clock) *Store {
	return &Store{st: st, clock: clock}
}

// CreateWorkflow starts a new workflow at phase=research, status=running.
func (s *Store) CreateWorkflow(issueNumber int, hasIssue bool, branch, worktree string) (Workflow, error) {
	timer := logging.StartTimer(logging.CategoryCheckpoint, "CreateWorkflow")
	defer timer.Stop()

	now := s.clock.Now()
	wf := Workflow{
		ID:         "workflow_" + uuid.New().String()[:12],
		Branch:     branch,
		Worktree:   worktree,
		Phase:      PhaseResearch,
		Status:     StatusRunning,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if hasIssue {
		wf.IssueNumber = issueNumber
		wf.HasIssue = true
	}

	err := s.st.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO workflows (id, issue_number, branch, worktree, phase, status, retry_count, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
			wf.ID, nullableInt(wf.HasIssue, wf.IssueNumber), nullableStr(wf.Branch), nullableStr(wf.Worktree),
			string(wf.Phase), string(wf.Status), wf.CreatedAt, wf.UpdatedAt)
		return err
	})
	if err != nil {
		return Workflow{}, fmt.Errorf("create workflow: %w", err)
	}
	logging.Checkpoint("workflow created: id=%s branch=%s", wf.ID, branch)
	return wf, nil
}

// GetWorkflow loads a workflow by id, or ErrNotFound.
func (s *Store) GetWorkflow(id string) (Workflow, error) {
	row := s.st.DB().QueryRow(`SELECT id, issue_number, branch, worktree, phase, status, retry_count, created_at, updated_at
		FROM workflows WHERE id = ?`, id)
	wf, err := scanWorkflow(row)
	if err == sql.ErrNoRows {
		return Workflow{}, fmt.Errorf("%w: workflow %s", store.ErrNotFound, id)
	}
	return wf, err
}

// FindWorkflows searches workflows by optional branch substring and/or
// issue number.
func (s *Store) FindWorkflows(branchPattern string, issueNumber int, hasIssue bool) ([]Workflow, error) {
	query := `SELECT id, issue_number, branch, worktree, phase, status, retry_count, created_at, updated_at FROM workflows WHERE 1=1`
	var args []any
	if branchPattern != "" {
		query += ` AND branch LIKE ?`
		args = append(args, "%"+branchPattern+"%")
	}
	if hasIssue {
		query += ` AND issue_number = ?`
		args = append(args, issueNumber)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := s.st.DB().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("find workflows: %w", err)
	}
	defer rows.Close()
	return scanWorkflows(rows)
}

// ListActiveWorkflows returns every workflow with status running or paused.
func (s *Store) ListActiveWorkflows() ([]Workflow, error) {
	rows, err := s.st.DB().Query(`SELECT id, issue_number, branch, worktree, phase, status, retry_count, created_at, updated_at
		FROM workflows WHERE status IN (?, ?) ORDER BY updated_at DESC`, string(StatusRunning), string(StatusPaused))
	if err != nil {
		return nil, fmt.Errorf("list active workflows: %w", err)
	}
	defer rows.Close()
	return scanWorkflows(rows)
}

// ListWorkflows returns every workflow, most recently updated first.
func (s *Store) ListWorkflows() ([]Workflow, error) {
	rows, err := s.st.DB().Query(`SELECT id, issue_number, branch, worktree, phase, status, retry_count, created_at, updated_at
		FROM workflows ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()
	return scanWorkflows(rows)
}

// SetPhase moves a workflow to any allowed phase; phases are not ordered,
// so this never rejects a transition between two valid phases.
func (s *Store) SetPhase(id string, phase WorkflowPhase) error {
	if !validWorkflowPhases[phase] {
		return fmt.Errorf("%w: unknown workflow phase %q", store.ErrInvalidInput, phase)
	}
	return s.touch(id, func(tx *sql.Tx, now interface{}) error {
		_, err := tx.Exec(`UPDATE workflows SET phase = ?, updated_at = ? WHERE id = ?`, string(phase), now, id)
		return err
	})
}

// SetStatus moves a workflow's status, refusing any transition out of a
// terminal state (completed/failed).
func (s *Store) SetStatus(id string, status Status) error {
	if !validStatuses[status] {
		return fmt.Errorf("%w: unknown workflow status %q", store.ErrInvalidInput, status)
	}
	wf, err := s.GetWorkflow(id)
	if err != nil {
		return err
	}
	if isTerminal(wf.Status) {
		return fmt.Errorf("%w: workflow %s is terminal (%s), cannot move to %s", store.ErrInvalidInput, id, wf.Status, status)
	}
	return s.touch(id, func(tx *sql.Tx, now interface{}) error {
		_, err := tx.Exec(`UPDATE workflows SET status = ?, updated_at = ? WHERE id = ?`, string(status), now, id)
		return err
	})
}

// IncrementRetry bumps a workflow's retry counter.
func (s *Store) IncrementRetry(id string) error {
	return s.touch(id, func(tx *sql.Tx, now interface{}) error {
		res, err := tx.Exec(`UPDATE workflows SET retry_count = retry_count + 1, updated_at = ? WHERE id = ?`, now, id)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return fmt.Errorf("%w: workflow %s", store.ErrNotFound, id)
		}
		return nil
	})
}

// DeleteWorkflow removes a workflow and its action/commit logs.
func (s *Store) DeleteWorkflow(id string) error {
	return s.st.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM workflow_actions WHERE workflow_id = ?`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM workflow_commits WHERE workflow_id = ?`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM milestone_workflows WHERE workflow_id = ?`, id); err != nil {
			return err
		}
		res, err := tx.Exec(`DELETE FROM workflows WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return fmt.Errorf("%w: workflow %s", store.ErrNotFound, id)
		}
		return nil
	})
}

// LogAction appends an entry to a workflow's ordered action log.
func (s *Store) LogAction(workflowID, action string, result ActionResult, metadata map[string]any) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal action metadata: %w", err)
	}
	now := s.clock.Now()
	return s.st.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO workflow_actions (workflow_id, action, result, metadata, created_at) VALUES (?, ?, ?, ?, ?)`,
			workflowID, action, string(result), string(metaJSON), now)
		return err
	})
}

// LogCommit appends an entry to a workflow's ordered commit log.
func (s *Store) LogCommit(workflowID, sha, message string) error {
	now := s.clock.Now()
	return s.st.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO workflow_commits (workflow_id, sha, message, created_at) VALUES (?, ?, ?, ?)`,
			workflowID, sha, message, now)
		return err
	})
}

// ActionLog returns a workflow's actions, oldest first.
func (s *Store) ActionLog(workflowID string) ([]Action, error) {
	rows, err := s.st.DB().Query(`SELECT id, workflow_id, action, result, metadata, created_at FROM workflow_actions
		WHERE workflow_id = ? ORDER BY id ASC`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("action log: %w", err)
	}
	defer rows.Close()

	var out []Action
	for rows.Next() {
		var a Action
		var result string
		var meta sql.NullString
		if err := rows.Scan(&a.ID, &a.WorkflowID, &a.Action, &result, &meta, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Result = ActionResult(result)
		a.Metadata = meta.String
		out = append(out, a)
	}
	return out, rows.Err()
}

// CommitLog returns a workflow's commits, oldest first.
func (s *Store) CommitLog(workflowID string) ([]Commit, error) {
	rows, err := s.st.DB().Query(`SELECT id, workflow_id, sha, message, created_at FROM workflow_commits
		WHERE workflow_id = ? ORDER BY id ASC`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("commit log: %w", err)
	}
	defer rows.Close()

	var out []Commit
	for rows.Next() {
		var c Commit
		var msg sql.NullString
		if err := rows.Scan(&c.ID, &c.WorkflowID, &c.SHA, &msg, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Message = msg.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// LinkWorkflow associates a workflow with a milestone, with an optional
// wave ordering.
func (s *Store) LinkWorkflow(milestoneID, workflowID string, wave int, hasWave bool) error {
	return s.st.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT OR REPLACE INTO milestone_workflows (milestone_id, workflow_id, wave) VALUES (?, ?, ?)`,
			milestoneID, workflowID, nullableInt(hasWave, wave))
		return err
	})
}

// CleanupStaleWorkflows marks every workflow whose status is running or
// paused and whose updated_at predates now-hoursThreshold as failed, in
// one transaction, and returns the count affected.
func (s *Store) CleanupStaleWorkflows(hoursThreshold int) (int, error) {
	timer := logging.StartTimer(logging.CategoryCheckpoint, "CleanupStaleWorkflows")
	defer timer.Stop()

	cutoff := s.clock.Now().Add(-time.Duration(hoursThreshold) * time.Hour)
	var affected int
	err := s.st.Transaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE workflows SET status = ?, updated_at = ? WHERE status IN (?, ?) AND updated_at < ?`,
			string(StatusFailed), s.clock.Now(), string(StatusRunning), string(StatusPaused), cutoff)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		affected = int(n)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("cleanup stale workflows: %w", err)
	}
	if affected > 0 {
		logging.CheckpointWarn("cleaned up %d stale workflow(s) older than %dh", affected, hoursThreshold)
	}
	return affected, nil
}

func (s *Store) touch(id string, fn func(tx *sql.Tx, now interface{}) error) error {
	now := s.clock.Now()
	return s.st.Transaction(func(tx *sql.Tx) error {
		return fn(tx, now)
	})
}

func scanWorkflow(row interface{ Scan(dest ...any) error }) (Workflow, error) {
	var wf Workflow
	var issue sql.NullInt64
	var branch, worktree sql.NullString
	var phase, status string
	if err := row.Scan(&wf.ID, &issue, &branch, &worktree, &phase, &status, &wf.RetryCount, &wf.CreatedAt, &wf.UpdatedAt); err != nil {
		return wf, err
	}
	wf.HasIssue = issue.Valid
	wf.IssueNumber = int(issue.Int64)
	wf.Branch = branch.String
	wf.Worktree = worktree.String
	wf.Phase = WorkflowPhase(phase)
	wf.Status = Status(status)
	return wf, nil
}

func scanWorkflows(rows *sql.Rows) ([]Workflow, error) {
	var out []Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, wf)
	}
	return out, rows.Err()
}

func nullableInt(has bool, v int) sql.NullInt64 {
	if !has {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(v), Valid: true}
}

func nullableStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
