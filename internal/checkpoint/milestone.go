package checkpoint

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"claude-knowledge/internal/logging"
	"claude-knowledge/internal/store"
)

// CreateMilestone starts a new milestone at phase=planning, status=running.
func (s *Store) CreateMilestone(name string, githubNumber int, hasGithub bool) (Milestone, error) {
	if name == "" {
		return Milestone{}, fmt.Errorf("%w: milestone name is empty", store.ErrInvalidInput)
	}
	now := s.clock.Now()
	m := Milestone{
		ID:        "milestone_" + uuid.New().String()[:12],
		Name:      name,
		Phase:     MilestonePlanning,
		Status:    StatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if hasGithub {
		m.GithubNumber = githubNumber
		m.HasGithub = true
	}

	err := s.st.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO milestones (id, name, github_number, phase, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.Name, nullableInt(m.HasGithub, m.GithubNumber), string(m.Phase), string(m.Status), m.CreatedAt, m.UpdatedAt)
		return err
	})
	if err != nil {
		return Milestone{}, fmt.Errorf("create milestone: %w", err)
	}
	logging.Checkpoint("milestone created: id=%s name=%s", m.ID, name)
	return m, nil
}

// GetMilestone loads a milestone by id, or ErrNotFound.
func (s *Store) GetMilestone(id string) (Milestone, error) {
	row := s.st.DB().QueryRow(`SELECT id, name, github_number, phase, status, created_at, updated_at FROM milestones WHERE id = ?`, id)
	m, err := scanMilestone(row)
	if err == sql.ErrNoRows {
		return Milestone{}, fmt.Errorf("%w: milestone %s", store.ErrNotFound, id)
	}
	return m, err
}

// FindMilestones searches by name substring.
func (s *Store) FindMilestones(namePattern string) ([]Milestone, error) {
	rows, err := s.st.DB().Query(`SELECT id, name, github_number, phase, status, created_at, updated_at
		FROM milestones WHERE name LIKE ? ORDER BY updated_at DESC`, "%"+namePattern+"%")
	if err != nil {
		return nil, fmt.Errorf("find milestones: %w", err)
	}
	defer rows.Close()
	return scanMilestones(rows)
}

// ListActiveMilestones returns milestones with status running or paused.
func (s *Store) ListActiveMilestones() ([]Milestone, error) {
	rows, err := s.st.DB().Query(`SELECT id, name, github_number, phase, status, created_at, updated_at
		FROM milestones WHERE status IN (?, ?) ORDER BY updated_at DESC`, string(StatusRunning), string(StatusPaused))
	if err != nil {
		return nil, fmt.Errorf("list active milestones: %w", err)
	}
	defer rows.Close()
	return scanMilestones(rows)
}

// SetMilestonePhase moves a milestone to any allowed phase.
func (s *Store) SetMilestonePhase(id string, phase MilestonePhase) error {
	if !validMilestonePhases[phase] {
		return fmt.Errorf("%w: unknown milestone phase %q", store.ErrInvalidInput, phase)
	}
	now := s.clock.Now()
	return s.st.Transaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE milestones SET phase = ?, updated_at = ? WHERE id = ?`, string(phase), now, id)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return fmt.Errorf("%w: milestone %s", store.ErrNotFound, id)
		}
		return nil
	})
}

// SetMilestoneStatus moves a milestone's status, refusing transitions out
// of a terminal state.
func (s *Store) SetMilestoneStatus(id string, status Status) error {
	if !validStatuses[status] {
		return fmt.Errorf("%w: unknown milestone status %q", store.ErrInvalidInput, status)
	}
	m, err := s.GetMilestone(id)
	if err != nil {
		return err
	}
	if isTerminal(m.Status) {
		return fmt.Errorf("%w: milestone %s is terminal (%s), cannot move to %s", store.ErrInvalidInput, id, m.Status, status)
	}
	now := s.clock.Now()
	return s.st.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE milestones SET status = ?, updated_at = ? WHERE id = ?`, string(status), now, id)
		return err
	})
}

// DeleteMilestone removes a milestone, its baseline, and its workflow links.
func (s *Store) DeleteMilestone(id string) error {
	return s.st.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM milestone_baselines WHERE milestone_id = ?`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM milestone_workflows WHERE milestone_id = ?`, id); err != nil {
			return err
		}
		res, err := tx.Exec(`DELETE FROM milestones WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return fmt.Errorf("%w: milestone %s", store.ErrNotFound, id)
		}
		return nil
	})
}

// SaveBaseline records the one-shot lint/typecheck snapshot for a
// milestone, replacing any prior baseline.
func (s *Store) SaveBaseline(b Baseline) error {
	b.CapturedAt = s.clock.Now()
	return s.st.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT OR REPLACE INTO milestone_baselines
			(milestone_id, lint_exit, lint_warn, lint_err, tc_exit, tc_err, captured_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			b.MilestoneID, b.LintExit, b.LintWarn, b.LintErr, b.TCExit, b.TCErr, b.CapturedAt)
		return err
	})
}

// GetBaseline loads a milestone's baseline, or ErrNotFound.
func (s *Store) GetBaseline(milestoneID string) (Baseline, error) {
	var b Baseline
	err := s.st.DB().QueryRow(`SELECT milestone_id, lint_exit, lint_warn, lint_err, tc_exit, tc_err, captured_at
		FROM milestone_baselines WHERE milestone_id = ?`, milestoneID).
		Scan(&b.MilestoneID, &b.LintExit, &b.LintWarn, &b.LintErr, &b.TCExit, &b.TCErr, &b.CapturedAt)
	if err == sql.ErrNoRows {
		return Baseline{}, fmt.Errorf("%w: baseline for milestone %s", store.ErrNotFound, milestoneID)
	}
	return b, err
}

func scanMilestone(row interface{ Scan(dest ...any) error }) (Milestone, error) {
	var m Milestone
	var github sql.NullInt64
	var phase, status string
	if err := row.Scan(&m.ID, &m.Name, &github, &phase, &status, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return m, err
	}
	m.HasGithub = github.Valid
	m.GithubNumber = int(github.Int64)
	m.Phase = MilestonePhase(phase)
	m.Status = Status(status)
	return m, nil
}

func scanMilestones(rows *sql.Rows) ([]Milestone, error) {
	var out []Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
