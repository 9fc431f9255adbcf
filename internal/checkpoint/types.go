// Package checkpoint implements the workflow and milestone state machines,
// their action/commit logs, session metrics, and the stale-workflow
// cleanup sweep. Workflows correlate a session-start hook with its
// session-end counterpart through a per-user session-metadata file (see
// session.go), since the two halves of a session run in different
// processes.
package checkpoint

import "time"

// Clock returns the current time. Injected so tests can pin it; the
// default is RealClock.
type Clock interface {
	Now() time.Time
}

// RealClock returns time.Now().UTC().
type RealClock struct{}

// Now implements Clock.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// WorkflowPhase is one of the phases a Workflow can be in.
type WorkflowPhase string

const (
	PhaseResearch  WorkflowPhase = "research"
	PhaseImplement WorkflowPhase = "implement"
	PhaseReview    WorkflowPhase = "review"
	PhaseFinalize  WorkflowPhase = "finalize"
	PhasePlanning  WorkflowPhase = "planning"
	PhaseExecute   WorkflowPhase = "execute"
	PhaseMerge     WorkflowPhase = "merge"
	PhaseCleanup   WorkflowPhase = "cleanup"
)

var validWorkflowPhases = map[WorkflowPhase]bool{
	PhaseResearch: true, PhaseImplement: true, PhaseReview: true, PhaseFinalize: true,
	PhasePlanning: true, PhaseExecute: true, PhaseMerge: true, PhaseCleanup: true,
}

// MilestonePhase is one of the phases a Milestone can be in.
type MilestonePhase string

const (
	MilestonePlanning MilestonePhase = "planning"
	MilestoneExecute  MilestonePhase = "execute"
	MilestoneReview   MilestonePhase = "review"
	MilestoneMerge    MilestonePhase = "merge"
	MilestoneCleanup  MilestonePhase = "cleanup"
)

var validMilestonePhases = map[MilestonePhase]bool{
	MilestonePlanning: true, MilestoneExecute: true, MilestoneReview: true, MilestoneMerge: true, MilestoneCleanup: true,
}

// Status is the run-state shared by Workflow and Milestone. A workflow
// transitions monotonically: running -> (paused -> running)* ->
// completed|failed. completed and failed are terminal.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var validStatuses = map[Status]bool{
	StatusRunning: true, StatusPaused: true, StatusCompleted: true, StatusFailed: true,
}

func isTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusFailed
}

// ActionResult is the outcome recorded for a logged workflow action.
type ActionResult string

const (
	ActionSuccess ActionResult = "success"
	ActionFailed  ActionResult = "failed"
	ActionPending ActionResult = "pending"
)

// Workflow is a durable state record for one unit of engineering work.
type Workflow struct {
	ID          string
	IssueNumber int
	HasIssue    bool
	Branch      string
	Worktree    string
	Phase       WorkflowPhase
	Status      Status
	RetryCount  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Action is one entry in a workflow's ordered action log.
type Action struct {
	ID         int64
	WorkflowID string
	Action     string
	Result     ActionResult
	Metadata   string
	CreatedAt  time.Time
}

// Commit is one entry in a workflow's ordered commit log.
type Commit struct {
	ID         int64
	WorkflowID string
	SHA        string
	Message    string
	CreatedAt  time.Time
}

// Milestone groups one or more Workflows under a shared objective, with a
// one-shot Baseline captured at the start of work.
type Milestone struct {
	ID           string
	Name         string
	GithubNumber int
	HasGithub    bool
	Phase        MilestonePhase
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Baseline is the lint/typecheck snapshot captured once per milestone so
// later progress can be measured against it.
type Baseline struct {
	MilestoneID string
	LintExit    int
	LintWarn    int
	LintErr     int
	TCExit      int
	TCErr       int
	CapturedAt  time.Time
}

// MilestoneWorkflowLink associates a Workflow with a Milestone, with an
// optional wave ordering.
type MilestoneWorkflowLink struct {
	MilestoneID string
	WorkflowID  string
	Wave        int
	HasWave     bool
}

// SessionMetric records per-session bookkeeping used by `metrics list` /
// `metrics summary`.
type SessionMetric struct {
	SessionID          string
	IssueNumber        int
	HasIssue           bool
	FilesRead          int
	Compacted          bool
	DurationMinutes    float64
	HasDuration        bool
	ReviewFindings     int
	LearningsInjected  int
	LearningsCaptured  int
	CreatedAt          time.Time
}
