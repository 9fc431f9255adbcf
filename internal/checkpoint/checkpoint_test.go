package checkpoint

import (
	"path/filepath"
	"testing"
	"time"

	"claude-knowledge/internal/store"
)

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }

func openCheckpointTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checkpoint.db")
	st, err := store.Open(path, store.Options{BusyTimeoutMs: 2000})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestCreateWorkflowStartsAtResearchRunning(t *testing.T) {
	st := openCheckpointTestStore(t)
	s := New(st)

	wf, err := s.CreateWorkflow(42, true, "feature/x", "/tmp/wt")
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}
	if wf.Phase != PhaseResearch || wf.Status != StatusRunning {
		t.Errorf("expected research/running, got %s/%s", wf.Phase, wf.Status)
	}
	if !wf.HasIssue || wf.IssueNumber != 42 {
		t.Errorf("expected issue 42, got hasIssue=%v number=%d", wf.HasIssue, wf.IssueNumber)
	}

	got, err := s.GetWorkflow(wf.ID)
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	if got.Branch != "feature/x" {
		t.Errorf("expected branch feature/x, got %s", got.Branch)
	}
}

func TestSetStatusRefusesTransitionOutOfTerminalState(t *testing.T) {
	st := openCheckpointTestStore(t)
	s := New(st)

	wf, err := s.CreateWorkflow(0, false, "b", "")
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}
	if err := s.SetStatus(wf.ID, StatusCompleted); err != nil {
		t.Fatalf("SetStatus completed: %v", err)
	}
	if err := s.SetStatus(wf.ID, StatusRunning); err == nil {
		t.Fatal("expected an error reopening a completed workflow")
	}
}

func TestSetStatusRejectsUnknownStatus(t *testing.T) {
	st := openCheckpointTestStore(t)
	s := New(st)

	wf, err := s.CreateWorkflow(0, false, "b", "")
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}
	if err := s.SetStatus(wf.ID, Status("bogus")); err == nil {
		t.Fatal("expected an error for an unknown status")
	}
}

func TestListActiveWorkflowsExcludesTerminal(t *testing.T) {
	st := openCheckpointTestStore(t)
	s := New(st)

	running, err := s.CreateWorkflow(0, false, "running-one", "")
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}
	done, err := s.CreateWorkflow(0, false, "done-one", "")
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}
	if err := s.SetStatus(done.ID, StatusCompleted); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	active, err := s.ListActiveWorkflows()
	if err != nil {
		t.Fatalf("ListActiveWorkflows: %v", err)
	}
	if len(active) != 1 || active[0].ID != running.ID {
		t.Fatalf("expected only %s active, got %+v", running.ID, active)
	}
}

func TestCleanupStaleWorkflowsMarksOldRunningAsFailed(t *testing.T) {
	st := openCheckpointTestStore(t)
	now := time.Now().UTC()
	clock := fixedClock{t: now.Add(-48 * time.Hour)}
	s := NewWithClock(st, clock)

	wf, err := s.CreateWorkflow(0, false, "stale", "")
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	s2 := NewWithClock(st, fixedClock{t: now})
	n, err := s2.CleanupStaleWorkflows(24)
	if err != nil {
		t.Fatalf("CleanupStaleWorkflows: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 stale workflow cleaned, got %d", n)
	}

	got, err := s2.GetWorkflow(wf.ID)
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	if got.Status != StatusFailed {
		t.Errorf("expected stale workflow marked failed, got %s", got.Status)
	}
}

func TestLogActionAndLogCommitOrderedOldestFirst(t *testing.T) {
	st := openCheckpointTestStore(t)
	s := New(st)

	wf, err := s.CreateWorkflow(0, false, "b", "")
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}
	if err := s.LogAction(wf.ID, "lint", ActionSuccess, map[string]any{"warnings": 0}); err != nil {
		t.Fatalf("LogAction: %v", err)
	}
	if err := s.LogAction(wf.ID, "typecheck", ActionFailed, nil); err != nil {
		t.Fatalf("LogAction: %v", err)
	}
	actions, err := s.ActionLog(wf.ID)
	if err != nil {
		t.Fatalf("ActionLog: %v", err)
	}
	if len(actions) != 2 || actions[0].Action != "lint" || actions[1].Action != "typecheck" {
		t.Fatalf("expected [lint, typecheck] in order, got %+v", actions)
	}

	if err := s.LogCommit(wf.ID, "abc123", "fix bug"); err != nil {
		t.Fatalf("LogCommit: %v", err)
	}
	commits, err := s.CommitLog(wf.ID)
	if err != nil {
		t.Fatalf("CommitLog: %v", err)
	}
	if len(commits) != 1 || commits[0].SHA != "abc123" {
		t.Fatalf("expected 1 commit abc123, got %+v", commits)
	}
}

func TestDeleteWorkflowRemovesLogsAndLinks(t *testing.T) {
	st := openCheckpointTestStore(t)
	s := New(st)

	m, err := s.CreateMilestone("ship-it", 0, false)
	if err != nil {
		t.Fatalf("CreateMilestone: %v", err)
	}
	wf, err := s.CreateWorkflow(0, false, "b", "")
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}
	if err := s.LinkWorkflow(m.ID, wf.ID, 0, false); err != nil {
		t.Fatalf("LinkWorkflow: %v", err)
	}
	if err := s.LogAction(wf.ID, "x", ActionSuccess, nil); err != nil {
		t.Fatalf("LogAction: %v", err)
	}

	if err := s.DeleteWorkflow(wf.ID); err != nil {
		t.Fatalf("DeleteWorkflow: %v", err)
	}
	if _, err := s.GetWorkflow(wf.ID); err == nil {
		t.Fatal("expected workflow to be gone")
	}
	actions, err := s.ActionLog(wf.ID)
	if err != nil {
		t.Fatalf("ActionLog: %v", err)
	}
	if len(actions) != 0 {
		t.Errorf("expected action log removed, got %+v", actions)
	}
	var links int
	if err := st.DB().QueryRow(`SELECT COUNT(*) FROM milestone_workflows WHERE workflow_id = ?`, wf.ID).Scan(&links); err != nil {
		t.Fatalf("count links: %v", err)
	}
	if links != 0 {
		t.Errorf("expected milestone link removed, got %d", links)
	}
}

func TestDeleteWorkflowNotFound(t *testing.T) {
	st := openCheckpointTestStore(t)
	s := New(st)
	if err := s.DeleteWorkflow("missing"); err == nil {
		t.Fatal("expected an error deleting a nonexistent workflow")
	}
}

func TestMilestoneLifecycleAndBaseline(t *testing.T) {
	st := openCheckpointTestStore(t)
	s := New(st)

	m, err := s.CreateMilestone("auth-rewrite", 101, true)
	if err != nil {
		t.Fatalf("CreateMilestone: %v", err)
	}
	if m.Phase != MilestonePlanning {
		t.Errorf("expected planning phase, got %s", m.Phase)
	}

	if err := s.SetMilestonePhase(m.ID, MilestoneExecute); err != nil {
		t.Fatalf("SetMilestonePhase: %v", err)
	}
	got, err := s.GetMilestone(m.ID)
	if err != nil {
		t.Fatalf("GetMilestone: %v", err)
	}
	if got.Phase != MilestoneExecute {
		t.Errorf("expected execute phase, got %s", got.Phase)
	}

	if err := s.SaveBaseline(Baseline{MilestoneID: m.ID, LintExit: 0, LintWarn: 3, TCExit: 0}); err != nil {
		t.Fatalf("SaveBaseline: %v", err)
	}
	baseline, err := s.GetBaseline(m.ID)
	if err != nil {
		t.Fatalf("GetBaseline: %v", err)
	}
	if baseline.LintWarn != 3 {
		t.Errorf("expected 3 lint warnings recorded, got %d", baseline.LintWarn)
	}

	if err := s.SetMilestoneStatus(m.ID, StatusCompleted); err != nil {
		t.Fatalf("SetMilestoneStatus: %v", err)
	}
	if err := s.SetMilestoneStatus(m.ID, StatusRunning); err == nil {
		t.Fatal("expected an error reopening a completed milestone")
	}
}

func TestFindMilestonesByNamePattern(t *testing.T) {
	st := openCheckpointTestStore(t)
	s := New(st)

	if _, err := s.CreateMilestone("auth-rewrite", 0, false); err != nil {
		t.Fatalf("CreateMilestone: %v", err)
	}
	if _, err := s.CreateMilestone("billing-cleanup", 0, false); err != nil {
		t.Fatalf("CreateMilestone: %v", err)
	}

	found, err := s.FindMilestones("auth")
	if err != nil {
		t.Fatalf("FindMilestones: %v", err)
	}
	if len(found) != 1 || found[0].Name != "auth-rewrite" {
		t.Fatalf("expected 1 match for auth, got %+v", found)
	}
}

func TestSessionMetricsRecordAndSummarize(t *testing.T) {
	st := openCheckpointTestStore(t)
	s := New(st)

	if err := s.RecordSessionMetric(SessionMetric{
		SessionID: "sess-1", FilesRead: 5, Compacted: true,
		HasDuration: true, DurationMinutes: 30, LearningsCaptured: 2,
	}); err != nil {
		t.Fatalf("RecordSessionMetric: %v", err)
	}
	if err := s.RecordSessionMetric(SessionMetric{
		SessionID: "sess-2", FilesRead: 3, HasDuration: true, DurationMinutes: 10, LearningsCaptured: 1,
	}); err != nil {
		t.Fatalf("RecordSessionMetric: %v", err)
	}

	metrics, err := s.ListSessionMetrics()
	if err != nil {
		t.Fatalf("ListSessionMetrics: %v", err)
	}
	if len(metrics) != 2 {
		t.Fatalf("expected 2 session metrics, got %d", len(metrics))
	}

	sum, err := s.SummarizeSessionMetrics()
	if err != nil {
		t.Fatalf("SummarizeSessionMetrics: %v", err)
	}
	if sum.SessionCount != 2 || sum.TotalFilesRead != 8 || sum.TotalLearnings != 3 || sum.CompactedSessions != 1 {
		t.Errorf("unexpected summary: %+v", sum)
	}
	if sum.AvgDurationMinutes != 20 {
		t.Errorf("expected avg duration 20, got %v", sum.AvgDurationMinutes)
	}
}

func TestSessionMetadataFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	meta := SessionMetadata{SessionID: "abc", StartTime: time.Now().UTC(), LearningsInjected: 4}

	path, err := WriteSessionMetadataFile(dir, meta)
	if err != nil {
		t.Fatalf("WriteSessionMetadataFile: %v", err)
	}

	found, foundPath, err := FindLatestSessionMetadataFile(dir, "abc", 24)
	if err != nil {
		t.Fatalf("FindLatestSessionMetadataFile: %v", err)
	}
	if found == nil || found.SessionID != "abc" {
		t.Fatalf("expected to find session abc, got %+v", found)
	}
	if foundPath != path {
		t.Errorf("expected path %s, got %s", path, foundPath)
	}

	if err := DeleteSessionMetadataFile(path); err != nil {
		t.Fatalf("DeleteSessionMetadataFile: %v", err)
	}
	found, _, err = FindLatestSessionMetadataFile(dir, "abc", 24)
	if err != nil {
		t.Fatalf("FindLatestSessionMetadataFile after delete: %v", err)
	}
	if found != nil {
		t.Errorf("expected no metadata after delete, got %+v", found)
	}
}

func TestFindLatestSessionMetadataFileRequiresExactSessionIDMatch(t *testing.T) {
	dir := t.TempDir()
	if _, err := WriteSessionMetadataFile(dir, SessionMetadata{SessionID: "other", StartTime: time.Now().UTC()}); err != nil {
		t.Fatalf("WriteSessionMetadataFile: %v", err)
	}

	found, _, err := FindLatestSessionMetadataFile(dir, "abc", 24)
	if err != nil {
		t.Fatalf("FindLatestSessionMetadataFile: %v", err)
	}
	if found != nil {
		t.Errorf("expected no fallback match for a mismatched sessionID, got %+v", found)
	}
}
