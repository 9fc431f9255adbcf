package hooks

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"claude-knowledge/internal/checkpoint"
	"claude-knowledge/internal/config"
	"claude-knowledge/internal/docs"
	"claude-knowledge/internal/graph"
	"claude-knowledge/internal/knowledge"
	"claude-knowledge/internal/store"
)

type fakeExtractor struct {
	out ExtractionOutput
	err error
}

func (f fakeExtractor) Extract(ctx context.Context, in ExtractionInput) (ExtractionOutput, error) {
	return f.out, f.err
}

func newTestHooks(t *testing.T, extractor LearningExtractor) (*Hooks, *store.Store) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hooks.db")
	st, err := store.Open(path, store.Options{BusyTimeoutMs: 2000})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{
		Checkpoint: config.CheckpointConfig{
			StaleWorkflowHours:     24,
			SessionStalenessHours:  24,
			TranscriptDir:          filepath.Join(t.TempDir(), "transcripts"),
		},
	}

	h := New(checkpoint.New(st), knowledge.New(st, nil), docs.New(st, nil), graph.NewGraphQuery(st), extractor, cfg)
	h.WithMetadataDir(t.TempDir())
	return h, st
}

func TestSessionStartWritesMetadataAndMarker(t *testing.T) {
	h, _ := newTestHooks(t, nil)
	workDir := t.TempDir()

	out, err := h.SessionStart(context.Background(), SessionStartInput{WorkingDir: workDir})
	if err != nil {
		t.Fatalf("SessionStart: %v", err)
	}
	if out.MetadataMarker == "" {
		t.Error("expected a non-empty SESSION_METADATA marker")
	}
	if out.Metadata.SessionID == "" {
		t.Error("expected a session id to be generated")
	}
	if out.MetadataFilePath == "" {
		t.Error("expected a metadata file path to be recorded")
	}
	if _, err := os.Stat(out.MetadataFilePath); err != nil {
		t.Errorf("expected metadata file to exist on disk: %v", err)
	}
}

func TestSessionStartSurfacesActiveWorkflowsInProseBlock(t *testing.T) {
	h, st := newTestHooks(t, nil)
	cp := checkpoint.New(st)
	if _, err := cp.CreateWorkflow(0, false, "feature/resume-me", ""); err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	out, err := h.SessionStart(context.Background(), SessionStartInput{WorkingDir: t.TempDir()})
	if err != nil {
		t.Fatalf("SessionStart: %v", err)
	}
	if len(out.ActiveWorkflows) != 1 {
		t.Fatalf("expected 1 active workflow, got %+v", out.ActiveWorkflows)
	}
	if out.ProseBlock == "" {
		t.Error("expected a resume prose block to be generated for an active workflow")
	}
}

func TestSessionEndSkipsExtractionWithoutExtractor(t *testing.T) {
	h, _ := newTestHooks(t, nil)

	out, err := h.SessionEnd(context.Background(), SessionEndInput{SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("SessionEnd: %v", err)
	}
	if out.ExtractorSkippedWhy != "no learning extractor configured" {
		t.Errorf("expected extraction skip reason for missing extractor, got %q", out.ExtractorSkippedWhy)
	}
	if out.LearningsCaptured != 0 {
		t.Errorf("expected 0 learnings captured without an extractor, got %d", out.LearningsCaptured)
	}
}

func TestSessionEndDryRunSkipsExtraction(t *testing.T) {
	fake := fakeExtractor{out: ExtractionOutput{Learnings: []ExtractedLearning{{Content: "should not persist"}}}}
	h, _ := newTestHooks(t, fake)

	out, err := h.SessionEnd(context.Background(), SessionEndInput{SessionID: "sess-1", DryRun: true})
	if err != nil {
		t.Fatalf("SessionEnd: %v", err)
	}
	if out.ExtractorSkippedWhy != "dry-run" {
		t.Errorf("expected dry-run skip reason, got %q", out.ExtractorSkippedWhy)
	}
	if out.LearningsCaptured != 0 {
		t.Errorf("expected no learnings captured in dry-run, got %d", out.LearningsCaptured)
	}
	if out.MetadataFileDeleted {
		t.Error("expected the metadata file to stay in place on dry-run")
	}
}

func TestSessionEndDryRunWritesNothingToStore(t *testing.T) {
	h, st := newTestHooks(t, nil)

	if _, err := h.SessionEnd(context.Background(), SessionEndInput{SessionID: "sess-dry", FilesRead: 3, DryRun: true}); err != nil {
		t.Fatalf("SessionEnd: %v", err)
	}

	cp := checkpoint.New(st)
	metrics, err := cp.ListSessionMetrics()
	if err != nil {
		t.Fatalf("ListSessionMetrics: %v", err)
	}
	if len(metrics) != 0 {
		t.Fatalf("expected no session metric recorded on dry-run, got %+v", metrics)
	}
}

func TestSessionEndPersistsExtractedKnowledge(t *testing.T) {
	transcriptDir := filepath.Join(t.TempDir(), "transcripts")
	if err := os.MkdirAll(transcriptDir, 0o755); err != nil {
		t.Fatalf("mkdir transcripts: %v", err)
	}
	transcriptFile := filepath.Join(transcriptDir, "session.jsonl")
	if err := os.WriteFile(transcriptFile, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}

	path := filepath.Join(t.TempDir(), "hooks.db")
	st, err := store.Open(path, store.Options{BusyTimeoutMs: 2000})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{
		Checkpoint: config.CheckpointConfig{StaleWorkflowHours: 24, SessionStalenessHours: 24, TranscriptDir: transcriptDir},
	}
	fake := fakeExtractor{out: ExtractionOutput{
		Learnings: []ExtractedLearning{{Content: "use context cancellation for long-running queries"}},
		Patterns:  []ExtractedPattern{{Name: "context-cancel", Description: "cancel on shutdown"}},
		Mistakes:  []ExtractedMistake{{Description: "forgot to close rows", HowFixed: "added defer rows.Close()"}},
	}}
	h := New(checkpoint.New(st), knowledge.New(st, nil), docs.New(st, nil), graph.NewGraphQuery(st), fake, cfg)
	h.WithMetadataDir(t.TempDir())

	out, err := h.SessionEnd(context.Background(), SessionEndInput{SessionID: "sess-2"})
	if err != nil {
		t.Fatalf("SessionEnd: %v", err)
	}
	if out.LearningsCaptured != 1 || out.PatternsCaptured != 1 || out.MistakesCaptured != 1 {
		t.Errorf("expected 1 of each captured, got %+v", out)
	}

	ks := knowledge.New(st, nil)
	stats, err := ks.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if stats.Learnings != 1 || stats.Patterns != 1 || stats.Mistakes != 1 {
		t.Errorf("expected persisted counts to match, got %+v", stats)
	}
}

func TestSessionEndRecordsSessionMetricEvenWithoutMetadata(t *testing.T) {
	h, st := newTestHooks(t, nil)

	if _, err := h.SessionEnd(context.Background(), SessionEndInput{SessionID: "sess-3", FilesRead: 7}); err != nil {
		t.Fatalf("SessionEnd: %v", err)
	}

	cp := checkpoint.New(st)
	metrics, err := cp.ListSessionMetrics()
	if err != nil {
		t.Fatalf("ListSessionMetrics: %v", err)
	}
	if len(metrics) != 1 || metrics[0].FilesRead != 7 {
		t.Fatalf("expected 1 recorded metric with FilesRead=7, got %+v", metrics)
	}
}

func TestSessionStartThenSessionEndCorrelateBySessionMetadata(t *testing.T) {
	h, st := newTestHooks(t, nil)

	startOut, err := h.SessionStart(context.Background(), SessionStartInput{WorkingDir: t.TempDir()})
	if err != nil {
		t.Fatalf("SessionStart: %v", err)
	}

	endOut, err := h.SessionEnd(context.Background(), SessionEndInput{SessionID: startOut.Metadata.SessionID})
	if err != nil {
		t.Fatalf("SessionEnd: %v", err)
	}
	if !endOut.MetadataFileDeleted {
		t.Error("expected the session metadata file to be deleted on successful session-end")
	}
	if _, err := os.Stat(startOut.MetadataFilePath); !os.IsNotExist(err) {
		t.Errorf("expected metadata file to be removed from disk, stat err: %v", err)
	}

	cp := checkpoint.New(st)
	metrics, err := cp.ListSessionMetrics()
	if err != nil {
		t.Fatalf("ListSessionMetrics: %v", err)
	}
	if len(metrics) != 1 || metrics[0].SessionID != startOut.Metadata.SessionID {
		t.Fatalf("expected metric recorded under the correlated session id, got %+v", metrics)
	}
}
