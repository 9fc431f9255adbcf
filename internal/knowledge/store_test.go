package knowledge

import (
	"context"
	"path/filepath"
	"testing"

	"claude-knowledge/internal/store"
)

func openKnowledgeTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "knowledge.db")
	st, err := store.Open(path, store.Options{BusyTimeoutMs: 2000})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestStoreLearningsCreatesShadowEntitiesAndEdges(t *testing.T) {
	st := openKnowledgeTestStore(t)
	s := New(st, nil)

	err := s.StoreLearnings(context.Background(), []Learning{
		{Content: "retries need jitter", CodeArea: "networking", FilePath: "internal/net/retry.go"},
	})
	if err != nil {
		t.Fatalf("StoreLearnings: %v", err)
	}

	areas, err := s.ListCodeAreas()
	if err != nil {
		t.Fatalf("ListCodeAreas: %v", err)
	}
	if len(areas) != 1 || areas[0] != "networking" {
		t.Errorf("expected code area networking to be created, got %+v", areas)
	}

	files, err := s.ListFiles()
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 1 || files[0] != "internal/net/retry.go" {
		t.Errorf("expected file to be created, got %+v", files)
	}
}

func TestStoreLearningsRejectsEmptyContent(t *testing.T) {
	st := openKnowledgeTestStore(t)
	s := New(st, nil)

	err := s.StoreLearnings(context.Background(), []Learning{{Content: ""}})
	if err == nil {
		t.Fatal("expected error for empty learning content")
	}
}

func TestStoreLearningsRejectsOutOfRangeConfidence(t *testing.T) {
	st := openKnowledgeTestStore(t)
	s := New(st, nil)

	err := s.StoreLearnings(context.Background(), []Learning{
		{Content: "x", HasConfidence: true, Confidence: 1.5},
	})
	if err == nil {
		t.Fatal("expected error for confidence outside [0,1]")
	}
}

func TestQueryFiltersByCodeAreaAndKeyword(t *testing.T) {
	st := openKnowledgeTestStore(t)
	s := New(st, nil)
	ctx := context.Background()

	if err := s.StoreLearnings(ctx, []Learning{
		{Content: "connection pooling avoids churn", CodeArea: "db"},
		{Content: "retries need jitter", CodeArea: "networking"},
	}); err != nil {
		t.Fatalf("StoreLearnings: %v", err)
	}

	results, err := s.Query(Filter{CodeArea: "networking"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(results) != 1 || results[0].CodeArea != "networking" {
		t.Fatalf("expected 1 networking learning, got %+v", results)
	}

	byKeyword, err := s.Query(Filter{Keywords: []string{"pooling"}})
	if err != nil {
		t.Fatalf("Query by keyword: %v", err)
	}
	if len(byKeyword) != 1 {
		t.Fatalf("expected 1 match for keyword pooling, got %d", len(byKeyword))
	}
}

func TestSummaryCountsAcrossTables(t *testing.T) {
	st := openKnowledgeTestStore(t)
	s := New(st, nil)
	ctx := context.Background()

	if err := s.StoreLearnings(ctx, []Learning{{Content: "a", CodeArea: "x"}}); err != nil {
		t.Fatalf("StoreLearnings: %v", err)
	}
	if err := s.StorePattern(ctx, Pattern{Name: "retry-with-jitter", CodeArea: "x"}); err != nil {
		t.Fatalf("StorePattern: %v", err)
	}
	if err := s.StoreMistake(ctx, Mistake{Description: "forgot mutex", HowFixed: "added lock", FilePath: "f.go"}); err != nil {
		t.Fatalf("StoreMistake: %v", err)
	}

	stats, err := s.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if stats.Learnings != 1 || stats.Patterns != 1 || stats.Mistakes != 1 {
		t.Errorf("expected 1 of each, got %+v", stats)
	}
	if stats.CodeAreas != 1 {
		t.Errorf("expected 1 code area (shared by learning+pattern), got %d", stats.CodeAreas)
	}
}

// hashEmbedder is a deterministic toy embedder: the vector is a fixed
// function of the text's bytes, so identical content embeds identically.
type hashEmbedder struct{}

func (hashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, 4)
	for i, b := range []byte(text) {
		vec[i%4] += float32(b)
	}
	return vec, nil
}

func (h hashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := h.Embed(ctx, t)
		out[i] = v
	}
	return out, nil
}

func (hashEmbedder) Dimensions() int { return 4 }
func (hashEmbedder) Name() string    { return "hash-test" }

func TestSearchSimilarAppliesCodeAreaFilterBeforeRanking(t *testing.T) {
	st := openKnowledgeTestStore(t)
	s := New(st, hashEmbedder{})
	ctx := context.Background()

	if err := s.StoreLearnings(ctx, []Learning{
		{Content: "cache eviction policy", CodeArea: "cache"},
		{Content: "cache eviction policy", CodeArea: "parser"},
	}); err != nil {
		t.Fatalf("StoreLearnings: %v", err)
	}

	results, err := s.SearchSimilar(ctx, "eviction", SearchOptions{Limit: 10, CodeArea: "cache"})
	if err != nil {
		t.Fatalf("SearchSimilar: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly 1 result with codeArea=cache, got %+v", results)
	}
	if results[0].Learning.CodeArea != "cache" {
		t.Errorf("expected the cache-area learning, got %+v", results[0].Learning)
	}
}

func TestSearchSimilarSortsByScoreAndHonorsThreshold(t *testing.T) {
	st := openKnowledgeTestStore(t)
	s := New(st, hashEmbedder{})
	ctx := context.Background()

	if err := s.StoreLearnings(ctx, []Learning{
		{Content: "cache eviction policy"},
		{Content: "workflow checkpointing"},
	}); err != nil {
		t.Fatalf("StoreLearnings: %v", err)
	}

	results, err := s.SearchSimilar(ctx, "cache eviction policy", SearchOptions{Limit: 10})
	if err != nil {
		t.Fatalf("SearchSimilar: %v", err)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not sorted by score descending: %+v", results)
		}
	}

	filtered, err := s.SearchSimilar(ctx, "cache eviction policy", SearchOptions{Limit: 10, Threshold: 0.999})
	if err != nil {
		t.Fatalf("SearchSimilar with threshold: %v", err)
	}
	for _, r := range filtered {
		if r.Score < 0.999 {
			t.Errorf("threshold not applied, got score %v", r.Score)
		}
	}
}

func TestSearchSimilarWithoutEmbedderReturnsErrUnavailable(t *testing.T) {
	st := openKnowledgeTestStore(t)
	s := New(st, nil)

	_, err := s.SearchSimilar(context.Background(), "anything", SearchOptions{})
	if err == nil {
		t.Fatal("expected an error when no embedder is configured")
	}
}

func TestDeleteLearningRemovesEdges(t *testing.T) {
	st := openKnowledgeTestStore(t)
	s := New(st, nil)
	ctx := context.Background()

	l := Learning{Content: "x", CodeArea: "area"}
	if err := s.StoreLearnings(ctx, []Learning{l}); err != nil {
		t.Fatalf("StoreLearnings: %v", err)
	}
	results, err := s.Query(Filter{CodeArea: "area"})
	if err != nil || len(results) != 1 {
		t.Fatalf("setup query failed: %v %+v", err, results)
	}

	if err := s.DeleteLearning(results[0].ID); err != nil {
		t.Fatalf("DeleteLearning: %v", err)
	}

	after, err := s.Query(Filter{CodeArea: "area"})
	if err != nil {
		t.Fatalf("Query after delete: %v", err)
	}
	if len(after) != 0 {
		t.Errorf("expected learning to be gone after delete, got %+v", after)
	}
}

func TestDeleteLearningNotFound(t *testing.T) {
	st := openKnowledgeTestStore(t)
	s := New(st, nil)

	if err := s.DeleteLearning("missing"); err == nil {
		t.Fatal("expected an error deleting a nonexistent learning")
	}
}
