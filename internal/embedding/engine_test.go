package embedding

import (
	"context"
	"testing"
)

// plainEmbedder implements only Embedder, like Ollama: no task-type concept.
type plainEmbedder struct{}

func (plainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}
func (plainEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}
func (plainEmbedder) Dimensions() int { return 2 }
func (plainEmbedder) Name() string    { return "plain" }

// taskAwareEmbedder implements TaskAwareEmbedder, like GenAIEngine, and
// records the task type it was asked to embed with.
type taskAwareEmbedder struct {
	plainEmbedder
	lastTaskType string
}

func (e *taskAwareEmbedder) EmbedForTask(ctx context.Context, text string, contentType ContentType, isQuery bool) ([]float32, error) {
	e.lastTaskType = SelectTaskType(contentType, isQuery)
	return []float32{0, 1}, nil
}
func (e *taskAwareEmbedder) EmbedBatchForTask(ctx context.Context, texts []string, contentType ContentType, isQuery bool) ([][]float32, error) {
	e.lastTaskType = SelectTaskType(contentType, isQuery)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0, 1}
	}
	return out, nil
}

func TestEmbedForTaskFallsBackWhenEngineIsNotTaskAware(t *testing.T) {
	vec, err := EmbedForTask(context.Background(), plainEmbedder{}, "hello", ContentTypeQuery, true)
	if err != nil {
		t.Fatalf("EmbedForTask: %v", err)
	}
	if len(vec) != 2 || vec[0] != 1 {
		t.Fatalf("expected fallback to plain Embed, got %v", vec)
	}
}

func TestEmbedForTaskUsesTaskAwareEngineWhenAvailable(t *testing.T) {
	e := &taskAwareEmbedder{}
	vec, err := EmbedForTask(context.Background(), e, "func main() {}", ContentTypeCode, true)
	if err != nil {
		t.Fatalf("EmbedForTask: %v", err)
	}
	if len(vec) != 2 || vec[1] != 1 {
		t.Fatalf("expected task-aware embed path, got %v", vec)
	}
	if e.lastTaskType != "CODE_RETRIEVAL_QUERY" {
		t.Fatalf("lastTaskType=%q, want CODE_RETRIEVAL_QUERY", e.lastTaskType)
	}
}

func TestEmbedBatchForTaskUsesTaskAwareEngineWhenAvailable(t *testing.T) {
	e := &taskAwareEmbedder{}
	vecs, err := EmbedBatchForTask(context.Background(), e, []string{"a", "b"}, ContentTypeDocumentation, false)
	if err != nil {
		t.Fatalf("EmbedBatchForTask: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}
	if e.lastTaskType != "RETRIEVAL_DOCUMENT" {
		t.Fatalf("lastTaskType=%q, want RETRIEVAL_DOCUMENT", e.lastTaskType)
	}
}
