package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"claude-knowledge/internal/logging"
)

const (
	defaultOllamaEndpoint = "http://localhost:11434"
	defaultOllamaModel    = "embeddinggemma"
	ollamaRequestTimeout  = 30 * time.Second

	// embeddinggemma's output dimensionality; other models vary, but the
	// store records the dimension per row so a model switch is detected
	// at read time rather than silently mixed.
	embeddinggemmaDimensions = 768
)

// OllamaEngine generates embeddings against a local Ollama server's
// /api/embeddings endpoint. Ollama has no task-type concept, so the engine
// implements only Embedder; EmbedForTask callers degrade to a plain embed
// against it. A server that cannot be reached surfaces as ErrUnavailable
// so knowledge/docs searches fall back to structured-only retrieval.
type OllamaEngine struct {
	endpoint string
	model    string
	client   *http.Client
}

// NewOllamaEngine returns an engine for endpoint/model, defaulting to a
// local server and the embeddinggemma model.
func NewOllamaEngine(endpoint, model string) (*OllamaEngine, error) {
	if endpoint == "" {
		endpoint = defaultOllamaEndpoint
	}
	if model == "" {
		model = defaultOllamaModel
	}
	logging.Embedding("ollama engine ready: endpoint=%s model=%s", endpoint, model)
	return &OllamaEngine{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: ollamaRequestTimeout},
	}, nil
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed generates an embedding for a single text.
func (e *OllamaEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "Ollama.Embed")
	defer timer.Stop()

	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama at %s: %v", ErrUnavailable, e.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, detail)
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode ollama response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned an empty embedding for model %s", e.model)
	}
	return result.Embedding, nil
}

// EmbedBatch embeds texts one request at a time: Ollama has no native
// batch endpoint. The loop checks ctx between requests so a cancelled
// hook run stops promptly instead of draining the whole batch.
func (e *OllamaEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "Ollama.EmbedBatch")
	defer timer.Stop()

	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d of %d: %w", i+1, len(texts), err)
		}
		out[i] = vec
	}
	logging.EmbeddingDebug("ollama batch complete: %d texts", len(texts))
	return out, nil
}

// HealthCheck implements HealthChecker with a cheap round-trip to the
// server's version endpoint, so hooks can verify availability before a
// large ingestion batch.
func (e *OllamaEngine) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.endpoint+"/api/version", nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: ollama at %s: %v", ErrUnavailable, e.endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama health check returned status %d", resp.StatusCode)
	}
	return nil
}

// Dimensions returns embeddinggemmaDimensions whatever model is
// configured; the dimensionality of other models is not detected.
func (e *OllamaEngine) Dimensions() int {
	return embeddinggemmaDimensions
}

// Name returns the engine/model identifier recorded alongside stored
// vectors.
func (e *OllamaEngine) Name() string {
	return "ollama:" + e.model
}
