package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newFakeOllama(t *testing.T, vec []float32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: vec})
	})
	mux.HandleFunc("/api/version", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"version":"0.0.0"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaEmbedRoundTrip(t *testing.T) {
	srv := newFakeOllama(t, []float32{0.1, 0.2, 0.3})
	e, err := NewOllamaEngine(srv.URL, "test-model")
	if err != nil {
		t.Fatalf("NewOllamaEngine: %v", err)
	}

	vec, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected a 3-dim vector back, got %v", vec)
	}

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}

	if err := e.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck against live server: %v", err)
	}
}

func TestOllamaUnreachableServerIsErrUnavailable(t *testing.T) {
	// A server that is immediately closed leaves a port nothing listens on.
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	e, err := NewOllamaEngine(endpoint, "test-model")
	if err != nil {
		t.Fatalf("NewOllamaEngine: %v", err)
	}

	if _, err := e.Embed(context.Background(), "hello"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for an unreachable server, got %v", err)
	}
	if err := e.HealthCheck(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable from health check, got %v", err)
	}
}
