package docs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"claude-knowledge/internal/store"
)

func openDocsTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docs.db")
	st, err := store.Open(path, store.Options{BusyTimeoutMs: 2000})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func writeMarkdown(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write markdown: %v", err)
	}
	return path
}

const sampleMarkdown = `# Overview

Some intro text.

## Details

More specific text.
`

func TestIndexDocumentSplitsHeadingsAndRecordsHash(t *testing.T) {
	st := openDocsTestStore(t)
	s := New(st, nil)
	path := writeMarkdown(t, sampleMarkdown)

	result, err := s.IndexDocument(context.Background(), path, IndexOptions{})
	if err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	if result.Status != StatusIndexed {
		t.Errorf("expected StatusIndexed, got %s", result.Status)
	}
	if result.SectionsIndexed != 2 {
		t.Errorf("expected 2 sections, got %d", result.SectionsIndexed)
	}
}

func TestIndexDocumentSkipsUnchangedContent(t *testing.T) {
	st := openDocsTestStore(t)
	s := New(st, nil)
	path := writeMarkdown(t, sampleMarkdown)
	ctx := context.Background()

	if _, err := s.IndexDocument(ctx, path, IndexOptions{}); err != nil {
		t.Fatalf("first IndexDocument: %v", err)
	}
	result, err := s.IndexDocument(ctx, path, IndexOptions{})
	if err != nil {
		t.Fatalf("second IndexDocument: %v", err)
	}
	if result.Status != StatusUnchanged {
		t.Errorf("expected StatusUnchanged on re-index of identical content, got %s", result.Status)
	}
}

func TestIndexDocumentForceReindexesUnchangedContent(t *testing.T) {
	st := openDocsTestStore(t)
	s := New(st, nil)
	path := writeMarkdown(t, sampleMarkdown)
	ctx := context.Background()

	if _, err := s.IndexDocument(ctx, path, IndexOptions{}); err != nil {
		t.Fatalf("first IndexDocument: %v", err)
	}
	result, err := s.IndexDocument(ctx, path, IndexOptions{Force: true})
	if err != nil {
		t.Fatalf("forced IndexDocument: %v", err)
	}
	if result.Status != StatusIndexed {
		t.Errorf("expected --force to re-index, got status %s", result.Status)
	}
}

func TestIndexDocumentReindexesAfterChange(t *testing.T) {
	st := openDocsTestStore(t)
	s := New(st, nil)
	path := writeMarkdown(t, sampleMarkdown)
	ctx := context.Background()

	if _, err := s.IndexDocument(ctx, path, IndexOptions{}); err != nil {
		t.Fatalf("first IndexDocument: %v", err)
	}
	if err := os.WriteFile(path, []byte(sampleMarkdown+"\n## Third\n\nmore\n"), 0o644); err != nil {
		t.Fatalf("rewrite markdown: %v", err)
	}
	result, err := s.IndexDocument(ctx, path, IndexOptions{})
	if err != nil {
		t.Fatalf("second IndexDocument: %v", err)
	}
	if result.Status != StatusIndexed {
		t.Errorf("expected changed content to re-index, got %s", result.Status)
	}
	if result.SectionsIndexed != 3 {
		t.Errorf("expected 3 sections after edit, got %d", result.SectionsIndexed)
	}
}

func TestStatusReportsCurrentAndMissingFiles(t *testing.T) {
	st := openDocsTestStore(t)
	s := New(st, nil)
	path := writeMarkdown(t, sampleMarkdown)
	ctx := context.Background()

	if _, err := s.IndexDocument(ctx, path, IndexOptions{}); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}

	statuses, err := s.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(statuses) != 1 || !statuses[0].Current {
		t.Fatalf("expected 1 current file, got %+v", statuses)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove file: %v", err)
	}
	statuses, err = s.Status()
	if err != nil {
		t.Fatalf("Status after removal: %v", err)
	}
	if len(statuses) != 1 || statuses[0].Current {
		t.Fatalf("expected file to report stale after removal, got %+v", statuses)
	}
}

func TestCleanRemovesEntriesForDeletedFiles(t *testing.T) {
	st := openDocsTestStore(t)
	s := New(st, nil)
	path := writeMarkdown(t, sampleMarkdown)
	ctx := context.Background()

	if _, err := s.IndexDocument(ctx, path, IndexOptions{}); err != nil {
		t.Fatalf("IndexDocument: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove file: %v", err)
	}

	n, err := s.Clean()
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 cleaned entry, got %d", n)
	}

	statuses, err := s.Status()
	if err != nil {
		t.Fatalf("Status after clean: %v", err)
	}
	if len(statuses) != 0 {
		t.Errorf("expected no remaining doc_index entries, got %+v", statuses)
	}
}

func TestIndexExternalRecordsSpecVersion(t *testing.T) {
	st := openDocsTestStore(t)
	s := New(st, nil)
	path := writeMarkdown(t, sampleMarkdown)

	result, err := s.IndexExternal(context.Background(), path, "v2.1")
	if err != nil {
		t.Fatalf("IndexExternal: %v", err)
	}
	if result.Status != StatusIndexed {
		t.Errorf("expected StatusIndexed, got %s", result.Status)
	}
}

func TestSearchWithoutEmbedderReturnsErrUnavailable(t *testing.T) {
	st := openDocsTestStore(t)
	s := New(st, nil)

	_, err := s.Search(context.Background(), "anything", 10)
	if err == nil {
		t.Fatal("expected an error when no embedder is configured")
	}
}

func TestForCodeReturnsEmptyWhenNoCodeDocsLinked(t *testing.T) {
	st := openDocsTestStore(t)
	s := New(st, nil)

	results, err := s.ForCode("entity_missing")
	if err != nil {
		t.Fatalf("ForCode: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results for unlinked entity, got %+v", results)
	}
}
