package graph

import (
	"path/filepath"
	"testing"

	"claude-knowledge/internal/store"
)

func openGraphTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.db")
	st, err := store.Open(path, store.Options{BusyTimeoutMs: 2000})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func sampleParseResult(pkg string) *ParseResult {
	result := newParseResult()
	result.addEntity(Entity{
		ID: entityID(pkg, "a.ts", KindFunction, "foo"), Package: pkg, FilePath: "a.ts",
		Kind: KindFunction, Name: "foo", Line: 1, Exported: true,
	})
	result.addEntity(Entity{
		ID: entityID(pkg, "b.ts", KindFunction, "bar"), Package: pkg, FilePath: "b.ts",
		Kind: KindFunction, Name: "bar", Line: 1, Exported: false,
	})
	result.addRelationship(Relationship{
		FromID: entityID(pkg, "b.ts", KindFunction, "bar"),
		ToID:   entityID(pkg, "a.ts", KindFunction, "foo"),
		Kind:   RelCalls,
	})
	result.FilesParsed = 2
	return result
}

func TestGraphStoreWriteFullThenQuery(t *testing.T) {
	st := openGraphTestStore(t)
	gs := NewGraphStore(st, nil)

	pkg := "demo"
	result := sampleParseResult(pkg)
	modTimes := map[string]int64{"a.ts": 100, "b.ts": 200}

	if err := gs.WriteFull(pkg, result, modTimes); err != nil {
		t.Fatalf("WriteFull: %v", err)
	}

	q := NewGraphQuery(st)
	summary, err := q.GetSummary(pkg)
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if summary.TotalEntities != 2 {
		t.Errorf("expected 2 entities, got %d", summary.TotalEntities)
	}
	if summary.TotalRelationships != 1 {
		t.Errorf("expected 1 relationship, got %d", summary.TotalRelationships)
	}

	callers, err := q.GetCallers("foo")
	if err != nil {
		t.Fatalf("GetCallers: %v", err)
	}
	if len(callers) != 1 || callers[0].Name != "bar" {
		t.Fatalf("expected bar as sole caller of foo, got %+v", callers)
	}
}

func TestGraphStoreWriteFullReplacesPriorData(t *testing.T) {
	st := openGraphTestStore(t)
	gs := NewGraphStore(st, nil)
	pkg := "demo"

	first := sampleParseResult(pkg)
	if err := gs.WriteFull(pkg, first, map[string]int64{"a.ts": 1, "b.ts": 1}); err != nil {
		t.Fatalf("WriteFull first: %v", err)
	}

	second := newParseResult()
	second.addEntity(Entity{
		ID: entityID(pkg, "c.ts", KindFunction, "baz"), Package: pkg, FilePath: "c.ts",
		Kind: KindFunction, Name: "baz", Line: 1,
	})
	if err := gs.WriteFull(pkg, second, map[string]int64{"c.ts": 1}); err != nil {
		t.Fatalf("WriteFull second: %v", err)
	}

	q := NewGraphQuery(st)
	summary, err := q.GetSummary(pkg)
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if summary.TotalEntities != 1 {
		t.Errorf("expected WriteFull to replace prior entities entirely, got %d entities", summary.TotalEntities)
	}
	if _, ok := summary.EntitiesByKind[KindFunction]; !ok || summary.EntitiesByKind[KindFunction] != 1 {
		t.Errorf("expected exactly 1 function entity after replacement, got %+v", summary.EntitiesByKind)
	}
}

func TestGraphStoreWriteIncrementalScopesToAffectedFiles(t *testing.T) {
	st := openGraphTestStore(t)
	gs := NewGraphStore(st, nil)
	pkg := "demo"

	full := sampleParseResult(pkg)
	if err := gs.WriteFull(pkg, full, map[string]int64{"a.ts": 1, "b.ts": 1}); err != nil {
		t.Fatalf("WriteFull: %v", err)
	}

	updated := newParseResult()
	updated.addEntity(Entity{
		ID: entityID(pkg, "b.ts", KindFunction, "bar2"), Package: pkg, FilePath: "b.ts",
		Kind: KindFunction, Name: "bar2", Line: 5,
	})
	if err := gs.WriteIncremental(pkg, updated, []string{"b.ts"}, nil, map[string]int64{"b.ts": 2}); err != nil {
		t.Fatalf("WriteIncremental: %v", err)
	}

	q := NewGraphQuery(st)
	entities, err := q.FindEntities("bar", KindFunction, 10)
	if err != nil {
		t.Fatalf("FindEntities: %v", err)
	}
	for _, e := range entities {
		if e.Name == "bar" {
			t.Errorf("expected old bar entity to be replaced by bar2 in b.ts, still found: %+v", e)
		}
	}
	if len(entities) != 1 || entities[0].Name != "bar2" {
		t.Errorf("expected bar2 as the sole b.ts entity, got %+v", entities)
	}

	foo, err := q.FindEntities("foo", KindFunction, 10)
	if err != nil {
		t.Fatalf("FindEntities: %v", err)
	}
	if len(foo) != 1 {
		t.Errorf("expected a.ts entity foo to survive an incremental write scoped to b.ts, got %+v", foo)
	}
}

func TestGraphStoreWriteIncrementalHandlesDeletedFile(t *testing.T) {
	st := openGraphTestStore(t)
	gs := NewGraphStore(st, nil)
	pkg := "demo"

	full := sampleParseResult(pkg)
	if err := gs.WriteFull(pkg, full, map[string]int64{"a.ts": 1, "b.ts": 1}); err != nil {
		t.Fatalf("WriteFull: %v", err)
	}

	if err := gs.WriteIncremental(pkg, newParseResult(), nil, []string{"b.ts"}, nil); err != nil {
		t.Fatalf("WriteIncremental delete: %v", err)
	}

	q := NewGraphQuery(st)
	bar, err := q.FindEntities("bar", KindFunction, 10)
	if err != nil {
		t.Fatalf("FindEntities: %v", err)
	}
	if len(bar) != 0 {
		t.Errorf("expected bar entity removed along with deleted file b.ts, got %+v", bar)
	}
}

func TestGraphStoreInsertRelationshipsIgnoresDuplicates(t *testing.T) {
	st := openGraphTestStore(t)
	gs := NewGraphStore(st, nil)
	pkg := "demo"

	result := sampleParseResult(pkg)
	dup := result.Relationships[0]
	result.addRelationship(dup)
	result.addRelationship(dup)

	if err := gs.WriteFull(pkg, result, map[string]int64{"a.ts": 1, "b.ts": 1}); err != nil {
		t.Fatalf("WriteFull: %v", err)
	}

	q := NewGraphQuery(st)
	summary, err := q.GetSummary(pkg)
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if summary.TotalRelationships != 1 {
		t.Errorf("expected duplicate relationship rows to collapse to 1, got %d", summary.TotalRelationships)
	}
}
