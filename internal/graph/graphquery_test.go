package graph

import "testing"

// chainParseResult builds a->b->c->d call chain entities plus an import
// edge, used to exercise WhatCalls/WhatDependsOn/BlastRadius/GetExports.
func chainParseResult(pkg string) *ParseResult {
	result := newParseResult()
	mk := func(file, kind, name string, exported bool) Entity {
		return Entity{
			ID: entityID(pkg, file, Kind(kind), name), Package: pkg, FilePath: file,
			Kind: Kind(kind), Name: name, Line: 1, Exported: exported,
		}
	}

	a := mk("a.ts", "function", "a", true)
	b := mk("b.ts", "function", "b", false)
	c := mk("c.ts", "function", "c", false)
	d := mk("d.ts", "function", "d", true)
	result.addEntity(a)
	result.addEntity(b)
	result.addEntity(c)
	result.addEntity(d)

	result.addRelationship(Relationship{FromID: a.ID, ToID: b.ID, Kind: RelCalls})
	result.addRelationship(Relationship{FromID: b.ID, ToID: c.ID, Kind: RelCalls})
	result.addRelationship(Relationship{FromID: c.ID, ToID: d.ID, Kind: RelCalls})
	result.addRelationship(Relationship{FromID: a.ID, ToID: d.ID, Kind: RelImports})
	return result
}

func TestWhatCallsFindsDirectCallers(t *testing.T) {
	st := openGraphTestStore(t)
	gs := NewGraphStore(st, nil)
	pkg := "demo"
	result := chainParseResult(pkg)
	if err := gs.WriteFull(pkg, result, nil); err != nil {
		t.Fatalf("WriteFull: %v", err)
	}

	q := NewGraphQuery(st)
	callers, err := q.WhatCalls("c")
	if err != nil {
		t.Fatalf("WhatCalls: %v", err)
	}
	if len(callers) != 1 || callers[0].Name != "b" {
		t.Fatalf("expected 'b' as sole direct caller of 'c', got %+v", callers)
	}
}

func TestWhatDependsOnReturnsRelationshipKind(t *testing.T) {
	st := openGraphTestStore(t)
	gs := NewGraphStore(st, nil)
	pkg := "demo"
	result := chainParseResult(pkg)
	if err := gs.WriteFull(pkg, result, nil); err != nil {
		t.Fatalf("WriteFull: %v", err)
	}

	q := NewGraphQuery(st)
	deps, err := q.WhatDependsOn("d")
	if err != nil {
		t.Fatalf("WhatDependsOn: %v", err)
	}
	if len(deps) != 2 {
		t.Fatalf("expected 2 dependents of 'd' (c via calls, a via imports), got %+v", deps)
	}
	kinds := map[string]RelationshipKind{}
	for _, d := range deps {
		kinds[d.Entity.Name] = d.RelationshipKind
	}
	if kinds["c"] != RelCalls {
		t.Errorf("expected c to depend on d through a calls relationship, got %v", kinds["c"])
	}
	if kinds["a"] != RelImports {
		t.Errorf("expected a to depend on d through an imports relationship, got %v", kinds["a"])
	}
}

func TestBlastRadiusRespectsMaxDepthAndDedups(t *testing.T) {
	st := openGraphTestStore(t)
	gs := NewGraphStore(st, nil)
	pkg := "demo"
	result := chainParseResult(pkg)
	if err := gs.WriteFull(pkg, result, nil); err != nil {
		t.Fatalf("WriteFull: %v", err)
	}

	q := NewGraphQuery(st)
	affected, err := q.BlastRadius("d.ts", 5)
	if err != nil {
		t.Fatalf("BlastRadius: %v", err)
	}

	depths := map[string]int{}
	for _, r := range affected {
		depths[r.Entity.Name] = r.Depth
	}
	if _, ok := depths["d"]; !ok || depths["d"] != 0 {
		t.Errorf("expected d at depth 0, got %+v", depths)
	}
	if depths["c"] != 1 {
		t.Errorf("expected c at depth 1 (calls d), got %+v", depths)
	}
	if depths["b"] != 2 {
		t.Errorf("expected b at depth 2 (calls c), got %+v", depths)
	}
	if depths["a"] != 1 {
		t.Errorf("expected a at depth 1 (imports d directly), got %+v", depths)
	}

	shallow, err := q.BlastRadius("d.ts", 1)
	if err != nil {
		t.Fatalf("BlastRadius maxDepth=1: %v", err)
	}
	for _, r := range shallow {
		if r.Entity.Name == "b" {
			t.Errorf("expected 'b' to be excluded at maxDepth=1, got %+v", shallow)
		}
	}
}

func TestFindEntitiesFiltersByKindAndRejectsUnknownKind(t *testing.T) {
	st := openGraphTestStore(t)
	gs := NewGraphStore(st, nil)
	pkg := "demo"
	if err := gs.WriteFull(pkg, chainParseResult(pkg), nil); err != nil {
		t.Fatalf("WriteFull: %v", err)
	}

	q := NewGraphQuery(st)
	found, err := q.FindEntities("a", KindFunction, 10)
	if err != nil {
		t.Fatalf("FindEntities: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("expected exactly 1 match for 'a', got %+v", found)
	}

	if _, err := q.FindEntities("a", Kind("bogus"), 10); err == nil {
		t.Errorf("expected FindEntities to reject an unknown kind")
	}
}

func TestGetExportsScopesToPackage(t *testing.T) {
	st := openGraphTestStore(t)
	gs := NewGraphStore(st, nil)
	if err := gs.WriteFull("demo", chainParseResult("demo"), nil); err != nil {
		t.Fatalf("WriteFull: %v", err)
	}

	q := NewGraphQuery(st)
	exports, err := q.GetExports("demo")
	if err != nil {
		t.Fatalf("GetExports: %v", err)
	}
	if len(exports) != 2 {
		t.Fatalf("expected 2 exported entities ('a' and 'd'), got %+v", exports)
	}
}
