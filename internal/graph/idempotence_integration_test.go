//go:build integration

package graph

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"claude-knowledge/internal/store"
)

// sortedEntities returns a copy of entities sorted by id, so two
// ParseResults covering the same files can be diffed independent of
// emission order.
func sortedEntities(entities []Entity) []Entity {
	out := append([]Entity(nil), entities...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedRelationships(rels []Relationship) []Relationship {
	out := append([]Relationship(nil), rels...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].FromID != out[j].FromID {
			return out[i].FromID < out[j].FromID
		}
		if out[i].ToID != out[j].ToID {
			return out[i].ToID < out[j].ToID
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// TestWriteFullIsIdempotent exercises the testable-properties invariant
// "storeGraph(parse(dir), pkg) twice with no file changes leaves entity
// count, relationship count, and per-file metadata identical".
func TestWriteFullIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeProjectFile(t, root, "math.ts", `export function square(x: number): number {
	return x * x
}
`)
	writeProjectFile(t, root, "main.ts", `import { square } from './math'

export function run(): number {
	return square(4)
}
`)

	p := NewParser(root)
	first, err := p.Parse("demo", root)
	require.NoError(t, err)

	st := openGraphTestStore(t)
	gs := NewGraphStore(st, nil)
	modTimes := map[string]int64{"math.ts": 1000, "main.ts": 1000}
	require.NoError(t, gs.WriteFull("demo", first, modTimes))

	second, err := p.Parse("demo", root)
	require.NoError(t, err)
	require.NoError(t, gs.WriteFull("demo", second, modTimes))

	if diff := cmp.Diff(sortedEntities(first.Entities), sortedEntities(second.Entities)); diff != "" {
		t.Fatalf("entities differ between identical parses (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(sortedRelationships(first.Relationships), sortedRelationships(second.Relationships)); diff != "" {
		t.Fatalf("relationships differ between identical parses (-first +second):\n%s", diff)
	}

	q := NewGraphQuery(st)
	summary, err := q.GetSummary("demo")
	require.NoError(t, err)
	require.Equal(t, len(first.Entities), summary.TotalEntities)
	require.Equal(t, len(first.Relationships), summary.TotalRelationships)

	var fileMetaCount int
	require.NoError(t, st.DB().QueryRow(`SELECT COUNT(*) FROM code_file_meta WHERE package = ?`, "demo").Scan(&fileMetaCount))
	require.Equal(t, 2, fileMetaCount)
}
