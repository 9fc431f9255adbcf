package graph

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPlanIncrementalSkipsUnchangedFiles(t *testing.T) {
	st := openGraphTestStore(t)
	gs := NewGraphStore(st, nil)
	root := t.TempDir()
	pkg := "demo"

	writeProjectFile(t, root, "a.ts", "export function a() {}\n")
	writeProjectFile(t, root, "b.ts", "export function b() {}\n")

	if _, err := ParseAndStoreFull(gs, pkg, root); err != nil {
		t.Fatalf("ParseAndStoreFull: %v", err)
	}

	plan, err := PlanIncremental(st, pkg, root)
	if err != nil {
		t.Fatalf("PlanIncremental: %v", err)
	}
	if !plan.Unchanged {
		t.Fatalf("expected an unchanged plan right after a full parse, got %+v", plan)
	}
}

func TestPlanIncrementalDetectsChangedAndDeletedFiles(t *testing.T) {
	st := openGraphTestStore(t)
	gs := NewGraphStore(st, nil)
	root := t.TempDir()
	pkg := "demo"

	writeProjectFile(t, root, "a.ts", "export function a() {}\n")
	writeProjectFile(t, root, "b.ts", "export function b() {}\n")

	if _, err := ParseAndStoreFull(gs, pkg, root); err != nil {
		t.Fatalf("ParseAndStoreFull: %v", err)
	}

	// Touch a.ts into the future so the mtime diff is unambiguous, and
	// remove b.ts entirely.
	aPath := filepath.Join(root, "a.ts")
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(aPath, future, future); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
	if err := os.Remove(filepath.Join(root, "b.ts")); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	plan, err := PlanIncremental(st, pkg, root)
	if err != nil {
		t.Fatalf("PlanIncremental: %v", err)
	}
	if len(plan.ChangedFiles) != 1 || filepath.Base(plan.ChangedFiles[0]) != "a.ts" {
		t.Errorf("expected a.ts as the sole changed file, got %+v", plan.ChangedFiles)
	}
	if len(plan.DeletedFiles) != 1 || plan.DeletedFiles[0] != "b.ts" {
		t.Errorf("expected b.ts as the sole deleted file, got %+v", plan.DeletedFiles)
	}
}

func TestParseAndStoreIncrementalRemovesDeletedFileState(t *testing.T) {
	st := openGraphTestStore(t)
	gs := NewGraphStore(st, nil)
	root := t.TempDir()
	pkg := "demo"

	writeProjectFile(t, root, "keep.ts", "export function keep() {}\n")
	writeProjectFile(t, root, "old.ts", "export function old() {}\n")

	if _, err := ParseAndStoreFull(gs, pkg, root); err != nil {
		t.Fatalf("ParseAndStoreFull: %v", err)
	}
	if err := os.Remove(filepath.Join(root, "old.ts")); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	plan, _, err := ParseAndStoreIncremental(st, gs, pkg, root)
	if err != nil {
		t.Fatalf("ParseAndStoreIncremental: %v", err)
	}
	if plan.Unchanged {
		t.Fatal("expected the plan to register the deleted file")
	}

	var entities int
	if err := st.DB().QueryRow(`SELECT COUNT(*) FROM code_entities WHERE package = ? AND file_path = ?`, pkg, "old.ts").Scan(&entities); err != nil {
		t.Fatalf("count entities: %v", err)
	}
	if entities != 0 {
		t.Errorf("expected no entities left for old.ts, got %d", entities)
	}

	var metaRows int
	if err := st.DB().QueryRow(`SELECT COUNT(*) FROM code_file_meta WHERE package = ? AND file_path = ?`, pkg, "old.ts").Scan(&metaRows); err != nil {
		t.Fatalf("count file meta: %v", err)
	}
	if metaRows != 0 {
		t.Errorf("expected file metadata for old.ts to be removed, got %d rows", metaRows)
	}

	var keepEntities int
	if err := st.DB().QueryRow(`SELECT COUNT(*) FROM code_entities WHERE package = ? AND file_path = ?`, pkg, "keep.ts").Scan(&keepEntities); err != nil {
		t.Fatalf("count keep entities: %v", err)
	}
	if keepEntities == 0 {
		t.Error("expected keep.ts entities to survive the incremental run")
	}
}
