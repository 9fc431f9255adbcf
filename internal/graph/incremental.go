package graph

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"claude-knowledge/internal/logging"
	"claude-knowledge/internal/store"
)

// IncrementalPlan describes what an incremental reparse of a package has
// to do: which on-disk files changed since their recorded mtime, which
// are new, and which recorded files no longer exist. The code_file_meta
// table is the sole source of truth for the decision; a file whose
// modification time matches its recorded mtime is skipped entirely.
type IncrementalPlan struct {
	ChangedFiles []string // absolute paths: new or mtime-changed files
	DeletedFiles []string // package-relative paths of files gone from disk
	ContextFiles []string // absolute paths of every current package file
	FileModTimes map[string]int64 // package-relative path -> mtime ms
	Unchanged    bool
	Duration     time.Duration
}

// PlanIncremental diffs the package's on-disk files against the recorded
// per-file parse state and returns the reparse plan.
func PlanIncremental(st *store.Store, pkg, root string) (*IncrementalPlan, error) {
	start := time.Now()

	files, err := discoverFiles(root)
	if err != nil {
		return nil, fmt.Errorf("discover files under %s: %w", root, err)
	}

	recorded := make(map[string]int64)
	rows, err := st.DB().Query(`SELECT file_path, mtime_ms FROM code_file_meta WHERE package = ?`, pkg)
	if err != nil {
		return nil, fmt.Errorf("read file metadata for %s: %w", pkg, err)
	}
	for rows.Next() {
		var path string
		var mtime int64
		if err := rows.Scan(&path, &mtime); err != nil {
			rows.Close()
			return nil, err
		}
		recorded[path] = mtime
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	plan := &IncrementalPlan{FileModTimes: make(map[string]int64, len(files))}
	onDisk := make(map[string]bool, len(files))

	for _, path := range files {
		rel := relPathOf(root, path)
		onDisk[rel] = true
		plan.ContextFiles = append(plan.ContextFiles, path)

		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		mtimeMs := info.ModTime().UnixMilli()
		plan.FileModTimes[rel] = mtimeMs

		if prev, ok := recorded[rel]; ok && prev == mtimeMs {
			continue
		}
		plan.ChangedFiles = append(plan.ChangedFiles, path)
	}

	for rel := range recorded {
		if !onDisk[rel] {
			plan.DeletedFiles = append(plan.DeletedFiles, rel)
		}
	}

	plan.Unchanged = len(plan.ChangedFiles) == 0 && len(plan.DeletedFiles) == 0
	plan.Duration = time.Since(start)
	logging.Graph("incremental plan for %s: changed=%d deleted=%d unchanged=%v",
		pkg, len(plan.ChangedFiles), len(plan.DeletedFiles), plan.Unchanged)
	return plan, nil
}

// relModTimes maps the plan's changed files to package-relative paths for
// GraphStore's metadata upsert.
func (p *IncrementalPlan) relModTimes(root string) (changedRel []string, modTimes map[string]int64) {
	modTimes = make(map[string]int64, len(p.ChangedFiles))
	for _, path := range p.ChangedFiles {
		rel := relPathOf(root, path)
		changedRel = append(changedRel, rel)
		modTimes[rel] = p.FileModTimes[rel]
	}
	return changedRel, modTimes
}

// ParseAndStoreIncremental runs the whole incremental protocol for one
// package: plan from recorded mtimes, parse only the changed files (with
// the rest of the package as resolution context), and hand the result to
// GraphStore's incremental write. A plan with nothing to do is a no-op.
func ParseAndStoreIncremental(st *store.Store, gs *GraphStore, pkg, root string) (*IncrementalPlan, *ParseResult, error) {
	plan, err := PlanIncremental(st, pkg, root)
	if err != nil {
		return nil, nil, err
	}
	if plan.Unchanged {
		return plan, newParseResult(), nil
	}

	p := NewParser(root)
	var result *ParseResult
	if len(plan.ChangedFiles) > 0 {
		result, err = p.ParseIncremental(pkg, plan.ChangedFiles, plan.ContextFiles)
		if err != nil {
			return plan, nil, err
		}
	} else {
		result = newParseResult()
	}

	changedRel, modTimes := plan.relModTimes(root)
	if err := gs.WriteIncremental(pkg, result, changedRel, plan.DeletedFiles, modTimes); err != nil {
		return plan, result, err
	}
	return plan, result, nil
}

// fullModTimes stats every parsed file so a full-mode write records the
// mtimes the next incremental run diffs against.
func fullModTimes(root string, result *ParseResult) map[string]int64 {
	modTimes := make(map[string]int64)
	for _, e := range result.Entities {
		if _, ok := modTimes[e.FilePath]; ok {
			continue
		}
		if info, err := os.Stat(filepath.Join(root, e.FilePath)); err == nil {
			modTimes[e.FilePath] = info.ModTime().UnixMilli()
		}
	}
	return modTimes
}

// ParseAndStoreFull runs a full-mode parse and write for one package.
func ParseAndStoreFull(gs *GraphStore, pkg, root string) (*ParseResult, error) {
	p := NewParser(root)
	result, err := p.Parse(pkg, root)
	if err != nil {
		return nil, err
	}
	if err := gs.WriteFull(pkg, result, fullModTimes(root, result)); err != nil {
		return result, err
	}
	return result, nil
}
