package graph

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"claude-knowledge/internal/embedding"
	"claude-knowledge/internal/logging"
	"claude-knowledge/internal/store"
)

// GraphStore persists ParseResults into the code-graph tables, in
// either full or incremental mode, both transactional.
type GraphStore struct {
	st       *store.Store
	embedder embedding.Embedder // optional; CodeDoc embedding is skipped when nil
}

// NewGraphStore wraps a store handle. embedder may be nil; CodeDoc rows are
// still written, just without an embedding vector, matching the
// EmbedderUnavailable fallback policy.
func NewGraphStore(st *store.Store, embedder embedding.Embedder) *GraphStore {
	return &GraphStore{st: st, embedder: embedder}
}

// WriteFull deletes every entity, relationship, and file-metadata row for
// pkg and bulk-inserts result's entities and edges, all in one
// transaction. Duplicate relationships (same from/to/kind) are ignored.
func (g *GraphStore) WriteFull(pkg string, result *ParseResult, fileModTimes map[string]int64) error {
	timer := logging.StartTimer(logging.CategoryGraph, "WriteFull")
	defer timer.Stop()

	err := g.st.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM code_entities WHERE package = ?`, pkg); err != nil {
			return fmt.Errorf("delete entities: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM code_relationships WHERE from_id LIKE ? OR to_id LIKE ?`, pkg+":%", pkg+":%"); err != nil {
			return fmt.Errorf("delete relationships: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM code_file_meta WHERE package = ?`, pkg); err != nil {
			return fmt.Errorf("delete file meta: %w", err)
		}

		if err := insertEntities(tx, result.Entities); err != nil {
			return err
		}
		if err := insertRelationships(tx, result.Relationships); err != nil {
			return err
		}
		return upsertFileMeta(tx, pkg, result, fileModTimes)
	})
	if err != nil {
		return err
	}

	g.writeCodeDocs(result)
	logging.Graph("full graph write complete: package=%s entities=%d relationships=%d filesSkipped=%d",
		pkg, len(result.Entities), len(result.Relationships), len(result.FilesSkipped))
	return nil
}

// WriteIncremental applies result (entities/edges for only the changed
// files) plus a deleted-file list: compute the
// affected-file set, delete entities/edges scoped to it, insert the new
// data, then upsert or delete file-metadata rows.
func (g *GraphStore) WriteIncremental(pkg string, result *ParseResult, changedFiles, deletedFiles []string, fileModTimes map[string]int64) error {
	timer := logging.StartTimer(logging.CategoryGraph, "WriteIncremental")
	defer timer.Stop()

	affected := make(map[string]bool, len(changedFiles)+len(deletedFiles))
	for _, f := range changedFiles {
		affected[f] = true
	}
	for _, f := range deletedFiles {
		affected[f] = true
	}

	err := g.st.Transaction(func(tx *sql.Tx) error {
		for filePath := range affected {
			if err := deleteEntitiesForFile(tx, pkg, filePath); err != nil {
				return err
			}
		}
		if err := insertEntities(tx, result.Entities); err != nil {
			return err
		}
		if err := insertRelationships(tx, result.Relationships); err != nil {
			return err
		}
		for _, f := range changedFiles {
			if err := upsertOneFileMeta(tx, pkg, f, fileModTimes[f], countEntitiesForFile(result, f)); err != nil {
				return err
			}
		}
		for _, f := range deletedFiles {
			if _, err := tx.Exec(`DELETE FROM code_file_meta WHERE package = ? AND file_path = ?`, pkg, f); err != nil {
				return fmt.Errorf("delete file meta for %s: %w", f, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	g.writeCodeDocs(result)
	logging.Graph("incremental graph write complete: package=%s affected=%d entities=%d",
		pkg, len(affected), len(result.Entities))
	return nil
}

func deleteEntitiesForFile(tx *sql.Tx, pkg, filePath string) error {
	rows, err := tx.Query(`SELECT id FROM code_entities WHERE package = ? AND file_path = ?`, pkg, filePath)
	if err != nil {
		return fmt.Errorf("select entities for %s: %w", filePath, err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()

	for _, id := range ids {
		if _, err := tx.Exec(`DELETE FROM code_relationships WHERE from_id = ? OR to_id = ?`, id, id); err != nil {
			return fmt.Errorf("delete relationships for %s: %w", id, err)
		}
	}
	if _, err := tx.Exec(`DELETE FROM code_entities WHERE package = ? AND file_path = ?`, pkg, filePath); err != nil {
		return fmt.Errorf("delete entities for %s: %w", filePath, err)
	}
	return nil
}

func insertEntities(tx *sql.Tx, entities []Entity) error {
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO code_entities
		(id, package, file_path, kind, name, line, exported, metadata, jsdoc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entities {
		metaJSON, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", e.ID, err)
		}
		exported := 0
		if e.Exported {
			exported = 1
		}
		if _, err := stmt.Exec(e.ID, e.Package, e.FilePath, string(e.Kind), e.Name, e.Line, exported, string(metaJSON), e.JSDoc); err != nil {
			return fmt.Errorf("insert entity %s: %w", e.ID, err)
		}
	}
	return nil
}

func insertRelationships(tx *sql.Tx, rels []Relationship) error {
	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO code_relationships (from_id, to_id, kind, metadata) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rels {
		metaJSON, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("marshal relationship metadata %s->%s: %w", r.FromID, r.ToID, err)
		}
		if _, err := stmt.Exec(r.FromID, r.ToID, string(r.Kind), string(metaJSON)); err != nil {
			return fmt.Errorf("insert relationship %s->%s: %w", r.FromID, r.ToID, err)
		}
	}
	return nil
}

func upsertFileMeta(tx *sql.Tx, pkg string, result *ParseResult, fileModTimes map[string]int64) error {
	counts := make(map[string]int)
	for _, e := range result.Entities {
		if e.Kind == KindFile {
			continue
		}
		counts[e.FilePath]++
	}
	for filePath, count := range counts {
		if err := upsertOneFileMeta(tx, pkg, filePath, fileModTimes[filePath], count); err != nil {
			return err
		}
	}
	return nil
}

func upsertOneFileMeta(tx *sql.Tx, pkg, filePath string, mtimeMs int64, entityCount int) error {
	_, err := tx.Exec(`INSERT INTO code_file_meta (package, file_path, mtime_ms, last_parsed_at, entity_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(package, file_path) DO UPDATE SET mtime_ms = excluded.mtime_ms, last_parsed_at = excluded.last_parsed_at, entity_count = excluded.entity_count`,
		pkg, filePath, mtimeMs, time.Now().UTC().Format(time.RFC3339), entityCount)
	if err != nil {
		return fmt.Errorf("upsert file meta for %s: %w", filePath, err)
	}
	return nil
}

func countEntitiesForFile(result *ParseResult, filePath string) int {
	count := 0
	for _, e := range result.Entities {
		if e.FilePath == filePath && e.Kind != KindFile {
			count++
		}
	}
	return count
}

// writeCodeDocs creates/replaces CodeDoc rows for every entity with a
// non-empty JSDoc block, as a post-write step. Runs outside the
// write transaction since it may block on the embedder.
func (g *GraphStore) writeCodeDocs(result *ParseResult) {
	for _, e := range result.Entities {
		if e.JSDoc == "" {
			continue
		}
		if err := g.writeCodeDoc(e); err != nil {
			logging.GraphWarn("failed to write code doc for %s: %v", e.ID, err)
		}
	}
}

func (g *GraphStore) writeCodeDoc(e Entity) error {
	description, tags := parseJSDoc(e.JSDoc)

	var embBytes []byte
	var dim int
	var model string
	if g.embedder != nil {
		v, err := embedding.EmbedForTask(context.Background(), g.embedder, e.JSDoc, embedding.ContentTypeCode, false)
		if err != nil {
			logging.GraphWarn("embedder unavailable while writing code doc for %s: %v", e.ID, err)
		} else {
			embBytes = embedding.EncodeVector(embedding.NormalizeL2(v))
			dim = g.embedder.Dimensions()
			model = g.embedder.Name()
		}
	}

	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return err
	}

	return g.st.Transaction(func(tx *sql.Tx) error {
		id := "codedoc:" + e.ID
		_, err := tx.Exec(`INSERT OR REPLACE INTO code_docs
			(id, entity_id, content, description, tags, embedding, embedding_dim, embedding_model)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, e.ID, e.JSDoc, description, string(tagsJSON), embBytes, dim, model)
		return err
	})
}

// parseJSDoc splits a /** ... */ block into its leading description and
// its @tag lines.
func parseJSDoc(raw string) (description string, tags []string) {
	body := strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(raw, "/**"), "/*"), "*/")
	for _, rawLine := range strings.Split(body, "\n") {
		line := strings.TrimSpace(strings.TrimPrefix(strings.TrimLeft(rawLine, " \t"), "*"))
		if line == "" {
			continue
		}
		if line[0] == '@' {
			tags = append(tags, line)
			continue
		}
		if description != "" {
			description += " "
		}
		description += line
	}
	return description, tags
}
