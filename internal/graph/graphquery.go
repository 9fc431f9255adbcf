package graph

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"claude-knowledge/internal/logging"
	"claude-knowledge/internal/store"
)

// GraphQuery answers read-only structural questions over the code graph.
// Every query uses bound placeholders so an entity name containing SQL
// metacharacters cannot alter query structure.
type GraphQuery struct {
	st *store.Store
}

// NewGraphQuery wraps a store handle for read-only graph queries.
func NewGraphQuery(st *store.Store) *GraphQuery {
	return &GraphQuery{st: st}
}

// EntityRecord is a plain, fully materialized code entity row.
type EntityRecord struct {
	ID       string
	Package  string
	FilePath string
	Kind     Kind
	Name     string
	Line     int
	Exported bool
	Metadata map[string]any
	JSDoc    string
}

// DependencyRecord pairs a related entity with the relationship kind that
// connects it to the query target.
type DependencyRecord struct {
	Entity           EntityRecord
	RelationshipKind RelationshipKind
}

// BlastRadiusRecord carries the hop count an entity was reached at.
type BlastRadiusRecord struct {
	Entity EntityRecord
	Depth  int
}

// GraphSummary totals entities and relationships, broken down by kind and
// by package.
type GraphSummary struct {
	TotalEntities       int
	TotalRelationships  int
	EntitiesByKind      map[Kind]int
	RelationshipsByKind map[RelationshipKind]int
	EntitiesByPackage   map[string]int
}

func likePattern(s string) string {
	return "%" + s + "%"
}

func scanEntity(rows interface {
	Scan(dest ...any) error
}) (EntityRecord, error) {
	var rec EntityRecord
	var kind string
	var exported int
	var metaJSON, jsdoc sql.NullString
	if err := rows.Scan(&rec.ID, &rec.Package, &rec.FilePath, &kind, &rec.Name, &rec.Line, &exported, &metaJSON, &jsdoc); err != nil {
		return rec, err
	}
	rec.Kind = Kind(kind)
	rec.Exported = exported != 0
	rec.JSDoc = jsdoc.String
	if metaJSON.String != "" {
		_ = json.Unmarshal([]byte(metaJSON.String), &rec.Metadata)
	}
	return rec, nil
}

const entityColumns = `id, package, file_path, kind, name, line, exported, metadata, jsdoc`

// WhatCalls returns distinct callers of any entity whose name matches
// namePattern (case-sensitive LIKE with % on both sides), ordered by file
// path then line number.
func (q *GraphQuery) WhatCalls(namePattern string) ([]EntityRecord, error) {
	timer := logging.StartTimer(logging.CategoryGraph, "WhatCalls")
	defer timer.Stop()

	rows, err := q.st.DB().Query(fmt.Sprintf(`
		SELECT DISTINCT %s FROM code_entities
		WHERE id IN (
			SELECT cr.from_id FROM code_relationships cr
			JOIN code_entities target ON target.id = cr.to_id
			WHERE cr.kind = ? AND target.name LIKE ?
		)
		ORDER BY file_path, line`, prefixed("code_entities", entityColumns)),
		string(RelCalls), likePattern(namePattern))
	if err != nil {
		return nil, fmt.Errorf("whatCalls query: %w", err)
	}
	defer rows.Close()
	return scanEntities(rows)
}

// WhatDependsOn returns entities that depend on any entity matching
// namePattern through an imports, extends, implements, or calls edge, with
// the relationship kind alongside each result.
func (q *GraphQuery) WhatDependsOn(namePattern string) ([]DependencyRecord, error) {
	timer := logging.StartTimer(logging.CategoryGraph, "WhatDependsOn")
	defer timer.Stop()

	rows, err := q.st.DB().Query(fmt.Sprintf(`
		SELECT %s, cr.kind FROM code_entities dep
		JOIN code_relationships cr ON cr.from_id = dep.id
		JOIN code_entities target ON target.id = cr.to_id
		WHERE target.name LIKE ? AND cr.kind IN (?, ?, ?, ?)
		ORDER BY dep.file_path, dep.line`, prefixed("dep", entityColumns)),
		likePattern(namePattern), string(RelImports), string(RelExtends), string(RelImplements), string(RelCalls))
	if err != nil {
		return nil, fmt.Errorf("whatDependsOn query: %w", err)
	}
	defer rows.Close()

	var out []DependencyRecord
	for rows.Next() {
		var rec EntityRecord
		var kind string
		var eKind string
		var exported int
		var metaJSON, jsdoc sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Package, &rec.FilePath, &eKind, &rec.Name, &rec.Line, &exported, &metaJSON, &jsdoc, &kind); err != nil {
			return nil, err
		}
		rec.Kind = Kind(eKind)
		rec.Exported = exported != 0
		rec.JSDoc = jsdoc.String
		if metaJSON.String != "" {
			_ = json.Unmarshal([]byte(metaJSON.String), &rec.Metadata)
		}
		out = append(out, DependencyRecord{Entity: rec, RelationshipKind: RelationshipKind(kind)})
	}
	return out, rows.Err()
}

// BlastRadius computes the recursive closure starting from every entity
// whose filePath matches filePattern, expanding along inverse
// imports/calls/extends/implements edges up to maxDepth hops. The
// recursive step uses UNION (not UNION ALL) and stops at maxDepth, so a
// cycle cannot make it run forever; the final GROUP BY yields each entity
// once, at its minimum depth.
func (q *GraphQuery) BlastRadius(filePattern string, maxDepth int) ([]BlastRadiusRecord, error) {
	timer := logging.StartTimer(logging.CategoryGraph, "BlastRadius")
	defer timer.Stop()

	if maxDepth <= 0 {
		maxDepth = 5
	}

	query := fmt.Sprintf(`
		WITH RECURSIVE affected(id, depth) AS (
			SELECT id, 0 FROM code_entities WHERE file_path LIKE ?
			UNION
			SELECT cr.from_id, affected.depth + 1
			FROM code_relationships cr
			JOIN affected ON cr.to_id = affected.id
			WHERE cr.kind IN (?, ?, ?, ?) AND affected.depth < ?
		)
		SELECT %s, MIN(affected.depth) FROM code_entities
		JOIN affected ON affected.id = code_entities.id
		GROUP BY code_entities.id
		ORDER BY MIN(affected.depth), code_entities.file_path, code_entities.line`,
		prefixed("code_entities", entityColumns))

	rows, err := q.st.DB().Query(query, likePattern(filePattern),
		string(RelImports), string(RelCalls), string(RelExtends), string(RelImplements), maxDepth)
	if err != nil {
		return nil, fmt.Errorf("blastRadius query: %w", err)
	}
	defer rows.Close()

	var out []BlastRadiusRecord
	for rows.Next() {
		var rec EntityRecord
		var kind string
		var exported int
		var metaJSON, jsdoc sql.NullString
		var depth int
		if err := rows.Scan(&rec.ID, &rec.Package, &rec.FilePath, &kind, &rec.Name, &rec.Line, &exported, &metaJSON, &jsdoc, &depth); err != nil {
			return nil, err
		}
		rec.Kind = Kind(kind)
		rec.Exported = exported != 0
		rec.JSDoc = jsdoc.String
		if metaJSON.String != "" {
			_ = json.Unmarshal([]byte(metaJSON.String), &rec.Metadata)
		}
		out = append(out, BlastRadiusRecord{Entity: rec, Depth: depth})
	}
	return out, rows.Err()
}

var validKinds = map[Kind]bool{
	KindFunction: true, KindClass: true, KindInterface: true, KindType: true,
	KindVariable: true, KindEnum: true, KindFile: true,
}

// FindEntities is a symbol search by name pattern, optionally restricted
// to one kind from the closed enum; limit defaults to 50.
func (q *GraphQuery) FindEntities(namePattern string, kind Kind, limit int) ([]EntityRecord, error) {
	if kind != "" && !validKinds[kind] {
		return nil, fmt.Errorf("%w: unknown entity kind %q", store.ErrInvalidInput, kind)
	}
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`SELECT %s FROM code_entities WHERE name LIKE ?`, entityColumns)
	args := []any{likePattern(namePattern)}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY file_path, line LIMIT ?`
	args = append(args, limit)

	rows, err := q.st.DB().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("findEntities query: %w", err)
	}
	defer rows.Close()
	return scanEntities(rows)
}

// GetExports returns every exported=true entity, optionally restricted to
// one package.
func (q *GraphQuery) GetExports(pkg string) ([]EntityRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM code_entities WHERE exported = 1`, entityColumns)
	var args []any
	if pkg != "" {
		query += ` AND package = ?`
		args = append(args, pkg)
	}
	query += ` ORDER BY file_path, line`

	rows, err := q.st.DB().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("getExports query: %w", err)
	}
	defer rows.Close()
	return scanEntities(rows)
}

// GetCallers is the exact-match variant of WhatCalls restricted to
// function targets.
func (q *GraphQuery) GetCallers(exactName string) ([]EntityRecord, error) {
	rows, err := q.st.DB().Query(fmt.Sprintf(`
		SELECT DISTINCT %s FROM code_entities
		WHERE id IN (
			SELECT cr.from_id FROM code_relationships cr
			JOIN code_entities target ON target.id = cr.to_id
			WHERE cr.kind = ? AND target.name = ? AND target.kind = ?
		)
		ORDER BY file_path, line`, prefixed("code_entities", entityColumns)),
		string(RelCalls), exactName, string(KindFunction))
	if err != nil {
		return nil, fmt.Errorf("getCallers query: %w", err)
	}
	defer rows.Close()
	return scanEntities(rows)
}

// GetSummary totals entities and relationships, optionally restricted to
// one package.
func (q *GraphQuery) GetSummary(pkg string) (GraphSummary, error) {
	summary := GraphSummary{
		EntitiesByKind:      make(map[Kind]int),
		RelationshipsByKind: make(map[RelationshipKind]int),
		EntitiesByPackage:   make(map[string]int),
	}

	entityQuery := `SELECT package, kind, COUNT(*) FROM code_entities`
	var args []any
	if pkg != "" {
		entityQuery += ` WHERE package = ?`
		args = append(args, pkg)
	}
	entityQuery += ` GROUP BY package, kind`

	rows, err := q.st.DB().Query(entityQuery, args...)
	if err != nil {
		return summary, fmt.Errorf("summary entity query: %w", err)
	}
	for rows.Next() {
		var pkgName, kind string
		var count int
		if err := rows.Scan(&pkgName, &kind, &count); err != nil {
			rows.Close()
			return summary, err
		}
		summary.EntitiesByKind[Kind(kind)] += count
		summary.EntitiesByPackage[pkgName] += count
		summary.TotalEntities += count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return summary, err
	}

	relQuery := `SELECT cr.kind, COUNT(*) FROM code_relationships cr`
	if pkg != "" {
		relQuery += ` JOIN code_entities e ON e.id = cr.from_id WHERE e.package = ?`
	}
	relQuery += ` GROUP BY cr.kind`

	relRows, err := q.st.DB().Query(relQuery, args...)
	if err != nil {
		return summary, fmt.Errorf("summary relationship query: %w", err)
	}
	defer relRows.Close()
	for relRows.Next() {
		var kind string
		var count int
		if err := relRows.Scan(&kind, &count); err != nil {
			return summary, err
		}
		summary.RelationshipsByKind[RelationshipKind(kind)] += count
		summary.TotalRelationships += count
	}
	return summary, relRows.Err()
}

func scanEntities(rows *sql.Rows) ([]EntityRecord, error) {
	var out []EntityRecord
	for rows.Next() {
		var rec EntityRecord
		var kind string
		var exported int
		var metaJSON, jsdoc sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Package, &rec.FilePath, &kind, &rec.Name, &rec.Line, &exported, &metaJSON, &jsdoc); err != nil {
			return nil, err
		}
		rec.Kind = Kind(kind)
		rec.Exported = exported != 0
		rec.JSDoc = jsdoc.String
		if metaJSON.String != "" {
			_ = json.Unmarshal([]byte(metaJSON.String), &rec.Metadata)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// prefixed rewrites a comma-separated column list to reference alias,
// e.g. prefixed("target", "id, name") -> "target.id, target.name".
func prefixed(alias, columns string) string {
	cols := strings.Split(columns, ",")
	for i, col := range cols {
		cols[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}
