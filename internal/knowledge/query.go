package knowledge

import (
	"fmt"
	"strings"

	"claude-knowledge/internal/logging"
)

// Query returns Learnings matching filter's structured predicates. Every
// supplied keyword must match content case-insensitively (AND); limit
// defaults to 50.
func (s *Store) Query(filter Filter) ([]Learning, error) {
	timer := logging.StartTimer(logging.CategoryKnowledge, "Query")
	defer timer.Stop()

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, content, source_issue, code_area, file_path, confidence, created_at FROM learnings WHERE 1=1`
	var args []any

	if filter.CodeArea != "" {
		query += ` AND code_area = ?`
		args = append(args, filter.CodeArea)
	}
	if filter.FilePath != "" {
		query += ` AND file_path = ?`
		args = append(args, filter.FilePath)
	}
	if filter.IssueNumber != "" {
		query += ` AND source_issue = ?`
		args = append(args, filter.IssueNumber)
	}
	for _, kw := range filter.Keywords {
		query += ` AND LOWER(content) LIKE ?`
		args = append(args, "%"+strings.ToLower(kw)+"%")
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.st.DB().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("knowledge query: %w", err)
	}
	defer rows.Close()

	var out []Learning
	for rows.Next() {
		l, err := scanLearning(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListCodeAreas returns every known CodeArea name.
func (s *Store) ListCodeAreas() ([]string, error) {
	rows, err := s.st.DB().Query(`SELECT name FROM code_areas ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list code areas: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// ListFiles returns every known File path referenced by a knowledge entity.
func (s *Store) ListFiles() ([]string, error) {
	rows, err := s.st.DB().Query(`SELECT path FROM knowledge_files ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		out = append(out, path)
	}
	return out, rows.Err()
}

// Stats totals Learning/Pattern/Mistake/CodeArea/File/Topic rows, used by
// `knowledge stats`.
type Stats struct {
	Learnings int
	Patterns  int
	Mistakes  int
	CodeAreas int
	Files     int
	Topics    int
}

// Summary computes Stats with one query per table.
func (s *Store) Summary() (Stats, error) {
	var stats Stats
	counts := []struct {
		table string
		dest  *int
	}{
		{"learnings", &stats.Learnings},
		{"patterns", &stats.Patterns},
		{"mistakes", &stats.Mistakes},
		{"code_areas", &stats.CodeAreas},
		{"knowledge_files", &stats.Files},
		{"topics", &stats.Topics},
	}
	for _, c := range counts {
		if err := s.st.DB().QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %s`, c.table)).Scan(c.dest); err != nil {
			return stats, fmt.Errorf("count %s: %w", c.table, err)
		}
	}
	return stats, nil
}
