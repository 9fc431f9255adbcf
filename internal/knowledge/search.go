package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"claude-knowledge/internal/embedding"
	"claude-knowledge/internal/logging"
	"claude-knowledge/internal/store"
)

// SearchSimilar embeds text and returns the top-opts.Limit Learning rows
// with cosine similarity >= opts.Threshold, sorted descending by score.
// Returns embedding.ErrUnavailable when no embedder is configured, and an
// error wrapping it when the embedder call fails, so callers can detect
// both with errors.Is and fall back to Query for structured-only retrieval.
func (s *Store) SearchSimilar(ctx context.Context, text string, opts SearchOptions) ([]SearchResult, error) {
	timer := logging.StartTimer(logging.CategoryKnowledge, "SearchSimilar")
	defer timer.Stop()

	if s.embedder == nil {
		return nil, embedding.ErrUnavailable
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	query, err := embedding.EmbedForTask(ctx, s.embedder, text, embedding.ContentTypeQuery, true)
	if err != nil {
		logging.KnowledgeWarn("embedder unavailable for search: %v", err)
		return nil, fmt.Errorf("%w: %v", embedding.ErrUnavailable, err)
	}
	query = embedding.NormalizeL2(query)

	sqlQuery := `SELECT id, content, source_issue, code_area, file_path, confidence, created_at, embedding
		FROM learnings WHERE embedding IS NOT NULL`
	var args []any
	if opts.CodeArea != "" {
		sqlQuery += ` AND code_area = ?`
		args = append(args, opts.CodeArea)
	}
	if opts.FilePath != "" {
		sqlQuery += ` AND file_path = ?`
		args = append(args, opts.FilePath)
	}

	rows, err := s.st.DB().Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("search similar scan: %w", err)
	}
	defer rows.Close()

	var candidates []SearchResult
	for rows.Next() {
		var (
			id, content                     string
			sourceIssue, codeArea, filePath sql.NullString
			confidence                      sql.NullFloat64
			createdAt                       interface{}
			embBytes                       []byte
		)
		if err := rows.Scan(&id, &content, &sourceIssue, &codeArea, &filePath, &confidence, &createdAt, &embBytes); err != nil {
			return nil, err
		}
		vec := embedding.DecodeVector(embBytes)
		if len(vec) != len(query) {
			continue
		}
		score := embedding.DotProduct(query, vec)
		if score < opts.Threshold {
			continue
		}
		candidates = append(candidates, SearchResult{
			Learning: Learning{
				ID: id, Content: content,
				SourceIssue:   sourceIssue.String,
				CodeArea:      codeArea.String,
				FilePath:      filePath.String,
				HasConfidence: confidence.Valid,
				Confidence:    confidence.Float64,
			},
			Score: score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	if opts.IncludeRelated {
		for i := range candidates {
			if err := s.attachRelated(&candidates[i]); err != nil {
				return nil, err
			}
		}
	}

	return candidates, nil
}

func (s *Store) attachRelated(res *SearchResult) error {
	if res.Learning.CodeArea != "" {
		rows, err := s.st.DB().Query(`SELECT id, name, description, code_area, created_at FROM patterns WHERE code_area = ?`,
			res.Learning.CodeArea)
		if err != nil {
			return fmt.Errorf("related patterns: %w", err)
		}
		for rows.Next() {
			var p Pattern
			var desc, area sql.NullString
			if err := rows.Scan(&p.ID, &p.Name, &desc, &area, &p.CreatedAt); err != nil {
				rows.Close()
				return err
			}
			p.Description = desc.String
			p.CodeArea = area.String
			res.RelatedPatterns = append(res.RelatedPatterns, p)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
	}

	if res.Learning.FilePath != "" {
		rows, err := s.st.DB().Query(`SELECT id, description, how_fixed, file_path, created_at FROM mistakes WHERE file_path = ?`,
			res.Learning.FilePath)
		if err != nil {
			return fmt.Errorf("related mistakes: %w", err)
		}
		for rows.Next() {
			var m Mistake
			var howFixed, path sql.NullString
			if err := rows.Scan(&m.ID, &m.Description, &howFixed, &path, &m.CreatedAt); err != nil {
				rows.Close()
				return err
			}
			m.HowFixed = howFixed.String
			m.FilePath = path.String
			res.RelatedMistakes = append(res.RelatedMistakes, m)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
	}
	return nil
}

// DeleteLearning removes a Learning and its edges in one transaction, per
// the no-orphan-edges invariant.
func (s *Store) DeleteLearning(id string) error {
	return s.st.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM knowledge_relationships WHERE from_id = ? OR to_id = ?`, id, id); err != nil {
			return err
		}
		res, err := tx.Exec(`DELETE FROM learnings WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return fmt.Errorf("%w: learning %s", store.ErrNotFound, id)
		}
		return nil
	})
}
