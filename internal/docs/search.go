package docs

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"claude-knowledge/internal/embedding"
	"claude-knowledge/internal/logging"
)

// Search embeds query and ranks DocSection and CodeDoc rows together by
// cosine similarity, returning the top limit results.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	timer := logging.StartTimer(logging.CategoryDocs, "Search")
	defer timer.Stop()

	if s.embedder == nil {
		return nil, embedding.ErrUnavailable
	}
	if limit <= 0 {
		limit = 10
	}

	qVec, err := embedding.EmbedForTask(ctx, s.embedder, query, embedding.ContentTypeQuery, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", embedding.ErrUnavailable, err)
	}
	qVec = embedding.NormalizeL2(qVec)

	var results []SearchResult

	secRows, err := s.st.DB().Query(`SELECT id, heading, content, file_path, location, start_line, spec_version, embedding
		FROM doc_sections WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("doc_sections scan: %w", err)
	}
	for secRows.Next() {
		var sec Section
		var specVersion sql.NullString
		var embBytes []byte
		if err := secRows.Scan(&sec.ID, &sec.Heading, &sec.Content, &sec.FilePath, &sec.Location, &sec.StartLine, &specVersion, &embBytes); err != nil {
			secRows.Close()
			return nil, err
		}
		sec.SpecVersion = specVersion.String
		vec := embedding.DecodeVector(embBytes)
		if len(vec) != len(qVec) {
			continue
		}
		score := embedding.DotProduct(qVec, vec)
		secCopy := sec
		results = append(results, SearchResult{Section: &secCopy, Score: score})
	}
	secRows.Close()
	if err := secRows.Err(); err != nil {
		return nil, err
	}

	docRows, err := s.st.DB().Query(`SELECT id, entity_id, content, embedding FROM code_docs WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("code_docs scan: %w", err)
	}
	for docRows.Next() {
		var id, entityID, content string
		var embBytes []byte
		if err := docRows.Scan(&id, &entityID, &content, &embBytes); err != nil {
			docRows.Close()
			return nil, err
		}
		vec := embedding.DecodeVector(embBytes)
		if len(vec) != len(qVec) {
			continue
		}
		score := embedding.DotProduct(qVec, vec)
		results = append(results, SearchResult{CodeDocID: id, CodeDocEntity: entityID, CodeDocContent: content, Score: score})
	}
	docRows.Close()
	if err := docRows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// ForCode returns the CodeDocs whose entity_id equals entityID. DocSections
// are not returned: no DocSection rows are looked up for the entity.
func (s *Store) ForCode(entityID string) ([]SearchResult, error) {
	rows, err := s.st.DB().Query(`SELECT id, entity_id, content FROM code_docs WHERE entity_id = ?`, entityID)
	if err != nil {
		return nil, fmt.Errorf("code_docs for entity: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var id, eid, content string
		if err := rows.Scan(&id, &eid, &content); err != nil {
			return nil, err
		}
		out = append(out, SearchResult{CodeDocID: id, CodeDocEntity: eid, CodeDocContent: content})
	}
	return out, rows.Err()
}
