package docs

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/google/uuid"

	"claude-knowledge/internal/embedding"
	"claude-knowledge/internal/logging"
	"claude-knowledge/internal/store"
)

// Store indexes documents and answers similarity search over the result.
// embedder may be nil; sections are still stored without vectors.
type Store struct {
	st       *store.Store
	embedder embedding.Embedder
}

// New wraps a store handle and an optional embedder.
func New(st *store.Store, embedder embedding.Embedder) *Store {
	return &Store{st: st, embedder: embedder}
}

// IndexDocument indexes filePath: computes a content hash, and if it
// matches what's on record (and opts.Force is false) does nothing and
// reports StatusUnchanged. Otherwise it splits the file into sections,
// replaces any existing DocSection rows for the file, embeds each
// section, and emits an IN_DOC edge from each section to a File entity.
func (s *Store) IndexDocument(ctx context.Context, filePath string, opts IndexOptions) (IndexResult, error) {
	timer := logging.StartTimer(logging.CategoryDocs, "IndexDocument")
	defer timer.Stop()

	result := IndexResult{FilePath: filePath}

	raw, err := os.ReadFile(filePath)
	if err != nil {
		return result, fmt.Errorf("read %s: %w", filePath, err)
	}
	hash := contentHash(raw)

	if !opts.Force {
		var existing string
		err := s.st.DB().QueryRow(`SELECT content_hash FROM doc_index WHERE file_path = ?`, filePath).Scan(&existing)
		if err == nil && existing == hash {
			result.Status = StatusUnchanged
			logging.DocsDebug("skip unchanged: %s", filePath)
			return result, nil
		}
		if err != nil && err != sql.ErrNoRows {
			return result, fmt.Errorf("read doc_index for %s: %w", filePath, err)
		}
	}

	raws := splitSections(string(raw))
	sections := make([]Section, 0, len(raws))
	for _, rs := range raws {
		sections = append(sections, Section{
			ID:          "docsection_" + uuid.New().String()[:12],
			Heading:     rs.heading,
			Content:     rs.body,
			FilePath:    filePath,
			Location:    fmt.Sprintf("%s:%d", filePath, rs.startLine),
			StartLine:   rs.startLine,
			SpecVersion: opts.SpecVersion,
		})
	}

	// Section embeddings are computed up front; the embedder may block on
	// the network and must never run inside the write transaction.
	type embedded struct {
		bytes []byte
		dim   int
		model string
	}
	vectors := make([]embedded, len(sections))
	for i, sec := range sections {
		b, dim, model := s.embed(ctx, sec.Heading+"\n"+sec.Content)
		vectors[i] = embedded{bytes: b, dim: dim, model: model}
	}

	err = s.st.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM doc_sections WHERE file_path = ?`, filePath); err != nil {
			return fmt.Errorf("delete old sections for %s: %w", filePath, err)
		}

		fID := fileEntityID(filePath)
		if _, err := tx.Exec(`INSERT OR IGNORE INTO knowledge_files (id, path) VALUES (?, ?)`, fID, filePath); err != nil {
			return fmt.Errorf("ensure file %s: %w", filePath, err)
		}

		for i, sec := range sections {
			emb := vectors[i]
			_, err := tx.Exec(`INSERT INTO doc_sections
				(id, heading, content, file_path, location, start_line, spec_version, embedding, embedding_dim, embedding_model)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				sec.ID, sec.Heading, sec.Content, sec.FilePath, sec.Location, sec.StartLine, nullable(sec.SpecVersion),
				emb.bytes, emb.dim, emb.model)
			if err != nil {
				return fmt.Errorf("insert section %s: %w", sec.ID, err)
			}
			if err := insertEdge(tx, sec.ID, fID, "IN_DOC"); err != nil {
				return err
			}
		}

		_, err := tx.Exec(`INSERT INTO doc_index (file_path, content_hash) VALUES (?, ?)
			ON CONFLICT(file_path) DO UPDATE SET content_hash = excluded.content_hash, indexed_at = CURRENT_TIMESTAMP`,
			filePath, hash)
		return err
	})
	if err != nil {
		return result, err
	}

	result.Status = StatusIndexed
	result.SectionsIndexed = len(sections)
	logging.Docs("indexed %s: %d sections", filePath, len(sections))
	return result, nil
}

// IndexExternal indexes a downloaded external specification the same way
// as IndexDocument, recording specVersion on every section.
func (s *Store) IndexExternal(ctx context.Context, filePath, specVersion string) (IndexResult, error) {
	return s.IndexDocument(ctx, filePath, IndexOptions{Force: true, SpecVersion: specVersion})
}

// FileStatus reports, for one indexed file, whether its on-disk content
// still matches the recorded hash.
type FileStatus struct {
	FilePath string
	Current  bool
}

// Status lists every entry in doc_index with whether it is still current.
func (s *Store) Status() ([]FileStatus, error) {
	rows, err := s.st.DB().Query(`SELECT file_path, content_hash FROM doc_index ORDER BY file_path`)
	if err != nil {
		return nil, fmt.Errorf("doc_index query: %w", err)
	}
	defer rows.Close()

	var out []FileStatus
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, err
		}
		raw, err := os.ReadFile(path)
		current := err == nil && contentHash(raw) == hash
		out = append(out, FileStatus{FilePath: path, Current: current})
	}
	return out, rows.Err()
}

// Clean removes DocSection rows and doc_index entries whose source file no
// longer exists. File-existence checks happen outside the transaction;
// deletions happen inside it.
func (s *Store) Clean() (int, error) {
	rows, err := s.st.DB().Query(`SELECT file_path FROM doc_index`)
	if err != nil {
		return 0, fmt.Errorf("doc_index query: %w", err)
	}
	var missing []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			rows.Close()
			return 0, err
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			missing = append(missing, path)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(missing) == 0 {
		return 0, nil
	}

	err = s.st.Transaction(func(tx *sql.Tx) error {
		for _, path := range missing {
			if _, err := tx.Exec(`DELETE FROM doc_sections WHERE file_path = ?`, path); err != nil {
				return err
			}
			if _, err := tx.Exec(`DELETE FROM doc_index WHERE file_path = ?`, path); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	logging.Docs("cleaned %d missing doc files", len(missing))
	return len(missing), nil
}

func fileEntityID(path string) string {
	return "file:" + slugifyPath(path)
}

func slugifyPath(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			out = append(out, c)
		case c >= 'A' && c <= 'Z':
			out = append(out, c-'A'+'a')
		default:
			out = append(out, '-')
		}
	}
	return string(out)
}

func insertEdge(tx *sql.Tx, fromID, toID, kind string) error {
	if fromID == "" || toID == "" {
		return nil
	}
	_, err := tx.Exec(`INSERT OR IGNORE INTO knowledge_relationships (from_id, to_id, type) VALUES (?, ?, ?)`,
		fromID, toID, kind)
	return err
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func (s *Store) embed(ctx context.Context, text string) ([]byte, int, string) {
	if s.embedder == nil || text == "" {
		return nil, 0, ""
	}
	vec, err := embedding.EmbedForTask(ctx, s.embedder, text, embedding.ContentTypeDocumentation, false)
	if err != nil {
		logging.DocsWarn("embedder unavailable, storing section without a vector: %v", err)
		return nil, 0, ""
	}
	vec = embedding.NormalizeL2(vec)
	return embedding.EncodeVector(vec), s.embedder.Dimensions(), s.embedder.Name()
}
