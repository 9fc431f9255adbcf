package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"claude-knowledge/internal/embedding"
	"claude-knowledge/internal/logging"
	"claude-knowledge/internal/store"
)

// Store persists and retrieves knowledge-graph entities. embedder may be
// nil; writes still succeed without an embedding vector and searches
// degrade to structured-only retrieval, matching the EmbedderUnavailable
// fallback policy.
type Store struct {
	st       *store.Store
	embedder embedding.Embedder
}

// New wraps a store handle and an optional embedder.
func New(st *store.Store, embedder embedding.Embedder) *Store {
	return &Store{st: st, embedder: embedder}
}

func newID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.New().String()[:12])
}

// codeAreaID derives a stable id from a code-area name so repeated
// references to "cache" always resolve to the same shadow entity.
func codeAreaID(name string) string {
	return "area:" + slugify(name)
}

// fileID derives a stable id from a file path.
func fileID(path string) string {
	return "file:" + slugify(path)
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}

// embed generates a storage-ready vector for text being ingested into the
// knowledge graph, tuning the embedding request for contentType (a
// knowledge atom is embedded differently from a code snippet) as a
// document rather than a query.
func (s *Store) embed(ctx context.Context, text string, contentType embedding.ContentType) ([]byte, int, string) {
	if s.embedder == nil || text == "" {
		return nil, 0, ""
	}
	vec, err := embedding.EmbedForTask(ctx, s.embedder, text, contentType, false)
	if err != nil {
		logging.KnowledgeWarn("embedder unavailable, storing without a vector: %v", err)
		return nil, 0, ""
	}
	vec = embedding.NormalizeL2(vec)
	return embedding.EncodeVector(vec), s.embedder.Dimensions(), s.embedder.Name()
}

// ensureCodeArea inserts a CodeArea shadow entity if it does not already
// exist, and returns its id. A no-op if name is empty.
func ensureCodeArea(tx *sql.Tx, name string) (string, error) {
	if name == "" {
		return "", nil
	}
	id := codeAreaID(name)
	_, err := tx.Exec(`INSERT OR IGNORE INTO code_areas (id, name) VALUES (?, ?)`, id, name)
	if err != nil {
		return "", fmt.Errorf("ensure code area %q: %w", name, err)
	}
	return id, nil
}

// ensureFile inserts a File shadow entity if it does not already exist,
// and returns its id. A no-op if path is empty.
func ensureFile(tx *sql.Tx, path string) (string, error) {
	if path == "" {
		return "", nil
	}
	id := fileID(path)
	_, err := tx.Exec(`INSERT OR IGNORE INTO knowledge_files (id, path) VALUES (?, ?)`, id, path)
	if err != nil {
		return "", fmt.Errorf("ensure file %q: %w", path, err)
	}
	return id, nil
}

func addEdge(tx *sql.Tx, fromID, toID, kind string) error {
	if fromID == "" || toID == "" {
		return nil
	}
	_, err := tx.Exec(`INSERT OR IGNORE INTO knowledge_relationships (from_id, to_id, type) VALUES (?, ?, ?)`,
		fromID, toID, kind)
	return err
}

// StoreLearnings upserts each Learning by id within one transaction,
// creating or merging the CodeArea/File shadow entities it references and
// emitting ABOUT/IN_FILE edges. Learnings never change their content after
// storage, but calling this again with the same id replaces the row
// (idempotent upsert), matching the "no partial writes" property.
func (s *Store) StoreLearnings(ctx context.Context, learnings []Learning) error {
	timer := logging.StartTimer(logging.CategoryKnowledge, "StoreLearnings")
	defer timer.Stop()

	for i := range learnings {
		if learnings[i].ID == "" {
			learnings[i].ID = newID("learning")
		}
		if learnings[i].Content == "" {
			return fmt.Errorf("%w: learning content is empty", store.ErrInvalidInput)
		}
		if learnings[i].HasConfidence && (learnings[i].Confidence < 0 || learnings[i].Confidence > 1) {
			return fmt.Errorf("%w: confidence %v out of [0,1]", store.ErrInvalidInput, learnings[i].Confidence)
		}
	}

	// Embeddings are computed before the transaction opens; the embedder
	// may block on the network and must never run inside a write lock.
	type embedded struct {
		bytes []byte
		dim   int
		model string
	}
	vectors := make([]embedded, len(learnings))
	for i := range learnings {
		b, dim, model := s.embed(ctx, learnings[i].Content, embedding.ContentTypeKnowledgeAtom)
		vectors[i] = embedded{bytes: b, dim: dim, model: model}
	}

	return s.st.Transaction(func(tx *sql.Tx) error {
		for i, l := range learnings {
			emb := vectors[i]

			var confidence sql.NullFloat64
			if l.HasConfidence {
				confidence = sql.NullFloat64{Float64: l.Confidence, Valid: true}
			}

			_, err := tx.Exec(`INSERT OR REPLACE INTO learnings
				(id, content, source_issue, code_area, file_path, confidence, embedding, embedding_dim, embedding_model)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				l.ID, l.Content, nullable(l.SourceIssue), nullable(l.CodeArea), nullable(l.FilePath), confidence,
				emb.bytes, emb.dim, emb.model)
			if err != nil {
				return fmt.Errorf("store learning %s: %w", l.ID, err)
			}

			areaID, err := ensureCodeArea(tx, l.CodeArea)
			if err != nil {
				return err
			}
			fileIDStr, err := ensureFile(tx, l.FilePath)
			if err != nil {
				return err
			}
			if err := addEdge(tx, l.ID, areaID, "ABOUT"); err != nil {
				return err
			}
			if err := addEdge(tx, l.ID, fileIDStr, "IN_FILE"); err != nil {
				return err
			}
		}
		return nil
	})
}

// StorePattern upserts a Pattern, creating/merging its CodeArea and
// emitting an APPLIES_TO edge.
func (s *Store) StorePattern(ctx context.Context, p Pattern) error {
	timer := logging.StartTimer(logging.CategoryKnowledge, "StorePattern")
	defer timer.Stop()

	if p.ID == "" {
		p.ID = newID("pattern")
	}
	if p.Name == "" {
		return fmt.Errorf("%w: pattern name is empty", store.ErrInvalidInput)
	}

	embBytes, dim, model := s.embed(ctx, p.Name+" "+p.Description, embedding.ContentTypeKnowledgeAtom)

	return s.st.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT OR REPLACE INTO patterns
			(id, name, description, code_area, embedding, embedding_dim, embedding_model)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Name, nullable(p.Description), nullable(p.CodeArea), embBytes, dim, model)
		if err != nil {
			return fmt.Errorf("store pattern %s: %w", p.ID, err)
		}
		areaID, err := ensureCodeArea(tx, p.CodeArea)
		if err != nil {
			return err
		}
		return addEdge(tx, p.ID, areaID, "APPLIES_TO")
	})
}

// StoreMistake upserts a Mistake, creating/merging its File and emitting
// an IN_FILE edge.
func (s *Store) StoreMistake(ctx context.Context, m Mistake) error {
	timer := logging.StartTimer(logging.CategoryKnowledge, "StoreMistake")
	defer timer.Stop()

	if m.ID == "" {
		m.ID = newID("mistake")
	}
	if m.Description == "" {
		return fmt.Errorf("%w: mistake description is empty", store.ErrInvalidInput)
	}

	embBytes, dim, model := s.embed(ctx, m.Description+" "+m.HowFixed, embedding.ContentTypeKnowledgeAtom)

	return s.st.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT OR REPLACE INTO mistakes
			(id, description, how_fixed, file_path, embedding, embedding_dim, embedding_model)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.Description, nullable(m.HowFixed), nullable(m.FilePath), embBytes, dim, model)
		if err != nil {
			return fmt.Errorf("store mistake %s: %w", m.ID, err)
		}
		fileIDStr, err := ensureFile(tx, m.FilePath)
		if err != nil {
			return err
		}
		return addEdge(tx, m.ID, fileIDStr, "IN_FILE")
	})
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func scanLearning(row interface{ Scan(dest ...any) error }) (Learning, error) {
	var l Learning
	var sourceIssue, codeArea, filePath sql.NullString
	var confidence sql.NullFloat64
	var createdAt time.Time
	if err := row.Scan(&l.ID, &l.Content, &sourceIssue, &codeArea, &filePath, &confidence, &createdAt); err != nil {
		return l, err
	}
	l.SourceIssue = sourceIssue.String
	l.CodeArea = codeArea.String
	l.FilePath = filePath.String
	l.HasConfidence = confidence.Valid
	l.Confidence = confidence.Float64
	l.CreatedAt = createdAt
	return l, nil
}
