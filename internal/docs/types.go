// Package docs indexes Markdown (and equivalently heading-segmented)
// documents into DocSection entities with embeddings, gated by a
// per-file content hash so unchanged files are skipped on re-index.
// Sections link to a File entity through IN_DOC edges; docs search also
// ranks CodeDoc rows written by internal/graph so a query can surface
// both prose documentation and JSDoc-derived entries together.
package docs

import "time"

// Section is one heading-delimited chunk of a document.
type Section struct {
	ID          string
	Heading     string
	Content     string
	FilePath    string
	Location    string // e.g. "path/to/file.md:42"
	StartLine   int
	SpecVersion string
	CreatedAt   time.Time
}

// IndexStatus reports what IndexDocument did.
type IndexStatus string

const (
	StatusIndexed   IndexStatus = "indexed"
	StatusUnchanged IndexStatus = "unchanged"
)

// IndexResult is returned by IndexDocument.
type IndexResult struct {
	FilePath       string
	Status         IndexStatus
	SectionsIndexed int
}

// IndexOptions tunes IndexDocument.
type IndexOptions struct {
	Force       bool   // re-index even if the content hash is unchanged
	SpecVersion string // recorded on each section for externally-downloaded specs
}

// SearchResult pairs a Section or CodeDoc with its similarity score.
// Exactly one of Section/CodeDocID is populated.
type SearchResult struct {
	Section        *Section
	CodeDocID      string
	CodeDocEntity  string
	CodeDocContent string
	Score          float64
}
