// Package knowledge stores and retrieves Learning, Pattern, and Mistake
// entities: prose records authored or extracted from session transcripts
// and pull-request histories. Writes create-or-merge the CodeArea/File
// shadow entities a record references and emit the relationship edges
// that connect them; reads answer structured filters and embedding-backed
// top-k similarity search.
package knowledge

import "time"

// Learning is an immutable prose record of something learned during a
// session: a fact, a convention, a gotcha. Never mutated after storage.
type Learning struct {
	ID          string
	Content     string
	SourceIssue string
	CodeArea    string
	FilePath    string
	Confidence  float64 // meaningful only when HasConfidence; valid range is [0,1]
	HasConfidence bool
	CreatedAt   time.Time
}

// Pattern is a named, reusable approach observed in the codebase.
type Pattern struct {
	ID          string
	Name        string
	Description string
	CodeArea    string
	CreatedAt   time.Time
}

// Mistake is a recorded error and how it was fixed.
type Mistake struct {
	ID        string
	Description string
	HowFixed  string
	FilePath  string
	CreatedAt time.Time
}

// Filter selects Learnings by structured predicates. Keywords are matched
// case-insensitively against Content; every keyword must match (AND).
type Filter struct {
	CodeArea    string
	FilePath    string
	Keywords    []string
	IssueNumber string
	Limit       int
}

// SearchOptions tunes SearchSimilar. CodeArea and FilePath, when set, are
// applied as structured predicates before ranking, so a filtered search
// never surfaces a high-scoring row from the wrong area.
type SearchOptions struct {
	Limit          int
	Threshold      float64
	IncludeRelated bool
	CodeArea       string
	FilePath       string
}

// SearchResult is one similarity hit: the Learning plus its cosine score
// and, when requested, related Patterns (same CodeArea) and Mistakes
// (same FilePath).
type SearchResult struct {
	Learning         Learning
	Score            float64
	RelatedPatterns  []Pattern
	RelatedMistakes  []Mistake
}
