// Package hooks orchestrates the two session-boundary operations a coding
// assistant invokes: on-session-start (inject relevant context) and
// on-session-end (extract and persist new learnings from a transcript and
// commit range). Both are thin composition over store, graph, knowledge,
// docs, and checkpoint; neither owns persistence logic of its own.
package hooks

import (
	"context"
	"time"

	"claude-knowledge/internal/checkpoint"
)

// LearningExtractor is the abstract language-model client that turns
// transcripts and commit diffs into structured knowledge records. The
// core consumes it through this interface only; the LLM call itself is
// an external collaborator (see spec §6).
type LearningExtractor interface {
	Extract(ctx context.Context, in ExtractionInput) (ExtractionOutput, error)
}

// ExtractionInput is everything a LearningExtractor needs to mine
// learnings, patterns, and mistakes out of a session.
type ExtractionInput struct {
	Transcripts []string // file paths
	Commits     []CommitRef
	Files       []string // modified file paths
}

// CommitRef identifies one commit in the session's range.
type CommitRef struct {
	SHA     string
	Message string
}

// ExtractionOutput is what a LearningExtractor produces. The concrete
// knowledge.Learning/Pattern/Mistake types live in internal/knowledge;
// hooks converts between the two so the extractor interface itself has
// no dependency on the knowledge package's storage concerns.
type ExtractionOutput struct {
	Learnings []ExtractedLearning
	Patterns  []ExtractedPattern
	Mistakes  []ExtractedMistake
}

// ExtractedLearning mirrors knowledge.Learning's fields without importing
// that package's storage machinery.
type ExtractedLearning struct {
	Content     string
	SourceIssue string
	CodeArea    string
	FilePath    string
	Confidence  float64
	HasConfidence bool
}

// ExtractedPattern mirrors knowledge.Pattern.
type ExtractedPattern struct {
	Name        string
	Description string
	CodeArea    string
}

// ExtractedMistake mirrors knowledge.Mistake.
type ExtractedMistake struct {
	Description string
	HowFixed    string
	FilePath    string
}

// SessionStartInput carries everything session-start needs.
type SessionStartInput struct {
	WorkingDir    string
	Branch        string
	HasBranch     bool
	ModifiedFiles []string
	IssueNumber   int
	HasIssue      bool
}

// SessionStartOutput is the context injected into the assistant's next
// turn, plus the metadata persisted for session-end to pick up.
type SessionStartOutput struct {
	ProseBlock       string
	MetadataMarker   string // machine-readable SESSION_METADATA line
	Metadata         checkpoint.SessionMetadata
	MetadataFilePath string
	ActiveWorkflows  []checkpoint.Workflow
	StaleCleaned     int
	DocsIndexErr     error // fire-and-forget: logged, not raised
}

// SessionEndInput carries everything session-end needs.
type SessionEndInput struct {
	WorkflowID        string
	HasWorkflowID     bool
	SessionID         string
	StartTime         time.Time
	HasStartTime      bool
	ModifiedFiles     []string
	Commits           []CommitRef
	DryRun            bool
	Compacted         bool
	Interrupted       bool
	ReviewFindings    int
	FilesRead         int
	LearningsInjected int
	HasLearningsInjected bool
}

// SessionEndOutput summarizes what session-end did.
type SessionEndOutput struct {
	TranscriptsFound    []string
	LearningsCaptured   int
	PatternsCaptured    int
	MistakesCaptured    int
	DryRun              bool
	ExtractorSkippedWhy string // set when extraction was skipped (no transcripts, no extractor, dry-run, extraction error)
	MetadataFileDeleted bool
}
