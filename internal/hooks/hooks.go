package hooks

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"claude-knowledge/internal/checkpoint"
	"claude-knowledge/internal/config"
	"claude-knowledge/internal/docs"
	"claude-knowledge/internal/graph"
	"claude-knowledge/internal/knowledge"
	"claude-knowledge/internal/logging"
)

// Hooks composes the store-backed components into the two session-
// boundary operations. It never talks to SQLite directly.
type Hooks struct {
	checkpoints *checkpoint.Store
	knowledge   *knowledge.Store
	docs        *docs.Store
	graphQuery  *graph.GraphQuery
	extractor   LearningExtractor // optional
	cfg         *config.Config
	metaDir     string // session-metadata directory, defaults to checkpoint.DefaultSessionMetadataDir()
}

// New wires Hooks from its component dependencies. extractor may be nil;
// session-end then skips extraction and records metrics only.
func New(checkpoints *checkpoint.Store, knowledgeStore *knowledge.Store, docsStore *docs.Store, graphQuery *graph.GraphQuery, extractor LearningExtractor, cfg *config.Config) *Hooks {
	return &Hooks{
		checkpoints: checkpoints,
		knowledge:   knowledgeStore,
		docs:        docsStore,
		graphQuery:  graphQuery,
		extractor:   extractor,
		cfg:         cfg,
		metaDir:     checkpoint.DefaultSessionMetadataDir(),
	}
}

// WithMetadataDir overrides the session-metadata directory, used by tests.
func (h *Hooks) WithMetadataDir(dir string) *Hooks {
	h.metaDir = dir
	return h
}

func (h *Hooks) staleHours() int {
	if h.cfg == nil || h.cfg.Checkpoint.StaleWorkflowHours <= 0 {
		return 24
	}
	return h.cfg.Checkpoint.StaleWorkflowHours
}

func (h *Hooks) sessionStalenessHours() int {
	if h.cfg == nil || h.cfg.Checkpoint.SessionStalenessHours <= 0 {
		return 24
	}
	return h.cfg.Checkpoint.SessionStalenessHours
}

func (h *Hooks) blastRadiusDepth() int {
	if h.cfg == nil || h.cfg.Retrieval.BlastRadiusDepth <= 0 {
		return 5
	}
	return h.cfg.Retrieval.BlastRadiusDepth
}

func (h *Hooks) retrievalLimit() int {
	if h.cfg == nil || h.cfg.Retrieval.DefaultLimit <= 0 {
		return 10
	}
	return h.cfg.Retrieval.DefaultLimit
}

// transcriptDir is where SessionEnd looks for session transcripts. Empty
// means transcript capture isn't configured; discoverTranscripts treats
// that as "no transcripts" rather than an error.
func (h *Hooks) transcriptDir() string {
	if h.cfg == nil {
		return ""
	}
	return h.cfg.Checkpoint.TranscriptDir
}

// indexWorkingTreeDocs walks workingDir for Markdown files and indexes
// each incrementally, swallowing failures per file (fire-and-forget).
func (h *Hooks) indexWorkingTreeDocs(ctx context.Context, workingDir string) error {
	if h.docs == nil {
		return nil
	}
	files, err := discoverMarkdown(workingDir)
	if err != nil {
		return fmt.Errorf("discover markdown under %s: %w", workingDir, err)
	}
	for _, f := range files {
		if _, err := h.docs.IndexDocument(ctx, f, docs.IndexOptions{}); err != nil {
			logging.HooksWarn("doc index failed for %s: %v", f, err)
		}
	}
	return nil
}

// maxBlastRadiusSeeds bounds how many modified files feed the blast-radius
// lookup, so a session touching hundreds of files doesn't blow up the
// context block.
const maxBlastRadiusSeeds = 10

func (h *Hooks) modifiedFilesBlastRadius(modifiedFiles []string) []graph.BlastRadiusRecord {
	if h.graphQuery == nil {
		return nil
	}
	seeds := modifiedFiles
	if len(seeds) > maxBlastRadiusSeeds {
		seeds = seeds[:maxBlastRadiusSeeds]
	}
	var all []graph.BlastRadiusRecord
	for _, f := range seeds {
		recs, err := h.graphQuery.BlastRadius(filepath.Base(f), h.blastRadiusDepth())
		if err != nil {
			logging.HooksWarn("blast radius failed for %s: %v", f, err)
			continue
		}
		all = append(all, recs...)
	}
	return all
}

func relevantLearningsQuery(branch string, modifiedFiles []string) string {
	var parts []string
	if branch != "" {
		parts = append(parts, strings.ReplaceAll(branch, "-", " "))
	}
	for _, f := range modifiedFiles {
		parts = append(parts, filepath.Base(f))
	}
	return strings.Join(parts, " ")
}
