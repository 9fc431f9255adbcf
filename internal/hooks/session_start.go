package hooks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"claude-knowledge/internal/checkpoint"
	"claude-knowledge/internal/embedding"
	"claude-knowledge/internal/graph"
	"claude-knowledge/internal/knowledge"
	"claude-knowledge/internal/logging"
)

// SessionStart runs the on-session-start orchestration: incremental doc
// indexing (fire-and-forget), a stale-workflow sweep, a resume prompt for
// active workflows, and a context block of blast-radius + relevant
// learnings, persisted to a per-session metadata file so SessionEnd can
// find it later.
func (h *Hooks) SessionStart(ctx context.Context, in SessionStartInput) (SessionStartOutput, error) {
	timer := logging.StartTimer(logging.CategoryHooks, "SessionStart")
	defer timer.Stop()

	var out SessionStartOutput

	if err := h.indexWorkingTreeDocs(ctx, in.WorkingDir); err != nil {
		out.DocsIndexErr = err
		logging.HooksWarn("session-start doc indexing failed: %v", err)
	}

	staleCount, err := h.checkpoints.CleanupStaleWorkflows(h.staleHours())
	if err != nil {
		logging.HooksWarn("stale workflow sweep failed: %v", err)
	}
	out.StaleCleaned = staleCount

	// The three context-block sources (active workflows, blast radius,
	// relevant learnings) are read-only and independent of each other, so
	// they are gathered concurrently.
	var (
		active       []checkpoint.Workflow
		blastRecords []graph.BlastRadiusRecord
		learnings    []knowledge.SearchResult
	)
	learningsInjected := 0

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		active, err = h.checkpoints.ListActiveWorkflows()
		if err != nil {
			logging.HooksWarn("list active workflows failed: %v", err)
		}
		return nil
	})
	eg.Go(func() error {
		blastRecords = h.modifiedFilesBlastRadius(in.ModifiedFiles)
		return nil
	})
	eg.Go(func() error {
		if h.knowledge == nil {
			return nil
		}
		query := relevantLearningsQuery(in.Branch, in.ModifiedFiles)
		if query == "" {
			return nil
		}
		results, err := h.knowledge.SearchSimilar(egCtx, query, knowledge.SearchOptions{Limit: h.retrievalLimit()})
		switch {
		case err == nil:
			learnings = results
		case errors.Is(err, embedding.ErrUnavailable):
			logging.HooksWarn("embedder unavailable, skipping learnings injection: %v", err)
		default:
			logging.HooksWarn("searchSimilar failed: %v", err)
		}
		return nil
	})
	_ = eg.Wait() // each goroutine swallows its own error; nothing to propagate

	out.ActiveWorkflows = active

	var b strings.Builder
	if len(active) > 0 {
		b.WriteString("## Resume\n\n")
		b.WriteString(fmt.Sprintf("%d workflow(s) still active:\n", len(active)))
		for _, wf := range active {
			b.WriteString(fmt.Sprintf("- %s (branch=%s phase=%s status=%s)\n", wf.ID, wf.Branch, wf.Phase, wf.Status))
		}
		b.WriteString("\n")
	}

	if len(blastRecords) > 0 {
		b.WriteString("## Blast radius of modified files\n\n")
		for _, r := range blastRecords {
			b.WriteString(fmt.Sprintf("- [%d] %s (%s) %s\n", r.Depth, r.Entity.Name, r.Entity.Kind, r.Entity.FilePath))
		}
		b.WriteString("\n")
	}

	if len(learnings) > 0 {
		b.WriteString("## Relevant learnings\n\n")
		for _, r := range learnings {
			b.WriteString(fmt.Sprintf("- (%.2f) %s\n", r.Score, r.Learning.Content))
		}
		b.WriteString("\n")
	}
	learningsInjected = len(learnings)

	sessionID := uuid.New().String()
	meta := checkpoint.SessionMetadata{
		SessionID:         sessionID,
		StartTime:         time.Now(),
		LearningsInjected: learningsInjected,
	}
	if in.HasIssue {
		meta.IssueNumber = in.IssueNumber
		meta.HasIssue = true
	}

	metaPath, err := checkpoint.WriteSessionMetadataFile(h.metaDir, meta)
	if err != nil {
		logging.HooksWarn("failed to write session metadata file: %v", err)
	}

	marker := fmt.Sprintf("SESSION_METADATA sessionId=%s startTime=%s learningsInjected=%d",
		meta.SessionID, meta.StartTime.Format("2006-01-02T15:04:05Z"), meta.LearningsInjected)

	out.ProseBlock = b.String()
	out.MetadataMarker = marker
	out.Metadata = meta
	out.MetadataFilePath = metaPath
	return out, nil
}
