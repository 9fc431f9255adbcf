package hooks

import (
	"context"
	"fmt"
	"time"

	"claude-knowledge/internal/checkpoint"
	"claude-knowledge/internal/knowledge"
	"claude-knowledge/internal/logging"
)

// approxSessionMinutes measures elapsed wall-clock time since a session's
// recorded start.
func approxSessionMinutes(start time.Time) float64 {
	return time.Since(start).Minutes()
}

// SessionEnd runs the on-session-end orchestration: hydrate the metadata
// written by SessionStart, discover transcripts, run the extractor (unless
// dry-run or no extractor is configured), persist whatever it found, record
// the session's metrics, and delete the rendezvous file.
func (h *Hooks) SessionEnd(ctx context.Context, in SessionEndInput) (SessionEndOutput, error) {
	timer := logging.StartTimer(logging.CategoryHooks, "SessionEnd")
	defer timer.Stop()

	var out SessionEndOutput
	out.DryRun = in.DryRun

	sessionID := in.SessionID
	startTime := in.StartTime
	learningsInjected := in.LearningsInjected

	meta, metaPath, err := checkpoint.FindLatestSessionMetadataFile(h.metaDir, sessionID, h.sessionStalenessHours())
	if err != nil {
		logging.HooksWarn("find session metadata failed: %v", err)
	}
	if meta != nil {
		sessionID = meta.SessionID
		startTime = meta.StartTime
		learningsInjected = meta.LearningsInjected
	}

	transcripts, err := discoverTranscripts(h.transcriptDir(), startTime)
	if err != nil {
		logging.HooksWarn("transcript discovery failed: %v", err)
	}
	out.TranscriptsFound = transcripts

	// A dry run stops at discovery and readiness checks: no extractor call,
	// no store writes, and the rendezvous file stays in place.
	if !in.DryRun {
		if _, err := h.checkpoints.CleanupStaleWorkflows(h.staleHours()); err != nil {
			logging.HooksWarn("stale workflow sweep on session-end failed: %v", err)
		}
		if _, err := checkpoint.CleanupStaleSessionFiles(h.metaDir, h.sessionStalenessHours()); err != nil {
			logging.HooksWarn("stale session file cleanup failed: %v", err)
		}
	}

	metric := checkpoint.SessionMetric{
		SessionID:         sessionID,
		FilesRead:         in.FilesRead,
		Compacted:         in.Interrupted || in.Compacted,
		ReviewFindings:    in.ReviewFindings,
		LearningsInjected: learningsInjected,
	}
	if !startTime.IsZero() {
		metric.HasDuration = true
		metric.DurationMinutes = approxSessionMinutes(startTime)
	}

	if in.DryRun {
		out.ExtractorSkippedWhy = "dry-run"
	} else if h.extractor == nil {
		out.ExtractorSkippedWhy = "no learning extractor configured"
	} else if len(transcripts) == 0 {
		out.ExtractorSkippedWhy = "no transcripts found in session window"
	} else {
		extracted, err := h.extractor.Extract(ctx, ExtractionInput{
			Transcripts: transcripts,
			Commits:     in.Commits,
			Files:       in.ModifiedFiles,
		})
		if err != nil {
			logging.HooksWarn("extraction failed: %v", err)
			out.ExtractorSkippedWhy = fmt.Sprintf("extraction error: %v", err)
		} else {
			captured, err := h.persistExtraction(ctx, extracted)
			if err != nil {
				logging.HooksWarn("persisting extraction failed: %v", err)
			}
			out.LearningsCaptured = captured.learnings
			out.PatternsCaptured = captured.patterns
			out.MistakesCaptured = captured.mistakes
			metric.LearningsCaptured = captured.learnings
		}
	}

	if in.DryRun {
		return out, nil
	}

	// Attribute the session's commits to the active workflow so later
	// learnings can be traced back to the commits they came from.
	if in.HasWorkflowID {
		for _, c := range in.Commits {
			if err := h.checkpoints.LogCommit(in.WorkflowID, c.SHA, c.Message); err != nil {
				logging.HooksWarn("log commit %s to workflow %s failed: %v", c.SHA, in.WorkflowID, err)
			}
		}
	}

	if err := h.checkpoints.RecordSessionMetric(metric); err != nil {
		logging.HooksWarn("record session metric failed: %v", err)
	}

	if metaPath != "" {
		if err := checkpoint.DeleteSessionMetadataFile(metaPath); err != nil {
			logging.HooksWarn("delete session metadata failed: %v", err)
		} else {
			out.MetadataFileDeleted = true
		}
	}

	return out, nil
}

type extractionCounts struct {
	learnings, patterns, mistakes int
}

func (h *Hooks) persistExtraction(ctx context.Context, extracted ExtractionOutput) (extractionCounts, error) {
	var counts extractionCounts
	if h.knowledge == nil {
		return counts, nil
	}

	if len(extracted.Learnings) > 0 {
		learnings := make([]knowledge.Learning, 0, len(extracted.Learnings))
		for _, l := range extracted.Learnings {
			learnings = append(learnings, knowledge.Learning{
				Content:       l.Content,
				SourceIssue:   l.SourceIssue,
				CodeArea:      l.CodeArea,
				FilePath:      l.FilePath,
				HasConfidence: l.HasConfidence,
				Confidence:    l.Confidence,
			})
		}
		if err := h.knowledge.StoreLearnings(ctx, learnings); err != nil {
			return counts, fmt.Errorf("store learnings: %w", err)
		}
		counts.learnings = len(learnings)
	}

	for _, p := range extracted.Patterns {
		if err := h.knowledge.StorePattern(ctx, knowledge.Pattern{
			Name: p.Name, Description: p.Description, CodeArea: p.CodeArea,
		}); err != nil {
			return counts, fmt.Errorf("store pattern %q: %w", p.Name, err)
		}
		counts.patterns++
	}

	for _, m := range extracted.Mistakes {
		if err := h.knowledge.StoreMistake(ctx, knowledge.Mistake{
			Description: m.Description, HowFixed: m.HowFixed, FilePath: m.FilePath,
		}); err != nil {
			return counts, fmt.Errorf("store mistake: %w", err)
		}
		counts.mistakes++
	}

	return counts, nil
}
