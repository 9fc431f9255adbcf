package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"claude-knowledge/internal/hooks"
)

var (
	sessionStartBranch string
	sessionStartIssue  int
	sessionStartHasIssue bool
)

var sessionStartCmd = &cobra.Command{
	Use:   "session-start",
	Short: "Run the on-session-start hook",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		wd, _ := cmd.Flags().GetString("working-dir")
		if wd == "" {
			wd = "."
		}
		out, err := a.hooks.SessionStart(context.Background(), hooks.SessionStartInput{
			WorkingDir:  wd,
			Branch:      sessionStartBranch,
			HasBranch:   sessionStartBranch != "",
			IssueNumber: sessionStartIssue,
			HasIssue:    sessionStartHasIssue,
		})
		if err != nil {
			return err
		}
		if out.ProseBlock != "" {
			fmt.Print(out.ProseBlock)
		}
		fmt.Println(out.MetadataMarker)
		return nil
	},
}

var (
	sessionEndDryRun            bool
	sessionEndWorkflowID        string
	sessionEndSessionID         string
	sessionEndLearningsInjected int
	sessionEndStartTime         string
	sessionEndCompacted         bool
	sessionEndInterrupted       bool
	sessionEndReviewFindings    int
	sessionEndFilesRead         int
)

var sessionEndCmd = &cobra.Command{
	Use:   "session-end",
	Short: "Run the on-session-end hook",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		var startTime time.Time
		if sessionEndStartTime != "" {
			startTime, err = time.Parse(time.RFC3339, sessionEndStartTime)
			if err != nil {
				return fmt.Errorf("invalid --start-time: %w", err)
			}
		}

		out, err := a.hooks.SessionEnd(context.Background(), hooks.SessionEndInput{
			WorkflowID:        sessionEndWorkflowID,
			HasWorkflowID:     sessionEndWorkflowID != "",
			SessionID:         sessionEndSessionID,
			StartTime:         startTime,
			HasStartTime:      sessionEndStartTime != "",
			DryRun:            sessionEndDryRun,
			Compacted:         sessionEndCompacted,
			Interrupted:       sessionEndInterrupted,
			ReviewFindings:    sessionEndReviewFindings,
			FilesRead:         sessionEndFilesRead,
			LearningsInjected: sessionEndLearningsInjected,
		})
		if err != nil {
			return err
		}
		fmt.Printf("transcripts=%d learnings=%d patterns=%d mistakes=%d dryRun=%v\n",
			len(out.TranscriptsFound), out.LearningsCaptured, out.PatternsCaptured, out.MistakesCaptured, out.DryRun)
		if out.ExtractorSkippedWhy != "" {
			fmt.Printf("extraction skipped: %s\n", out.ExtractorSkippedWhy)
		}
		return nil
	},
}

func init() {
	sessionStartCmd.Flags().String("working-dir", ".", "working directory to index docs from")
	sessionStartCmd.Flags().StringVar(&sessionStartBranch, "branch", "", "current git branch")
	sessionStartCmd.Flags().IntVar(&sessionStartIssue, "issue", 0, "GitHub issue number")
	sessionStartCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		sessionStartHasIssue = cmd.Flags().Changed("issue")
		return nil
	}

	sessionEndCmd.Flags().BoolVar(&sessionEndDryRun, "dry-run", false, "skip extraction and persistence")
	sessionEndCmd.Flags().StringVar(&sessionEndWorkflowID, "workflow-id", "", "workflow id")
	sessionEndCmd.Flags().StringVar(&sessionEndSessionID, "session-id", "", "session id")
	sessionEndCmd.Flags().IntVar(&sessionEndLearningsInjected, "learnings-injected", 0, "learnings injected at session start")
	sessionEndCmd.Flags().StringVar(&sessionEndStartTime, "start-time", "", "session start time, RFC3339")
	sessionEndCmd.Flags().BoolVar(&sessionEndCompacted, "compacted", false, "session was compacted")
	sessionEndCmd.Flags().BoolVar(&sessionEndInterrupted, "interrupted", false, "session was interrupted")
	sessionEndCmd.Flags().IntVar(&sessionEndReviewFindings, "review-findings", 0, "review findings count")
	sessionEndCmd.Flags().IntVar(&sessionEndFilesRead, "files-read", 0, "files read count")
}
