package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"claude-knowledge/internal/knowledge"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "List and summarize recorded session metrics",
}

var metricsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every recorded session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		metrics, err := a.checkpoints.ListSessionMetrics()
		if err != nil {
			return err
		}
		for _, m := range metrics {
			fmt.Printf("%s\tfilesRead=%d\tlearnings=%d\tcompacted=%v\n", m.SessionID, m.FilesRead, m.LearningsCaptured, m.Compacted)
		}
		return nil
	},
}

var metricsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize every recorded session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		sum, err := a.checkpoints.SummarizeSessionMetrics()
		if err != nil {
			return err
		}
		fmt.Printf("sessions=%d filesRead=%d learnings=%d compacted=%d avgDurationMinutes=%.1f\n",
			sum.SessionCount, sum.TotalFilesRead, sum.TotalLearnings, sum.CompactedSessions, sum.AvgDurationMinutes)
		return nil
	},
}

// prMineRecord is the shape of one stdin line consumed by `bootstrap
// mine-prs`: the PR mining client itself is an external collaborator per
// spec §1, so this command is a thin ingestion adapter onto the same
// knowledge.StoreLearnings path session-end extraction uses.
type prMineRecord struct {
	Content  string `json:"content"`
	Issue    string `json:"issue"`
	CodeArea string `json:"codeArea"`
	FilePath string `json:"filePath"`
}

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Seed the knowledge store from external sources",
}

var bootstrapMinePRsCmd = &cobra.Command{
	Use:   "mine-prs [limit]",
	Args:  cobra.MaximumNArgs(1),
	Short: "Store learnings mined from PR records read as JSON lines on stdin",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		limit := 0
		if len(args) == 1 {
			if _, err := fmt.Sscanf(args[0], "%d", &limit); err != nil {
				return fmt.Errorf("invalid limit: %w", err)
			}
		}

		scanner := bufio.NewScanner(os.Stdin)
		var learnings []knowledge.Learning
		for scanner.Scan() {
			if limit > 0 && len(learnings) >= limit {
				break
			}
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var rec prMineRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				return fmt.Errorf("parse PR record: %w", err)
			}
			learnings = append(learnings, knowledge.Learning{
				Content: rec.Content, SourceIssue: rec.Issue, CodeArea: rec.CodeArea, FilePath: rec.FilePath,
			})
		}
		if err := scanner.Err(); err != nil {
			return err
		}
		if len(learnings) == 0 {
			fmt.Println("no PR records read from stdin")
			return nil
		}
		if err := a.knowledge.StoreLearnings(context.Background(), learnings); err != nil {
			return err
		}
		fmt.Printf("stored %d learning(s) mined from PRs\n", len(learnings))
		return nil
	},
}

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect the database",
}

var dbHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Report store health: round-trip latency and file sizes",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		h := a.st.Health()
		fmt.Printf("okay=%v responseTimeMs=%.2f fileSizeKb=%.1f walSizeKb=%.1f shmSizeKb=%.1f\n",
			h.Okay, h.ResponseTimeMs, h.FileSizeKb, h.WalSizeKb, h.ShmSizeKb)
		for _, w := range h.Warnings {
			fmt.Println("warning:", w)
		}
		return nil
	},
}

var (
	statusCommits int
	statusIssues  int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize the knowledge store, code graph, and active work",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		kStats, err := a.knowledge.Summary()
		if err != nil {
			return err
		}
		gSummary, err := a.graphQuery.GetSummary("")
		if err != nil {
			return err
		}
		active, err := a.checkpoints.ListActiveWorkflows()
		if err != nil {
			return err
		}
		health := a.st.Health()

		if jsonOutput {
			out := map[string]any{
				"knowledge":       kStats,
				"graph":           gSummary,
				"activeWorkflows": len(active),
				"storeOkay":       health.Okay,
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		fmt.Printf("knowledge: learnings=%d patterns=%d mistakes=%d\n", kStats.Learnings, kStats.Patterns, kStats.Mistakes)
		fmt.Printf("graph: entities=%d relationships=%d\n", gSummary.TotalEntities, gSummary.TotalRelationships)
		fmt.Printf("active workflows: %d\n", len(active))
		fmt.Printf("store: okay=%v\n", health.Okay)
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusCommits, "commits", 0, "reserved: recent commits to summarize")
	statusCmd.Flags().IntVar(&statusIssues, "issues", 0, "reserved: recent issues to summarize")

	metricsCmd.AddCommand(metricsListCmd, metricsSummaryCmd)
	bootstrapCmd.AddCommand(bootstrapMinePRsCmd)
	dbCmd.AddCommand(dbHealthCmd)
}
