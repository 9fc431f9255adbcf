package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"claude-knowledge/internal/knowledge"
)

var learningCmd = &cobra.Command{
	Use:   "learning",
	Short: "Analyze and query learnings",
}

var learningAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the learning extractor over the current session (requires an embedding application to supply one)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		fmt.Println("no learning extractor configured for this CLI invocation; run via session-end in an embedding application that supplies one")
		return nil
	},
}

var learningQueryCmd = &cobra.Command{
	Use:   "query <keyword...>",
	Short: "Query learnings by keyword",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		learnings, err := a.knowledge.Query(knowledge.Filter{Keywords: args})
		if err != nil {
			return err
		}
		for _, l := range learnings {
			printLearning(l)
		}
		return nil
	},
}

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Store and retrieve learnings, patterns, and mistakes",
}

var storeLearningCmd = &cobra.Command{
	Use:   "store-learning <content> [codeArea] [filePath]",
	Args:  cobra.RangeArgs(1, 3),
	Short: "Store a learning",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		l := knowledge.Learning{Content: args[0]}
		if len(args) > 1 {
			l.CodeArea = args[1]
		}
		if len(args) > 2 {
			l.FilePath = args[2]
		}
		return a.knowledge.StoreLearnings(context.Background(), []knowledge.Learning{l})
	},
}

var storePatternCmd = &cobra.Command{
	Use:   "store-pattern <name> <description> [codeArea]",
	Args:  cobra.RangeArgs(2, 3),
	Short: "Store a pattern",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		p := knowledge.Pattern{Name: args[0], Description: args[1]}
		if len(args) > 2 {
			p.CodeArea = args[2]
		}
		return a.knowledge.StorePattern(context.Background(), p)
	},
}

var storeMistakeCmd = &cobra.Command{
	Use:   "store-mistake <description> <howFixed> [filePath]",
	Args:  cobra.RangeArgs(2, 3),
	Short: "Store a mistake",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		m := knowledge.Mistake{Description: args[0], HowFixed: args[1]}
		if len(args) > 2 {
			m.FilePath = args[2]
		}
		return a.knowledge.StoreMistake(context.Background(), m)
	},
}

var (
	queryCodeArea    string
	queryFilePath    string
	queryIssueNumber string
	queryLimit       int
)

var knowledgeQueryCmd = &cobra.Command{
	Use:   "query [keyword...]",
	Short: "Query learnings by structured filter",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		learnings, err := a.knowledge.Query(knowledge.Filter{
			CodeArea:    queryCodeArea,
			FilePath:    queryFilePath,
			IssueNumber: queryIssueNumber,
			Keywords:    args,
			Limit:       queryLimit,
		})
		if err != nil {
			return err
		}
		for _, l := range learnings {
			printLearning(l)
		}
		return nil
	},
}

var (
	searchLimit          int
	searchThreshold      float64
	searchIncludeRelated bool
	searchCodeArea       string
	searchFilePath       string
)

var knowledgeSearchCmd = &cobra.Command{
	Use:   "search <text>",
	Args:  cobra.ExactArgs(1),
	Short: "Search learnings by semantic similarity",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		results, err := a.knowledge.SearchSimilar(context.Background(), args[0], knowledge.SearchOptions{
			Limit:          searchLimit,
			Threshold:      searchThreshold,
			IncludeRelated: searchIncludeRelated,
			CodeArea:       searchCodeArea,
			FilePath:       searchFilePath,
		})
		if err != nil {
			return err
		}
		for _, r := range results {
			fmt.Printf("(%.3f) ", r.Score)
			printLearning(r.Learning)
		}
		return nil
	},
}

var knowledgeListAreasCmd = &cobra.Command{
	Use:   "list-areas",
	Short: "List known code areas",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		areas, err := a.knowledge.ListCodeAreas()
		if err != nil {
			return err
		}
		for _, area := range areas {
			fmt.Println(area)
		}
		return nil
	},
}

var knowledgeListFilesCmd = &cobra.Command{
	Use:   "list-files",
	Short: "List known files referenced by knowledge entities",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		files, err := a.knowledge.ListFiles()
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Println(f)
		}
		return nil
	},
}

var knowledgeStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize knowledge store counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		stats, err := a.knowledge.Summary()
		if err != nil {
			return err
		}
		fmt.Printf("learnings=%d patterns=%d mistakes=%d codeAreas=%d files=%d topics=%d\n",
			stats.Learnings, stats.Patterns, stats.Mistakes, stats.CodeAreas, stats.Files, stats.Topics)
		return nil
	},
}

func init() {
	knowledgeQueryCmd.Flags().StringVar(&queryCodeArea, "code-area", "", "filter by code area")
	knowledgeQueryCmd.Flags().StringVar(&queryFilePath, "file-path", "", "filter by file path")
	knowledgeQueryCmd.Flags().StringVar(&queryIssueNumber, "issue", "", "filter by source issue number")
	knowledgeQueryCmd.Flags().IntVar(&queryLimit, "limit", 0, "max results (default 50)")

	knowledgeSearchCmd.Flags().IntVar(&searchLimit, "limit", 10, "max results")
	knowledgeSearchCmd.Flags().Float64Var(&searchThreshold, "threshold", 0, "minimum cosine similarity")
	knowledgeSearchCmd.Flags().BoolVar(&searchIncludeRelated, "include-related", false, "include related patterns/mistakes")
	knowledgeSearchCmd.Flags().StringVar(&searchCodeArea, "code-area", "", "restrict results to one code area")
	knowledgeSearchCmd.Flags().StringVar(&searchFilePath, "file-path", "", "restrict results to one file path")

	learningCmd.AddCommand(learningAnalyzeCmd, learningQueryCmd)
	knowledgeCmd.AddCommand(storeLearningCmd, storePatternCmd, storeMistakeCmd,
		knowledgeQueryCmd, knowledgeSearchCmd, knowledgeListAreasCmd, knowledgeListFilesCmd, knowledgeStatsCmd)
}

func printLearning(l knowledge.Learning) {
	fmt.Printf("%s\t%s\t[%s]\n", l.ID, l.Content, l.CodeArea)
}
