// Package main implements the claude-knowledge CLI: the command-line
// surface over the store, graph, knowledge, docs, checkpoint, and hooks
// packages. Command implementations are split across cmd_*.go files by
// category.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"claude-knowledge/internal/logging"
)

var (
	verbose    bool
	dbPath     string
	jsonOutput bool
	configPath string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "claude-knowledge - local-first engineering knowledge engine",
	Long: `claude-knowledge stores learnings, patterns, and mistakes mined from coding
sessions, indexes a TypeScript/Vue code graph, and exposes both through a
CLI so a coding assistant can inject relevant context at session start and
extract new knowledge at session end.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: config-resolved .claude/execution-state.db)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON instead of prose")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default: ./config.yaml if present)")

	rootCmd.AddCommand(milestoneCmd, baselineCmd)
	rootCmd.AddCommand(workflowCmd)
	rootCmd.AddCommand(sessionStartCmd, sessionEndCmd)
	rootCmd.AddCommand(learningCmd, knowledgeCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(metricsCmd, bootstrapCmd, dbCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
