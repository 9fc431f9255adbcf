package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"claude-knowledge/internal/docs"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Index and search Markdown documentation",
}

var docsIndexForce bool

var docsIndexCmd = &cobra.Command{
	Use:   "index <filePath>",
	Args:  cobra.ExactArgs(1),
	Short: "Index a Markdown file",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		result, err := a.docs.IndexDocument(context.Background(), args[0], docs.IndexOptions{Force: docsIndexForce})
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s (%d sections)\n", result.FilePath, result.Status, result.SectionsIndexed)
		return nil
	},
}

var docsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether indexed files are current",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		statuses, err := a.docs.Status()
		if err != nil {
			return err
		}
		for _, s := range statuses {
			fmt.Printf("%s\tcurrent=%v\n", s.FilePath, s.Current)
		}
		return nil
	},
}

var docsCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove index entries for files that no longer exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		n, err := a.docs.Clean()
		if err != nil {
			return err
		}
		fmt.Printf("cleaned %d entr(ies)\n", n)
		return nil
	},
}

var docsSearchLimit int

var docsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Args:  cobra.ExactArgs(1),
	Short: "Search documentation and code docs by similarity",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		results, err := a.docs.Search(context.Background(), args[0], docsSearchLimit)
		if err != nil {
			return err
		}
		for _, r := range results {
			printDocsResult(r)
		}
		return nil
	},
}

var docsForCodeCmd = &cobra.Command{
	Use:   "for-code <entityId>",
	Args:  cobra.ExactArgs(1),
	Short: "List docs linked to a code entity",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		results, err := a.docs.ForCode(args[0])
		if err != nil {
			return err
		}
		for _, r := range results {
			printDocsResult(r)
		}
		return nil
	},
}

var docsIndexExternalSpecVersion string

var docsIndexExternalCmd = &cobra.Command{
	Use:   "index-external <filePath> <specVersion>",
	Args:  cobra.ExactArgs(2),
	Short: "Index a downloaded external specification",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		result, err := a.docs.IndexExternal(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s (%d sections)\n", result.FilePath, result.Status, result.SectionsIndexed)
		return nil
	},
}

var docsWatchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Args:  cobra.ExactArgs(1),
	Short: "Re-index Markdown under dir as it changes, until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		w, err := docs.NewWatcher(a.docs, args[0])
		if err != nil {
			return fmt.Errorf("start doc watcher: %w", err)
		}
		defer w.Stop()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		fmt.Printf("watching %s for documentation changes (ctrl-c to stop)\n", args[0])
		w.Run(ctx)
		return nil
	},
}

func init() {
	docsIndexCmd.Flags().BoolVar(&docsIndexForce, "force", false, "re-index even if the content hash is unchanged")
	docsSearchCmd.Flags().IntVar(&docsSearchLimit, "limit", 10, "max results")

	docsCmd.AddCommand(docsIndexCmd, docsStatusCmd, docsCleanCmd, docsSearchCmd, docsForCodeCmd, docsIndexExternalCmd, docsWatchCmd)
}

func printDocsResult(r docs.SearchResult) {
	if r.Section != nil {
		fmt.Printf("(%.3f) [doc] %s: %s\n", r.Score, r.Section.Heading, r.Section.Location)
		return
	}
	fmt.Printf("(%.3f) [code] %s: %s\n", r.Score, r.CodeDocEntity, r.CodeDocContent)
}
