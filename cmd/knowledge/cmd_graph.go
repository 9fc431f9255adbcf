package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"claude-knowledge/internal/graph"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Parse and query the code graph",
}

var (
	graphParseIncremental bool
	graphParseQuiet       bool
)

var graphParseCmd = &cobra.Command{
	Use:   "parse <package> <projectRoot>",
	Args:  cobra.ExactArgs(2),
	Short: "Parse a TypeScript/Vue project and write its entities and relationships",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		pkg, root := args[0], args[1]

		if graphParseIncremental {
			plan, result, err := graph.ParseAndStoreIncremental(a.st, a.graphStore, pkg, root)
			if err != nil {
				return err
			}
			if !graphParseQuiet {
				if plan.Unchanged {
					fmt.Printf("parsed %s: no changes\n", root)
				} else {
					fmt.Printf("parsed %s incrementally: %d changed, %d deleted, %d entities\n",
						root, len(plan.ChangedFiles), len(plan.DeletedFiles), len(result.Entities))
				}
			}
			return nil
		}

		result, err := graph.ParseAndStoreFull(a.graphStore, pkg, root)
		if err != nil {
			return err
		}
		if !graphParseQuiet {
			fmt.Printf("parsed %s: %d entities, %d relationships\n", root, len(result.Entities), len(result.Relationships))
		}
		return nil
	},
}

var graphWhatCallsCmd = &cobra.Command{
	Use:   "what-calls <namePattern>",
	Args:  cobra.ExactArgs(1),
	Short: "List entities that call a matching symbol",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		entities, err := a.graphQuery.WhatCalls(args[0])
		if err != nil {
			return err
		}
		for _, e := range entities {
			printEntity(e)
		}
		return nil
	},
}

var graphWhatDependsOnCmd = &cobra.Command{
	Use:   "what-depends-on <namePattern>",
	Args:  cobra.ExactArgs(1),
	Short: "List dependency edges for a matching symbol",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		deps, err := a.graphQuery.WhatDependsOn(args[0])
		if err != nil {
			return err
		}
		for _, d := range deps {
			fmt.Printf("%s (%s)\n", d.Entity.Name, d.RelationshipKind)
		}
		return nil
	},
}

var graphBlastRadiusDepth int

var graphBlastRadiusCmd = &cobra.Command{
	Use:   "blast-radius <filePattern>",
	Args:  cobra.ExactArgs(1),
	Short: "List entities reachable from a matching file within a depth bound",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		recs, err := a.graphQuery.BlastRadius(args[0], graphBlastRadiusDepth)
		if err != nil {
			return err
		}
		for _, r := range recs {
			fmt.Printf("[%d] ", r.Depth)
			printEntity(r.Entity)
		}
		return nil
	},
}

var (
	graphFindKind  string
	graphFindLimit int
)

var graphFindCmd = &cobra.Command{
	Use:   "find <namePattern>",
	Args:  cobra.ExactArgs(1),
	Short: "Find entities by name pattern, optionally restricted to a kind",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		entities, err := a.graphQuery.FindEntities(args[0], graph.Kind(graphFindKind), graphFindLimit)
		if err != nil {
			return err
		}
		for _, e := range entities {
			printEntity(e)
		}
		return nil
	},
}

var graphExportsCmd = &cobra.Command{
	Use:   "exports <package>",
	Args:  cobra.ExactArgs(1),
	Short: "List exported entities in a package",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		entities, err := a.graphQuery.GetExports(args[0])
		if err != nil {
			return err
		}
		for _, e := range entities {
			printEntity(e)
		}
		return nil
	},
}

var graphCallersCmd = &cobra.Command{
	Use:   "callers <exactName>",
	Args:  cobra.ExactArgs(1),
	Short: "List entities that call an exact symbol name",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		entities, err := a.graphQuery.GetCallers(args[0])
		if err != nil {
			return err
		}
		for _, e := range entities {
			printEntity(e)
		}
		return nil
	},
}

var graphSummaryCmd = &cobra.Command{
	Use:   "summary [package]",
	Args:  cobra.MaximumNArgs(1),
	Short: "Summarize the graph, optionally scoped to one package",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		pkg := ""
		if len(args) == 1 {
			pkg = args[0]
		}
		summary, err := a.graphQuery.GetSummary(pkg)
		if err != nil {
			return err
		}
		fmt.Printf("entities=%d relationships=%d\n", summary.TotalEntities, summary.TotalRelationships)
		for kind, n := range summary.EntitiesByKind {
			fmt.Printf("  %s: %d\n", kind, n)
		}
		return nil
	},
}

func init() {
	graphParseCmd.Flags().BoolVar(&graphParseIncremental, "incremental", false, "reparse only files whose mtime changed since the last run")
	graphParseCmd.Flags().BoolVar(&graphParseQuiet, "quiet", false, "suppress the summary line")

	graphBlastRadiusCmd.Flags().IntVar(&graphBlastRadiusDepth, "depth", 5, "max traversal depth")

	graphFindCmd.Flags().StringVar(&graphFindKind, "kind", "", "restrict to one entity kind")
	graphFindCmd.Flags().IntVar(&graphFindLimit, "limit", 50, "max results")

	graphCmd.AddCommand(graphParseCmd, graphWhatCallsCmd, graphWhatDependsOnCmd, graphBlastRadiusCmd,
		graphFindCmd, graphExportsCmd, graphCallersCmd, graphSummaryCmd)
}

func printEntity(e graph.EntityRecord) {
	fmt.Printf("%s\t%s\t%s:%d\n", e.Name, e.Kind, e.FilePath, e.Line)
}
