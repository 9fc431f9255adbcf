package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"claude-knowledge/internal/checkpoint"
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Create and inspect workflows",
}

var (
	workflowIssue    int
	workflowHasIssue bool
	workflowBranch   string
	workflowWorktree string
)

var workflowCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a workflow",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		wf, err := a.checkpoints.CreateWorkflow(workflowIssue, workflowHasIssue, workflowBranch, workflowWorktree)
		if err != nil {
			return err
		}
		printWorkflow(wf)
		return nil
	},
}

var workflowGetCmd = &cobra.Command{
	Use:   "get <id>",
	Args:  cobra.ExactArgs(1),
	Short: "Get a workflow by id",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		wf, err := a.checkpoints.GetWorkflow(args[0])
		if err != nil {
			return err
		}
		printWorkflow(wf)
		return nil
	},
}

var workflowFindCmd = &cobra.Command{
	Use:   "find <branchPattern> [issueNumber]",
	Args:  cobra.RangeArgs(1, 2),
	Short: "Find workflows by branch pattern and/or issue number",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		hasIssue := len(args) == 2
		var issue int
		if hasIssue {
			issue, err = strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid issue number: %w", err)
			}
		}
		wfs, err := a.checkpoints.FindWorkflows(args[0], issue, hasIssue)
		if err != nil {
			return err
		}
		for _, wf := range wfs {
			printWorkflow(wf)
		}
		return nil
	},
}

var workflowListActiveCmd = &cobra.Command{
	Use:   "list-active",
	Short: "List running/paused workflows",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		wfs, err := a.checkpoints.ListActiveWorkflows()
		if err != nil {
			return err
		}
		for _, wf := range wfs {
			printWorkflow(wf)
		}
		return nil
	},
}

var workflowListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every workflow",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		wfs, err := a.checkpoints.ListWorkflows()
		if err != nil {
			return err
		}
		for _, wf := range wfs {
			printWorkflow(wf)
		}
		return nil
	},
}

var workflowSetPhaseCmd = &cobra.Command{
	Use:   "set-phase <id> <phase>",
	Args:  cobra.ExactArgs(2),
	Short: "Move a workflow to a new phase",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		return a.checkpoints.SetPhase(args[0], checkpoint.WorkflowPhase(args[1]))
	},
}

var workflowSetStatusCmd = &cobra.Command{
	Use:   "set-status <id> <status>",
	Args:  cobra.ExactArgs(2),
	Short: "Move a workflow to a new status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		return a.checkpoints.SetStatus(args[0], checkpoint.Status(args[1]))
	},
}

var workflowLogActionCmd = &cobra.Command{
	Use:   "log-action <id> <action> <result>",
	Args:  cobra.ExactArgs(3),
	Short: "Append an action to a workflow's log",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		return a.checkpoints.LogAction(args[0], args[1], checkpoint.ActionResult(args[2]), nil)
	},
}

var workflowLogCommitCmd = &cobra.Command{
	Use:   "log-commit <id> <sha> <message>",
	Args:  cobra.ExactArgs(3),
	Short: "Append a commit to a workflow's log",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		return a.checkpoints.LogCommit(args[0], args[1], args[2])
	},
}

var workflowDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Args:  cobra.ExactArgs(1),
	Short: "Delete a workflow",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		return a.checkpoints.DeleteWorkflow(args[0])
	},
}

var (
	linkWave    int
	linkHasWave bool
)

var workflowLinkCmd = &cobra.Command{
	Use:   "link <milestoneId> <workflowId>",
	Args:  cobra.ExactArgs(2),
	Short: "Link a workflow to a milestone",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		return a.checkpoints.LinkWorkflow(args[0], args[1], linkWave, linkHasWave)
	},
}

var workflowCleanupCmd = &cobra.Command{
	Use:   "cleanup [hoursThreshold]",
	Args:  cobra.MaximumNArgs(1),
	Short: "Mark running/paused workflows stale beyond a threshold as failed",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		hours := 24
		if len(args) == 1 {
			hours, err = strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid hours threshold: %w", err)
			}
		}
		n, err := a.checkpoints.CleanupStaleWorkflows(hours)
		if err != nil {
			return err
		}
		fmt.Printf("marked %d workflow(s) stale\n", n)
		return nil
	},
}

func init() {
	workflowCreateCmd.Flags().IntVar(&workflowIssue, "issue", 0, "GitHub issue number")
	workflowCreateCmd.Flags().StringVar(&workflowBranch, "branch", "", "git branch")
	workflowCreateCmd.Flags().StringVar(&workflowWorktree, "worktree", "", "worktree path")
	workflowCreateCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		workflowHasIssue = cmd.Flags().Changed("issue")
		return nil
	}

	workflowLinkCmd.Flags().IntVar(&linkWave, "wave", 0, "wave number")
	workflowLinkCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		linkHasWave = cmd.Flags().Changed("wave")
		return nil
	}

	workflowCmd.AddCommand(workflowCreateCmd, workflowGetCmd, workflowFindCmd, workflowListActiveCmd,
		workflowListCmd, workflowSetPhaseCmd, workflowSetStatusCmd, workflowLogActionCmd,
		workflowLogCommitCmd, workflowDeleteCmd, workflowLinkCmd, workflowCleanupCmd)
}

func printWorkflow(wf checkpoint.Workflow) {
	fmt.Printf("%s\tbranch=%s\tphase=%s\tstatus=%s\tretries=%d\n", wf.ID, wf.Branch, wf.Phase, wf.Status, wf.RetryCount)
}
