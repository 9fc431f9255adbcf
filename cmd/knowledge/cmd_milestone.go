package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"claude-knowledge/internal/checkpoint"
)

var milestoneCmd = &cobra.Command{
	Use:   "milestone",
	Short: "Create and inspect milestones",
}

var milestoneCreateCmd = &cobra.Command{
	Use:   "create <name> [githubNumber]",
	Short: "Create a milestone",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		hasGithub := len(args) == 2
		var githubNumber int
		if hasGithub {
			githubNumber, err = strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid github number: %w", err)
			}
		}
		m, err := a.checkpoints.CreateMilestone(args[0], githubNumber, hasGithub)
		if err != nil {
			return err
		}
		printMilestone(m)
		return nil
	},
}

var milestoneGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get a milestone by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		m, err := a.checkpoints.GetMilestone(args[0])
		if err != nil {
			return err
		}
		printMilestone(m)
		return nil
	},
}

var milestoneFindCmd = &cobra.Command{
	Use:   "find <namePattern>",
	Short: "Find milestones by name pattern",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		ms, err := a.checkpoints.FindMilestones(args[0])
		if err != nil {
			return err
		}
		for _, m := range ms {
			printMilestone(m)
		}
		return nil
	},
}

var milestoneListActiveCmd = &cobra.Command{
	Use:   "list-active",
	Short: "List running/paused milestones",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		ms, err := a.checkpoints.ListActiveMilestones()
		if err != nil {
			return err
		}
		for _, m := range ms {
			printMilestone(m)
		}
		return nil
	},
}

var milestoneSetPhaseCmd = &cobra.Command{
	Use:   "set-phase <id> <phase>",
	Short: "Move a milestone to a new phase",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		return a.checkpoints.SetMilestonePhase(args[0], checkpoint.MilestonePhase(args[1]))
	},
}

var milestoneSetStatusCmd = &cobra.Command{
	Use:   "set-status <id> <status>",
	Short: "Move a milestone to a new status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		return a.checkpoints.SetMilestoneStatus(args[0], checkpoint.Status(args[1]))
	},
}

var milestoneDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a milestone",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()
		return a.checkpoints.DeleteMilestone(args[0])
	},
}

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Manage milestone lint/typecheck baselines",
}

var baselineSaveCmd = &cobra.Command{
	Use:   "save <milestoneId> <lintExit> <lintWarn> <lintErr> <tcExit> <tcErr>",
	Short: "Save a milestone's baseline",
	Args:  cobra.ExactArgs(6),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		nums := make([]int, 5)
		for i := 0; i < 5; i++ {
			n, err := strconv.Atoi(args[i+1])
			if err != nil {
				return fmt.Errorf("invalid integer argument %q: %w", args[i+1], err)
			}
			nums[i] = n
		}
		return a.checkpoints.SaveBaseline(checkpoint.Baseline{
			MilestoneID: args[0],
			LintExit:    nums[0],
			LintWarn:    nums[1],
			LintErr:     nums[2],
			TCExit:      nums[3],
			TCErr:       nums[4],
		})
	},
}

func init() {
	milestoneCmd.AddCommand(milestoneCreateCmd, milestoneGetCmd, milestoneFindCmd,
		milestoneListActiveCmd, milestoneSetPhaseCmd, milestoneSetStatusCmd, milestoneDeleteCmd)
	baselineCmd.AddCommand(baselineSaveCmd)
}

func printMilestone(m checkpoint.Milestone) {
	fmt.Printf("%s\t%s\tphase=%s\tstatus=%s\n", m.ID, m.Name, m.Phase, m.Status)
}
