// Package cli provides the command-line interface for stagegate.
package cli

import (
	"fmt"

	"github.com/mrkwtz/stagegate/internal/app"
	"github.com/spf13/cobra"
)

// Command group IDs.
const (
	groupSetup = "setup"
	groupTask  = "task"
	groupGate  = "gate"
)

// NewRootCommand creates the root command for stagegate.
// It receives the container for dependency injection and version for display.
func NewRootCommand(c *app.Container, version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "stagegate",
		Short: "Evidence-gated phase workflow for development tasks",
		Long: `stagegate tracks development tasks through an ordered phase pipeline
where every transition is a gate: a task advances only when the current
phase's evidence, checklist and delegation requirements hold. Claims of
completed work must be backed by resolvable evidence records, so a
checklist cannot be hollow-checked past a gate.`,
		Version: version,
		// SilenceUsage prevents usage from being printed on errors
		SilenceUsage: true,
		// SilenceErrors prevents Cobra from printing errors (we handle it in main)
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "init" || c == nil {
				return nil
			}
			cfg, err := c.Config.Load()
			if err != nil {
				// Not initialized yet; individual commands report that.
				return nil
			}
			for _, w := range cfg.Warnings {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", w)
			}
			return nil
		},
	}

	root.AddGroup(
		&cobra.Group{ID: groupSetup, Title: "Setup Commands:"},
		&cobra.Group{ID: groupTask, Title: "Task Management:"},
		&cobra.Group{ID: groupGate, Title: "Gates & Evidence:"},
	)

	initCmd := newInitCommand(c)
	initCmd.GroupID = groupSetup

	taskCmd := newTaskCommand(c)
	taskCmd.GroupID = groupTask

	agentCmd := newAgentCommand(c)
	agentCmd.GroupID = groupTask

	evidenceCmd := newEvidenceCommand(c)
	evidenceCmd.GroupID = groupGate

	mapCmd := newMapCommand(c)
	mapCmd.GroupID = groupGate

	auditCmd := newAuditCommand(c)
	auditCmd.GroupID = groupGate

	advanceCmd := newAdvanceCommand(c)
	advanceCmd.GroupID = groupGate

	checkCmd := newCheckCommand(c)
	checkCmd.GroupID = groupGate

	fixCmd := newFixCommand(c)
	fixCmd.GroupID = groupGate

	reportCmd := newReportCommand(c)
	reportCmd.GroupID = groupGate

	root.AddCommand(
		initCmd,
		taskCmd,
		agentCmd,
		evidenceCmd,
		mapCmd,
		auditCmd,
		advanceCmd,
		checkCmd,
		fixCmd,
		reportCmd,
	)

	return root
}
