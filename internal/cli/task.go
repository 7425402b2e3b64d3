package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/mrkwtz/stagegate/internal/app"
	"github.com/mrkwtz/stagegate/internal/domain"
	"github.com/mrkwtz/stagegate/internal/usecase"
	"github.com/spf13/cobra"
)

// newTaskCommand creates the task command group.
func newTaskCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage task namespaces",
	}
	cmd.AddCommand(
		newTaskNewCommand(c),
		newTaskListCommand(c),
		newTaskShowCommand(c),
		newTaskArchiveCommand(c),
	)
	return cmd
}

func newTaskNewCommand(c *app.Container) *cobra.Command {
	var lane string

	cmd := &cobra.Command{
		Use:   "new <slug>",
		Short: "Create a new task",
		Long: `Create a new task in the discovery phase.

The slug is normalized to lowercase with hyphens; the task id embeds
the creation timestamp and a random suffix, e.g.
auth-refactor-20260115093005-a3f2.

Examples:
  stagegate task new auth-refactor
  stagegate task new typo-fix --lane fast`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := domain.ParseLane(lane)
			if err != nil {
				return fmt.Errorf("lane %q: %w", lane, err)
			}
			task, err := c.CreateTaskUseCase().Execute(usecase.CreateTaskInput{
				Slug: args[0],
				Lane: l,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created task %s (lane %s, phase %s)\n",
				task.ID, task.Lane, task.CurrentPhase())
			return nil
		},
	}
	cmd.Flags().StringVar(&lane, "lane", string(domain.LaneFull), "Task lane (fast|full)")
	return cmd
}

func newTaskListCommand(c *app.Container) *cobra.Command {
	var phase, lane string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List live tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tasks, err := c.ListTasksUseCase().Execute(usecase.ListTasksInput{
				Phase: phase,
				Lane:  lane,
			})
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), styleMuted.Render("no tasks"))
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tPHASE\tLANE\tAGENTS\tSTARTED")
			for _, t := range tasks {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\n",
					t.ID, t.CurrentPhase(), t.Lane,
					len(t.InvokedAgents), t.RequiredAgentCount,
					t.StartedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&phase, "phase", "", "Filter by phase")
	cmd.Flags().StringVar(&lane, "lane", "", "Filter by lane (fast|full)")
	return cmd
}

func newTaskShowCommand(c *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task with its phase history, agents and evidence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := c.ShowTaskUseCase().Execute(args[0])
			if err != nil {
				return err
			}
			printTask(cmd, out)
			return nil
		},
	}
}

func printTask(cmd *cobra.Command, out *usecase.ShowTaskOutput) {
	w := cmd.OutOrStdout()
	t := out.Task

	_, _ = fmt.Fprintln(w, styleHeading.Render(t.ID))
	_, _ = fmt.Fprintf(w, "Slug:    %s\n", t.Slug)
	_, _ = fmt.Fprintf(w, "Lane:    %s\n", t.Lane)
	_, _ = fmt.Fprintf(w, "Phase:   %s\n", t.CurrentPhase())
	if t.Archived {
		_, _ = fmt.Fprintln(w, styleWarn.Render("Archived"))
	}

	_, _ = fmt.Fprintln(w, "\nPhase history:")
	for _, e := range t.PhaseHistory {
		gate := styleMuted.Render("open")
		if !e.ExitedAt.IsZero() {
			if e.GatePassed {
				gate = stylePass.Render("passed")
			} else {
				gate = styleFail.Render("failed")
			}
		}
		_, _ = fmt.Fprintf(w, "  %-15s %s  %s\n", e.Phase, e.EnteredAt.Format(time.RFC3339), gate)
	}

	if len(out.Invocations) > 0 {
		_, _ = fmt.Fprintf(w, "\nAgent invocations (%d/%d):\n", len(out.Invocations), t.RequiredAgentCount)
		for _, inv := range out.Invocations {
			_, _ = fmt.Fprintf(w, "  %s depth=%d status=%s %s\n",
				inv.AgentName, inv.Depth, inv.Status, inv.InvokedAt.Format(time.RFC3339))
		}
	}

	if len(out.Evidence) > 0 {
		_, _ = fmt.Fprintf(w, "\nEvidence (%d):\n", len(out.Evidence))
		for _, r := range out.Evidence {
			_, _ = fmt.Fprintf(w, "  %s %-15s %s\n", r.ID, r.Type, r.Timestamp.Format(time.RFC3339))
		}
	}
}

func newTaskArchiveCommand(c *app.Container) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "archive <task-id>",
		Short: "Move a task to the archive",
		Long: `Move a task namespace to the archive.

Archived tasks keep their full history for audits; nothing is deleted.
Tasks that have not reached the closure phase need --force.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.ArchiveTaskUseCase().Execute(usecase.ArchiveTaskInput{
				TaskID: args[0],
				Force:  force,
			}); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Archived %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Archive before the terminal phase")
	return cmd
}
