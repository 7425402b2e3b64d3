package cli

import (
	"fmt"

	"github.com/mrkwtz/stagegate/internal/app"
	"github.com/mrkwtz/stagegate/internal/domain"
	"github.com/mrkwtz/stagegate/internal/usecase"
	"github.com/spf13/cobra"
)

// newAdvanceCommand creates the advance command.
func newAdvanceCommand(c *app.Container) *cobra.Command {
	var opts struct {
		From      string
		To        string
		Checklist string
		DryRun    bool
	}

	cmd := &cobra.Command{
		Use:   "advance <task-id>",
		Short: "Advance a task to the next phase",
		Long: `Attempt a phase transition. The gate passes only when every
requirement of the current phase holds: required evidence types exist,
the checklist completion ratio meets the threshold, and the lane's
delegated-work minimum is satisfied. A refused advance prints each unmet
condition and leaves the task where it was.

Examples:
  stagegate advance auth-20260115093005-a3f2
  stagegate advance auth-20260115093005-a3f2 --checklist docs/checklist.md
  stagegate advance auth-20260115093005-a3f2 --from testing --to review --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := args[0]

			from, to, err := resolveTransition(c, taskID, opts.From, opts.To)
			if err != nil {
				return err
			}

			out, err := c.AdvancePhaseUseCase().Execute(usecase.AdvancePhaseInput{
				TaskID:        taskID,
				From:          from,
				To:            to,
				ChecklistPath: opts.Checklist,
				DryRun:        opts.DryRun,
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, v := range out.Violations {
				if v.Warning {
					_, _ = fmt.Fprintf(w, "%s %s\n", styleWarn.Render("warn:"), v.String())
				} else {
					_, _ = fmt.Fprintf(w, "%s %s\n", styleFail.Render("blocked:"), v.String())
				}
			}
			if !out.Advanced {
				return fmt.Errorf("advance %s -> %s refused (%d unmet condition(s))", from, to, len(out.Violations))
			}
			if opts.DryRun {
				_, _ = fmt.Fprintln(w, stylePass.Render(fmt.Sprintf("Gate %s -> %s would pass", from, to)))
			} else {
				_, _ = fmt.Fprintln(w, stylePass.Render(fmt.Sprintf("Advanced %s -> %s", from, to)))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.From, "from", "", "Expected current phase (defaults to the task's phase)")
	cmd.Flags().StringVar(&opts.To, "to", "", "Target phase (defaults to the immediate successor)")
	cmd.Flags().StringVar(&opts.Checklist, "checklist", "", "Checklist audited by the gate")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Evaluate the gate without moving the task")
	return cmd
}

// resolveTransition fills in the from/to phases from the task when the
// flags are omitted.
func resolveTransition(c *app.Container, taskID, fromFlag, toFlag string) (domain.Phase, domain.Phase, error) {
	var from domain.Phase
	if fromFlag != "" {
		p, err := domain.ParsePhase(fromFlag)
		if err != nil {
			return "", "", fmt.Errorf("phase %q: %w", fromFlag, err)
		}
		from = p
	} else {
		task, err := c.Tasks.Resolve(taskID)
		if err != nil {
			return "", "", err
		}
		from = task.CurrentPhase()
	}

	var to domain.Phase
	if toFlag != "" {
		p, err := domain.ParsePhase(toFlag)
		if err != nil {
			return "", "", fmt.Errorf("phase %q: %w", toFlag, err)
		}
		to = p
	} else {
		next, ok := from.Next()
		if !ok {
			return "", "", domain.ErrTerminalPhase
		}
		to = next
	}
	return from, to, nil
}
