package cli

import (
	"errors"
	"fmt"

	"github.com/mrkwtz/stagegate/internal/app"
	"github.com/mrkwtz/stagegate/internal/domain"
	"github.com/mrkwtz/stagegate/internal/usecase"
	"github.com/spf13/cobra"
)

// newFixCommand creates the fix command.
func newFixCommand(c *app.Container) *cobra.Command {
	var opts struct {
		Confidence float64
		Confirm    bool
	}

	cmd := &cobra.Command{
		Use:   "fix <error-signature>",
		Short: "Apply a tiered automatic remediation",
		Long: `Classify an error signature and apply the matching fix.

A snapshot of the dirty worktree is taken before any fix runs; a failed
fix is rolled back and the snapshot retained for inspection. High-risk
signatures and low-confidence classifications always require --confirm.

Examples:
  stagegate fix "missing go.sum entry for module" --confidence 0.98
  stagegate fix "schema migration required" --confirm`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uc, err := c.ApplyFixUseCase()
			if err != nil {
				return err
			}
			out, err := uc.Execute(usecase.ApplyFixInput{
				Signature:  args[0],
				Confidence: opts.Confidence,
				Confirmed:  opts.Confirm,
			})
			if out != nil && out.Result != nil {
				printFixResult(cmd, out)
			}
			if errors.Is(err, domain.ErrConfirmRequired) {
				return fmt.Errorf("%w (re-run with --confirm)", err)
			}
			return err
		},
	}
	cmd.Flags().Float64Var(&opts.Confidence, "confidence", 0, "Classifier confidence in [0,1]")
	cmd.Flags().BoolVar(&opts.Confirm, "confirm", false, "Approve tier3 / unmatched fixes")
	return cmd
}

func printFixResult(cmd *cobra.Command, out *usecase.ApplyFixOutput) {
	w := cmd.OutOrStdout()
	r := out.Result

	_, _ = fmt.Fprintf(w, "Tier:     %s\n", r.Tier)
	if r.Rule != "" {
		_, _ = fmt.Fprintf(w, "Rule:     %s\n", r.Rule)
	}
	if r.SnapshotID != "" {
		_, _ = fmt.Fprintf(w, "Snapshot: %s\n", r.SnapshotID)
	}
	switch {
	case r.Applied:
		_, _ = fmt.Fprintln(w, stylePass.Render("fix applied"))
	case r.RolledBack:
		_, _ = fmt.Fprintln(w, styleFail.Render("fix failed, worktree rolled back"))
	case r.Escalated:
		_, _ = fmt.Fprintln(w, styleWarn.Render("escalated for manual handling"))
	}
}
