package cli

import (
	"fmt"

	"github.com/mrkwtz/stagegate/internal/app"
	"github.com/mrkwtz/stagegate/internal/domain"
	"github.com/mrkwtz/stagegate/internal/usecase"
	"github.com/spf13/cobra"
)

// newAuditCommand creates the audit command.
func newAuditCommand(c *app.Container) *cobra.Command {
	var opts struct {
		TaskID       string
		RequireFresh bool
		Strict       bool
		Keywords     []string
	}

	cmd := &cobra.Command{
		Use:   "audit <checklist.md>",
		Short: "Validate checked-off checklist items against the evidence store",
		Long: `Scan a markdown checklist and validate every checked-off item.

An item counts as complete only when an evidence reference within the
lookahead window resolves to a stored record. Checkmarks without such a
reference are hollow and reported with their line numbers. Content in
code fences is ignored.

Examples:
  stagegate audit docs/checklist.md
  stagegate audit docs/checklist.md --task auth-20260115093005-a3f2 --strict`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := c.AuditChecklistUseCase().Execute(usecase.AuditChecklistInput{
				ChecklistPath: args[0],
				TaskID:        opts.TaskID,
				RequireFresh:  opts.RequireFresh,
				Keywords:      opts.Keywords,
			})
			if err != nil {
				return err
			}
			printAuditReport(cmd, report)
			if opts.Strict && (len(report.HollowItems) > 0 || len(report.UnaddressedKeywords) > 0) {
				return fmt.Errorf("%d hollow item(s), %d unaddressed keyword(s)",
					len(report.HollowItems), len(report.UnaddressedKeywords))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.TaskID, "task", "", "Restrict evidence resolution to one task")
	cmd.Flags().BoolVar(&opts.RequireFresh, "require-fresh", false, "Treat stale evidence as hollow")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "Exit non-zero when hollow items exist")
	cmd.Flags().StringArrayVar(&opts.Keywords, "keyword", nil, "Require the checklist to mention a topic outside code fences (repeatable)")
	return cmd
}

func printAuditReport(cmd *cobra.Command, report *domain.AuditReport) {
	w := cmd.OutOrStdout()

	for _, r := range report.Results {
		if !r.Checked {
			continue
		}
		switch r.Status {
		case domain.ItemComplete:
			_, _ = fmt.Fprintf(w, "%s line %d: %s (%s)\n",
				stylePass.Render("ok"), r.Line, r.Text, r.EvidenceID)
		case domain.ItemStale:
			_, _ = fmt.Fprintf(w, "%s line %d: %s (%s is stale)\n",
				styleWarn.Render("stale"), r.Line, r.Text, r.EvidenceID)
		default:
			_, _ = fmt.Fprintf(w, "%s line %d: %s (%s)\n",
				styleFail.Render("hollow"), r.Line, r.Text, r.Status)
		}
	}

	for _, kw := range report.UnaddressedKeywords {
		_, _ = fmt.Fprintf(w, "%s keyword %q is not addressed outside code fences\n",
			styleFail.Render("missing"), kw)
	}

	ratio := report.CompletionRatio()
	summary := fmt.Sprintf("\n%d checked, %d with evidence, %d hollow, completion %.0f%%\n",
		report.CompleteWithEvidence+report.CompleteWithoutEvidence,
		report.CompleteWithEvidence, len(report.HollowItems), ratio*100)
	if len(report.HollowItems) > 0 {
		_, _ = fmt.Fprint(w, styleFail.Render(summary))
	} else {
		_, _ = fmt.Fprint(w, stylePass.Render(summary))
	}
}
