package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mrkwtz/stagegate/internal/app"
	"github.com/mrkwtz/stagegate/internal/usecase"
	"github.com/spf13/cobra"
)

// newReportCommand creates the report command.
func newReportCommand(c *app.Container) *cobra.Command {
	var opts struct {
		Since  string
		TaskID string
		JSON   bool
	}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print remediation and evidence KPIs",
		Long: `Aggregate the auto-fix log and the current checklist state into
operational metrics: fix success rate, mean time to repair, fix reuse
rate and evidence compliance.

Examples:
  stagegate report
  stagegate report --since 2026-08-01T00:00:00Z --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var since time.Time
			if opts.Since != "" {
				t, err := time.Parse(time.RFC3339, opts.Since)
				if err != nil {
					return fmt.Errorf("parse --since: %w", err)
				}
				since = t.UTC()
			}

			report, err := c.ReportKPIUseCase().Execute(usecase.ReportKPIInput{
				Since:  since,
				TaskID: opts.TaskID,
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if opts.JSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			_, _ = fmt.Fprintln(w, styleHeading.Render("KPI report ("+report.Window+")"))
			_, _ = fmt.Fprintf(w, "Fix attempts:         %d\n", report.FixAttempts)
			_, _ = fmt.Fprintf(w, "Fix success rate:     %.2f\n", report.FixSuccessRate)
			_, _ = fmt.Fprintf(w, "Fix reuse rate:       %.2f\n", report.FixReuseRate)
			_, _ = fmt.Fprintf(w, "Rollbacks:            %d\n", report.FixRollbacks)
			_, _ = fmt.Fprintf(w, "Escalations:          %d\n", report.FixEscalations)
			_, _ = fmt.Fprintf(w, "MTTR:                 %.0fs\n", report.MTTRSeconds)
			_, _ = fmt.Fprintf(w, "Evidence compliance:  %.2f", report.EvidenceCompliance)
			if report.ChecklistAudited != "" {
				_, _ = fmt.Fprintf(w, " %s", styleMuted.Render("("+report.ChecklistAudited+")"))
			}
			_, _ = fmt.Fprintln(w)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Since, "since", "", "Window start, RFC 3339 (default: all time)")
	cmd.Flags().StringVar(&opts.TaskID, "task", "", "Restrict evidence compliance to one task")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Print the report as JSON")
	return cmd
}
