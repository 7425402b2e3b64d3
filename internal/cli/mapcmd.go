package cli

import (
	"fmt"

	"github.com/mrkwtz/stagegate/internal/app"
	"github.com/mrkwtz/stagegate/internal/usecase"
	"github.com/spf13/cobra"
)

// newMapCommand creates the map command group.
func newMapCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Maintain the plan/checklist id mapping",
	}
	cmd.AddCommand(newMapBindCommand(c))
	return cmd
}

func newMapBindCommand(c *app.Container) *cobra.Command {
	var opts struct {
		Plan         string
		Checklist    []string
		EvidenceType string
	}

	cmd := &cobra.Command{
		Use:   "bind",
		Short: "Bind a plan item to checklist items",
		Long: `Bind one plan item id to its checklist item ids.

Bindings survive rewording of either side: audits resolve items through
their ids, never through text. Re-binding the same set is a no-op;
binding an existing plan id to a different set is rejected.

Examples:
  stagegate map bind --plan plan-auth-1 --item impl-3 --item impl-4
  stagegate map bind --plan plan-auth-2 --item test-1 --evidence-type test_result`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.BindMappingUseCase().Execute(usecase.BindMappingInput{
				PlanItemID:           opts.Plan,
				ChecklistItemIDs:     opts.Checklist,
				RequiredEvidenceType: opts.EvidenceType,
			}); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Bound %s to %d checklist item(s)\n",
				opts.Plan, len(opts.Checklist))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Plan, "plan", "", "Plan item id")
	cmd.Flags().StringArrayVar(&opts.Checklist, "item", nil, "Checklist item id (repeatable)")
	cmd.Flags().StringVar(&opts.EvidenceType, "evidence-type", "", "Evidence type required for these items")
	_ = cmd.MarkFlagRequired("plan")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}
