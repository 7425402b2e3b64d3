package cli

import (
	"fmt"

	"github.com/mrkwtz/stagegate/internal/app"
	"github.com/spf13/cobra"
)

// newInitCommand creates the init command.
func newInitCommand(c *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the workspace",
		Long: `Initialize the stagegate workspace.

This command creates the .stagegate/ directory with:
- config.toml: default configuration
- tasks/, archive/: task namespaces
- evidence/: week-bucketed evidence records
- snapshots/: auto-fix rollback state
- signing.key: orchestrator HMAC key (0600)

The state directory is added to .git/info/exclude so it never
lands in commits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.InitWorkspaceUseCase().Execute(); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Initialized stagegate in %s\n", c.Paths.StateDir)
			return nil
		},
	}
}
