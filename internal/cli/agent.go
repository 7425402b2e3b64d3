package cli

import (
	"fmt"
	"time"

	"github.com/mrkwtz/stagegate/internal/app"
	"github.com/mrkwtz/stagegate/internal/domain"
	"github.com/mrkwtz/stagegate/internal/infra/agentlog"
	"github.com/mrkwtz/stagegate/internal/usecase"
	"github.com/spf13/cobra"
)

// newAgentCommand creates the agent command group.
func newAgentCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Track delegated sub-task dispatches",
	}
	cmd.AddCommand(
		newAgentSignCommand(c),
		newAgentRecordCommand(c),
	)
	return cmd
}

func newAgentSignCommand(c *app.Container) *cobra.Command {
	var opts struct {
		TaskID    string
		Name      string
		Depth     int
		InvokedAt string
	}

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Compute the orchestrator signature for an invocation",
		Long: `Compute the HMAC signature the orchestrator attaches to a dispatch.

Only the process holding the signing key can produce it; dispatched
units cannot forge records for work that never ran.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.Signer == nil {
				return domain.ErrNoSigningKey
			}
			invokedAt, err := parseInvokedAt(opts.InvokedAt, c)
			if err != nil {
				return err
			}
			payload := agentlog.Payload(opts.TaskID, domain.AgentInvocation{
				AgentName: opts.Name,
				Depth:     opts.Depth,
				InvokedAt: invokedAt,
			})
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), c.Signer.Sign(payload))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.TaskID, "task", "", "Task id")
	cmd.Flags().StringVar(&opts.Name, "name", "", "Agent name")
	cmd.Flags().IntVar(&opts.Depth, "depth", 1, "Delegation depth")
	cmd.Flags().StringVar(&opts.InvokedAt, "invoked-at", "", "Invocation time, RFC 3339 (defaults to now)")
	_ = cmd.MarkFlagRequired("task")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newAgentRecordCommand(c *app.Container) *cobra.Command {
	var opts struct {
		TaskID    string
		Name      string
		Depth     int
		Status    string
		Signature string
		InvokedAt string
	}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a delegated invocation",
		Long: `Record one delegated sub-task dispatch for a task.

The record is rejected when the depth exceeds 1 (units never delegate
further) or when the signature does not verify against the orchestrator
key. Rejected records are never persisted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			invokedAt, err := parseInvokedAt(opts.InvokedAt, c)
			if err != nil {
				return err
			}
			if err := c.RecordAgentUseCase().Execute(usecase.RecordAgentInput{
				TaskID: opts.TaskID,
				Invocation: domain.AgentInvocation{
					AgentName: opts.Name,
					Depth:     opts.Depth,
					Status:    opts.Status,
					Signature: opts.Signature,
					InvokedAt: invokedAt,
				},
			}); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s for %s\n", opts.Name, opts.TaskID)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.TaskID, "task", "", "Task id")
	cmd.Flags().StringVar(&opts.Name, "name", "", "Agent name")
	cmd.Flags().IntVar(&opts.Depth, "depth", 1, "Delegation depth")
	cmd.Flags().StringVar(&opts.Status, "status", "success", "Outcome (success|failure|timeout)")
	cmd.Flags().StringVar(&opts.Signature, "signature", "", "Orchestrator signature from 'agent sign'")
	cmd.Flags().StringVar(&opts.InvokedAt, "invoked-at", "", "Invocation time, RFC 3339 (defaults to now)")
	_ = cmd.MarkFlagRequired("task")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("signature")
	return cmd
}

func parseInvokedAt(s string, c *app.Container) (time.Time, error) {
	if s == "" {
		return c.Clock.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse --invoked-at: %w", err)
	}
	return t.UTC(), nil
}
