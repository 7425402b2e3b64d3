package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/mrkwtz/stagegate/internal/app"
	"github.com/mrkwtz/stagegate/internal/domain"
	"github.com/spf13/cobra"
)

// checkPayload is the JSON shape hooks pipe to 'stagegate check'.
type checkPayload struct {
	Event       string   `json:"event"`
	ToolName    string   `json:"tool_name,omitempty"`
	StagedPaths []string `json:"staged_paths,omitempty"`
	Phase       string   `json:"phase,omitempty"`
	TaskID      string   `json:"task_id,omitempty"`
}

// newCheckCommand creates the check command.
func newCheckCommand(c *app.Container) *cobra.Command {
	var opts struct {
		Event  string
		TaskID string
		Paths  []string
		Stdin  bool
		JSON   bool
	}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate a lifecycle event against the current gates",
		Long: `Evaluate a lifecycle event and print the decision.

Meant to be wired into hooks: a pre-commit hook pipes the event payload
on stdin and blocks the commit when the exit status is non-zero. In
advisory mode violations are printed but the event is allowed; disabled
mode allows everything.

Examples:
  stagegate check --event pre_mutation --task auth-20260115093005-a3f2 --path src/auth.go
  echo '{"event":"pre_commit","staged_paths":["src/auth.go"]}' | stagegate check --stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload := checkPayload{
				Event:       opts.Event,
				StagedPaths: opts.Paths,
				TaskID:      opts.TaskID,
			}
			if opts.Stdin {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read event payload: %w", err)
				}
				if err := json.Unmarshal(data, &payload); err != nil {
					return fmt.Errorf("parse event payload: %w", err)
				}
			}

			eventType, ok := domain.ParseEventType(payload.Event)
			if !ok {
				return fmt.Errorf("unknown event %q", payload.Event)
			}

			var phase domain.Phase
			if payload.Phase != "" {
				p, err := domain.ParsePhase(payload.Phase)
				if err != nil {
					return fmt.Errorf("phase %q: %w", payload.Phase, err)
				}
				phase = p
			}

			decision, err := c.CheckEventUseCase().Execute(domain.CheckRequest{
				EventType:    eventType,
				ToolName:     payload.ToolName,
				StagedPaths:  payload.StagedPaths,
				CurrentPhase: phase,
				TaskID:       payload.TaskID,
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if opts.JSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(decision); err != nil {
					return err
				}
			} else {
				for _, reason := range decision.Reasons {
					_, _ = fmt.Fprintln(w, styleFail.Render("- ")+reason)
				}
				if decision.Allow {
					_, _ = fmt.Fprintln(w, stylePass.Render("allow"))
				} else {
					_, _ = fmt.Fprintln(w, styleFail.Render("deny"))
				}
			}
			if !decision.Allow {
				return fmt.Errorf("%s denied (%d reason(s))", payload.Event, len(decision.Reasons))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Event, "event", "", "Event type (pre_mutation|pre_commit|phase_advance)")
	cmd.Flags().StringVar(&opts.TaskID, "task", "", "Task id")
	cmd.Flags().StringArrayVar(&opts.Paths, "path", nil, "Staged path (repeatable)")
	cmd.Flags().BoolVar(&opts.Stdin, "stdin", false, "Read the event payload as JSON from stdin")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Print the decision as JSON")
	return cmd
}
