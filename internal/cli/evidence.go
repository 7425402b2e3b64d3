package cli

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/mrkwtz/stagegate/internal/app"
	"github.com/mrkwtz/stagegate/internal/domain"
	"github.com/mrkwtz/stagegate/internal/usecase"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// newEvidenceCommand creates the evidence command group.
func newEvidenceCommand(c *app.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evidence",
		Short: "Record and inspect proof-of-work records",
	}
	cmd.AddCommand(
		newEvidenceAddCommand(c),
		newEvidenceShowCommand(c),
	)
	return cmd
}

func newEvidenceAddCommand(c *app.Container) *cobra.Command {
	var opts struct {
		TaskID        string
		Type          string
		ChecklistItem string
		Path          string
		Command       string
		ExitCode      int
		OutputSample  string
		Reviewer      string
		Verdict       string
		Notes         string
	}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append an evidence record",
		Long: `Append an immutable evidence record and print its assigned id.

The record shape depends on --type:
  test_result, command_output:  --command and --exit-code, optionally
                                --output-sample (read from stdin with '-')
  artifact:                     --path; the content hash is computed here
  code_review:                  --reviewer and --verdict

Examples:
  stagegate evidence add --task auth-20260115093005-a3f2 \
    --type test_result --command "go test ./..." --exit-code 0 \
    --item impl-3

  stagegate evidence add --type artifact --path dist/app.tar.gz

  stagegate evidence add --type code_review --reviewer alice --verdict approved`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			evType, err := domain.ParseEvidenceType(opts.Type)
			if err != nil {
				return fmt.Errorf("type %q: %w", opts.Type, err)
			}

			record := domain.EvidenceRecord{
				Type:          evType,
				ChecklistItem: opts.ChecklistItem,
				Timestamp:     c.Clock.Now(),
				Artifact: domain.Artifact{
					Path:         opts.Path,
					Command:      opts.Command,
					OutputSample: opts.OutputSample,
					Reviewer:     opts.Reviewer,
					Verdict:      opts.Verdict,
					Notes:        opts.Notes,
				},
			}
			if cmd.Flags().Changed("exit-code") {
				record.Artifact.ExitCode = &opts.ExitCode
			}
			if opts.OutputSample == "-" {
				sample, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read output sample: %w", err)
				}
				record.Artifact.OutputSample = string(sample)
			}
			if evType == domain.EvidenceArtifact && opts.Path != "" {
				sum, err := hashFile(opts.Path)
				if err != nil {
					return fmt.Errorf("hash artifact: %w", err)
				}
				record.Artifact.SHA256 = sum
			}

			id, err := c.AppendEvidenceUseCase().Execute(usecase.AppendEvidenceInput{
				TaskID: opts.TaskID,
				Record: record,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.TaskID, "task", "", "Task the record belongs to")
	cmd.Flags().StringVar(&opts.Type, "type", "", "Evidence type (test_result|code_review|command_output|artifact)")
	cmd.Flags().StringVar(&opts.ChecklistItem, "item", "", "Checklist item id this record backs")
	cmd.Flags().StringVar(&opts.Path, "path", "", "Artifact file path")
	cmd.Flags().StringVar(&opts.Command, "command", "", "Captured command line")
	cmd.Flags().IntVar(&opts.ExitCode, "exit-code", 0, "Captured command exit code")
	cmd.Flags().StringVar(&opts.OutputSample, "output-sample", "", "Captured output ('-' reads stdin)")
	cmd.Flags().StringVar(&opts.Reviewer, "reviewer", "", "Review author")
	cmd.Flags().StringVar(&opts.Verdict, "verdict", "", "Review verdict")
	cmd.Flags().StringVar(&opts.Notes, "notes", "", "Free-form notes")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newEvidenceShowCommand(c *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "show <evidence-id>",
		Short: "Print one evidence record as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := c.LookupEvidenceUseCase().Execute(args[0])
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(record)
			if err != nil {
				return fmt.Errorf("marshal record: %w", err)
			}
			_, _ = cmd.OutOrStdout().Write(out)
			return nil
		},
	}
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
