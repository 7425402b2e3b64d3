package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestEvidenceRecord_Validate_PerTypeSchema(t *testing.T) {
	now := time.Date(2025, 10, 28, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		record    EvidenceRecord
		wantField string
	}{
		{
			name: "valid test_result",
			record: EvidenceRecord{
				Type:      EvidenceTestResult,
				Timestamp: now,
				Artifact:  Artifact{Command: "go test ./...", ExitCode: intPtr(0), OutputSample: "ok"},
			},
		},
		{
			name: "test_result missing command",
			record: EvidenceRecord{
				Type:      EvidenceTestResult,
				Timestamp: now,
				Artifact:  Artifact{ExitCode: intPtr(0), OutputSample: "ok"},
			},
			wantField: "command",
		},
		{
			name: "command_output missing exit code",
			record: EvidenceRecord{
				Type:      EvidenceCommandOutput,
				Timestamp: now,
				Artifact:  Artifact{Command: "make build", OutputSample: "done"},
			},
			wantField: "exit_code",
		},
		{
			name: "code_review empty verdict",
			record: EvidenceRecord{
				Type:      EvidenceCodeReview,
				Timestamp: now,
				Artifact:  Artifact{Reviewer: "alex", Notes: "looks fine"},
			},
			wantField: "verdict",
		},
		{
			name: "artifact with short hash",
			record: EvidenceRecord{
				Type:      EvidenceArtifact,
				Timestamp: now,
				Artifact:  Artifact{Path: "dist/app.tar.gz", SHA256: "abc123"},
			},
			wantField: "sha256",
		},
		{
			name: "valid artifact",
			record: EvidenceRecord{
				Type:      EvidenceArtifact,
				Timestamp: now,
				Artifact:  Artifact{Path: "dist/app.tar.gz", SHA256: strings.Repeat("ab", 32)},
			},
		},
		{
			name:      "unknown type",
			record:    EvidenceRecord{Type: "screenshot", Timestamp: now},
			wantField: "type",
		},
		{
			name: "zero timestamp",
			record: EvidenceRecord{
				Type:     EvidenceTestResult,
				Artifact: Artifact{Command: "go test", ExitCode: intPtr(0), OutputSample: "ok"},
			},
			wantField: "timestamp",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var sv *SchemaViolation
			require.ErrorAs(t, err, &sv)
			assert.Equal(t, tt.wantField, sv.Field, "violation should name the offending field")
		})
	}
}

func TestEvidenceID_FormatAndParse(t *testing.T) {
	id := FormatEvidenceID(2025, 44, 1)
	assert.Equal(t, "EVID-2025W44-001", id)

	year, week, seq, ok := ParseEvidenceID(id)
	require.True(t, ok)
	assert.Equal(t, 2025, year)
	assert.Equal(t, 44, week)
	assert.Equal(t, 1, seq)

	for _, bad := range []string{"EVID-2025W44-1", "EVID-25W44-001", "evid-2025W44-001", "EVID-2025W44-0012", ""} {
		_, _, _, ok := ParseEvidenceID(bad)
		assert.False(t, ok, "id %q should be rejected", bad)
	}
}

func TestWeekBucket_UsesUTCISOWeek(t *testing.T) {
	// Dec 29 2025 belongs to ISO week 1 of 2026.
	bucket := WeekBucket(time.Date(2025, 12, 29, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, "2026W01", bucket)

	bucket = WeekBucket(time.Date(2025, 10, 28, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2025W44", bucket)
}

func TestEvidenceRecord_IsFresh(t *testing.T) {
	now := time.Date(2025, 10, 28, 12, 0, 0, 0, time.UTC)
	rec := EvidenceRecord{Timestamp: now.Add(-30 * time.Minute)}
	assert.True(t, rec.IsFresh(now, time.Hour))

	rec.Timestamp = now.Add(-2 * time.Hour)
	assert.False(t, rec.IsFresh(now, time.Hour))
}
