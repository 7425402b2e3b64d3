package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTaskID_Format(t *testing.T) {
	now := time.Date(2025, 10, 28, 9, 30, 15, 0, time.UTC)
	id, err := NewTaskID("rate-limiter", now)
	require.NoError(t, err)

	slug, ok := ParseTaskID(id)
	require.True(t, ok, "generated id %q should parse", id)
	assert.Equal(t, "rate-limiter", slug)
	assert.Contains(t, id, "-20251028093015-")
}

func TestNewTaskID_RejectsInvalidSlug(t *testing.T) {
	for _, bad := range []string{"", "Rate Limiter", "-leading", "UPPER"} {
		_, err := NewTaskID(bad, time.Now())
		assert.ErrorIs(t, err, ErrEmptySlug, "slug %q", bad)
	}
}

func TestNewTaskID_RandomSuffixVaries(t *testing.T) {
	now := time.Date(2025, 10, 28, 9, 30, 15, 0, time.UTC)
	seen := map[string]bool{}
	for i := 0; i < 16; i++ {
		id, err := NewTaskID("demo", now)
		require.NoError(t, err)
		seen[id] = true
	}
	assert.Greater(t, len(seen), 1, "random suffix should vary across draws")
}

func TestNormalizeSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Rate Limiter", "rate-limiter"},
		{"  fix/BUG #42  ", "fix-bug-42"},
		{"already-fine", "already-fine"},
		{"---", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeSlug(tt.in), "input %q", tt.in)
	}
}

func TestTask_EnterPhase_AppendsHistory(t *testing.T) {
	now := time.Date(2025, 10, 28, 9, 0, 0, 0, time.UTC)
	task := &Task{Slug: "demo", Lane: LaneFull}
	task.EnterPhase(PhaseDiscovery, now, false)

	assert.Equal(t, PhaseDiscovery, task.CurrentPhase())
	require.Len(t, task.PhaseHistory, 1)
	assert.True(t, task.PhaseHistory[0].ExitedAt.IsZero())

	later := now.Add(time.Hour)
	task.EnterPhase(PhasePlanning, later, true)
	require.Len(t, task.PhaseHistory, 2)
	assert.Equal(t, later, task.PhaseHistory[0].ExitedAt)
	assert.True(t, task.PhaseHistory[0].GatePassed)
	assert.Equal(t, PhasePlanning, task.CurrentPhase())
}
