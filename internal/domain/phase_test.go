package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhase_Next_FollowsFixedSequence(t *testing.T) {
	phases := AllPhases()
	for i := 0; i < len(phases)-1; i++ {
		next, ok := phases[i].Next()
		require.True(t, ok, "phase %s should have a successor", phases[i])
		assert.Equal(t, phases[i+1], next)
	}

	_, ok := PhaseClosure.Next()
	assert.False(t, ok, "terminal phase has no successor")
}

func TestPhase_CanAdvanceTo_RejectsSkips(t *testing.T) {
	assert.True(t, PhaseDiscovery.CanAdvanceTo(PhasePlanning))
	assert.False(t, PhaseDiscovery.CanAdvanceTo(PhaseImplementation))
	assert.False(t, PhasePlanning.CanAdvanceTo(PhaseDiscovery))
	assert.False(t, PhaseClosure.CanAdvanceTo(PhaseDiscovery))
}

func TestParsePhase(t *testing.T) {
	p, err := ParsePhase("testing")
	require.NoError(t, err)
	assert.Equal(t, PhaseTesting, p)

	_, err = ParsePhase("unknown-stage")
	assert.ErrorIs(t, err, ErrUnknownPhase)

	_, err = ParsePhase("")
	assert.ErrorIs(t, err, ErrUnknownPhase)
}

func TestPhase_Requirements(t *testing.T) {
	req := PhaseTesting.Requirements()
	assert.Contains(t, req.RequiredEvidence, EvidenceTestResult)
	assert.True(t, req.RequiresFreshEvidence)
	assert.InDelta(t, 0.90, req.ChecklistThreshold, 0.0001)

	assert.True(t, PhaseImplementation.Requirements().RequiresAgents)
	assert.Empty(t, PhaseClosure.Requirements().RequiredEvidence)
}

func TestPhase_Index(t *testing.T) {
	assert.Equal(t, 0, PhaseDiscovery.Index())
	assert.Equal(t, 7, PhaseClosure.Index())
	assert.Equal(t, -1, Phase("bogus").Index())
}
