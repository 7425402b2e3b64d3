package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLines_MarksFencedRegions(t *testing.T) {
	text := "before\n```\ninside\n```\nafter"
	lines := Lines(text)
	require.Len(t, lines, 5)

	assert.False(t, lines[0].InFence)
	assert.True(t, lines[1].InFence, "opening marker is fenced")
	assert.True(t, lines[2].InFence)
	assert.True(t, lines[3].InFence, "closing marker is fenced")
	assert.False(t, lines[4].InFence)
}

func TestLines_NestedFencesByCounting(t *testing.T) {
	// A four-backtick fence containing a three-backtick example. The inner
	// markers must not close the outer fence.
	text := "````\ntext\n```\nstill inside\n```\nstill inside too\n````\noutside"
	lines := Lines(text)
	require.Len(t, lines, 8)

	for i := 0; i < 7; i++ {
		assert.True(t, lines[i].InFence, "line %d should be fenced", i+1)
	}
	assert.False(t, lines[7].InFence)
}

func TestLines_TildeFence(t *testing.T) {
	lines := Lines("~~~\ncode\n~~~\ndone")
	assert.True(t, lines[1].InFence)
	assert.False(t, lines[3].InFence)
}

func TestItems_ParsesChecklistLines(t *testing.T) {
	text := "# Plan\n" +
		"- [x] Implement rate limiter <!-- id: CL-001 -->\n" +
		"- [ ] Write docs\n" +
		"* [X] Star-style item\n" +
		"not a checklist line\n"

	items := Items(Lines(text))
	require.Len(t, items, 3)

	assert.Equal(t, 2, items[0].Line)
	assert.True(t, items[0].Checked)
	assert.Equal(t, "CL-001", items[0].ItemID)
	assert.Equal(t, "Implement rate limiter", items[0].Text)

	assert.False(t, items[1].Checked)
	assert.Empty(t, items[1].ItemID)

	assert.True(t, items[2].Checked)
}

func TestItems_SkipsFencedChecklists(t *testing.T) {
	text := "```\n- [x] fake item in example\n```\n- [x] real item"
	items := Items(Lines(text))
	require.Len(t, items, 1)
	assert.Equal(t, "real item", items[0].Text)
	assert.Equal(t, 4, items[0].Line)
}

func TestEvidenceRef_WithinWindow(t *testing.T) {
	text := "- [x] Implement rate limiter\n" +
		"\n" +
		"  <!-- evidence: EVID-2025W44-001 -->\n"
	lines := Lines(text)

	id, ok := EvidenceRef(lines, 1, 5)
	require.True(t, ok)
	assert.Equal(t, "EVID-2025W44-001", id)
}

func TestEvidenceRef_SameLine(t *testing.T) {
	lines := Lines("- [x] Implement rate limiter <!-- evidence: EVID-2025W44-001 -->")
	id, ok := EvidenceRef(lines, 1, 5)
	require.True(t, ok)
	assert.Equal(t, "EVID-2025W44-001", id)
}

func TestEvidenceRef_OutsideWindowIsMissing(t *testing.T) {
	// Reference 7 lines below the item, outside the 5-line window.
	text := "- [x] Implement rate limiter\n\n\n\n\n\n\n<!-- evidence: EVID-2025W44-001 -->"
	lines := Lines(text)

	_, ok := EvidenceRef(lines, 1, 5)
	assert.False(t, ok, "reference beyond the lookahead window must not count")
}

func TestEvidenceRef_IgnoresFencedReference(t *testing.T) {
	text := "- [x] Implement rate limiter\n```\n<!-- evidence: EVID-2025W44-001 -->\n```\n"
	_, ok := EvidenceRef(Lines(text), 1, 5)
	assert.False(t, ok, "a reference inside a code example is not a reference")
}

func TestContainsKeyword_SkipsFences(t *testing.T) {
	text := "- [x] Tune the cache\n```\nperformance numbers go here\n```\n"
	lines := Lines(text)

	assert.False(t, ContainsKeyword(lines, "performance"),
		"keyword inside a fenced block must not count as addressed")
	assert.True(t, ContainsKeyword(lines, "cache"))
}

func TestContainsKeyword_EscapesUserText(t *testing.T) {
	lines := Lines("covers the a+b case (see [1])")
	assert.True(t, ContainsKeyword(lines, "a+b case (see [1])"))
	assert.False(t, ContainsKeyword(lines, "a+b case (see [2])"))
	assert.False(t, ContainsKeyword(lines, ""))
}

func TestLines_Idempotent(t *testing.T) {
	text := "- [x] item\n```\ncode\n```\n<!-- evidence: EVID-2025W44-001 -->"
	first := Lines(text)
	second := Lines(text)
	assert.Equal(t, first, second)
}
