// Package scan provides the fence-aware checklist text scanner.
//
// The scanner works on an explicit line-indexed representation: every line
// carries its 1-based number and whether it sits inside a fenced code
// block. Checklist validation and keyword search both operate on that
// representation, so enforcement and reporting cannot drift apart.
package scan

import (
	"regexp"
	"strings"
)

// Line is one line of the scanned text.
type Line struct {
	Number  int    // 1-based
	Text    string
	InFence bool // True when the line lies inside a fenced code block
}

var (
	checklistPattern   = regexp.MustCompile(`^\s*[-*]\s+\[([ xX])\]\s+(.*)$`)
	itemIDPattern      = regexp.MustCompile(`<!--\s*id:\s*([A-Za-z0-9][A-Za-z0-9_.-]*)\s*-->`)
	evidenceRefPattern = regexp.MustCompile(`<!--\s*evidence:\s*(\S+)\s*-->`)
)

// Lines splits text into indexed lines, marking fenced regions.
//
// Fences are tracked by counting, not by toggling: a stack of open fence
// lengths handles nested fences (a longer fence inside a shorter one), and
// a closing fence must be at least as long as the fence it closes. The
// fence marker lines themselves count as fenced so their content is never
// scanned.
func Lines(text string) []Line {
	raw := strings.Split(text, "\n")
	lines := make([]Line, 0, len(raw))

	var fenceStack []int
	for i, t := range raw {
		fenceLen := fenceMarkerLen(t)
		if fenceLen > 0 {
			if n := len(fenceStack); n > 0 && fenceLen >= fenceStack[n-1] {
				// Closing marker: still part of the fenced region.
				lines = append(lines, Line{Number: i + 1, Text: t, InFence: true})
				fenceStack = fenceStack[:n-1]
				continue
			}
			fenceStack = append(fenceStack, fenceLen)
			lines = append(lines, Line{Number: i + 1, Text: t, InFence: true})
			continue
		}
		lines = append(lines, Line{Number: i + 1, Text: t, InFence: len(fenceStack) > 0})
	}
	return lines
}

// fenceMarkerLen returns the length of a leading backtick or tilde fence,
// or 0 if the line is not a fence marker.
func fenceMarkerLen(line string) int {
	trimmed := strings.TrimLeft(line, " \t")
	if len(trimmed) < 3 {
		return 0
	}
	marker := trimmed[0]
	if marker != '`' && marker != '~' {
		return 0
	}
	n := 0
	for n < len(trimmed) && trimmed[n] == marker {
		n++
	}
	if n < 3 {
		return 0
	}
	return n
}

// Item is a checklist line found by the scanner.
type Item struct {
	Line    int    // 1-based line number
	Text    string // Item text with trailing comments stripped
	ItemID  string // Stable id from an id comment, if present
	Checked bool
}

// Items extracts checklist items from indexed lines, skipping fenced text.
func Items(lines []Line) []Item {
	var items []Item
	for _, l := range lines {
		if l.InFence {
			continue
		}
		m := checklistPattern.FindStringSubmatch(l.Text)
		if m == nil {
			continue
		}
		item := Item{
			Line:    l.Number,
			Checked: m[1] == "x" || m[1] == "X",
		}
		body := m[2]
		if idm := itemIDPattern.FindStringSubmatch(body); idm != nil {
			item.ItemID = idm[1]
		}
		item.Text = strings.TrimSpace(stripComments(body))
		items = append(items, item)
	}
	return items
}

// EvidenceRef searches for an evidence-reference comment starting at the
// item's own line and looking ahead at most window lines. The bounded
// window tolerates minor formatting drift right after a checklist line
// while rejecting references placed arbitrarily far away. Fenced lines are
// skipped: a reference inside a code example is not a reference.
func EvidenceRef(lines []Line, itemLine, window int) (string, bool) {
	for _, l := range lines {
		if l.Number < itemLine || l.Number > itemLine+window {
			continue
		}
		if l.InFence {
			continue
		}
		if m := evidenceRefPattern.FindStringSubmatch(l.Text); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// ContainsKeyword reports whether the keyword occurs in any non-fenced
// line. The keyword is user-supplied text: it is escaped before matching so
// characters with special meaning in the pattern engine cannot cause false
// negatives or crashes.
func ContainsKeyword(lines []Line, keyword string) bool {
	if keyword == "" {
		return false
	}
	pattern, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(keyword))
	if err != nil {
		return false
	}
	for _, l := range lines {
		if l.InFence {
			continue
		}
		if pattern.MatchString(l.Text) {
			return true
		}
	}
	return false
}

var commentPattern = regexp.MustCompile(`<!--.*?-->`)

func stripComments(s string) string {
	return commentPattern.ReplaceAllString(s, "")
}
