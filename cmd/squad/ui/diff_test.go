package ui

import (
	"strings"
	"testing"

	"codesquad/internal/diff"
)

// =============================================================================
// WORD-LEVEL SPAN TESTS
// =============================================================================

func TestWordSpans_MarksChangedSegments(t *testing.T) {
	oldSpans, newSpans := wordSpans("count := total + 1", "count := total - 1")

	if joinSpans(oldSpans) != "count := total + 1" {
		t.Errorf("old spans do not reassemble the line: %q", joinSpans(oldSpans))
	}
	if joinSpans(newSpans) != "count := total - 1" {
		t.Errorf("new spans do not reassemble the line: %q", joinSpans(newSpans))
	}
	if !hasChanged(oldSpans) || !hasChanged(newSpans) {
		t.Error("both sides should carry at least one changed span")
	}
	if !hasUnchanged(oldSpans) || !hasUnchanged(newSpans) {
		t.Error("the shared prefix should stay unchanged on both sides")
	}
}

func TestWordSpans_DisjointLines(t *testing.T) {
	oldSpans, newSpans := wordSpans("alpha", "zzz")

	if joinSpans(oldSpans) != "alpha" || joinSpans(newSpans) != "zzz" {
		t.Errorf("spans must cover the full lines: %q / %q", joinSpans(oldSpans), joinSpans(newSpans))
	}
}

func joinSpans(spans []span) string {
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(s.Text)
	}
	return b.String()
}

func hasChanged(spans []span) bool {
	for _, s := range spans {
		if s.Changed {
			return true
		}
	}
	return false
}

func hasUnchanged(spans []span) bool {
	for _, s := range spans {
		if !s.Changed && s.Text != "" {
			return true
		}
	}
	return false
}

// =============================================================================
// HUNK RENDERING TESTS
// =============================================================================

func TestChangeRun_PairsRemovedWithAdded(t *testing.T) {
	lines := []diff.Line{
		{Type: diff.LineRemoved, Content: "old one"},
		{Type: diff.LineRemoved, Content: "old two"},
		{Type: diff.LineAdded, Content: "new one"},
		{Type: diff.LineContext, Content: "tail"},
	}

	removed, added := changeRun(lines, 0)
	if len(removed) != 2 || len(added) != 1 {
		t.Errorf("run mismatch: %d removed, %d added", len(removed), len(added))
	}
}

func TestRenderHunks_WordHighlightKeepsContent(t *testing.T) {
	hunks := []diff.Hunk{{
		OldStart: 1, OldCount: 2, NewStart: 1, NewCount: 2,
		Lines: []diff.Line{
			{Type: diff.LineContext, Content: "func add(a, b int) int {"},
			{Type: diff.LineRemoved, Content: "	return a + b"},
			{Type: diff.LineAdded, Content: "	return a - b"},
		},
	}}

	out := RenderHunks(PlainStyles(), hunks)
	want := []string{
		"@@ -1,2 +1,2 @@",
		" func add(a, b int) int {",
		"-\treturn a + b",
		"+\treturn a - b",
	}
	for _, line := range want {
		if !strings.Contains(out, line) {
			t.Errorf("output missing %q:\n%s", line, out)
		}
	}
}

func TestRenderHunks_UnpairedChangesRenderWhole(t *testing.T) {
	hunks := []diff.Hunk{{
		OldStart: 1, OldCount: 1, NewStart: 1, NewCount: 3,
		Lines: []diff.Line{
			{Type: diff.LineRemoved, Content: "gone"},
			{Type: diff.LineAdded, Content: "first"},
			{Type: diff.LineAdded, Content: "second"},
		},
	}}

	out := RenderHunks(PlainStyles(), hunks)
	for _, line := range []string{"-gone", "+first", "+second"} {
		if !strings.Contains(out, line) {
			t.Errorf("output missing %q:\n%s", line, out)
		}
	}
}
