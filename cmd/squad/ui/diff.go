package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sergi/go-diff/diffmatchpatch"

	"codesquad/internal/diff"
)

// RenderFileDiff renders a complete file diff with header and hunks.
func RenderFileDiff(styles Styles, fd *diff.FileDiff) string {
	if fd == nil {
		return ""
	}

	var b strings.Builder

	switch {
	case fd.IsBinary:
		b.WriteString(styles.Muted.Render(fmt.Sprintf("Binary files %s and %s differ", fd.OldPath, fd.NewPath)))
		b.WriteString("\n")
		return b.String()
	case fd.IsNew:
		b.WriteString(styles.Header.Render(fmt.Sprintf("new file: %s", fd.NewPath)))
	case fd.IsDelete:
		b.WriteString(styles.Header.Render(fmt.Sprintf("deleted: %s", fd.OldPath)))
	default:
		b.WriteString(styles.Header.Render(fmt.Sprintf("--- %s", fd.OldPath)))
		b.WriteString("\n")
		b.WriteString(styles.Header.Render(fmt.Sprintf("+++ %s", fd.NewPath)))
	}
	b.WriteString("\n")

	if len(fd.Hunks) == 0 {
		b.WriteString(styles.Muted.Render("(no changes)"))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(RenderHunks(styles, fd.Hunks))
	return b.String()
}

// RenderHunks renders hunks in unified-diff form with colored markers.
// Removed/added line pairs get word-level highlighting so small edits inside
// a long line stand out.
func RenderHunks(styles Styles, hunks []diff.Hunk) string {
	var b strings.Builder

	for _, hunk := range hunks {
		header := fmt.Sprintf("@@ -%d,%d +%d,%d @@", hunk.OldStart, hunk.OldCount, hunk.NewStart, hunk.NewCount)
		b.WriteString(styles.Header.Render(header))
		b.WriteString("\n")

		lines := hunk.Lines
		for i := 0; i < len(lines); i++ {
			line := lines[i]
			switch line.Type {
			case diff.LineRemoved:
				removed, added := changeRun(lines, i)
				renderChangeRun(&b, styles, removed, added)
				i += len(removed) + len(added) - 1
			case diff.LineAdded:
				b.WriteString(styles.Added.Render("+" + line.Content))
				b.WriteString("\n")
			case diff.LineHeader:
				b.WriteString(styles.Header.Render(line.Content))
				b.WriteString("\n")
			default:
				b.WriteString(styles.Context.Render(" " + line.Content))
				b.WriteString("\n")
			}
		}
	}

	return b.String()
}

// changeRun collects the removed lines starting at i and the added lines that
// immediately follow them.
func changeRun(lines []diff.Line, i int) (removed, added []diff.Line) {
	for ; i < len(lines) && lines[i].Type == diff.LineRemoved; i++ {
		removed = append(removed, lines[i])
	}
	for ; i < len(lines) && lines[i].Type == diff.LineAdded; i++ {
		added = append(added, lines[i])
	}
	return removed, added
}

// renderChangeRun writes a removed-then-added block. When the two sides pair
// up one to one, each pair is highlighted at word level; leftovers render as
// whole-line changes.
func renderChangeRun(b *strings.Builder, styles Styles, removed, added []diff.Line) {
	pairs := len(removed)
	if len(added) < pairs {
		pairs = len(added)
	}

	for i := 0; i < pairs; i++ {
		oldSpans, newSpans := wordSpans(removed[i].Content, added[i].Content)
		b.WriteString(renderSpans(styles.Removed, styles.RemovedEmph, "-", oldSpans))
		b.WriteString("\n")
		b.WriteString(renderSpans(styles.Added, styles.AddedEmph, "+", newSpans))
		b.WriteString("\n")
	}
	for _, line := range removed[pairs:] {
		b.WriteString(styles.Removed.Render("-" + line.Content))
		b.WriteString("\n")
	}
	for _, line := range added[pairs:] {
		b.WriteString(styles.Added.Render("+" + line.Content))
		b.WriteString("\n")
	}
}

// span is one slice of a modified line; Changed marks the parts that differ
// between the old and new versions.
type span struct {
	Text    string
	Changed bool
}

// wordSpans splits a removed/added line pair into highlightable segments.
// Lines with nothing in common come back as a single changed span each, which
// renders the same as an unpaired change.
func wordSpans(oldLine, newLine string) (oldSpans, newSpans []span) {
	for _, d := range diff.DefaultEngine.ComputeWordLevelDiff(oldLine, newLine) {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			oldSpans = append(oldSpans, span{Text: d.Text, Changed: true})
		case diffmatchpatch.DiffInsert:
			newSpans = append(newSpans, span{Text: d.Text, Changed: true})
		default:
			oldSpans = append(oldSpans, span{Text: d.Text})
			newSpans = append(newSpans, span{Text: d.Text})
		}
	}
	return oldSpans, newSpans
}

func renderSpans(base, emph lipgloss.Style, marker string, spans []span) string {
	var b strings.Builder
	b.WriteString(base.Render(marker))
	for _, s := range spans {
		if s.Changed {
			b.WriteString(emph.Render(s.Text))
		} else {
			b.WriteString(base.Render(s.Text))
		}
	}
	return b.String()
}
