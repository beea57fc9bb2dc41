package diff

import (
	"fmt"
	"strings"
)

// RenderUnified renders hunks in unified diff format with ---/+++ headers.
func RenderUnified(oldPath, newPath string, hunks []Hunk) string {
	if len(hunks) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n", oldPath)
	fmt.Fprintf(&b, "+++ b/%s\n", newPath)

	for _, hunk := range hunks {
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", hunk.OldStart, hunk.OldCount, hunk.NewStart, hunk.NewCount)
		for _, line := range hunk.Lines {
			switch line.Type {
			case LineAdded:
				b.WriteString("+")
			case LineRemoved:
				b.WriteString("-")
			default:
				b.WriteString(" ")
			}
			b.WriteString(line.Content)
			b.WriteString("\n")
		}
	}

	return b.String()
}

// RenderFileDiff renders a complete FileDiff, including new/deleted/binary
// markers, in unified format.
func RenderFileDiff(fd *FileDiff) string {
	if fd == nil {
		return ""
	}
	if fd.IsBinary {
		return fmt.Sprintf("Binary files a/%s and b/%s differ\n", fd.OldPath, fd.NewPath)
	}

	var b strings.Builder
	if fd.IsNew {
		fmt.Fprintf(&b, "new file: %s\n", fd.NewPath)
	}
	if fd.IsDelete {
		fmt.Fprintf(&b, "deleted file: %s\n", fd.OldPath)
	}
	b.WriteString(RenderUnified(fd.OldPath, fd.NewPath, fd.Hunks))
	return b.String()
}

// RenderSideBySide renders hunks as two columns of the given total width.
// Removed lines fill the left column, added lines the right; context spans
// both.
func RenderSideBySide(hunks []Hunk, width int) string {
	if len(hunks) == 0 {
		return ""
	}
	if width < 20 {
		width = 80
	}
	colWidth := (width - 3) / 2

	var b strings.Builder
	for _, hunk := range hunks {
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", hunk.OldStart, hunk.OldCount, hunk.NewStart, hunk.NewCount)

		// Pair removals with the additions that follow them so replaced
		// lines sit on the same row.
		var removed, added []Line
		flushPairs := func() {
			rows := len(removed)
			if len(added) > rows {
				rows = len(added)
			}
			for r := 0; r < rows; r++ {
				left, right := "", ""
				if r < len(removed) {
					left = "- " + removed[r].Content
				}
				if r < len(added) {
					right = "+ " + added[r].Content
				}
				fmt.Fprintf(&b, "%s | %s\n", pad(left, colWidth), pad(right, colWidth))
			}
			removed = removed[:0]
			added = added[:0]
		}

		for _, line := range hunk.Lines {
			switch line.Type {
			case LineRemoved:
				removed = append(removed, line)
			case LineAdded:
				added = append(added, line)
			default:
				flushPairs()
				ctx := "  " + line.Content
				fmt.Fprintf(&b, "%s | %s\n", pad(ctx, colWidth), pad(ctx, colWidth))
			}
		}
		flushPairs()
	}

	return b.String()
}

// pad truncates or right-pads s to exactly width bytes.
func pad(s string, width int) string {
	if len(s) > width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

// Stats summarizes added/removed line counts across hunks.
func Stats(hunks []Hunk) (added, removed int) {
	for _, hunk := range hunks {
		for _, line := range hunk.Lines {
			switch line.Type {
			case LineAdded:
				added++
			case LineRemoved:
				removed++
			}
		}
	}
	return added, removed
}
