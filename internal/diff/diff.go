// Package diff provides the line-level diff engine used for previews and the
// edit pipeline. The core comparison is a bounded-lookahead heuristic tuned
// for code diffs; word-level highlighting and patch application use the
// sergi/go-diff library.
package diff

import (
	"strings"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineType represents the type of diff line
type LineType int

const (
	LineContext LineType = iota // Unchanged context line
	LineAdded                   // Added line
	LineRemoved                 // Removed line
	LineHeader                  // Diff header line
)

// Line represents a single line in the diff
type Line struct {
	LineNum int
	Content string
	Type    LineType
}

// Hunk represents a group of changes
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// FileDiff represents changes to a single file
type FileDiff struct {
	OldPath  string
	NewPath  string
	Hunks    []Hunk
	IsNew    bool
	IsDelete bool
	IsBinary bool
}

const (
	// maxLookahead bounds the resync window: on a mismatch, at most this many
	// lines in each sequence are scanned for the nearest matching pair.
	maxLookahead = 10

	// maxHunkLines caps a hunk before it is flushed; large contiguous changes
	// appear as multiple hunks with recomputed headers.
	maxHunkLines = 50

	// contextLines of unchanged text surround each change group.
	contextLines = 3
)

// Engine provides diff computation with caching
type Engine struct {
	dmp   *diffmatchpatch.DiffMatchPatch
	cache sync.Map // Cache for identical input pairs
}

// cacheKey is used for caching diff results
type cacheKey struct {
	oldHash uint64
	newHash uint64
}

// NewEngine creates a new diff engine
func NewEngine() *Engine {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0 // Disable timeout for accuracy
	return &Engine{
		dmp:   dmp,
		cache: sync.Map{},
	}
}

// DefaultEngine is a singleton engine for general use
var DefaultEngine = NewEngine()

// Diff computes line-level hunks between two text blobs.
//
// Identical lines pass through as context. On a mismatch the engine looks
// ahead up to maxLookahead lines in both sequences for the nearest matching
// line pair (minimizing skipped-old + skipped-new); the skipped lines become
// deletions and insertions. If no pair matches within the window, a paired
// delete+insert is emitted at that position and both sides advance. This is
// intentionally O(window²) per mismatch, trading optimality for speed; it is
// not an LCS/Myers diff.
func (e *Engine) Diff(oldContent, newContent string) []Hunk {
	if oldContent == newContent {
		return nil
	}

	oldLines := splitLines(oldContent)
	newLines := splitLines(newContent)

	ops := e.compare(oldLines, newLines)
	return e.groupIntoHunks(ops)
}

// Diff is a convenience function using the default engine
func Diff(oldContent, newContent string) []Hunk {
	return DefaultEngine.Diff(oldContent, newContent)
}

// ComputeDiff creates a FileDiff from old and new content strings,
// with caching for identical input pairs.
func (e *Engine) ComputeDiff(oldPath, newPath, oldContent, newContent string) *FileDiff {
	fileDiff := &FileDiff{
		OldPath: oldPath,
		NewPath: newPath,
		Hunks:   make([]Hunk, 0),
	}

	if oldContent == "" {
		fileDiff.IsNew = true
	}
	if newContent == "" {
		fileDiff.IsDelete = true
	}
	if isBinary(oldContent) || isBinary(newContent) {
		fileDiff.IsBinary = true
		return fileDiff
	}

	// Check cache
	oldHash := hash(oldContent)
	newHash := hash(newContent)
	key := cacheKey{oldHash, newHash}

	if cached, ok := e.cache.Load(key); ok {
		if cachedDiff, ok := cached.(*FileDiff); ok {
			// Clone cached result with updated paths
			result := *cachedDiff
			result.OldPath = oldPath
			result.NewPath = newPath
			return &result
		}
	}

	fileDiff.Hunks = e.Diff(oldContent, newContent)

	// Cache result
	e.cache.Store(key, fileDiff)

	return fileDiff
}

// ComputeDiff is a convenience function using the default engine
func ComputeDiff(oldPath, newPath, oldContent, newContent string) *FileDiff {
	return DefaultEngine.ComputeDiff(oldPath, newPath, oldContent, newContent)
}

// operation represents a single line operation
type operation struct {
	typ     LineType
	oldLine int // 0-based index in the old sequence, -1 for additions
	newLine int // 0-based index in the new sequence, -1 for removals
	content string
}

// compare walks both line sequences producing the raw operation stream.
func (e *Engine) compare(oldLines, newLines []string) []operation {
	ops := make([]operation, 0, len(oldLines)+len(newLines))
	i, j := 0, 0

	for i < len(oldLines) && j < len(newLines) {
		if oldLines[i] == newLines[j] {
			ops = append(ops, operation{typ: LineContext, oldLine: i, newLine: j, content: oldLines[i]})
			i++
			j++
			continue
		}

		di, dj, found := e.resync(oldLines, newLines, i, j)
		if !found {
			// No match within the window: paired delete+insert, advance both.
			ops = append(ops, operation{typ: LineRemoved, oldLine: i, newLine: -1, content: oldLines[i]})
			ops = append(ops, operation{typ: LineAdded, oldLine: -1, newLine: j, content: newLines[j]})
			i++
			j++
			continue
		}

		for k := 0; k < di; k++ {
			ops = append(ops, operation{typ: LineRemoved, oldLine: i + k, newLine: -1, content: oldLines[i+k]})
		}
		for k := 0; k < dj; k++ {
			ops = append(ops, operation{typ: LineAdded, oldLine: -1, newLine: j + k, content: newLines[j+k]})
		}
		i += di
		j += dj
	}

	for ; i < len(oldLines); i++ {
		ops = append(ops, operation{typ: LineRemoved, oldLine: i, newLine: -1, content: oldLines[i]})
	}
	for ; j < len(newLines); j++ {
		ops = append(ops, operation{typ: LineAdded, oldLine: -1, newLine: j, content: newLines[j]})
	}

	return ops
}

// resync scans ahead for the nearest matching line pair after a mismatch at
// (i, j). Candidates are ordered by total skip distance, so the first hit
// minimizes skipped-old + skipped-new. Returns the skip counts for each side.
func (e *Engine) resync(oldLines, newLines []string, i, j int) (di, dj int, found bool) {
	for total := 1; total <= 2*maxLookahead; total++ {
		for di := 0; di <= total && di <= maxLookahead; di++ {
			dj := total - di
			if dj > maxLookahead {
				continue
			}
			if i+di >= len(oldLines) || j+dj >= len(newLines) {
				continue
			}
			if oldLines[i+di] == newLines[j+dj] {
				return di, dj, true
			}
		}
	}
	return 0, 0, false
}

// groupIntoHunks groups operations into context-bounded hunks, flushing any
// hunk that reaches maxHunkLines.
func (e *Engine) groupIntoHunks(ops []operation) []Hunk {
	if len(ops) == 0 {
		return nil
	}

	hunks := make([]Hunk, 0)
	var currentHunk *Hunk
	lastChangeIdx := -1

	flush := func() {
		if currentHunk != nil && len(currentHunk.Lines) > 0 {
			e.computeHunkCounts(currentHunk)
			hunks = append(hunks, *currentHunk)
		}
		currentHunk = nil
	}

	for i, op := range ops {
		isChange := op.typ != LineContext

		if isChange && currentHunk == nil {
			currentHunk = &Hunk{Lines: make([]Line, 0)}

			// Add leading context
			start := i - contextLines
			if start < 0 {
				start = 0
			}
			first := op
			for k := start; k < i; k++ {
				if ops[k].typ == LineContext {
					currentHunk.Lines = append(currentHunk.Lines, Line{
						LineNum: ops[k].oldLine + 1,
						Content: ops[k].content,
						Type:    LineContext,
					})
					if len(currentHunk.Lines) == 1 {
						first = ops[k]
					}
				}
			}

			// The hunk's own first line determines the headers; a side the
			// first line does not touch reports position 0.
			currentHunk.OldStart = first.oldLine + 1
			currentHunk.NewStart = first.newLine + 1
			if first.oldLine < 0 {
				currentHunk.OldStart = 0
			}
			if first.newLine < 0 {
				currentHunk.NewStart = 0
			}
		}

		if isChange {
			lastChangeIdx = i
		}

		if currentHunk == nil {
			continue
		}

		lineNum := op.oldLine + 1
		if op.typ == LineAdded {
			lineNum = op.newLine + 1
		}
		currentHunk.Lines = append(currentHunk.Lines, Line{
			LineNum: lineNum,
			Content: op.content,
			Type:    op.typ,
		})

		// Cap reached: flush and let the next change open a fresh hunk with
		// headers recomputed from its own position.
		if len(currentHunk.Lines) >= maxHunkLines {
			flush()
			continue
		}

		// Close the hunk once trailing context exceeds the window.
		if op.typ == LineContext && i-lastChangeIdx >= contextLines {
			trimTo := len(currentHunk.Lines) - (i - lastChangeIdx - contextLines)
			if trimTo > 0 && trimTo < len(currentHunk.Lines) {
				currentHunk.Lines = currentHunk.Lines[:trimTo]
			}
			flush()
		}
	}

	flush()

	return hunks
}

// computeHunkCounts calculates OldCount and NewCount for a hunk
func (e *Engine) computeHunkCounts(hunk *Hunk) {
	for _, line := range hunk.Lines {
		if line.Type == LineRemoved || line.Type == LineContext {
			hunk.OldCount++
		}
		if line.Type == LineAdded || line.Type == LineContext {
			hunk.NewCount++
		}
	}
}

// splitLines splits content into lines without a trailing phantom line.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// isBinary reports whether content looks binary (contains a null byte).
func isBinary(content string) bool {
	return strings.IndexByte(content, 0) >= 0
}

// hash computes a simple hash for caching (FNV-1a algorithm)
func hash(s string) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)
	hash := uint64(offset64)
	for i := 0; i < len(s); i++ {
		hash ^= uint64(s[i])
		hash *= prime64
	}
	return hash
}

// ClearCache clears the diff cache
func (e *Engine) ClearCache() {
	e.cache = sync.Map{}
}

// ComputeWordLevelDiff computes word-level differences within a line.
// This is useful for highlighting specific changes within modified lines.
func (e *Engine) ComputeWordLevelDiff(oldLine, newLine string) []diffmatchpatch.Diff {
	diffs := e.dmp.DiffMain(oldLine, newLine, false)
	diffs = e.dmp.DiffCleanupSemantic(diffs)
	return diffs
}
