package editor

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// RenderUnified renders a line-oriented diff between two contents with
// +/-/space gutters under a header line. Line granularity comes from the
// DiffLinesToChars round trip, the standard way to coax line diffs out of
// diffmatchpatch.
func RenderUnified(header, oldContent, newContent string) string {
	var sb strings.Builder
	sb.WriteString("--- " + header + "\n")

	if oldContent == newContent {
		sb.WriteString("(no changes)\n")
		return sb.String()
	}

	dmp := diffmatchpatch.New()
	oldChars, newChars, lineArray := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffMain(oldChars, newChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	for _, d := range diffs {
		var gutter string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			gutter = "+"
		case diffmatchpatch.DiffDelete:
			gutter = "-"
		case diffmatchpatch.DiffEqual:
			gutter = " "
		}

		for _, line := range splitKeepNonEmpty(d.Text) {
			sb.WriteString(gutter)
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// splitKeepNonEmpty splits text into lines, dropping the empty tail that a
// trailing newline produces but keeping interior blank lines.
func splitKeepNonEmpty(text string) []string {
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
