package detect

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// addedLine is one '+' line of a hunk with its new-file line number.
type addedLine struct {
	Line int
	Text string
	// Hunk is the index of the hunk the line belongs to.
	Hunk int
}

// removedLine is one '-' line. Pos is the new-file line the removal sits
// before, which is where a finding about it is attributed.
type removedLine struct {
	Pos  int
	Text string
}

// fileLines is the scan input extracted from one file's diff.
type fileLines struct {
	Added   []addedLine
	Removed []removedLine
}

// parseDiff splits unified-diff hunks into added and removed lines. The
// diff must start at a hunk header, as the platform's per-file patch does.
func parseDiff(text string) (fileLines, error) {
	var out fileLines
	if strings.TrimSpace(text) == "" {
		return out, nil
	}
	hunks, err := diff.ParseHunks([]byte(text))
	if err != nil {
		return out, fmt.Errorf("parsing hunks: %w", err)
	}
	for i, h := range hunks {
		if h.NewStartLine < 0 || h.OrigStartLine < 0 {
			return fileLines{}, fmt.Errorf("hunk %d: negative start line", i)
		}
		newLine := int(h.NewStartLine)
		body := strings.TrimSuffix(string(h.Body), "\n")
		if body == "" {
			continue
		}
		for _, raw := range strings.Split(body, "\n") {
			if raw == "" {
				// Context line whose single leading space was stripped.
				newLine++
				continue
			}
			switch raw[0] {
			case '+':
				out.Added = append(out.Added, addedLine{Line: newLine, Text: raw[1:], Hunk: i})
				newLine++
			case '-':
				out.Removed = append(out.Removed, removedLine{Pos: newLine, Text: raw[1:]})
			case ' ':
				newLine++
			case '\\':
				// "No newline" and truncation annotations.
			}
		}
	}
	return out, nil
}

// indentOf returns the width of leading whitespace, counting a tab as four.
func indentOf(s string) int {
	n := 0
	for _, r := range s {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}
