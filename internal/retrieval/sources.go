package retrieval

import (
	"fmt"
	"strings"
)

// FormatSources renders ranked chunks as a labeled source block for the
// grounding prompt:
//
//	[S1] (Page 3)
//	chunk text
//
// Labels are assigned in rank order starting at S1. The returned map keys
// label indices to page numbers for citation resolution.
func FormatSources(ranked []RankedChunk) (string, map[int]int) {
	var b strings.Builder
	labelToPage := make(map[int]int, len(ranked))

	for i, chunk := range ranked {
		label := i + 1
		fmt.Fprintf(&b, "[S%d] (Page %d)\n%s\n\n", label, chunk.PageNumber, chunk.Text)
		labelToPage[label] = chunk.PageNumber
	}

	return b.String(), labelToPage
}
