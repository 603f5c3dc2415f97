// Package text splits extracted page text into overlapping, token-bounded
// chunks that form a document's searchable index.
package text

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Piece is one emitted chunk. Index is 0-based and scoped to the page the
// source text came from.
type Piece struct {
	PageNumber int
	Index      int
	Text       string
	TokenCount int
}

// Page is one page of extracted text, as produced by the extraction adapter.
type Page struct {
	PageNumber     int
	Text           string
	CharacterCount int
}

// EstimateTokens approximates a token count as length/4. It is not a real
// tokenizer; chunk boundaries and stored counts depend on this exact
// function, so it must not be swapped for one.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// Sentence boundary: terminal punctuation followed by whitespace. The
// whitespace is consumed, the punctuation stays with its sentence.
var sentenceBoundary = regexp.MustCompile(`[.!?]\s+`)

func splitSentences(text string) []string {
	var sentences []string
	last := 0
	for _, loc := range sentenceBoundary.FindAllStringIndex(text, -1) {
		// loc[0] is the punctuation byte; keep it on the left side.
		sentences = append(sentences, text[last:loc[0]+1])
		last = loc[1]
	}
	sentences = append(sentences, text[last:])
	return sentences
}

// Chunk greedily packs sentences into buffers of at most maxTokens*4 bytes.
// When a buffer overflows it is emitted and the next buffer is seeded with
// the last overlapTokens*4 bytes of the previous one. A single sentence
// longer than the budget is emitted whole rather than sub-split.
func Chunk(text string, maxTokens, overlapTokens int) []Piece {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	maxChars := maxTokens * 4
	overlapChars := overlapTokens * 4

	var pieces []Piece
	current := ""
	index := 0

	for _, sentence := range splitSentences(text) {
		if len(current)+len(sentence) > maxChars && current != "" {
			pieces = append(pieces, Piece{
				Index:      index,
				Text:       strings.TrimSpace(current),
				TokenCount: EstimateTokens(current),
			})

			if overlapChars > 0 && len(current) > overlapChars {
				current = overlapTail(current, overlapChars) + " " + sentence
			} else {
				current = sentence
			}
			index++
		} else {
			if current != "" {
				current += " " + sentence
			} else {
				current = sentence
			}
		}
	}

	if strings.TrimSpace(current) != "" {
		pieces = append(pieces, Piece{
			Index:      index,
			Text:       strings.TrimSpace(current),
			TokenCount: EstimateTokens(current),
		})
	}

	return pieces
}

// overlapTail returns at most n trailing bytes of s, with the cut moved
// forward to the next rune boundary so it never lands inside a multi-byte
// rune. The emitted chunk text must stay valid UTF-8 for storage.
func overlapTail(s string, n int) string {
	i := len(s) - n
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return s[i:]
}

// ChunkPages chunks each page independently and tags every piece with its
// page number, preserving page order. Chunk indices restart at 0 per page.
func ChunkPages(pages []Page, maxTokens, overlapTokens int) []Piece {
	var all []Piece
	for _, page := range pages {
		for _, piece := range Chunk(page.Text, maxTokens, overlapTokens) {
			piece.PageNumber = page.PageNumber
			all = append(all, piece)
		}
	}
	return all
}
