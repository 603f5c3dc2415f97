// Package retrieval scores a document's chunks against a question using
// term-frequency keyword matching and renders the winners as a labeled
// source block for the answer generator.
package retrieval

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// Chunk is one stored retrieval unit, loaded in the document's canonical
// order (page number, then chunk index).
type Chunk struct {
	ID         int64
	DocumentID int64
	PageNumber int
	ChunkIndex int
	Text       string
	TokenCount int
}

// RankedChunk pairs a chunk with its relevance score for one query.
type RankedChunk struct {
	Chunk
	Score float64
}

type ChunkStore interface {
	ListByDocument(ctx context.Context, documentID int64) ([]Chunk, error)
}

type Service struct {
	store  ChunkStore
	logger *QueryLogger
}

func NewService(store ChunkStore, logger *QueryLogger) *Service {
	return &Service{store: store, logger: logger}
}

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"from": {}, "as": {}, "is": {}, "was": {}, "are": {}, "were": {},
	"been": {}, "be": {}, "have": {}, "has": {}, "had": {}, "do": {},
	"does": {}, "did": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "may": {}, "might": {}, "can": {}, "this": {},
	"that": {}, "these": {}, "those": {}, "what": {}, "which": {},
	"who": {}, "when": {}, "where": {}, "why": {}, "how": {},
}

// Word tokens are runs of letters, digits, or underscore. Go's \w is
// ASCII-only, so the class is spelled out to keep accented words whole.
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// ExtractKeywords lower-cases the query, tokenizes on word boundaries, and
// drops stop words and tokens of 2 characters or less.
func ExtractKeywords(query string) []string {
	var keywords []string
	for _, word := range wordPattern.FindAllString(strings.ToLower(query), -1) {
		if _, stop := stopWords[word]; stop {
			continue
		}
		if utf8.RuneCountInString(word) <= 2 {
			continue
		}
		keywords = append(keywords, word)
	}
	return keywords
}

// Score sums, over every keyword, the raw substring occurrence count in the
// lower-cased chunk text divided by the chunk's whitespace token count,
// weighted by 10. Matches are substrings, not whole words: "cat" counts
// inside "category". That over-counting is observable indexed behavior and
// is kept as is.
func Score(keywords []string, chunkText string) float64 {
	if len(keywords) == 0 {
		return 0.0
	}

	lower := strings.ToLower(chunkText)
	divisor := len(strings.Fields(lower))
	if divisor < 1 {
		divisor = 1
	}

	score := 0.0
	for _, keyword := range keywords {
		count := strings.Count(lower, keyword)
		tf := float64(count) / float64(divisor)
		score += tf * 10
	}
	return score
}

// Search ranks the document's chunks against the query and returns up to
// topK of them, best first. Ties keep the canonical storage order, which
// makes repeated searches against the same index deterministic. An empty
// result means the document has no chunks at all.
func (s *Service) Search(ctx context.Context, query string, documentID int64, topK int) ([]RankedChunk, error) {
	start := time.Now()

	chunks, err := s.store.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	keywords := ExtractKeywords(query)

	ranked := make([]RankedChunk, 0, len(chunks))
	for _, chunk := range chunks {
		ranked = append(ranked, RankedChunk{
			Chunk: chunk,
			Score: Score(keywords, chunk.Text),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}

	if s.logger != nil {
		s.logger.Log(QueryLogEntry{
			Query:      query,
			DocumentID: documentID,
			NumResults: len(ranked),
			Duration:   time.Since(start),
		})
	}

	return ranked, nil
}
