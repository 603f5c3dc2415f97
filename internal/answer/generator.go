// Package answer builds the grounding prompt, invokes the completion
// service, and resolves the citation markers in its output back to source
// pages and snippets.
package answer

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Citation ties one cited source label back to its page and a snippet of
// the source text the model was shown.
type Citation struct {
	Page        int    `json:"page"`
	Snippet     string `json:"snippet"`
	SourceLabel string `json:"source_label"`
}

// CompletionService is the black-box text-completion dependency. The
// adapter is constructed once at startup and injected here.
type CompletionService interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Generator struct {
	llm CompletionService
}

func NewGenerator(llm CompletionService) *Generator {
	return &Generator{llm: llm}
}

const promptTemplate = `You are a helpful assistant that answers questions based ONLY on the provided source documents.

IMPORTANT RULES:
1. Answer using ONLY information from the sources below
2. Cite sources using [S1], [S2], etc. format
3. If the sources don't contain the answer, say "I cannot find this information in the provided document"
4. Be concise and direct
5. Always include citations for factual claims

SOURCES:
%s

QUESTION: %s

ANSWER (with citations):`

func BuildPrompt(question, sourceText string) string {
	return fmt.Sprintf(promptTemplate, sourceText, question)
}

// Answer generates a grounded answer for the question and parses its
// citation markers. Completion failures surface as generation errors with
// their rate-limited kind preserved.
func (g *Generator) Answer(ctx context.Context, question, sourceText string, labelToPage map[int]int) (string, []Citation, error) {
	prompt := BuildPrompt(question, sourceText)

	text, err := g.llm.Generate(ctx, prompt)
	if err != nil {
		return "", nil, err
	}

	return text, ParseCitations(text, sourceText, labelToPage), nil
}

var citationPattern = regexp.MustCompile(`\[S(\d+)\]`)

// ParseCitations scans the answer for [Sn] markers in first-seen order,
// dropping duplicates and labels the source block never contained.
func ParseCitations(answerText, sourceText string, labelToPage map[int]int) []Citation {
	seen := make(map[int]struct{})
	var citations []Citation

	for _, match := range citationPattern.FindAllStringSubmatch(answerText, -1) {
		label, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}

		page, ok := labelToPage[label]
		if !ok {
			continue
		}

		citations = append(citations, Citation{
			Page:        page,
			Snippet:     ExtractSnippet(sourceText, label, 200),
			SourceLabel: fmt.Sprintf("S%d", label),
		})
	}

	return citations
}

// ExtractSnippet returns the source text following the [Sn] header line, up
// to the next source header or end of text, truncated to maxLength
// characters with a trailing ellipsis.
func ExtractSnippet(sourceText string, label, maxLength int) string {
	header := fmt.Sprintf("[S%d]", label)
	start := strings.Index(sourceText, header)
	if start < 0 {
		return "Source text not found"
	}

	// Body starts after the header line.
	rest := sourceText[start:]
	nl := strings.Index(rest, "\n")
	if nl < 0 {
		return "Source text not found"
	}
	body := rest[nl+1:]

	if end := strings.Index(body, "\n[S"); end >= 0 {
		body = body[:end]
	}
	body = strings.TrimSpace(body)

	// Character-indexed cut: a byte cut could split a multi-byte rune.
	if runes := []rune(body); len(runes) > maxLength {
		return string(runes[:maxLength]) + "..."
	}
	return body
}
