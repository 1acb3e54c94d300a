package scraper

import (
	"fmt"
	"html"
	"log/slog"
	"sort"
	"strings"
)

const (
	titleMinLength   = 10
	titleMaxLength   = 200
	titleTruncateAt  = 60
	excerptMaxLength = 500
)

// Extracted holds the structured fields derived from one raw message text.
type Extracted struct {
	Content string
	Title   string
	Excerpt string
}

// Extractor converts raw message text plus formatting spans into the
// stored content fields.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Run derives content, title and excerpt from one message. When span
// resolution fails the raw text is stored as content unchanged.
func (e *Extractor) Run(text string, spans []Span) Extracted {
	content, err := resolveSpans(text, spans)
	if err != nil {
		slog.Warn("Failed to resolve formatting spans, storing raw text", "error", err)
		content = text
	}

	return Extracted{
		Content: content,
		Title:   deriveTitle(text),
		Excerpt: deriveExcerpt(text),
	}
}

// resolveSpans renders the text as HTML, wrapping each annotated rune range
// in its corresponding tag. Spans are applied in offset order; overlapping
// spans each emit their full range.
func resolveSpans(text string, spans []Span) (string, error) {
	if len(spans) == 0 {
		return html.EscapeString(text), nil
	}

	runes := []rune(text)

	ordered := make([]Span, len(spans))
	copy(ordered, spans)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Offset < ordered[j].Offset
	})

	var b strings.Builder
	last := 0
	for _, span := range ordered {
		end := span.Offset + span.Length
		if span.Offset < 0 || span.Length < 0 || end > len(runes) {
			return "", fmt.Errorf("span out of range: offset=%d length=%d text=%d", span.Offset, span.Length, len(runes))
		}

		if span.Offset > last {
			b.WriteString(html.EscapeString(string(runes[last:span.Offset])))
		}

		inner := html.EscapeString(string(runes[span.Offset:end]))
		switch span.Kind {
		case SpanBold:
			b.WriteString("<strong>" + inner + "</strong>")
		case SpanItalic:
			b.WriteString("<em>" + inner + "</em>")
		case SpanCode:
			b.WriteString("<code>" + inner + "</code>")
		case SpanPre:
			b.WriteString("<pre>" + inner + "</pre>")
		case SpanLink:
			b.WriteString(`<a href="` + html.EscapeString(span.URL) + `" target="_blank">` + inner + "</a>")
		default:
			b.WriteString(inner)
		}

		if end > last {
			last = end
		}
	}

	if last < len(runes) {
		b.WriteString(html.EscapeString(string(runes[last:])))
	}

	return b.String(), nil
}

// deriveTitle picks the first line when it reads like a headline, and
// otherwise synthesizes one from the leading text: truncate first, then
// collapse whitespace.
func deriveTitle(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}

	firstLine := strings.TrimSpace(strings.SplitN(trimmed, "\n", 2)[0])
	lineLen := len([]rune(firstLine))
	if lineLen > titleMinLength && lineLen <= titleMaxLength {
		return firstLine
	}

	runes := []rune(trimmed)
	if len(runes) <= titleTruncateAt {
		return strings.Join(strings.Fields(trimmed), " ")
	}
	collapsed := strings.Join(strings.Fields(string(runes[:titleTruncateAt])), " ")
	return collapsed + "..."
}

// deriveExcerpt takes the text after the first line, truncated to a fixed
// length. A single-line message is its own excerpt.
func deriveExcerpt(text string) string {
	trimmed := strings.TrimSpace(text)
	parts := strings.SplitN(trimmed, "\n", 2)

	rest := trimmed
	if len(parts) == 2 {
		rest = strings.TrimSpace(parts[1])
	}

	runes := []rune(rest)
	if len(runes) <= excerptMaxLength {
		return rest
	}
	return string(runes[:excerptMaxLength]) + "..."
}
