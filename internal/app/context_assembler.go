package app

import (
	"strings"

	"github.com/tiktoken-go/tokenizer"
)

const (
	parentSummaryHeader = "Previous research summary (do not repeat this; focus on new info, updates and gaps):"
	documentsHeader     = "User-provided documents (use these as additional context):"
	documentSeparator   = "\n\n---\n\n"

	// Parent summaries shorter than this are dropped outright instead of
	// being shrunk further; a tiny fragment is worse than nothing.
	minParentSummaryChars = 64
)

// ContextAssembler builds the bounded input string for a pipeline run from
// the query, the parent session's summary and the attached document
// summaries. The query is never truncated; document summaries are dropped
// oldest-first, and the parent summary is shrunk only as a last resort.
type ContextAssembler struct {
	maxChars  int
	maxTokens int
	codec     tokenizer.Codec
}

func NewContextAssembler(maxChars, maxTokens int) *ContextAssembler {
	a := &ContextAssembler{
		maxChars:  maxChars,
		maxTokens: maxTokens,
	}
	if maxTokens > 0 {
		if codec, err := tokenizer.Get(tokenizer.Cl100kBase); err == nil {
			a.codec = codec
		}
	}
	return a
}

// Assemble is a pure function of its inputs. Empty document summaries are
// skipped; documents must arrive in upload order.
func (a *ContextAssembler) Assemble(query, parentSummary string, docSummaries []string) string {
	query = strings.TrimSpace(query)
	parent := strings.TrimSpace(parentSummary)

	docs := make([]string, 0, len(docSummaries))
	for _, s := range docSummaries {
		if s = strings.TrimSpace(s); s != "" {
			docs = append(docs, s)
		}
	}

	for {
		out := a.render(query, parent, docs)
		if a.fits(out) {
			return out
		}
		if len(docs) > 0 {
			docs = docs[1:]
			continue
		}
		if parent != "" {
			parent = shrinkRunes(parent)
			continue
		}
		// Even the bare query is over the ceiling; the query still wins.
		return query
	}
}

func (a *ContextAssembler) render(query, parent string, docs []string) string {
	var b strings.Builder
	b.WriteString(query)
	if parent != "" {
		b.WriteString("\n\n")
		b.WriteString(parentSummaryHeader)
		b.WriteString("\n")
		b.WriteString(parent)
	}
	if len(docs) > 0 {
		b.WriteString("\n\n")
		b.WriteString(documentsHeader)
		b.WriteString("\n")
		b.WriteString(strings.Join(docs, documentSeparator))
	}
	return b.String()
}

func (a *ContextAssembler) fits(s string) bool {
	if a.maxChars > 0 && len([]rune(s)) > a.maxChars {
		return false
	}
	if a.codec != nil && a.maxTokens > 0 {
		if count, err := a.codec.Count(s); err == nil && count > a.maxTokens {
			return false
		}
	}
	return true
}

func shrinkRunes(s string) string {
	runes := []rune(s)
	if len(runes) < minParentSummaryChars {
		return ""
	}
	return string(runes[:len(runes)/2])
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
