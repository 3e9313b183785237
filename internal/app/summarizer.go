package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"deepresearch/internal/ai"
)

var ErrSummaryTimeout = errors.New("summarization wait exceeded")

// LLMClient is the slice of the chat client the app services need.
type LLMClient interface {
	Complete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (ai.Completion, error)
}

const (
	documentSummaryPrompt = "Summarize the following document for research context. " +
		"Return 5-10 concise bullet points with key facts, entities, and numbers.\n\nDocument:\n"
	reportSummaryPrompt = "Summarize the research report in 5-10 bullet points. " +
		"Focus on key findings, numbers, and conclusions. " +
		"Do not include chain-of-thought.\n\nReport:\n"

	// Fallback summary length when the model returns nothing usable.
	rawFallbackChars = 1500
)

type SummarizerConfig struct {
	DocumentInputMaxChars   int
	DocumentSummaryMaxChars int
	ReportInputMaxChars     int
	ReportSummaryMaxChars   int
	Wait                    time.Duration
}

// Summarizer reduces raw document text and finished reports to bounded
// digests. Input is truncated before the model call to bound downstream
// cost; output is truncated to the configured ceiling, never dropped.
type Summarizer struct {
	client LLMClient
	cfg    ai.ChatConfig
	limits SummarizerConfig
}

func NewSummarizer(client LLMClient, cfg ai.ChatConfig, limits SummarizerConfig) *Summarizer {
	if limits.Wait <= 0 {
		limits.Wait = 2 * time.Minute
	}
	return &Summarizer{client: client, cfg: cfg, limits: limits}
}

// SummarizeDocument digests uploaded document text within the configured
// wait. On timeout it returns an empty summary and ErrSummaryTimeout; the
// caller stores the document anyway and excludes it from context assembly
// until a summary exists. Other model failures fall back to a raw-text
// prefix so the document is still usable.
func (s *Summarizer) SummarizeDocument(ctx context.Context, text string) (string, error) {
	text = truncateRunes(strings.TrimSpace(text), s.limits.DocumentInputMaxChars)
	if text == "" {
		return "", nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.limits.Wait)
	defer cancel()

	summary, err := s.complete(waitCtx, documentSummaryPrompt+text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return "", ErrSummaryTimeout
		}
		summary = ""
	}
	if summary == "" {
		summary = truncateRunes(text, rawFallbackChars)
	}
	return truncateRunes(summary, s.limits.DocumentSummaryMaxChars), nil
}

// SummarizeReport digests a finished report into continuation context. It
// never fails: a model error degrades to a report prefix.
func (s *Summarizer) SummarizeReport(ctx context.Context, report string) string {
	report = strings.TrimSpace(report)
	if report == "" {
		return ""
	}

	input := truncateRunes(report, s.limits.ReportInputMaxChars)
	summary, err := s.complete(ctx, reportSummaryPrompt+input)
	if err != nil || summary == "" {
		summary = truncateRunes(report, rawFallbackChars)
	}
	return truncateRunes(summary, s.limits.ReportSummaryMaxChars)
}

func (s *Summarizer) complete(ctx context.Context, prompt string) (string, error) {
	completion, err := s.client.Complete(ctx, s.cfg, []ai.ChatMessage{
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(completion.Content), nil
}
