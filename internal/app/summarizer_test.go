package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deepresearch/internal/ai"
)

func newTestSummarizer(llm *fakeLLM, wait time.Duration) *Summarizer {
	return NewSummarizer(llm, ai.ChatConfig{Model: "test-model"}, SummarizerConfig{
		DocumentInputMaxChars:   4000,
		DocumentSummaryMaxChars: 100,
		ReportInputMaxChars:     4000,
		ReportSummaryMaxChars:   100,
		Wait:                    wait,
	})
}

func TestSummarizeDocument(t *testing.T) {
	llm := &fakeLLM{completeFn: func(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (ai.Completion, error) {
		require.Len(t, messages, 1)
		assert.Contains(t, messages[0].Content, "document body")
		return ai.Completion{Content: "  - key fact  "}, nil
	}}
	s := newTestSummarizer(llm, time.Second)

	summary, err := s.SummarizeDocument(context.Background(), "document body")
	require.NoError(t, err)
	assert.Equal(t, "- key fact", summary)
}

func TestSummarizeDocumentEmptyInput(t *testing.T) {
	s := newTestSummarizer(&fakeLLM{}, time.Second)

	summary, err := s.SummarizeDocument(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, summary)
}

func TestSummarizeDocumentTimeout(t *testing.T) {
	llm := &fakeLLM{completeFn: func(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (ai.Completion, error) {
		<-ctx.Done()
		return ai.Completion{}, ctx.Err()
	}}
	s := newTestSummarizer(llm, 10*time.Millisecond)

	summary, err := s.SummarizeDocument(context.Background(), "slow document")
	require.ErrorIs(t, err, ErrSummaryTimeout)
	assert.Empty(t, summary)
}

func TestSummarizeDocumentModelErrorFallsBackToPrefix(t *testing.T) {
	llm := &fakeLLM{completeFn: func(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (ai.Completion, error) {
		return ai.Completion{}, errors.New("rate limited")
	}}
	s := newTestSummarizer(llm, time.Second)

	text := strings.Repeat("x", 300)
	summary, err := s.SummarizeDocument(context.Background(), text)
	require.NoError(t, err)
	// The raw-text prefix, bounded by the summary ceiling.
	assert.Equal(t, strings.Repeat("x", 100), summary)
}

func TestSummarizeDocumentOutputTruncated(t *testing.T) {
	llm := &fakeLLM{completeFn: func(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (ai.Completion, error) {
		return ai.Completion{Content: strings.Repeat("s", 500)}, nil
	}}
	s := newTestSummarizer(llm, time.Second)

	summary, err := s.SummarizeDocument(context.Background(), "doc")
	require.NoError(t, err)
	assert.Len(t, summary, 100)
}

func TestSummarizeReport(t *testing.T) {
	llm := &fakeLLM{completeFn: func(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (ai.Completion, error) {
		return ai.Completion{Content: "- finding one\n- finding two"}, nil
	}}
	s := newTestSummarizer(llm, time.Second)

	summary := s.SummarizeReport(context.Background(), "a long report")
	assert.Equal(t, "- finding one\n- finding two", summary)
}

func TestSummarizeReportNeverFails(t *testing.T) {
	llm := &fakeLLM{completeFn: func(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (ai.Completion, error) {
		return ai.Completion{}, errors.New("model down")
	}}
	s := newTestSummarizer(llm, time.Second)

	report := strings.Repeat("r", 300)
	summary := s.SummarizeReport(context.Background(), report)
	assert.Equal(t, strings.Repeat("r", 100), summary)
}

func TestSummarizeReportEmpty(t *testing.T) {
	s := newTestSummarizer(&fakeLLM{}, time.Second)
	assert.Empty(t, s.SummarizeReport(context.Background(), "  "))
}
