package pipeline

import (
	"context"
	"fmt"
	"strings"

	"deepresearch/internal/ai"
	"deepresearch/internal/model"
)

// Result is what a pipeline run hands back to the orchestration core.
type Result struct {
	Report    string
	Sources   []model.Source
	Reasoning string
	Usage     ai.TokenUsage
}

// Runner is the boundary with the retrieval/synthesis engine. Run receives
// the assembled context and blocks until the engine finishes or ctx expires.
type Runner interface {
	Run(ctx context.Context, input string) (*Result, error)
}

// ChatClient is the slice of the LLM client the runner needs.
type ChatClient interface {
	Complete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (ai.Completion, error)
}

const researchSystemPrompt = "You are a thorough research assistant. " +
	"Write a structured research report answering the user's request. " +
	"Cite facts inline with bracketed numbers like [1], and end the report with a " +
	"\"Sources\" section listing each citation as \"[n] title - url\". " +
	"If prior research context or user documents are provided, build on them " +
	"instead of repeating them."

// LLMRunner runs the research pipeline against an OpenAI-compatible model.
type LLMRunner struct {
	client ChatClient
	cfg    ai.ChatConfig
}

func NewLLMRunner(client ChatClient, cfg ai.ChatConfig) *LLMRunner {
	return &LLMRunner{client: client, cfg: cfg}
}

func (r *LLMRunner) Run(ctx context.Context, input string) (*Result, error) {
	messages := []ai.ChatMessage{
		{Role: "system", Content: researchSystemPrompt},
		{Role: "user", Content: input},
	}

	completion, err := r.client.Complete(ctx, r.cfg, messages)
	if err != nil {
		return nil, fmt.Errorf("research completion failed: %w", err)
	}

	report := strings.TrimSpace(completion.Content)
	if report == "" {
		return nil, fmt.Errorf("research model returned an empty report")
	}

	sources := ExtractSources(report)

	return &Result{
		Report:    report,
		Sources:   sources,
		Reasoning: buildReasoning(r.cfg.Model, len(sources)),
		Usage:     completion.Usage,
	}, nil
}

func buildReasoning(modelName string, sourceCount int) string {
	lines := []string{
		"High-level reasoning:",
		fmt.Sprintf("- Ran a single-model research synthesis with %s.", modelName),
	}
	if sourceCount > 0 {
		lines = append(lines, fmt.Sprintf("- Source selection: kept %d sources for citations.", sourceCount))
	} else {
		lines = append(lines, "- Source selection: the report cited no explicit sources.")
	}
	lines = append(lines, "- Provided context (prior summary, user documents) was treated as ground truth to extend, not repeat.")
	return strings.Join(lines, "\n")
}
