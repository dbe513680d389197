package agent

import (
	"context"

	"agentic-storywriter/provider"
)

// SummaryAgentName is the identifier for the summary agent.
const SummaryAgentName = "SummaryAgent"

// SummaryAgent condenses arbitrary text.
type SummaryAgent struct {
	*Agent
}

// NewSummaryAgent creates a SummaryAgent whose template uses {text}.
func NewSummaryAgent(p provider.Provider, template string, opts ...Option) *SummaryAgent {
	return &SummaryAgent{
		Agent: New(SummaryAgentName, template, p, opts...),
	}
}

// Summarize returns a summary of text.
func (s *SummaryAgent) Summarize(ctx context.Context, text string) (provider.Completion, error) {
	return s.Run(ctx, map[string]string{"text": text})
}
