package agent

import (
	"context"

	"agentic-storywriter/provider"
)

// CritiqueAgentName is the identifier for the critique agent.
const CritiqueAgentName = "CritiqueAgent"

// CritiqueAgent reviews a draft against its outline. The feedback is
// free-form prose and is passed on as-is.
type CritiqueAgent struct {
	*Agent
}

// NewCritiqueAgent creates a CritiqueAgent. The template must use the
// {outline} and {draft} placeholders.
func NewCritiqueAgent(p provider.Provider, template string, opts ...Option) *CritiqueAgent {
	return &CritiqueAgent{
		Agent: New(CritiqueAgentName, template, p, opts...),
	}
}

// Critique returns feedback on draft.
func (c *CritiqueAgent) Critique(ctx context.Context, outline, draft string) (provider.Completion, error) {
	return c.Run(ctx, map[string]string{
		"outline": outline,
		"draft":   draft,
	})
}
