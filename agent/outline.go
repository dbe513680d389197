package agent

import (
	"context"

	"agentic-storywriter/provider"
)

// OutlineAgentName is the identifier for the outline agent.
const OutlineAgentName = "OutlineAgent"

// OutlineAgent turns a story concept into a structured outline.
type OutlineAgent struct {
	*Agent
}

// NewOutlineAgent creates an OutlineAgent. The template must use the
// {concept} placeholder.
func NewOutlineAgent(p provider.Provider, template string, opts ...Option) *OutlineAgent {
	return &OutlineAgent{
		Agent: New(OutlineAgentName, template, p, opts...),
	}
}

// Generate produces an outline for concept.
func (o *OutlineAgent) Generate(ctx context.Context, concept string) (provider.Completion, error) {
	return o.Run(ctx, map[string]string{"concept": concept})
}
