package agent

import (
	"context"

	"agentic-storywriter/provider"
)

// DraftAgentName is the identifier for the draft agent.
const DraftAgentName = "DraftAgent"

// WriteRequest asks for a first draft of an outline.
type WriteRequest struct {
	Outline string
}

// ReviseRequest asks for a revision of Draft that addresses Feedback.
type ReviseRequest struct {
	Outline  string
	Draft    string
	Feedback string
}

// DraftAgent writes the first draft and every revision of a story. Writing
// and revising use separate agents bound to their own templates, so a
// DraftAgent is safe to reuse in any order.
type DraftAgent struct {
	writer  *Agent
	reviser *Agent
}

// NewDraftAgent creates a DraftAgent. writeTemplate uses {outline};
// reviseTemplate uses {outline}, {draft} and {feedback}.
func NewDraftAgent(p provider.Provider, writeTemplate, reviseTemplate string, opts ...Option) *DraftAgent {
	return &DraftAgent{
		writer:  New(DraftAgentName, writeTemplate, p, opts...),
		reviser: New(DraftAgentName, reviseTemplate, p, opts...),
	}
}

// Name returns the agent's identifier.
func (d *DraftAgent) Name() string {
	return DraftAgentName
}

// Write produces the first draft from req.Outline.
func (d *DraftAgent) Write(ctx context.Context, req WriteRequest) (provider.Completion, error) {
	return d.writer.Run(ctx, map[string]string{"outline": req.Outline})
}

// Revise rewrites req.Draft to address req.Feedback.
func (d *DraftAgent) Revise(ctx context.Context, req ReviseRequest) (provider.Completion, error) {
	return d.reviser.Run(ctx, map[string]string{
		"outline":  req.Outline,
		"draft":    req.Draft,
		"feedback": req.Feedback,
	})
}
