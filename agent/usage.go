package agent

import (
	"fmt"
	"sync"
	"time"

	"github.com/tiktoken-go/tokenizer"

	"agentic-storywriter/provider"
)

// modelPricing is the USD cost per 1K tokens. Models not listed cost zero.
var modelPricing = map[string]struct {
	InputCostPer1K  float64
	OutputCostPer1K float64
}{
	"gpt-4o":                       {0.0025, 0.01},
	"gpt-4o-mini":                  {0.00015, 0.0006},
	"gpt-4-turbo":                  {0.01, 0.03},
	"openai/gpt-4o":                {0.0025, 0.01},
	"claude-3-7-sonnet-20250219":   {0.003, 0.015},
	"gemini-2.5-pro-preview-03-25": {0.00125, 0.01},
}

// TokenCounter estimates token counts with the GPT-4o encoding. Counts for
// other vendors are approximations.
type TokenCounter struct {
	encoder tokenizer.Codec
}

// NewTokenCounter creates a new token counter for GPT-4o
func NewTokenCounter() (*TokenCounter, error) {
	encoder, err := tokenizer.ForModel(tokenizer.GPT4o)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer: %w", err)
	}
	return &TokenCounter{encoder: encoder}, nil
}

// CountTokens counts the number of tokens in the given text
func (tc *TokenCounter) CountTokens(text string) int {
	ids, _, _ := tc.encoder.Encode(text)
	return len(ids)
}

// TokenUsage represents token consumption and cost.
type TokenUsage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	Cost         float64 `json:"cost_usd"`
}

func (t *TokenUsage) add(model string, input, output int) {
	t.InputTokens += input
	t.OutputTokens += output
	t.TotalTokens += input + output
	t.Cost += calculateCost(model, input, output)
}

func calculateCost(model string, input, output int) float64 {
	pricing, ok := modelPricing[model]
	if !ok {
		return 0
	}
	return float64(input)/1000.0*pricing.InputCostPer1K + float64(output)/1000.0*pricing.OutputCostPer1K
}

// AgentUsage is the usage accumulated by one agent.
type AgentUsage struct {
	AgentName   string     `json:"agent_name"`
	Usage       TokenUsage `json:"usage"`
	CallCount   int        `json:"call_count"`
	FailedCalls int        `json:"failed_calls"`
	LastUpdated time.Time  `json:"last_updated"`
}

// UsageTracker is an Observer that accumulates estimated token usage and cost
// per agent. It is safe for concurrent use.
type UsageTracker struct {
	counter      *TokenCounter
	total        TokenUsage
	agents       map[string]*AgentUsage
	sessionStart time.Time
	mu           sync.RWMutex
}

// NewUsageTracker creates an empty tracker.
func NewUsageTracker() (*UsageTracker, error) {
	counter, err := NewTokenCounter()
	if err != nil {
		return nil, err
	}
	return &UsageTracker{
		counter:      counter,
		agents:       make(map[string]*AgentUsage),
		sessionStart: time.Now(),
	}, nil
}

// ObserveCall records one call. Failed calls count their input only, since
// the completion text is an error report rather than model output.
func (u *UsageTracker) ObserveCall(agentName string, req provider.Request, c provider.Completion) {
	input := u.counter.CountTokens(req.System + "\n" + req.User)
	output := 0
	if !c.Failed() {
		output = u.counter.CountTokens(c.Text)
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	a := u.agents[agentName]
	if a == nil {
		a = &AgentUsage{AgentName: agentName}
		u.agents[agentName] = a
	}
	a.Usage.add(c.Model, input, output)
	a.CallCount++
	if c.Failed() {
		a.FailedCalls++
	}
	a.LastUpdated = time.Now()

	u.total.add(c.Model, input, output)
}

// Total returns the usage across all agents.
func (u *UsageTracker) Total() TokenUsage {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.total
}

// Agent returns the usage recorded for agentName.
func (u *UsageTracker) Agent(agentName string) AgentUsage {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if a, ok := u.agents[agentName]; ok {
		return *a
	}
	return AgentUsage{AgentName: agentName}
}

// Stats returns a copy of every agent's usage.
func (u *UsageTracker) Stats() map[string]AgentUsage {
	u.mu.RLock()
	defer u.mu.RUnlock()

	stats := make(map[string]AgentUsage, len(u.agents))
	for name, a := range u.agents {
		stats[name] = *a
	}
	return stats
}

// SessionDuration returns how long the tracker has existed.
func (u *UsageTracker) SessionDuration() time.Duration {
	return time.Since(u.sessionStart)
}
