// Package agent binds a prompt template to a provider under a fixed name.
//
// The role agents in this package (outline, draft, critique, summary) are
// thin wrappers that supply the template variables for their task and hand
// the work to Agent.Run.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"agentic-storywriter/prompt"
	"agentic-storywriter/provider"
)

// ErrNoProvider is returned by Run when the agent has no provider.
var ErrNoProvider = errors.New("agent has no provider")

// Config holds the configuration parameters for an agent.
type Config struct {
	Name     string
	Template string

	// Optional generation overrides; nil and zero defer to the provider.
	Temperature *float64
	MaxTokens   int
}

// Observer is notified after every provider call an agent makes.
type Observer interface {
	ObserveCall(agentName string, req provider.Request, c provider.Completion)
}

// Agent renders its template with the caller's variables and sends the
// result to its provider.
type Agent struct {
	Config    Config
	Provider  provider.Provider
	Logger    *log.Logger
	Observers []Observer
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the logger used for the agent's output.
func WithLogger(logger *log.Logger) Option {
	return func(a *Agent) {
		a.Logger = logger
	}
}

// WithObservers registers observers that see every call.
func WithObservers(observers ...Observer) Option {
	return func(a *Agent) {
		a.Observers = append(a.Observers, observers...)
	}
}

// WithTemperature overrides the provider's default temperature.
func WithTemperature(t float64) Option {
	return func(a *Agent) {
		a.Config.Temperature = provider.Temperature(t)
	}
}

// WithMaxTokens overrides the provider's default token limit.
func WithMaxTokens(n int) Option {
	return func(a *Agent) {
		a.Config.MaxTokens = n
	}
}

// New creates an agent named name that renders template for p.
func New(name, template string, p provider.Provider, opts ...Option) *Agent {
	a := &Agent{
		Config: Config{
			Name:     name,
			Template: template,
		},
		Provider: p,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.Logger == nil {
		a.Logger = log.Default()
	}
	return a
}

// SystemPrompt returns the system instruction sent on behalf of name.
func SystemPrompt(name string) string {
	return fmt.Sprintf("You are %s. Follow these instructions carefully.", name)
}

// Run formats the template with vars and returns the provider's completion
// unchanged. Keys in vars that the template does not use are ignored. A
// missing key fails before the provider is contacted.
//
// Provider failures are not Go errors: they come back as a completion whose
// Failed method reports true.
func (a *Agent) Run(ctx context.Context, vars map[string]string) (provider.Completion, error) {
	if a.Provider == nil {
		return provider.Completion{}, fmt.Errorf("%s: %w", a.Config.Name, ErrNoProvider)
	}

	user, err := prompt.Format(a.Config.Template, vars)
	if err != nil {
		return provider.Completion{}, fmt.Errorf("%s: format prompt: %w", a.Config.Name, err)
	}

	req := provider.Request{
		System:      SystemPrompt(a.Config.Name),
		User:        user,
		Temperature: a.Config.Temperature,
		MaxTokens:   a.Config.MaxTokens,
	}
	c := a.Provider.GenerateText(ctx, req)

	a.Logger.Info(fmt.Sprintf("[%s] output", a.Config.Name),
		"provider", c.Provider,
		"model", c.Model,
		"failed", c.Failed(),
		"duration", c.Duration,
	)
	a.Logger.Print(c.Text)

	for _, o := range a.Observers {
		o.ObserveCall(a.Config.Name, req, c)
	}
	return c, nil
}
