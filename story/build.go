package story

import (
	"fmt"

	"github.com/charmbracelet/log"

	"agentic-storywriter/agent"
	"agentic-storywriter/config"
	"agentic-storywriter/prompt"
	"agentic-storywriter/provider"
)

// Build constructs one provider per role from cfg and creds, loads the
// templates and returns a ready workflow. Any missing credential or template
// fails here, before generation starts. cfg takes precedence over the
// iteration and halt settings in opts.
func Build(cfg *config.Config, creds config.Credentials, opts Options) (*Workflow, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts.MaxIterations = cfg.MaxIterations
	opts.HaltOnProviderError = cfg.HaltOnProviderError
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	store := prompt.NewStore(cfg.PromptsDir, cfg.ConceptsDir)
	templates, err := loadTemplates(store,
		prompt.OutlineTemplate,
		prompt.DraftTemplate,
		prompt.ReviseTemplate,
		prompt.CritiqueTemplate,
	)
	if err != nil {
		return nil, err
	}

	providers := make(map[string]provider.Provider, 3)
	for _, role := range []string{config.RoleOutline, config.RoleDraft, config.RoleCritique} {
		p, err := newProvider(cfg, creds, role, opts.Logger)
		if err != nil {
			return nil, err
		}
		providers[role] = p
	}

	agentOpts := agentOptions(opts)
	return NewWorkflow(
		agent.NewOutlineAgent(providers[config.RoleOutline], templates[prompt.OutlineTemplate], agentOpts...),
		agent.NewDraftAgent(providers[config.RoleDraft], templates[prompt.DraftTemplate], templates[prompt.ReviseTemplate], agentOpts...),
		agent.NewCritiqueAgent(providers[config.RoleCritique], templates[prompt.CritiqueTemplate], agentOpts...),
		opts,
	), nil
}

// BuildSummarizer constructs the summary agent configured by cfg.
func BuildSummarizer(cfg *config.Config, creds config.Credentials, opts Options) (*agent.SummaryAgent, error) {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	store := prompt.NewStore(cfg.PromptsDir, cfg.ConceptsDir)
	tmpl, err := store.Template(prompt.SummaryTemplate)
	if err != nil {
		return nil, err
	}

	p, err := newProvider(cfg, creds, config.RoleSummary, opts.Logger)
	if err != nil {
		return nil, err
	}
	return agent.NewSummaryAgent(p, tmpl, agentOptions(opts)...), nil
}

func newProvider(cfg *config.Config, creds config.Credentials, role string, logger *log.Logger) (provider.Provider, error) {
	r := cfg.Role(role)
	p, err := provider.New(r.Provider, creds.Settings(r, logger))
	if err != nil {
		return nil, fmt.Errorf("%s provider: %w", role, err)
	}
	logger.Debug("provider ready", "role", role, "provider", p.Name(), "model", p.Model())
	return p, nil
}

func loadTemplates(store *prompt.Store, names ...string) (map[string]string, error) {
	templates := make(map[string]string, len(names))
	for _, name := range names {
		t, err := store.Template(name)
		if err != nil {
			return nil, err
		}
		if _, err := prompt.Placeholders(t); err != nil {
			return nil, fmt.Errorf("template %s: %w", name, err)
		}
		templates[name] = t
	}
	return templates, nil
}

func agentOptions(opts Options) []agent.Option {
	observers := append([]agent.Observer{}, opts.Observers...)
	if opts.Metrics != nil {
		observers = append(observers, opts.Metrics)
	}
	return []agent.Option{
		agent.WithLogger(opts.Logger),
		agent.WithObservers(observers...),
	}
}
