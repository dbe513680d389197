package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"agentic-storywriter/agent"
	"agentic-storywriter/config"
	"agentic-storywriter/prompt"
	"agentic-storywriter/story"
	"agentic-storywriter/telemetry"
)

// app holds everything a command needs once flags and config are resolved.
type app struct {
	cfg      *config.Config
	creds    config.Credentials
	logger   *log.Logger
	metrics  *telemetry.Metrics
	tracker  *agent.UsageTracker
	shutdown func(context.Context) error
	logFile  *os.File
}

func main() {
	cmd := &cli.Command{
		Name:      "storywriter",
		Usage:     "write a short story from a concept with outline, draft and critique agents",
		ArgsUsage: "[concept...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file (default: ./storywriter.yaml if present)",
			},
			&cli.StringFlag{
				Name:  "concept-file",
				Usage: "read the story concept from `FILE`",
			},
			&cli.StringFlag{
				Name:  "concept",
				Usage: "use a named concept from the concepts directory",
				Value: prompt.DefaultConcept,
			},
			&cli.IntFlag{
				Name:  "max-iterations",
				Usage: "number of critique and revise rounds",
			},
			&cli.BoolFlag{
				Name:  "halt-on-error",
				Usage: "stop as soon as a provider call fails",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "also write the final story to `FILE`",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "show an interactive progress view",
			},
			&cli.BoolFlag{
				Name:  "plain",
				Usage: "print the story without markdown rendering",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "shorthand for --log-level debug",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "write logs to `FILE` instead of stderr",
			},
			&cli.StringFlag{
				Name:  "metrics-file",
				Usage: "write Prometheus metrics to `FILE` on exit",
			},
		},
		Action: runStory,
		Commands: []*cli.Command{
			{
				Name:      "summarize",
				Usage:     "summarize a text file with the summary agent",
				ArgsUsage: "<file>",
				Action:    runSummarize,
			},
			{
				Name:   "config",
				Usage:  "print the effective configuration",
				Action: runConfig,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Error("storywriter failed", "error", err)
		os.Exit(1)
	}
}

// setup loads .env, config and credentials and starts logging, metrics and
// tracing.
func setup(ctx context.Context, cmd *cli.Command) (*app, error) {
	if err := config.LoadDotEnv(); err != nil {
		log.Warn("could not load .env file", "error", err)
	}

	overrides := map[string]any{}
	if cmd.IsSet("max-iterations") {
		overrides["max_iterations"] = int(cmd.Int("max-iterations"))
	}
	if cmd.IsSet("halt-on-error") {
		overrides["halt_on_provider_error"] = cmd.Bool("halt-on-error")
	}
	if cmd.IsSet("log-level") {
		overrides["log_level"] = cmd.String("log-level")
	}
	if cmd.Bool("verbose") {
		overrides["log_level"] = "debug"
	}
	if cmd.IsSet("metrics-file") {
		overrides["metrics_file"] = cmd.String("metrics-file")
	}

	cfg, err := config.Load(cmd.String("config"), overrides)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		creds:   config.LoadCredentials(),
		metrics: telemetry.NewMetrics(),
	}

	var out io.Writer = os.Stderr
	switch {
	case cmd.String("log-file") != "":
		f, err := os.OpenFile(cmd.String("log-file"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		a.logFile = f
		out = f
	case cmd.Bool("tui"):
		// stderr belongs to the TUI
		out = io.Discard
	}

	level, _ := log.ParseLevel(cfg.LogLevel)
	a.logger = log.NewWithOptions(out, log.Options{
		Level:           level,
		ReportTimestamp: true,
		Prefix:          "storywriter",
	})

	a.tracker, err = agent.NewUsageTracker()
	if err != nil {
		return nil, err
	}

	a.shutdown, err = telemetry.InitTracing(ctx, telemetry.TracingConfig{
		ServiceName: telemetry.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
		Enabled:     cfg.Tracing.Enabled,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// close flushes traces, writes metrics and reports usage.
func (a *app) close(ctx context.Context) {
	total := a.tracker.Total()
	if total.TotalTokens > 0 {
		a.logger.Info("token usage",
			"input_tokens", total.InputTokens,
			"output_tokens", total.OutputTokens,
			"estimated_cost_usd", fmt.Sprintf("%.4f", total.Cost),
			"session", a.tracker.SessionDuration().Round(time.Millisecond),
		)
	}
	if a.cfg.MetricsFile != "" {
		if err := a.metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
			a.logger.Error("failed to write metrics", "error", err)
		}
	}
	if err := a.shutdown(context.WithoutCancel(ctx)); err != nil {
		a.logger.Warn("failed to flush traces", "error", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
}

func (a *app) options(progress func(story.ProgressUpdate)) story.Options {
	return story.Options{
		Logger:    a.logger,
		Observers: []agent.Observer{a.tracker},
		Metrics:   a.metrics,
		Progress:  progress,
	}
}

// resolveConcept picks the concept from the arguments, --concept-file or the
// named concept, in that order.
func resolveConcept(cmd *cli.Command, cfg *config.Config) (string, error) {
	if args := cmd.Args().Slice(); len(args) > 0 {
		return strings.TrimSpace(strings.Join(args, " ")), nil
	}
	if path := cmd.String("concept-file"); path != "" {
		return prompt.ReadConceptFile(path)
	}
	return prompt.NewStore(cfg.PromptsDir, cfg.ConceptsDir).Concept(cmd.String("concept"))
}

func runStory(ctx context.Context, cmd *cli.Command) error {
	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	concept, err := resolveConcept(cmd, a.cfg)
	if err != nil {
		return err
	}

	if cmd.Bool("tui") {
		return runTUI(ctx, cmd, a, concept)
	}

	w, err := story.Build(a.cfg, a.creds, a.options(nil))
	if err != nil {
		return err
	}
	s, err := w.Run(ctx, concept)
	if err != nil {
		return err
	}
	if s.Degraded {
		a.logger.Warn("story contains provider error reports", "run_id", s.RunID)
	}
	return writeStory(cmd, s)
}

func runTUI(ctx context.Context, cmd *cli.Command, a *app, concept string) error {
	progress := make(chan story.ProgressUpdate, 64)
	w, err := story.Build(a.cfg, a.creds, a.options(func(u story.ProgressUpdate) {
		select {
		case progress <- u:
		default:
			// UI is behind, drop the update
		}
	}))
	if err != nil {
		return err
	}

	program := tea.NewProgram(initialStoryModel(ctx, w, a.tracker, progress, concept), tea.WithAltScreen())
	final, err := program.Run()
	if err != nil {
		return err
	}

	m, ok := final.(storyModel)
	if !ok {
		return nil
	}
	if m.err != nil {
		return m.err
	}
	if m.result != nil && cmd.String("out") != "" {
		return saveStory(cmd.String("out"), m.result)
	}
	return nil
}

// writeStory prints the story and saves it to --out when given.
func writeStory(cmd *cli.Command, s *story.Story) error {
	if path := cmd.String("out"); path != "" {
		if err := saveStory(path, s); err != nil {
			return err
		}
	}

	text := s.Text
	if !cmd.Bool("plain") && term.IsTerminal(int(os.Stdout.Fd())) {
		width, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || width <= 0 {
			width = 80
		}
		if rendered, err := renderMarkdown(text, width); err == nil {
			text = rendered
		}
	}
	_, err := fmt.Fprintln(os.Stdout, text)
	return err
}

func saveStory(path string, s *story.Story) error {
	if err := os.WriteFile(path, []byte(s.Text+"\n"), 0o644); err != nil {
		return fmt.Errorf("write story: %w", err)
	}
	return nil
}

func renderMarkdown(text string, width int) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	if err != nil {
		return "", err
	}
	rendered, err := renderer.Render(text)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(rendered, "\n"), nil
}

func runSummarize(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return errors.New("summarize needs exactly one file argument")
	}

	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	content, err := os.ReadFile(cmd.Args().First())
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	summarizer, err := story.BuildSummarizer(a.cfg, a.creds, a.options(nil))
	if err != nil {
		return err
	}
	c, err := summarizer.Summarize(ctx, string(content))
	if err != nil {
		return err
	}
	if c.Failed() {
		a.logger.Warn("summary is an error report", "provider", c.Provider, "error", c.Err)
	}
	_, err = fmt.Fprintln(os.Stdout, c.Text)
	return err
}

func runConfig(ctx context.Context, cmd *cli.Command) error {
	if err := config.LoadDotEnv(); err != nil {
		log.Warn("could not load .env file", "error", err)
	}
	cfg, err := config.Load(cmd.String("config"), nil)
	if err != nil {
		return err
	}
	creds := config.LoadCredentials()

	var b strings.Builder
	for _, role := range config.Roles {
		r := cfg.Role(role)
		fmt.Fprintf(&b, "%s:\n", role)
		fmt.Fprintf(&b, "  provider: %s\n", r.Provider)
		fmt.Fprintf(&b, "  model: %s\n", r.EffectiveModel())
		if r.Temperature != nil {
			fmt.Fprintf(&b, "  temperature: %g\n", *r.Temperature)
		}
		if r.MaxTokens > 0 {
			fmt.Fprintf(&b, "  max_tokens: %d\n", r.MaxTokens)
		}
		fmt.Fprintf(&b, "  api_key: %s\n", config.Mask(creds.APIKey(r.Provider)))
	}
	fmt.Fprintf(&b, "max_iterations: %d\n", cfg.MaxIterations)
	fmt.Fprintf(&b, "halt_on_provider_error: %t\n", cfg.HaltOnProviderError)
	fmt.Fprintf(&b, "prompts_dir: %q\n", cfg.PromptsDir)
	fmt.Fprintf(&b, "concepts_dir: %q\n", cfg.ConceptsDir)
	fmt.Fprintf(&b, "log_level: %s\n", cfg.LogLevel)
	fmt.Fprintf(&b, "metrics_file: %q\n", cfg.MetricsFile)
	fmt.Fprintf(&b, "tracing:\n  enabled: %t\n  endpoint: %s\n  sample_rate: %g\n",
		cfg.Tracing.Enabled, cfg.Tracing.Endpoint, cfg.Tracing.SampleRate)
	fmt.Fprintf(&b, "site_url: %q\nsite_name: %q\n", creds.SiteURL, creds.SiteName)

	_, err = io.WriteString(os.Stdout, b.String())
	return err
}
