package story

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"agentic-storywriter/agent"
	"agentic-storywriter/config"
	"agentic-storywriter/prompt"
	"agentic-storywriter/provider"
	"agentic-storywriter/telemetry"
)

// fakeProvider replays replies in order. A reply of "!" becomes an error
// report.
type fakeProvider struct {
	name    string
	replies []string
	prompts []string
}

func (f *fakeProvider) Name() string  { return f.name }
func (f *fakeProvider) Model() string { return f.name + "-model" }

func (f *fakeProvider) GenerateText(ctx context.Context, req provider.Request) provider.Completion {
	f.prompts = append(f.prompts, req.User)
	reply := "reply"
	if i := len(f.prompts) - 1; i < len(f.replies) {
		reply = f.replies[i]
	}
	if reply == "!" {
		err := errors.New("503 service unavailable")
		return provider.Completion{Text: provider.ErrorPrefix + err.Error(), Err: err, Provider: f.name, Model: f.Model()}
	}
	return provider.Completion{Text: reply, Provider: f.name, Model: f.Model()}
}

func (f *fakeProvider) calls() int { return len(f.prompts) }

type fixture struct {
	outline  *fakeProvider
	draft    *fakeProvider
	critique *fakeProvider
	updates  []ProgressUpdate
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func newFixture() *fixture {
	return &fixture{
		outline:  &fakeProvider{name: "google"},
		draft:    &fakeProvider{name: "openrouter"},
		critique: &fakeProvider{name: "anthropic"},
	}
}

func (f *fixture) workflow(opts Options) *Workflow {
	logger := quietLogger()
	opts.Logger = logger
	opts.Progress = func(u ProgressUpdate) { f.updates = append(f.updates, u) }
	agentOpts := []agent.Option{agent.WithLogger(logger)}
	if opts.Metrics != nil {
		agentOpts = append(agentOpts, agent.WithObservers(opts.Metrics))
	}
	return NewWorkflow(
		agent.NewOutlineAgent(f.outline, prompt.MustTemplate(prompt.OutlineTemplate), agentOpts...),
		agent.NewDraftAgent(f.draft, prompt.MustTemplate(prompt.DraftTemplate), prompt.MustTemplate(prompt.ReviseTemplate), agentOpts...),
		agent.NewCritiqueAgent(f.critique, prompt.MustTemplate(prompt.CritiqueTemplate), agentOpts...),
		opts,
	)
}

func TestRunDogLearnsToFly(t *testing.T) {
	f := newFixture()
	f.outline.replies = []string{"OUTLINE: the dog, the cliff, the sky"}
	f.draft.replies = []string{"DRAFT-0", "REVISION-1", "REVISION-2"}
	f.critique.replies = []string{"FEEDBACK-1", "FEEDBACK-2"}

	s, err := f.workflow(Options{MaxIterations: 2}).Run(context.Background(), "A dog learns to fly.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.Text != "REVISION-2" {
		t.Errorf("expected final draft to be the second revision, got %q", s.Text)
	}
	if s.Outline != "OUTLINE: the dog, the cliff, the sky" {
		t.Errorf("unexpected outline %q", s.Outline)
	}
	if s.Iterations != 2 || s.Degraded {
		t.Errorf("unexpected story state %+v", s)
	}
	if s.RunID == "" || s.Concept != "A dog learns to fly." {
		t.Errorf("missing run metadata %+v", s)
	}

	if f.outline.calls() != 1 {
		t.Errorf("expected 1 outline call, got %d", f.outline.calls())
	}
	if f.critique.calls() != 2 {
		t.Errorf("expected 2 critique calls, got %d", f.critique.calls())
	}
	if f.draft.calls() != 3 {
		t.Errorf("expected 1 write and 2 revise calls, got %d", f.draft.calls())
	}

	if !strings.Contains(f.outline.prompts[0], "A dog learns to fly.") {
		t.Error("concept missing from outline prompt")
	}
	if !strings.Contains(f.draft.prompts[0], "OUTLINE: the dog") {
		t.Error("outline missing from draft prompt")
	}

	// Second critique sees the first revision.
	if !strings.Contains(f.critique.prompts[1], "REVISION-1") || strings.Contains(f.critique.prompts[1], "DRAFT-0") {
		t.Errorf("second critique should review REVISION-1, got %q", f.critique.prompts[1])
	}
	// Second revise gets the first revision and the second feedback.
	rev2 := f.draft.prompts[2]
	for _, want := range []string{"OUTLINE: the dog", "REVISION-1", "FEEDBACK-2"} {
		if !strings.Contains(rev2, want) {
			t.Errorf("second revise prompt missing %q", want)
		}
	}
	if strings.Contains(rev2, "FEEDBACK-1") {
		t.Error("feedback must not carry over between iterations")
	}
}

func TestRunFixedIterationCount(t *testing.T) {
	for _, n := range []int{0, 1, 3} {
		f := newFixture()
		f.draft.replies = []string{"first draft"}
		f.critique.replies = []string{"No changes needed.", "No changes needed.", "No changes needed."}

		s, err := f.workflow(Options{MaxIterations: n}).Run(context.Background(), "concept")
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if f.critique.calls() != n {
			t.Errorf("n=%d: expected %d critique calls, got %d", n, n, f.critique.calls())
		}
		if f.draft.calls() != n+1 {
			t.Errorf("n=%d: expected %d draft calls, got %d", n, n+1, f.draft.calls())
		}
		if s.Iterations != n {
			t.Errorf("n=%d: expected %d iterations, got %d", n, n, s.Iterations)
		}
		if n == 0 && s.Text != "first draft" {
			t.Errorf("with no iterations the first draft is final, got %q", s.Text)
		}
	}
}

func TestRunEmptyConcept(t *testing.T) {
	for _, concept := range []string{"", "   \n\t"} {
		f := newFixture()
		_, err := f.workflow(Options{MaxIterations: 2}).Run(context.Background(), concept)
		if !errors.Is(err, ErrEmptyConcept) {
			t.Errorf("expected ErrEmptyConcept, got %v", err)
		}
		if f.outline.calls() != 0 {
			t.Error("no provider should be called for an empty concept")
		}
	}
}

func TestRunErrorTextFlowsDownstream(t *testing.T) {
	f := newFixture()
	f.draft.replies = []string{"DRAFT-0", "REVISION-1"}
	f.critique.replies = []string{"!"}

	s, err := f.workflow(Options{MaxIterations: 1}).Run(context.Background(), "concept")
	if err != nil {
		t.Fatalf("provider errors must not abort by default: %v", err)
	}
	if !s.Degraded {
		t.Error("expected story to be marked degraded")
	}
	if s.Text != "REVISION-1" {
		t.Errorf("unexpected final text %q", s.Text)
	}

	revise := f.draft.prompts[1]
	if !strings.Contains(revise, "Error generating text: 503 service unavailable") {
		t.Errorf("error report should reach the revise prompt unchanged, got %q", revise)
	}

	var sawError bool
	for _, u := range f.updates {
		if u.Step == StepCritique && u.Status == StatusCompleted && u.Err != nil {
			sawError = true
		}
	}
	if !sawError {
		t.Error("expected the critique update to carry the provider error")
	}
}

func TestRunFailedOutlineBecomesDraftInput(t *testing.T) {
	f := newFixture()
	f.outline.replies = []string{"!"}

	s, err := f.workflow(Options{MaxIterations: 0}).Run(context.Background(), "concept")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(s.Outline, "Error generating text:") {
		t.Errorf("expected error report as outline, got %q", s.Outline)
	}
	if !strings.Contains(f.draft.prompts[0], s.Outline) {
		t.Error("error report should flow into the draft prompt")
	}
}

func TestRunHaltOnProviderError(t *testing.T) {
	f := newFixture()
	f.critique.replies = []string{"!"}

	_, err := f.workflow(Options{MaxIterations: 2, HaltOnProviderError: true}).Run(context.Background(), "concept")
	if !errors.Is(err, ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure, got %v", err)
	}
	if f.draft.calls() != 1 {
		t.Errorf("revise must not run after a halted critique, got %d draft calls", f.draft.calls())
	}
	last := f.updates[len(f.updates)-1]
	if last.Step != StepCritique || last.Status != StatusError {
		t.Errorf("expected final update to be the failed critique, got %+v", last)
	}
}

func TestRunTemplateErrorStopsBeforeProvider(t *testing.T) {
	f := newFixture()
	logger := quietLogger()
	w := NewWorkflow(
		agent.NewOutlineAgent(f.outline, prompt.MustTemplate(prompt.OutlineTemplate), agent.WithLogger(logger)),
		agent.NewDraftAgent(f.draft, "Draft {outline} using {feedback}", prompt.MustTemplate(prompt.ReviseTemplate), agent.WithLogger(logger)),
		agent.NewCritiqueAgent(f.critique, prompt.MustTemplate(prompt.CritiqueTemplate), agent.WithLogger(logger)),
		Options{MaxIterations: 2, Logger: logger},
	)

	_, err := w.Run(context.Background(), "concept")
	if !errors.Is(err, prompt.ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
	if f.draft.calls() != 0 || f.critique.calls() != 0 {
		t.Error("no provider call should follow a template failure")
	}
}

func TestRunCanceledContext(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.workflow(Options{MaxIterations: 2}).Run(ctx, "concept")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if f.outline.calls() != 0 {
		t.Error("no call should be made on a canceled context")
	}
}

func TestRunProgressUpdates(t *testing.T) {
	f := newFixture()
	if _, err := f.workflow(Options{MaxIterations: 1}).Run(context.Background(), "concept"); err != nil {
		t.Fatal(err)
	}

	want := []struct {
		step      Step
		iteration int
		status    string
	}{
		{StepOutline, 0, StatusStarted},
		{StepOutline, 0, StatusCompleted},
		{StepDraft, 0, StatusStarted},
		{StepDraft, 0, StatusCompleted},
		{StepCritique, 1, StatusStarted},
		{StepCritique, 1, StatusCompleted},
		{StepRevise, 1, StatusStarted},
		{StepRevise, 1, StatusCompleted},
		{StepDone, 0, StatusCompleted},
	}
	if len(f.updates) != len(want) {
		t.Fatalf("expected %d updates, got %d: %+v", len(want), len(f.updates), f.updates)
	}
	for i, w := range want {
		u := f.updates[i]
		if u.Step != w.step || u.Iteration != w.iteration || u.Status != w.status {
			t.Errorf("update %d: got %+v, want %+v", i, u, w)
		}
	}
}

func TestRunMetrics(t *testing.T) {
	f := newFixture()
	f.critique.replies = []string{"ok", "!"}
	m := telemetry.NewMetrics()

	if _, err := f.workflow(Options{MaxIterations: 2, Metrics: m}).Run(context.Background(), "concept"); err != nil {
		t.Fatal(err)
	}

	content := gather(t, m)
	for _, want := range []string{
		`storywriter_story_revisions_total 2`,
		`storywriter_story_runs_total{status="degraded"} 1`,
		`storywriter_agent_calls_total{agent="CritiqueAgent",outcome="error",provider="anthropic"} 1`,
		`storywriter_agent_calls_total{agent="DraftAgent",outcome="ok",provider="openrouter"} 3`,
	} {
		if !strings.Contains(content, want) {
			t.Errorf("metrics missing %q:\n%s", want, content)
		}
	}
	n, err := testutil.GatherAndCount(m.Registry(), "storywriter_story_runs_total")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected one run series, got %d", n)
	}
}

func gather(t *testing.T, m *telemetry.Metrics) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metrics.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatal(err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(content)
}

func TestPreview(t *testing.T) {
	short := "short draft"
	if preview(short) != short {
		t.Errorf("short text should be unchanged")
	}
	long := strings.Repeat("é", 250)
	got := preview(long)
	if got != strings.Repeat("é", 200)+"..." {
		t.Errorf("expected 200 runes plus ellipsis, got %d runes", len([]rune(got)))
	}
}

func testConfig(t *testing.T, overrides map[string]any) *config.Config {
	t.Helper()
	cfg, err := config.Load("", overrides)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestBuildMissingCredential(t *testing.T) {
	cfg := testConfig(t, nil)
	creds := config.Credentials{GoogleKey: "g", OpenRouterKey: "o"}

	_, err := Build(cfg, creds, Options{Logger: quietLogger()})
	if !errors.Is(err, provider.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}
	if !strings.Contains(err.Error(), "critique provider") {
		t.Errorf("error should name the role, got %v", err)
	}
}

func TestBuild(t *testing.T) {
	cfg := testConfig(t, map[string]any{"max_iterations": 3, "halt_on_provider_error": true})
	creds := config.Credentials{GoogleKey: "g", OpenRouterKey: "o", AnthropicKey: "a"}

	w, err := Build(cfg, creds, Options{Logger: quietLogger()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.MaxIterations() != 3 || !w.opts.HaltOnProviderError {
		t.Errorf("config not applied: %+v", w.opts)
	}
	if w.outline.Provider.Name() != provider.GoogleName {
		t.Errorf("unexpected outline provider %s", w.outline.Provider.Name())
	}
	if w.critique.Provider.Model() != "claude-3-7-sonnet-20250219" {
		t.Errorf("unexpected critique model %s", w.critique.Provider.Model())
	}
}

func TestBuildTemplateOverride(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, prompt.OutlineTemplate), []byte("Outline {concept!r}"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig(t, map[string]any{"prompts_dir": dir})
	creds := config.Credentials{GoogleKey: "g", OpenRouterKey: "o", AnthropicKey: "a"}

	_, err := Build(cfg, creds, Options{Logger: quietLogger()})
	if !errors.Is(err, prompt.ErrMalformed) {
		t.Fatalf("expected ErrMalformed for a bad override template, got %v", err)
	}
}

func TestBuildSummarizer(t *testing.T) {
	cfg := testConfig(t, map[string]any{"summary_provider": provider.OpenAIName})

	if _, err := BuildSummarizer(cfg, config.Credentials{}, Options{Logger: quietLogger()}); !errors.Is(err, provider.ErrMissingCredential) {
		t.Fatalf("expected ErrMissingCredential, got %v", err)
	}

	s, err := BuildSummarizer(cfg, config.Credentials{OpenAIKey: "k"}, Options{Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	if s.Provider.Name() != provider.OpenAIName {
		t.Errorf("unexpected provider %s", s.Provider.Name())
	}
}
