// Package story runs the outline, draft and critique/revise pipeline that
// turns a concept into a finished story.
package story

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"agentic-storywriter/agent"
	"agentic-storywriter/provider"
	"agentic-storywriter/telemetry"
)

var (
	// ErrEmptyConcept is returned when the concept is blank.
	ErrEmptyConcept = errors.New("story concept is empty")
	// ErrProviderFailure is returned when a provider reports an error and the
	// workflow is configured to halt on it.
	ErrProviderFailure = errors.New("provider failure")
)

// Step identifies a stage of the pipeline.
type Step string

const (
	StepOutline  Step = "outline"
	StepDraft    Step = "draft"
	StepCritique Step = "critique"
	StepRevise   Step = "revise"
	StepDone     Step = "done"
)

// Progress statuses.
const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusError     = "error"
)

// previewLength is how much of each revised draft is logged.
const previewLength = 200

// ProgressUpdate represents a status change in a running workflow.
// Iteration is 1-based for critique and revise steps and 0 otherwise.
type ProgressUpdate struct {
	Step      Step
	Iteration int
	Status    string
	Message   string
	Err       error
}

// Story is the result of a workflow run.
type Story struct {
	RunID      string
	Concept    string
	Outline    string
	Text       string
	Iterations int

	// Degraded is set when any completion in the run was an error report
	// rather than model output.
	Degraded bool
}

// Options configures a Workflow.
type Options struct {
	MaxIterations       int
	HaltOnProviderError bool

	Logger    *log.Logger
	Observers []agent.Observer
	Metrics   *telemetry.Metrics

	// Progress, when set, receives every update. It is called synchronously
	// and must not block.
	Progress func(ProgressUpdate)
}

// Workflow chains the role agents. Each Run is independent; a Workflow holds
// no per-run state.
type Workflow struct {
	outline  *agent.OutlineAgent
	draft    *agent.DraftAgent
	critique *agent.CritiqueAgent
	opts     Options
	logger   *log.Logger
}

// NewWorkflow creates a workflow from ready-made agents.
func NewWorkflow(outline *agent.OutlineAgent, draft *agent.DraftAgent, critique *agent.CritiqueAgent, opts Options) *Workflow {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Workflow{
		outline:  outline,
		draft:    draft,
		critique: critique,
		opts:     opts,
		logger:   logger,
	}
}

// MaxIterations returns the number of critique/revise rounds per run.
func (w *Workflow) MaxIterations() int {
	return w.opts.MaxIterations
}

// run carries the state of one Run call.
type run struct {
	*Workflow
	story  *Story
	logger *log.Logger
}

// Run generates a story for concept. The revision loop always runs
// MaxIterations times; feedback content never ends it early.
func (w *Workflow) Run(ctx context.Context, concept string) (*Story, error) {
	concept = strings.TrimSpace(concept)
	if concept == "" {
		return nil, ErrEmptyConcept
	}

	r := &run{
		Workflow: w,
		story: &Story{
			RunID:   uuid.NewString(),
			Concept: concept,
		},
	}
	r.logger = w.logger.With("run_id", r.story.RunID)

	ctx, span := telemetry.Start(ctx, "story.run", trace.WithAttributes(
		attribute.String("story.run_id", r.story.RunID),
		attribute.Int("story.max_iterations", w.opts.MaxIterations),
	))
	defer span.End()

	start := time.Now()
	story, err := r.execute(ctx)
	r.finish(span, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return story, nil
}

func (r *run) execute(ctx context.Context) (*Story, error) {
	r.logger.Info("starting story run", "concept", r.story.Concept, "iterations", r.opts.MaxIterations)

	outline, err := r.step(ctx, StepOutline, 0, func(ctx context.Context) (provider.Completion, error) {
		return r.outline.Generate(ctx, r.story.Concept)
	})
	if err != nil {
		return nil, err
	}
	r.story.Outline = outline

	draft, err := r.step(ctx, StepDraft, 0, func(ctx context.Context) (provider.Completion, error) {
		return r.draft.Write(ctx, agent.WriteRequest{Outline: outline})
	})
	if err != nil {
		return nil, err
	}

	for i := 1; i <= r.opts.MaxIterations; i++ {
		feedback, err := r.step(ctx, StepCritique, i, func(ctx context.Context) (provider.Completion, error) {
			return r.critique.Critique(ctx, outline, draft)
		})
		if err != nil {
			return nil, err
		}
		r.logger.Info(fmt.Sprintf("Iteration %d feedback", i), "feedback", feedback)

		current := draft
		draft, err = r.step(ctx, StepRevise, i, func(ctx context.Context) (provider.Completion, error) {
			return r.draft.Revise(ctx, agent.ReviseRequest{
				Outline:  outline,
				Draft:    current,
				Feedback: feedback,
			})
		})
		if err != nil {
			return nil, err
		}
		r.logger.Info(fmt.Sprintf("Iteration %d revised draft", i), "preview", preview(draft))

		r.story.Iterations = i
		if r.opts.Metrics != nil {
			r.opts.Metrics.ObserveRevision()
		}
	}

	r.story.Text = draft
	r.progress(ProgressUpdate{Step: StepDone, Status: StatusCompleted, Message: "Story complete"})
	return r.story, nil
}

// step runs one agent call inside its own span and reports progress around it.
func (r *run) step(ctx context.Context, step Step, iteration int, call func(context.Context) (provider.Completion, error)) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ctx, span := telemetry.Start(ctx, "story."+string(step), trace.WithAttributes(
		attribute.Int("story.iteration", iteration),
	))
	defer span.End()

	r.progress(ProgressUpdate{Step: step, Iteration: iteration, Status: StatusStarted, Message: describe(step, iteration)})

	c, err := call(ctx)
	if err != nil {
		err = fmt.Errorf("%s: %w", step, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.progress(ProgressUpdate{Step: step, Iteration: iteration, Status: StatusError, Err: err})
		return "", err
	}
	span.SetAttributes(
		attribute.String("llm.provider", c.Provider),
		attribute.String("llm.model", c.Model),
	)

	if c.Failed() {
		r.story.Degraded = true
		span.RecordError(c.Err)
		span.SetStatus(codes.Error, c.Err.Error())
		if r.opts.HaltOnProviderError {
			err := fmt.Errorf("%s: %w: %w", step, ErrProviderFailure, c.Err)
			r.progress(ProgressUpdate{Step: step, Iteration: iteration, Status: StatusError, Err: err})
			return "", err
		}
		r.logger.Warn("provider returned an error report, continuing with it as content",
			"step", step,
			"iteration", iteration,
			"provider", c.Provider,
			"error", c.Err,
		)
	}

	r.progress(ProgressUpdate{Step: step, Iteration: iteration, Status: StatusCompleted, Message: describe(step, iteration), Err: c.Err})
	return c.Text, nil
}

func (r *run) finish(span trace.Span, elapsed time.Duration, err error) {
	status := telemetry.RunCompleted
	switch {
	case err != nil:
		status = telemetry.RunFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Error("story run failed", "error", err, "duration", elapsed)
	case r.story.Degraded:
		status = telemetry.RunDegraded
		r.logger.Warn("story run finished with provider errors", "duration", elapsed)
	default:
		r.logger.Info("story run finished", "duration", elapsed, "chars", len(r.story.Text))
	}
	if r.opts.Metrics != nil {
		r.opts.Metrics.ObserveRun(status, elapsed)
	}
}

func (r *run) progress(u ProgressUpdate) {
	if r.opts.Progress != nil {
		r.opts.Progress(u)
	}
}

func describe(step Step, iteration int) string {
	switch step {
	case StepOutline:
		return "Outlining the story"
	case StepDraft:
		return "Writing the first draft"
	case StepCritique:
		return fmt.Sprintf("Critiquing draft (iteration %d)", iteration)
	case StepRevise:
		return fmt.Sprintf("Revising draft (iteration %d)", iteration)
	}
	return string(step)
}

// preview returns the first previewLength characters of s.
func preview(s string) string {
	if utf8.RuneCountInString(s) <= previewLength {
		return s
	}
	return string([]rune(s)[:previewLength]) + "..."
}
