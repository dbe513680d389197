// Package provider exposes a uniform text-generation interface over several
// LLM vendor APIs.
//
// A provider never returns a Go error from GenerateText. Transport and API
// failures are logged and reported as a Completion whose Text begins with
// ErrorPrefix, so downstream prompts keep flowing; Completion.Failed tells the
// two cases apart.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// ErrorPrefix starts the text of every failed completion.
const ErrorPrefix = "Error generating text: "

var (
	// ErrMissingCredential is returned at construction when no API key is set.
	ErrMissingCredential = errors.New("missing API credential")
	// ErrUnknownProvider is returned for an unrecognised provider kind.
	ErrUnknownProvider = errors.New("unknown provider")
	// errEmptyResponse marks a successful call that carried no text.
	errEmptyResponse = errors.New("empty response")
)

// Provider generates text from a system instruction and a user message.
type Provider interface {
	Name() string
	Model() string
	GenerateText(ctx context.Context, req Request) Completion
}

// Request carries one generation call. A nil Temperature or zero MaxTokens
// selects the provider's default.
type Request struct {
	System      string
	User        string
	Temperature *float64
	MaxTokens   int
}

// Completion is the outcome of a generation call.
type Completion struct {
	Text     string
	Err      error
	Provider string
	Model    string
	Duration time.Duration
}

// Failed reports whether Text is an error report rather than model output.
func (c Completion) Failed() bool {
	return c.Err != nil
}

func (c Completion) String() string {
	return c.Text
}

// Temperature returns a pointer to t for use in Request.
func Temperature(t float64) *float64 {
	return &t
}

// Settings configures a provider at construction.
type Settings struct {
	Model   string
	APIKey  string
	BaseURL string

	// Attribution headers, honoured by OpenRouter only.
	SiteURL  string
	SiteName string

	// Defaults applied when a Request leaves them unset. Zero values select
	// the vendor defaults.
	Temperature *float64
	MaxTokens   int

	Logger *log.Logger
}

// defaults holds the per-vendor generation parameters.
type defaults struct {
	model       string
	temperature float64
	maxTokens   int
	envKey      string
}

// base carries the state shared by all vendor implementations.
type base struct {
	name        string
	model       string
	temperature float64
	maxTokens   int
	logger      *log.Logger
}

func newBase(name string, s Settings, d defaults) (base, error) {
	if s.APIKey == "" {
		return base{}, fmt.Errorf("%s: %w: %s not set", name, ErrMissingCredential, d.envKey)
	}
	b := base{
		name:        name,
		model:       s.Model,
		temperature: d.temperature,
		maxTokens:   d.maxTokens,
		logger:      s.Logger,
	}
	if b.model == "" {
		b.model = d.model
	}
	if s.Temperature != nil {
		b.temperature = *s.Temperature
	}
	if s.MaxTokens > 0 {
		b.maxTokens = s.MaxTokens
	}
	if b.logger == nil {
		b.logger = log.Default()
	}
	b.logger = b.logger.With("provider", name)
	return b, nil
}

func (b base) Name() string  { return b.name }
func (b base) Model() string { return b.model }

// params resolves the effective temperature and token limit for req.
func (b base) params(req Request) (float64, int) {
	temperature := b.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := b.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	return temperature, maxTokens
}

func (b base) succeeded(text string, start time.Time) Completion {
	return Completion{
		Text:     text,
		Provider: b.name,
		Model:    b.model,
		Duration: time.Since(start),
	}
}

func (b base) failed(err error, start time.Time) Completion {
	duration := time.Since(start)
	b.logger.Error("error generating text",
		"model", b.model,
		"error", err,
		"duration", duration,
	)
	return Completion{
		Text:     ErrorPrefix + err.Error(),
		Err:      err,
		Provider: b.name,
		Model:    b.model,
		Duration: duration,
	}
}
