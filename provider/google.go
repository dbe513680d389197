package provider

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// GoogleName is the provider kind for the Gemini API.
const GoogleName = "google"

var googleDefaults = defaults{
	model:       "gemini-2.5-pro-preview-03-25",
	temperature: 0.5,
	maxTokens:   25000,
	envKey:      "GOOGLE_API_KEY",
}

const (
	googleTopP = 0.95
	googleTopK = 40
)

// Google generates text through the Gemini GenerateContent API.
type Google struct {
	base
	client *genai.Client
}

// NewGoogle creates a Gemini provider. It fails when s.APIKey is empty.
func NewGoogle(s Settings) (*Google, error) {
	b, err := newBase(GoogleName, s, googleDefaults)
	if err != nil {
		return nil, err
	}

	cfg := &genai.ClientConfig{
		APIKey:  s.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if s.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: s.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: create client: %w", GoogleName, err)
	}

	return &Google{
		base:   b,
		client: client,
	}, nil
}

// GenerateText sends the system prompt as the system instruction and the user
// prompt as a single user turn.
func (g *Google) GenerateText(ctx context.Context, req Request) Completion {
	start := time.Now()
	temperature, maxTokens := g.params(req)

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temperature)),
		MaxOutputTokens: int32(maxTokens),
		TopP:            genai.Ptr(float32(googleTopP)),
		TopK:            genai.Ptr(float32(googleTopK)),
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}

	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: req.User}},
	}}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return g.failed(err, start)
	}

	text := resp.Text()
	if text == "" {
		return g.failed(errEmptyResponse, start)
	}
	return g.succeeded(text, start)
}
