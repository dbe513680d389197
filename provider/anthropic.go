package provider

import (
	"context"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicName is the provider kind for the Anthropic messages API.
const AnthropicName = "anthropic"

var anthropicDefaults = defaults{
	model:       "claude-3-7-sonnet-20250219",
	temperature: 0.3,
	maxTokens:   25000,
	envKey:      "ANTHROPIC_API_KEY",
}

// anthropicRequestTimeout bounds a single non-streaming call. The SDK refuses
// large max_tokens values without an explicit timeout.
const anthropicRequestTimeout = 10 * time.Minute

// Anthropic generates text through the Anthropic messages API.
type Anthropic struct {
	base
	client anthropic.Client
}

// NewAnthropic creates an Anthropic provider. It fails when s.APIKey is empty.
func NewAnthropic(s Settings) (*Anthropic, error) {
	b, err := newBase(AnthropicName, s, anthropicDefaults)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(b.model, "claude-") {
		b.logger.Warn("model may not be a valid Claude model name", "model", b.model)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(s.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(anthropicRequestTimeout),
	}
	if s.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(s.BaseURL))
	}

	return &Anthropic{
		base:   b,
		client: anthropic.NewClient(opts...),
	}, nil
}

// GenerateText sends the system prompt as a top-level system block and the
// user prompt as the single message, concatenating the returned text blocks.
func (a *Anthropic) GenerateText(ctx context.Context, req Request) Completion {
	start := time.Now()
	temperature, maxTokens := a.params(req)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
		Temperature: anthropic.Float(temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return a.failed(err, start)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return a.failed(errEmptyResponse, start)
	}

	a.logger.Debug("message finished",
		"model", a.model,
		"request_id", resp.ID,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return a.succeeded(out.String(), start)
}
