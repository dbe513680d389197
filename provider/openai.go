package provider

import (
	"context"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIName is the provider kind for the OpenAI chat completions API.
const OpenAIName = "openai"

var openAIDefaults = defaults{
	model:       "gpt-4o",
	temperature: 0.7,
	maxTokens:   25000,
	envKey:      "OPENAI_API_KEY",
}

// OpenAI generates text through the OpenAI chat completions API.
type OpenAI struct {
	base
	client openai.Client
	// headers are attached to every request.
	headers map[string]string
}

// NewOpenAI creates an OpenAI provider. It fails when s.APIKey is empty.
func NewOpenAI(s Settings) (*OpenAI, error) {
	return newChatCompletions(OpenAIName, s, openAIDefaults, nil)
}

// newChatCompletions builds a provider for any OpenAI-compatible endpoint.
func newChatCompletions(name string, s Settings, d defaults, headers map[string]string) (*OpenAI, error) {
	b, err := newBase(name, s, d)
	if err != nil {
		return nil, err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(s.APIKey),
		option.WithMaxRetries(0),
	}
	if s.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(s.BaseURL))
	}

	return &OpenAI{
		base:    b,
		client:  openai.NewClient(opts...),
		headers: headers,
	}, nil
}

// GenerateText sends the system and user messages as one chat completion.
func (o *OpenAI) GenerateText(ctx context.Context, req Request) Completion {
	start := time.Now()
	temperature, maxTokens := o.params(req)

	var opts []option.RequestOption
	for k, v := range o.headers {
		opts = append(opts, option.WithHeader(k, v))
	}

	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(int64(maxTokens)),
	}, opts...)
	if err != nil {
		return o.failed(err, start)
	}

	if len(completion.Choices) == 0 {
		return o.failed(errEmptyResponse, start)
	}

	o.logger.Debug("chat completion finished",
		"model", o.model,
		"request_id", completion.ID,
		"prompt_tokens", completion.Usage.PromptTokens,
		"completion_tokens", completion.Usage.CompletionTokens,
	)
	return o.succeeded(completion.Choices[0].Message.Content, start)
}
