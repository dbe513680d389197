package provider

// OpenRouterName is the provider kind for the OpenRouter gateway.
const OpenRouterName = "openrouter"

// OpenRouterBaseURL is the OpenAI-compatible OpenRouter endpoint.
const OpenRouterBaseURL = "https://openrouter.ai/api/v1/"

var openRouterDefaults = defaults{
	model:       "openai/gpt-4o",
	temperature: 0.5,
	maxTokens:   250000,
	envKey:      "OPENROUTER_API_KEY",
}

// NewOpenRouter creates a provider that routes chat completions through
// OpenRouter. SiteURL and SiteName, when set, are sent as the HTTP-Referer
// and X-Title attribution headers.
func NewOpenRouter(s Settings) (*OpenAI, error) {
	if s.BaseURL == "" {
		s.BaseURL = OpenRouterBaseURL
	}

	headers := make(map[string]string)
	if s.SiteURL != "" {
		headers["HTTP-Referer"] = s.SiteURL
	}
	if s.SiteName != "" {
		headers["X-Title"] = s.SiteName
	}

	return newChatCompletions(OpenRouterName, s, openRouterDefaults, headers)
}
