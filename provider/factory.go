package provider

import "fmt"

// Kinds lists the provider kinds accepted by New.
var Kinds = []string{OpenAIName, AnthropicName, GoogleName, OpenRouterName}

// New creates the provider registered under kind.
func New(kind string, s Settings) (Provider, error) {
	switch kind {
	case OpenAIName:
		return asProvider(NewOpenAI(s))
	case AnthropicName:
		return asProvider(NewAnthropic(s))
	case GoogleName:
		return asProvider(NewGoogle(s))
	case OpenRouterName:
		return asProvider(NewOpenRouter(s))
	case "":
		return nil, fmt.Errorf("%w: no provider configured", ErrUnknownProvider)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, kind)
	}
}

// asProvider keeps a failed constructor from yielding a non-nil interface
// holding a nil pointer.
func asProvider[T Provider](p T, err error) (Provider, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}

// EnvKey returns the environment variable holding the credential for kind.
func EnvKey(kind string) string {
	switch kind {
	case OpenAIName:
		return openAIDefaults.envKey
	case AnthropicName:
		return anthropicDefaults.envKey
	case GoogleName:
		return googleDefaults.envKey
	case OpenRouterName:
		return openRouterDefaults.envKey
	}
	return ""
}

// DefaultModel returns the model used by kind when none is configured.
func DefaultModel(kind string) string {
	switch kind {
	case OpenAIName:
		return openAIDefaults.model
	case AnthropicName:
		return anthropicDefaults.model
	case GoogleName:
		return googleDefaults.model
	case OpenRouterName:
		return openRouterDefaults.model
	}
	return ""
}
