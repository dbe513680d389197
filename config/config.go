// Package config loads the storywriter configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// STORYWRITER_* environment variables, then explicit overrides (CLI flags).
// API credentials are read separately from the plain provider variables,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"agentic-storywriter/provider"
)

// DefaultFile is the config file looked up in the working directory when no
// explicit path is given.
const DefaultFile = "storywriter"

// EnvPrefix prefixes every configuration environment variable.
const EnvPrefix = "STORYWRITER"

// Role names.
const (
	RoleOutline  = "outline"
	RoleDraft    = "draft"
	RoleCritique = "critique"
	RoleSummary  = "summary"
)

// Roles lists every role in pipeline order, followed by summary.
var Roles = []string{RoleOutline, RoleDraft, RoleCritique, RoleSummary}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the effective configuration.
type Config struct {
	OutlineProvider     string   `mapstructure:"outline_provider"`
	OutlineModel        string   `mapstructure:"outline_model"`
	OutlineTemperature  *float64 `mapstructure:"outline_temperature"`
	OutlineMaxTokens    int      `mapstructure:"outline_max_tokens"`
	DraftProvider       string   `mapstructure:"draft_provider"`
	DraftModel          string   `mapstructure:"draft_model"`
	DraftTemperature    *float64 `mapstructure:"draft_temperature"`
	DraftMaxTokens      int      `mapstructure:"draft_max_tokens"`
	CritiqueProvider    string   `mapstructure:"critique_provider"`
	CritiqueModel       string   `mapstructure:"critique_model"`
	CritiqueTemperature *float64 `mapstructure:"critique_temperature"`
	CritiqueMaxTokens   int      `mapstructure:"critique_max_tokens"`
	SummaryProvider     string   `mapstructure:"summary_provider"`
	SummaryModel        string   `mapstructure:"summary_model"`
	SummaryTemperature  *float64 `mapstructure:"summary_temperature"`
	SummaryMaxTokens    int      `mapstructure:"summary_max_tokens"`

	MaxIterations       int  `mapstructure:"max_iterations"`
	HaltOnProviderError bool `mapstructure:"halt_on_provider_error"`

	PromptsDir  string `mapstructure:"prompts_dir"`
	ConceptsDir string `mapstructure:"concepts_dir"`

	LogLevel    string        `mapstructure:"log_level"`
	MetricsFile string        `mapstructure:"metrics_file"`
	Tracing     TracingConfig `mapstructure:"tracing"`
}

// TracingConfig controls OTLP trace export.
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Endpoint   string  `mapstructure:"endpoint"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

// Role is the provider selection and generation overrides for one agent.
type Role struct {
	Provider    string
	Model       string
	Temperature *float64
	MaxTokens   int
}

// keys lists every configuration key so that environment variables are
// honoured even for keys without a default.
var keys = []string{
	"outline_provider", "outline_model", "outline_temperature", "outline_max_tokens",
	"draft_provider", "draft_model", "draft_temperature", "draft_max_tokens",
	"critique_provider", "critique_model", "critique_temperature", "critique_max_tokens",
	"summary_provider", "summary_model", "summary_temperature", "summary_max_tokens",
	"max_iterations", "halt_on_provider_error",
	"prompts_dir", "concepts_dir",
	"log_level", "metrics_file",
	"tracing.enabled", "tracing.endpoint", "tracing.sample_rate",
}

// Load builds the configuration. path names a YAML file; when empty,
// storywriter.yaml in the working directory is used if present. overrides
// take precedence over every other source.
func Load(path string, overrides map[string]any) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(DefaultFile)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	for key, value := range overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("outline_provider", provider.GoogleName)
	v.SetDefault("draft_provider", provider.OpenRouterName)
	v.SetDefault("critique_provider", provider.AnthropicName)
	v.SetDefault("summary_provider", provider.OpenRouterName)

	v.SetDefault("max_iterations", 2)
	v.SetDefault("halt_on_provider_error", false)

	v.SetDefault("log_level", "info")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("tracing.sample_rate", 1.0)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.MaxIterations < 0 {
		return fmt.Errorf("%w: max_iterations must not be negative, got %d", ErrInvalid, c.MaxIterations)
	}
	for _, name := range Roles {
		r := c.Role(name)
		if !knownProvider(r.Provider) {
			return fmt.Errorf("%w: %s_provider %q is not one of %s", ErrInvalid, name, r.Provider, strings.Join(provider.Kinds, ", "))
		}
		if r.MaxTokens < 0 {
			return fmt.Errorf("%w: %s_max_tokens must not be negative", ErrInvalid, name)
		}
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %v", ErrInvalid, err)
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("%w: tracing.sample_rate must be between 0 and 1", ErrInvalid)
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("%w: tracing.endpoint is required when tracing is enabled", ErrInvalid)
	}
	return nil
}

// Role returns the settings for the named role. Unknown names yield a zero
// Role.
func (c *Config) Role(name string) Role {
	switch name {
	case RoleOutline:
		return Role{c.OutlineProvider, c.OutlineModel, c.OutlineTemperature, c.OutlineMaxTokens}
	case RoleDraft:
		return Role{c.DraftProvider, c.DraftModel, c.DraftTemperature, c.DraftMaxTokens}
	case RoleCritique:
		return Role{c.CritiqueProvider, c.CritiqueModel, c.CritiqueTemperature, c.CritiqueMaxTokens}
	case RoleSummary:
		return Role{c.SummaryProvider, c.SummaryModel, c.SummaryTemperature, c.SummaryMaxTokens}
	}
	return Role{}
}

// EffectiveModel returns the configured model, or the provider default.
func (r Role) EffectiveModel() string {
	if r.Model != "" {
		return r.Model
	}
	return provider.DefaultModel(r.Provider)
}

func knownProvider(kind string) bool {
	for _, k := range provider.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Credentials holds the vendor API keys and OpenRouter attribution.
type Credentials struct {
	OpenAIKey     string
	AnthropicKey  string
	GoogleKey     string
	OpenRouterKey string
	SiteURL       string
	SiteName      string
}

// LoadDotEnv loads KEY=value pairs from the given files (default .env) into
// the environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// LoadCredentials reads credentials from the process environment.
func LoadCredentials() Credentials {
	return Credentials{
		OpenAIKey:     os.Getenv(provider.EnvKey(provider.OpenAIName)),
		AnthropicKey:  os.Getenv(provider.EnvKey(provider.AnthropicName)),
		GoogleKey:     os.Getenv(provider.EnvKey(provider.GoogleName)),
		OpenRouterKey: os.Getenv(provider.EnvKey(provider.OpenRouterName)),
		SiteURL:       os.Getenv("SITE_URL"),
		SiteName:      os.Getenv("SITE_NAME"),
	}
}

// APIKey returns the key for the given provider kind.
func (c Credentials) APIKey(kind string) string {
	switch kind {
	case provider.OpenAIName:
		return c.OpenAIKey
	case provider.AnthropicName:
		return c.AnthropicKey
	case provider.GoogleName:
		return c.GoogleKey
	case provider.OpenRouterName:
		return c.OpenRouterKey
	}
	return ""
}

// Settings returns provider settings for role r, using c for the credential.
func (c Credentials) Settings(r Role, logger *log.Logger) provider.Settings {
	return provider.Settings{
		Model:       r.Model,
		APIKey:      c.APIKey(r.Provider),
		SiteURL:     c.SiteURL,
		SiteName:    c.SiteName,
		Temperature: r.Temperature,
		MaxTokens:   r.MaxTokens,
		Logger:      logger,
	}
}

// Mask hides all but the edges of a secret.
func Mask(secret string) string {
	switch {
	case secret == "":
		return "(not set)"
	case len(secret) <= 8:
		return "****"
	default:
		return secret[:3] + "..." + secret[len(secret)-4:]
	}
}
