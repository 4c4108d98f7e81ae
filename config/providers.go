package config

import "time"

// ProviderConfig contains credentials and endpoint settings for one upstream
// LLM provider. An empty APIKey disables the provider at startup.
type ProviderConfig struct {
	APIKey  string `env:"API_KEY"`
	BaseURL string `env:"BASE_URL"`
}

// IsConfigured reports whether the provider has credentials.
func (p *ProviderConfig) IsConfigured() bool {
	return p.APIKey != ""
}

// ProvidersConfig groups upstream provider configuration.
type ProvidersConfig struct {
	OpenAI ProviderConfig `envPrefix:"OPENAI_"`
	Gemini ProviderConfig `envPrefix:"GEMINI_"`
	Claude ProviderConfig `envPrefix:"CLAUDE_"`

	// CallTimeout bounds every upstream generation call.
	CallTimeout time.Duration `env:"PROVIDER_CALL_TIMEOUT" envDefault:"15s"`
}

// Sanitize applies guardrails to provider configuration values.
func (p *ProvidersConfig) Sanitize() {
	if p.CallTimeout < time.Second {
		p.CallTimeout = time.Second
	}
}

// AnyConfigured reports whether at least one provider has credentials.
func (p *ProvidersConfig) AnyConfigured() bool {
	return p.OpenAI.IsConfigured() || p.Gemini.IsConfigured() || p.Claude.IsConfigured()
}
