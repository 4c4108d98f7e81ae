package model

import (
	"fmt"
	"sort"
)

// ParameterBounds define the accepted ranges for optional sampling parameters.
// They apply uniformly across providers.
type ParameterBounds struct {
	TemperatureMin float64 `json:"temperatureMin"`
	TemperatureMax float64 `json:"temperatureMax"`
	MaxTokensMin   int     `json:"maxTokensMin"`
	TopPMin        float64 `json:"topPMin"`
	TopPMax        float64 `json:"topPMax"`
	TopKMin        int     `json:"topKMin"`
	TopKMax        int     `json:"topKMax"`
}

// DefaultParameterBounds returns the platform-wide sampling parameter limits.
func DefaultParameterBounds() ParameterBounds {
	return ParameterBounds{
		TemperatureMin: 0,
		TemperatureMax: 2,
		MaxTokensMin:   1,
		TopPMin:        0,
		TopPMax:        1,
		TopKMin:        1,
		TopKMax:        100,
	}
}

// Whitelist is the allowed provider/model set plus parameter bounds, enforced
// at submission and again inside the provider adapter.
type Whitelist struct {
	Models map[Provider][]string
	Bounds ParameterBounds
}

// DefaultWhitelist returns the built-in provider/model allowlist.
func DefaultWhitelist() Whitelist {
	return Whitelist{
		Models: map[Provider][]string{
			ProviderOpenAI: {"gpt-4", "gpt-4-turbo", "gpt-4o", "gpt-4o-mini", "gpt-3.5-turbo"},
			ProviderGemini: {"gemini-1.5-pro", "gemini-1.5-flash", "gemini-2.0-flash"},
			ProviderClaude: {"claude-3-opus", "claude-3-5-sonnet", "claude-3-haiku"},
		},
		Bounds: DefaultParameterBounds(),
	}
}

// AllowsModel reports whether the model is whitelisted for the provider.
func (w Whitelist) AllowsModel(p Provider, mdl string) bool {
	for _, m := range w.Models[p] {
		if m == mdl {
			return true
		}
	}
	return false
}

// ModelsFor returns a sorted copy of the allowed models for a provider.
func (w Whitelist) ModelsFor(p Provider) []string {
	out := append([]string(nil), w.Models[p]...)
	sort.Strings(out)
	return out
}

// Providers returns the sorted providers that have at least one allowed model.
func (w Whitelist) Providers() []Provider {
	out := make([]Provider, 0, len(w.Models))
	for p := range w.Models {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ValidateSpec checks a generation spec against the whitelist and parameter
// bounds. It returns a descriptive error for the first violation found.
func (w Whitelist) ValidateSpec(spec GenerationSpec) error {
	if !spec.Provider.Valid() {
		return fmt.Errorf("invalid provider: %q", string(spec.Provider))
	}
	if spec.UserPrompt == "" {
		return fmt.Errorf("userPrompt is required")
	}
	if spec.Model == "" {
		return fmt.Errorf("model is required")
	}
	if !w.AllowsModel(spec.Provider, spec.Model) {
		return fmt.Errorf("model %q is not allowed for provider %q", spec.Model, spec.Provider)
	}

	b := w.Bounds
	if spec.Temperature != nil && (*spec.Temperature < b.TemperatureMin || *spec.Temperature > b.TemperatureMax) {
		return fmt.Errorf("temperature must be between %g and %g", b.TemperatureMin, b.TemperatureMax)
	}
	if spec.MaxTokens != nil && *spec.MaxTokens < b.MaxTokensMin {
		return fmt.Errorf("maxTokens must be at least %d", b.MaxTokensMin)
	}
	if spec.TopP != nil && (*spec.TopP < b.TopPMin || *spec.TopP > b.TopPMax) {
		return fmt.Errorf("topP must be between %g and %g", b.TopPMin, b.TopPMax)
	}
	if spec.TopK != nil && (*spec.TopK < b.TopKMin || *spec.TopK > b.TopKMax) {
		return fmt.Errorf("topK must be between %d and %d", b.TopKMin, b.TopKMax)
	}
	return nil
}
