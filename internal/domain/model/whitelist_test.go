package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float64Ptr(v float64) *float64 { return &v }
func intPtr(v int) *int             { return &v }

func validSpec() GenerationSpec {
	return GenerationSpec{
		Provider:   ProviderOpenAI,
		Model:      "gpt-4",
		UserPrompt: "Generate a hero block",
	}
}

func TestWhitelist_ValidateSpec(t *testing.T) {
	wl := DefaultWhitelist()

	tests := []struct {
		name    string
		mutate  func(*GenerationSpec)
		wantErr string
	}{
		{name: "minimal valid spec", mutate: func(*GenerationSpec) {}},
		{
			name:    "unknown provider",
			mutate:  func(s *GenerationSpec) { s.Provider = "mistral" },
			wantErr: "invalid provider",
		},
		{
			name:    "model not whitelisted",
			mutate:  func(s *GenerationSpec) { s.Model = "not-a-real-model" },
			wantErr: "not allowed",
		},
		{
			name:    "model from another provider",
			mutate:  func(s *GenerationSpec) { s.Model = "claude-3-opus" },
			wantErr: "not allowed",
		},
		{
			name:    "missing user prompt",
			mutate:  func(s *GenerationSpec) { s.UserPrompt = "" },
			wantErr: "userPrompt is required",
		},
		{
			name:   "temperature at upper bound",
			mutate: func(s *GenerationSpec) { s.Temperature = float64Ptr(2) },
		},
		{
			name:    "temperature above bound",
			mutate:  func(s *GenerationSpec) { s.Temperature = float64Ptr(2.1) },
			wantErr: "temperature",
		},
		{
			name:    "negative temperature",
			mutate:  func(s *GenerationSpec) { s.Temperature = float64Ptr(-0.1) },
			wantErr: "temperature",
		},
		{
			name:    "zero max tokens",
			mutate:  func(s *GenerationSpec) { s.MaxTokens = intPtr(0) },
			wantErr: "maxTokens",
		},
		{
			name:    "topP above one",
			mutate:  func(s *GenerationSpec) { s.TopP = float64Ptr(1.5) },
			wantErr: "topP",
		},
		{
			name:    "topK above bound",
			mutate:  func(s *GenerationSpec) { s.TopK = intPtr(101) },
			wantErr: "topK",
		},
		{
			name:   "all params at valid bounds",
			mutate: func(s *GenerationSpec) { s.Temperature = float64Ptr(0); s.MaxTokens = intPtr(1); s.TopP = float64Ptr(1); s.TopK = intPtr(100) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validSpec()
			tt.mutate(&spec)
			err := wl.ValidateSpec(spec)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestWhitelist_ModelsFor_Sorted(t *testing.T) {
	wl := DefaultWhitelist()
	models := wl.ModelsFor(ProviderClaude)
	require.NotEmpty(t, models)
	for i := 1; i < len(models); i++ {
		assert.LessOrEqual(t, models[i-1], models[i])
	}
}

func TestWhitelist_Providers(t *testing.T) {
	wl := DefaultWhitelist()
	assert.Equal(t, []Provider{ProviderClaude, ProviderGemini, ProviderOpenAI}, wl.Providers())
}
