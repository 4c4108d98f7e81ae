package provider

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/o4o-platform/ai-gateway/internal/domain/model"
)

const (
	defaultClaudeBaseURL = "https://api.anthropic.com"
	claudeAPIVersion     = "2023-06-01"

	// claudeDefaultMaxTokens fills the required max_tokens field when the
	// spec leaves it unset.
	claudeDefaultMaxTokens = 1024
)

// ClaudeOptions configures the Anthropic messages client.
type ClaudeOptions struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// ClaudeClient calls the Anthropic messages API.
type ClaudeClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	extractor  *resultExtractor
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	TopK        *int            `json:"top_k,omitempty"`
}

// NewClaudeClient builds the client. The base URL is overridable for tests.
func NewClaudeClient(opts ClaudeOptions) *ClaudeClient {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultClaudeBaseURL
	}
	return &ClaudeClient{
		apiKey:     opts.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(opts.Timeout),
		extractor: mustNewResultExtractor(model.ProviderClaude, resultPaths{
			Text:             "content[0].text",
			PromptTokens:     "usage.input_tokens",
			CompletionTokens: "usage.output_tokens",
		}),
	}
}

func (c *ClaudeClient) Provider() model.Provider { return model.ProviderClaude }

// Generate sends the messages request. max_tokens is mandatory upstream, so
// an unset spec value falls back to claudeDefaultMaxTokens.
func (c *ClaudeClient) Generate(ctx context.Context, spec model.GenerationSpec) (*model.GenerationResult, error) {
	maxTokens := claudeDefaultMaxTokens
	if spec.MaxTokens != nil {
		maxTokens = *spec.MaxTokens
	}

	_, body, err := doJSON(ctx, c.httpClient, model.ProviderClaude, jsonRequest{
		Method: http.MethodPost,
		URL:    c.baseURL + "/v1/messages",
		Headers: map[string]string{
			"x-api-key":         c.apiKey,
			"anthropic-version": claudeAPIVersion,
		},
		Body: claudeRequest{
			Model:     spec.Model,
			MaxTokens: maxTokens,
			System:    spec.SystemPrompt,
			Messages: []claudeMessage{
				{Role: "user", Content: spec.UserPrompt},
			},
			Temperature: spec.Temperature,
			TopP:        spec.TopP,
			TopK:        spec.TopK,
		},
	})
	if err != nil {
		return nil, err
	}
	return c.extractor.Extract(body)
}
