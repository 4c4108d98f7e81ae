package provider

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/o4o-platform/ai-gateway/internal/domain/model"
)

const defaultOpenAIBaseURL = "https://api.openai.com"

// OpenAIOptions configures the OpenAI chat completions client.
type OpenAIOptions struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// OpenAIClient calls the OpenAI chat completions API.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	extractor  *resultExtractor
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
}

// NewOpenAIClient builds the client. The base URL is overridable for tests.
func NewOpenAIClient(opts OpenAIOptions) *OpenAIClient {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIClient{
		apiKey:     opts.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(opts.Timeout),
		extractor: mustNewResultExtractor(model.ProviderOpenAI, resultPaths{
			Text:             "choices[0].message.content",
			PromptTokens:     "usage.prompt_tokens",
			CompletionTokens: "usage.completion_tokens",
			TotalTokens:      "usage.total_tokens",
		}),
	}
}

func (c *OpenAIClient) Provider() model.Provider { return model.ProviderOpenAI }

// Generate sends the chat completions request. The chat API has no top_k
// parameter, so the spec's topK is ignored here.
func (c *OpenAIClient) Generate(ctx context.Context, spec model.GenerationSpec) (*model.GenerationResult, error) {
	messages := make([]openAIMessage, 0, 2)
	if spec.SystemPrompt != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: spec.SystemPrompt})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: spec.UserPrompt})

	_, body, err := doJSON(ctx, c.httpClient, model.ProviderOpenAI, jsonRequest{
		Method: http.MethodPost,
		URL:    c.baseURL + "/v1/chat/completions",
		Headers: map[string]string{
			"Authorization": "Bearer " + c.apiKey,
		},
		Body: openAIRequest{
			Model:       spec.Model,
			Messages:    messages,
			Temperature: spec.Temperature,
			MaxTokens:   spec.MaxTokens,
			TopP:        spec.TopP,
		},
	})
	if err != nil {
		return nil, err
	}
	return c.extractor.Extract(body)
}
