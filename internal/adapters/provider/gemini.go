package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/o4o-platform/ai-gateway/internal/domain/model"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiOptions configures the Google Gemini client.
type GeminiOptions struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// GeminiClient calls the Gemini generateContent API.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	extractor  *resultExtractor
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

// NewGeminiClient builds the client. The base URL is overridable for tests.
func NewGeminiClient(opts GeminiOptions) *GeminiClient {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &GeminiClient{
		apiKey:     opts.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(opts.Timeout),
		extractor: mustNewResultExtractor(model.ProviderGemini, resultPaths{
			Text:             "candidates[0].content.parts[0].text",
			PromptTokens:     "usageMetadata.promptTokenCount",
			CompletionTokens: "usageMetadata.candidatesTokenCount",
			TotalTokens:      "usageMetadata.totalTokenCount",
		}),
	}
}

func (c *GeminiClient) Provider() model.Provider { return model.ProviderGemini }

// Generate sends the generateContent request. The API key travels as a query
// parameter rather than a header.
func (c *GeminiClient) Generate(ctx context.Context, spec model.GenerationSpec) (*model.GenerationResult, error) {
	req := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: spec.UserPrompt}}},
		},
	}
	if spec.SystemPrompt != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: spec.SystemPrompt}}}
	}
	if spec.Temperature != nil || spec.MaxTokens != nil || spec.TopP != nil || spec.TopK != nil {
		req.GenerationConfig = &geminiGenerationConfig{
			Temperature:     spec.Temperature,
			MaxOutputTokens: spec.MaxTokens,
			TopP:            spec.TopP,
			TopK:            spec.TopK,
		}
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(spec.Model), url.QueryEscape(c.apiKey))

	_, body, err := doJSON(ctx, c.httpClient, model.ProviderGemini, jsonRequest{
		Method: http.MethodPost,
		URL:    endpoint,
		Body:   req,
	})
	if err != nil {
		return nil, err
	}
	return c.extractor.Extract(body)
}
