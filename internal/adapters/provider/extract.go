package provider

import (
	"encoding/json"
	"fmt"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/o4o-platform/ai-gateway/internal/domain/model"
	apperrors "github.com/o4o-platform/ai-gateway/internal/errors"
)

// resultPaths holds the per-provider JMESPath expressions used to pull the
// generated text and token usage out of a raw response body.
type resultPaths struct {
	Text             string
	PromptTokens     string
	CompletionTokens string
	TotalTokens      string
}

// resultExtractor evaluates precompiled JMESPath expressions against decoded
// provider responses. Expressions are compiled once at client construction.
type resultExtractor struct {
	provider         model.Provider
	text             jmespath.JMESPath
	promptTokens     jmespath.JMESPath
	completionTokens jmespath.JMESPath
	totalTokens      jmespath.JMESPath
}

func newResultExtractor(p model.Provider, paths resultPaths) (*resultExtractor, error) {
	compile := func(expr string) (jmespath.JMESPath, error) {
		if expr == "" {
			return nil, nil
		}
		compiled, err := jmespath.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compile %s expression %q: %w", p, expr, err)
		}
		return compiled, nil
	}

	text, err := compile(paths.Text)
	if err != nil {
		return nil, err
	}
	prompt, err := compile(paths.PromptTokens)
	if err != nil {
		return nil, err
	}
	completion, err := compile(paths.CompletionTokens)
	if err != nil {
		return nil, err
	}
	total, err := compile(paths.TotalTokens)
	if err != nil {
		return nil, err
	}

	return &resultExtractor{
		provider:         p,
		text:             text,
		promptTokens:     prompt,
		completionTokens: completion,
		totalTokens:      total,
	}, nil
}

func mustNewResultExtractor(p model.Provider, paths resultPaths) *resultExtractor {
	e, err := newResultExtractor(p, paths)
	if err != nil {
		panic(err)
	}
	return e
}

// Extract decodes the raw body and assembles the generation result. A
// response the expressions cannot make sense of is a provider failure, not a
// validation one: the request was accepted upstream.
func (e *resultExtractor) Extract(raw []byte) (*model.GenerationResult, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeProvider, "decode %s response", e.provider)
	}

	text, err := e.stringAt(e.text, decoded)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, apperrors.Provider(fmt.Sprintf("%s response contained no generated text", e.provider))
	}

	usage := model.Usage{
		PromptTokens:     e.intAt(e.promptTokens, decoded),
		CompletionTokens: e.intAt(e.completionTokens, decoded),
		TotalTokens:      e.intAt(e.totalTokens, decoded),
	}
	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}

	return &model.GenerationResult{
		Text:  text,
		Usage: usage,
		Raw:   json.RawMessage(append([]byte(nil), raw...)),
	}, nil
}

func (e *resultExtractor) stringAt(expr jmespath.JMESPath, data any) (string, error) {
	if expr == nil {
		return "", nil
	}
	v, err := expr.Search(data)
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.ErrCodeProvider, "evaluate %s text path", e.provider)
	}
	s, _ := v.(string)
	return s, nil
}

// intAt tolerates missing usage fields; providers occasionally omit them.
func (e *resultExtractor) intAt(expr jmespath.JMESPath, data any) int {
	if expr == nil {
		return 0
	}
	v, err := expr.Search(data)
	if err != nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		i, convErr := n.Int64()
		if convErr != nil {
			return 0
		}
		return int(i)
	default:
		return 0
	}
}
