package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_Valid(t *testing.T) {
	assert.True(t, ProviderOpenAI.Valid())
	assert.True(t, ProviderGemini.Valid())
	assert.True(t, ProviderClaude.Valid())
	assert.False(t, Provider("mistral").Valid())
}

func TestProvider_UnmarshalText(t *testing.T) {
	var p Provider
	err := p.UnmarshalText([]byte("  Claude "))
	require.NoError(t, err)
	assert.Equal(t, ProviderClaude, p)

	err = p.UnmarshalText([]byte("unknown"))
	assert.Error(t, err)
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.False(t, JobStatusQueued.Terminal())
	assert.False(t, JobStatusActive.Terminal())
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
}

func TestJob_Error_AssemblesTypedFailure(t *testing.T) {
	job := Job{Status: JobStatusFailed}
	assert.Nil(t, job.Error())

	typ := "TIMEOUT_ERROR"
	msg := "provider call exceeded 15s"
	retryable := true
	job.ErrorType = &typ
	job.ErrorMessage = &msg
	job.ErrorRetryable = &retryable

	e := job.Error()
	require.NotNil(t, e)
	assert.Equal(t, "TIMEOUT_ERROR", e.Type)
	assert.Equal(t, msg, e.Message)
	assert.True(t, e.Retryable)
}

func TestJob_MarshalJSON_InlinesError(t *testing.T) {
	typ := "PROVIDER_ERROR"
	job := Job{
		ID:     "j1",
		Status: JobStatusFailed,
		GenerationSpec: GenerationSpec{
			Provider:   ProviderOpenAI,
			Model:      "gpt-4o",
			UserPrompt: "hello",
		},
		ErrorType: &typ,
	}

	raw, err := json.Marshal(job)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "openai", decoded["provider"])
	errObj, ok := decoded["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "PROVIDER_ERROR", errObj["type"])
	// internal nullable columns never leak
	assert.NotContains(t, decoded, "ErrorType")
	assert.NotContains(t, decoded, "cancel_requested")
}

func TestJob_DecodedResult(t *testing.T) {
	job := Job{}
	res, err := job.DecodedResult()
	require.NoError(t, err)
	assert.Nil(t, res)

	job.Result = json.RawMessage(`{"text":"hi","usage":{"promptTokens":3,"completionTokens":5,"totalTokens":8}}`)
	res, err = job.DecodedResult()
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "hi", res.Text)
	assert.Equal(t, 8, res.Usage.TotalTokens)
}
