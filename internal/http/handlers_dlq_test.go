package httpx

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/o4o-platform/ai-gateway/internal/data"
	"github.com/o4o-platform/ai-gateway/internal/domain/model"
)

func dlqEntry(id, jobID string) *model.DLQEntry {
	return &model.DLQEntry{
		ID:        id,
		JobID:     jobID,
		OwnerID:   "mock-user-1",
		Provider:  model.ProviderOpenAI,
		Model:     "gpt-4o",
		Reason:    "PROVIDER_ERROR",
		Message:   "upstream returned 500",
		Retryable: true,
		Attempts:  3,
		CreatedAt: time.Now(),
	}
}

func TestDLQ_RequiresAdminRole(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env, http.MethodGet, "/api/ai/dlq", "user-token", "")

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decodeError(t, rec).Type)
}

func TestDLQ_List(t *testing.T) {
	env := newTestEnv(t)

	env.dlqRepo.EXPECT().
		List(gomock.Any(), 100, 0).
		Return([]*model.DLQEntry{dlqEntry("dlq-1", "job-1")}, nil)

	rec := doJSON(t, env, http.MethodGet, "/api/ai/dlq", "admin-token", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"dlq-1"`)
	assert.Contains(t, rec.Body.String(), `"limit":100`)
}

func TestDLQ_Stats(t *testing.T) {
	env := newTestEnv(t)

	env.dlqRepo.EXPECT().Stats(gomock.Any()).Return(&model.DLQStats{
		Total:           2,
		CountByReason:   map[string]int{"PROVIDER_ERROR": 2},
		CountByProvider: map[string]int{"openai": 2},
	}, nil)

	rec := doJSON(t, env, http.MethodGet, "/api/ai/dlq/stats", "admin-token", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":2`)
}

func TestDLQ_Retry(t *testing.T) {
	env := newTestEnv(t)

	failed := queuedJob("job-1", "mock-user-1")
	failed.Status = model.JobStatusFailed

	env.dlqRepo.EXPECT().GetByID(gomock.Any(), "dlq-1").Return(dlqEntry("dlq-1", "job-1"), nil)
	env.jobRepo.EXPECT().GetByID(gomock.Any(), "job-1").Return(failed, nil)
	env.dlqRepo.EXPECT().MarkConsumed(gomock.Any(), "dlq-1").Return(true, nil)
	env.jobRepo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		Return(queuedJob("job-2", "mock-user-1"), nil)

	rec := doJSON(t, env, http.MethodPost, "/api/ai/dlq/dlq-1/retry", "admin-token", "")

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-2", resp["jobId"])
	assert.Equal(t, "dlq-1", resp["dlqEntryId"])
	assert.Equal(t, "queued", resp["status"])
}

func TestDLQ_RetryMissingEntry(t *testing.T) {
	env := newTestEnv(t)

	env.dlqRepo.EXPECT().GetByID(gomock.Any(), "nope").Return(nil, data.ErrDLQEntryNotFound)

	rec := doJSON(t, env, http.MethodPost, "/api/ai/dlq/nope/retry", "admin-token", "")

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDLQ_RetryNonRetryableEntryBadRequest(t *testing.T) {
	env := newTestEnv(t)

	entry := dlqEntry("dlq-1", "job-1")
	entry.Reason = "AUTH_ERROR"
	entry.Retryable = false

	env.dlqRepo.EXPECT().GetByID(gomock.Any(), "dlq-1").Return(entry, nil)

	rec := doJSON(t, env, http.MethodPost, "/api/ai/dlq/dlq-1/retry", "admin-token", "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Type)
}

func TestDLQ_RetryConsumedEntryConflicts(t *testing.T) {
	env := newTestEnv(t)

	consumed := dlqEntry("dlq-1", "job-1")
	now := time.Now()
	consumed.ConsumedAt = &now

	env.dlqRepo.EXPECT().GetByID(gomock.Any(), "dlq-1").Return(consumed, nil)

	rec := doJSON(t, env, http.MethodPost, "/api/ai/dlq/dlq-1/retry", "admin-token", "")

	require.Equal(t, http.StatusConflict, rec.Code)
}
