package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/o4o-platform/ai-gateway/internal/data"
	"github.com/o4o-platform/ai-gateway/internal/domain/model"
	"github.com/o4o-platform/ai-gateway/internal/ports"
)

func doJSON(t *testing.T, env *testEnv, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorDetail {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestEnqueue_Accepted(t *testing.T) {
	env := newTestEnv(t)

	env.jobRepo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params *data.CreateJobParams) (*model.Job, error) {
			assert.Equal(t, "mock-user-1", params.OwnerID)
			assert.Equal(t, 1, params.Attempt)
			assert.Equal(t, model.ProviderOpenAI, params.Spec.Provider)
			job := queuedJob("job-1", params.OwnerID)
			job.RequestID = params.RequestID
			return job, nil
		})

	rec := doJSON(t, env, http.MethodPost, "/api/ai/jobs", "user-token",
		`{"provider":"openai","model":"gpt-4o","userPrompt":"write a haiku"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp enqueueResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "job-1", resp.JobID)
	assert.Equal(t, "queued", resp.Status)
	assert.NotEmpty(t, resp.RequestID)
}

func TestEnqueue_RejectsUnlistedModel(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env, http.MethodPost, "/api/ai/jobs", "user-token",
		`{"provider":"openai","model":"gpt-99","userPrompt":"hi"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", detail.Type)
	assert.False(t, detail.Retryable)
}

func TestEnqueue_RequiresBearerToken(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env, http.MethodPost, "/api/ai/jobs", "",
		`{"provider":"openai","model":"gpt-4o","userPrompt":"hi"}`)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTH_ERROR", decodeError(t, rec).Type)
}

func TestEnqueue_UnknownTokenRejected(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env, http.MethodPost, "/api/ai/jobs", "bogus",
		`{"provider":"openai","model":"gpt-4o","userPrompt":"hi"}`)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEnqueue_RateLimited(t *testing.T) {
	env := newTestEnv(t)
	env.limiter.Denied = map[string]bool{"mock-user-1": true}
	env.limiter.RetryAfter = 30 * time.Second

	rec := doJSON(t, env, http.MethodPost, "/api/ai/jobs", "user-token",
		`{"provider":"openai","model":"gpt-4o","userPrompt":"hi"}`)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	detail := decodeError(t, rec)
	assert.Equal(t, "RATE_LIMIT_ERROR", detail.Type)
	assert.True(t, detail.Retryable)
}

func TestEnqueue_RateLimiterFailureFailsOpen(t *testing.T) {
	env := newTestEnv(t)
	env.limiter.AllowFunc = func(context.Context, string) (ports.RateLimitDecision, error) {
		return ports.RateLimitDecision{}, assert.AnError
	}

	env.jobRepo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		Return(queuedJob("job-1", "mock-user-1"), nil)

	rec := doJSON(t, env, http.MethodPost, "/api/ai/jobs", "user-token",
		`{"provider":"openai","model":"gpt-4o","userPrompt":"hi"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestGetJob_OtherOwnerLooksLikeNotFound(t *testing.T) {
	env := newTestEnv(t)

	env.jobRepo.EXPECT().
		GetByID(gomock.Any(), "job-1").
		Return(queuedJob("job-1", "someone-else"), nil)

	rec := doJSON(t, env, http.MethodGet, "/api/ai/jobs/job-1", "user-token", "")

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Type)
}

func TestGetJob_MissingJob(t *testing.T) {
	env := newTestEnv(t)

	env.jobRepo.EXPECT().
		GetByID(gomock.Any(), "nope").
		Return(nil, data.ErrJobNotFound)

	rec := doJSON(t, env, http.MethodGet, "/api/ai/jobs/nope", "user-token", "")

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetJob_AdminSeesAnyJob(t *testing.T) {
	env := newTestEnv(t)

	env.jobRepo.EXPECT().
		GetByID(gomock.Any(), "job-1").
		Return(queuedJob("job-1", "someone-else"), nil)

	rec := doJSON(t, env, http.MethodGet, "/api/ai/jobs/job-1", "admin-token", "")

	require.Equal(t, http.StatusOK, rec.Code)

	var job model.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, "job-1", job.ID)
}

func TestCancel_QueuedJob(t *testing.T) {
	env := newTestEnv(t)

	queued := queuedJob("job-1", "mock-user-1")
	cancelled := queuedJob("job-1", "mock-user-1")
	cancelled.Status = model.JobStatusFailed

	gomock.InOrder(
		env.jobRepo.EXPECT().GetByID(gomock.Any(), "job-1").Return(queued, nil),
		env.jobRepo.EXPECT().CancelQueued(gomock.Any(), "job-1").Return(true, nil),
		env.jobRepo.EXPECT().GetByID(gomock.Any(), "job-1").Return(cancelled, nil),
	)

	rec := doJSON(t, env, http.MethodDelete, "/api/ai/jobs/job-1", "user-token", "")

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Cancelled bool   `json:"cancelled"`
		Status    string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Cancelled)
	assert.Equal(t, "failed", resp.Status)
}

func TestCancel_TerminalJobBadRequest(t *testing.T) {
	env := newTestEnv(t)

	done := queuedJob("job-1", "mock-user-1")
	done.Status = model.JobStatusCompleted

	env.jobRepo.EXPECT().GetByID(gomock.Any(), "job-1").Return(done, nil)

	rec := doJSON(t, env, http.MethodDelete, "/api/ai/jobs/job-1", "user-token", "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Type)
}

func TestRetry_FailedJob(t *testing.T) {
	env := newTestEnv(t)

	failed := queuedJob("job-1", "mock-user-1")
	failed.Status = model.JobStatusFailed

	env.jobRepo.EXPECT().GetByID(gomock.Any(), "job-1").Return(failed, nil)
	env.jobRepo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params *data.CreateJobParams) (*model.Job, error) {
			require.NotNil(t, params.RelatedJobID)
			assert.Equal(t, "job-1", *params.RelatedJobID)
			assert.Equal(t, 1, params.Attempt)
			successor := queuedJob("job-2", params.OwnerID)
			successor.RequestID = params.RequestID
			successor.RelatedJobID = params.RelatedJobID
			return successor, nil
		})

	rec := doJSON(t, env, http.MethodPost, "/api/ai/jobs/job-1/retry", "user-token", "")

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp retryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-2", resp.JobID)
	assert.Equal(t, "job-1", resp.RelatedJobID)
	assert.Equal(t, "queued", resp.Status)
	assert.True(t, resp.Rerun)
}

func TestRetry_QueuedJobReruns(t *testing.T) {
	env := newTestEnv(t)

	env.jobRepo.EXPECT().GetByID(gomock.Any(), "job-1").Return(queuedJob("job-1", "mock-user-1"), nil)
	env.jobRepo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params *data.CreateJobParams) (*model.Job, error) {
			require.NotNil(t, params.RelatedJobID)
			assert.Equal(t, "job-1", *params.RelatedJobID)
			return queuedJob("job-2", params.OwnerID), nil
		})

	rec := doJSON(t, env, http.MethodPost, "/api/ai/jobs/job-1/retry", "user-token", "")

	require.Equal(t, http.StatusAccepted, rec.Code, "a job can be re-run whatever its current status")
}

func TestHistory_ScopesToCaller(t *testing.T) {
	env := newTestEnv(t)

	env.jobRepo.EXPECT().
		List(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, opts *model.JobListOptions) ([]*model.Job, error) {
			require.NotNil(t, opts.OwnerID)
			assert.Equal(t, "mock-user-1", *opts.OwnerID)
			assert.Equal(t, 50, opts.Limit)
			return []*model.Job{queuedJob("job-1", "mock-user-1")}, nil
		})

	rec := doJSON(t, env, http.MethodGet, "/api/ai/jobs/history", "user-token", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"job-1"`)
}

func TestHistory_InvalidStatusFilter(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env, http.MethodGet, "/api/ai/jobs/history?status=bogus", "user-token", "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetrics_BoundsHours(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env, http.MethodGet, "/api/ai/jobs/metrics?hours=0", "user-token", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetrics_ReturnsCounts(t *testing.T) {
	env := newTestEnv(t)

	env.jobRepo.EXPECT().
		Stats(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, since *time.Time) (*model.JobStats, error) {
			require.NotNil(t, since)
			assert.WithinDuration(t, time.Now().Add(-6*time.Hour), *since, time.Minute)
			return &model.JobStats{Queued: 2, Active: 1, Completed: 10, Failed: 3}, nil
		})

	rec := doJSON(t, env, http.MethodGet, "/api/ai/jobs/metrics?hours=6", "user-token", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"completed":10`)
	assert.Contains(t, rec.Body.String(), `"windowHours":6`)
}

func TestModels_ListsWhitelist(t *testing.T) {
	env := newTestEnv(t)

	rec := doJSON(t, env, http.MethodGet, "/api/ai/models", "user-token", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gpt-4o")
	assert.Contains(t, rec.Body.String(), "claude-3-opus")
	assert.Contains(t, rec.Body.String(), "temperatureMax")
}
