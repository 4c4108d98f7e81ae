package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/o4o-platform/ai-gateway/internal/data"
	"github.com/o4o-platform/ai-gateway/internal/domain/model"
	apperrors "github.com/o4o-platform/ai-gateway/internal/errors"
	"github.com/o4o-platform/ai-gateway/internal/mocks"
	"github.com/o4o-platform/ai-gateway/internal/observability/notify"
	"github.com/o4o-platform/ai-gateway/internal/service/failurenotifier"
)

func newTestDLQService(t *testing.T, repo DLQRepository, jobs *JobService, fn *failurenotifier.Service) *DLQService {
	t.Helper()
	svc, err := NewDLQService(DLQServiceOptions{
		Repo:            repo,
		Jobs:            jobs,
		FailureNotifier: fn,
	})
	require.NoError(t, err)
	return svc
}

func dlqEntry(id, jobID string) *model.DLQEntry {
	return &model.DLQEntry{
		ID:        id,
		JobID:     jobID,
		OwnerID:   "user-1",
		Provider:  model.ProviderOpenAI,
		Model:     "gpt-4o",
		Reason:    "PROVIDER_ERROR",
		Message:   "boom",
		Retryable: true,
		Attempts:  3,
	}
}

func TestDLQService_Record(t *testing.T) {
	ctrl := gomock.NewController(t)
	jobRepo := mocks.NewMockJobRepository(ctrl)
	dlqRepo := mocks.NewMockDLQRepository(ctrl)
	jobs := newTestJobService(t, jobRepo)

	var mu sync.Mutex
	var notified []notify.DeadLetterPayload
	fn := failurenotifier.NewService(failurenotifier.Options{
		Sinks: []failurenotifier.SinkRegistration{
			{
				Name: "capture",
				Sink: notify.SinkFunc(func(_ context.Context, payload notify.DeadLetterPayload) error {
					mu.Lock()
					defer mu.Unlock()
					notified = append(notified, payload)
					return nil
				}),
			},
		},
	})

	svc := newTestDLQService(t, dlqRepo, jobs, fn)

	job := queuedJob("job-1", "user-1")
	job.Status = model.JobStatusFailed
	job.Attempt = 3
	jobErr := model.JobError{Type: "PROVIDER_ERROR", Message: "boom", Retryable: true}

	dlqRepo.EXPECT().
		Insert(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params data.InsertDLQParams) (*model.DLQEntry, error) {
			assert.Equal(t, "job-1", params.JobID)
			assert.Equal(t, "PROVIDER_ERROR", params.Reason)
			assert.Equal(t, 3, params.Attempts)
			return dlqEntry("dlq-1", "job-1"), nil
		})

	entry, err := svc.Record(context.Background(), job, jobErr)
	require.NoError(t, err)
	require.NotNil(t, entry)

	require.Len(t, notified, 1)
	assert.Equal(t, "job-1", notified[0].JobID)
	assert.Equal(t, "PROVIDER_ERROR", notified[0].Reason)
	assert.Equal(t, notify.SeverityCritical, notified[0].Severity)
}

func TestDLQService_Record_SwallowsDuplicates(t *testing.T) {
	ctrl := gomock.NewController(t)
	jobRepo := mocks.NewMockJobRepository(ctrl)
	dlqRepo := mocks.NewMockDLQRepository(ctrl)
	svc := newTestDLQService(t, dlqRepo, newTestJobService(t, jobRepo), nil)

	dlqRepo.EXPECT().
		Insert(gomock.Any(), gomock.Any()).
		Return(nil, apperrors.Conflict("duplicate dlq entry"))

	entry, err := svc.Record(context.Background(), queuedJob("job-1", "user-1"), model.JobError{Type: "TIMEOUT_ERROR"})
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestDLQService_Retry(t *testing.T) {
	ctrl := gomock.NewController(t)
	jobRepo := mocks.NewMockJobRepository(ctrl)
	dlqRepo := mocks.NewMockDLQRepository(ctrl)
	svc := newTestDLQService(t, dlqRepo, newTestJobService(t, jobRepo), nil)

	original := queuedJob("job-1", "user-1")
	original.Status = model.JobStatusFailed

	dlqRepo.EXPECT().GetByID(gomock.Any(), "dlq-1").Return(dlqEntry("dlq-1", "job-1"), nil)
	jobRepo.EXPECT().GetByID(gomock.Any(), "job-1").Return(original, nil)
	dlqRepo.EXPECT().MarkConsumed(gomock.Any(), "dlq-1").Return(true, nil)
	jobRepo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params *data.CreateJobParams) (*model.Job, error) {
			assert.Equal(t, 1, params.Attempt, "dlq resubmission resets the attempt counter")
			require.NotNil(t, params.RelatedJobID)
			assert.Equal(t, "job-1", *params.RelatedJobID)
			assert.Equal(t, original.GenerationSpec, params.Spec)
			return queuedJob("job-2", "user-1"), nil
		})

	job, err := svc.Retry(context.Background(), "dlq-1")
	require.NoError(t, err)
	assert.Equal(t, "job-2", job.ID)
}

func TestDLQService_Retry_ConsumedEntryConflicts(t *testing.T) {
	ctrl := gomock.NewController(t)
	jobRepo := mocks.NewMockJobRepository(ctrl)
	dlqRepo := mocks.NewMockDLQRepository(ctrl)
	svc := newTestDLQService(t, dlqRepo, newTestJobService(t, jobRepo), nil)

	entry := dlqEntry("dlq-1", "job-1")
	now := entry.CreatedAt
	entry.ConsumedAt = &now

	dlqRepo.EXPECT().GetByID(gomock.Any(), "dlq-1").Return(entry, nil)

	_, err := svc.Retry(context.Background(), "dlq-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestDLQService_Retry_NonRetryableEntryRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	jobRepo := mocks.NewMockJobRepository(ctrl)
	dlqRepo := mocks.NewMockDLQRepository(ctrl)
	svc := newTestDLQService(t, dlqRepo, newTestJobService(t, jobRepo), nil)

	entry := dlqEntry("dlq-1", "job-1")
	entry.Reason = "AUTH_ERROR"
	entry.Retryable = false

	// The entry must not be consumed and no job may be created.
	dlqRepo.EXPECT().GetByID(gomock.Any(), "dlq-1").Return(entry, nil)

	_, err := svc.Retry(context.Background(), "dlq-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Contains(t, err.Error(), "not retryable")
}

func TestDLQService_Retry_ConsumeRaceConflicts(t *testing.T) {
	ctrl := gomock.NewController(t)
	jobRepo := mocks.NewMockJobRepository(ctrl)
	dlqRepo := mocks.NewMockDLQRepository(ctrl)
	svc := newTestDLQService(t, dlqRepo, newTestJobService(t, jobRepo), nil)

	dlqRepo.EXPECT().GetByID(gomock.Any(), "dlq-1").Return(dlqEntry("dlq-1", "job-1"), nil)
	jobRepo.EXPECT().GetByID(gomock.Any(), "job-1").Return(queuedJob("job-1", "user-1"), nil)
	dlqRepo.EXPECT().MarkConsumed(gomock.Any(), "dlq-1").Return(false, nil)

	_, err := svc.Retry(context.Background(), "dlq-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestDLQService_Retry_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	jobRepo := mocks.NewMockJobRepository(ctrl)
	dlqRepo := mocks.NewMockDLQRepository(ctrl)
	svc := newTestDLQService(t, dlqRepo, newTestJobService(t, jobRepo), nil)

	dlqRepo.EXPECT().GetByID(gomock.Any(), "missing").Return(nil, data.ErrDLQEntryNotFound)

	_, err := svc.Retry(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDLQService_ListAndStats(t *testing.T) {
	ctrl := gomock.NewController(t)
	jobRepo := mocks.NewMockJobRepository(ctrl)
	dlqRepo := mocks.NewMockDLQRepository(ctrl)
	svc := newTestDLQService(t, dlqRepo, newTestJobService(t, jobRepo), nil)

	dlqRepo.EXPECT().List(gomock.Any(), 10, 0).Return([]*model.DLQEntry{dlqEntry("dlq-1", "job-1")}, nil)
	dlqRepo.EXPECT().Stats(gomock.Any()).Return(&model.DLQStats{Total: 1}, nil)

	entries, err := svc.List(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}
