package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/o4o-platform/ai-gateway/internal/data"
	domainjob "github.com/o4o-platform/ai-gateway/internal/domain/job"
	"github.com/o4o-platform/ai-gateway/internal/domain/model"
	apperrors "github.com/o4o-platform/ai-gateway/internal/errors"
	"github.com/o4o-platform/ai-gateway/internal/mocks"
)

type stubNotifier struct{}

func (stubNotifier) Subscribe() (func(), <-chan struct{}) {
	ch := make(chan struct{})
	return func() {}, ch
}
func (stubNotifier) StopAll() {}

func newTestJobService(t *testing.T, repo JobRepository) *JobService {
	t.Helper()
	svc, err := NewJobService(JobServiceOptions{
		Repo:         repo,
		Whitelist:    model.DefaultWhitelist(),
		DefaultLease: 30 * time.Second,
		Notifier:     stubNotifier{},
	})
	require.NoError(t, err)
	return svc
}

func enqueueRequest() *model.EnqueueJobRequest {
	return &model.EnqueueJobRequest{
		Provider:   model.ProviderOpenAI,
		Model:      "gpt-4o",
		UserPrompt: "write a haiku",
	}
}

func queuedJob(id, owner string) *model.Job {
	return &model.Job{
		ID:        id,
		RequestID: "req-" + id,
		OwnerID:   owner,
		GenerationSpec: model.GenerationSpec{
			Provider:   model.ProviderOpenAI,
			Model:      "gpt-4o",
			UserPrompt: "write a haiku",
		},
		Status:      model.JobStatusQueued,
		Attempt:     1,
		MaxAttempts: model.DefaultMaxAttempts,
	}
}

func TestJobService_Enqueue(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	svc := newTestJobService(t, repo)

	repo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params *data.CreateJobParams) (*model.Job, error) {
			assert.Equal(t, "user-1", params.OwnerID)
			assert.NotEmpty(t, params.RequestID)
			assert.Equal(t, 1, params.Attempt)
			assert.Equal(t, model.DefaultMaxAttempts, params.MaxAttempts)
			assert.Nil(t, params.RelatedJobID)
			return queuedJob("job-1", params.OwnerID), nil
		})

	job, err := svc.Enqueue(context.Background(), "user-1", enqueueRequest())
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, model.JobStatusQueued, job.Status)
}

func TestJobService_Enqueue_RejectsInvalidSpec(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	svc := newTestJobService(t, repo)

	req := enqueueRequest()
	req.Model = "gpt-99-ultra"

	_, err := svc.Enqueue(context.Background(), "user-1", req)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestJobService_Enqueue_RequiresOwner(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := newTestJobService(t, mocks.NewMockJobRepository(ctrl))

	_, err := svc.Enqueue(context.Background(), "", enqueueRequest())
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestJobService_GetOwned_HidesForeignJobs(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	svc := newTestJobService(t, repo)

	repo.EXPECT().GetByID(gomock.Any(), "job-1").Return(queuedJob("job-1", "user-1"), nil).Times(2)

	_, err := svc.GetOwned(context.Background(), "user-2", false, "job-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err), "foreign jobs must look like missing jobs")

	job, err := svc.GetOwned(context.Background(), "user-2", true, "job-1")
	require.NoError(t, err, "admins can read any job")
	assert.Equal(t, "job-1", job.ID)
}

func TestJobService_GetOwned_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	svc := newTestJobService(t, repo)

	repo.EXPECT().GetByID(gomock.Any(), "missing").Return(nil, data.ErrJobNotFound)

	_, err := svc.GetOwned(context.Background(), "user-1", false, "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestJobService_Cancel_QueuedJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	svc := newTestJobService(t, repo)

	events, cancelSub := svc.SubscribeEvents("job-1")
	defer cancelSub()

	job := queuedJob("job-1", "user-1")
	canceled := queuedJob("job-1", "user-1")
	canceled.Status = model.JobStatusFailed

	repo.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)
	repo.EXPECT().CancelQueued(gomock.Any(), "job-1").Return(true, nil)
	repo.EXPECT().GetByID(gomock.Any(), "job-1").Return(canceled, nil)

	updated, err := svc.Cancel(context.Background(), "user-1", false, "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, updated.Status)

	select {
	case ev := <-events:
		assert.Equal(t, domainjob.EventFailed, ev.Type)
		require.NotNil(t, ev.Error)
		assert.Equal(t, string(apperrors.ErrCodeCanceled), ev.Error.Type)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected a terminal event for the cancelled job")
	}
}

func TestJobService_Cancel_ActiveJobSetsFlag(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	svc := newTestJobService(t, repo)

	job := queuedJob("job-1", "user-1")
	job.Status = model.JobStatusActive

	repo.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)
	repo.EXPECT().RequestCancel(gomock.Any(), "job-1").Return(true, nil)
	repo.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)

	updated, err := svc.Cancel(context.Background(), "user-1", false, "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusActive, updated.Status)
}

func TestJobService_Cancel_RacesToActive(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	svc := newTestJobService(t, repo)

	job := queuedJob("job-1", "user-1")

	// CancelQueued loses the race against dispatch, so the cooperative flag
	// path takes over.
	repo.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)
	repo.EXPECT().CancelQueued(gomock.Any(), "job-1").Return(false, nil)
	repo.EXPECT().RequestCancel(gomock.Any(), "job-1").Return(true, nil)
	repo.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)

	_, err := svc.Cancel(context.Background(), "user-1", false, "job-1")
	require.NoError(t, err)
}

func TestJobService_Cancel_TerminalJobRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	svc := newTestJobService(t, repo)

	job := queuedJob("job-1", "user-1")
	job.Status = model.JobStatusCompleted

	repo.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)

	_, err := svc.Cancel(context.Background(), "user-1", false, "job-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err), "cancelling a finished job is a bad request, not a conflict")
}

func TestJobService_Retry_FailedJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	svc := newTestJobService(t, repo)

	failed := queuedJob("job-1", "user-1")
	failed.Status = model.JobStatusFailed
	failed.Attempt = 3

	repo.EXPECT().GetByID(gomock.Any(), "job-1").Return(failed, nil)
	repo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params *data.CreateJobParams) (*model.Job, error) {
			require.NotNil(t, params.RelatedJobID)
			assert.Equal(t, "job-1", *params.RelatedJobID)
			assert.Equal(t, 1, params.Attempt, "manual retry resets the attempt counter")
			assert.NotEqual(t, failed.RequestID, params.RequestID, "manual retry gets a fresh request id")
			assert.Equal(t, failed.GenerationSpec, params.Spec)
			return queuedJob("job-2", "user-1"), nil
		})

	successor, err := svc.Retry(context.Background(), "user-1", false, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-2", successor.ID)
}

func TestJobService_Retry_CompletedJobReruns(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	svc := newTestJobService(t, repo)

	done := queuedJob("job-1", "user-1")
	done.Status = model.JobStatusCompleted

	repo.EXPECT().GetByID(gomock.Any(), "job-1").Return(done, nil)
	repo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params *data.CreateJobParams) (*model.Job, error) {
			require.NotNil(t, params.RelatedJobID)
			assert.Equal(t, "job-1", *params.RelatedJobID)
			assert.Equal(t, done.GenerationSpec, params.Spec, "a re-run copies the spec verbatim")
			return queuedJob("job-2", "user-1"), nil
		})

	successor, err := svc.Retry(context.Background(), "user-1", false, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-2", successor.ID, "retry is a re-run on demand, not gated on failure")
}

func TestJobService_RetryAsSuccessor(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	svc := newTestJobService(t, repo)

	failed := queuedJob("job-1", "user-1")
	failed.Status = model.JobStatusFailed
	failed.Attempt = 2

	before := time.Now()
	repo.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params *data.CreateJobParams) (*model.Job, error) {
			assert.Equal(t, 3, params.Attempt, "automatic retry increments the attempt counter")
			assert.Equal(t, failed.RequestID, params.RequestID, "automatic retry keeps the request id")
			require.NotNil(t, params.RelatedJobID)
			assert.Equal(t, "job-1", *params.RelatedJobID)
			assert.False(t, params.ScheduledAt.Before(before.Add(5*time.Second)), "backoff defers dispatch")
			return queuedJob("job-2", "user-1"), nil
		})

	_, err := svc.RetryAsSuccessor(context.Background(), failed, 5*time.Second)
	require.NoError(t, err)
}

func TestJobService_List_ScopesNonAdmins(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	svc := newTestJobService(t, repo)

	repo.EXPECT().
		List(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, opts *model.JobListOptions) ([]*model.Job, error) {
			require.NotNil(t, opts.OwnerID)
			assert.Equal(t, "user-1", *opts.OwnerID, "non-admin filters are forced to the caller")
			return []*model.Job{}, nil
		})

	other := "someone-else"
	_, err := svc.List(context.Background(), "user-1", false, &model.JobListOptions{OwnerID: &other})
	require.NoError(t, err)
}

func TestJobService_Complete_PublishesEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	svc := newTestJobService(t, repo)

	events, cancelSub := svc.SubscribeEvents("job-1")
	defer cancelSub()

	repo.EXPECT().Complete(gomock.Any(), "job-1", gomock.Any()).Return(true, nil)

	ok, err := svc.Complete(context.Background(), "job-1", &model.GenerationResult{
		Text:  "done",
		Usage: model.Usage{TotalTokens: 9},
	})
	require.NoError(t, err)
	assert.True(t, ok)

	select {
	case ev := <-events:
		assert.Equal(t, domainjob.EventCompleted, ev.Type)
		assert.Equal(t, 100, ev.Progress)
		require.NotNil(t, ev.Result)
		assert.Equal(t, "done", ev.Result.Text)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected completion event")
	}
}

func TestJobService_Complete_LostRacePublishesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	svc := newTestJobService(t, repo)

	events, cancelSub := svc.SubscribeEvents("job-1")
	defer cancelSub()

	repo.EXPECT().Complete(gomock.Any(), "job-1", gomock.Any()).Return(false, nil)

	ok, err := svc.Complete(context.Background(), "job-1", &model.GenerationResult{Text: "late"})
	require.NoError(t, err)
	assert.False(t, ok)

	select {
	case ev := <-events:
		t.Fatalf("unexpected event after lost terminal race: %+v", ev)
	default:
	}
}

func TestJobService_Fail_PublishesEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	svc := newTestJobService(t, repo)

	events, cancelSub := svc.SubscribeEvents("job-1")
	defer cancelSub()

	jobErr := model.JobError{Type: "PROVIDER_ERROR", Message: "boom", Retryable: true}
	repo.EXPECT().Fail(gomock.Any(), "job-1", jobErr).Return(true, nil)

	ok, err := svc.Fail(context.Background(), "job-1", jobErr)
	require.NoError(t, err)
	assert.True(t, ok)

	select {
	case ev := <-events:
		assert.Equal(t, domainjob.EventFailed, ev.Type)
		require.NotNil(t, ev.Error)
		assert.Equal(t, "PROVIDER_ERROR", ev.Error.Type)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected failure event")
	}
}

func TestJobService_ReserveNext_NoJobs(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	svc := newTestJobService(t, repo)

	repo.EXPECT().ReserveNext(gomock.Any(), 30).Return(nil, model.ErrNoJobsAvailable)

	_, err := svc.ReserveNext(context.Background(), 0)
	assert.ErrorIs(t, err, model.ErrNoJobsAvailable)
}

func TestJobService_SetProgress_PublishesOnlyOnUpdate(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	svc := newTestJobService(t, repo)

	events, cancelSub := svc.SubscribeEvents("job-1")
	defer cancelSub()

	repo.EXPECT().SetProgress(gomock.Any(), "job-1", 25).Return(true, nil)
	repo.EXPECT().SetProgress(gomock.Any(), "job-1", 10).Return(false, nil)

	ok, err := svc.SetProgress(context.Background(), "job-1", 25)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.SetProgress(context.Background(), "job-1", 10)
	require.NoError(t, err)
	assert.False(t, ok)

	var got []domainjob.Event
drain:
	for {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-time.After(100 * time.Millisecond):
			break drain
		}
	}
	require.Len(t, got, 1)
	assert.Equal(t, 25, got[0].Progress)
}
