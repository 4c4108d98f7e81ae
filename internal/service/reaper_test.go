package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/o4o-platform/ai-gateway/config"
	"github.com/o4o-platform/ai-gateway/internal/data"
	"github.com/o4o-platform/ai-gateway/internal/domain/model"
)

type stubReaperRepo struct {
	mu sync.Mutex

	staleBatches []int64
	staleErr     error
	staleCalls   int

	deleted     map[model.JobStatus]int64
	deleteErr   error
	deleteCalls []data.DeleteOldJobsParams

	dlqCount int64
	dlqCalls int
}

func (s *stubReaperRepo) FailStaleQueuedJobs(_ context.Context, _ time.Duration, _ int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staleErr != nil {
		return 0, s.staleErr
	}
	if s.staleCalls >= len(s.staleBatches) {
		s.staleCalls++
		return 0, nil
	}
	count := s.staleBatches[s.staleCalls]
	s.staleCalls++
	return count, nil
}

func (s *stubReaperRepo) DeleteOldJobs(_ context.Context, params data.DeleteOldJobsParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	s.deleteCalls = append(s.deleteCalls, params)
	count := s.deleted[params.Status]
	delete(s.deleted, params.Status)
	return count, nil
}

func (s *stubReaperRepo) DeleteConsumedDLQEntries(_ context.Context, _ time.Duration, _ int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dlqCalls++
	if s.dlqCalls > 1 {
		return 0, nil
	}
	return s.dlqCount, nil
}

func testReaperConfig() config.ReaperConfig {
	return config.ReaperConfig{
		Interval:          time.Minute,
		QueuedMaxAge:      time.Hour,
		CompletedMaxAge:   24 * time.Hour,
		FailedMaxAge:      24 * time.Hour,
		DLQConsumedMaxAge: 24 * time.Hour,
		BatchSize:         100,
	}
}

func TestReaperService_RunCleanup(t *testing.T) {
	repo := &stubReaperRepo{
		staleBatches: []int64{3, 0},
		deleted: map[model.JobStatus]int64{
			model.JobStatusCompleted: 5,
			model.JobStatusFailed:    2,
		},
		dlqCount: 1,
	}

	svc, err := NewReaperService(ReaperServiceOptions{
		Repo:   repo,
		Config: testReaperConfig(),
	})
	require.NoError(t, err)

	require.NoError(t, svc.RunCleanup(context.Background()))

	// Each status is swept until a batch comes back empty.
	var statuses []model.JobStatus
	for _, call := range repo.deleteCalls {
		statuses = append(statuses, call.Status)
	}
	assert.Contains(t, statuses, model.JobStatusCompleted)
	assert.Contains(t, statuses, model.JobStatusFailed)
	assert.GreaterOrEqual(t, repo.dlqCalls, 1)
}

func TestReaperService_RunCleanup_BatchesUntilEmpty(t *testing.T) {
	repo := &stubReaperRepo{staleBatches: []int64{100, 100, 40, 0}}

	svc, err := NewReaperService(ReaperServiceOptions{
		Repo:   repo,
		Config: testReaperConfig(),
	})
	require.NoError(t, err)

	require.NoError(t, svc.RunCleanup(context.Background()))
	assert.Equal(t, 4, repo.staleCalls)
}

func TestReaperService_RunCleanup_AggregatesErrors(t *testing.T) {
	repo := &stubReaperRepo{
		staleErr:  errors.New("stale sweep failed"),
		deleteErr: errors.New("delete failed"),
	}

	svc, err := NewReaperService(ReaperServiceOptions{
		Repo:   repo,
		Config: testReaperConfig(),
	})
	require.NoError(t, err)

	err = svc.RunCleanup(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stale sweep failed")
	assert.Contains(t, err.Error(), "delete failed")
}

func TestReaperService_Run_StopsOnCancel(t *testing.T) {
	repo := &stubReaperRepo{}
	svc, err := NewReaperService(ReaperServiceOptions{
		Repo: repo,
		Config: config.ReaperConfig{
			Interval:          10 * time.Millisecond,
			QueuedMaxAge:      time.Hour,
			CompletedMaxAge:   time.Hour,
			FailedMaxAge:      time.Hour,
			DLQConsumedMaxAge: time.Hour,
			BatchSize:         10,
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err, "cancellation is a graceful shutdown")
	case <-time.After(2 * time.Second):
		t.Fatal("reaper did not stop after cancel")
	}
}

func TestReaperService_RequiresRepo(t *testing.T) {
	_, err := NewReaperService(ReaperServiceOptions{Config: testReaperConfig()})
	require.Error(t, err)
}
