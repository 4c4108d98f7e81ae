// Package mocks provides mock implementations for testing the gateway job system.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(job, nil)
package mocks

// Generate mock for JobRepository interface from internal/service package.
// This creates MockJobRepository with methods for all JobRepository interface methods:
// Create, GetByID, List, ReserveNext, Heartbeat, SetProgress, Complete, Fail,
// CancelQueued, RequestCancel, Stats, WaitForNotification
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_repository_mock.go github.com/o4o-platform/ai-gateway/internal/service JobRepository

// Generate mock for DLQRepository interface from internal/service package.
// This creates MockDLQRepository with methods for all DLQRepository interface methods:
// Insert, GetByID, List, Stats, MarkConsumed
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=dlq_repository_mock.go github.com/o4o-platform/ai-gateway/internal/service DLQRepository

// Generate mock for UsageRepository interface from internal/service package.
// This creates MockUsageRepository with methods for all UsageRepository interface methods:
// UsageTotals, UsageByModel, TopUsersByUsage
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=usage_repository_mock.go github.com/o4o-platform/ai-gateway/internal/service UsageRepository
