package handlers

import (
	"context"
	"net/http"

	"github.com/imovelhub/imovelhub-ops/internal/cache"
	"github.com/imovelhub/imovelhub-ops/internal/models"
	"github.com/imovelhub/imovelhub-ops/internal/offline"
	"github.com/stretchr/testify/mock"
)

// MockDeployService is a mock implementation of services.DeployServiceInterface
type MockDeployService struct {
	mock.Mock
}

func (m *MockDeployService) HandleEvent(ctx context.Context, event *models.SignedEvent) (*models.EventResult, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EventResult), args.Error(1)
}

// MockCacheManager is a mock implementation of CacheManager
type MockCacheManager struct {
	mock.Mock
}

func (m *MockCacheManager) Serve(ctx context.Context, r *http.Request) *cache.Entry {
	args := m.Called(ctx, r)
	return args.Get(0).(*cache.Entry)
}

func (m *MockCacheManager) SkipWaiting(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockCacheManager) Preload(ctx context.Context, urls []string) *models.PreloadReport {
	args := m.Called(ctx, urls)
	return args.Get(0).(*models.PreloadReport)
}

func (m *MockCacheManager) Status(ctx context.Context) (*offline.Status, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*offline.Status), args.Error(1)
}

// MockPinger is a mock implementation of Pinger
type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
