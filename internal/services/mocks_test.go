package services_test

import (
	"context"

	"github.com/imovelhub/imovelhub-ops/pkg/runner"
	"github.com/stretchr/testify/mock"
)

// MockRunner is a mock implementation of runner.Runner
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, name string, args ...string) (*runner.Result, error) {
	callArgs := []interface{}{ctx, name}
	for _, a := range args {
		callArgs = append(callArgs, a)
	}
	ret := m.Called(callArgs...)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).(*runner.Result), ret.Error(1)
}
