//go:build !production

package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/palemoky/threadrook/internal/bus"
	"github.com/palemoky/threadrook/internal/protocol"
)

// MockBus 实现 bus.Bus 的 mock
type MockBus struct {
	mock.Mock
}

func (m *MockBus) Publish(ctx context.Context, env protocol.Envelope) error {
	args := m.Called(ctx, env)
	return args.Error(0)
}

func (m *MockBus) Subscribe() bus.Subscription {
	args := m.Called()
	return args.Get(0).(bus.Subscription)
}

// MockSubscription 实现 bus.Subscription 的 mock
type MockSubscription struct {
	mock.Mock
}

func (m *MockSubscription) Receive(ctx context.Context) (protocol.Envelope, error) {
	args := m.Called(ctx)
	return args.Get(0).(protocol.Envelope), args.Error(1)
}

func (m *MockSubscription) Dropped() uint64 {
	args := m.Called()
	return args.Get(0).(uint64)
}

func (m *MockSubscription) Close() {
	m.Called()
}
