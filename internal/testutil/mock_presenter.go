//go:build !production

package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/palemoky/threadrook/internal/match"
)

// MockPresenter 实现 match.Presenter 的 mock
type MockPresenter struct {
	mock.Mock
}

func (m *MockPresenter) CreateSurface(ctx context.Context, s match.Surface) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockPresenter) Announce(ctx context.Context, text string) error {
	args := m.Called(ctx, text)
	return args.Error(0)
}

func (m *MockPresenter) Update(ctx context.Context, panel match.Panel, text string) error {
	args := m.Called(ctx, panel, text)
	return args.Error(0)
}

func (m *MockPresenter) TeardownSurface(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockPresenter) RenderPosition(pos match.Position) string {
	args := m.Called(pos)
	return args.String(0)
}

func (m *MockPresenter) RenderClocks(view match.ClockView) string {
	args := m.Called(view)
	return args.String(0)
}

func (m *MockPresenter) RenderLegalMoves(color match.Color, moves []string) string {
	args := m.Called(color, moves)
	return args.String(0)
}
