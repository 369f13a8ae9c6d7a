package match_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/threadrook/internal/apperrors"
	"github.com/palemoky/threadrook/internal/bus"
	"github.com/palemoky/threadrook/internal/match"
	"github.com/palemoky/threadrook/internal/protocol"
	"github.com/palemoky/threadrook/internal/testutil"
)

type presenterSet struct {
	mu    sync.Mutex
	items map[string]*testutil.RecordingPresenter
}

func (ps *presenterSet) factory(s match.Surface) match.Presenter {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	p := testutil.NewRecordingPresenter()
	if ps.items == nil {
		ps.items = make(map[string]*testutil.RecordingPresenter)
	}
	ps.items[s.MatchID] = p
	return p
}

func (ps *presenterSet) get(id string) *testutil.RecordingPresenter {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.items[id]
}

func newTestLauncher(t *testing.T) (*match.Launcher, *bus.Memory) {
	t.Helper()
	b := bus.NewMemory(0)
	settings := testSettings()
	settings.QueryTimeout = 50 * time.Millisecond
	l := match.NewLauncher(b, testutil.NewScriptedOracle(), settings)
	t.Cleanup(l.Close)
	return l, b
}

func TestLauncher_Create(t *testing.T) {
	t.Parallel()

	l, b := newTestLauncher(t)
	var ps presenterSet
	black := match.Black

	s, err := l.Create(context.Background(), match.CreateRequest{Scope: testScope, Creator: alice, Presenter: ps.factory, Color: &black})
	require.NoError(t, err)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, match.StateWaitingForOpponent, s.State)
	assert.Equal(t, alice, s.Creator().Identity)
	assert.Equal(t, match.Black, s.Creator().Color)
	assert.Equal(t, 1, l.ActiveCount())
	require.NotNil(t, ps.get(s.ID))
	assert.Equal(t, s.ID, ps.get(s.ID).Surface().MatchID)

	busy, err := match.AlreadyInMatch(context.Background(), b, testScope, alice, time.Second)
	require.NoError(t, err)
	assert.True(t, busy, "creator is queryable once Create returns")
}

func TestLauncher_RejectsCreatorAlreadyInMatch(t *testing.T) {
	t.Parallel()

	l, _ := newTestLauncher(t)
	var ps presenterSet

	_, err := l.Create(context.Background(), match.CreateRequest{Scope: testScope, Creator: alice, Presenter: ps.factory})
	require.NoError(t, err)

	_, err = l.Create(context.Background(), match.CreateRequest{Scope: testScope, Creator: alice, Presenter: ps.factory})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyInMatch)
	assert.Equal(t, 1, l.ActiveCount())

	// 其他分组不受影响
	_, err = l.Create(context.Background(), match.CreateRequest{Scope: "g2", Creator: alice, Presenter: ps.factory})
	require.NoError(t, err)

	_, err = l.Create(context.Background(), match.CreateRequest{Scope: testScope, Creator: carol, Presenter: ps.factory})
	require.NoError(t, err)
	assert.Equal(t, 3, l.ActiveCount())
}

func TestLauncher_RejectsJoinedPlayer(t *testing.T) {
	t.Parallel()

	l, b := newTestLauncher(t)
	var ps presenterSet

	_, err := l.Create(context.Background(), match.CreateRequest{Scope: testScope, Creator: alice, Presenter: ps.factory})
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), protocol.NewEnvelope(testScope, protocol.JoinMatch{Target: alice, Joiner: bob})))

	busy, err := match.AlreadyInMatch(context.Background(), b, testScope, alice, time.Second)
	require.NoError(t, err)
	require.True(t, busy)

	_, err = l.Create(context.Background(), match.CreateRequest{Scope: testScope, Creator: bob, Presenter: ps.factory})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyInMatch)
	assert.Equal(t, 1, l.ActiveCount())
}

func TestLauncher_CreateFailure(t *testing.T) {
	t.Parallel()

	l, _ := newTestLauncher(t)
	failing := func(match.Surface) match.Presenter {
		p := testutil.NewRecordingPresenter()
		p.CreateErr = errors.New("no permission")
		return p
	}

	_, err := l.Create(context.Background(), match.CreateRequest{Scope: testScope, Creator: alice, Presenter: failing})
	assert.ErrorIs(t, err, apperrors.ErrPresentation)
	require.Eventually(t, func() bool { return l.ActiveCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestLauncher_EmptyCreator(t *testing.T) {
	t.Parallel()

	l, _ := newTestLauncher(t)
	var ps presenterSet

	_, err := l.Create(context.Background(), match.CreateRequest{Scope: testScope, Presenter: ps.factory})
	assert.Error(t, err)
	assert.Zero(t, l.ActiveCount())
}

func TestLauncher_CloseAndWait(t *testing.T) {
	t.Parallel()

	l, _ := newTestLauncher(t)
	var ps presenterSet

	s, err := l.Create(context.Background(), match.CreateRequest{Scope: testScope, Creator: alice, Presenter: ps.factory})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Wait(ctx), context.DeadlineExceeded, "match still running")

	l.Close()
	ctx2, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel2()
	require.NoError(t, l.Wait(ctx2))

	assert.Zero(t, l.ActiveCount())
	assert.True(t, ps.get(s.ID).TornDown())

	_, err = l.Create(context.Background(), match.CreateRequest{Scope: testScope, Creator: bob, Presenter: ps.factory})
	assert.ErrorIs(t, err, apperrors.ErrBusClosed)
}

func TestLauncher_MatchRunsToCompletion(t *testing.T) {
	t.Parallel()

	l, b := newTestLauncher(t)
	var ps presenterSet
	white := match.White

	s, err := l.Create(context.Background(), match.CreateRequest{Scope: testScope, Creator: alice, Presenter: ps.factory, Color: &white})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, protocol.NewEnvelope(testScope, protocol.JoinMatch{Target: alice, Joiner: bob})))
	require.NoError(t, b.Publish(ctx, protocol.NewEnvelope(testScope, protocol.Resign{Mover: alice})))

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, l.Wait(waitCtx))

	p := ps.get(s.ID)
	assert.True(t, p.Announced("alice (White) resigned. Black wins. GG."))
	assert.True(t, p.TornDown())
}

type slowPresenter struct {
	*testutil.RecordingPresenter
	delay time.Duration
}

func (p *slowPresenter) CreateSurface(ctx context.Context, s match.Surface) error {
	time.Sleep(p.delay)
	return p.RecordingPresenter.CreateSurface(ctx, s)
}

func TestLauncher_CreateDeadlineCancelsSession(t *testing.T) {
	t.Parallel()

	l, b := newTestLauncher(t)
	presenter := &slowPresenter{RecordingPresenter: testutil.NewRecordingPresenter(), delay: 200 * time.Millisecond}
	factory := func(match.Surface) match.Presenter { return presenter }

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := l.Create(ctx, match.CreateRequest{Scope: testScope, Creator: alice, Presenter: factory})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Eventually(t, func() bool { return l.ActiveCount() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, presenter.TornDown(), "surface opened after the deadline is torn down")

	busy, err := match.AlreadyInMatch(context.Background(), b, testScope, alice, 50*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, busy, "creator can retry after a failed create")
}
