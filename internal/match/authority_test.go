package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palemoky/threadrook/internal/apperrors"
	"github.com/palemoky/threadrook/internal/protocol"
)

var (
	alice = protocol.Identity{ID: "u1", Name: "alice"}
	bob   = protocol.Identity{ID: "u2", Name: "bob"}
	carol = protocol.Identity{ID: "u3", Name: "carol"}
)

func playingSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession("m1", "g1", alice, Black, DefaultSettings(), nil)
	s.Players[SlotSecond].Identity = bob
	s.State = StatePlaying
	return s
}

func TestNewSession(t *testing.T) {
	t.Parallel()

	s := NewSession("m1", "g1", alice, Black, DefaultSettings(), "start")

	assert.Equal(t, StateWaitingForOpponent, s.State)
	assert.Equal(t, White, s.Acting)
	assert.Equal(t, 90, s.JoinDeadline)
	assert.Equal(t, Clock{White: 300, Black: 300}, s.Clock)
	assert.Equal(t, Black, s.Creator().Color)
	assert.Equal(t, White, s.Players[SlotSecond].Color)
	assert.False(t, s.Players[SlotSecond].Joined())
	assert.Equal(t, "start", s.Position)
}

func TestResolveParticipant(t *testing.T) {
	t.Parallel()

	s := playingSession(t)

	tests := []struct {
		name    string
		id      protocol.Identity
		slot    Slot
		wantErr error
	}{
		{"creator", alice, SlotFirst, nil},
		{"joiner", bob, SlotSecond, nil},
		{"same id other name", protocol.Identity{ID: "u2", Name: "renamed"}, SlotSecond, nil},
		{"stranger", carol, 0, apperrors.ErrNotParticipant},
		{"zero identity", protocol.Identity{}, 0, apperrors.ErrNotParticipant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := ResolveParticipant(tt.id, s)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.slot, p.Slot)
		})
	}
}

func TestResolveParticipant_EmptySecondSlot(t *testing.T) {
	t.Parallel()

	s := NewSession("m1", "g1", alice, White, DefaultSettings(), nil)
	_, err := ResolveParticipant(protocol.Identity{}, s)
	assert.ErrorIs(t, err, apperrors.ErrNotParticipant)
}

func TestIsEntitledToAct(t *testing.T) {
	t.Parallel()

	s := playingSession(t)
	creator, joiner := s.Players[SlotFirst], s.Players[SlotSecond]

	assert.False(t, IsEntitledToAct(creator, s), "creator plays black")
	assert.True(t, IsEntitledToAct(joiner, s))

	s.Acting = Black
	assert.True(t, IsEntitledToAct(creator, s))
	assert.False(t, IsEntitledToAct(joiner, s))

	s.State = StateGameOver
	assert.False(t, IsEntitledToAct(creator, s))
}

func TestIsLegalMove(t *testing.T) {
	t.Parallel()

	legal := []string{"e2e4", "g1f3", "a7a8q"}
	assert.True(t, IsLegalMove("e2e4", legal))
	assert.True(t, IsLegalMove("a7a8q", legal))
	assert.False(t, IsLegalMove("a7a8", legal))
	assert.False(t, IsLegalMove("E2E4", legal))
	assert.False(t, IsLegalMove("", legal))
	assert.False(t, IsLegalMove("e2e4", nil))
}

func TestAuthorityDoesNotMutate(t *testing.T) {
	t.Parallel()

	s := playingSession(t)
	before := *s

	_, _ = ResolveParticipant(carol, s)
	_ = IsEntitledToAct(s.Players[0], s)
	_ = IsLegalMove("e2e4", []string{"e2e4"})

	assert.Equal(t, before, *s)
}

func TestColorAndClock(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Black, White.Opposite())
	assert.Equal(t, White, Black.Opposite())
	assert.Equal(t, "White", White.String())

	c := Clock{White: 2, Black: 5}
	assert.Equal(t, 1, c.Tick(White))
	assert.Equal(t, 1, c.Remaining(White))
	assert.Equal(t, 5, c.Remaining(Black))
	assert.Equal(t, 4, c.Tick(Black))
}

func TestRandomColor(t *testing.T) {
	t.Parallel()

	seen := map[Color]bool{}
	for range 200 {
		seen[RandomColor()] = true
	}
	assert.Len(t, seen, 2)
}

func TestTextRenderer(t *testing.T) {
	t.Parallel()

	var r TextRenderer
	assert.Equal(t, "Deadline for an opponent to join: 42", r.RenderClocks(ClockView{Waiting: true, JoinDeadline: 42}))
	assert.Equal(t, "alice (White) Time: 10\nbob (Black) Time: 7", r.RenderClocks(ClockView{Lines: []ClockLine{
		{Name: "alice", Color: White, Remaining: 10},
		{Name: "bob", Color: Black, Remaining: 7},
	}}))
	assert.Equal(t, "White's legal moves in the current position: _", r.RenderLegalMoves(White, nil))
	assert.Equal(t, "Black's legal moves in the current position:\ne7e5 g8f6", r.RenderLegalMoves(Black, []string{"e7e5", "g8f6"}))
	assert.Equal(t, "42", r.RenderPosition(42))
}
