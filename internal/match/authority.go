package match

import (
	"slices"

	"github.com/palemoky/threadrook/internal/apperrors"
	"github.com/palemoky/threadrook/internal/protocol"
)

// 回合裁决：纯函数，不修改会话

// ResolveParticipant 按身份查找参与者，不是参与者时返回 ErrNotParticipant
func ResolveParticipant(id protocol.Identity, s *Session) (Participant, error) {
	for _, p := range s.Players {
		if p.Joined() && p.Identity.Is(id) {
			return p, nil
		}
	}
	return Participant{}, apperrors.ErrNotParticipant
}

// IsEntitledToAct 参与者是否为当前行动方
func IsEntitledToAct(p Participant, s *Session) bool {
	return s.State == StatePlaying && p.Color == s.Acting
}

// IsLegalMove 着法是否在合法着法集合中
func IsLegalMove(move string, legal []string) bool {
	return move != "" && slices.Contains(legal, move)
}
