package match

import (
	"context"
	"fmt"
	"log"

	"github.com/palemoky/threadrook/internal/apperrors"
	"github.com/palemoky/threadrook/internal/protocol"
)

// --- 等待对手 ---

func (c *Coordinator) handleWaiting(ctx context.Context, cmd protocol.Command) error {
	s := c.session

	switch cmd := cmd.(type) {
	case protocol.JoinMatch:
		return c.join(ctx, cmd)

	case protocol.VerifyIfAlreadyInMatch:
		if cmd.Identity.Is(s.Creator().Identity) {
			cmd.Answer()
		}

	case protocol.TimeTick:
		if !c.ownsTick(cmd) {
			return nil
		}
		s.JoinDeadline--
		if err := c.update(ctx, PanelClock, c.presenter.RenderClocks(c.clockView())); err != nil {
			return err
		}
		if s.JoinDeadline <= 0 {
			c.ticker.Stop()
			log.Printf("⏰ 对局 %s 无人加入，已超时", s.ID)
			return c.finish(ctx, Result{Reason: EndNoOpponent}, "Nobody joined the match in time.")
		}
	}
	return nil
}

func (c *Coordinator) join(ctx context.Context, cmd protocol.JoinMatch) error {
	s := c.session
	creator := s.Creator()

	if !cmd.Target.Is(creator.Identity) || cmd.Joiner.IsZero() {
		return nil
	}
	if cmd.Joiner.Is(creator.Identity) {
		return c.reject(ctx, cmd.Joiner, apperrors.ErrOwnMatch)
	}
	if s.Players[SlotSecond].Joined() {
		return nil
	}

	s.Players[SlotSecond].Identity = cmd.Joiner
	log.Printf("👤 %s 加入了对局 %s", cmd.Joiner, s.ID)
	if err := c.announce(ctx, fmt.Sprintf("%s just joined", cmd.Joiner)); err != nil {
		return err
	}
	if err := c.transition(StatePlaying); err != nil {
		return err
	}
	return c.startPlaying(ctx)
}

// startPlaying 开始回合循环，白方先走
func (c *Coordinator) startPlaying(ctx context.Context) error {
	s := c.session
	s.Acting = White

	if err := c.announce(ctx, "The match has now started!"); err != nil {
		return err
	}
	if err := c.update(ctx, PanelClock, c.presenter.RenderClocks(c.clockView())); err != nil {
		return err
	}
	legal := c.oracle.LegalMoves(s.Position)
	return c.update(ctx, PanelMoves, c.presenter.RenderLegalMoves(s.Acting, legal))
}

// --- 对局中 ---

func (c *Coordinator) handlePlaying(ctx context.Context, cmd protocol.Command) error {
	s := c.session

	switch cmd := cmd.(type) {
	case protocol.MakeMove:
		return c.move(ctx, cmd)

	case protocol.Resign:
		return c.resign(ctx, cmd)

	case protocol.VerifyIfAlreadyInMatch:
		if _, err := ResolveParticipant(cmd.Identity, s); err == nil {
			cmd.Answer()
		}

	case protocol.TimeTick:
		return c.tick(ctx, cmd)

	case protocol.JoinMatch:
		// 只处理发给本会话的加入请求
		if _, err := ResolveParticipant(cmd.Target, s); err == nil {
			return c.reject(ctx, cmd.Joiner, apperrors.ErrMatchInProgress)
		}
	}
	return nil
}

func (c *Coordinator) move(ctx context.Context, cmd protocol.MakeMove) error {
	s := c.session

	mover, err := ResolveParticipant(cmd.Mover, s)
	if err != nil {
		return c.reject(ctx, cmd.Mover, err)
	}
	if !IsEntitledToAct(mover, s) {
		return c.reject(ctx, cmd.Mover, apperrors.ErrNotYourTurn)
	}
	if !IsLegalMove(cmd.Move, c.oracle.LegalMoves(s.Position)) {
		log.Printf("🚫 对局 %s 拒绝 %s 的非法着法 %q", s.ID, cmd.Mover, cmd.Move)
		return c.announce(ctx, fmt.Sprintf("%s is not a legal move. Use `move_guide` for help.", cmd.Move))
	}

	next, err := c.oracle.ApplyMove(s.Position, cmd.Move)
	if err != nil {
		return fmt.Errorf("%w: apply legal move %q: %w", apperrors.ErrInvariant, cmd.Move, err)
	}
	s.Position = next

	if err := c.update(ctx, PanelBoard, c.presenter.RenderPosition(next)); err != nil {
		return err
	}
	if err := c.announce(ctx, fmt.Sprintf("%s (%s) made the move %s.", mover.Identity, mover.Color, cmd.Move)); err != nil {
		return err
	}

	opponent := s.ByColor(mover.Color.Opposite())
	if c.oracle.IsCheckmate(next) {
		c.ticker.Stop()
		return c.finish(ctx, Result{Reason: EndCheckmate, Winner: mover.Color, HasWinner: true},
			fmt.Sprintf("%s checkmated %s. GG.", mover.Identity, opponent.Identity))
	}
	if c.oracle.IsStalemate(next) {
		c.ticker.Stop()
		return c.finish(ctx, Result{Reason: EndStalemate},
			fmt.Sprintf("%s caused a stalemate with %s. GG.", mover.Identity, opponent.Identity))
	}

	s.Acting = s.Acting.Opposite()
	return c.update(ctx, PanelMoves, c.presenter.RenderLegalMoves(s.Acting, c.oracle.LegalMoves(next)))
}

func (c *Coordinator) resign(ctx context.Context, cmd protocol.Resign) error {
	s := c.session

	p, err := ResolveParticipant(cmd.Mover, s)
	if err != nil {
		return c.reject(ctx, cmd.Mover, err)
	}

	winner := p.Color.Opposite()
	c.ticker.Stop()
	log.Printf("🏳️ %s 在对局 %s 中认输", p.Identity, s.ID)
	return c.finish(ctx, Result{Reason: EndResignation, Winner: winner, HasWinner: true},
		fmt.Sprintf("%s (%s) resigned. %s wins. GG.", p.Identity, p.Color, winner))
}

func (c *Coordinator) tick(ctx context.Context, cmd protocol.TimeTick) error {
	if !c.ownsTick(cmd) {
		return nil
	}
	s := c.session

	remaining := s.Clock.Tick(s.Acting)
	if err := c.update(ctx, PanelClock, c.presenter.RenderClocks(c.clockView())); err != nil {
		return err
	}
	if remaining > 0 {
		return nil
	}

	loser := s.Acting
	c.ticker.Stop()
	log.Printf("⏰ 对局 %s: %s 超时", s.ID, loser)
	return c.finish(ctx, Result{Reason: EndTimeForfeit, Winner: loser.Opposite(), HasWinner: true},
		fmt.Sprintf("%s just lost on time. %s wins. GG.", loser, loser.Opposite()))
}
