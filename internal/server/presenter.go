package server

import (
	"context"

	"github.com/palemoky/threadrook/internal/match"
	"github.com/palemoky/threadrook/internal/protocol"
	"github.com/palemoky/threadrook/internal/protocol/codec"
)

// groupPresenter 把对局展示区广播给分组内所有本地客户端
type groupPresenter struct {
	match.TextRenderer

	server  *Server
	surface match.Surface
}

// NewGroupPresenter 为对局创建分组展示层，可直接作为 match.PresenterFactory
func (s *Server) NewGroupPresenter(surface match.Surface) match.Presenter {
	return &groupPresenter{server: s, surface: surface}
}

func (p *groupPresenter) CreateSurface(_ context.Context, surface match.Surface) error {
	p.surface = surface
	return p.broadcast(protocol.MsgSurfaceOpen, protocol.SurfacePayload{
		MatchID:     surface.MatchID,
		CreatorID:   surface.Creator.ID,
		CreatorName: surface.Creator.Name,
	})
}

func (p *groupPresenter) Announce(_ context.Context, text string) error {
	return p.broadcast(protocol.MsgAnnounce, protocol.AnnouncePayload{
		MatchID: p.surface.MatchID,
		Text:    text,
	})
}

func (p *groupPresenter) Update(_ context.Context, panel match.Panel, text string) error {
	return p.broadcast(protocol.MsgPanel, protocol.PanelPayload{
		MatchID: p.surface.MatchID,
		Panel:   panel.String(),
		Text:    text,
	})
}

func (p *groupPresenter) TeardownSurface(_ context.Context) error {
	return p.broadcast(protocol.MsgSurfaceClose, protocol.SurfacePayload{MatchID: p.surface.MatchID})
}

// broadcast 分组内没有客户端不算失败
func (p *groupPresenter) broadcast(t protocol.MessageType, payload any) error {
	msg, err := codec.NewMessage(t, payload)
	if err != nil {
		return err
	}
	p.server.BroadcastToGroup(p.surface.Scope, msg)
	return nil
}
