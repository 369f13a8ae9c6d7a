package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/palemoky/threadrook/internal/apperrors"
	"github.com/palemoky/threadrook/internal/bus"
	"github.com/palemoky/threadrook/internal/logger"
	"github.com/palemoky/threadrook/internal/match"
	"github.com/palemoky/threadrook/internal/protocol"
	"github.com/palemoky/threadrook/internal/protocol/codec"
)

// createGrace 创建请求在查询超时之外额外等待会话就绪的时间
const createGrace = 5 * time.Second

// Sender 处理器可见的客户端
type Sender interface {
	Identity() protocol.Identity
	GroupID() protocol.ScopeID
	SendMessage(msg *protocol.Message)
}

// GroupID 客户端所在分组
func (c *Client) GroupID() protocol.ScopeID {
	return c.Group
}

// handlerFunc 统一的处理器函数签名
type handlerFunc func(client Sender, msg *protocol.Message)

// Handler 把客户端消息转换为总线命令
type Handler struct {
	server       *Server
	bus          bus.Bus
	launcher     *match.Launcher
	queryTimeout time.Duration
	handlers     map[protocol.MessageType]handlerFunc
}

// NewHandler 创建处理器
func NewHandler(s *Server, b bus.Bus, launcher *match.Launcher, queryTimeout time.Duration) *Handler {
	h := &Handler{
		server:       s,
		bus:          b,
		launcher:     launcher,
		queryTimeout: queryTimeout,
	}
	h.initHandlers()
	return h
}

// initHandlers 初始化消息处理器映射
func (h *Handler) initHandlers() {
	h.handlers = map[protocol.MessageType]handlerFunc{
		protocol.MsgPing:        h.handlePing,
		protocol.MsgCreateMatch: func(c Sender, _ *protocol.Message) { h.handleCreateMatch(c) },
		protocol.MsgJoinMatch:   h.handleJoinMatch,
		protocol.MsgMakeMove:    h.handleMakeMove,
		protocol.MsgResign:      func(c Sender, _ *protocol.Message) { h.handleResign(c) },
		protocol.MsgMoveGuide:   func(c Sender, _ *protocol.Message) { notice(c, match.MoveGuide) },
	}
}

// Handle 处理消息
func (h *Handler) Handle(client Sender, msg *protocol.Message) {
	if handler, ok := h.handlers[msg.Type]; ok {
		handler(client, msg)
		return
	}

	log.Printf("⚠️  未知消息类型: '%s' (来自: %s)", msg.Type, client.Identity())
	client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
}

func (h *Handler) handlePing(client Sender, msg *protocol.Message) {
	payload, err := codec.ParsePayload[protocol.PingPayload](msg)
	if err != nil {
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}
	client.SendMessage(codec.MustNewMessage(protocol.MsgPong, protocol.PongPayload{
		ClientTimestamp: payload.Timestamp,
		ServerTimestamp: time.Now().UnixMilli(),
	}))
}

// handleCreateMatch 查询创建者是否已在对局中，否则启动新会话。
// 查询最多等待 queryTimeout，放到独立协程中避免阻塞读循环。
func (h *Handler) handleCreateMatch(client Sender) {
	if h.server.IsMaintenanceMode() {
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeMaintenance))
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.LogPanic(r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), h.queryTimeout+createGrace)
		defer cancel()

		s, err := h.launcher.Create(ctx, match.CreateRequest{
			Scope:     client.GroupID(),
			Creator:   client.Identity(),
			Presenter: h.server.NewGroupPresenter,
		})
		switch {
		case errors.Is(err, apperrors.ErrAlreadyInMatch):
			client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeAlreadyInMatch))
		case err != nil:
			log.Printf("❌ %s 创建对局失败: %v", client.Identity(), err)
			client.SendMessage(codec.NewErrorMessage(apperrors.Code(err)))
		default:
			notice(client, fmt.Sprintf("Creating match... (id %s)", s.ID))
		}
	}()
}

func (h *Handler) handleJoinMatch(client Sender, msg *protocol.Message) {
	payload, err := codec.ParsePayload[protocol.JoinMatchPayload](msg)
	if err != nil || payload.TargetID == "" {
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	target := h.server.identityOf(payload.TargetID)
	notice(client, fmt.Sprintf("Joining %s's match...", target))
	h.publish(client, protocol.JoinMatch{Target: target, Joiner: client.Identity()})
}

func (h *Handler) handleMakeMove(client Sender, msg *protocol.Message) {
	payload, err := codec.ParsePayload[protocol.MakeMovePayload](msg)
	if err != nil {
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	move := strings.ToLower(strings.TrimSpace(payload.Move))
	if move == "" {
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}
	notice(client, fmt.Sprintf("Making move: %s...", move))
	h.publish(client, protocol.MakeMove{Mover: client.Identity(), Move: move})
}

func (h *Handler) handleResign(client Sender) {
	notice(client, "Resigning...")
	h.publish(client, protocol.Resign{Mover: client.Identity()})
}

// publish 发布到客户端所在分组
func (h *Handler) publish(client Sender, cmd protocol.Command) {
	if err := h.bus.Publish(context.Background(), protocol.NewEnvelope(client.GroupID(), cmd)); err != nil {
		log.Printf("❌ 发布 %s 失败: %v", cmd.Type(), err)
		client.SendMessage(codec.NewErrorMessage(protocol.ErrCodeBusClosed))
	}
}

func notice(client Sender, text string) {
	client.SendMessage(codec.MustNewMessage(protocol.MsgNotice, protocol.NoticePayload{Text: text}))
}
