// Package server 提供 WebSocket 网关：把客户端输入转换为总线命令，
// 并把对局展示区的输出广播给同一分组的客户端。
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/palemoky/threadrook/internal/bus"
	"github.com/palemoky/threadrook/internal/config"
	"github.com/palemoky/threadrook/internal/match"
)

// Server WebSocket 网关
type Server struct {
	config   *config.Config
	bus      bus.Bus
	launcher *match.Launcher
	handler  *Handler
	upgrader websocket.Upgrader

	clients   map[string]*Client
	clientsMu sync.RWMutex

	// 安全组件
	originChecker  *OriginChecker
	messageLimiter *MessageRateLimiter

	// 连接控制
	maxConnections int
	semaphore      chan struct{}

	// 维护模式
	maintenanceMode bool
	maintenanceMu   sync.RWMutex

	httpServer *http.Server
}

// NewServer 创建网关
func NewServer(cfg *config.Config, b bus.Bus, launcher *match.Launcher) *Server {
	s := &Server{
		config:         cfg,
		bus:            b,
		launcher:       launcher,
		clients:        make(map[string]*Client),
		originChecker:  NewOriginChecker(cfg.Security.AllowedOrigins),
		messageLimiter: NewMessageRateLimiter(cfg.Security.MessageLimit.MaxPerSecond),
		maxConnections: cfg.Server.MaxConnections,
		semaphore:      make(chan struct{}, cfg.Server.MaxConnections),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.originChecker.Check,
	}
	s.handler = NewHandler(s, b, launcher, cfg.Match.QueryTimeoutDuration())
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second, // 防止 Slowloris 攻击
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("🔒 安全配置: 消息限制=%d/s, 最大连接数=%d", cfg.Security.MessageLimit.MaxPerSecond, cfg.Server.MaxConnections)
	return s
}

// Routes 返回网关的 HTTP 路由
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start 启动网关，ctx 取消后停止监控协程；阻塞直到 Shutdown
func (s *Server) Start(ctx context.Context) error {
	go s.monitorStats(ctx)

	log.Printf("🚀 网关启动在 ws://%s/ws (CPU核心数: %d)", s.httpServer.Addr, runtime.NumCPU())
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
