package server

import (
	"log"
	"net/http"

	"github.com/palemoky/threadrook/internal/protocol"
	"github.com/palemoky/threadrook/internal/protocol/codec"
)

// defaultGroup 未指定分组时使用
const defaultGroup protocol.ScopeID = "lobby"

// handleWebSocket 处理 WebSocket 连接：/ws?group=<分组>&name=<显示名>
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientIP := GetClientIP(r)

	if s.IsMaintenanceMode() {
		log.Printf("🔧 维护模式，拒绝新连接: %s", clientIP)
		http.Error(w, "Server is under maintenance, please try again later", http.StatusServiceUnavailable)
		return
	}

	// 连接数限制，连接断开后释放
	select {
	case s.semaphore <- struct{}{}:
	default:
		log.Printf("🚫 达到最大连接数限制 (%d), IP: %s", s.maxConnections, clientIP)
		http.Error(w, "Server Full", http.StatusServiceUnavailable)
		return
	}

	if !s.originChecker.Check(r) {
		<-s.semaphore
		log.Printf("🚫 来源验证失败: %s (IP: %s)", r.Header.Get("Origin"), clientIP)
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		<-s.semaphore
		log.Printf("WebSocket 升级失败: %v", err)
		return
	}

	group := protocol.ScopeID(r.URL.Query().Get("group"))
	if group == "" {
		group = defaultGroup
	}
	client := NewClient(s, conn, group, r.URL.Query().Get("name"))
	client.IP = clientIP
	s.registerClient(client)

	client.SendMessage(codec.MustNewMessage(protocol.MsgConnected, protocol.ConnectedPayload{
		PlayerID:   client.ID,
		PlayerName: client.Name,
		Group:      string(client.Group),
	}))

	log.Printf("✅ 参与者 %s (%s) 已连接到分组 %s", client.Name, client.ID, client.Group)

	go client.ReadPump()
	go client.WritePump()
}

// handleHealth 健康检查接口
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// registerClient 注册客户端
func (s *Server) registerClient(client *Client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.clients[client.ID] = client
}

// unregisterClient 注销客户端并释放连接名额
func (s *Server) unregisterClient(client *Client) {
	s.clientsMu.Lock()
	_, ok := s.clients[client.ID]
	delete(s.clients, client.ID)
	s.clientsMu.Unlock()

	if !ok {
		return
	}
	client.Close()
	select {
	case <-s.semaphore:
	default:
	}
	log.Printf("❌ 参与者 %s (%s) 已断开", client.Name, client.ID)
}

// identityOf 按 ID 查找本地客户端身份，找不到时只保留 ID
func (s *Server) identityOf(id string) protocol.Identity {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	if c, ok := s.clients[id]; ok {
		return c.Identity()
	}
	return protocol.Identity{ID: id}
}
