package server

import "github.com/palemoky/threadrook/internal/protocol"

// GetOnlineCount 获取在线人数
func (s *Server) GetOnlineCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Broadcast 广播消息给所有客户端
func (s *Server) Broadcast(msg *protocol.Message) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, client := range s.clients {
		client.SendMessage(msg)
	}
}

// BroadcastToGroup 广播消息给同一分组的客户端，返回收到的客户端数
func (s *Server) BroadcastToGroup(group protocol.ScopeID, msg *protocol.Message) int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	n := 0
	for _, client := range s.clients {
		if client.Group == group {
			client.SendMessage(msg)
			n++
		}
	}
	return n
}
