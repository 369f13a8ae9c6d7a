package server

import (
	"context"
	"log"
	"runtime"
	"time"

	"github.com/palemoky/threadrook/internal/protocol"
	"github.com/palemoky/threadrook/internal/protocol/codec"
)

// statsInterval 状态监控间隔
const statsInterval = 30 * time.Second

// monitorStats 定期记录服务器状态，直到 ctx 取消
func (s *Server) monitorStats(ctx context.Context) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		log.Printf("📊 [监控] 在线: %d | 对局: %d | Goroutines: %d | 活跃连接: %d/%d | 内存: %.2f MB",
			s.GetOnlineCount(),
			s.launcher.ActiveCount(),
			runtime.NumGoroutine(),
			len(s.semaphore),
			s.maxConnections,
			float64(m.Alloc)/1024/1024)
	}
}

// EnterMaintenanceMode 进入维护模式：拒绝新连接和新对局
func (s *Server) EnterMaintenanceMode() {
	s.maintenanceMu.Lock()
	s.maintenanceMode = true
	s.maintenanceMu.Unlock()

	s.Broadcast(codec.NewErrorMessage(protocol.ErrCodeMaintenance))
	log.Println("🔧 进入维护模式：停止新连接和对局创建")
}

// IsMaintenanceMode 检查是否在维护模式
func (s *Server) IsMaintenanceMode() bool {
	s.maintenanceMu.RLock()
	defer s.maintenanceMu.RUnlock()
	return s.maintenanceMode
}

// GracefulShutdown 进入维护模式，等待进行中的对局结束（最多 timeout），然后关闭网关
func (s *Server) GracefulShutdown(timeout time.Duration) {
	s.EnterMaintenanceMode()

	if n := s.launcher.ActiveCount(); n > 0 {
		log.Printf("⏳ 等待 %d 个对局结束...", n)
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.launcher.Wait(ctx); err != nil {
		log.Printf("⚠️ 超时，仍有 %d 个对局进行中，强制关闭", s.launcher.ActiveCount())
	}

	s.launcher.Close()
	s.Shutdown()
}

// Shutdown 停止 HTTP 服务并关闭所有客户端连接
func (s *Server) Shutdown() {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("⚠️ HTTP 服务关闭失败: %v", err)
		}
	}

	s.clientsMu.Lock()
	for _, client := range s.clients {
		client.Close()
	}
	s.clientsMu.Unlock()

	log.Println("网关已关闭")
}
