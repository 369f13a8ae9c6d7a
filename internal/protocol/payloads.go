package protocol

// --- 客户端请求 Payloads ---

// PingPayload 心跳请求
type PingPayload struct {
	Timestamp int64 `json:"timestamp"` // 客户端时间戳（毫秒）
}

// JoinMatchPayload 加入对局请求
type JoinMatchPayload struct {
	TargetID string `json:"target_id"` // 等待对手的创建者 ID
}

// MakeMovePayload 走棋请求
type MakeMovePayload struct {
	Move string `json:"move"` // 例如 e2e4、a7a8q
}

// --- 服务端响应 Payloads ---

// ConnectedPayload 连接成功响应
type ConnectedPayload struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Group      string `json:"group"`
}

// PongPayload 心跳响应
type PongPayload struct {
	ClientTimestamp int64 `json:"client_timestamp"`
	ServerTimestamp int64 `json:"server_timestamp"`
}

// NoticePayload 提示
type NoticePayload struct {
	Text string `json:"text"`
}

// SurfacePayload 对局展示区创建/关闭
type SurfacePayload struct {
	MatchID     string `json:"match_id"`
	CreatorID   string `json:"creator_id,omitempty"`
	CreatorName string `json:"creator_name,omitempty"`
}

// AnnouncePayload 对局内公告
type AnnouncePayload struct {
	MatchID string `json:"match_id"`
	Text    string `json:"text"`
}

// PanelPayload 置顶面板内容
type PanelPayload struct {
	MatchID string `json:"match_id"`
	Panel   string `json:"panel"` // board/clock/moves
	Text    string `json:"text"`
}

// ErrorPayload 错误响应
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
