package protocol

import "encoding/json"

// Message 网关与客户端之间的基础消息结构
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MessageType 消息类型
type MessageType string

// 客户端 → 服务端 消息类型
const (
	MsgPing        MessageType = "ping"         // 心跳 ping
	MsgCreateMatch MessageType = "create_match" // 创建对局
	MsgJoinMatch   MessageType = "join_match"   // 加入对局
	MsgMakeMove    MessageType = "make_move"    // 走棋
	MsgResign      MessageType = "resign"       // 认输
	MsgMoveGuide   MessageType = "move_guide"   // 走法记谱说明
)

// 服务端 → 客户端 消息类型
const (
	MsgConnected    MessageType = "connected"     // 连接成功
	MsgPong         MessageType = "pong"          // 心跳 pong
	MsgNotice       MessageType = "notice"        // 仅发给请求者的提示
	MsgSurfaceOpen  MessageType = "surface_open"  // 对局展示区创建
	MsgAnnounce     MessageType = "announce"      // 对局内公告
	MsgPanel        MessageType = "panel"         // 置顶面板更新
	MsgSurfaceClose MessageType = "surface_close" // 对局展示区关闭
	MsgError        MessageType = "error"         // 错误消息
)
