package protocol

// ScopeID 会话所属分组标识（服务器/群组）
type ScopeID string

// Identity 参与者身份，总是以值拷贝的形式在命令中传递
type Identity struct {
	ID   string
	Name string
}

// Is 按 ID 比较两个身份，空身份不与任何身份相等
func (i Identity) Is(other Identity) bool {
	return i.ID != "" && i.ID == other.ID
}

// IsZero 身份是否未设置
func (i Identity) IsZero() bool {
	return i.ID == ""
}

func (i Identity) String() string {
	if i.Name != "" {
		return i.Name
	}
	return i.ID
}

// CommandType 总线命令类型
type CommandType string

const (
	CmdJoinMatch              CommandType = "join_match"
	CmdMakeMove               CommandType = "make_move"
	CmdResign                 CommandType = "resign"
	CmdVerifyIfAlreadyInMatch CommandType = "verify_if_already_in_match"
	CmdTimeTick               CommandType = "time_tick"
)

// Command 总线命令载荷
type Command interface {
	Type() CommandType
}

// JoinMatch 加入 Target 创建的对局
type JoinMatch struct {
	Target Identity
	Joiner Identity
}

// MakeMove 走一步棋
type MakeMove struct {
	Mover Identity
	Move  string
}

// Resign 认输
type Resign struct {
	Mover Identity
}

// VerifyIfAlreadyInMatch 查询某参与者是否已在对局中。
// Reply 由发布者独占，只会读取第一条回复。
type VerifyIfAlreadyInMatch struct {
	Identity Identity
	Reply    chan<- bool
}

// TimeTick 计时器滴答。
// Match 为空时同一分组内所有会话都会消费，否则只有对应会话消费。
type TimeTick struct {
	Match string
}

func (JoinMatch) Type() CommandType              { return CmdJoinMatch }
func (MakeMove) Type() CommandType               { return CmdMakeMove }
func (Resign) Type() CommandType                 { return CmdResign }
func (VerifyIfAlreadyInMatch) Type() CommandType { return CmdVerifyIfAlreadyInMatch }
func (TimeTick) Type() CommandType               { return CmdTimeTick }

// Answer 非阻塞地回复 true。
// 多个会话可能同时回复，回复通道容量为 1，多余的回复直接丢弃。
func (v VerifyIfAlreadyInMatch) Answer() bool {
	if v.Reply == nil {
		return false
	}
	select {
	case v.Reply <- true:
		return true
	default:
		return false
	}
}

// Envelope 总线消息信封，发布后不可修改
type Envelope struct {
	Scope   ScopeID
	Command Command
}

// NewEnvelope 创建信封
func NewEnvelope(scope ScopeID, cmd Command) Envelope {
	return Envelope{Scope: scope, Command: cmd}
}
