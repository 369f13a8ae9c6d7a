package codec

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/palemoky/threadrook/internal/protocol"
)

// FrameKind 跨进程总线帧类型
type FrameKind uint8

const (
	FrameCommand FrameKind = iota + 1 // 总线命令
	FrameReply                        // 查询回复
)

// Frame 跨进程传输的总线帧。
// 回复通道无法跨进程传输，查询命令用 ReplyID 关联回复。
type Frame struct {
	Kind     FrameKind            `cbor:"1,keyasint"`
	Origin   string               `cbor:"2,keyasint,omitempty"`
	Scope    protocol.ScopeID     `cbor:"3,keyasint,omitempty"`
	Command  protocol.CommandType `cbor:"4,keyasint,omitempty"`
	Actor    wireIdentity         `cbor:"5,keyasint"`
	Target   wireIdentity         `cbor:"6,keyasint"`
	Move     string               `cbor:"7,keyasint,omitempty"`
	Match    string               `cbor:"8,keyasint,omitempty"`
	ReplyID  string               `cbor:"9,keyasint,omitempty"`
	Answered bool                 `cbor:"10,keyasint,omitempty"`
}

type wireIdentity struct {
	ID   string `cbor:"1,keyasint,omitempty"`
	Name string `cbor:"2,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	// 确定性编码：相同的帧总是得到相同的字节
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

func toWire(id protocol.Identity) wireIdentity {
	return wireIdentity{ID: id.ID, Name: id.Name}
}

func (w wireIdentity) identity() protocol.Identity {
	return protocol.Identity{ID: w.ID, Name: w.Name}
}

// NewCommandFrame 把信封转换为总线帧
func NewCommandFrame(origin string, env protocol.Envelope, replyID string) (*Frame, error) {
	if env.Command == nil {
		return nil, errors.New("信封缺少命令")
	}
	f := &Frame{
		Kind:    FrameCommand,
		Origin:  origin,
		Scope:   env.Scope,
		Command: env.Command.Type(),
	}
	switch cmd := env.Command.(type) {
	case protocol.JoinMatch:
		f.Actor = toWire(cmd.Joiner)
		f.Target = toWire(cmd.Target)
	case protocol.MakeMove:
		f.Actor = toWire(cmd.Mover)
		f.Move = cmd.Move
	case protocol.Resign:
		f.Actor = toWire(cmd.Mover)
	case protocol.VerifyIfAlreadyInMatch:
		f.Actor = toWire(cmd.Identity)
		f.ReplyID = replyID
	case protocol.TimeTick:
		f.Match = cmd.Match
	default:
		return nil, fmt.Errorf("未知命令类型: %s", env.Command.Type())
	}
	return f, nil
}

// NewReplyFrame 创建肯定的查询回复帧
func NewReplyFrame(origin, replyID string) *Frame {
	return &Frame{
		Kind:     FrameReply,
		Origin:   origin,
		ReplyID:  replyID,
		Answered: true,
	}
}

// Envelope 把命令帧还原为信封，reply 用作查询命令的本地回复通道
func (f *Frame) Envelope(reply chan<- bool) (protocol.Envelope, error) {
	if f.Kind != FrameCommand {
		return protocol.Envelope{}, fmt.Errorf("帧类型 %d 不是命令", f.Kind)
	}
	var cmd protocol.Command
	switch f.Command {
	case protocol.CmdJoinMatch:
		cmd = protocol.JoinMatch{Target: f.Target.identity(), Joiner: f.Actor.identity()}
	case protocol.CmdMakeMove:
		cmd = protocol.MakeMove{Mover: f.Actor.identity(), Move: f.Move}
	case protocol.CmdResign:
		cmd = protocol.Resign{Mover: f.Actor.identity()}
	case protocol.CmdVerifyIfAlreadyInMatch:
		cmd = protocol.VerifyIfAlreadyInMatch{Identity: f.Actor.identity(), Reply: reply}
	case protocol.CmdTimeTick:
		cmd = protocol.TimeTick{Match: f.Match}
	default:
		return protocol.Envelope{}, fmt.Errorf("未知命令类型: %q", f.Command)
	}
	return protocol.NewEnvelope(f.Scope, cmd), nil
}

// MarshalFrame 编码总线帧
func MarshalFrame(f *Frame) ([]byte, error) {
	return encMode.Marshal(f)
}

// UnmarshalFrame 解码总线帧
func UnmarshalFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := decMode.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("解码总线帧失败: %w", err)
	}
	return &f, nil
}
