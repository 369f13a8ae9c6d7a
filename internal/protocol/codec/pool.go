package codec

import (
	"bytes"
	"sync"

	"github.com/palemoky/threadrook/internal/protocol"
)

// 网关每条下发消息都要编码一次，复用消息和缓冲区
var (
	messagePool = sync.Pool{New: func() any { return &protocol.Message{} }}
	bufferPool  = sync.Pool{New: func() any { return new(bytes.Buffer) }}
)

// GetMessage 从池中取一个空消息
func GetMessage() *protocol.Message {
	return messagePool.Get().(*protocol.Message)
}

// PutMessage 清空字段后放回池中，nil 忽略
func PutMessage(msg *protocol.Message) {
	if msg == nil {
		return
	}
	*msg = protocol.Message{}
	messagePool.Put(msg)
}

// GetBuffer 从池中取一个缓冲区
func GetBuffer() *bytes.Buffer {
	return bufferPool.Get().(*bytes.Buffer)
}

// PutBuffer 重置后放回池中，保留容量
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}
