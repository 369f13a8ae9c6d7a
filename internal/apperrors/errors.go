package apperrors

import (
	"errors"

	"github.com/palemoky/threadrook/internal/protocol"
)

// MatchError 对局错误（会话协调器与网关共享）
type MatchError struct {
	Code    int
	Message string
}

func (e *MatchError) Error() string {
	return e.Message
}

func newError(code int) *MatchError {
	return &MatchError{Code: code, Message: protocol.ErrorMessages[code]}
}

// 输入被拒绝：在会话内提示发起者，不修改状态
var (
	ErrNotParticipant  = newError(protocol.ErrCodeNotParticipant)
	ErrNotYourTurn     = newError(protocol.ErrCodeNotYourTurn)
	ErrIllegalMove     = newError(protocol.ErrCodeIllegalMove)
	ErrMatchInProgress = newError(protocol.ErrCodeMatchInProgress)
	ErrOwnMatch        = newError(protocol.ErrCodeOwnMatch)
	ErrAlreadyInMatch  = newError(protocol.ErrCodeAlreadyInMatch)
)

// 致命错误：终止所在会话
var (
	ErrInvariant          = newError(protocol.ErrCodeInvariant)
	ErrBusClosed          = newError(protocol.ErrCodeBusClosed)
	ErrSubscriptionClosed = newError(protocol.ErrCodeSubscriptionClosed)
	ErrPresentation       = newError(protocol.ErrCodePresentation)
)

// IsRejected 是否为可恢复的输入拒绝错误
func IsRejected(err error) bool {
	var me *MatchError
	if !errors.As(err, &me) {
		return false
	}
	return me.Code >= protocol.ErrCodeAlreadyInMatch && me.Code < protocol.ErrCodeInvariant
}

// IsFatal 是否为会话级致命错误
func IsFatal(err error) bool {
	var me *MatchError
	if !errors.As(err, &me) {
		return false
	}
	return me.Code >= protocol.ErrCodeInvariant
}

// Code 提取错误码，非 MatchError 返回未知错误码
func Code(err error) int {
	var me *MatchError
	if errors.As(err, &me) {
		return me.Code
	}
	return protocol.ErrCodeUnknown
}
