package protocol

// 错误码
const (
	ErrCodeUnknown     = 1000
	ErrCodeInvalidMsg  = 1001
	ErrCodeRateLimit   = 1002 // 速率限制
	ErrCodeMaintenance = 1003 // 服务器维护中

	ErrCodeAlreadyInMatch  = 2001
	ErrCodeMatchInProgress = 2002
	ErrCodeOwnMatch        = 2003

	ErrCodeNotParticipant = 3001
	ErrCodeNotYourTurn    = 3002
	ErrCodeIllegalMove    = 3003

	ErrCodeInvariant          = 5001
	ErrCodeBusClosed          = 5002
	ErrCodeSubscriptionClosed = 5003
	ErrCodePresentation       = 5004
)

// ErrorMessages 错误码对应的消息
var ErrorMessages = map[int]string{
	ErrCodeUnknown:            "Unknown error.",
	ErrCodeInvalidMsg:         "Invalid message format.",
	ErrCodeRateLimit:          "Too many requests, slow down.",
	ErrCodeMaintenance:        "Server is under maintenance, no new matches can be created.",
	ErrCodeAlreadyInMatch:     "You are already in a match. Only a single match at a time per group is supported.",
	ErrCodeMatchInProgress:    "That match is already in progress.",
	ErrCodeOwnMatch:           "You cannot join your own match.",
	ErrCodeNotParticipant:     "You are not a player in this match.",
	ErrCodeNotYourTurn:        "It is not your turn.",
	ErrCodeIllegalMove:        "That is not a legal move. Use `move_guide` for help.",
	ErrCodeInvariant:          "Match state invariant violated.",
	ErrCodeBusClosed:          "Event bus is unavailable.",
	ErrCodeSubscriptionClosed: "Match subscription closed.",
	ErrCodePresentation:       "Match presentation failed.",
}
