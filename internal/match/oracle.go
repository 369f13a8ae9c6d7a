package match

// Position 棋局局面，由规则服务持有，协调器只负责传递
type Position any

// Oracle 规则服务
type Oracle interface {
	InitialPosition() Position
	// LegalMoves 返回当前行动方的全部合法着法
	LegalMoves(pos Position) []string
	// ApplyMove 只会以 LegalMoves 中的着法调用
	ApplyMove(pos Position, move string) (Position, error)
	IsCheckmate(pos Position) bool
	IsStalemate(pos Position) bool
}
