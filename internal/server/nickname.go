package server

import "math/rand/v2"

// 昵称词库
var (
	adjectives = []string{
		"Bold", "Quiet", "Swift", "Patient", "Sly",
		"Brave", "Clever", "Grand", "Lucky", "Stern",
		"Daring", "Calm", "Sharp", "Gentle", "Fierce",
	}

	pieces = []string{
		"Pawn", "Knight", "Bishop", "Rook", "Queen", "King",
		"Gambit", "Castle", "Fianchetto", "Zugzwang",
	}
)

// GenerateNickname 生成随机昵称
func GenerateNickname() string {
	return adjectives[rand.IntN(len(adjectives))] + pieces[rand.IntN(len(pieces))]
}
