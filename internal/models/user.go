package models

// User is a chat player account. Accounts are created lazily on first
// interaction and never destroyed. Balance is in the smallest currency unit.
type User struct {
	ID       int64  `json:"id" redis:"id"`
	Username string `json:"username,omitempty" redis:"username"`

	Balance      int64 `json:"balance" redis:"balance"`
	BonusGranted bool  `json:"bonus_granted" redis:"bonus_granted"`

	Streak     int `json:"streak" redis:"streak"`
	BestStreak int `json:"best_streak" redis:"best_streak"`

	// History holds the user's most recent round outcomes, newest last.
	History []UserRoundRecord `json:"history,omitempty" redis:"history"`

	CreatedAt int64 `json:"created_at" redis:"created_at"`
	UpdatedAt int64 `json:"updated_at" redis:"updated_at"`
}

// UserRoundRecord is one resolved round from a single user's point of view.
type UserRoundRecord struct {
	RoundID int64 `json:"round_id"`
	Side    Side  `json:"side"`
	Stake   int64 `json:"stake"`
	Payout  int64 `json:"payout"`
	Won     bool  `json:"won"`
}
