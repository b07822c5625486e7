package models

// Side is the binary outcome of a three-dice roll: Tài (over) for totals
// 11-17, Xỉu (under) for everything else.
type Side string

const (
	SideOver  Side = "over"
	SideUnder Side = "under"
)

func (s Side) Valid() bool {
	return s == SideOver || s == SideUnder
}

// SideOf maps a three-dice total to its winning side.
func SideOf(total int) Side {
	if total >= 11 && total <= 17 {
		return SideOver
	}
	return SideUnder
}

type RoundStatus string

const (
	RoundIdle   RoundStatus = "idle"
	RoundOpen   RoundStatus = "open"
	RoundClosed RoundStatus = "closed"
)

// RoundState is the persisted state of the round counter plus the
// admin-configured outcome overrides for the next resolution.
type RoundState struct {
	ID       int64       `json:"id" redis:"id"`
	Status   RoundStatus `json:"status" redis:"status"`
	ClosesAt int64       `json:"closes_at" redis:"closes_at"`

	// ForcedSide, when set, rigs the next roll. Cleared on resolution.
	ForcedSide Side `json:"forced_side,omitempty" redis:"forced_side"`

	// BiasOver, when set, is P(over) for the next rolls. It persists
	// across rounds until an admin clears it.
	BiasOver *float64 `json:"bias_over,omitempty" redis:"bias_over"`
}

// Bet is a single user's stake in a round. The stake is debited from the
// user's balance at placement time, so a bet carries value even before the
// round resolves.
type Bet struct {
	RoundID  int64 `json:"round_id" redis:"round_id"`
	UserID   int64 `json:"user_id" redis:"user_id"`
	Side     Side  `json:"side" redis:"side"`
	Stake    int64 `json:"stake" redis:"stake"`
	PlacedAt int64 `json:"placed_at" redis:"placed_at"`
}

// RoundResult is the immutable settlement record of one resolved round.
// Appended to the history log once and never mutated.
type RoundResult struct {
	RoundID   int64  `json:"round_id" redis:"round_id"`
	Timestamp int64  `json:"timestamp" redis:"timestamp"`
	Dice      [3]int `json:"dice" redis:"dice"`
	Total     int    `json:"total" redis:"total"`
	Side      Side   `json:"side" redis:"side"`

	Bets    map[int64]*Bet  `json:"bets" redis:"bets"`
	Payouts map[int64]int64 `json:"payouts" redis:"payouts"`

	PotBefore int64 `json:"pot_before" redis:"pot_before"`
	PotAfter  int64 `json:"pot_after" redis:"pot_after"`

	// JackpotPaid is the amount actually distributed from the pot on a
	// triple-1/triple-6 roll; JackpotShares is the per-winner split.
	JackpotPaid   int64           `json:"jackpot_paid" redis:"jackpot_paid"`
	JackpotShares map[int64]int64 `json:"jackpot_shares,omitempty" redis:"jackpot_shares"`
}

// Jackpot reports whether the dice triggered the full-pot payout.
func (r *RoundResult) Jackpot() bool {
	return (r.Dice[0] == 1 && r.Dice[1] == 1 && r.Dice[2] == 1) ||
		(r.Dice[0] == 6 && r.Dice[1] == 6 && r.Dice[2] == 6)
}
