package services

import "errors"

var (
	// ErrInvalidState is returned when an operation is attempted in the
	// wrong round phase. No state is mutated.
	ErrInvalidState = errors.New("operation not valid in current round state")

	// ErrBettingClosed is returned for bets placed outside an open window.
	ErrBettingClosed = errors.New("betting is closed")

	// ErrInvalidRound is returned when a bet names a round other than the
	// currently open one.
	ErrInvalidRound = errors.New("bet is not for the current round")

	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient balance")

	// ErrBonusStakeLimit caps bets while the user's whole balance is the
	// untouched first-interaction bonus.
	ErrBonusStakeLimit = errors.New("stake exceeds the bonus bet limit")

	ErrBelowMinWithdraw = errors.New("amount below the withdraw minimum")

	ErrRequestNotFound = errors.New("request not found")

	// ErrRequestDecided is returned when re-deciding a finalized request.
	ErrRequestDecided = errors.New("request already decided")
)
