package store

import (
	"errors"

	"taixiu-game-backend/internal/models"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the durable persistence boundary of the game. A save that returns
// nil must survive a process restart; the services report success to callers
// only after the store has accepted the write.
type Store interface {
	SaveUser(u *models.User) error
	GetUser(id int64) (*models.User, error)
	LoadUsers() ([]*models.User, error)

	SaveRoundState(rs *models.RoundState) error
	// LoadRoundState returns ErrNotFound when no round has ever been opened.
	LoadRoundState() (*models.RoundState, error)

	SaveBet(b *models.Bet) error
	LoadBets(roundID int64) (map[int64]*models.Bet, error)
	ClearBets(roundID int64) error

	SavePot(balance int64) error
	LoadPot() (int64, error)

	AppendRoundResult(r *models.RoundResult) error
	// RoundHistory returns up to limit results, newest first.
	RoundHistory(limit int64) ([]*models.RoundResult, error)
	LastRoundResult() (*models.RoundResult, error)

	SaveRequest(req *models.TransferRequest) error
	GetRequest(id string) (*models.TransferRequest, error)
	// LoadRequests returns requests of one kind, newest first.
	LoadRequests(kind models.RequestKind) ([]*models.TransferRequest, error)

	Close() error
}
