package services

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"taixiu-game-backend/internal/models"
	"taixiu-game-backend/internal/store"
)

// userHistoryCap bounds the per-user outcome log kept on the account.
const userHistoryCap = 100

// Ledger owns the per-user virtual balances and streak counters. It knows
// nothing about rounds: the engine and the approval workflow drive it through
// Credit/Debit and RecordRoundOutcome.
//
// Every mutation is written through to the store before success is reported;
// a failed write rolls the in-memory change back so memory and disk never
// diverge.
type Ledger struct {
	mu    sync.Mutex
	store store.Store
	log   *zap.SugaredLogger

	users       map[int64]*models.User
	bonusAmount int64
}

func NewLedger(st store.Store, bonusAmount int64, log *zap.SugaredLogger) (*Ledger, error) {
	users, err := st.LoadUsers()
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}

	byID := make(map[int64]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	return &Ledger{
		store:       st,
		log:         log,
		users:       byID,
		bonusAmount: bonusAmount,
	}, nil
}

func (l *Ledger) BonusAmount() int64 { return l.bonusAmount }

// ensure returns the account for id, creating it lazily. Caller holds l.mu.
func (l *Ledger) ensure(id int64) *models.User {
	u, ok := l.users[id]
	if !ok {
		u = &models.User{ID: id, CreatedAt: time.Now().Unix()}
		l.users[id] = u
	}
	return u
}

func (l *Ledger) persist(u *models.User) error {
	u.UpdatedAt = time.Now().Unix()
	if err := l.store.SaveUser(u); err != nil {
		return fmt.Errorf("persist user %d: %w", u.ID, err)
	}
	return nil
}

func (l *Ledger) GetBalance(id int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ensure(id).Balance
}

// User returns a copy of the account for read-only presentation.
func (l *Ledger) User(id int64) *models.User {
	l.mu.Lock()
	defer l.mu.Unlock()
	u := *l.ensure(id)
	u.History = append([]models.UserRoundRecord(nil), u.History...)
	return &u
}

func (l *Ledger) SetUsername(id int64, username string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	u := l.ensure(id)
	if u.Username == username {
		return nil
	}
	prev := u.Username
	u.Username = username
	if err := l.persist(u); err != nil {
		u.Username = prev
		return err
	}
	return nil
}

func (l *Ledger) Credit(id, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	u := l.ensure(id)
	u.Balance += amount
	if err := l.persist(u); err != nil {
		u.Balance -= amount
		return err
	}
	return nil
}

func (l *Ledger) Debit(id, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	u := l.ensure(id)
	if u.Balance < amount {
		return ErrInsufficientFunds
	}
	u.Balance -= amount
	if err := l.persist(u); err != nil {
		u.Balance += amount
		return err
	}
	return nil
}

// GrantFirstBonus credits the one-time starting bonus. It reports whether the
// bonus was newly granted; repeat calls are no-ops.
func (l *Ledger) GrantFirstBonus(id int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	u := l.ensure(id)
	if u.BonusGranted {
		return false, nil
	}
	u.BonusGranted = true
	u.Balance += l.bonusAmount
	if err := l.persist(u); err != nil {
		u.BonusGranted = false
		u.Balance -= l.bonusAmount
		return false, err
	}
	l.log.Infow("first bonus granted", "user", id, "amount", l.bonusAmount)
	return true, nil
}

// RecordRoundOutcome updates the streak counters and appends the round to the
// user's personal history. A win increments the streak, a loss resets it.
func (l *Ledger) RecordRoundOutcome(id int64, rec models.UserRoundRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	u := l.ensure(id)
	prevStreak, prevBest := u.Streak, u.BestStreak
	prevHistory := u.History

	if rec.Won {
		u.Streak++
		if u.Streak > u.BestStreak {
			u.BestStreak = u.Streak
		}
	} else {
		u.Streak = 0
	}

	history := make([]models.UserRoundRecord, len(prevHistory), len(prevHistory)+1)
	copy(history, prevHistory)
	history = append(history, rec)
	if len(history) > userHistoryCap {
		history = history[len(history)-userHistoryCap:]
	}
	u.History = history

	if err := l.persist(u); err != nil {
		u.Streak, u.BestStreak = prevStreak, prevBest
		u.History = prevHistory
		return err
	}
	return nil
}

// TopByBestStreak returns up to n account copies ordered by best streak.
func (l *Ledger) TopByBestStreak(n int) []*models.User {
	l.mu.Lock()
	defer l.mu.Unlock()

	top := make([]*models.User, 0, len(l.users))
	for _, u := range l.users {
		copied := *u
		copied.History = nil
		top = append(top, &copied)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].BestStreak != top[j].BestStreak {
			return top[i].BestStreak > top[j].BestStreak
		}
		return top[i].Balance > top[j].Balance
	})
	if len(top) > n {
		top = top[:n]
	}
	return top
}
