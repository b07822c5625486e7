package services

import (
	"fmt"
	"sync"

	"taixiu-game-backend/internal/store"
)

// PotAccount is the shared jackpot balance. Losing stakes and a cut of winner
// profit flow in every round; a triple-1 or triple-6 roll drains it.
type PotAccount struct {
	mu      sync.Mutex
	store   store.Store
	balance int64
}

func NewPotAccount(st store.Store) (*PotAccount, error) {
	balance, err := st.LoadPot()
	if err != nil {
		return nil, fmt.Errorf("load pot: %w", err)
	}
	return &PotAccount{store: st, balance: balance}, nil
}

func (p *PotAccount) Balance() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance
}

func (p *PotAccount) Add(amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	if amount == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.balance += amount
	if err := p.store.SavePot(p.balance); err != nil {
		p.balance -= amount
		return fmt.Errorf("persist pot: %w", err)
	}
	return nil
}

// DrainAll empties the pot and returns the prior balance. No caller can
// observe a partially drained pot.
func (p *PotAccount) DrainAll() (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	drained := p.balance
	p.balance = 0
	if err := p.store.SavePot(0); err != nil {
		p.balance = drained
		return 0, fmt.Errorf("persist pot: %w", err)
	}
	return drained, nil
}
