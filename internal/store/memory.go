package store

import (
	"encoding/json"
	"fmt"
	"sync"

	"taixiu-game-backend/internal/models"
)

// MemoryStore is an in-process Store used in tests and for local development
// without Redis. Entities round-trip through JSON so callers never share
// pointers with the store, matching the Redis implementation's behavior.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[int64][]byte
	roundState []byte
	bets       map[int64]map[int64][]byte
	pot        int64
	history    [][]byte
	requests   map[string][]byte
	reqOrder   map[models.RequestKind][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[int64][]byte),
		bets:     make(map[int64]map[int64][]byte),
		requests: make(map[string][]byte),
		reqOrder: make(map[models.RequestKind][]string),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) SaveUser(u *models.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = data
	return nil
}

func (s *MemoryStore) GetUser(id int64) (*models.User, error) {
	s.mu.RLock()
	data, ok := s.users[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var u models.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *MemoryStore) LoadUsers() ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var users []*models.User
	for _, data := range s.users {
		var u models.User
		if err := json.Unmarshal(data, &u); err != nil {
			continue
		}
		users = append(users, &u)
	}
	return users, nil
}

func (s *MemoryStore) SaveRoundState(rs *models.RoundState) error {
	data, err := json.Marshal(rs)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roundState = data
	return nil
}

func (s *MemoryStore) LoadRoundState() (*models.RoundState, error) {
	s.mu.RLock()
	data := s.roundState
	s.mu.RUnlock()
	if data == nil {
		return nil, ErrNotFound
	}
	var rs models.RoundState
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, err
	}
	return &rs, nil
}

func (s *MemoryStore) SaveBet(b *models.Bet) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	round, ok := s.bets[b.RoundID]
	if !ok {
		round = make(map[int64][]byte)
		s.bets[b.RoundID] = round
	}
	round[b.UserID] = data
	return nil
}

func (s *MemoryStore) LoadBets(roundID int64) (map[int64]*models.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bets := make(map[int64]*models.Bet, len(s.bets[roundID]))
	for userID, data := range s.bets[roundID] {
		var b models.Bet
		if err := json.Unmarshal(data, &b); err != nil {
			continue
		}
		bets[userID] = &b
	}
	return bets, nil
}

func (s *MemoryStore) ClearBets(roundID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bets, roundID)
	return nil
}

func (s *MemoryStore) SavePot(balance int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pot = balance
	return nil
}

func (s *MemoryStore) LoadPot() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pot, nil
}

func (s *MemoryStore) AppendRoundResult(r *models.RoundResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, data)
	return nil
}

func (s *MemoryStore) RoundHistory(limit int64) ([]*models.RoundResult, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*models.RoundResult, 0, limit)
	for i := len(s.history) - 1; i >= 0 && int64(len(results)) < limit; i-- {
		var r models.RoundResult
		if err := json.Unmarshal(s.history[i], &r); err != nil {
			continue
		}
		results = append(results, &r)
	}
	return results, nil
}

func (s *MemoryStore) LastRoundResult() (*models.RoundResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.history) == 0 {
		return nil, ErrNotFound
	}
	var r models.RoundResult
	if err := json.Unmarshal(s.history[len(s.history)-1], &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *MemoryStore) SaveRequest(req *models.TransferRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ID]; !exists {
		s.reqOrder[req.Kind] = append(s.reqOrder[req.Kind], req.ID)
	}
	s.requests[req.ID] = data
	return nil
}

func (s *MemoryStore) GetRequest(id string) (*models.TransferRequest, error) {
	s.mu.RLock()
	data, ok := s.requests[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var req models.TransferRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *MemoryStore) LoadRequests(kind models.RequestKind) ([]*models.TransferRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order := s.reqOrder[kind]
	requests := make([]*models.TransferRequest, 0, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		data, ok := s.requests[order[i]]
		if !ok {
			continue
		}
		var req models.TransferRequest
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		requests = append(requests, &req)
	}
	return requests, nil
}
