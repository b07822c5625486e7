package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"taixiu-game-backend/internal/config"
	"taixiu-game-backend/internal/models"
)

// RedisStore persists every entity as JSON under a fixed key scheme. Round
// results go to an append-only list, open bets to a hash keyed by user id so
// a crashed round keeps its already-debited stakes.
type RedisStore struct {
	client *redis.Client
	ctx    context.Context
}

func NewRedisStore(cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	ctx := context.Background()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %v", err)
	}

	return &RedisStore{client: client, ctx: ctx}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) SaveUser(u *models.User) error {
	key := fmt.Sprintf(KeyUser, u.ID)

	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %v", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(s.ctx, key, data, 0)
	pipe.SAdd(s.ctx, KeyUserIndex, u.ID)
	if _, err := pipe.Exec(s.ctx); err != nil {
		return fmt.Errorf("failed to save user %d: %v", u.ID, err)
	}
	return nil
}

func (s *RedisStore) GetUser(id int64) (*models.User, error) {
	key := fmt.Sprintf(KeyUser, id)

	data, err := s.client.Get(s.ctx, key).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %v", id, err)
	}

	var u models.User
	if err := json.Unmarshal([]byte(data), &u); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user %d: %v", id, err)
	}
	return &u, nil
}

func (s *RedisStore) LoadUsers() ([]*models.User, error) {
	ids, err := s.client.SMembers(s.ctx, KeyUserIndex).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load user index: %v", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		cmds[i] = pipe.Get(s.ctx, fmt.Sprintf(KeyUser, id))
	}
	if _, err := pipe.Exec(s.ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to bulk load users: %v", err)
	}

	var users []*models.User
	for _, cmd := range cmds {
		if cmd == nil {
			continue
		}
		data, err := cmd.Result()
		if err != nil {
			continue
		}
		var u models.User
		if err := json.Unmarshal([]byte(data), &u); err != nil {
			continue
		}
		users = append(users, &u)
	}
	return users, nil
}

func (s *RedisStore) SaveRoundState(rs *models.RoundState) error {
	data, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("failed to marshal round state: %v", err)
	}
	if err := s.client.Set(s.ctx, KeyRoundState, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save round state: %v", err)
	}
	return nil
}

func (s *RedisStore) LoadRoundState() (*models.RoundState, error) {
	data, err := s.client.Get(s.ctx, KeyRoundState).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load round state: %v", err)
	}

	var rs models.RoundState
	if err := json.Unmarshal([]byte(data), &rs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal round state: %v", err)
	}
	return &rs, nil
}

func (s *RedisStore) SaveBet(b *models.Bet) error {
	key := fmt.Sprintf(KeyRoundBets, b.RoundID)

	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal bet: %v", err)
	}
	if err := s.client.HSet(s.ctx, key, strconv.FormatInt(b.UserID, 10), data).Err(); err != nil {
		return fmt.Errorf("failed to save bet for user %d: %v", b.UserID, err)
	}
	return nil
}

func (s *RedisStore) LoadBets(roundID int64) (map[int64]*models.Bet, error) {
	key := fmt.Sprintf(KeyRoundBets, roundID)

	raw, err := s.client.HGetAll(s.ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load bets for round %d: %v", roundID, err)
	}

	bets := make(map[int64]*models.Bet, len(raw))
	for field, data := range raw {
		userID, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		var b models.Bet
		if err := json.Unmarshal([]byte(data), &b); err != nil {
			continue
		}
		bets[userID] = &b
	}
	return bets, nil
}

func (s *RedisStore) ClearBets(roundID int64) error {
	key := fmt.Sprintf(KeyRoundBets, roundID)
	if err := s.client.Del(s.ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to clear bets for round %d: %v", roundID, err)
	}
	return nil
}

func (s *RedisStore) SavePot(balance int64) error {
	if err := s.client.Set(s.ctx, KeyPot, balance, 0).Err(); err != nil {
		return fmt.Errorf("failed to save pot: %v", err)
	}
	return nil
}

func (s *RedisStore) LoadPot() (int64, error) {
	data, err := s.client.Get(s.ctx, KeyPot).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load pot: %v", err)
	}

	balance, err := strconv.ParseInt(data, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt pot value %q: %v", data, err)
	}
	return balance, nil
}

func (s *RedisStore) AppendRoundResult(r *models.RoundResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal round result: %v", err)
	}
	if err := s.client.RPush(s.ctx, KeyHistory, data).Err(); err != nil {
		return fmt.Errorf("failed to append round result: %v", err)
	}
	return nil
}

func (s *RedisStore) RoundHistory(limit int64) ([]*models.RoundResult, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	raw, err := s.client.LRange(s.ctx, KeyHistory, -limit, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load round history: %v", err)
	}

	// LRange returns oldest first; callers want newest first.
	results := make([]*models.RoundResult, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var r models.RoundResult
		if err := json.Unmarshal([]byte(raw[i]), &r); err != nil {
			continue
		}
		results = append(results, &r)
	}
	return results, nil
}

func (s *RedisStore) LastRoundResult() (*models.RoundResult, error) {
	raw, err := s.client.LRange(s.ctx, KeyHistory, -1, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load last round result: %v", err)
	}
	if len(raw) == 0 {
		return nil, ErrNotFound
	}

	var r models.RoundResult
	if err := json.Unmarshal([]byte(raw[0]), &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal round result: %v", err)
	}
	return &r, nil
}

func (s *RedisStore) SaveRequest(req *models.TransferRequest) error {
	key := fmt.Sprintf(KeyRequest, req.ID)

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %v", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(s.ctx, key, data, 0)
	pipe.ZAdd(s.ctx, fmt.Sprintf(KeyRequests, req.Kind), redis.Z{
		Score:  float64(req.CreatedAt),
		Member: req.ID,
	})
	if _, err := pipe.Exec(s.ctx); err != nil {
		return fmt.Errorf("failed to save request %s: %v", req.ID, err)
	}
	return nil
}

func (s *RedisStore) GetRequest(id string) (*models.TransferRequest, error) {
	key := fmt.Sprintf(KeyRequest, id)

	data, err := s.client.Get(s.ctx, key).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request %s: %v", id, err)
	}

	var req models.TransferRequest
	if err := json.Unmarshal([]byte(data), &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request %s: %v", id, err)
	}
	return &req, nil
}

func (s *RedisStore) LoadRequests(kind models.RequestKind) ([]*models.TransferRequest, error) {
	ids, err := s.client.ZRevRange(s.ctx, fmt.Sprintf(KeyRequests, kind), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load %s requests: %v", kind, err)
	}

	var requests []*models.TransferRequest
	for _, id := range ids {
		req, err := s.GetRequest(id)
		if err != nil {
			continue
		}
		requests = append(requests, req)
	}
	return requests, nil
}
