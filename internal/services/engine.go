package services

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"taixiu-game-backend/internal/models"
	"taixiu-game-backend/internal/store"
)

const (
	// InitialBonus is the one-time starting credit per user.
	InitialBonus int64 = 10000

	// MaxBonusBet caps a stake while the user's balance is exactly the
	// untouched bonus: play money has to be risked in small increments.
	MaxBonusBet int64 = 1000

	// PayoutMultiplier is the winner payout: stake back plus 97% profit.
	PayoutMultiplier = 1.97

	// PotCutRate is the share of aggregate winner profit fed to the pot.
	PotCutRate = 0.30

	// maxDiceAttempts bounds the rejection-sampling loop for forced and
	// biased rolls. Past the cap the roll falls back to unconstrained.
	maxDiceAttempts = 200
)

// RoundEngine is the round state machine and the single settlement authority.
// It owns the Idle -> Open -> Closed -> Idle lifecycle, the bet table for the
// open round, outcome resolution and payout computation. All balance
// mutations for a round happen inside ResolveRound.
type RoundEngine struct {
	mu     sync.Mutex
	store  store.Store
	ledger *Ledger
	pot    *PotAccount
	log    *zap.SugaredLogger

	interval time.Duration

	round      models.RoundState
	bets       map[int64]*models.Bet
	lastResult *models.RoundResult

	// rollDie and coin are swapped out in tests for deterministic dice.
	rollDie func() int
	coin    func() float64
	now     func() time.Time
}

func NewRoundEngine(st store.Store, ledger *Ledger, pot *PotAccount, interval time.Duration, log *zap.SugaredLogger) (*RoundEngine, error) {
	e := &RoundEngine{
		store:    st,
		ledger:   ledger,
		pot:      pot,
		log:      log,
		interval: interval,
		round:    models.RoundState{Status: models.RoundIdle},
		bets:     make(map[int64]*models.Bet),
		rollDie:  func() int { return rand.Intn(6) + 1 },
		coin:     rand.Float64,
		now:      time.Now,
	}

	// Restore whatever round was in flight when the process died. Bets
	// carry already-debited stakes, so an interrupted round is kept and
	// resolved normally instead of being thrown away.
	rs, err := st.LoadRoundState()
	if err != nil && err != store.ErrNotFound {
		return nil, fmt.Errorf("load round state: %w", err)
	}
	if rs != nil {
		e.round = *rs
		if rs.Status != models.RoundIdle {
			bets, err := st.LoadBets(rs.ID)
			if err != nil {
				return nil, fmt.Errorf("load bets for round %d: %w", rs.ID, err)
			}
			e.bets = bets
			log.Infow("restored interrupted round", "round", rs.ID, "status", rs.Status, "bets", len(bets))
		}
	}

	if last, err := st.LastRoundResult(); err == nil {
		e.lastResult = last
	} else if err != store.ErrNotFound {
		return nil, fmt.Errorf("load last round result: %w", err)
	}

	return e, nil
}

// CurrentRound returns a copy of the round state.
func (e *RoundEngine) CurrentRound() models.RoundState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.round
}

// LastResult returns the most recent settlement record, or nil.
func (e *RoundEngine) LastResult() *models.RoundResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastResult
}

func (e *RoundEngine) Interval() time.Duration { return e.interval }

func (e *RoundEngine) History(limit int64) ([]*models.RoundResult, error) {
	return e.store.RoundHistory(limit)
}

// OpenRound starts a new betting window. Valid only from Idle.
func (e *RoundEngine) OpenRound() (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.round.Status != models.RoundIdle {
		return 0, fmt.Errorf("open round: %w", ErrInvalidState)
	}

	prev := e.round
	e.round.ID++
	e.round.Status = models.RoundOpen
	e.round.ClosesAt = e.now().Add(e.interval).Unix()
	e.bets = make(map[int64]*models.Bet)

	if err := e.store.SaveRoundState(&e.round); err != nil {
		e.round = prev
		return 0, fmt.Errorf("persist round state: %w", err)
	}

	e.log.Infow("round opened", "round", e.round.ID, "closes_at", e.round.ClosesAt)
	return e.round.ID, nil
}

// PlaceBet stakes amount on side for the currently open round. The stake is
// debited immediately; a second bet by the same user in the same round
// overwrites the first one, refunding the earlier stake.
func (e *RoundEngine) PlaceBet(roundID, userID int64, side models.Side, stake int64) (*models.Bet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.round.Status != models.RoundOpen {
		return nil, ErrBettingClosed
	}
	if roundID != e.round.ID {
		return nil, ErrInvalidRound
	}
	if !side.Valid() || stake <= 0 {
		return nil, ErrInvalidAmount
	}

	user := e.ledger.User(userID)
	if user.BonusGranted && user.Balance == e.ledger.BonusAmount() && stake > MaxBonusBet {
		return nil, ErrBonusStakeLimit
	}

	prev := e.bets[userID]
	available := user.Balance
	if prev != nil {
		available += prev.Stake
	}
	if stake > available {
		return nil, ErrInsufficientFunds
	}

	// Overwrite policy: release the earlier stake before taking the new
	// one so no value leaks out of the ledger.
	if prev != nil {
		if err := e.ledger.Credit(userID, prev.Stake); err != nil {
			return nil, err
		}
	}
	if err := e.ledger.Debit(userID, stake); err != nil {
		e.restorePrevBet(userID, prev)
		return nil, err
	}

	bet := &models.Bet{
		RoundID:  e.round.ID,
		UserID:   userID,
		Side:     side,
		Stake:    stake,
		PlacedAt: e.now().Unix(),
	}
	if err := e.store.SaveBet(bet); err != nil {
		if cerr := e.ledger.Credit(userID, stake); cerr != nil {
			e.log.Errorw("failed to refund stake after persist failure", "user", userID, "error", cerr)
		}
		e.restorePrevBet(userID, prev)
		return nil, fmt.Errorf("persist bet: %w", err)
	}
	e.bets[userID] = bet

	e.log.Infow("bet placed", "round", e.round.ID, "user", userID, "side", side, "stake", stake)
	return bet, nil
}

// restorePrevBet re-debits and re-records a previously refunded bet after a
// failed overwrite. Caller holds e.mu.
func (e *RoundEngine) restorePrevBet(userID int64, prev *models.Bet) {
	if prev == nil {
		return
	}
	if err := e.ledger.Debit(userID, prev.Stake); err != nil {
		e.log.Errorw("failed to restore overwritten bet", "user", userID, "error", err)
		delete(e.bets, userID)
		return
	}
	e.bets[userID] = prev
}

// SetForcedOutcome rigs the next resolution. Pass an empty side to clear.
func (e *RoundEngine) SetForcedOutcome(side models.Side) error {
	if side != "" && !side.Valid() {
		return ErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.round.ForcedSide
	e.round.ForcedSide = side
	if err := e.store.SaveRoundState(&e.round); err != nil {
		e.round.ForcedSide = prev
		return fmt.Errorf("persist round state: %w", err)
	}
	e.log.Warnw("forced outcome set", "side", side)
	return nil
}

// SetBias weights the coin flip that picks the winning side. The bias
// persists across rounds until cleared.
func (e *RoundEngine) SetBias(pOver float64) error {
	if pOver < 0 || pOver > 1 {
		return ErrInvalidAmount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.round.BiasOver
	e.round.BiasOver = &pOver
	if err := e.store.SaveRoundState(&e.round); err != nil {
		e.round.BiasOver = prev
		return fmt.Errorf("persist round state: %w", err)
	}
	e.log.Warnw("bias set", "p_over", pOver)
	return nil
}

func (e *RoundEngine) ClearBias() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.round.BiasOver
	e.round.BiasOver = nil
	if err := e.store.SaveRoundState(&e.round); err != nil {
		e.round.BiasOver = prev
		return fmt.Errorf("persist round state: %w", err)
	}
	return nil
}

// ResolveRound closes the betting window, rolls the dice and settles every
// bet. Resolution is idempotent per round id: once a round has settled,
// further calls return the recorded result without touching any balance.
func (e *RoundEngine) ResolveRound() (*models.RoundResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.round.Status == models.RoundIdle {
		if e.lastResult != nil && e.lastResult.RoundID == e.round.ID {
			return e.lastResult, nil
		}
		return nil, fmt.Errorf("resolve round: %w", ErrInvalidState)
	}

	rid := e.round.ID

	// Lock out further bets before anything else. If the close cannot be
	// persisted the round stays open and the scheduler retries.
	if e.round.Status == models.RoundOpen {
		e.round.Status = models.RoundClosed
		if err := e.store.SaveRoundState(&e.round); err != nil {
			e.round.Status = models.RoundOpen
			return nil, fmt.Errorf("persist round close: %w", err)
		}
	}

	dice := e.rollDice()
	total := dice[0] + dice[1] + dice[2]
	side := models.SideOf(total)

	potBefore := e.pot.Balance()

	var winners []int64
	var losersTotal, winnersTotal, winnersProfit int64
	payouts := make(map[int64]int64, len(e.bets))

	for userID, bet := range e.bets {
		if bet.Side == side {
			payout := roundedMultiple(bet.Stake, PayoutMultiplier)
			payouts[userID] = payout
			winners = append(winners, userID)
			winnersTotal += bet.Stake
			winnersProfit += payout - bet.Stake
		} else {
			payouts[userID] = 0
			losersTotal += bet.Stake
		}
	}

	// Pot feed: every losing stake plus a cut of the aggregate profit.
	potCut := int64(math.Round(float64(winnersProfit) * PotCutRate))
	if err := e.pot.Add(losersTotal + potCut); err != nil {
		e.log.Errorw("failed to feed pot", "round", rid, "error", err)
	}

	for userID, bet := range e.bets {
		payout := payouts[userID]
		won := payout > 0
		if won {
			if err := e.ledger.Credit(userID, payout); err != nil {
				e.log.Errorw("failed to credit payout", "round", rid, "user", userID, "payout", payout, "error", err)
			}
		}
		rec := models.UserRoundRecord{
			RoundID: rid,
			Side:    bet.Side,
			Stake:   bet.Stake,
			Payout:  payout,
			Won:     won,
		}
		if err := e.ledger.RecordRoundOutcome(userID, rec); err != nil {
			e.log.Errorw("failed to record outcome", "round", rid, "user", userID, "error", err)
		}
	}

	result := &models.RoundResult{
		RoundID:   rid,
		Timestamp: e.now().Unix(),
		Dice:      dice,
		Total:     total,
		Side:      side,
		Bets:      e.bets,
		Payouts:   payouts,
		PotBefore: potBefore,
	}

	// Triple-1/triple-6 jackpot: drain the whole pot and split it across
	// winners in proportion to their stakes. With no winners the pot is
	// deliberately left untouched. Rounding leftovers are swept back into
	// the pot rather than lost.
	if result.Jackpot() && len(winners) > 0 {
		e.settleJackpot(result, winners, winnersTotal)
	}

	result.PotAfter = e.pot.Balance()

	if err := e.store.AppendRoundResult(result); err != nil {
		e.log.Errorw("failed to append round result", "round", rid, "error", err)
	}
	if err := e.store.ClearBets(rid); err != nil {
		e.log.Errorw("failed to clear bet table", "round", rid, "error", err)
	}

	e.bets = make(map[int64]*models.Bet)
	e.round.Status = models.RoundIdle
	e.round.ForcedSide = ""
	if err := e.store.SaveRoundState(&e.round); err != nil {
		e.log.Errorw("failed to persist round state after settlement", "round", rid, "error", err)
	}
	e.lastResult = result

	e.log.Infow("round resolved",
		"round", rid,
		"dice", dice,
		"total", total,
		"side", side,
		"winners", len(winners),
		"pot", result.PotAfter,
		"jackpot_paid", result.JackpotPaid,
	)
	return result, nil
}

// settleJackpot drains the pot into proportional winner shares. Caller holds
// e.mu; winnersTotal is > 0 whenever winners is non-empty.
func (e *RoundEngine) settleJackpot(result *models.RoundResult, winners []int64, winnersTotal int64) {
	amount, err := e.pot.DrainAll()
	if err != nil {
		e.log.Errorw("failed to drain pot for jackpot", "round", result.RoundID, "error", err)
		return
	}
	if amount == 0 {
		return
	}

	shares := make(map[int64]int64, len(winners))
	var distributed int64
	for _, userID := range winners {
		share := amount * result.Bets[userID].Stake / winnersTotal
		if share == 0 {
			continue
		}
		if err := e.ledger.Credit(userID, share); err != nil {
			e.log.Errorw("failed to credit jackpot share", "round", result.RoundID, "user", userID, "share", share, "error", err)
			continue
		}
		shares[userID] = share
		distributed += share
	}

	if residual := amount - distributed; residual > 0 {
		if err := e.pot.Add(residual); err != nil {
			e.log.Errorw("failed to return jackpot residual", "round", result.RoundID, "residual", residual, "error", err)
		}
	}

	result.JackpotPaid = distributed
	result.JackpotShares = shares
	e.log.Infow("jackpot paid", "round", result.RoundID, "amount", distributed, "winners", len(shares))
}

// rollDice produces the three dice, honoring a forced side or a bias if one
// is configured. Caller holds e.mu.
func (e *RoundEngine) rollDice() [3]int {
	if e.round.ForcedSide != "" {
		return e.rollForSide(e.round.ForcedSide)
	}
	if e.round.BiasOver != nil {
		side := models.SideUnder
		if e.coin() < *e.round.BiasOver {
			side = models.SideOver
		}
		return e.rollForSide(side)
	}
	return e.rollFree()
}

func (e *RoundEngine) rollFree() [3]int {
	return [3]int{e.rollDie(), e.rollDie(), e.rollDie()}
}

// rollForSide rejection-samples until the total lands on side, giving up
// after maxDiceAttempts and returning an unconstrained roll instead.
func (e *RoundEngine) rollForSide(side models.Side) [3]int {
	for i := 0; i < maxDiceAttempts; i++ {
		dice := e.rollFree()
		if models.SideOf(dice[0]+dice[1]+dice[2]) == side {
			return dice
		}
	}
	return e.rollFree()
}

func roundedMultiple(stake int64, multiplier float64) int64 {
	return int64(math.Round(float64(stake) * multiplier))
}
