package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"taixiu-game-backend/internal/models"
)

// Scheduler drives the round lifecycle on a wall-clock cadence: open a round,
// wait out the betting window, resolve, announce, repeat. Failures never kill
// the loop; they are logged, alerted and retried after a cooldown.
type Scheduler struct {
	engine   *RoundEngine
	events   Announcer
	log      *zap.SugaredLogger
	cooldown time.Duration

	// tick is the wait-loop granularity; it bounds how long a shutdown
	// signal can go unnoticed.
	tick time.Duration

	// pause is the breather between a resolved round and the next open.
	pause time.Duration
}

func NewScheduler(engine *RoundEngine, events Announcer, cooldown time.Duration, log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		engine:   engine,
		events:   events,
		log:      log,
		cooldown: cooldown,
		tick:     500 * time.Millisecond,
		pause:    time.Second,
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Infow("scheduler started", "interval", s.engine.Interval())

	for ctx.Err() == nil {
		rs := s.engine.CurrentRound()

		if rs.Status == models.RoundIdle {
			if _, err := s.engine.OpenRound(); err != nil {
				s.fail(ctx, "open round failed", err)
				continue
			}
			rs = s.engine.CurrentRound()
			s.events.RoundOpened(rs)
		}

		// A restored round may already be past its close time; the wait
		// loop then falls straight through to resolution.
		if !s.sleepUntil(ctx, time.Unix(rs.ClosesAt, 0)) {
			return
		}

		result, err := s.engine.ResolveRound()
		if err != nil {
			s.fail(ctx, "resolve round failed", err)
			continue
		}
		s.events.RoundResolved(result)

		if !s.sleep(ctx, s.pause) {
			return
		}
	}
}

// Watchdog alerts the admins when no round has settled for three intervals.
// It only observes; the main loop is responsible for recovery.
func (s *Scheduler) Watchdog(ctx context.Context) {
	interval := s.engine.Interval()
	ticker := time.NewTicker(2 * interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last := s.engine.LastResult()
			if last == nil {
				continue
			}
			age := time.Since(time.Unix(last.Timestamp, 0))
			if age > 3*interval {
				s.log.Warnw("no round resolved recently", "last_round", last.RoundID, "age", age)
				s.events.Alert("no round has been resolved for " + age.Truncate(time.Second).String() + "; the game may be stuck")
			}
		}
	}
}

func (s *Scheduler) fail(ctx context.Context, msg string, err error) {
	s.log.Errorw(msg, "error", err)
	s.events.Alert(msg + ": " + err.Error())
	s.sleep(ctx, s.cooldown)
}

// sleepUntil waits for the deadline in small ticks so cancellation is picked
// up quickly. It reports false when ctx was cancelled.
func (s *Scheduler) sleepUntil(ctx context.Context, deadline time.Time) bool {
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		step := s.tick
		if remaining < step {
			step = remaining
		}
		if !s.sleep(ctx, step) {
			return false
		}
	}
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
