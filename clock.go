/*
Copyright © 2026 Ceren Iz <ceren@cereniz.dev>
*/

package main

import "time"

// turnClock is the advisory per-room countdown. It only reports: expiry
// never forces a turn change, progression stays player-driven.
type turnClock struct {
	stop chan struct{}
}

type tickPayload struct {
	Remaining int `json:"remaining"`
}

type expiredPayload struct {
	Team Team `json:"team"`
}

// turnBudgetLocked picks the budget for the running segment: clue-giving
// until a clue lands, guessing after.
func (r *RoomState) turnBudgetLocked(cfg *Config) time.Duration {
	if r.CurrentClue == nil {
		return cfg.clueSeconds
	}
	return cfg.guessSeconds
}

func (r *RoomState) remainingTimeLocked(cfg *Config, now time.Time) time.Duration {
	return r.turnBudgetLocked(cfg) - now.Sub(r.turnStart)
}

// replaceClockLocked is cancel-then-set: the previous handle is stopped
// before a new one may start, so at most one live handle exists per room and
// a timer from a previous game never ticks into a new one. When the room is
// untimed or not mid-game this leaves the room clockless.
func (r *RoomState) replaceClockLocked(cfg *Config) {
	r.cancelClockLocked()

	if !r.Timed || r.Phase != PhasePlaying {
		return
	}

	clock := &turnClock{stop: make(chan struct{})}
	r.clock = clock
	go clock.run(r, cfg)
}

func (r *RoomState) cancelClockLocked() {
	if r.clock != nil {
		close(r.clock.stop)
		r.clock = nil
	}
}

func (c *turnClock) run(r *RoomState, cfg *Config) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			r.mu.Lock()

			// An in-flight tick racing its own cancellation must not
			// emit into whatever replaced it.
			if r.clock != c {
				r.mu.Unlock()
				return
			}

			remaining := r.remainingTimeLocked(cfg, now)
			if remaining <= 0 {
				broadcastEventLocked(r, "turn_expired", expiredPayload{Team: r.CurrentTeam})
				r.clock = nil
				r.mu.Unlock()
				return
			}

			broadcastEventLocked(r, "clock_tick", tickPayload{
				Remaining: int(remaining.Round(time.Second) / time.Second),
			})
			r.mu.Unlock()
		}
	}
}
