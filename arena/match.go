package arena

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mizuho42/agent-arena/domain"
)

var commentaryLines = []string{
	"%s lands a brutal counter on %s!",
	"%s is circling, looking for an opening against %s.",
	"%s rattles %s with a relentless exchange!",
	"The crowd roars as %s pushes %s to the edge!",
}

// createMatchLocked creates the single running match between two agents.
// Exactly one match may run system-wide; a second create is a conflict.
func (a *Arena) createMatchLocked(aID, bID, label string) (*domain.Match, error) {
	if a.state.CurrentMatchID != "" {
		return nil, ErrMatchInProgress
	}

	now := a.clock()
	nameA, nameB := a.agentNameLocked(aID), a.agentNameLocked(bID)
	match := &domain.Match{
		ID:        "match_" + uuid.New().String()[:8],
		Status:    domain.MatchRunning,
		AgentAID:  aID,
		AgentBID:  bID,
		Label:     label,
		StartedAt: now,
		Events: []domain.MatchEvent{
			{Ts: now, Type: domain.EventAnnounce, Message: fmt.Sprintf("%s: %s vs %s", label, nameA, nameB)},
			{Ts: now, Type: domain.EventStart, Message: "FIGHT!"},
		},
	}
	if a.pendingByeID != "" {
		match.Events = append(match.Events, domain.MatchEvent{
			Ts:      now,
			Type:    domain.EventBye,
			Message: fmt.Sprintf("%s sits this round out on a wildcard bye", a.agentNameLocked(a.pendingByeID)),
		})
		a.pendingByeID = ""
	}

	a.state.Matches = append(a.state.Matches, match)
	a.state.CurrentMatchID = match.ID
	a.scheduleMatchTimersLocked(match.ID)

	log.Printf("INFO: match %s started: %s vs %s (%s)", match.ID, nameA, nameB, label)
	a.publish("match", match)
	return match, nil
}

// scheduleMatchTimersLocked arms the commentary beats and the automatic
// resolution timer for a running match. The auto-resolve delay is a
// prototype stand-in for an external verdict; a manual resolve that lands
// first wins and the timer becomes a no-op through idempotence.
func (a *Arena) scheduleMatchTimersLocked(matchID string) {
	d := a.cfg.MatchDuration
	gen := a.timerGen

	a.matchTimers = nil
	for i, frac := range []time.Duration{d / 3, 2 * d / 3} {
		delay := frac
		beat := i
		a.matchTimers = append(a.matchTimers, time.AfterFunc(delay, func() {
			a.addCommentary(matchID, beat, gen)
		}))
	}

	a.matchTimers = append(a.matchTimers, time.AfterFunc(d, func() {
		a.autoResolve(matchID, gen)
	}))
}

// stopMatchTimersLocked disarms the current match's timers and bumps the
// generation so a callback that already fired finds nothing to do.
func (a *Arena) stopMatchTimersLocked() {
	a.timerGen++
	for _, t := range a.matchTimers {
		t.Stop()
	}
	a.matchTimers = nil
	a.pendingByeID = ""
}

// autoResolve is the timer path of resolution. An abandoned match must stay
// unresolved: a stale generation or a match that is no longer current is
// left alone.
func (a *Arena) autoResolve(matchID string, gen int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.timerGen || a.state.CurrentMatchID != matchID {
		return
	}
	if _, err := a.resolveMatchLocked(matchID, ""); err != nil {
		log.Printf("ERROR: auto-resolve of match %s failed: %v", matchID, err)
	}
}

func (a *Arena) addCommentary(matchID string, beat int, gen int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.timerGen {
		return
	}
	match := a.findMatchLocked(matchID)
	if match == nil || match.Status != domain.MatchRunning {
		return
	}

	line := commentaryLines[a.rng.Intn(len(commentaryLines))]
	attacker, defender := match.AgentAID, match.AgentBID
	if beat%2 == 1 {
		attacker, defender = defender, attacker
	}
	match.Events = append(match.Events, domain.MatchEvent{
		Ts:      a.clock(),
		Type:    domain.EventCommentary,
		Message: fmt.Sprintf(line, a.agentNameLocked(attacker), a.agentNameLocked(defender)),
	})

	a.publish("match", match)
	a.markDirtyLocked()
}

// ResolveMatch settles a match. Resolving an already-complete match returns
// its existing record unchanged; resolving an unknown id is an error.
func (a *Arena) ResolveMatch(ctx context.Context, matchID, forcedWinnerID string) (*domain.Match, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.resolveMatchLocked(matchID, forcedWinnerID)
}

func (a *Arena) resolveMatchLocked(matchID, forcedWinnerID string) (*domain.Match, error) {
	match := a.findMatchLocked(matchID)
	if match == nil {
		return nil, ErrMatchNotFound
	}
	if match.Status == domain.MatchComplete {
		return match, nil
	}

	winnerID := a.decideWinnerLocked(match, forcedWinnerID)
	loserID := match.AgentAID
	if loserID == winnerID {
		loserID = match.AgentBID
	}

	now := a.clock()
	match.Status = domain.MatchComplete
	match.EndedAt = &now
	match.WinnerID = winnerID
	match.Events = append(match.Events, domain.MatchEvent{
		Ts:      now,
		Type:    domain.EventResolved,
		Message: fmt.Sprintf("WINNER: %s", a.agentNameLocked(winnerID)),
	})

	recordOutcome(a.state.Season, a.state.AllTime, winnerID, loserID)

	if a.cfg.Permadeath {
		loserName := a.agentNameLocked(loserID)
		a.removeAgentLocked(loserID)
		match.Events = append(match.Events, domain.MatchEvent{
			Ts:      now,
			Type:    domain.EventEliminated,
			Message: fmt.Sprintf("%s has fallen and leaves the arena", loserName),
		})
		a.publish("agents", a.state.Agents)
	}

	a.state.CurrentMatchID = ""
	log.Printf("INFO: match %s resolved, winner: %s", match.ID, a.agentNameLocked(winnerID))

	if a.state.Run != nil && a.state.Run.Status == domain.RunRunning {
		a.advanceWinnerLocked(winnerID)
		a.tickBracketLocked()
	}

	a.markDirtyLocked()
	a.publish("match", match)
	a.publishSnapshotLocked()
	return match, nil
}

// decideWinnerLocked is the verdict seam: a forced winner is honored when it
// is one of the two participants, otherwise the outcome is a coin flip.
func (a *Arena) decideWinnerLocked(match *domain.Match, forcedWinnerID string) string {
	if forcedWinnerID == match.AgentAID || forcedWinnerID == match.AgentBID {
		return forcedWinnerID
	}
	if a.rng.Intn(2) == 0 {
		return match.AgentAID
	}
	return match.AgentBID
}

// cloneMatch copies a match so a caller outside the lock can read and
// marshal it while the live record keeps changing.
func cloneMatch(m *domain.Match) *domain.Match {
	if m == nil {
		return nil
	}
	clone := *m
	clone.Events = append([]domain.MatchEvent(nil), m.Events...)
	return &clone
}

func (a *Arena) findMatchLocked(matchID string) *domain.Match {
	if matchID == "" {
		return nil
	}
	for _, m := range a.state.Matches {
		if m.ID == matchID {
			return m
		}
	}
	return nil
}
