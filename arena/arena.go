// Package arena implements the tournament scheduler: lobby, bracket
// progression, match lifecycle and win/loss ledgers.
package arena

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mizuho42/agent-arena/config"
	"github.com/mizuho42/agent-arena/domain"
	"github.com/mizuho42/agent-arena/policy"
	"github.com/mizuho42/agent-arena/store"
)

// Publisher fans arena events out to spectators. Implementations must not
// block; delivery is best-effort.
type Publisher interface {
	Publish(eventType string, payload interface{})
}

// Arena owns all scheduler state. Every operation and timer callback
// serializes on the one mutex, so state transitions are indivisible.
type Arena struct {
	mu    sync.Mutex
	state *domain.State

	store  store.Store
	pub    Publisher
	policy *policy.Engine
	cfg    *config.Config

	clock func() time.Time
	rng   *rand.Rand

	dirty       bool
	savePending bool

	// Timers of the current match, plus a generation stamp so callbacks
	// armed before a restart recognize they are stale.
	matchTimers []*time.Timer
	timerGen    int

	// Agent that drew a bye in the current round and is waiting to be
	// mentioned in the round's next match narrative.
	pendingByeID string
}

// New creates an arena with a fresh state. Call Load to recover persisted
// state before Run. Store, publisher and policy engine may be nil; the
// scheduler works purely in memory without them.
func New(cfg *config.Config, st store.Store, pub Publisher, pol *policy.Engine) *Arena {
	a := &Arena{
		store:  st,
		pub:    pub,
		policy: pol,
		cfg:    cfg,
		clock:  time.Now,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	a.state = &domain.State{
		Agents:  []*domain.Agent{},
		Matches: []*domain.Match{},
		Season:  a.newSeason(1),
		AllTime: domain.NewLedger(),
	}
	return a
}

// Load replaces the in-memory state with the persisted document. A match
// that was running when the process died gets its resolution timer re-armed
// so it still reaches an outcome.
func (a *Arena) Load(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	state, err := a.store.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("failed to load arena state: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = state
	if id := state.CurrentMatchID; id != "" {
		log.Printf("INFO: resuming in-flight match %s after restart", id)
		a.scheduleMatchTimersLocked(id)
	}
	return nil
}

// Run drives the background tick loop until ctx is cancelled. The loop is
// what hands ready lobbies off into brackets and what resumes a recovered
// bracket that has no match in flight.
func (a *Arena) Run(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.flush()
			return
		case <-ticker.C:
			a.tick()
		}
	}
}

func (a *Arena) tick() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.CurrentMatchID != "" {
		return
	}
	if a.state.Run != nil && a.state.Run.Status == domain.RunRunning {
		a.tickBracketLocked()
		return
	}
	a.tryStartTournamentLocked()
}

// Join creates or returns the agent with the given display name and places
// it in the open lobby. Joining twice with the same name is idempotent.
func (a *Arena) Join(ctx context.Context, name, tag string) (*domain.Agent, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if len(name) > 64 {
		return nil, ErrNameTooLong
	}
	if len(tag) > 32 {
		return nil, ErrTagTooLong
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.policy != nil {
		decision, reason, err := a.policy.Evaluate(ctx, map[string]interface{}{
			"name":        name,
			"tag":         tag,
			"roster_size": len(a.state.Agents),
		})
		if err != nil {
			// Admission is advisory; a broken engine must not block joins.
			log.Printf("ERROR: admission policy evaluation failed: %v", err)
		} else if decision == "block" {
			if reason != "" {
				return nil, fmt.Errorf("%w: %s", ErrJoinBlocked, reason)
			}
			return nil, ErrJoinBlocked
		}
	}

	agent := a.findAgentByNameLocked(name)
	if agent == nil {
		agent = &domain.Agent{
			ID:        "agt_" + uuid.New().String()[:8],
			Name:      name,
			Tag:       tag,
			CreatedAt: a.clock(),
		}
		a.state.Agents = append(a.state.Agents, agent)
		a.publish("agents", a.state.Agents)
	}

	a.addToLobbyLocked(agent.ID)

	// A lobby at capacity starts immediately; no need to wait for the tick.
	if a.state.CurrentMatchID == "" && (a.state.Run == nil || a.state.Run.Status != domain.RunRunning) {
		a.tryStartTournamentLocked()
	}

	a.markDirtyLocked()
	a.publishSnapshotLocked()
	return agent, nil
}

// StartQuickMatch creates a one-off match outside any bracket. Omitted ids
// are filled with random distinct roster members.
func (a *Arena) StartQuickMatch(ctx context.Context, idA, idB string) (*domain.Match, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.CurrentMatchID != "" {
		return nil, ErrMatchInProgress
	}

	if idA == "" || idB == "" {
		if len(a.state.Agents) < 2 {
			return nil, ErrNotEnoughAgents
		}
		perm := a.rng.Perm(len(a.state.Agents))
		if idA == "" {
			for _, i := range perm {
				if a.state.Agents[i].ID != idB {
					idA = a.state.Agents[i].ID
					break
				}
			}
		}
		if idB == "" {
			for _, i := range perm {
				if a.state.Agents[i].ID != idA {
					idB = a.state.Agents[i].ID
					break
				}
			}
		}
	}

	if idA == idB {
		return nil, ErrSameAgent
	}
	if a.findAgentLocked(idA) == nil || a.findAgentLocked(idB) == nil {
		return nil, ErrAgentNotFound
	}

	match, err := a.createMatchLocked(idA, idB, "QUICK MATCH")
	if err != nil {
		return nil, err
	}
	a.markDirtyLocked()
	a.publishSnapshotLocked()
	return cloneMatch(match), nil
}

// ResetSeason starts a fresh season epoch. All-time counters are untouched.
func (a *Arena) ResetSeason(ctx context.Context) *domain.Season {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.state.Season = a.newSeason(a.state.Season.Number + 1)
	a.publish("season", a.state.Season)
	a.markDirtyLocked()
	a.publishSnapshotLocked()
	return a.state.Season
}

// RestartArena force-clears the roster, lobby, bracket and current match and
// bumps the season generation. An in-flight match is abandoned, not resolved;
// this is an administrative override. When wipeAllTime is set, the all-time
// ledger and match history are cleared as well.
func (a *Arena) RestartArena(ctx context.Context, wipeAllTime bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopMatchTimersLocked()
	a.state.Agents = []*domain.Agent{}
	a.state.Lobby = nil
	a.state.Run = nil
	a.state.CurrentMatchID = ""
	a.state.Season = a.newSeason(a.state.Season.Number + 1)
	if wipeAllTime {
		a.state.AllTime = domain.NewLedger()
		a.state.Matches = []*domain.Match{}
	}

	a.publish("agents", a.state.Agents)
	a.publish("season", a.state.Season)
	a.markDirtyLocked()
	a.publishSnapshotLocked()
}

// Agents returns the current roster.
func (a *Arena) Agents() []*domain.Agent {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*domain.Agent, len(a.state.Agents))
	copy(out, a.state.Agents)
	return out
}

// GetMatch returns a copy of a match by id.
func (a *Arena) GetMatch(matchID string) (*domain.Match, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m := a.findMatchLocked(matchID)
	if m == nil {
		return nil, ErrMatchNotFound
	}
	return cloneMatch(m), nil
}

// RecentMatches returns the bounded recent-matches view, newest first.
func (a *Arena) RecentMatches() []*domain.Match {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.recentMatchesLocked()
	for i, m := range out {
		out[i] = cloneMatch(m)
	}
	return out
}

// Snapshot returns the read-only projection of the whole arena.
func (a *Arena) Snapshot() *domain.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

const recentMatchLimit = 20

func (a *Arena) recentMatchesLocked() []*domain.Match {
	n := len(a.state.Matches)
	limit := recentMatchLimit
	if n < limit {
		limit = n
	}
	out := make([]*domain.Match, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, a.state.Matches[i])
	}
	return out
}

// snapshotLocked deep-copies the projection. Callers marshal snapshots after
// the lock is released, so they must not alias the live state.
func (a *Arena) snapshotLocked() *domain.Snapshot {
	snap := &domain.Snapshot{
		Agents:        a.state.Agents,
		Lobby:         a.state.Lobby,
		Run:           a.state.Run,
		CurrentMatch:  a.findMatchLocked(a.state.CurrentMatchID),
		RecentMatches: a.recentMatchesLocked(),
		Season:        a.state.Season,
		AllTime:       a.state.AllTime,
		ServerTime:    a.clock(),
	}

	data, err := json.Marshal(snap)
	if err != nil {
		log.Printf("ERROR: failed to clone snapshot: %v", err)
		return snap
	}
	var clone domain.Snapshot
	if err := json.Unmarshal(data, &clone); err != nil {
		log.Printf("ERROR: failed to clone snapshot: %v", err)
		return snap
	}
	return &clone
}

func (a *Arena) findAgentLocked(id string) *domain.Agent {
	for _, ag := range a.state.Agents {
		if ag.ID == id {
			return ag
		}
	}
	return nil
}

func (a *Arena) findAgentByNameLocked(name string) *domain.Agent {
	for _, ag := range a.state.Agents {
		if strings.EqualFold(ag.Name, name) {
			return ag
		}
	}
	return nil
}

func (a *Arena) agentNameLocked(id string) string {
	if ag := a.findAgentLocked(id); ag != nil {
		return ag.Name
	}
	return id
}

func (a *Arena) removeAgentLocked(id string) {
	for i, ag := range a.state.Agents {
		if ag.ID == id {
			a.state.Agents = append(a.state.Agents[:i], a.state.Agents[i+1:]...)
			break
		}
	}
	if l := a.state.Lobby; l != nil && l.Status == domain.LobbyOpen {
		for i, aid := range l.AgentIDs {
			if aid == id {
				l.AgentIDs = append(l.AgentIDs[:i], l.AgentIDs[i+1:]...)
				break
			}
		}
	}
}

func (a *Arena) publish(eventType string, payload interface{}) {
	if a.pub == nil {
		return
	}
	a.pub.Publish(eventType, payload)
}

func (a *Arena) publishSnapshotLocked() {
	if a.pub == nil {
		return
	}
	a.pub.Publish("snapshot", a.snapshotLocked())
}

// markDirtyLocked schedules a debounced persistence write. Mutations within
// the debounce window coalesce into one write.
func (a *Arena) markDirtyLocked() {
	a.dirty = true
	if a.store == nil || a.savePending {
		return
	}
	a.savePending = true
	time.AfterFunc(a.cfg.SaveDebounce, func() {
		a.mu.Lock()
		a.savePending = false
		a.mu.Unlock()
		a.flush()
	})
}

// flush writes the current state through the store. The document is cloned
// under the lock so the write itself happens off the critical path; a failed
// write is logged and retried on the next debounce cycle.
func (a *Arena) flush() {
	if a.store == nil {
		return
	}

	a.mu.Lock()
	if !a.dirty {
		a.mu.Unlock()
		return
	}
	a.dirty = false
	clone, err := cloneState(a.state)
	a.mu.Unlock()
	if err != nil {
		log.Printf("ERROR: failed to clone arena state: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.store.SaveState(ctx, clone); err != nil {
		log.Printf("ERROR: failed to persist arena state: %v", err)
		a.mu.Lock()
		a.markDirtyLocked()
		a.mu.Unlock()
	}
}

func cloneState(state *domain.State) (*domain.State, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	var clone domain.State
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, err
	}
	return &clone, nil
}
