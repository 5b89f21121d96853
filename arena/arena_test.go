package arena

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mizuho42/agent-arena/config"
	"github.com/mizuho42/agent-arena/domain"
)

// testConfig uses a far-future match duration so auto-resolution timers
// never fire inside a test; matches are resolved manually.
func testConfig() *config.Config {
	return &config.Config{
		LobbyMinAgents: 2,
		LobbyMaxAgents: 10,
		LobbyWait:      4 * time.Minute,
		TickInterval:   time.Second,
		MatchDuration:  time.Hour,
		Permadeath:     true,
		SaveDebounce:   10 * time.Millisecond,
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type capturingPub struct {
	mu     sync.Mutex
	events []string
}

func (p *capturingPub) Publish(eventType string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func (p *capturingPub) has(eventType string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e == eventType {
			return true
		}
	}
	return false
}

func newTestArena(cfg *config.Config) (*Arena, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	a := New(cfg, nil, nil, nil)
	a.clock = clock.Now
	a.rng = rand.New(rand.NewSource(1))
	return a, clock
}

// seedAgents injects agents with fixed ids, bypassing the lobby.
func seedAgents(a *Arena, ids ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range ids {
		a.state.Agents = append(a.state.Agents, &domain.Agent{
			ID:        id,
			Name:      id,
			CreatedAt: a.clock(),
		})
	}
}

func TestJoinIdempotent(t *testing.T) {
	a, _ := newTestArena(testConfig())
	ctx := context.Background()

	first, err := a.Join(ctx, "Alpha", "gpt")
	require.NoError(t, err)

	second, err := a.Join(ctx, "Alpha", "gpt")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// Case-insensitive uniqueness
	third, err := a.Join(ctx, "alpha", "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, third.ID)

	assert.Len(t, a.Agents(), 1)

	snap := a.Snapshot()
	require.NotNil(t, snap.Lobby)
	assert.Equal(t, []string{first.ID}, snap.Lobby.AgentIDs)
}

func TestJoinValidation(t *testing.T) {
	a, _ := newTestArena(testConfig())
	ctx := context.Background()

	_, err := a.Join(ctx, "", "")
	assert.ErrorIs(t, err, ErrNameRequired)

	_, err = a.Join(ctx, "   ", "")
	assert.ErrorIs(t, err, ErrNameRequired)

	long := make([]byte, 65)
	for i := range long {
		long[i] = 'x'
	}
	_, err = a.Join(ctx, string(long), "")
	assert.ErrorIs(t, err, ErrNameTooLong)

	_, err = a.Join(ctx, "ok", string(long[:33]))
	assert.ErrorIs(t, err, ErrTagTooLong)

	assert.Empty(t, a.Agents())
}

func TestLobbyCapacityStartsImmediately(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyMaxAgents = 2
	a, _ := newTestArena(cfg)
	ctx := context.Background()

	_, err := a.Join(ctx, "Alpha", "")
	require.NoError(t, err)

	snap := a.Snapshot()
	assert.Nil(t, snap.CurrentMatch)

	_, err = a.Join(ctx, "Beta", "")
	require.NoError(t, err)

	snap = a.Snapshot()
	require.NotNil(t, snap.CurrentMatch)
	assert.Equal(t, domain.MatchRunning, snap.CurrentMatch.Status)
	require.NotNil(t, snap.Run)
	assert.Equal(t, domain.RunRunning, snap.Run.Status)
	assert.Equal(t, domain.LobbyClosed, snap.Lobby.Status)
}

func TestLobbyDeadlineStart(t *testing.T) {
	a, clock := newTestArena(testConfig())
	ctx := context.Background()

	_, err := a.Join(ctx, "Alpha", "")
	require.NoError(t, err)
	_, err = a.Join(ctx, "Beta", "")
	require.NoError(t, err)

	// Two of ten: below capacity, deadline not reached yet.
	a.tick()
	assert.Nil(t, a.Snapshot().CurrentMatch)

	clock.Advance(5 * time.Minute)
	a.tick()

	snap := a.Snapshot()
	require.NotNil(t, snap.CurrentMatch)
	require.NotNil(t, snap.Run)
	assert.Equal(t, domain.RunRunning, snap.Run.Status)
}

func TestLobbyBelowMinimumNeverStarts(t *testing.T) {
	a, clock := newTestArena(testConfig())
	ctx := context.Background()

	_, err := a.Join(ctx, "Solo", "")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	a.tick()

	snap := a.Snapshot()
	assert.Nil(t, snap.CurrentMatch)
	assert.Nil(t, snap.Run)
	assert.Equal(t, domain.LobbyOpen, snap.Lobby.Status)
}

func TestRejoinAfterLobbyClosedOpensNewLobby(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyMaxAgents = 2
	a, _ := newTestArena(cfg)
	ctx := context.Background()

	_, err := a.Join(ctx, "Alpha", "")
	require.NoError(t, err)
	_, err = a.Join(ctx, "Beta", "")
	require.NoError(t, err)

	firstLobbyID := a.Snapshot().Lobby.ID

	// Tournament is running; a new joiner lands in a fresh open lobby.
	_, err = a.Join(ctx, "Gamma", "")
	require.NoError(t, err)

	snap := a.Snapshot()
	assert.NotEqual(t, firstLobbyID, snap.Lobby.ID)
	assert.Equal(t, domain.LobbyOpen, snap.Lobby.Status)
}

func TestSnapshotIsolatedFromLaterMutation(t *testing.T) {
	a, _ := newTestArena(testConfig())
	ctx := context.Background()
	seedAgents(a, "X", "Y")

	m, err := a.StartQuickMatch(ctx, "X", "Y")
	require.NoError(t, err)

	snap := a.Snapshot()
	require.NotNil(t, snap.CurrentMatch)
	eventsBefore := len(snap.CurrentMatch.Events)

	_, err = a.ResolveMatch(ctx, m.ID, "X")
	require.NoError(t, err)

	// The snapshot and the returned match are copies; resolution must not
	// reach back into them.
	assert.Equal(t, domain.MatchRunning, snap.CurrentMatch.Status)
	assert.Len(t, snap.CurrentMatch.Events, eventsBefore)
	assert.Empty(t, snap.Season.Played)
	assert.Equal(t, domain.MatchRunning, m.Status)
	assert.Empty(t, m.WinnerID)
}

func TestPublisherReceivesEvents(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyMaxAgents = 2
	pub := &capturingPub{}
	a, _ := newTestArena(cfg)
	a.pub = pub
	ctx := context.Background()

	_, err := a.Join(ctx, "Alpha", "")
	require.NoError(t, err)
	_, err = a.Join(ctx, "Beta", "")
	require.NoError(t, err)

	assert.True(t, pub.has("agents"))
	assert.True(t, pub.has("snapshot"))
	assert.True(t, pub.has("match"))
}
