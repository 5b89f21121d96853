package arena

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mizuho42/agent-arena/domain"
)

func startRun(t *testing.T, a *Arena, ids ...string) {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.startRunLocked(ids); err != nil {
		t.Fatalf("startRunLocked failed: %v", err)
	}
	a.tickBracketLocked()
}

func currentMatch(a *Arena) *domain.Match {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.findMatchLocked(a.state.CurrentMatchID)
}

// assertConservation checks that pool, next, the eliminated set and the
// in-flight match participants partition the original entrants with no id
// duplicated or lost.
func assertConservation(t *testing.T, run *domain.TournamentRun, current *domain.Match, eliminated map[string]bool) {
	t.Helper()
	seen := map[string]int{}
	for _, id := range run.Pool {
		seen[id]++
	}
	for _, id := range run.Next {
		seen[id]++
	}
	for id := range eliminated {
		seen[id]++
	}
	if current != nil && current.Status == domain.MatchRunning {
		seen[current.AgentAID]++
		seen[current.AgentBID]++
	}
	for _, id := range run.Entrants {
		if seen[id] != 1 {
			t.Fatalf("agent %s appears %d times across pool/next/eliminated/in-flight", id, seen[id])
		}
	}
}

func TestStartRunRejectsTooFew(t *testing.T) {
	a, _ := newTestArena(testConfig())

	a.mu.Lock()
	err := a.startRunLocked([]string{"only"})
	a.mu.Unlock()

	assert.ErrorIs(t, err, ErrNotEnoughAgents)
	assert.Nil(t, a.Snapshot().Run)
}

func TestBracketByeWithThree(t *testing.T) {
	a, _ := newTestArena(testConfig())
	seedAgents(a, "A", "B", "C")

	startRun(t, a, "A", "B", "C")

	snap := a.Snapshot()
	require.NotNil(t, snap.CurrentMatch)
	require.NotNil(t, snap.Run)

	// Exactly one match among two agents; the third holds a bye in next and
	// no match references it.
	require.Len(t, snap.Run.Next, 1)
	byeID := snap.Run.Next[0]
	assert.Empty(t, snap.Run.Pool)
	assert.NotEqual(t, byeID, snap.CurrentMatch.AgentAID)
	assert.NotEqual(t, byeID, snap.CurrentMatch.AgentBID)
	assert.Len(t, snap.RecentMatches, 1)

	// The bye is narrated on the round's match.
	types := []domain.MatchEventType{}
	for _, e := range snap.CurrentMatch.Events {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, domain.EventBye)
}

func TestFullTournament(t *testing.T) {
	a, _ := newTestArena(testConfig())
	ctx := context.Background()
	seedAgents(a, "A", "B", "C", "D")

	startRun(t, a, "A", "B", "C", "D")

	// Round 1, match 1: force the first participant.
	m1 := currentMatch(a)
	require.NotNil(t, m1)
	w1 := m1.AgentAID
	_, err := a.ResolveMatch(ctx, m1.ID, w1)
	require.NoError(t, err)

	// Resolution advances the bracket and creates round 1, match 2.
	m2 := currentMatch(a)
	require.NotNil(t, m2)
	assert.NotEqual(t, m1.ID, m2.ID)
	w2 := m2.AgentAID
	_, err = a.ResolveMatch(ctx, m2.ID, w2)
	require.NoError(t, err)

	// Round 2: exactly one final between the two round-1 winners.
	final := currentMatch(a)
	require.NotNil(t, final)
	assert.Equal(t, "ROUND 2", final.Label)
	assert.ElementsMatch(t, []string{w1, w2}, []string{final.AgentAID, final.AgentBID})

	_, err = a.ResolveMatch(ctx, final.ID, w1)
	require.NoError(t, err)

	snap := a.Snapshot()
	require.NotNil(t, snap.Run)
	assert.Equal(t, domain.RunComplete, snap.Run.Status)
	assert.Equal(t, []string{w1}, snap.Run.Next)
	assert.Empty(t, snap.Run.Pool)
	assert.Nil(t, snap.CurrentMatch)
}

func TestBracketConservation(t *testing.T) {
	a, _ := newTestArena(testConfig())
	ctx := context.Background()
	ids := []string{"A", "B", "C", "D", "E"}
	seedAgents(a, ids...)

	startRun(t, a, ids...)

	eliminated := map[string]bool{}
	for i := 0; i < 10; i++ {
		snap := a.Snapshot()
		require.NotNil(t, snap.Run)
		if snap.Run.Status == domain.RunComplete {
			break
		}
		m := snap.CurrentMatch
		require.NotNil(t, m, "a running bracket with no champion must have a match in flight")

		resolved, err := a.ResolveMatch(ctx, m.ID, "")
		require.NoError(t, err)

		loser := resolved.AgentAID
		if loser == resolved.WinnerID {
			loser = resolved.AgentBID
		}
		eliminated[loser] = true

		after := a.Snapshot()
		assertConservation(t, after.Run, after.CurrentMatch, eliminated)
	}

	snap := a.Snapshot()
	assert.Equal(t, domain.RunComplete, snap.Run.Status)
	require.Len(t, snap.Run.Next, 1)
	assert.Len(t, eliminated, len(ids)-1)
	assert.False(t, eliminated[snap.Run.Next[0]], "champion must not be eliminated")
}

func TestChampionUniqueness(t *testing.T) {
	a, _ := newTestArena(testConfig())
	ctx := context.Background()
	ids := []string{"A", "B", "C", "D", "E", "F", "G"}
	seedAgents(a, ids...)

	startRun(t, a, ids...)

	for i := 0; i < 20; i++ {
		snap := a.Snapshot()
		if snap.Run.Status == domain.RunComplete {
			break
		}
		require.NotNil(t, snap.CurrentMatch)
		_, err := a.ResolveMatch(ctx, snap.CurrentMatch.ID, "")
		require.NoError(t, err)
	}

	snap := a.Snapshot()
	assert.Equal(t, domain.RunComplete, snap.Run.Status)
	assert.Len(t, snap.Run.Next, 1)
	assert.Empty(t, snap.Run.Pool)
	assert.Contains(t, ids, snap.Run.Next[0])
}
