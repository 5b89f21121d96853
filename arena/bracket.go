package arena

import (
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/mizuho42/agent-arena/domain"
)

// startRunLocked initializes a single-elimination run over the given agents.
// The round-1 pool is a uniform shuffle of the entrants.
func (a *Arena) startRunLocked(agentIDs []string) error {
	if len(agentIDs) < 2 {
		return ErrNotEnoughAgents
	}

	pool := make([]string, len(agentIDs))
	copy(pool, agentIDs)
	a.rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	a.state.Run = &domain.TournamentRun{
		ID:       "run_" + uuid.New().String()[:8],
		Status:   domain.RunRunning,
		Round:    1,
		Entrants: agentIDs,
		Pool:     pool,
		Next:     []string{},
	}
	log.Printf("INFO: tournament %s started with %d agents", a.state.Run.ID, len(agentIDs))
	a.markDirtyLocked()
	return nil
}

// advanceWinnerLocked moves a match winner into the next round. It does not
// tick; resolution drives the tick so the causal chain stays
// resolve -> record -> advance -> tick -> maybe new match.
func (a *Arena) advanceWinnerLocked(winnerID string) {
	run := a.state.Run
	if run == nil || run.Status != domain.RunRunning {
		return
	}
	run.Next = append(run.Next, winnerID)
}

// tickBracketLocked advances the bracket one step: crown the champion, roll
// over to the next round, grant a bye, or pair the next two agents. Only the
// pairing branch creates a match; the scheduler must not tick again until
// that match resolves.
func (a *Arena) tickBracketLocked() {
	run := a.state.Run
	if run == nil || run.Status != domain.RunRunning {
		return
	}
	if a.state.CurrentMatchID != "" {
		return
	}

	switch {
	case len(run.Pool) == 0 && len(run.Next) == 1:
		run.Status = domain.RunComplete
		championID := run.Next[0]
		log.Printf("INFO: tournament %s complete, champion: %s", run.ID, a.agentNameLocked(championID))
		a.publish("run", run)
		a.markDirtyLocked()
		a.publishSnapshotLocked()

	case len(run.Pool) == 0 && len(run.Next) >= 2:
		run.Round++
		run.Pool = run.Next
		run.Next = []string{}
		a.rng.Shuffle(len(run.Pool), func(i, j int) {
			run.Pool[i], run.Pool[j] = run.Pool[j], run.Pool[i]
		})
		log.Printf("INFO: tournament %s advancing to round %d with %d agents", run.ID, run.Round, len(run.Pool))
		a.markDirtyLocked()
		a.tickBracketLocked()

	case len(run.Pool)%2 == 1:
		// Odd pool entering the round: the trailing agent takes a wildcard
		// bye straight into the next round. The pool was shuffled, so which
		// agent sits out is uniformly random.
		byeID := run.Pool[len(run.Pool)-1]
		run.Pool = run.Pool[:len(run.Pool)-1]
		run.Next = append(run.Next, byeID)
		a.pendingByeID = byeID
		log.Printf("INFO: %s advances on a bye in round %d", a.agentNameLocked(byeID), run.Round)
		a.markDirtyLocked()
		a.tickBracketLocked()

	default:
		aID, bID := run.Pool[0], run.Pool[1]
		run.Pool = run.Pool[2:]
		label := fmt.Sprintf("ROUND %d", run.Round)
		if _, err := a.createMatchLocked(aID, bID, label); err != nil {
			log.Printf("ERROR: failed to create bracket match: %v", err)
			return
		}
		a.markDirtyLocked()
		a.publishSnapshotLocked()
	}
}
