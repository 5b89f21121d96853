package arena

import (
	"github.com/google/uuid"

	"github.com/mizuho42/agent-arena/domain"
)

// recordOutcome increments played for both agents and wins for the winner,
// in the season and all-time ledgers. Ids are counted whether or not they
// are still on the roster; a permadead agent's history stays queryable.
func recordOutcome(season *domain.Season, allTime *domain.Ledger, winnerID, loserID string) {
	if winnerID == "" || loserID == "" {
		return
	}
	season.Played[winnerID]++
	season.Played[loserID]++
	season.Wins[winnerID]++

	allTime.Played[winnerID]++
	allTime.Played[loserID]++
	allTime.Wins[winnerID]++
}

// newSeason builds a fresh season with zeroed counters.
func (a *Arena) newSeason(number int) *domain.Season {
	return &domain.Season{
		Number:    number,
		ID:        "season_" + uuid.New().String()[:8],
		StartedAt: a.clock(),
		Wins:      map[string]int{},
		Played:    map[string]int{},
	}
}
