package arena

import (
	"log"

	"github.com/google/uuid"

	"github.com/mizuho42/agent-arena/domain"
)

// ensureLobbyLocked returns the open lobby, creating one with a fresh
// deadline if the previous lobby has closed.
func (a *Arena) ensureLobbyLocked() *domain.Lobby {
	if l := a.state.Lobby; l != nil && l.Status == domain.LobbyOpen {
		return l
	}
	now := a.clock()
	l := &domain.Lobby{
		ID:        "lobby_" + uuid.New().String()[:8],
		Status:    domain.LobbyOpen,
		CreatedAt: now,
		ClosesAt:  now.Add(a.cfg.LobbyWait),
		AgentIDs:  []string{},
	}
	a.state.Lobby = l
	log.Printf("INFO: lobby %s open, closes at %s", l.ID, l.ClosesAt.Format("15:04:05"))
	return l
}

// addToLobbyLocked appends the agent to the open lobby. No-op if already
// listed.
func (a *Arena) addToLobbyLocked(agentID string) {
	l := a.ensureLobbyLocked()
	for _, id := range l.AgentIDs {
		if id == agentID {
			return
		}
	}
	l.AgentIDs = append(l.AgentIDs, agentID)
}

// lobbyReadyLocked reports whether the open lobby should convert into a
// tournament: full lobbies start immediately, partially filled ones start
// once the deadline passes, and lobbies below the minimum never start.
func (a *Arena) lobbyReadyLocked() bool {
	l := a.state.Lobby
	if l == nil || l.Status != domain.LobbyOpen {
		return false
	}
	if len(l.AgentIDs) >= a.cfg.LobbyMaxAgents {
		return true
	}
	if len(l.AgentIDs) < a.cfg.LobbyMinAgents {
		return false
	}
	return !a.clock().Before(l.ClosesAt)
}

// closeLobbyLocked closes the lobby and returns its members filtered to the
// live roster. If fewer than the minimum survive the filter the lobby stays
// open and nil is returned.
func (a *Arena) closeLobbyLocked() []string {
	l := a.state.Lobby
	if l == nil || l.Status != domain.LobbyOpen {
		return nil
	}

	ids := make([]string, 0, len(l.AgentIDs))
	for _, id := range l.AgentIDs {
		if a.findAgentLocked(id) != nil {
			ids = append(ids, id)
		}
	}
	if len(ids) < a.cfg.LobbyMinAgents {
		return nil
	}

	l.Status = domain.LobbyClosed
	log.Printf("INFO: lobby %s closed with %d agents", l.ID, len(ids))
	return ids
}

// tryStartTournamentLocked converts a ready lobby into a running bracket and
// ticks it once to create the first match.
func (a *Arena) tryStartTournamentLocked() {
	if a.state.CurrentMatchID != "" {
		return
	}
	if a.state.Run != nil && a.state.Run.Status == domain.RunRunning {
		return
	}
	if !a.lobbyReadyLocked() {
		return
	}

	ids := a.closeLobbyLocked()
	if ids == nil {
		return
	}
	if err := a.startRunLocked(ids); err != nil {
		log.Printf("ERROR: failed to start tournament: %v", err)
		return
	}
	a.tickBracketLocked()
}
