// Package domain defines the core domain models for the arena.
package domain

import "time"

// LobbyStatus represents the status of a lobby.
type LobbyStatus string

const (
	LobbyOpen   LobbyStatus = "open"
	LobbyClosed LobbyStatus = "closed"
)

// RunStatus represents the status of a tournament run.
type RunStatus string

const (
	RunIdle     RunStatus = "idle"
	RunRunning  RunStatus = "running"
	RunComplete RunStatus = "complete"
)

// MatchStatus represents the status of a match. MatchIdle describes the
// "no match" slot; a Match record itself is only ever created running.
type MatchStatus string

const (
	MatchIdle     MatchStatus = "idle"
	MatchRunning  MatchStatus = "running"
	MatchComplete MatchStatus = "complete"
)

// MatchEventType represents the kind of a narrative match event.
type MatchEventType string

const (
	EventAnnounce   MatchEventType = "announce"
	EventStart      MatchEventType = "start"
	EventCommentary MatchEventType = "commentary"
	EventBye        MatchEventType = "bye"
	EventResolved   MatchEventType = "resolved"
	EventEliminated MatchEventType = "eliminated"
)

// Agent represents a tournament participant. Names are unique
// case-insensitively; agents are removed on permadeath.
type Agent struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Tag       string    `json:"tag,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Lobby is the open waiting pool of joined agents. At most one lobby is
// open at a time; membership is insertion-ordered with duplicates suppressed.
type Lobby struct {
	ID        string      `json:"id"`
	Status    LobbyStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	ClosesAt  time.Time   `json:"closes_at"`
	AgentIDs  []string    `json:"agent_ids"`
}

// TournamentRun is the active single-elimination bracket. Pool holds the
// current round's unpaired ids; Next holds round winners awaiting the next
// round. The run is complete exactly when Pool is empty and Next holds one id.
type TournamentRun struct {
	ID       string    `json:"id"`
	Status   RunStatus `json:"status"`
	Round    int       `json:"round"`
	Entrants []string  `json:"entrants"`
	Pool     []string  `json:"pool"`
	Next     []string  `json:"next"`
}

// MatchEvent is one timestamped entry in a match's narrative log.
type MatchEvent struct {
	Ts      time.Time      `json:"ts"`
	Type    MatchEventType `json:"type"`
	Message string         `json:"message"`
}

// Match is a single bout between two agents.
type Match struct {
	ID        string       `json:"id"`
	Status    MatchStatus  `json:"status"`
	AgentAID  string       `json:"agent_a_id"`
	AgentBID  string       `json:"agent_b_id"`
	Label     string       `json:"label"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   *time.Time   `json:"ended_at,omitempty"`
	WinnerID  string       `json:"winner_id,omitempty"`
	Events    []MatchEvent `json:"events"`
}

// Ledger holds win/played counters keyed by agent id.
type Ledger struct {
	Wins   map[string]int `json:"wins"`
	Played map[string]int `json:"played"`
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{Wins: map[string]int{}, Played: map[string]int{}}
}

// Season is a resettable counting epoch. Number increments on every reset.
type Season struct {
	Number    int            `json:"number"`
	ID        string         `json:"id"`
	StartedAt time.Time      `json:"started_at"`
	Wins      map[string]int `json:"wins"`
	Played    map[string]int `json:"played"`
}

// State is the single persisted arena document.
type State struct {
	Agents         []*Agent       `json:"agents"`
	Lobby          *Lobby         `json:"lobby,omitempty"`
	Run            *TournamentRun `json:"tournament_run,omitempty"`
	Matches        []*Match       `json:"matches"`
	CurrentMatchID string         `json:"current_match_id,omitempty"`
	Season         *Season        `json:"season"`
	AllTime        *Ledger        `json:"all_time"`
}

// Snapshot is the read-only projection served to spectators and the API.
type Snapshot struct {
	Agents        []*Agent       `json:"agents"`
	Lobby         *Lobby         `json:"lobby,omitempty"`
	Run           *TournamentRun `json:"tournament_run,omitempty"`
	CurrentMatch  *Match         `json:"current_match,omitempty"`
	RecentMatches []*Match       `json:"recent_matches"`
	Season        *Season        `json:"season"`
	AllTime       *Ledger        `json:"all_time"`
	ServerTime    time.Time      `json:"server_time"`
}
