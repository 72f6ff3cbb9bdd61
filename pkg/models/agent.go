package models

import "time"

// Permission bits carried in the JWT permissions claim
const (
	PermQuery int64 = 1 << iota // may issue movement queries
	PermAdmin                   // may inspect session internals
)

// Agent represents an authenticated AI or gameplay client
type Agent struct {
	// From JWT claims
	ID          string `json:"id"`          // Converted from int64 agent_id
	Name        string `json:"name"`        // JWT claim
	Faction     string `json:"faction"`     // JWT claim
	Permissions int64  `json:"permissions"` // JWT claim: bitwise permission flags
	Activated   int64  `json:"activated"`   // JWT claim: activation timestamp or ban status

	// Connection state
	Connected   bool      `json:"connected"`
	ConnectedAt time.Time `json:"connected_at"`
	LastSeen    time.Time `json:"last_seen"`

	// Session state
	SessionID string `json:"session_id"`
}

// IsActive checks if the agent account is activated and not banned
func (a *Agent) IsActive() bool {
	// activated > 0 means activated
	// activated == 0 means not activated
	// activated == -1 means banned
	return a.Activated > 0
}

// IsBanned checks if the agent is banned
func (a *Agent) IsBanned() bool {
	return a.Activated == -1
}

// CanQuery checks if the agent may issue movement queries
func (a *Agent) CanQuery() bool {
	return a.Permissions&(PermQuery|PermAdmin) != 0
}
