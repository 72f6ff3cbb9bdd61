package network

import (
	"encoding/json"

	"github.com/gravitas-games/hexnav/internal/hex"
)

// Message types - Client → Server. Query replies reuse the query type.
const (
	MsgTypeCell      = "cell"
	MsgTypeNeighbors = "neighbors"
	MsgTypeReachable = "reachable"
	MsgTypePath      = "path"
	MsgTypeDistance  = "distance"
	MsgTypeLocate    = "locate"
	MsgTypePing      = "ping"
)

// Message types - Server → Client
const (
	MsgTypeWelcome = "welcome"
	MsgTypeError   = "error"
	MsgTypePong    = "pong"
)

// Error codes
const (
	ErrCodeInvalidMessage   = "invalid_message"
	ErrCodeInvalidPayload   = "invalid_payload"
	ErrCodeUnknownType      = "unknown_message_type"
	ErrCodeNotAuthenticated = "not_authenticated"
	ErrCodeForbidden        = "forbidden"
	ErrCodeSessionFull      = "session_full"
)

// ClientMessage represents any message from client to server
type ClientMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage represents any message from server to client
type ServerMessage struct {
	Type    string      `json:"type"`
	ID      string      `json:"id,omitempty"`
	Payload interface{} `json:"payload"`
}

// Coord is an axial coordinate on the wire
type Coord struct {
	Q int `json:"q" jsonschema:"required"`
	R int `json:"r" jsonschema:"required"`
	H int `json:"h,omitempty"`
}

// Axial converts to the grid coordinate type
func (c Coord) Axial() hex.Axial { return hex.Axial{Q: c.Q, R: c.R, H: c.H} }

// CoordOf converts a grid coordinate for the wire
func CoordOf(a hex.Axial) Coord { return Coord{Q: a.Q, R: a.R, H: a.H} }

// CoordsOf converts a slice of grid coordinates for the wire
func CoordsOf(as []hex.Axial) []Coord {
	out := make([]Coord, len(as))
	for i, a := range as {
		out[i] = CoordOf(a)
	}
	return out
}

// --- Client Message Payloads ---

// CellQuery looks up a single cell
type CellQuery struct {
	At Coord `json:"at" jsonschema:"required"`
}

// NeighborsQuery lists the unobstructed neighbours of a cell
type NeighborsQuery struct {
	At           Coord `json:"at" jsonschema:"required"`
	SearchHeight *int  `json:"search_height,omitempty" jsonschema:"minimum=-1"`
}

// ReachableQuery lists the cells reachable within a number of steps
type ReachableQuery struct {
	From  Coord `json:"from" jsonschema:"required"`
	Steps int   `json:"steps" jsonschema:"required,minimum=0,maximum=64"`
}

// PathQuery asks for the shortest path between two cells
type PathQuery struct {
	From Coord `json:"from" jsonschema:"required"`
	To   Coord `json:"to" jsonschema:"required"`
}

// DistanceQuery asks for the planar distance between two cells
type DistanceQuery struct {
	From Coord `json:"from" jsonschema:"required"`
	To   Coord `json:"to" jsonschema:"required"`
}

// LocateQuery maps a world point to the cell containing it
type LocateQuery struct {
	Point hex.Vec3 `json:"point" jsonschema:"required"`
}

// --- Server Message Payloads ---

// WelcomePayload is sent to client after successful connection
type WelcomePayload struct {
	AgentID       string        `json:"agent_id"`
	Name          string        `json:"name"`
	ConnectionID  string        `json:"connection_id"`
	SessionID     string        `json:"session_id"`
	SessionStatus SessionStatus `json:"session_status"`
}

// CellInfo describes one cell
type CellInfo struct {
	Coord  Coord    `json:"coord"`
	Center hex.Vec3 `json:"center"`
}

// CellResult answers a cell query
type CellResult struct {
	Found bool      `json:"found"`
	Cell  *CellInfo `json:"cell,omitempty"`
}

// NeighborsResult answers a neighbors query
type NeighborsResult struct {
	Found bool       `json:"found"`
	Cells []CellInfo `json:"cells"`
}

// ReachableResult answers a reachable query. Fringes[k] holds the cells
// first reached on step k.
type ReachableResult struct {
	Found   bool      `json:"found"`
	Count   int       `json:"count"`
	Fringes [][]Coord `json:"fringes"`
}

// PathResult answers a path query. Path runs from the goal back towards
// the start, start excluded.
type PathResult struct {
	Found    bool    `json:"found"`
	Path     []Coord `json:"path"`
	Cost     int     `json:"cost,omitempty"`
	Expanded int     `json:"expanded,omitempty"`
}

// DistanceResult answers a distance query
type DistanceResult struct {
	Found    bool `json:"found"`
	Distance int  `json:"distance"`
}

// LocateResult answers a locate query
type LocateResult struct {
	Found bool  `json:"found"`
	Coord Coord `json:"coord"`
}

// SessionStatus represents the current session state
type SessionStatus struct {
	Level      string `json:"level"`
	Cells      int    `json:"cells"`
	AgentCount int    `json:"agent_count"`
	MaxAgents  int    `json:"max_agents"`
	Queries    int64  `json:"queries"`
	Uptime     int64  `json:"uptime"`
}

// ErrorPayload contains error information
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
