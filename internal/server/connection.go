package server

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/gravitas-games/hexnav/internal/ai"
	"github.com/gravitas-games/hexnav/internal/audit"
	"github.com/gravitas-games/hexnav/internal/hex"
	"github.com/gravitas-games/hexnav/internal/network"
	"github.com/gravitas-games/hexnav/pkg/models"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

// Connection represents a WebSocket connection to an agent
type Connection struct {
	id string

	// WebSocket connection
	ws *websocket.Conn

	// Server reference
	server *Server

	// Agent information (set after authentication)
	agent *models.Agent

	// Buffered channel for outbound messages
	send chan []byte

	// Is connection authenticated
	authenticated bool
	joined        bool
}

// NewConnection creates a new connection
func NewConnection(ws *websocket.Conn, server *Server) *Connection {
	return &Connection{
		id:     uuid.NewString(),
		ws:     ws,
		server: server,
		send:   make(chan []byte, 256),
	}
}

// Handle manages the connection lifecycle
func (c *Connection) Handle() {
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.writePump()

	if !c.join() {
		c.Close()
		return
	}
	c.readPump() // Blocking
}

// readPump pumps messages from the WebSocket connection to the server
func (c *Connection) readPump() {
	defer c.Close()

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			break
		}

		var clientMsg network.ClientMessage
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			log.Printf("Failed to parse client message: %v", err)
			c.SendError("", network.ErrCodeInvalidMessage, "Failed to parse message")
			continue
		}

		c.handleMessage(&clientMsg)
	}
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WebSocket write error: %v", err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.server.ctx.Done():
			return
		}
	}
}

// join registers the agent with the session and greets it
func (c *Connection) join() bool {
	if !c.authenticated || c.agent == nil {
		c.SendError("", network.ErrCodeNotAuthenticated, "Connection not authenticated")
		return false
	}

	c.agent.Connected = true
	c.agent.ConnectedAt = time.Now()
	c.agent.SessionID = c.server.session.ID

	if err := c.server.session.AddAgent(c.agent, c); err != nil {
		log.Printf("Failed to add agent to session: %v", err)
		c.SendError("", network.ErrCodeSessionFull, err.Error())
		return false
	}
	c.joined = true

	c.SendMessage(&network.ServerMessage{
		Type: network.MsgTypeWelcome,
		Payload: network.WelcomePayload{
			AgentID:       c.agent.ID,
			Name:          c.agent.Name,
			ConnectionID:  c.id,
			SessionID:     c.server.session.ID,
			SessionStatus: c.server.session.GetStatus(),
		},
	})
	return true
}

// answer is the outcome of one query
type answer struct {
	payload interface{}
	found   bool
	size    int
}

type queryHandler func(c *Connection, raw json.RawMessage) (answer, error)

var queryHandlers = map[string]queryHandler{
	network.MsgTypeCell:      (*Connection).queryCell,
	network.MsgTypeNeighbors: (*Connection).queryNeighbors,
	network.MsgTypeReachable: (*Connection).queryReachable,
	network.MsgTypePath:      (*Connection).queryPath,
	network.MsgTypeDistance:  (*Connection).queryDistance,
	network.MsgTypeLocate:    (*Connection).queryLocate,
}

// handleMessage routes messages to appropriate handlers
func (c *Connection) handleMessage(msg *network.ClientMessage) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if c.agent != nil {
		c.agent.LastSeen = time.Now()
	}

	if msg.Type == network.MsgTypePing {
		c.SendMessage(&network.ServerMessage{
			Type:    network.MsgTypePong,
			ID:      msg.ID,
			Payload: map[string]interface{}{"timestamp": time.Now().Unix()},
		})
		return
	}

	handler, ok := queryHandlers[msg.Type]
	if !ok {
		log.Printf("Unknown message type: %s", msg.Type)
		c.SendError(msg.ID, network.ErrCodeUnknownType, "Unknown message type")
		return
	}
	if c.agent == nil || !c.agent.CanQuery() {
		c.SendError(msg.ID, network.ErrCodeForbidden, "Agent may not issue queries")
		return
	}

	start := time.Now()
	res, err := handler(c, msg.Payload)
	if err != nil {
		c.SendError(msg.ID, network.ErrCodeInvalidPayload, err.Error())
		return
	}
	c.SendMessage(&network.ServerMessage{Type: msg.Type, ID: msg.ID, Payload: res.payload})
	c.server.session.countQuery()

	err = c.server.audit.Record(audit.Entry{
		ConnectionID: c.id,
		AgentID:      c.agent.ID,
		RequestID:    msg.ID,
		Type:         msg.Type,
		Found:        res.found,
		Size:         res.size,
		DurationUS:   time.Since(start).Microseconds(),
	})
	if err != nil {
		log.Printf("Failed to audit %s query: %v", msg.Type, err)
	}
}

func (c *Connection) controller() *ai.Controller {
	return c.server.session.Level().Controller
}

func (c *Connection) decode(msgType string, raw json.RawMessage, dst any) error {
	if err := c.server.schemas.Decode(msgType, raw, dst); err != nil {
		return fmt.Errorf("invalid %s payload: %w", msgType, err)
	}
	return nil
}

func (c *Connection) queryCell(raw json.RawMessage) (answer, error) {
	var q network.CellQuery
	if err := c.decode(network.MsgTypeCell, raw, &q); err != nil {
		return answer{}, err
	}
	cell, ok := c.controller().Cell(q.At.Axial())
	if !ok {
		return answer{payload: network.CellResult{}}, nil
	}
	info := cellInfo(cell)
	return answer{payload: network.CellResult{Found: true, Cell: &info}, found: true, size: 1}, nil
}

func (c *Connection) queryNeighbors(raw json.RawMessage) (answer, error) {
	var q network.NeighborsQuery
	if err := c.decode(network.MsgTypeNeighbors, raw, &q); err != nil {
		return answer{}, err
	}
	ctrl := c.controller()
	cell, ok := ctrl.Cell(q.At.Axial())
	if !ok {
		return answer{payload: network.NeighborsResult{Cells: []network.CellInfo{}}}, nil
	}
	height := ctrl.SearchHeight()
	if q.SearchHeight != nil {
		height = *q.SearchHeight
	}
	neighbors := ctrl.ValidNeighbors(cell, height)
	sortCells(neighbors)

	infos := make([]network.CellInfo, len(neighbors))
	for i, n := range neighbors {
		infos[i] = cellInfo(n)
	}
	return answer{payload: network.NeighborsResult{Found: true, Cells: infos}, found: true, size: len(infos)}, nil
}

func (c *Connection) queryReachable(raw json.RawMessage) (answer, error) {
	var q network.ReachableQuery
	if err := c.decode(network.MsgTypeReachable, raw, &q); err != nil {
		return answer{}, err
	}
	ctrl := c.controller()
	center, ok := ctrl.Cell(q.From.Axial())
	if !ok {
		return answer{payload: network.ReachableResult{Fringes: [][]network.Coord{}}}, nil
	}

	tiers := ctrl.Fringes(center, q.Steps)
	res := network.ReachableResult{Found: true, Fringes: make([][]network.Coord, len(tiers))}
	for k, tier := range tiers {
		sortCells(tier)
		coords := make([]network.Coord, len(tier))
		for i, cell := range tier {
			coords[i] = network.CoordOf(cell.Coord)
		}
		res.Fringes[k] = coords
		res.Count += len(coords)
	}
	return answer{payload: res, found: true, size: res.Count}, nil
}

func (c *Connection) queryPath(raw json.RawMessage) (answer, error) {
	var q network.PathQuery
	if err := c.decode(network.MsgTypePath, raw, &q); err != nil {
		return answer{}, err
	}
	found, ok := c.controller().FindPath(q.From.Axial(), q.To.Axial())
	if !ok {
		return answer{payload: network.PathResult{Path: []network.Coord{}}}, nil
	}
	return answer{
		payload: network.PathResult{
			Found:    true,
			Path:     network.CoordsOf(found.Path),
			Cost:     found.Cost,
			Expanded: found.Expanded,
		},
		found: true,
		size:  len(found.Path),
	}, nil
}

func (c *Connection) queryDistance(raw json.RawMessage) (answer, error) {
	var q network.DistanceQuery
	if err := c.decode(network.MsgTypeDistance, raw, &q); err != nil {
		return answer{}, err
	}
	ctrl := c.controller()
	from, okFrom := ctrl.Cell(q.From.Axial())
	to, okTo := ctrl.Cell(q.To.Axial())
	if !okFrom || !okTo {
		return answer{payload: network.DistanceResult{}}, nil
	}
	d := ai.DistBetween(from, to)
	return answer{payload: network.DistanceResult{Found: true, Distance: d}, found: true, size: 1}, nil
}

func (c *Connection) queryLocate(raw json.RawMessage) (answer, error) {
	var q network.LocateQuery
	if err := c.decode(network.MsgTypeLocate, raw, &q); err != nil {
		return answer{}, err
	}
	at, _, ok := c.controller().Locate(q.Point)
	res := network.LocateResult{Found: ok, Coord: network.CoordOf(at)}
	size := 0
	if ok {
		size = 1
	}
	return answer{payload: res, found: ok, size: size}, nil
}

func cellInfo(cell *ai.Cell) network.CellInfo {
	return network.CellInfo{Coord: network.CoordOf(cell.Coord), Center: cell.Center}
}

// sortCells orders cells by layer, then q, then r so replies are stable
func sortCells(cells []*ai.Cell) {
	sort.Slice(cells, func(i, j int) bool {
		return less(cells[i].Coord, cells[j].Coord)
	})
}

func less(a, b hex.Axial) bool {
	if a.H != b.H {
		return a.H < b.H
	}
	if a.Q != b.Q {
		return a.Q < b.Q
	}
	return a.R < b.R
}

// SendMessage sends a message to the client
func (c *Connection) SendMessage(msg *network.ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal message: %v", err)
		return
	}

	select {
	case c.send <- data:
	default:
		log.Printf("Send buffer full, dropping message")
	}
}

// SendError sends an error message to the client
func (c *Connection) SendError(id, code, message string) {
	c.SendMessage(&network.ServerMessage{
		Type: network.MsgTypeError,
		ID:   id,
		Payload: network.ErrorPayload{
			Code:    code,
			Message: message,
		},
	})
}

// Close closes the connection
func (c *Connection) Close() {
	if c.joined && c.agent != nil {
		c.server.session.RemoveAgent(c.agent.ID, c)
		c.joined = false
	}

	close(c.send)
	c.ws.Close()
}
