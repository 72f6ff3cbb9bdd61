package server

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gravitas-games/hexnav/internal/level"
	"github.com/gravitas-games/hexnav/internal/network"
	"github.com/gravitas-games/hexnav/pkg/models"
)

// Session binds connected agents to one level
type Session struct {
	ID        string
	CreatedAt time.Time

	// Agent management
	agents      map[string]*models.Agent // agentID -> Agent
	connections map[string]*Connection   // agentID -> Connection
	maxAgents   int
	mu          sync.RWMutex

	level   *level.Level
	queries atomic.Int64
}

// NewSession creates a session serving queries against lvl
func NewSession(id string, lvl *level.Level, maxAgents int) *Session {
	log.Printf("Creating session %s for level %s", id, lvl.Name)

	return &Session{
		ID:          id,
		CreatedAt:   time.Now(),
		agents:      make(map[string]*models.Agent),
		connections: make(map[string]*Connection),
		maxAgents:   maxAgents,
		level:       lvl,
	}
}

// Level returns the level this session serves
func (s *Session) Level() *level.Level { return s.level }

// AddAgent adds an agent to the session
func (s *Session) AddAgent(agent *models.Agent, conn *Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.agents[agent.ID]; !exists && s.maxAgents > 0 && len(s.agents) >= s.maxAgents {
		return fmt.Errorf("session %s is full (%d agents)", s.ID, s.maxAgents)
	}

	s.agents[agent.ID] = agent
	s.connections[agent.ID] = conn

	log.Printf("Agent %s (%s) joined session %s", agent.Name, agent.ID, s.ID)
	return nil
}

// RemoveAgent removes an agent from the session if conn is still the
// connection registered for it. A superseded connection is a no-op.
func (s *Session) RemoveAgent(agentID string, conn *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connections[agentID] != conn {
		return
	}
	if agent, exists := s.agents[agentID]; exists {
		log.Printf("Agent %s (%s) left session %s", agent.Name, agentID, s.ID)
		delete(s.agents, agentID)
		delete(s.connections, agentID)
	}
}

// GetAgent retrieves an agent by ID
func (s *Session) GetAgent(agentID string) (*models.Agent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agent, exists := s.agents[agentID]
	return agent, exists
}

// GetAgents returns all agents in the session
func (s *Session) GetAgents() []*models.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agents := make([]*models.Agent, 0, len(s.agents))
	for _, agent := range s.agents {
		agents = append(agents, agent)
	}
	return agents
}

// countQuery records one answered query
func (s *Session) countQuery() {
	s.queries.Add(1)
}

// GetStatus returns the current session status
func (s *Session) GetStatus() network.SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return network.SessionStatus{
		Level:      s.level.Name,
		Cells:      s.level.CellCount(),
		AgentCount: len(s.agents),
		MaxAgents:  s.maxAgents,
		Queries:    s.queries.Load(),
		Uptime:     int64(time.Since(s.CreatedAt).Seconds()),
	}
}
