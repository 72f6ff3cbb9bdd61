package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gravitas-games/hexnav/internal/audit"
	"github.com/gravitas-games/hexnav/internal/config"
	"github.com/gravitas-games/hexnav/internal/level"
	"github.com/gravitas-games/hexnav/internal/network"
	"github.com/gravitas-games/hexnav/pkg/models"
)

type reply struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// newTestServer serves a radius-2 flat level with the edge (0,0)-(1,0) walled.
func newTestServer(t *testing.T, maxAgents int) *Server {
	t.Helper()
	cfg := &config.Config{
		JWT:     config.JWTConfig{Issuer: testIssuer},
		Session: config.SessionConfig{MaxAgents: maxAgents},
	}
	lvl, err := level.Build(config.LevelConfig{
		Name:   "test",
		Radius: 2,
		Walls:  []config.Wall{{From: [3]int{0, 0, 0}, To: [3]int{1, 0, 0}}},
	}, config.GridConfig{CellRadius: 1, LayerHeight: 1, SearchHeight: 1})
	if err != nil {
		t.Fatalf("build level: %v", err)
	}
	schemas, err := network.NewValidator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return newServer(ctx, cancel, cfg, NewSession("test", lvl, maxAgents), schemas)
}

func newTestConnection(srv *Server, agentID string, perms int64) *Connection {
	return &Connection{
		id:            "conn-" + agentID,
		server:        srv,
		agent:         &models.Agent{ID: agentID, Name: "agent-" + agentID, Permissions: perms, Activated: 1},
		authenticated: true,
		send:          make(chan []byte, 16),
	}
}

func next(t *testing.T, c *Connection) reply {
	t.Helper()
	select {
	case data := <-c.send:
		var r reply
		if err := json.Unmarshal(data, &r); err != nil {
			t.Fatalf("bad server message %s: %v", data, err)
		}
		return r
	default:
		t.Fatalf("expected a queued server message")
		return reply{}
	}
}

func ask(t *testing.T, c *Connection, msgType, id, payload string, out any) reply {
	t.Helper()
	c.handleMessage(&network.ClientMessage{Type: msgType, ID: id, Payload: json.RawMessage(payload)})
	r := next(t, c)
	if out != nil {
		if r.Type != msgType {
			t.Fatalf("expected %s reply, got %s: %s", msgType, r.Type, r.Payload)
		}
		if err := json.Unmarshal(r.Payload, out); err != nil {
			t.Fatalf("decode %s payload: %v", msgType, err)
		}
	}
	return r
}

func TestJoinSendsWelcome(t *testing.T) {
	srv := newTestServer(t, 4)
	c := newTestConnection(srv, "1", models.PermQuery)
	if !c.join() {
		t.Fatalf("expected join to succeed")
	}
	r := next(t, c)
	if r.Type != network.MsgTypeWelcome {
		t.Fatalf("expected welcome, got %s", r.Type)
	}
	var welcome network.WelcomePayload
	if err := json.Unmarshal(r.Payload, &welcome); err != nil {
		t.Fatalf("decode welcome: %v", err)
	}
	if welcome.AgentID != "1" || welcome.ConnectionID != "conn-1" || welcome.SessionStatus.Cells != 19 {
		t.Fatalf("unexpected welcome %+v", welcome)
	}
	if welcome.SessionStatus.AgentCount != 1 || welcome.SessionStatus.Level != "test" {
		t.Fatalf("unexpected session status %+v", welcome.SessionStatus)
	}
	if _, ok := srv.session.GetAgent("1"); !ok {
		t.Fatalf("expected agent registered in session")
	}
}

func TestJoinRejects(t *testing.T) {
	srv := newTestServer(t, 1)
	first := newTestConnection(srv, "1", models.PermQuery)
	if !first.join() {
		t.Fatalf("expected first join to succeed")
	}

	second := newTestConnection(srv, "2", models.PermQuery)
	if second.join() {
		t.Fatalf("expected join to fail on a full session")
	}
	if r := next(t, second); r.Type != network.MsgTypeError || !strings.Contains(string(r.Payload), network.ErrCodeSessionFull) {
		t.Fatalf("expected session_full error, got %s %s", r.Type, r.Payload)
	}

	anon := &Connection{server: srv, send: make(chan []byte, 4)}
	if anon.join() {
		t.Fatalf("expected unauthenticated join to fail")
	}
	if r := next(t, anon); !strings.Contains(string(r.Payload), network.ErrCodeNotAuthenticated) {
		t.Fatalf("expected not_authenticated error, got %s", r.Payload)
	}

	srv.session.RemoveAgent("1", first)
	if len(srv.session.GetAgents()) != 0 {
		t.Fatalf("expected empty session after removal")
	}
}

func TestReconnectKeepsLiveConnection(t *testing.T) {
	srv := newTestServer(t, 4)
	stale := newTestConnection(srv, "1", models.PermQuery)
	if !stale.join() {
		t.Fatalf("expected first join to succeed")
	}
	live := newTestConnection(srv, "1", models.PermQuery)
	if !live.join() {
		t.Fatalf("expected reconnect under the same agent to succeed")
	}

	srv.session.RemoveAgent("1", stale)
	if _, ok := srv.session.GetAgent("1"); !ok {
		t.Fatalf("stale connection evicted the live registration")
	}
	if got := srv.session.GetStatus().AgentCount; got != 1 {
		t.Fatalf("expected 1 agent, got %d", got)
	}

	srv.session.RemoveAgent("1", live)
	if _, ok := srv.session.GetAgent("1"); ok {
		t.Fatalf("expected agent removed with its live connection")
	}
}

func TestQueryCell(t *testing.T) {
	srv := newTestServer(t, 4)
	c := newTestConnection(srv, "1", models.PermQuery)

	var res network.CellResult
	r := ask(t, c, network.MsgTypeCell, "req-1", `{"at":{"q":1,"r":-1}}`, &res)
	if r.ID != "req-1" {
		t.Fatalf("expected request id echoed, got %q", r.ID)
	}
	if !res.Found || res.Cell == nil || res.Cell.Coord != (network.Coord{Q: 1, R: -1}) {
		t.Fatalf("unexpected cell result %+v", res)
	}

	res = network.CellResult{}
	ask(t, c, network.MsgTypeCell, "req-2", `{"at":{"q":9,"r":0}}`, &res)
	if res.Found || res.Cell != nil {
		t.Fatalf("expected unpopulated cell to be not found, got %+v", res)
	}
}

func TestQueryNeighbors(t *testing.T) {
	srv := newTestServer(t, 4)
	c := newTestConnection(srv, "1", models.PermQuery)

	var res network.NeighborsResult
	ask(t, c, network.MsgTypeNeighbors, "n", `{"at":{"q":0,"r":0}}`, &res)
	if !res.Found || len(res.Cells) != 5 {
		t.Fatalf("expected 5 open neighbours, got %+v", res)
	}
	for _, cell := range res.Cells {
		if cell.Coord == (network.Coord{Q: 1}) {
			t.Fatalf("walled neighbour reported")
		}
	}
}

func TestQueryReachable(t *testing.T) {
	srv := newTestServer(t, 4)
	c := newTestConnection(srv, "1", models.PermQuery)

	var res network.ReachableResult
	ask(t, c, network.MsgTypeReachable, "r", `{"from":{"q":0,"r":0},"steps":1}`, &res)
	if !res.Found || res.Count != 6 || len(res.Fringes) != 2 || len(res.Fringes[1]) != 5 {
		t.Fatalf("unexpected reachable result %+v", res)
	}

	res = network.ReachableResult{}
	ask(t, c, network.MsgTypeReachable, "r0", `{"from":{"q":0,"r":0},"steps":0}`, &res)
	if res.Count != 1 || len(res.Fringes) != 1 {
		t.Fatalf("expected only the center, got %+v", res)
	}
}

func TestQueryPath(t *testing.T) {
	srv := newTestServer(t, 4)
	c := newTestConnection(srv, "1", models.PermQuery)

	var res network.PathResult
	ask(t, c, network.MsgTypePath, "p", `{"from":{"q":0,"r":0},"to":{"q":0,"r":1}}`, &res)
	if !res.Found || len(res.Path) != 1 || res.Path[0] != (network.Coord{R: 1}) || res.Cost != 2 {
		t.Fatalf("unexpected path result %+v", res)
	}

	// The walled edge forces a detour.
	res = network.PathResult{}
	ask(t, c, network.MsgTypePath, "p2", `{"from":{"q":0,"r":0},"to":{"q":1,"r":0}}`, &res)
	if !res.Found || len(res.Path) != 2 || res.Path[0] != (network.Coord{Q: 1}) {
		t.Fatalf("unexpected detour %+v", res)
	}

	res = network.PathResult{}
	ask(t, c, network.MsgTypePath, "p3", `{"from":{"q":0,"r":0},"to":{"q":0,"r":0}}`, &res)
	if !res.Found || res.Path == nil || len(res.Path) != 0 {
		t.Fatalf("expected empty self path, got %+v", res)
	}

	res = network.PathResult{}
	ask(t, c, network.MsgTypePath, "p4", `{"from":{"q":0,"r":0},"to":{"q":7,"r":0}}`, &res)
	if res.Found {
		t.Fatalf("expected no path to an unpopulated cell")
	}
}

func TestQueryDistanceAndLocate(t *testing.T) {
	srv := newTestServer(t, 4)
	c := newTestConnection(srv, "1", models.PermQuery)

	var dist network.DistanceResult
	ask(t, c, network.MsgTypeDistance, "d", `{"from":{"q":-2,"r":0},"to":{"q":2,"r":-2}}`, &dist)
	if !dist.Found || dist.Distance != 4 {
		t.Fatalf("unexpected distance %+v", dist)
	}

	var loc network.LocateResult
	ask(t, c, network.MsgTypeLocate, "l", `{"point":{"x":1.5,"y":0.2,"z":0.9}}`, &loc)
	if !loc.Found || loc.Coord != (network.Coord{Q: 0, R: 1}) {
		t.Fatalf("unexpected locate result %+v", loc)
	}
}

func TestQueryErrors(t *testing.T) {
	srv := newTestServer(t, 4)
	c := newTestConnection(srv, "1", models.PermQuery)

	r := ask(t, c, network.MsgTypePath, "bad", `{"from":{"q":0,"r":0}}`, nil)
	if r.Type != network.MsgTypeError || r.ID != "bad" || !strings.Contains(string(r.Payload), network.ErrCodeInvalidPayload) {
		t.Fatalf("expected invalid_payload error, got %s %s", r.Type, r.Payload)
	}

	r = ask(t, c, "teleport", "x", `{}`, nil)
	if r.Type != network.MsgTypeError || !strings.Contains(string(r.Payload), network.ErrCodeUnknownType) {
		t.Fatalf("expected unknown type error, got %s %s", r.Type, r.Payload)
	}

	viewer := newTestConnection(srv, "2", 0)
	r = ask(t, viewer, network.MsgTypeCell, "y", `{"at":{"q":0,"r":0}}`, nil)
	if r.Type != network.MsgTypeError || !strings.Contains(string(r.Payload), network.ErrCodeForbidden) {
		t.Fatalf("expected forbidden error, got %s %s", r.Type, r.Payload)
	}

	if got := srv.session.GetStatus().Queries; got != 0 {
		t.Fatalf("failed queries must not be counted, got %d", got)
	}
}

func TestPingGeneratesID(t *testing.T) {
	srv := newTestServer(t, 4)
	c := newTestConnection(srv, "1", 0)
	r := ask(t, c, network.MsgTypePing, "", ``, nil)
	if r.Type != network.MsgTypePong || r.ID == "" {
		t.Fatalf("expected pong with generated id, got %+v", r)
	}
}

func TestQueriesAreCountedAndAudited(t *testing.T) {
	srv := newTestServer(t, 4)
	dir := t.TempDir()
	srv.audit = audit.New(dir)
	c := newTestConnection(srv, "1", models.PermQuery)

	ask(t, c, network.MsgTypeCell, "a", `{"at":{"q":0,"r":0}}`, &network.CellResult{})
	ask(t, c, network.MsgTypePath, "b", `{"from":{"q":0,"r":0},"to":{"q":-1,"r":0}}`, &network.PathResult{})

	if got := srv.session.GetStatus().Queries; got != 2 {
		t.Fatalf("expected 2 counted queries, got %d", got)
	}
	if err := srv.audit.Close(); err != nil {
		t.Fatalf("close audit: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one audit file, got %v (%v)", entries, err)
	}
}

func TestHealthAndSchemaEndpoints(t *testing.T) {
	srv := newTestServer(t, 4)
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"cells":19`) {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
	var health struct {
		Summary map[string]string `json:"summary"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Summary["cells"] != "19" || health.Summary["queries"] != "0" || health.Summary["started"] == "" {
		t.Fatalf("unexpected health summary %+v", health.Summary)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/schema/path", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"from"`) {
		t.Fatalf("unexpected schema response %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/schema/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown schema, got %d", rec.Code)
	}
}

func TestWebSocketRoundTrip(t *testing.T) {
	srv := newTestServer(t, 4)
	key := newTestKey(t)
	srv.jwtValidator = newTestValidator(key)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	header := http.Header{"Authorization": {"Bearer " + signToken(t, key, validClaims())}}
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))

	var welcome reply
	if err := ws.ReadJSON(&welcome); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	if welcome.Type != network.MsgTypeWelcome {
		t.Fatalf("expected welcome, got %s", welcome.Type)
	}

	query := network.ClientMessage{
		Type:    network.MsgTypePath,
		ID:      "ws-1",
		Payload: json.RawMessage(`{"from":{"q":0,"r":0},"to":{"q":-2,"r":0}}`),
	}
	if err := ws.WriteJSON(query); err != nil {
		t.Fatalf("write query: %v", err)
	}
	var r reply
	if err := ws.ReadJSON(&r); err != nil {
		t.Fatalf("read reply: %v", err)
	}
	var res network.PathResult
	if err := json.Unmarshal(r.Payload, &res); err != nil {
		t.Fatalf("decode path: %v", err)
	}
	if r.ID != "ws-1" || !res.Found || len(res.Path) != 2 {
		t.Fatalf("unexpected reply %+v %+v", r, res)
	}
}

func TestWebSocketRequiresToken(t *testing.T) {
	srv := newTestServer(t, 4)
	srv.jwtValidator = newTestValidator(newTestKey(t))

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatalf("expected dial without token to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}
