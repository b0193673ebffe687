package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/wricardo/mcp-training/sootloop/game/config"
	"github.com/wricardo/mcp-training/sootloop/game/engine"
	"github.com/wricardo/mcp-training/sootloop/game/service"
	"github.com/wricardo/mcp-training/sootloop/game/session"
	"github.com/wricardo/mcp-training/sootloop/transport/websocket"
)

const corridorLevel = `name: corridor
description: Three cells to the goal
width: 3
height: 2
candies: 0
fuel: 0
seed: 7
items:
  - {kind: candy, x: 1, y: 1}
`

const classicLevel = `name: classic
description: Five by five with random candy
width: 5
height: 5
candies: 3
fuel: 1
seed: 11
`

// MockGameService implements service.GameService for testing. Methods without
// a Func field fall through to the embedded nil interface.
type MockGameService struct {
	service.GameService

	GetGameStateFunc func(ctx context.Context, sessionID string) (*engine.Snapshot, error)
	MoveFunc         func(ctx context.Context, sessionID, direction string) (*service.MoveResult, error)
}

func (m *MockGameService) GetGameState(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	return m.GetGameStateFunc(ctx, sessionID)
}

func (m *MockGameService) Move(ctx context.Context, sessionID, direction string) (*service.MoveResult, error) {
	return m.MoveFunc(ctx, sessionID, direction)
}

// Test helpers
func setupTestServer(t *testing.T) (*Server, *websocket.Hub) {
	t.Helper()
	dir := t.TempDir()
	for name, body := range map[string]string{"classic.yaml": classicLevel, "corridor.yaml": corridorLevel} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	configs, err := config.NewManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	svc := service.NewGameService(session.NewManager(), configs)

	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return NewServer(svc, hub), hub
}

func makeRequest(method, path string, body any) *http.Request {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewBuffer(bodyBytes))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func do(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest(method, path, body))
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), target); err != nil {
		t.Fatalf("Failed to parse response: %v (%s)", err, w.Body.String())
	}
}

func createSession(t *testing.T, server *Server, configID string) string {
	t.Helper()
	w := do(t, server, "POST", "/api/sessions", map[string]string{"config_id": configID})
	if w.Code != http.StatusCreated {
		t.Fatalf("Failed to create session: %d %s", w.Code, w.Body.String())
	}
	var info service.SessionInfo
	parseResponse(t, w, &info)
	return info.ID
}

// Session Management Tests

func TestCreateSession(t *testing.T) {
	server, _ := setupTestServer(t)

	tests := []struct {
		name           string
		requestBody    map[string]string
		expectedStatus int
		expectedLevel  string
	}{
		{"Create session with default config", nil, http.StatusCreated, "classic"},
		{"Create session with config_id", map[string]string{"config_id": "corridor"}, http.StatusCreated, "corridor"},
		{"Create session with deprecated config_name", map[string]string{"config_name": "corridor"}, http.StatusCreated, "corridor"},
		{"Unknown config", map[string]string{"config_id": "missing"}, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, server, "POST", "/api/sessions", tt.requestBody)
			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedLevel == "" {
				var resp map[string]string
				parseResponse(t, w, &resp)
				if !strings.Contains(resp["error"], "missing") {
					t.Errorf("Expected error to name the config, got %q", resp["error"])
				}
				return
			}
			var resp service.SessionInfo
			parseResponse(t, w, &resp)
			if resp.ID == "" || resp.GameState == nil || resp.GameState.LevelName != tt.expectedLevel {
				t.Errorf("Unexpected session %+v", resp)
			}
		})
	}
}

func TestCreateSession_DefaultWithoutClassic(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "corridor.yaml"), []byte(corridorLevel), 0644); err != nil {
		t.Fatal(err)
	}
	configs, err := config.NewManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	server := NewServer(service.NewGameService(session.NewManager(), configs), nil)

	w := do(t, server, "POST", "/api/sessions", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var info service.SessionInfo
	parseResponse(t, w, &info)
	if info.GameState == nil || info.GameState.LevelName != "corridor" {
		t.Errorf("Expected the only level on disk as default, got %+v", info)
	}
}

func TestSessionLifecycle(t *testing.T) {
	server, _ := setupTestServer(t)
	id := createSession(t, server, "corridor")
	createSession(t, server, "")

	w := do(t, server, "GET", "/api/sessions/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	w = do(t, server, "GET", "/api/sessions?sort=created&order=asc&limit=1", nil)
	var list struct {
		Count    int                    `json:"count"`
		Total    int                    `json:"total"`
		Sessions []*service.SessionInfo `json:"sessions"`
	}
	parseResponse(t, w, &list)
	if list.Count != 1 || list.Total != 2 || list.Sessions[0].ID != id {
		t.Errorf("Unexpected session list %+v", list)
	}

	w = do(t, server, "GET", "/api/sessions/unified?configName=corridor", nil)
	var unified struct {
		ConfigName string           `json:"config_name"`
		Sessions   []map[string]any `json:"sessions"`
	}
	parseResponse(t, w, &unified)
	if unified.ConfigName != "corridor" || len(unified.Sessions) != 1 {
		t.Errorf("Unexpected unified view %+v", unified)
	}

	if w = do(t, server, "DELETE", "/api/sessions/"+id, nil); w.Code != http.StatusOK {
		t.Errorf("Expected 200 on delete, got %d", w.Code)
	}
	if w = do(t, server, "GET", "/api/sessions/"+id, nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}
	if w = do(t, server, "DELETE", "/api/sessions/"+id, nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 on second delete, got %d", w.Code)
	}
}

// Game Operation Tests

func TestMove(t *testing.T) {
	server, _ := setupTestServer(t)
	id := createSession(t, server, "corridor")

	tests := []struct {
		name           string
		sessionID      string
		body           any
		expectedStatus int
		validateResp   func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:           "Successful move",
			sessionID:      id,
			body:           map[string]string{"direction": "right"},
			expectedStatus: http.StatusOK,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp service.MoveResult
				parseResponse(t, w, &resp)
				if !resp.Success || resp.Step == nil || resp.Step.To != (engine.GridLocation{X: 1, Y: 1}) {
					t.Errorf("Unexpected move result %+v", resp)
				}
				if !resp.Step.Candy {
					t.Error("Expected the candy pickup to be reported")
				}
			},
		},
		{
			name:           "Rejected move",
			sessionID:      id,
			body:           map[string]string{"direction": "up"},
			expectedStatus: http.StatusOK,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp service.MoveResult
				parseResponse(t, w, &resp)
				if resp.Success || resp.Rejection == nil || resp.Rejection.Reason != engine.RejectInsufficient {
					t.Errorf("Expected insufficient fuel, got %+v", resp)
				}
			},
		},
		{"Unknown direction", id, map[string]string{"direction": "sideways"}, http.StatusBadRequest, nil},
		{"Unknown session", "nope", map[string]string{"direction": "right"}, http.StatusNotFound, nil},
		{"Invalid body", id, "not an object", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, server, "POST", "/api/sessions/"+tt.sessionID+"/move", tt.body)
			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.validateResp != nil {
				tt.validateResp(t, w)
			}
		})
	}
}

func TestBulkMoveRestartAndRecording(t *testing.T) {
	server, _ := setupTestServer(t)
	id := createSession(t, server, "corridor")

	if w := do(t, server, "POST", "/api/sessions/"+id+"/restart", nil); w.Code != http.StatusConflict {
		t.Errorf("Expected 409 when restarting a running episode, got %d", w.Code)
	}

	w := do(t, server, "POST", "/api/sessions/"+id+"/bulk-move", map[string][]string{"moves": {"right", "right", "down"}})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var bulk service.BulkMoveResult
	parseResponse(t, w, &bulk)
	if bulk.MovesExecuted != 3 || !bulk.GameOver || bulk.GameOverCode != "goal_reached" {
		t.Errorf("Unexpected bulk result %+v", bulk)
	}

	if w := do(t, server, "POST", "/api/sessions/"+id+"/press", map[string]string{"direction": "up"}); w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for input after game over, got %d", w.Code)
	}

	w = do(t, server, "GET", "/api/sessions/"+id+"/recording", nil)
	var recording service.RecordingInfo
	parseResponse(t, w, &recording)
	if len(recording.Moves) != 3 || len(recording.Digest) != 16 {
		t.Errorf("Unexpected recording %+v", recording)
	}

	w = do(t, server, "POST", "/api/sessions/"+id+"/restart", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on restart, got %d: %s", w.Code, w.Body.String())
	}
	var restarted struct {
		State *engine.Snapshot `json:"state"`
	}
	parseResponse(t, w, &restarted)
	if restarted.State.Iteration != 1 || len(restarted.State.Agents) != 2 {
		t.Errorf("Expected iteration 1 with an echo, got %+v", restarted.State)
	}

	w = do(t, server, "POST", "/api/sessions/"+id+"/reset", nil)
	var reset struct {
		State *engine.Snapshot `json:"state"`
	}
	parseResponse(t, w, &reset)
	if reset.State.Iteration != 0 || len(reset.State.Agents) != 1 {
		t.Errorf("Expected a fresh cycle after reset, got %+v", reset.State)
	}
}

func TestPressAndTick(t *testing.T) {
	server, _ := setupTestServer(t)
	id := createSession(t, server, "corridor")

	tests := []struct {
		name           string
		path           string
		body           any
		expectedStatus int
	}{
		{"Press without directions", "/press", map[string]any{}, http.StatusBadRequest},
		{"Press unknown direction", "/press", map[string][]string{"directions": {"jump"}}, http.StatusBadRequest},
		{"Tick too long", "/tick", map[string]int{"dt_ms": 20000}, http.StatusBadRequest},
		{"Tick without body", "/tick", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, server, "POST", "/api/sessions/"+id+tt.path, tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}

	if w := do(t, server, "POST", "/api/sessions/"+id+"/press", map[string][]string{"directions": {"right"}}); w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on press, got %d", w.Code)
	}

	// One long tick starts the move and finishes its animation
	w := do(t, server, "POST", "/api/sessions/"+id+"/tick", map[string]int{"dt_ms": 1000})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 on tick, got %d: %s", w.Code, w.Body.String())
	}
	var tick service.TickResult
	parseResponse(t, w, &tick)
	if tick.Report.Move == nil || len(tick.Report.Completed) != 1 {
		t.Errorf("Expected the move to start and complete, got %+v", tick.Report)
	}
	hasMove := false
	for _, ev := range tick.Events {
		if ev.Type == "move" {
			hasMove = true
		}
	}
	if !hasMove {
		t.Errorf("Expected a move event, got %+v", tick.Events)
	}
	live, _ := engine.LiveAgent(tick.GameState)
	if live.Location != (engine.GridLocation{X: 1, Y: 1}) {
		t.Errorf("Expected live agent on (1,1), got %s", live.Location)
	}
}

func TestGetHistory(t *testing.T) {
	server, _ := setupTestServer(t)
	id := createSession(t, server, "corridor")
	do(t, server, "POST", "/api/sessions/"+id+"/bulk-move", map[string][]string{"moves": {"right", "right", "down"}})

	tests := []struct {
		name        string
		query       string
		wantMoves   int
		wantFirst   int
		wantHasNext bool
	}{
		{"Default", "", 3, 3, false},
		{"Ascending page", "?page=1&limit=2&order=asc", 2, 1, true},
		{"Invalid params fall back", "?page=x&limit=-1&order=sideways", 3, 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, server, "GET", "/api/sessions/"+id+"/history"+tt.query, nil)
			var resp service.HistoryResponse
			parseResponse(t, w, &resp)
			if len(resp.Moves) != tt.wantMoves || resp.HasNext != tt.wantHasNext {
				t.Fatalf("Unexpected history %+v", resp)
			}
			if resp.Moves[0].MoveNumber != tt.wantFirst {
				t.Errorf("Expected first move %d, got %d", tt.wantFirst, resp.Moves[0].MoveNumber)
			}
		})
	}

	if w := do(t, server, "GET", "/api/sessions/nope/history", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown session, got %d", w.Code)
	}
}

// Configuration Tests

func TestConfigs(t *testing.T) {
	server, _ := setupTestServer(t)

	w := do(t, server, "GET", "/api/configs", nil)
	var configs []*service.ConfigInfo
	parseResponse(t, w, &configs)
	if len(configs) != 2 || configs[0].ConfigID != "classic" || configs[1].ConfigID != "corridor" || configs[1].Width != 3 {
		t.Errorf("Unexpected configs %+v", configs)
	}

	w = do(t, server, "GET", "/api/configs/corridor", nil)
	var level engine.LevelConfig
	parseResponse(t, w, &level)
	if level.Name != "corridor" || len(level.Items) != 1 {
		t.Errorf("Unexpected level %+v", level)
	}

	if w = do(t, server, "GET", "/api/configs/missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}

	tests := []struct {
		name           string
		body           map[string]any
		expectedStatus int
	}{
		{"Valid level", map[string]any{"name": "wide", "width": 8, "height": 3, "candies": 2, "fuel": 1}, http.StatusCreated},
		{"Missing name", map[string]any{"width": 8}, http.StatusBadRequest},
		{"Invalid level", map[string]any{"name": "tiny", "width": 1}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, server, "POST", "/api/configs", tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}

	if id := createSession(t, server, "wide"); id == "" {
		t.Error("Expected a session on the saved level")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: ab12", service.ErrSessionNotFound), http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", service.ErrConfigNotFound), http.StatusNotFound},
		{engine.ErrEpisodeOver, http.StatusConflict},
		{engine.ErrEpisodeNotOver, http.StatusConflict},
		{fmt.Errorf("%w: %w", service.ErrSessionFaulted, errors.New("violation")), http.StatusConflict},
		{fmt.Errorf("%w: %q", engine.ErrUnknownDirection, "x"), http.StatusBadRequest},
		{engine.ErrInvalidConfig, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestFaultedSessionResponse(t *testing.T) {
	fault := fmt.Errorf("%w: %w", service.ErrSessionFaulted, errors.New("invariant violation replay_rejected"))
	server := NewServer(&MockGameService{
		MoveFunc: func(ctx context.Context, sessionID, direction string) (*service.MoveResult, error) {
			return nil, fault
		},
	}, nil)

	w := do(t, server, "POST", "/api/sessions/ab12/move", map[string]string{"direction": "up"})
	if w.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d", w.Code)
	}
	var resp map[string]string
	parseResponse(t, w, &resp)
	if resp["error"] != fault.Error() {
		t.Errorf("Expected the fault message, got %q", resp["error"])
	}
}

// WebSocket Tests

func TestWebSocket(t *testing.T) {
	server, hub := setupTestServer(t)
	id := createSession(t, server, "corridor")

	tests := []struct {
		name           string
		queryParams    string
		expectedStatus int
	}{
		{"Missing session parameter", "", http.StatusBadRequest},
		{"Invalid session", "?session=nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			server.ServeHTTP(w, httptest.NewRequest("GET", "/ws"+tt.queryParams, nil))
			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}

	ts := httptest.NewServer(server)
	defer ts.Close()

	conn, _, err := gorillaws.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws?session="+id, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	read := func() websocket.Message {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(time.Second))
		var msg websocket.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("Failed to read message: %v", err)
		}
		return msg
	}

	initial := read()
	if initial.Event != websocket.EventState || initial.GameState == nil {
		t.Fatalf("Expected the initial state, got %+v", initial)
	}
	if hub.ClientCount(id) != 1 {
		t.Errorf("Expected one client, got %d", hub.ClientCount(id))
	}

	do(t, server, "POST", "/api/sessions/"+id+"/move", map[string]string{"direction": "right"})
	if msg := read(); msg.Event != websocket.EventEvents {
		t.Errorf("Expected the move events first, got %+v", msg)
	}
	msg := read()
	live, _ := engine.LiveAgent(msg.GameState)
	if msg.Event != websocket.EventState || live.Location != (engine.GridLocation{X: 1, Y: 1}) {
		t.Errorf("Expected the state after the move, got %+v", msg)
	}
}

func TestHealth(t *testing.T) {
	server, _ := setupTestServer(t)
	w := do(t, server, "GET", "/api/health", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "healthy") {
		t.Errorf("Unexpected health response %d %s", w.Code, w.Body.String())
	}
}
