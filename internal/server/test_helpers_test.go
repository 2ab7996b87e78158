package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/J9273/quizbattle/internal/config"
	"github.com/J9273/quizbattle/internal/db"
	"github.com/J9273/quizbattle/internal/hub"

	"github.com/gorilla/websocket"
	"gorm.io/datatypes"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore backs the server tests with an in-memory hub.Store plus the buzz
// listing the admin surface needs.
type memStore struct {
	mu         sync.Mutex
	episodes   map[uint]db.Episode
	teams      map[uint]db.Team
	questions  map[uint]db.Question
	points     map[string]int
	buzzes     []db.Buzz
	nextTeamID uint
	nextBuzzID uint
}

func newMemStore() *memStore {
	return &memStore{
		episodes: map[uint]db.Episode{
			1: {ID: 1, Name: "Friday Night Quiz", Status: db.EpisodeStatusActive},
		},
		teams: map[uint]db.Team{},
		questions: map[uint]db.Question{
			10: {ID: 10, Question: "Capital of France?", Answer: "Paris", Theme: "Geography", Level: db.LevelEasy},
			11: {ID: 11, Question: "Symbol for tungsten?", Answer: "W", Theme: "Science", Level: db.LevelMedium},
		},
		points:     map[string]int{db.LevelEasy: 1, db.LevelMedium: 5, db.LevelHard: 10},
		nextTeamID: 100,
	}
}

func (m *memStore) GetEpisode(id uint) (db.Episode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	episode, ok := m.episodes[id]
	if !ok {
		return db.Episode{}, db.ErrEpisodeNotFound
	}
	return episode, nil
}

func (m *memStore) UpdateEpisodeStatus(id uint, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	episode, ok := m.episodes[id]
	if !ok {
		return db.ErrEpisodeNotFound
	}
	episode.Status = status
	m.episodes[id] = episode
	return nil
}

func (m *memStore) GetTeams(episodeID uint) ([]db.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var teams []db.Team
	for _, team := range m.teams {
		if team.EpisodeID == episodeID {
			teams = append(teams, team)
		}
	}
	sort.SliceStable(teams, func(i, j int) bool {
		if teams[i].Points != teams[j].Points {
			return teams[i].Points > teams[j].Points
		}
		return teams[i].Name < teams[j].Name
	})
	return teams, nil
}

func (m *memStore) GetTeam(id uint) (db.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	team, ok := m.teams[id]
	if !ok {
		return db.Team{}, db.ErrTeamNotFound
	}
	return team, nil
}

func (m *memStore) CreateTeam(episodeID uint, name string) (db.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	position := 1
	for _, team := range m.teams {
		if team.EpisodeID == episodeID {
			position++
		}
	}
	m.nextTeamID++
	team := db.Team{ID: m.nextTeamID, EpisodeID: episodeID, Name: name, Position: position}
	m.teams[team.ID] = team
	return team, nil
}

func (m *memStore) UpdateTeamPoints(id uint, points int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	team, ok := m.teams[id]
	if !ok {
		return db.ErrTeamNotFound
	}
	team.Points = points
	m.teams[id] = team
	return nil
}

func (m *memStore) UpdateTeamPosition(id uint, position int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	team, ok := m.teams[id]
	if !ok {
		return db.ErrTeamNotFound
	}
	team.Position = position
	m.teams[id] = team
	return nil
}

func (m *memStore) GetQuestion(id uint) (db.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	question, ok := m.questions[id]
	if !ok {
		return db.Question{}, db.ErrQuestionNotFound
	}
	return question, nil
}

func (m *memStore) GetPointsForLevel(level string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	points, ok := m.points[level]
	if !ok {
		return 1, nil
	}
	return points, nil
}

func (m *memStore) HasAnyRecordedAnswer(episodeID uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, buzz := range m.buzzes {
		if buzz.EpisodeID == episodeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) RecordBuzz(episodeID, teamID, questionID uint, payload datatypes.JSON) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, buzz := range m.buzzes {
		if buzz.EpisodeID == episodeID && buzz.TeamID == teamID && buzz.QuestionID == questionID {
			m.buzzes[i].Payload = payload
			m.buzzes[i].BuzzedAt = time.Now()
			return nil
		}
	}
	m.nextBuzzID++
	m.buzzes = append(m.buzzes, db.Buzz{
		ID:         m.nextBuzzID,
		EpisodeID:  episodeID,
		TeamID:     teamID,
		QuestionID: questionID,
		Payload:    payload,
		BuzzedAt:   time.Now(),
	})
	return nil
}

func (m *memStore) ListBuzzes(episodeID, questionID uint) ([]db.Buzz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.Buzz
	for _, buzz := range m.buzzes {
		if buzz.EpisodeID != episodeID {
			continue
		}
		if questionID != 0 && buzz.QuestionID != questionID {
			continue
		}
		out = append(out, buzz)
	}
	return out, nil
}

func newServerForTest(t *testing.T) (*Server, *memStore) {
	t.Helper()
	store := newMemStore()
	registry := hub.NewRegistry(store, testLogger(), 16, time.Minute)
	t.Cleanup(registry.Shutdown)
	return New(registry, store, config.Default(), testLogger()), store
}

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test; listen unavailable: %v", err)
	}
	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	return ts
}

func doRequest(t *testing.T, ts *httptest.Server, method, path string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return decoded
}

func dialWS(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + ts.URL[len("http"):] + path
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Skipf("skipping test; websocket dial unavailable: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// wsResult carries one background ReadMessage outcome; pendingWS holds reads
// started by expectNoWSMessage so a later readWSEvent on the same connection
// can pick up the message instead of racing a second reader. Gorilla makes
// read deadline errors permanent, so expectNoWSMessage must never let a
// deadline fire on the connection itself.
type wsResult struct {
	payload []byte
	err     error
}

var (
	pendingWSMu sync.Mutex
	pendingWS   = map[*websocket.Conn]chan wsResult{}
)

func pendingWSRead(conn *websocket.Conn) chan wsResult {
	pendingWSMu.Lock()
	defer pendingWSMu.Unlock()
	ch, ok := pendingWS[conn]
	if !ok {
		ch = make(chan wsResult, 1)
		pendingWS[conn] = ch
		_ = conn.SetReadDeadline(time.Time{})
		go func() {
			_, payload, err := conn.ReadMessage()
			ch <- wsResult{payload: payload, err: err}
		}()
	}
	return ch
}

func clearPendingWSRead(conn *websocket.Conn) {
	pendingWSMu.Lock()
	defer pendingWSMu.Unlock()
	delete(pendingWS, conn)
}

func readWSEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) map[string]any {
	t.Helper()
	var payload []byte
	pendingWSMu.Lock()
	ch, pending := pendingWS[conn]
	pendingWSMu.Unlock()
	if pending {
		select {
		case res := <-ch:
			clearPendingWSRead(conn)
			if res.err != nil {
				t.Fatalf("read websocket message: %v", res.err)
			}
			payload = res.payload
		case <-time.After(timeout):
			t.Fatalf("read websocket message: timeout after %v", timeout)
		}
	} else {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
		var err error
		_, payload, err = conn.ReadMessage()
		if err != nil {
			t.Fatalf("read websocket message: %v", err)
		}
	}
	var evt map[string]any
	if err := json.Unmarshal(payload, &evt); err != nil {
		t.Fatalf("decode websocket message: %v", err)
	}
	return evt
}

func expectWSEvent(t *testing.T, conn *websocket.Conn, eventType string) map[string]any {
	t.Helper()
	evt := readWSEvent(t, conn, 5*time.Second)
	if evt["type"] != eventType {
		t.Fatalf("expected event %q, got %q (%v)", eventType, evt["type"], evt)
	}
	return evt
}

func expectNoWSMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	ch := pendingWSRead(conn)
	select {
	case res := <-ch:
		clearPendingWSRead(conn)
		if res.err != nil {
			t.Fatalf("expected websocket timeout, got %v", res.err)
		}
		t.Fatalf("expected no websocket message, got %s", res.payload)
	case <-time.After(timeout):
		// nothing arrived; the pending read stays live for the next
		// readWSEvent on this connection
	}
}

// formatScores re-encodes a poll response's scoreboard as the scores query
// parameter a caller would carry into its next poll.
func formatScores(t *testing.T, body map[string]any) string {
	t.Helper()
	raw, ok := body["scores"].([]any)
	if !ok {
		t.Fatalf("expected scores array, got %v", body["scores"])
	}
	pairs := make([]string, 0, len(raw))
	for _, item := range raw {
		team := item.(map[string]any)
		pairs = append(pairs, itoa(int(team["id"].(float64)))+":"+itoa(int(team["points"].(float64))))
	}
	return strings.Join(pairs, ",")
}

func itoa(value int) string {
	return strconv.Itoa(value)
}

func sendWS(t *testing.T, conn *websocket.Conn, msg map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write websocket message: %v", err)
	}
}
