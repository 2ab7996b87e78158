package hub

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/J9273/quizbattle/internal/db"

	"gorm.io/datatypes"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type buzzKey struct {
	episodeID  uint
	teamID     uint
	questionID uint
}

// fakeStore is an in-memory Store with the same ordering and fallback
// behaviour as the database-backed one.
type fakeStore struct {
	mu         sync.Mutex
	episodes   map[uint]db.Episode
	teams      map[uint]db.Team
	questions  map[uint]db.Question
	points     map[string]int
	buzzes     map[buzzKey]datatypes.JSON
	nextTeamID uint
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		episodes: map[uint]db.Episode{
			1: {ID: 1, Name: "Friday Night Quiz", Status: db.EpisodeStatusActive},
		},
		teams: map[uint]db.Team{},
		questions: map[uint]db.Question{
			10: {ID: 10, Question: "Capital of France?", Answer: "Paris", Theme: "Geography", Level: db.LevelEasy},
			11: {ID: 11, Question: "Symbol for tungsten?", Answer: "W", Theme: "Science", Level: db.LevelMedium},
			12: {ID: 12, Question: "Year of the Magna Carta?", Answer: "1215", Theme: "History", Level: "expert"},
		},
		points:     map[string]int{db.LevelEasy: 1, db.LevelMedium: 5, db.LevelHard: 10},
		buzzes:     map[buzzKey]datatypes.JSON{},
		nextTeamID: 100,
	}
}

func (f *fakeStore) GetEpisode(id uint) (db.Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	episode, ok := f.episodes[id]
	if !ok {
		return db.Episode{}, db.ErrEpisodeNotFound
	}
	return episode, nil
}

func (f *fakeStore) UpdateEpisodeStatus(id uint, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	episode, ok := f.episodes[id]
	if !ok {
		return db.ErrEpisodeNotFound
	}
	episode.Status = status
	f.episodes[id] = episode
	return nil
}

func (f *fakeStore) GetTeams(episodeID uint) ([]db.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var teams []db.Team
	for _, team := range f.teams {
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

func (f *fakeStore) GetTeam(id uint) (db.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	team, ok := f.teams[id]
	if !ok {
		return db.Team{}, db.ErrTeamNotFound
	}
	return team, nil
}

func (f *fakeStore) CreateTeam(episodeID uint, name string) (db.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	position := 1
	for _, team := range f.teams {
		if team.EpisodeID == episodeID {
			position++
		}
	}
	f.nextTeamID++
	team := db.Team{ID: f.nextTeamID, EpisodeID: episodeID, Name: name, Position: position}
	f.teams[team.ID] = team
	return team, nil
}

func (f *fakeStore) UpdateTeamPoints(id uint, points int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	team, ok := f.teams[id]
	if !ok {
		return db.ErrTeamNotFound
	}
	team.Points = points
	f.teams[id] = team
	return nil
}

func (f *fakeStore) UpdateTeamPosition(id uint, position int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	team, ok := f.teams[id]
	if !ok {
		return db.ErrTeamNotFound
	}
	team.Position = position
	f.teams[id] = team
	return nil
}

func (f *fakeStore) GetQuestion(id uint) (db.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	question, ok := f.questions[id]
	if !ok {
		return db.Question{}, db.ErrQuestionNotFound
	}
	return question, nil
}

func (f *fakeStore) GetPointsForLevel(level string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	points, ok := f.points[level]
	if !ok {
		return 1, nil
	}
	return points, nil
}

func (f *fakeStore) HasAnyRecordedAnswer(episodeID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.buzzes {
		if key.episodeID == episodeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) RecordBuzz(episodeID, teamID, questionID uint, payload datatypes.JSON) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buzzes[buzzKey{episodeID, teamID, questionID}] = payload
	return nil
}

func newTestRegistry(t *testing.T, store Store) *Registry {
	t.Helper()
	registry := NewRegistry(store, testLogger(), 16, time.Minute)
	t.Cleanup(registry.Shutdown)
	return registry
}

func newTestRoom(t *testing.T, registry *Registry, episodeID uint) *Room {
	t.Helper()
	room, err := registry.GetOrCreateRoom(episodeID)
	if err != nil {
		t.Fatalf("get or create room: %v", err)
	}
	return room
}

// readEvent blocks for the client's next outbound message and decodes it.
func readEvent(t *testing.T, client *Client) map[string]any {
	t.Helper()
	select {
	case data, ok := <-client.Outbox():
		if !ok {
			t.Fatalf("outbox closed while waiting for event")
		}
		var evt map[string]any
		if err := json.Unmarshal(data, &evt); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		return evt
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return nil
}

func expectEvent(t *testing.T, client *Client, eventType string) map[string]any {
	t.Helper()
	evt := readEvent(t, client)
	if evt["type"] != eventType {
		t.Fatalf("expected event %q, got %q (%v)", eventType, evt["type"], evt)
	}
	return evt
}

func expectNoEvent(t *testing.T, client *Client, wait time.Duration) {
	t.Helper()
	select {
	case data, ok := <-client.Outbox():
		if ok {
			t.Fatalf("expected no event, got %s", data)
		}
	case <-time.After(wait):
	}
}

func attach(t *testing.T, room *Room, role Role, teamName string) *Client {
	t.Helper()
	client, err := room.Attach(role, teamName)
	if err != nil {
		t.Fatalf("attach %s: %v", role, err)
	}
	return client
}

func asFloat(t *testing.T, value any) float64 {
	t.Helper()
	f, ok := value.(float64)
	if !ok {
		t.Fatalf("expected number, got %T (%v)", value, value)
	}
	return f
}

func teamIDs(teams []ScoreboardEntry) string {
	ids := make([]string, 0, len(teams))
	for _, team := range teams {
		ids = append(ids, fmt.Sprintf("%d", team.TeamID))
	}
	return fmt.Sprintf("%v", ids)
}
