package hub

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/J9273/quizbattle/internal/db"

	"gorm.io/datatypes"
)

// Store is the persistence boundary consumed by the hub. *db.Store implements
// it; tests supply fakes.
type Store interface {
	GetEpisode(id uint) (db.Episode, error)
	UpdateEpisodeStatus(id uint, status string) error
	GetTeams(episodeID uint) ([]db.Team, error)
	GetTeam(id uint) (db.Team, error)
	CreateTeam(episodeID uint, name string) (db.Team, error)
	UpdateTeamPoints(id uint, points int) error
	UpdateTeamPosition(id uint, position int) error
	GetQuestion(id uint) (db.Question, error)
	GetPointsForLevel(level string) (int, error)
	HasAnyRecordedAnswer(episodeID uint) (bool, error)
	RecordBuzz(episodeID, teamID, questionID uint, payload datatypes.JSON) error
}

// Registry maps episode IDs to live rooms. Rooms are created lazily on first
// attach and destroyed when the last connection detaches; the registry itself
// is constructed at process start and passed into the transports.
type Registry struct {
	store     Store
	logger    *slog.Logger
	queueSize int
	heartbeat time.Duration

	mu    sync.Mutex
	rooms map[uint]*Room
}

func NewRegistry(store Store, logger *slog.Logger, queueSize int, heartbeat time.Duration) *Registry {
	return &Registry{
		store:     store,
		logger:    logger,
		queueSize: queueSize,
		heartbeat: heartbeat,
		rooms:     make(map[uint]*Room),
	}
}

// GetOrCreateRoom is idempotent. The first touch of an episode since process
// start, or since its room emptied out, rebuilds the projection from the
// store; an unknown episode ID surfaces db.ErrEpisodeNotFound to the caller.
func (g *Registry) GetOrCreateRoom(episodeID uint) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if room, ok := g.rooms[episodeID]; ok {
		return room, nil
	}
	room, err := newRoom(g.store, episodeID, g.logger, g.queueSize, g.heartbeat, g.RemoveIfEmpty)
	if err != nil {
		return nil, err
	}
	g.rooms[episodeID] = room
	g.logger.Info("room created", "episode_id", episodeID)
	return room, nil
}

// Attach resolves the episode's room and attaches a connection to it. The
// room can be destroyed between lookup and attach when its last connection
// detaches concurrently; in that case the attach lands in a fresh room
// instead of a torn-down one.
func (g *Registry) Attach(episodeID uint, role Role, teamName string) (*Room, *Client, error) {
	for {
		room, err := g.GetOrCreateRoom(episodeID)
		if err != nil {
			return nil, nil, err
		}
		client, err := room.Attach(role, teamName)
		if errors.Is(err, errRoomClosed) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		return room, client, nil
	}
}

// Room returns the live room without creating one.
func (g *Registry) Room(episodeID uint) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	room, ok := g.rooms[episodeID]
	return room, ok
}

// RemoveIfEmpty destroys the room if no connections remain; a no-op while any
// connection is still attached.
func (g *Registry) RemoveIfEmpty(episodeID uint) {
	g.mu.Lock()
	defer g.mu.Unlock()
	room, ok := g.rooms[episodeID]
	if !ok || !room.empty() {
		return
	}
	room.close()
	delete(g.rooms, episodeID)
	g.logger.Info("room destroyed", "episode_id", episodeID)
}

// Snapshot serves the synchronous "current room snapshot" query for admin
// pages: the live projection when a room exists, otherwise a transient
// rebuild from the store.
func (g *Registry) Snapshot(episodeID uint, role Role) (map[string]any, error) {
	if room, ok := g.Room(episodeID); ok {
		return room.Snapshot(role), nil
	}
	projection, err := buildProjection(g.store, episodeID)
	if err != nil {
		return nil, err
	}
	return projection.snapshot(role), nil
}

// Refresh force-broadcasts the store state to a live room after an
// out-of-band admin edit. Without a room there is nobody to notify.
func (g *Registry) Refresh(episodeID uint) error {
	room, ok := g.Room(episodeID)
	if !ok {
		_, err := g.store.GetEpisode(episodeID)
		return err
	}
	return room.Refresh()
}

// SetEpisodeStatus applies a status change issued by the admin layer rather
// than an attached host, keeping any live room in step.
func (g *Registry) SetEpisodeStatus(episodeID uint, status string) error {
	if err := g.store.UpdateEpisodeStatus(episodeID, status); err != nil {
		return err
	}
	if room, ok := g.Room(episodeID); ok {
		room.applyEpisodeStatus(status)
	}
	return nil
}

// JoinEpisode registers a team for pull-transport players, who hold no
// connection. Rejoining an existing team is allowed until the first answer is
// recorded; creating a new one additionally requires an active episode.
func (g *Registry) JoinEpisode(episodeID uint, teamName string) (ScoreboardEntry, error) {
	if room, ok := g.Room(episodeID); ok {
		entry, err := room.ResolveTeam(teamName)
		if !errors.Is(err, errRoomClosed) {
			return entry, err
		}
	}
	started, err := g.store.HasAnyRecordedAnswer(episodeID)
	if err != nil {
		return ScoreboardEntry{}, err
	}
	if started {
		return ScoreboardEntry{}, ErrGameAlreadyStarted
	}
	episode, err := g.store.GetEpisode(episodeID)
	if err != nil {
		return ScoreboardEntry{}, err
	}
	teams, err := g.store.GetTeams(episodeID)
	if err != nil {
		return ScoreboardEntry{}, err
	}
	for _, team := range teams {
		if team.Name == teamName {
			return ScoreboardEntry{TeamID: team.ID, Name: team.Name, Points: team.Points, Position: team.Position}, nil
		}
	}
	if episode.Status != db.EpisodeStatusActive {
		return ScoreboardEntry{}, ErrEpisodeNotActive
	}
	team, err := g.store.CreateTeam(episodeID, teamName)
	if err != nil {
		return ScoreboardEntry{}, err
	}
	return ScoreboardEntry{TeamID: team.ID, Name: team.Name, Points: team.Points, Position: team.Position}, nil
}

// Shutdown tears down every room; connections see their outboxes close.
func (g *Registry) Shutdown() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, room := range g.rooms {
		room.close()
		delete(g.rooms, id)
	}
}
