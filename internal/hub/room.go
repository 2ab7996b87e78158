package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/J9273/quizbattle/internal/db"
)

// Room holds the connections and the projection for one episode. One mutex
// guards both: commands, attach/detach and broadcasts are serialized per room
// so every client observes the same event order.
type Room struct {
	episodeID uint
	store     Store
	logger    *slog.Logger
	queueSize int
	heartbeat time.Duration
	onEmpty   func(episodeID uint)

	mu         sync.Mutex
	closed     bool
	projection Projection
	host       *Client
	displays   map[*Client]struct{}
	players    map[*Client]struct{}

	stop     chan struct{}
	stopOnce sync.Once
}

func newRoom(store Store, episodeID uint, logger *slog.Logger, queueSize int, heartbeat time.Duration, onEmpty func(uint)) (*Room, error) {
	projection, err := buildProjection(store, episodeID)
	if err != nil {
		return nil, err
	}
	r := &Room{
		episodeID:  episodeID,
		store:      store,
		logger:     logger,
		queueSize:  queueSize,
		heartbeat:  heartbeat,
		onEmpty:    onEmpty,
		projection: projection,
		displays:   make(map[*Client]struct{}),
		players:    make(map[*Client]struct{}),
		stop:       make(chan struct{}),
	}
	go r.sweepLoop()
	return r, nil
}

func (r *Room) EpisodeID() uint { return r.episodeID }

// Attach registers a connection under a role and queues the episode_state
// snapshot as its first outbound message. A second host connection supersedes
// the current one; for players the team is resolved or created, subject to
// the no-join-after-start rule.
func (r *Room) Attach(role Role, teamName string) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errRoomClosed
	}

	client := &Client{
		role:     role,
		send:     make(chan []byte, r.queueSize),
		lastBeat: time.Now(),
	}

	switch role {
	case RoleHost:
		if old := r.host; old != nil {
			r.dropLocked(old)
			r.broadcastLocked(r.leftPayload(RoleHost), nil)
		}
		r.host = client
	case RoleDisplay:
		r.displays[client] = struct{}{}
	case RolePlayer:
		teamID, err := r.resolveTeamLocked(teamName)
		if err != nil {
			return nil, err
		}
		client.teamID = teamID
		r.players[client] = struct{}{}
	default:
		return nil, ErrInvalidRole
	}

	r.enqueueLocked(client, mustMarshal(r.projection.snapshot(role)))
	r.broadcastLocked(map[string]any{
		"type":          EvtClientJoined,
		"client_type":   string(role),
		"total_clients": r.sizeLocked(),
	}, client)
	r.logger.Info("client attached", "episode_id", r.episodeID, "role", role, "team_id", client.teamID)
	return client, nil
}

// resolveTeamLocked finds the team by name or creates it. Joining is rejected
// outright once any answer has been recorded for the episode, even for teams
// that already exist.
func (r *Room) resolveTeamLocked(teamName string) (uint, error) {
	started, err := r.store.HasAnyRecordedAnswer(r.episodeID)
	if err != nil {
		return 0, err
	}
	if started {
		return 0, ErrGameAlreadyStarted
	}
	for _, entry := range r.projection.Scoreboard {
		if entry.Name == teamName {
			return entry.TeamID, nil
		}
	}
	if r.projection.Episode.Status != db.EpisodeStatusActive {
		return 0, ErrEpisodeNotActive
	}
	team, err := r.store.CreateTeam(r.episodeID, teamName)
	if err != nil {
		return 0, err
	}
	r.projection.Scoreboard = append(r.projection.Scoreboard, ScoreboardEntry{
		TeamID:   team.ID,
		Name:     team.Name,
		Points:   team.Points,
		Position: team.Position,
	})
	return team.ID, nil
}

// ResolveTeam resolves or creates a team without attaching a connection; the
// pull transport's join endpoint uses it so the live scoreboard and the store
// stay in step.
func (r *Room) ResolveTeam(teamName string) (ScoreboardEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ScoreboardEntry{}, errRoomClosed
	}
	teamID, err := r.resolveTeamLocked(teamName)
	if err != nil {
		return ScoreboardEntry{}, err
	}
	return *r.projection.entry(teamID), nil
}

// Detach removes the connection and tells the remaining members. The registry
// tears the room down if this was the last one.
func (r *Room) Detach(client *Client) {
	r.mu.Lock()
	role := client.role
	if !r.dropLocked(client) {
		r.mu.Unlock()
		return
	}
	r.broadcastLocked(r.leftPayload(role), nil)
	empty := r.sizeLocked() == 0
	r.mu.Unlock()

	r.logger.Info("client detached", "episode_id", r.episodeID, "role", role)
	if empty {
		r.onEmpty(r.episodeID)
	}
}

// Touch refreshes the liveness deadline; called for every inbound message.
func (r *Room) Touch(client *Client) {
	r.mu.Lock()
	client.lastBeat = time.Now()
	r.mu.Unlock()
}

// Heartbeat refreshes the deadline and answers with a pong on the same
// connection.
func (r *Room) Heartbeat(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	client.lastBeat = time.Now()
	r.enqueueLocked(client, mustMarshal(map[string]any{"type": EvtPong}))
}

func (r *Room) leftPayload(role Role) map[string]any {
	return map[string]any{
		"type":          EvtClientLeft,
		"client_type":   string(role),
		"total_clients": r.sizeLocked(),
	}
}

func (r *Room) sizeLocked() int {
	size := len(r.displays) + len(r.players)
	if r.host != nil {
		size++
	}
	return size
}

// dropLocked removes the client from its role set and closes its outbox.
// Returns false if the client was already gone.
func (r *Room) dropLocked(client *Client) bool {
	if client.gone {
		return false
	}
	client.gone = true
	close(client.send)
	if r.host == client {
		r.host = nil
	}
	delete(r.displays, client)
	delete(r.players, client)
	return true
}

// broadcastLocked fans a payload out to the attached connections, optionally
// restricted to roles and skipping one connection. Sends never block: a full
// queue evicts that client and the remaining members are told it left.
func (r *Room) broadcastLocked(payload map[string]any, exclude *Client, roles ...Role) {
	data := mustMarshal(payload)
	allowed := func(role Role) bool {
		if len(roles) == 0 {
			return true
		}
		for _, r := range roles {
			if r == role {
				return true
			}
		}
		return false
	}

	var evicted []Role
	deliver := func(client *Client) {
		if client == exclude || !allowed(client.role) {
			return
		}
		if !r.enqueueLocked(client, data) {
			role := client.role
			r.dropLocked(client)
			r.logger.Warn("slow consumer evicted", "episode_id", r.episodeID, "role", role)
			evicted = append(evicted, role)
		}
	}

	if r.host != nil {
		deliver(r.host)
	}
	for client := range r.displays {
		deliver(client)
	}
	for client := range r.players {
		deliver(client)
	}

	for _, role := range evicted {
		r.broadcastLocked(r.leftPayload(role), nil)
	}
}

func (r *Room) enqueueLocked(client *Client, data []byte) bool {
	if client.gone {
		return true
	}
	select {
	case client.send <- data:
		return true
	default:
		return false
	}
}

// sweepLoop force-detaches connections that missed two heartbeat intervals.
func (r *Room) sweepLoop() {
	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.expireStale()
		}
	}
}

func (r *Room) expireStale() {
	cutoff := time.Now().Add(-2 * r.heartbeat)

	r.mu.Lock()
	var stale []*Client
	collect := func(client *Client) {
		if client.lastBeat.Before(cutoff) {
			stale = append(stale, client)
		}
	}
	if r.host != nil {
		collect(r.host)
	}
	for client := range r.displays {
		collect(client)
	}
	for client := range r.players {
		collect(client)
	}
	for _, client := range stale {
		role := client.role
		if r.dropLocked(client) {
			r.logger.Warn("heartbeat timeout", "episode_id", r.episodeID, "role", role)
			r.broadcastLocked(r.leftPayload(role), nil)
		}
	}
	empty := len(stale) > 0 && r.sizeLocked() == 0
	r.mu.Unlock()

	if empty {
		r.onEmpty(r.episodeID)
	}
}

// close shuts the sweep loop and drops any remaining connections.
func (r *Room) close() {
	r.stopOnce.Do(func() { close(r.stop) })
	r.mu.Lock()
	r.closed = true
	if r.host != nil {
		r.dropLocked(r.host)
	}
	for client := range r.displays {
		r.dropLocked(client)
	}
	for client := range r.players {
		r.dropLocked(client)
	}
	r.mu.Unlock()
}

func (r *Room) empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sizeLocked() == 0
}

// Snapshot returns the episode_state payload as one role would see it,
// usable by non-realtime admin pages.
func (r *Room) Snapshot(role Role) map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.projection.snapshot(role)
}

// CopyProjection returns a detached copy for the pull transport.
func (r *Room) CopyProjection() Projection {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := r.projection
	copied.Scoreboard = append([]ScoreboardEntry(nil), r.projection.Scoreboard...)
	if r.projection.CurrentQuestion != nil {
		question := *r.projection.CurrentQuestion
		copied.CurrentQuestion = &question
	}
	return copied
}

func mustMarshal(payload map[string]any) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return data
}
