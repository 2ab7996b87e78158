package hub

import "time"

// PollRequest is one stateless pull-transport request. The caller carries its
// own last-observed snapshot (points per team and ranking order) so the
// server keeps no per-client session state.
type PollRequest struct {
	EpisodeID  uint
	TeamID     uint
	LastUpdate int64
	LastPoints map[uint]int
	LastOrder  []uint
}

// Poll returns the full current snapshot plus has_updates and a fresh
// timestamp for the caller's next request. It works with or without a live
// room; without one the projection is rebuilt transiently from the store (and
// starts idle, since the question cycle lives only in memory).
func (g *Registry) Poll(req PollRequest) (map[string]any, error) {
	var projection Projection
	if room, ok := g.Room(req.EpisodeID); ok {
		projection = room.CopyProjection()
	} else {
		built, err := buildProjection(g.store, req.EpisodeID)
		if err != nil {
			return nil, err
		}
		projection = built
	}

	response := map[string]any{
		"success":   true,
		"timestamp": time.Now().Unix(),
		"episode": map[string]any{
			"id":     projection.Episode.ID,
			"name":   projection.Episode.Name,
			"status": projection.Episode.Status,
		},
		"current_question": projection.questionPayload(false),
		"answer_revealed":  projection.AnswerRevealed,
		"scores":           scoreboardPayload(projection.Scoreboard),
		"has_updates":      hasUpdates(projection.Scoreboard, req),
	}
	if req.TeamID != 0 {
		if entry := projection.entry(req.TeamID); entry != nil {
			response["own_team"] = teamPayload(*entry)
		}
	}
	return response, nil
}

// hasUpdates is true iff at least one team's points or the relative ranking
// order differs from the snapshot the caller supplied. A first poll (no
// snapshot yet) always reports updates.
func hasUpdates(current []ScoreboardEntry, req PollRequest) bool {
	if req.LastUpdate == 0 && len(req.LastOrder) == 0 && len(req.LastPoints) == 0 {
		return true
	}
	if len(current) != len(req.LastOrder) {
		return true
	}
	for i, entry := range current {
		if req.LastOrder[i] != entry.TeamID {
			return true
		}
		points, ok := req.LastPoints[entry.TeamID]
		if !ok || points != entry.Points {
			return true
		}
	}
	return false
}
