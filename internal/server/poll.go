package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/J9273/quizbattle/internal/hub"
)

// handlePoll serves the pull transport. The caller carries its last-observed
// scoreboard in the scores parameter, a comma list of team_id:points pairs in
// the ranking order it last saw, so the server holds no per-client state.
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request, episodeID uint) {
	req := hub.PollRequest{EpisodeID: episodeID}

	if raw := r.URL.Query().Get("team_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			req.TeamID = uint(id)
		}
	}
	if raw := r.URL.Query().Get("last_update"); raw != "" {
		if ts, err := strconv.ParseInt(raw, 10, 64); err == nil {
			req.LastUpdate = ts
		}
	}
	if raw := r.URL.Query().Get("scores"); raw != "" {
		points, order, ok := parseScoresParam(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "malformed scores parameter")
			return
		}
		req.LastPoints = points
		req.LastOrder = order
	}

	response, err := s.registry.Poll(req)
	if err != nil {
		writeHubError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func parseScoresParam(raw string) (map[uint]int, []uint, bool) {
	points := make(map[uint]int)
	var order []uint
	for _, pair := range strings.Split(raw, ",") {
		fields := strings.SplitN(pair, ":", 2)
		if len(fields) != 2 {
			return nil, nil, false
		}
		id, err := strconv.ParseUint(fields[0], 10, 32)
		if err != nil {
			return nil, nil, false
		}
		value, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, nil, false
		}
		points[uint(id)] = value
		order = append(order, uint(id))
	}
	return points, order, true
}
