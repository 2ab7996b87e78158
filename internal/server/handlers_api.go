package server

import (
	"net/http"
)

type joinRequest struct {
	TeamName string `json:"team_name"`
}

// handleJoin registers a team for pull-transport players. Rejoining an
// existing team returns its current record; new teams are rejected once the
// game has started.
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request, episodeID uint) {
	var req joinRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name, err := validateTeamName(req.TeamName, s.cfg.MaxTeamNameLength)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := s.registry.JoinEpisode(episodeID, name)
	if err != nil {
		writeHubError(w, err)
		return
	}
	s.logger.Info("team joined", "episode_id", episodeID, "team_id", entry.TeamID, "team_name", entry.Name)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"team_id":   entry.TeamID,
		"team_name": entry.Name,
		"points":    entry.Points,
		"position":  entry.Position,
	})
}
