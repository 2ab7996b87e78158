package hub

// Event vocabulary shared by the push and pull transports. Payloads are plain
// maps with a "type" discriminator so both transports serialize them the same
// way.
const (
	EvtEpisodeState         = "episode_state"
	EvtClientJoined         = "client_joined"
	EvtClientLeft           = "client_left"
	EvtQuestionDisplayed    = "question_displayed"
	EvtAnswerRevealed       = "answer_revealed"
	EvtQuestionCleared      = "question_cleared"
	EvtScoreUpdated         = "score_updated"
	EvtPointsAwarded        = "points_awarded"
	EvtRankingsUpdated      = "rankings_updated"
	EvtEpisodeStatusChanged = "episode_status_changed"
	EvtBuzzReceived         = "buzz_received"
	EvtError                = "error"
	EvtPong                 = "pong"
)

func errorEvent(err error) map[string]any {
	return map[string]any{
		"type":    EvtError,
		"kind":    ErrorKind(err),
		"message": err.Error(),
	}
}

func teamPayload(entry ScoreboardEntry) map[string]any {
	return map[string]any{
		"id":       entry.TeamID,
		"name":     entry.Name,
		"points":   entry.Points,
		"position": entry.Position,
	}
}

func scoreboardPayload(entries []ScoreboardEntry) []map[string]any {
	teams := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		teams = append(teams, teamPayload(entry))
	}
	return teams
}
