package hub

import (
	"time"

	"github.com/J9273/quizbattle/internal/db"

	"gorm.io/datatypes"
)

// Score adjustment modes for AdjustScore.
const (
	AdjustModeAdd      = "add"
	AdjustModeSubtract = "subtract"
	AdjustModeSet      = "set"
)

// Commands mutate the store first, then the projection, then broadcast; a
// store failure returns before anything is announced, so the pre-command
// projection stays authoritative.

func (r *Room) requireHostLocked(client *Client) error {
	if r.host != client || client.gone {
		return ErrInvalidRole
	}
	return nil
}

func (r *Room) requirePlayerLocked(client *Client) error {
	if _, ok := r.players[client]; !ok || client.gone {
		return ErrInvalidRole
	}
	return nil
}

// DisplayQuestion resolves the question and its point value from the store
// and shows it to the room. The host payload carries the answer text; players
// and displays get the redacted shape.
func (r *Room) DisplayQuestion(client *Client, questionID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireHostLocked(client); err != nil {
		return err
	}
	question, err := r.store.GetQuestion(questionID)
	if err != nil {
		return err
	}
	points, err := r.store.GetPointsForLevel(question.Level)
	if err != nil {
		return err
	}
	r.projection.CurrentQuestion = &QuestionView{
		ID:     question.ID,
		Text:   question.Question,
		Theme:  question.Theme,
		Level:  question.Level,
		Points: points,
		Answer: question.Answer,
	}
	r.projection.AnswerRevealed = false

	full := map[string]any{
		"type":     EvtQuestionDisplayed,
		"question": r.projection.questionPayload(true),
	}
	redacted := map[string]any{
		"type":     EvtQuestionDisplayed,
		"question": r.projection.questionPayload(false),
	}
	r.broadcastLocked(full, nil, RoleHost)
	r.broadcastLocked(redacted, nil, RoleDisplay, RolePlayer)
	r.logger.Info("question displayed", "episode_id", r.episodeID, "question_id", questionID, "points", points)
	return nil
}

// RevealAnswer toggles the reveal flag. With no current question this is a
// no-op confirmation to the issuing host, never an error, so rapid operator
// input stays forgiving.
func (r *Room) RevealAnswer(client *Client, revealed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireHostLocked(client); err != nil {
		return err
	}
	if r.projection.CurrentQuestion == nil {
		r.enqueueLocked(client, mustMarshal(map[string]any{
			"type":     EvtAnswerRevealed,
			"revealed": false,
		}))
		return nil
	}
	r.projection.AnswerRevealed = revealed
	payload := map[string]any{
		"type":     EvtAnswerRevealed,
		"revealed": revealed,
	}
	if revealed {
		payload["answer"] = r.projection.CurrentQuestion.Answer
	}
	r.broadcastLocked(payload, nil, RoleDisplay, RolePlayer)
	return nil
}

func (r *Room) ClearQuestion(client *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireHostLocked(client); err != nil {
		return err
	}
	r.projection.CurrentQuestion = nil
	r.projection.AnswerRevealed = false
	r.broadcastLocked(map[string]any{"type": EvtQuestionCleared}, nil)
	return nil
}

// AwardPoints adds the question's level value to the team's persisted points.
func (r *Room) AwardPoints(client *Client, teamID, questionID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireHostLocked(client); err != nil {
		return err
	}
	entry := r.projection.entry(teamID)
	if entry == nil {
		return db.ErrTeamNotFound
	}
	question, err := r.store.GetQuestion(questionID)
	if err != nil {
		return err
	}
	points, err := r.store.GetPointsForLevel(question.Level)
	if err != nil {
		return err
	}
	total := entry.Points + points
	if err := r.store.UpdateTeamPoints(teamID, total); err != nil {
		return err
	}
	entry.Points = total
	r.broadcastLocked(map[string]any{
		"type":        EvtPointsAwarded,
		"team_id":     teamID,
		"team":        teamPayload(*entry),
		"points":      points,
		"question_id": questionID,
		"level":       question.Level,
	}, nil)
	r.logger.Info("points awarded", "episode_id", r.episodeID, "team_id", teamID, "points", points)
	return nil
}

// AdjustScore is the host's manual override. Subtract clamps at zero; set
// replaces unconditionally.
func (r *Room) AdjustScore(client *Client, teamID uint, points int, mode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireHostLocked(client); err != nil {
		return err
	}
	entry := r.projection.entry(teamID)
	if entry == nil {
		return db.ErrTeamNotFound
	}
	total := entry.Points
	switch mode {
	case AdjustModeAdd:
		total += points
	case AdjustModeSubtract:
		total -= points
		if total < 0 {
			total = 0
		}
	default:
		total = points
	}
	if err := r.store.UpdateTeamPoints(teamID, total); err != nil {
		return err
	}
	entry.Points = total
	r.broadcastLocked(map[string]any{
		"type":           EvtScoreUpdated,
		"team_id":        teamID,
		"team":           teamPayload(*entry),
		"action":         mode,
		"points_changed": points,
	}, nil)
	return nil
}

// RecalculateRankings reorders by (points desc, name asc), persists every
// team's position, then announces the full ordered scoreboard. Positions are
// persisted before the projection changes so a store failure leaves the old
// order authoritative.
func (r *Room) RecalculateRankings(client *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireHostLocked(client); err != nil {
		return err
	}
	ranked := Projection{Scoreboard: append([]ScoreboardEntry(nil), r.projection.Scoreboard...)}
	ranked.sortScoreboard()
	for _, entry := range ranked.Scoreboard {
		if err := r.store.UpdateTeamPosition(entry.TeamID, entry.Position); err != nil {
			return err
		}
	}
	r.projection.Scoreboard = ranked.Scoreboard
	r.broadcastLocked(map[string]any{
		"type":  EvtRankingsUpdated,
		"teams": scoreboardPayload(r.projection.Scoreboard),
	}, nil)
	return nil
}

func (r *Room) SetEpisodeStatus(client *Client, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireHostLocked(client); err != nil {
		return err
	}
	if err := r.store.UpdateEpisodeStatus(r.episodeID, status); err != nil {
		return err
	}
	r.projection.Episode.Status = status
	r.broadcastLocked(map[string]any{
		"type":   EvtEpisodeStatusChanged,
		"status": status,
	}, nil)
	r.logger.Info("episode status changed", "episode_id", r.episodeID, "status", status)
	return nil
}

func (r *Room) applyEpisodeStatus(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projection.Episode.Status = status
	r.broadcastLocked(map[string]any{
		"type":   EvtEpisodeStatusChanged,
		"status": status,
	}, nil)
}

// SubmitBuzz records the team's answer and notifies the host. The answer
// itself is owned by the store; the hub only signals that it happened.
func (r *Room) SubmitBuzz(client *Client, questionID uint, payload datatypes.JSON) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requirePlayerLocked(client); err != nil {
		return err
	}
	if err := r.store.RecordBuzz(r.episodeID, client.teamID, questionID, payload); err != nil {
		return err
	}
	entry := r.projection.entry(client.teamID)
	teamName := ""
	if entry != nil {
		teamName = entry.Name
	}
	r.broadcastLocked(map[string]any{
		"type":        EvtBuzzReceived,
		"team_id":     client.teamID,
		"team_name":   teamName,
		"question_id": questionID,
		"buzzed_at":   time.Now().UTC().Format(time.RFC3339),
	}, nil, RoleHost)
	return nil
}

// SyncRequest re-sends the full snapshot to the requesting connection only.
func (r *Room) SyncRequest(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enqueueLocked(client, mustMarshal(r.projection.snapshot(client.role)))
}

// NotifyError delivers a command error to the issuing connection only.
func (r *Room) NotifyError(client *Client, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enqueueLocked(client, mustMarshal(errorEvent(err)))
}

// Refresh rebuilds the scoreboard and episode record from the store, keeping
// the in-memory question state, and re-sends episode_state to everyone. Used
// after out-of-band admin edits.
func (r *Room) Refresh() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rebuilt, err := buildProjection(r.store, r.episodeID)
	if err != nil {
		return err
	}
	r.projection.Episode = rebuilt.Episode
	r.projection.Scoreboard = rebuilt.Scoreboard
	r.broadcastLocked(r.projection.snapshot(RoleHost), nil, RoleHost)
	r.broadcastLocked(r.projection.snapshot(RoleDisplay), nil, RoleDisplay, RolePlayer)
	return nil
}
