package hub

import (
	"sort"

	"github.com/J9273/quizbattle/internal/db"
)

// State of the question cycle within a room.
type State string

const (
	StateIdle           State = "idle"
	StateQuestionShown  State = "question_shown"
	StateAnswerRevealed State = "answer_revealed"
)

type QuestionView struct {
	ID     uint
	Text   string
	Theme  string
	Level  string
	Points int
	Answer string
}

type ScoreboardEntry struct {
	TeamID   uint
	Name     string
	Points   int
	Position int
}

// Projection is the authoritative in-memory view of a room: current question,
// reveal flag and the ordered scoreboard. Every scoreboard mutation writes
// through to the store before the projection is touched.
type Projection struct {
	Episode         db.Episode
	CurrentQuestion *QuestionView
	AnswerRevealed  bool
	Scoreboard      []ScoreboardEntry
}

func (p *Projection) State() State {
	switch {
	case p.CurrentQuestion == nil:
		return StateIdle
	case p.AnswerRevealed:
		return StateAnswerRevealed
	default:
		return StateQuestionShown
	}
}

func buildProjection(store Store, episodeID uint) (Projection, error) {
	episode, err := store.GetEpisode(episodeID)
	if err != nil {
		return Projection{}, err
	}
	teams, err := store.GetTeams(episodeID)
	if err != nil {
		return Projection{}, err
	}
	scoreboard := make([]ScoreboardEntry, 0, len(teams))
	for _, team := range teams {
		scoreboard = append(scoreboard, ScoreboardEntry{
			TeamID:   team.ID,
			Name:     team.Name,
			Points:   team.Points,
			Position: team.Position,
		})
	}
	return Projection{Episode: episode, Scoreboard: scoreboard}, nil
}

func (p *Projection) entry(teamID uint) *ScoreboardEntry {
	for i := range p.Scoreboard {
		if p.Scoreboard[i].TeamID == teamID {
			return &p.Scoreboard[i]
		}
	}
	return nil
}

// sortScoreboard orders by points descending with the team name as a
// deterministic tie-break, and reassigns positions starting at 1.
func (p *Projection) sortScoreboard() {
	sort.SliceStable(p.Scoreboard, func(i, j int) bool {
		if p.Scoreboard[i].Points != p.Scoreboard[j].Points {
			return p.Scoreboard[i].Points > p.Scoreboard[j].Points
		}
		return p.Scoreboard[i].Name < p.Scoreboard[j].Name
	})
	for i := range p.Scoreboard {
		p.Scoreboard[i].Position = i + 1
	}
}

// questionPayload shapes the current question for a client. The answer text is
// withheld unless the client is the host or the answer has been revealed.
func (p *Projection) questionPayload(includeAnswer bool) map[string]any {
	if p.CurrentQuestion == nil {
		return nil
	}
	question := map[string]any{
		"id":       p.CurrentQuestion.ID,
		"question": p.CurrentQuestion.Text,
		"theme":    p.CurrentQuestion.Theme,
		"level":    p.CurrentQuestion.Level,
		"points":   p.CurrentQuestion.Points,
	}
	if includeAnswer || p.AnswerRevealed {
		question["answer"] = p.CurrentQuestion.Answer
	}
	return question
}

// snapshot builds the full episode_state payload for one role.
func (p *Projection) snapshot(role Role) map[string]any {
	return map[string]any{
		"type": EvtEpisodeState,
		"episode": map[string]any{
			"id":     p.Episode.ID,
			"name":   p.Episode.Name,
			"status": p.Episode.Status,
		},
		"state":            string(p.State()),
		"current_question": p.questionPayload(role == RoleHost),
		"answer_revealed":  p.AnswerRevealed,
		"teams":            scoreboardPayload(p.Scoreboard),
	}
}
