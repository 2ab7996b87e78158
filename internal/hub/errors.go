package hub

import (
	"errors"

	"github.com/J9273/quizbattle/internal/db"
)

var (
	ErrGameAlreadyStarted = errors.New("game already started")
	ErrEpisodeNotActive   = errors.New("episode is not active")
	ErrInvalidRole        = errors.New("command not allowed for role")
	ErrSlowConsumer       = errors.New("outbound queue overflow")

	// errRoomClosed marks a room already torn down by the registry. Callers
	// going through Registry.Attach never see it; a fresh room is created
	// instead.
	errRoomClosed = errors.New("room closed")
)

// ErrorKind maps an error to the wire code carried by error events. Anything
// outside the command taxonomy is a store failure by construction.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, db.ErrEpisodeNotFound):
		return "episode_not_found"
	case errors.Is(err, db.ErrTeamNotFound):
		return "team_not_found"
	case errors.Is(err, db.ErrQuestionNotFound):
		return "question_not_found"
	case errors.Is(err, ErrGameAlreadyStarted):
		return "game_already_started"
	case errors.Is(err, ErrEpisodeNotActive):
		return "episode_not_active"
	case errors.Is(err, ErrInvalidRole):
		return "invalid_role_for_command"
	case errors.Is(err, ErrSlowConsumer):
		return "slow_consumer_evicted"
	default:
		return "store_unavailable"
	}
}
