package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/J9273/quizbattle/internal/db"
	"github.com/J9273/quizbattle/internal/hub"

	"github.com/gorilla/websocket"
	"gorm.io/datatypes"
)

// clientMessage is the inbound wire shape shared by all roles; Type selects
// the command and decides which other fields matter.
type clientMessage struct {
	Type       string          `json:"type"`
	QuestionID uint            `json:"question_id,omitempty"`
	TeamID     uint            `json:"team_id,omitempty"`
	Points     int             `json:"points,omitempty"`
	Action     string          `json:"action,omitempty"`
	Revealed   bool            `json:"revealed,omitempty"`
	Status     string          `json:"status,omitempty"`
	Answer     json.RawMessage `json:"answer,omitempty"`
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	episodeID, ok := parseWebsocketPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	role, ok := hub.ParseRole(r.URL.Query().Get("role"))
	if !ok {
		role = hub.RolePlayer
	}
	teamName := r.URL.Query().Get("team_name")
	if role == hub.RolePlayer {
		name, err := validateTeamName(teamName, s.cfg.MaxTeamNameLength)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		teamName = name
	}

	room, client, err := s.registry.Attach(episodeID, role, teamName)
	if err != nil {
		if errors.Is(err, db.ErrEpisodeNotFound) {
			http.NotFound(w, r)
			return
		}
		s.registry.RemoveIfEmpty(episodeID)
		writeHubError(w, err)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		room.Detach(client)
		return
	}
	s.logger.Info("ws connected", "episode_id", episodeID, "role", role, "remote", r.RemoteAddr)

	go s.writeWS(conn, client)
	go s.readWS(conn, room, client)
}

// writeWS drains the client's outbound queue onto the socket. A closed queue
// means the room detached the client (eviction, host replacement, shutdown)
// and the socket is closed from this side.
func (s *Server) writeWS(conn *websocket.Conn, client *hub.Client) {
	for payload := range client.Outbox() {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			break
		}
	}
	_ = conn.Close()
}

func (s *Server) readWS(conn *websocket.Conn, room *hub.Room, client *hub.Client) {
	defer func() {
		room.Detach(client)
		_ = conn.Close()
	}()

	heartbeat := time.Duration(s.cfg.HeartbeatSeconds) * time.Second
	for {
		_ = conn.SetReadDeadline(time.Now().Add(2 * heartbeat))
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.logger.Info("ws disconnected", "episode_id", room.EpisodeID(), "role", client.Role(), "error", err)
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			room.NotifyError(client, errors.New("bad json"))
			continue
		}
		room.Touch(client)
		s.dispatch(room, client, msg)
	}
}

// dispatch routes one inbound message to the matching room command. Command
// errors go back to the issuing connection only.
func (s *Server) dispatch(room *hub.Room, client *hub.Client, msg clientMessage) {
	var err error
	switch msg.Type {
	case "heartbeat":
		room.Heartbeat(client)
	case "sync_request":
		room.SyncRequest(client)
	case "show_question":
		err = room.DisplayQuestion(client, msg.QuestionID)
	case "reveal_answer":
		err = room.RevealAnswer(client, msg.Revealed)
	case "clear_question":
		err = room.ClearQuestion(client)
	case "award_points":
		err = room.AwardPoints(client, msg.TeamID, msg.QuestionID)
	case "update_score":
		err = room.AdjustScore(client, msg.TeamID, msg.Points, msg.Action)
	case "calculate_rankings":
		err = room.RecalculateRankings(client)
	case "episode_status":
		err = room.SetEpisodeStatus(client, msg.Status)
	case "buzz_answer":
		err = room.SubmitBuzz(client, msg.QuestionID, datatypes.JSON(msg.Answer))
	default:
		err = errors.New("unknown message type")
	}
	if err != nil {
		room.NotifyError(client, err)
	}
}
