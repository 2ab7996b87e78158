package server

import (
	"log/slog"
	"net/http"

	"github.com/J9273/quizbattle/internal/config"
	"github.com/J9273/quizbattle/internal/db"
	"github.com/J9273/quizbattle/internal/hub"
)

// BuzzStore is the slice of the store the admin surface needs beyond what the
// hub consumes.
type BuzzStore interface {
	ListBuzzes(episodeID, questionID uint) ([]db.Buzz, error)
}

type Server struct {
	registry *hub.Registry
	buzzes   BuzzStore
	cfg      config.Config
	logger   *slog.Logger
}

func New(registry *hub.Registry, buzzes BuzzStore, cfg config.Config, logger *slog.Logger) *Server {
	return &Server{
		registry: registry,
		buzzes:   buzzes,
		cfg:      cfg,
		logger:   logger,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /ws/episodes/", s.handleWebsocket)
	mux.HandleFunc("GET /api/episodes/", s.handleEpisodeSubroutes)
	mux.HandleFunc("POST /api/episodes/", s.handleEpisodeSubroutes)
	mux.Handle("/api/admin/", s.adminRouter())
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleEpisodeSubroutes(w http.ResponseWriter, r *http.Request) {
	episodeID, action, ok := parseEpisodePath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	switch {
	case r.Method == http.MethodGet && action == "poll":
		s.handlePoll(w, r, episodeID)
	case r.Method == http.MethodPost && action == "join":
		s.handleJoin(w, r, episodeID)
	default:
		http.NotFound(w, r)
	}
}
