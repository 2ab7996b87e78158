package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/J9273/quizbattle/internal/db"
	"github.com/J9273/quizbattle/internal/hub"

	"github.com/gin-gonic/gin"
)

// adminRouter is the surface the excluded admin CRUD layer calls into:
// synchronous snapshots for non-realtime pages, a force-broadcast trigger for
// out-of-band edits, episode status changes and buzz listings.
func (s *Server) adminRouter() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.GET("/api/admin/episodes/:id/snapshot", s.handleAdminSnapshot)
	router.POST("/api/admin/episodes/:id/refresh", s.handleAdminRefresh)
	router.POST("/api/admin/episodes/:id/status", s.handleAdminStatus)
	router.GET("/api/admin/episodes/:id/buzzes", s.handleAdminBuzzes)
	return router
}

type episodeURI struct {
	ID uint `uri:"id" binding:"required,min=1"`
}

func (s *Server) handleAdminSnapshot(c *gin.Context) {
	var uri episodeURI
	if !bindURI(c, &uri) {
		return
	}
	role := hub.RoleDisplay
	if parsed, ok := hub.ParseRole(c.Query("role")); ok {
		role = parsed
	}
	snapshot, err := s.registry.Snapshot(uri.ID, role)
	if err != nil {
		s.adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) handleAdminRefresh(c *gin.Context) {
	var uri episodeURI
	if !bindURI(c, &uri) {
		return
	}
	if err := s.registry.Refresh(uri.ID); err != nil {
		s.adminError(c, err)
		return
	}
	s.logger.Info("forced broadcast", "episode_id", uri.ID)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type statusRequest struct {
	Status string `json:"status" binding:"required,oneof=active completed archived"`
}

func (s *Server) handleAdminStatus(c *gin.Context) {
	var uri episodeURI
	if !bindURI(c, &uri) {
		return
	}
	var req statusRequest
	if !bindJSON(c, &req, bindMessages{
		"Status": {
			"required": "status is required",
			"oneof":    "status must be active, completed or archived",
		},
	}, "invalid status request") {
		return
	}
	if err := s.registry.SetEpisodeStatus(uri.ID, req.Status); err != nil {
		s.adminError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "status": req.Status})
}

func (s *Server) handleAdminBuzzes(c *gin.Context) {
	var uri episodeURI
	if !bindURI(c, &uri) {
		return
	}
	questionID := uint(0)
	if raw := c.Query("question_id"); raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
			questionID = uint(id)
		}
	}
	buzzes, err := s.buzzes.ListBuzzes(uri.ID, questionID)
	if err != nil {
		s.adminError(c, err)
		return
	}
	payload := make([]gin.H, 0, len(buzzes))
	for _, buzz := range buzzes {
		payload = append(payload, gin.H{
			"id":          buzz.ID,
			"team_id":     buzz.TeamID,
			"question_id": buzz.QuestionID,
			"answer":      buzz.Payload,
			"buzzed_at":   buzz.BuzzedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "buzzes": payload})
}

func (s *Server) adminError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, db.ErrEpisodeNotFound) {
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"success": false, "error": err.Error(), "kind": hub.ErrorKind(err)})
}
