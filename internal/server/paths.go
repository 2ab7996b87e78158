package server

import (
	"strconv"
	"strings"
)

// parseEpisodePath extracts the episode ID and trailing action from paths of
// the form /api/episodes/{id}/{action}.
func parseEpisodePath(path string) (uint, string, bool) {
	trimmed := strings.TrimPrefix(path, "/api/episodes/")
	if trimmed == path {
		return 0, "", false
	}
	parts := strings.SplitN(strings.Trim(trimmed, "/"), "/", 2)
	id, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil || id == 0 {
		return 0, "", false
	}
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}
	return uint(id), action, true
}

// parseWebsocketPath extracts the episode ID from /ws/episodes/{id}.
func parseWebsocketPath(path string) (uint, bool) {
	trimmed := strings.TrimPrefix(path, "/ws/episodes/")
	if trimmed == path {
		return 0, false
	}
	id, err := strconv.ParseUint(strings.Trim(trimmed, "/"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
