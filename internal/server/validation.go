package server

import (
	"errors"
	"fmt"
	"strings"
)

func validateTeamName(name string, maxLen int) (string, error) {
	trimmed := normalizeText(name)
	if trimmed == "" {
		return "", errors.New("team name is required")
	}
	if len(trimmed) > maxLen {
		return "", fmt.Errorf("team name must be %d characters or fewer", maxLen)
	}
	if !isSafeText(trimmed) {
		return "", errors.New("team name contains unsupported characters")
	}
	return trimmed, nil
}

func normalizeText(text string) string {
	fields := strings.Fields(strings.TrimSpace(text))
	return strings.Join(fields, " ")
}

func isSafeText(text string) bool {
	for _, r := range text {
		if r > 127 {
			return false
		}
		if r >= 'a' && r <= 'z' {
			continue
		}
		if r >= 'A' && r <= 'Z' {
			continue
		}
		if r >= '0' && r <= '9' {
			continue
		}
		switch r {
		case ' ', '-', '_', '\'', '.', '!', '?', '&', '(', ')':
			continue
		default:
			return false
		}
	}
	return true
}
