package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// SessionIDRegex validates collaboration session ID format
	SessionIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// UsernameRegex validates username format
	UsernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ParseID parses a positive numeric identifier. Session and snippet IDs
// arriving from the frontend are sometimes placeholder strings rather than
// numbers; callers decide how to degrade when this fails.
func ParseID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("id is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric id %q", raw)
	}
	if id <= 0 {
		return 0, fmt.Errorf("id must be positive")
	}
	return id, nil
}

// ValidateSessionID validates a collaboration session ID
func ValidateSessionID(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}
	if len(sessionID) > 100 {
		return fmt.Errorf("session ID is too long (max 100 characters)")
	}
	if !SessionIDRegex.MatchString(sessionID) {
		return fmt.Errorf("invalid session ID format")
	}
	return nil
}

// ValidateUsername validates username
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if len(username) > 50 {
		return fmt.Errorf("username is too long (max 50 characters)")
	}
	if !UsernameRegex.MatchString(username) {
		return fmt.Errorf("username contains invalid characters (only letters, numbers, _, - allowed)")
	}
	return nil
}
