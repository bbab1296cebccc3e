package domain

import "errors"

var (
	ErrSessionNotFound       = errors.New("session not found")
	ErrSnippetNotFound       = errors.New("snippet not found")
	ErrLockNotFound          = errors.New("editor lock not found")
	ErrSecurityEventNotFound = errors.New("security event not found")
	ErrInvalidEventType      = errors.New("invalid security event type")
	ErrNotOwner              = errors.New("user is not the session owner")
)
