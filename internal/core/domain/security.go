package domain

import "time"

// SecurityEventType enumerates the client actions the editor blocks.
type SecurityEventType string

const (
	EventCopyAttempt             SecurityEventType = "COPY_ATTEMPT"
	EventPasteAttempt            SecurityEventType = "PASTE_ATTEMPT"
	EventContextMenuAttempt      SecurityEventType = "CONTEXT_MENU_ATTEMPT"
	EventKeyboardShortcutAttempt SecurityEventType = "KEYBOARD_SHORTCUT_ATTEMPT"
)

var eventDescriptions = map[SecurityEventType]string{
	EventCopyAttempt:             "Copy attempt blocked",
	EventPasteAttempt:            "Paste attempt blocked",
	EventContextMenuAttempt:      "Context menu access blocked",
	EventKeyboardShortcutAttempt: "Keyboard shortcut attempt blocked",
}

// ParseSecurityEventType validates a raw event type string against the fixed
// enumeration. Anything outside the enumeration is rejected before it can be
// persisted.
func ParseSecurityEventType(raw string) (SecurityEventType, error) {
	t := SecurityEventType(raw)
	if _, ok := eventDescriptions[t]; !ok {
		return "", ErrInvalidEventType
	}
	return t, nil
}

// Description returns the human-readable description for the event type.
func (t SecurityEventType) Description() string {
	return eventDescriptions[t]
}

// SecurityEvent is an append-only record of a blocked client action.
// IsPrevented is always true; the row exists because the action was blocked.
// OwnerNotified flips false->true exactly once via an explicit acknowledgement.
type SecurityEvent struct {
	ID            int64             `json:"id"`
	SnippetID     int64             `json:"snippetId"`
	SessionID     int64             `json:"sessionId"`
	UserID        int64             `json:"userId"`
	Username      string            `json:"userUsername"`
	EventType     SecurityEventType `json:"eventType"`
	Description   string            `json:"description"`
	IsPrevented   bool              `json:"isPrevented"`
	OwnerNotified bool              `json:"ownerNotified"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}
