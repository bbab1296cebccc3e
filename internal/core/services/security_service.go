package services

import (
	"context"
	"time"

	"codeshare/internal/core/domain"
	"codeshare/internal/core/ports"

	"go.uber.org/zap"
)

type securityEventService struct {
	events ports.SecurityEventRepository
	logger *zap.SugaredLogger
}

func NewSecurityEventService(events ports.SecurityEventRepository, logger *zap.SugaredLogger) ports.SecurityEventService {
	return &securityEventService{events: events, logger: logger}
}

// Record validates the event type against the fixed enumeration and persists
// the event with IsPrevented=true. Invalid types are rejected before any
// repository call.
func (s *securityEventService) Record(ctx context.Context, snippetID, sessionID, userID int64, username, eventType string) (*domain.SecurityEvent, error) {
	t, err := domain.ParseSecurityEventType(eventType)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	event := &domain.SecurityEvent{
		SnippetID:     snippetID,
		SessionID:     sessionID,
		UserID:        userID,
		Username:      username,
		EventType:     t,
		Description:   t.Description(),
		IsPrevented:   true,
		OwnerNotified: false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.events.Save(ctx, event); err != nil {
		return nil, err
	}

	s.logger.Infow("security event recorded",
		"snippet_id", snippetID,
		"user_id", userID,
		"event_type", t,
	)
	return event, nil
}

// NotifyOwner flips OwnerNotified exactly once. Unknown ids surface as
// domain.ErrSecurityEventNotFound.
func (s *securityEventService) NotifyOwner(ctx context.Context, eventID int64) (*domain.SecurityEvent, error) {
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OwnerNotified {
		return event, nil
	}

	event.OwnerNotified = true
	event.UpdatedAt = time.Now()
	if err := s.events.Save(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *securityEventService) Unnotified(ctx context.Context, snippetID int64) ([]*domain.SecurityEvent, error) {
	return s.events.FindUnnotifiedBySnippet(ctx, snippetID)
}

func (s *securityEventService) Events(ctx context.Context, snippetID int64) ([]*domain.SecurityEvent, error) {
	return s.events.FindBySnippet(ctx, snippetID)
}
