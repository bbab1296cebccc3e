package services

import (
	"context"
	"errors"
	"time"

	"codeshare/internal/core/domain"
	"codeshare/internal/core/ports"

	"go.uber.org/zap"
)

// lockService manages editor lock rows. Contention is delegated to the
// backing store; no in-memory lock is held across repository calls.
type lockService struct {
	locks  ports.LockRepository
	logger *zap.SugaredLogger
}

func NewLockService(locks ports.LockRepository, logger *zap.SugaredLogger) ports.LockService {
	return &lockService{locks: locks, logger: logger}
}

// GetOrCreate returns the lock row for the snippet/session pair, creating an
// unlocked row with the given owner when none exists yet.
func (s *lockService) GetOrCreate(ctx context.Context, snippetID, sessionID, ownerID int64) (*domain.EditorLock, error) {
	lock, err := s.locks.FindBySnippetAndSession(ctx, snippetID, sessionID)
	if err == nil {
		return lock, nil
	}
	if !errors.Is(err, domain.ErrLockNotFound) {
		return nil, err
	}

	now := time.Now()
	lock = &domain.EditorLock{
		SnippetID: snippetID,
		SessionID: sessionID,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.locks.Save(ctx, lock); err != nil {
		return nil, err
	}
	return lock, nil
}

// Lock upserts the row into the LOCKED state. Authorization is the caller's
// concern; the boundary layer checks IsOwner first.
func (s *lockService) Lock(ctx context.Context, snippetID, sessionID int64, reason string) (*domain.EditorLock, error) {
	lock, err := s.findOrNew(ctx, snippetID, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	lock.IsLocked = true
	lock.LockReason = reason
	lock.LockedAt = &now
	lock.UpdatedAt = now

	if err := s.locks.Save(ctx, lock); err != nil {
		return nil, err
	}
	s.logger.Infow("editor locked", "snippet_id", snippetID, "session_id", sessionID, "reason", reason)
	return lock, nil
}

// Unlock upserts the row into the UNLOCKED state. It does not require a prior
// Lock call; unlocking a never-locked session yields IsLocked=false.
func (s *lockService) Unlock(ctx context.Context, snippetID, sessionID int64) (*domain.EditorLock, error) {
	lock, err := s.findOrNew(ctx, snippetID, sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	lock.IsLocked = false
	lock.UnlockedAt = &now
	lock.UpdatedAt = now

	if err := s.locks.Save(ctx, lock); err != nil {
		return nil, err
	}
	s.logger.Infow("editor unlocked", "snippet_id", snippetID, "session_id", sessionID)
	return lock, nil
}

func (s *lockService) IsLocked(ctx context.Context, snippetID, sessionID int64) (bool, error) {
	lock, err := s.locks.FindBySnippetAndSession(ctx, snippetID, sessionID)
	if errors.Is(err, domain.ErrLockNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return lock.IsLocked, nil
}

func (s *lockService) Status(ctx context.Context, snippetID, sessionID int64) (*domain.EditorLock, error) {
	return s.locks.FindBySnippetAndSession(ctx, snippetID, sessionID)
}

// IsOwner reports whether userID matches the owner recorded on the snippet's
// lock row. A missing row means no ownership claim exists yet.
func (s *lockService) IsOwner(ctx context.Context, snippetID, userID int64) (bool, error) {
	lock, err := s.locks.FindBySnippet(ctx, snippetID)
	if errors.Is(err, domain.ErrLockNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return lock.OwnerID == userID, nil
}

func (s *lockService) findOrNew(ctx context.Context, snippetID, sessionID int64) (*domain.EditorLock, error) {
	lock, err := s.locks.FindBySnippetAndSession(ctx, snippetID, sessionID)
	if err == nil {
		return lock, nil
	}
	if !errors.Is(err, domain.ErrLockNotFound) {
		return nil, err
	}
	now := time.Now()
	return &domain.EditorLock{
		SnippetID: snippetID,
		SessionID: sessionID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
