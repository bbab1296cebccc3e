package services

import (
	"sync"
	"time"

	"codeshare/internal/core/domain"
	"codeshare/internal/core/ports"

	"go.uber.org/zap"
)

// sessionState holds one session's participants and typing set behind its own
// lock, so traffic on one session never blocks another. The typing set is
// dropped as soon as it empties; the whole state is dropped when the last
// participant leaves.
type sessionState struct {
	mu           sync.RWMutex
	ownerID      domain.UserID
	ownerKnown   bool
	participants map[domain.UserID]*domain.Participant
	typing       map[domain.UserID]struct{}
}

type PresenceService struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*sessionState
	logger   *zap.SugaredLogger
}

func NewPresenceService(logger *zap.SugaredLogger) ports.PresenceRegistry {
	return &PresenceService{
		sessions: make(map[domain.SessionID]*sessionState),
		logger:   logger,
	}
}

func (s *PresenceService) state(sessionID domain.SessionID) (*sessionState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sessions[sessionID]
	return st, ok
}

// Join inserts or overwrites the participant entry with a fresh JoinedAt.
// The first participant of a session is tentatively recorded as owner until
// SetOwner delivers the authoritative author id.
func (s *PresenceService) Join(sessionID domain.SessionID, userID domain.UserID, username string) {
	// The registry read lock is held across the state mutation so a concurrent
	// Leave cannot discard the session entry between lookup and insert.
	s.mu.RLock()
	st, ok := s.sessions[sessionID]
	if ok {
		st.mu.Lock()
		st.join(userID, username)
		st.mu.Unlock()
		s.mu.RUnlock()
		s.logger.Debugw("participant joined", "session_id", sessionID, "user_id", userID)
		return
	}
	s.mu.RUnlock()

	s.mu.Lock()
	st, ok = s.sessions[sessionID]
	if !ok {
		st = &sessionState{participants: make(map[domain.UserID]*domain.Participant)}
		s.sessions[sessionID] = st
	}
	st.mu.Lock()
	st.join(userID, username)
	st.mu.Unlock()
	s.mu.Unlock()

	s.logger.Debugw("participant joined", "session_id", sessionID, "user_id", userID)
}

// join inserts the participant entry; callers hold the state lock.
func (st *sessionState) join(userID domain.UserID, username string) {
	st.participants[userID] = &domain.Participant{
		UserID:   userID,
		Username: username,
		JoinedAt: time.Now(),
	}
	if !st.ownerKnown {
		st.ownerID = userID
		st.ownerKnown = true
	}
}

// SetOwner overrides the session's owner id once the authoritative snippet
// author is known. No-op for unknown sessions.
func (s *PresenceService) SetOwner(sessionID domain.SessionID, ownerID domain.UserID) {
	st, ok := s.state(sessionID)
	if !ok {
		return
	}
	st.mu.Lock()
	st.ownerID = ownerID
	st.ownerKnown = true
	st.mu.Unlock()
}

func (s *PresenceService) Owner(sessionID domain.SessionID) (domain.UserID, bool) {
	st, ok := s.state(sessionID)
	if !ok {
		return "", false
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.ownerID, st.ownerKnown
}

// Leave removes the participant and their typing flag. When the last
// participant leaves, the whole session entry is discarded; sessions have no
// persistence beyond active membership.
func (s *PresenceService) Leave(sessionID domain.SessionID, userID domain.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		return
	}

	st.mu.Lock()
	delete(st.participants, userID)
	delete(st.typing, userID)
	if len(st.typing) == 0 {
		st.typing = nil
	}
	empty := len(st.participants) == 0
	st.mu.Unlock()

	if empty {
		delete(s.sessions, sessionID)
		s.logger.Debugw("session emptied", "session_id", sessionID)
	}
}

// ActiveUsers returns the participants annotated with typing status and an
// ownership flag computed against the current owner id. Order is unspecified.
func (s *PresenceService) ActiveUsers(sessionID domain.SessionID) []domain.ActiveUser {
	st, ok := s.state(sessionID)
	if !ok {
		return []domain.ActiveUser{}
	}

	st.mu.RLock()
	defer st.mu.RUnlock()

	users := make([]domain.ActiveUser, 0, len(st.participants))
	for _, p := range st.participants {
		_, typing := st.typing[p.UserID]
		users = append(users, domain.ActiveUser{
			UserID:   p.UserID,
			Username: p.Username,
			JoinedAt: p.JoinedAt,
			IsTyping: typing,
			IsOwner:  st.ownerKnown && p.UserID == st.ownerID,
		})
	}
	return users
}

func (s *PresenceService) SetTyping(sessionID domain.SessionID, userID domain.UserID, isTyping bool) {
	st, ok := s.state(sessionID)
	if !ok {
		return
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if isTyping {
		if st.typing == nil {
			st.typing = make(map[domain.UserID]struct{})
		}
		st.typing[userID] = struct{}{}
		return
	}
	delete(st.typing, userID)
	if len(st.typing) == 0 {
		st.typing = nil
	}
}

// TypingUsers returns users that are both marked typing and still present.
// A stale flag for a departed user is never surfaced.
func (s *PresenceService) TypingUsers(sessionID domain.SessionID) []domain.UserID {
	st, ok := s.state(sessionID)
	if !ok {
		return []domain.UserID{}
	}

	st.mu.RLock()
	defer st.mu.RUnlock()

	ids := make([]domain.UserID, 0, len(st.typing))
	for userID := range st.typing {
		if _, present := st.participants[userID]; present {
			ids = append(ids, userID)
		}
	}
	return ids
}

func (s *PresenceService) TypingUsersWithNames(sessionID domain.SessionID) []domain.TypingUser {
	st, ok := s.state(sessionID)
	if !ok {
		return []domain.TypingUser{}
	}

	st.mu.RLock()
	defer st.mu.RUnlock()

	users := make([]domain.TypingUser, 0, len(st.typing))
	for userID := range st.typing {
		if p, present := st.participants[userID]; present {
			users = append(users, domain.TypingUser{UserID: userID, Username: p.Username})
		}
	}
	return users
}

func (s *PresenceService) IsPresent(sessionID domain.SessionID, userID domain.UserID) bool {
	st, ok := s.state(sessionID)
	if !ok {
		return false
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	_, present := st.participants[userID]
	return present
}

func (s *PresenceService) CountActive(sessionID domain.SessionID) int {
	st, ok := s.state(sessionID)
	if !ok {
		return 0
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.participants)
}

// Stats reports the number of live sessions and participants across all
// sessions, for monitoring.
func (s *PresenceService) Stats() (sessions, participants int) {
	s.mu.RLock()
	states := make([]*sessionState, 0, len(s.sessions))
	for _, st := range s.sessions {
		states = append(states, st)
	}
	s.mu.RUnlock()

	for _, st := range states {
		st.mu.RLock()
		participants += len(st.participants)
		st.mu.RUnlock()
	}
	return len(states), participants
}
