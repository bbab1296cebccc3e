package collab

import (
	"context"
	"errors"
	"testing"

	"codeshare/internal/core/domain"
	"codeshare/internal/core/services"
	"codeshare/internal/infrastructure/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// capturePublisher records everything published, per topic.
type capturePublisher struct {
	published []publishedMessage
	err       error
}

type publishedMessage struct {
	topic   string
	payload interface{}
}

func (p *capturePublisher) Publish(topic string, payload interface{}) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, publishedMessage{topic, payload})
	return nil
}

func (p *capturePublisher) last(t *testing.T) publishedMessage {
	t.Helper()
	require.NotEmpty(t, p.published)
	return p.published[len(p.published)-1]
}

// failingSnippetRepo simulates the snippet collaborator being unreachable.
type failingSnippetRepo struct{}

func (failingSnippetRepo) GetByID(ctx context.Context, id string) (*domain.Snippet, error) {
	return nil, errors.New("snippet service unavailable")
}

func newTestRouter(t *testing.T, snippets *memory.MemorySnippetRepository) (*Router, *capturePublisher) {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()
	pub := &capturePublisher{}
	router := NewRouter(services.NewPresenceService(logger), snippets, pub, logger)
	return router, pub
}

func TestRouter_JoinBroadcastsPresenceWithTitleAndOwner(t *testing.T) {
	snippets := memory.NewMemorySnippetRepository()
	snippets.Put(&domain.Snippet{ID: "42", AuthorID: "owner-1", Title: "quicksort.go"})
	router, pub := newTestRouter(t, snippets)

	err := router.HandleJoin(context.Background(), "42", "owner-1", "alice")
	require.NoError(t, err)

	msg := pub.last(t)
	assert.Equal(t, PresenceTopic("42"), msg.topic)

	presence, ok := msg.payload.(PresenceMessage)
	require.True(t, ok)
	assert.Equal(t, PresenceUserJoined, presence.Type)
	assert.Equal(t, domain.UserID("owner-1"), presence.UserID)
	assert.Equal(t, "quicksort.go", presence.SnippetTitle)
	require.Len(t, presence.ActiveUsers, 1)
	assert.True(t, presence.ActiveUsers[0].IsOwner)
}

func TestRouter_JoinSurvivesSnippetLookupFailure(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()
	pub := &capturePublisher{}
	router := NewRouter(services.NewPresenceService(logger), failingSnippetRepo{}, pub, logger)

	err := router.HandleJoin(context.Background(), "42", "a", "alice")
	require.NoError(t, err)

	presence := pub.last(t).payload.(PresenceMessage)
	assert.Equal(t, PresenceUserJoined, presence.Type)
	assert.Empty(t, presence.SnippetTitle)
	require.Len(t, presence.ActiveUsers, 1)
}

func TestRouter_LeaveBroadcastsDepartedUsername(t *testing.T) {
	snippets := memory.NewMemorySnippetRepository()
	snippets.Put(&domain.Snippet{ID: "42", AuthorID: "a", Title: "demo"})
	router, pub := newTestRouter(t, snippets)
	ctx := context.Background()

	require.NoError(t, router.HandleJoin(ctx, "42", "a", "alice"))
	require.NoError(t, router.HandleJoin(ctx, "42", "b", "bob"))
	require.NoError(t, router.HandleLeave(ctx, "42", "a"))

	presence := pub.last(t).payload.(PresenceMessage)
	assert.Equal(t, PresenceUserLeft, presence.Type)
	assert.Equal(t, domain.UserID("a"), presence.UserID)
	// Username is resolved from the registry before removal.
	assert.Equal(t, "alice", presence.Username)
	require.Len(t, presence.ActiveUsers, 1)
	assert.Equal(t, domain.UserID("b"), presence.ActiveUsers[0].UserID)
}

func TestRouter_CodeChangeRelaysVerbatim(t *testing.T) {
	router, pub := newTestRouter(t, memory.NewMemorySnippetRepository())

	change := CodeChangeMessage{
		UserID:    "a",
		Username:  "alice",
		Code:      "package main",
		Language:  "go",
		Timestamp: 1234,
	}
	require.NoError(t, router.HandleCodeChange("42", change))

	msg := pub.last(t)
	assert.Equal(t, CodeTopic("42"), msg.topic)
	assert.Equal(t, change, msg.payload)
}

func TestRouter_TypingBroadcastsRecomputedStatus(t *testing.T) {
	router, pub := newTestRouter(t, memory.NewMemorySnippetRepository())
	ctx := context.Background()

	require.NoError(t, router.HandleJoin(ctx, "42", "a", "alice"))
	require.NoError(t, router.HandleJoin(ctx, "42", "b", "bob"))

	require.NoError(t, router.HandleTyping("42", TypingIndicatorMessage{UserID: "a", IsTyping: true}))

	status := pub.last(t).payload.(TypingStatusMessage)
	require.Len(t, status.TypingUsers, 1)
	assert.Equal(t, domain.UserID("a"), status.TypingUsers[0].UserID)
	assert.Equal(t, "alice", status.TypingUsers[0].Username)

	require.NoError(t, router.HandleTyping("42", TypingIndicatorMessage{UserID: "a", IsTyping: false}))
	status = pub.last(t).payload.(TypingStatusMessage)
	assert.Empty(t, status.TypingUsers)
}

func TestRouter_ActiveUsersQuery(t *testing.T) {
	router, pub := newTestRouter(t, memory.NewMemorySnippetRepository())
	ctx := context.Background()

	require.NoError(t, router.HandleJoin(ctx, "42", "a", "alice"))
	require.NoError(t, router.HandleJoin(ctx, "42", "b", "bob"))

	require.NoError(t, router.HandleActiveUsers("42"))

	msg := pub.last(t)
	assert.Equal(t, UsersTopic("42"), msg.topic)
	users := msg.payload.(ActiveUsersMessage)
	assert.Equal(t, 2, users.Count)
	assert.Len(t, users.Users, 2)
}

func TestRouter_SyncStateFillsTimestamp(t *testing.T) {
	router, pub := newTestRouter(t, memory.NewMemorySnippetRepository())

	require.NoError(t, router.HandleSyncState("42", SyncStateRequest{UserID: "a", Username: "alice"}))

	msg := pub.last(t)
	assert.Equal(t, SyncTopic("42"), msg.topic)
	req := msg.payload.(SyncStateRequest)
	assert.NotZero(t, req.Timestamp)
}

func TestRouter_PublishFailureIsReturned(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()
	pub := &capturePublisher{err: errors.New("broker down")}
	router := NewRouter(services.NewPresenceService(logger), memory.NewMemorySnippetRepository(), pub, logger)

	err := router.HandleCodeChange("42", CodeChangeMessage{UserID: "a"})
	assert.Error(t, err)
}
