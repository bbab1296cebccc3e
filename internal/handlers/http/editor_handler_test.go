package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"codeshare/internal/core/domain"
	"codeshare/internal/core/ports"
	"codeshare/internal/core/services"
	"codeshare/internal/infrastructure/middleware"
	"codeshare/internal/infrastructure/repositories/memory"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type capturePublisher struct {
	topics   []string
	payloads []interface{}
}

func (p *capturePublisher) Publish(topic string, payload interface{}) error {
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return nil
}

type editorFixture struct {
	engine   *gin.Engine
	pub      *capturePublisher
	lockSvc  ports.LockService
	security ports.SecurityEventService
}

func newEditorFixture(t *testing.T) *editorFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zaptest.NewLogger(t).Sugar()
	lockSvc := services.NewLockService(memory.NewMemoryLockRepository(), logger)
	securitySvc := services.NewSecurityEventService(memory.NewMemorySecurityEventRepository(), logger)
	pub := &capturePublisher{}

	handler := NewEditorHandler(lockSvc, securitySvc, pub, logger)

	engine := gin.New()
	engine.Use(middleware.ErrorHandlerMiddleware(logger))
	handler.SetupRoutes(engine)

	return &editorFixture{engine: engine, pub: pub, lockSvc: lockSvc, security: securitySvc}
}

func (f *editorFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestEditorHandler_LockRequiresOwnership(t *testing.T) {
	f := newEditorFixture(t)

	// Owner id 7 claims snippet 1 via session 10.
	_, err := f.lockSvc.GetOrCreate(context.Background(), 1, 10, 7)
	require.NoError(t, err)

	// Non-owner is refused.
	w := f.do(t, http.MethodPost, "/api/editor/lock", LockRequest{
		SnippetID: "1", SessionID: "10", UserID: "8", Reason: "x",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Owner succeeds.
	w = f.do(t, http.MethodPost, "/api/editor/lock", LockRequest{
		SnippetID: "1", SessionID: "10", UserID: "7", Reason: "review",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var lock domain.EditorLock
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lock))
	assert.True(t, lock.IsLocked)
	assert.Equal(t, "review", lock.LockReason)
}

func TestEditorHandler_LockRejectsNonNumericIDs(t *testing.T) {
	f := newEditorFixture(t)

	w := f.do(t, http.MethodPost, "/api/editor/lock", LockRequest{
		SnippetID: "new-snippet", SessionID: "10", UserID: "7",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEditorHandler_UnlockWithoutPriorLock(t *testing.T) {
	f := newEditorFixture(t)

	_, err := f.lockSvc.GetOrCreate(context.Background(), 1, 10, 7)
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/api/editor/unlock", LockRequest{
		SnippetID: "1", SessionID: "10", UserID: "7",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var lock domain.EditorLock
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lock))
	assert.False(t, lock.IsLocked)
}

func TestEditorHandler_LockStatusDegradesOnBadIDs(t *testing.T) {
	f := newEditorFixture(t)

	for _, query := range []string{
		"?snippetId=new&sessionId=10",
		"?snippetId=1",
		"",
	} {
		w := f.do(t, http.MethodGet, "/api/editor/lock-status"+query, nil)
		require.Equal(t, http.StatusOK, w.Code, query)

		var resp map[string]bool
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp["isLocked"], query)
	}
}

func TestEditorHandler_LockStatusReportsReasonAndTime(t *testing.T) {
	f := newEditorFixture(t)
	ctx := context.Background()

	_, err := f.lockSvc.GetOrCreate(ctx, 1, 10, 7)
	require.NoError(t, err)
	_, err = f.lockSvc.Lock(ctx, 1, 10, "review in progress")
	require.NoError(t, err)

	w := f.do(t, http.MethodGet, "/api/editor/lock-status?snippetId=1&sessionId=10", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["isLocked"])
	assert.Equal(t, "review in progress", resp["reason"])
	assert.NotEmpty(t, resp["lockedAt"])

	// After unlock the status carries no stale reason.
	_, err = f.lockSvc.Unlock(ctx, 1, 10)
	require.NoError(t, err)

	w = f.do(t, http.MethodGet, "/api/editor/lock-status?snippetId=1&sessionId=10", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp = map[string]interface{}{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["isLocked"])
	assert.NotContains(t, resp, "reason")
}

func TestEditorHandler_RecordEventPersistsAndBroadcasts(t *testing.T) {
	f := newEditorFixture(t)

	w := f.do(t, http.MethodPost, "/api/editor/record-event", RecordEventRequest{
		SnippetID: "1", SessionID: "10", UserID: "7",
		Username: "alice", EventType: "COPY_ATTEMPT",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var event domain.SecurityEvent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &event))
	assert.NotZero(t, event.ID)
	assert.Equal(t, domain.EventCopyAttempt, event.EventType)

	require.Len(t, f.pub.topics, 1)
	assert.Equal(t, "/topic/snippet/10/security-events", f.pub.topics[0])
}

func TestEditorHandler_RecordEventBroadcastsWithoutPersistingNonNumericIDs(t *testing.T) {
	f := newEditorFixture(t)

	w := f.do(t, http.MethodPost, "/api/editor/record-event", RecordEventRequest{
		SnippetID: "draft-abc", SessionID: "draft-abc", UserID: "7",
		Username: "alice", EventType: "PASTE_ATTEMPT",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, true, resp["notRecordedToDb"])

	// The owner-topic broadcast still happened, keyed by the raw session id.
	require.Len(t, f.pub.topics, 1)
	assert.Equal(t, "/topic/snippet/draft-abc/security-events", f.pub.topics[0])
}

func TestEditorHandler_RecordEventRejectsUnknownType(t *testing.T) {
	f := newEditorFixture(t)

	w := f.do(t, http.MethodPost, "/api/editor/record-event", RecordEventRequest{
		SnippetID: "1", SessionID: "10", UserID: "7",
		Username: "alice", EventType: "SCREENSHOT_ATTEMPT",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.pub.topics)
}

func TestEditorHandler_NotifyEventLifecycle(t *testing.T) {
	f := newEditorFixture(t)

	event, err := f.security.Record(context.Background(), 1, 10, 7, "alice", "COPY_ATTEMPT")
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/api/editor/notify-event", NotifyEventRequest{EventID: event.ID})
	require.Equal(t, http.StatusOK, w.Code)

	var updated domain.SecurityEvent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.True(t, updated.OwnerNotified)

	// Unknown id is a 404.
	w = f.do(t, http.MethodPost, "/api/editor/notify-event", NotifyEventRequest{EventID: 999})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type wrappingSecurityService struct {
	ports.SecurityEventService
}

func (s wrappingSecurityService) NotifyOwner(ctx context.Context, eventID int64) (*domain.SecurityEvent, error) {
	return nil, fmt.Errorf("load event %d: %w", eventID, domain.ErrSecurityEventNotFound)
}

func TestEditorHandler_NotifyEventMapsWrappedNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t).Sugar()

	handler := NewEditorHandler(
		services.NewLockService(memory.NewMemoryLockRepository(), logger),
		wrappingSecurityService{},
		&capturePublisher{},
		logger,
	)

	engine := gin.New()
	engine.Use(middleware.ErrorHandlerMiddleware(logger))
	handler.SetupRoutes(engine)

	body, err := json.Marshal(NotifyEventRequest{EventID: 5})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, "/api/editor/notify-event", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	// A repository wrapping the sentinel is still a 404, not a 500.
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEditorHandler_UnnotifiedAndAllEvents(t *testing.T) {
	f := newEditorFixture(t)
	ctx := context.Background()

	first, err := f.security.Record(ctx, 1, 10, 7, "alice", "COPY_ATTEMPT")
	require.NoError(t, err)
	_, err = f.security.Record(ctx, 1, 10, 8, "bob", "PASTE_ATTEMPT")
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/api/editor/notify-event", NotifyEventRequest{EventID: first.ID})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/editor/unnotified-events?snippetId=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var unnotified []domain.SecurityEvent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &unnotified))
	assert.Len(t, unnotified, 1)

	w = f.do(t, http.MethodGet, "/api/editor/events?snippetId=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all []domain.SecurityEvent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, 2)

	w = f.do(t, http.MethodGet, "/api/editor/events?snippetId=oops", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
