package collab

import (
	"testing"

	"codeshare/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestSessionTopics(t *testing.T) {
	topics := SessionTopics("42")
	assert.Len(t, topics, 7)
	assert.Contains(t, topics, "/topic/snippet/42/presence")
	assert.Contains(t, topics, "/topic/snippet/42/code")
	assert.Contains(t, topics, "/topic/snippet/42/typing")
	assert.Contains(t, topics, "/topic/snippet/42/users")
	assert.Contains(t, topics, "/topic/snippet/42/metadata")
	assert.Contains(t, topics, "/topic/snippet/42/sync")
	assert.Contains(t, topics, "/topic/snippet/42/security-events")
}

func TestTopicConcern(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"/topic/snippet/42/presence", "presence"},
		{"/topic/snippet/42/security-events", "security-events"},
		{"/queue/other", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TopicConcern(tt.topic), tt.topic)
	}
}

func TestNewSecurityNotificationMessage(t *testing.T) {
	n := NewSecurityNotification("42", "alice", domain.EventCopyAttempt, 1234)

	assert.Equal(t, "SECURITY_EVENT", n.Type)
	assert.Equal(t, "COPY_ATTEMPT", n.EventType)
	assert.Equal(t, "alice attempted copy attempt", n.Message)
	assert.Equal(t, "42", n.SnippetID)
	assert.EqualValues(t, 1234, n.Timestamp)
}
