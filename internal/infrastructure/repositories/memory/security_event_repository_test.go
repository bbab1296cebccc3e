package memory

import (
	"context"
	"testing"

	"codeshare/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySecurityEventRepository_FindByID(t *testing.T) {
	repo := NewMemorySecurityEventRepository()
	ctx := context.Background()

	_, err := repo.FindByID(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrSecurityEventNotFound)

	event := &domain.SecurityEvent{SnippetID: 1, EventType: domain.EventCopyAttempt}
	require.NoError(t, repo.Save(ctx, event))
	require.NotZero(t, event.ID)

	found, err := repo.FindByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EventCopyAttempt, found.EventType)
}

func TestMemorySecurityEventRepository_SnippetQueriesOrderedByID(t *testing.T) {
	repo := NewMemorySecurityEventRepository()
	ctx := context.Background()

	for _, e := range []*domain.SecurityEvent{
		{SnippetID: 1, EventType: domain.EventCopyAttempt},
		{SnippetID: 1, EventType: domain.EventPasteAttempt, OwnerNotified: true},
		{SnippetID: 2, EventType: domain.EventContextMenuAttempt},
	} {
		require.NoError(t, repo.Save(ctx, e))
	}

	all, err := repo.FindBySnippet(ctx, 1)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Less(t, all[0].ID, all[1].ID)

	unnotified, err := repo.FindUnnotifiedBySnippet(ctx, 1)
	require.NoError(t, err)
	require.Len(t, unnotified, 1)
	assert.Equal(t, domain.EventCopyAttempt, unnotified[0].EventType)

	empty, err := repo.FindBySnippet(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
