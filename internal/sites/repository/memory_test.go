package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecraft/sitecraft-backend/internal/sites/domain"
)

func TestMemoryStore_SubdomainIsUnique(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	a, err := m.Create(ctx, &domain.Site{UserID: "u", Name: "A"})
	require.NoError(t, err)
	b, err := m.Create(ctx, &domain.Site{UserID: "u", Name: "B"})
	require.NoError(t, err)

	at := time.Now()
	require.NoError(t, m.MarkPublished(ctx, a.ID, "luna", "<a>", at))
	assert.ErrorIs(t, m.MarkPublished(ctx, b.ID, "luna", "<b>", at), domain.ErrSubdomainTaken)
	require.NoError(t, m.MarkPublished(ctx, a.ID, "luna", "<a2>", at), "holder may republish")

	require.NoError(t, m.MarkUnpublished(ctx, a.ID, at))
	require.NoError(t, m.MarkPublished(ctx, b.ID, "luna", "<b>", at))

	holder, err := m.FindBySubdomain(ctx, "luna")
	require.NoError(t, err)
	assert.Equal(t, b.ID, holder.ID)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	s, err := m.Create(ctx, &domain.Site{UserID: "u", Name: "A", EditorData: json.RawMessage(`{}`)})
	require.NoError(t, err)

	s.Name = "changed"
	s.EditorData[0] = '['

	got, err := m.GetByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.Name)
	assert.Equal(t, `{}`, string(got.EditorData))
}

func TestMemoryStore_OwnershipAndOrder(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemoryStore().WithClock(func() time.Time { clock = clock.Add(time.Minute); return clock })

	first, _ := m.Create(ctx, &domain.Site{UserID: "u", Name: "first"})
	second, _ := m.Create(ctx, &domain.Site{UserID: "u", Name: "second"})
	_, _ = m.Create(ctx, &domain.Site{UserID: "other", Name: "foreign"})

	_, err := m.Rename(ctx, "u", first.ID, "first renamed")
	require.NoError(t, err)

	list, err := m.ListByUser(ctx, "u")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)

	_, err = m.GetForUser(ctx, "other", first.ID)
	assert.ErrorIs(t, err, domain.ErrSiteNotFound)

	ok, err := m.Delete(ctx, "other", first.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
