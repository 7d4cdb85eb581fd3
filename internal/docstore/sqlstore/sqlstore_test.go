package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/tourney/internal/database"
	"github.com/DoyleJ11/tourney/internal/docstore"
	"github.com/DoyleJ11/tourney/internal/migrations"
)

func newStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	db, err := database.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(db))
	s := New(db, opts...)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_CreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	doc, err := s.Create(ctx, map[string]any{
		"status":  "waiting",
		"players": map[string]any{"host": map[string]any{"score": 0}},
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.Data[docstore.IDField])
	assert.Equal(t, "waiting", got.Status())
	assert.True(t, doc.CreatedAt.Equal(got.CreatedAt))

	updated, err := s.Update(ctx, doc.ID, func(cur docstore.Document) ([]docstore.FieldUpdate, error) {
		return []docstore.FieldUpdate{
			docstore.Set(docstore.P("players", "host", "score"), 975),
			docstore.Set(docstore.P("status"), "playing"),
		}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Revision)

	got, err = s.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "playing", got.Status())
	host := got.Data["players"].(map[string]any)["host"].(map[string]any)
	assert.Equal(t, float64(975), host["score"])

	// status column follows the document
	waiting, err := s.ListByStatus(ctx, "waiting", 20)
	require.NoError(t, err)
	assert.Empty(t, waiting)

	_, err = s.Get(ctx, "nope")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	_, err = s.Update(ctx, "nope", func(docstore.Document) ([]docstore.FieldUpdate, error) { return nil, nil })
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestStore_ListByStatus(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s := newStore(t, WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}))

	var ids []string
	for i := 0; i < 22; i++ {
		doc, err := s.Create(ctx, map[string]any{"status": "waiting"})
		require.NoError(t, err)
		ids = append(ids, doc.ID)
	}

	docs, err := s.ListByStatus(ctx, "waiting", 20)
	require.NoError(t, err)
	require.Len(t, docs, 20)
	assert.Equal(t, ids[21], docs[0].ID)
	assert.Equal(t, ids[2], docs[19].ID)
}

func TestStore_Subscribe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s := newStore(t)

	doc, err := s.Create(ctx, map[string]any{"status": "waiting"})
	require.NoError(t, err)

	sub, err := s.Subscribe(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), (<-sub.C).Revision)

	_, err = s.Update(ctx, doc.ID, func(docstore.Document) ([]docstore.FieldUpdate, error) {
		return []docstore.FieldUpdate{docstore.Set(docstore.P("status"), "playing")}, nil
	})
	require.NoError(t, err)

	got := <-sub.C
	assert.Equal(t, "playing", got.Status())
	assert.NoError(t, s.Check(ctx))
}
