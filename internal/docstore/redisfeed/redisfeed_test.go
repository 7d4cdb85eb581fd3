package redisfeed

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/tourney/internal/docstore"
	"github.com/DoyleJ11/tourney/internal/docstore/memstore"
)

func openFeed(t *testing.T) *Feed {
	t.Helper()
	url := os.Getenv("TOURNEY_TEST_REDIS_URL")
	if url == "" {
		t.Skip("TOURNEY_TEST_REDIS_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb, err := Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, WithPrefix("tourney-test:"+uuid.NewString()+":"))
}

func TestFeed_NotifyListen(t *testing.T) {
	f := openFeed(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := f.Listen(ctx, "doc")
	require.NoError(t, err)

	require.NoError(t, f.Notify(ctx, "doc"))
	select {
	case <-ch:
	case <-ctx.Done():
		t.Fatal("no signal received")
	}
	assert.NoError(t, f.Check(ctx))
}

func TestFeed_DrivesStoreSubscriptions(t *testing.T) {
	f := openFeed(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s := memstore.New(memstore.WithNotifier(f))
	doc, err := s.Create(ctx, map[string]any{"status": "waiting"})
	require.NoError(t, err)

	sub, err := s.Subscribe(ctx, doc.ID)
	require.NoError(t, err)
	<-sub.C

	_, err = s.Update(ctx, doc.ID, func(docstore.Document) ([]docstore.FieldUpdate, error) {
		return []docstore.FieldUpdate{docstore.Set(docstore.P("status"), "playing")}, nil
	})
	require.NoError(t, err)

	select {
	case got := <-sub.C:
		assert.Equal(t, "playing", got.Status())
	case <-ctx.Done():
		t.Fatal("subscription did not see the update")
	}
}
