package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tourney/internal/config"
	"github.com/DoyleJ11/tourney/internal/docstore/memstore"
	"github.com/DoyleJ11/tourney/internal/docstore/sqlstore"
	"github.com/DoyleJ11/tourney/internal/replicated"
	"github.com/DoyleJ11/tourney/internal/tournament"
)

func TestOpen_Memory(t *testing.T) {
	b, err := Open(context.Background(), &config.Config{StoreDriver: config.StoreMemory}, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer b.Close()

	assert.IsType(t, &memstore.Store{}, b.Store)
	assert.Contains(t, b.Checks, "store")
	assert.NotContains(t, b.Checks, "redis")
}

func TestOpen_SQLiteCreatesDirectory(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "tournaments.db")

	b, err := Open(ctx, &config.Config{StoreDriver: config.StoreSQLite, SQLitePath: path}, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.IsType(t, &sqlstore.Store{}, b.Store)
	require.NoError(t, b.Checks["store"].Check(ctx))

	c := replicated.NewClient(b.Store)
	s, err := c.Create(ctx, "ana", tournament.GameMatch, []tournament.Question{{ID: "q1", Text: "uno"}})
	require.NoError(t, err)
	require.NoError(t, b.Close())

	// Reopening runs the migrations again and finds the document.
	b, err = Open(ctx, &config.Config{StoreDriver: config.StoreSQLite, SQLitePath: path}, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer b.Close()
	got, err := replicated.NewClient(b.Store).Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana", got.CreatorID)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{StoreDriver: "etcd"}, zap.NewNop().Sugar())
	assert.ErrorContains(t, err, "unknown store driver")
}
