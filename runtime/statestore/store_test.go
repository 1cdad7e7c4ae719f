package statestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domini04/bluestar/runtime/types"
	"github.com/domini04/bluestar/runtime/workflow"
)

const testSHA = "e64997b24625a4e90c39d019d4fd25a37a4b3185"

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func checkpoint(id string, status workflow.Status, offset time.Duration) *workflow.Checkpoint {
	s := workflow.NewState("octo/widgets", testSHA, "Keep it short", 3)
	s.RunID = id
	s.Iteration = 1
	s.Document = &types.Document{Title: "Faster Lookups", Body: []types.ContentBlock{types.Paragraph("x")}}
	s.AddDiagnostic("first")
	awaiting := ""
	if status == workflow.StatusAwaitingInput {
		awaiting = workflow.NodeReview
	}
	return &workflow.Checkpoint{
		RunID:     id,
		Status:    status,
		Awaiting:  awaiting,
		State:     s,
		Machine:   workflow.NewContext(workflow.NodeReview, baseTime),
		UpdatedAt: baseTime.Add(offset),
	}
}

func setupRedisStore(t *testing.T, opts ...RedisOption) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStore(client, opts...), mr
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	redisStore, _ := setupRedisStore(t)
	sqlStore, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlStore.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  redisStore,
		"sqlite": sqlStore,
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cp := checkpoint("run-1", workflow.StatusAwaitingInput, 0)
			require.NoError(t, store.Save(ctx, cp))

			// Mutating the saved value must not leak into the store.
			cp.State.Iteration = 99

			loaded, err := store.Load(ctx, "run-1")
			require.NoError(t, err)
			assert.Equal(t, workflow.StatusAwaitingInput, loaded.Status)
			assert.Equal(t, workflow.NodeReview, loaded.Awaiting)
			assert.Equal(t, 1, loaded.State.Iteration)
			assert.Equal(t, "Keep it short", loaded.State.Instructions)
			assert.Equal(t, "Faster Lookups", loaded.State.Document.Title)
			assert.Equal(t, []string{"first"}, loaded.State.Errors)
			assert.Equal(t, workflow.NodeReview, loaded.Machine.Current)
			assert.True(t, baseTime.Equal(loaded.UpdatedAt))

			cp = checkpoint("run-1", workflow.StatusCompleted, time.Minute)
			require.NoError(t, store.Save(ctx, cp))
			loaded, err = store.Load(ctx, "run-1")
			require.NoError(t, err)
			assert.Equal(t, workflow.StatusCompleted, loaded.Status)
		})
	}
}

func TestStore_Errors(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := store.Load(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = store.Load(ctx, "")
			assert.ErrorIs(t, err, ErrInvalidID)

			assert.ErrorIs(t, store.Save(ctx, nil), ErrInvalidCheckpoint)
			assert.ErrorIs(t, store.Save(ctx, &workflow.Checkpoint{RunID: "x"}), ErrInvalidCheckpoint)
			cp := checkpoint("", workflow.StatusCompleted, 0)
			assert.ErrorIs(t, store.Save(ctx, cp), ErrInvalidID)

			assert.ErrorIs(t, store.Delete(ctx, "missing"), ErrNotFound)
		})
	}
}

func TestStore_ListAndDelete(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Save(ctx, checkpoint("a", workflow.StatusCompleted, 1*time.Minute)))
			require.NoError(t, store.Save(ctx, checkpoint("b", workflow.StatusAwaitingInput, 3*time.Minute)))
			require.NoError(t, store.Save(ctx, checkpoint("c", workflow.StatusHalted, 2*time.Minute)))

			all, err := store.List(ctx, ListOptions{})
			require.NoError(t, err)
			ids := make([]string, len(all))
			for i, s := range all {
				ids[i] = s.RunID
			}
			assert.Equal(t, []string{"b", "c", "a"}, ids)
			assert.Equal(t, "octo/widgets", all[0].Repo)
			assert.Equal(t, testSHA, all[0].Commit)
			assert.Equal(t, 1, all[0].Iteration)

			waiting, err := store.List(ctx, ListOptions{Status: workflow.StatusAwaitingInput})
			require.NoError(t, err)
			require.Len(t, waiting, 1)
			assert.Equal(t, "b", waiting[0].RunID)

			page, err := store.List(ctx, ListOptions{Limit: 1, Offset: 1})
			require.NoError(t, err)
			require.Len(t, page, 1)
			assert.Equal(t, "c", page[0].RunID)

			require.NoError(t, store.Delete(ctx, "b"))
			_, err = store.Load(ctx, "b")
			assert.ErrorIs(t, err, ErrNotFound)
			all, err = store.List(ctx, ListOptions{})
			require.NoError(t, err)
			assert.Len(t, all, 2)
		})
	}
}

func TestRedisStore_TTLAndPrune(t *testing.T) {
	store, mr := setupRedisStore(t, WithTTL(time.Hour), WithPrefix("test"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, checkpoint("run-1", workflow.StatusAwaitingInput, 0)))
	assert.True(t, mr.Exists("test:run:run-1"))
	assert.Equal(t, time.Hour, mr.TTL("test:run:run-1"))

	mr.FastForward(2 * time.Hour)
	_, err := store.Load(ctx, "run-1")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := store.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list)
	members, err := mr.ZMembers("test:runs")
	if err == nil {
		assert.Empty(t, members, "expired runs are pruned from the index")
	}
}

func TestSQLStore_Rebind(t *testing.T) {
	s := &SQLStore{dialect: DialectPostgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", s.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))
	s.dialect = DialectSQLite
	assert.Equal(t, "x = ?", s.rebind("x = ?"))
}

func TestSQLStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	s1, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s1.Save(ctx, checkpoint("run-1", workflow.StatusAwaitingInput, 0)))
	require.NoError(t, s1.Close())

	s2, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s2.Close()
	cp, err := s2.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusAwaitingInput, cp.Status)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	mr := miniredis.RunT(t)
	s, err = Open(ctx, BackendRedis, "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, s)
	require.NoError(t, s.Close())

	s, err = Open(ctx, BackendSQLite, filepath.Join(t.TempDir(), "nested", "runs.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, BackendPostgres, "")
	assert.Error(t, err)
	_, err = Open(ctx, "etcd", "")
	assert.ErrorContains(t, err, "unknown store backend")
}
