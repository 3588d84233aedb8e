package store

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb)
}

type sample struct {
	Name string `json:"name"`
}

func TestStorePutGetDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Get(ctx, CollTasks, "missing", &sample{})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, CollTasks, "t1", sample{Name: "foo"}))

	ok, err := s.Exists(ctx, CollTasks, "t1")
	require.NoError(t, err)
	assert.True(t, ok)

	var out sample
	require.NoError(t, s.Get(ctx, CollTasks, "t1", &out))
	assert.Equal(t, "foo", out.Name)

	require.NoError(t, s.Delete(ctx, CollTasks, "t1"))
	ok, err = s.Exists(ctx, CollTasks, "t1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashSetNXUniqueness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok, err := s.HashSetNX(ctx, "queue_name", "orders", "q1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.HashSetNX(ctx, "queue_name", "orders", "q2")
	require.NoError(t, err)
	assert.False(t, ok, "second claim of the same name must fail")

	v, found, err := s.HashGet(ctx, "queue_name", "orders")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "q1", v)
}

func TestZIndexOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ZIndexAdd(ctx, "pending:q1", 10, "low-priority-task"))
	require.NoError(t, s.ZIndexAdd(ctx, "pending:q1", 1, "high-priority-task"))
	require.NoError(t, s.ZIndexAdd(ctx, "pending:q1", 5, "mid-priority-task"))

	members, err := s.ZIndexRange(ctx, "pending:q1", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"high-priority-task", "mid-priority-task", "low-priority-task"}, members)

	card, err := s.ZIndexCard(ctx, "pending:q1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), card)

	require.NoError(t, s.ZIndexRemove(ctx, "pending:q1", "mid-priority-task"))
	members, err = s.ZIndexRange(ctx, "pending:q1", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"high-priority-task", "low-priority-task"}, members)
}

func TestIncrIsGapFree(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seen := make(map[int64]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.Incr(ctx, "events:q1")
			assert.NoError(t, err)
			mu.Lock()
			seen[n] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 20)
	for i := int64(1); i <= 20; i++ {
		assert.True(t, seen[i], "sequence number %d must have been allocated exactly once", i)
	}
}

func TestTransactionSerializesPerQueue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Transaction(ctx, "q1", func(ctx context.Context) error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}
