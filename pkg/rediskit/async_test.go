package rediskit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leafsii/rediskit/pkg/lifetime"
	"github.com/leafsii/rediskit/pkg/partition"
)

func TestAsyncMatchesSync(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	a := c.Async()
	assert.Same(t, c, a.Client())

	ok, err := a.StringSet(ctx, "k", "hello", partition.DB0).Await(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := StringGetAsync[string](ctx, c, "k", partition.DB0).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	old, err := StringSetAndGetAsync[string](ctx, c, "k", "bye", partition.DB0).Wait()
	require.NoError(t, err)
	assert.Equal(t, "hello", old)

	absent, err := StringGetAsync[string](ctx, c, "missing", partition.DB0).Await(ctx)
	require.NoError(t, err)
	assert.Empty(t, absent)

	ok, err = a.KeyExpire(ctx, "k", 10*time.Second, partition.DB0).Await(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ttl, err := a.KeyTimeToLive(ctx, "k", partition.DB0).Await(ctx)
	require.NoError(t, err)
	require.NotNil(t, ttl)
	assert.LessOrEqual(t, *ttl, 10*time.Second)

	at, err := a.KeyExpireTime(ctx, "k", partition.DB0).Await(ctx)
	require.NoError(t, err)
	require.NotNil(t, at)

	exists, err := a.KeyExists(ctx, "k", partition.DB0).Await(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	copied, err := a.KeyCopy(ctx, "k", "k2", partition.DB0, partition.DB1).Await(ctx)
	require.NoError(t, err)
	assert.True(t, copied)

	moved, err := a.KeyMove(ctx, partition.DB1, partition.DB0, "k2").Await(ctx)
	require.NoError(t, err)
	assert.True(t, moved)

	deleted, err := a.KeyDelete(ctx, "k2", partition.DB0).Await(ctx)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = a.HashSet(ctx, "h", map[string]any{"n": 3}, partition.DB0).Await(ctx)
	require.NoError(t, err)

	n, err := HashGetAsAsync[int](ctx, c, "h", "n", partition.DB0).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	all, err := a.HashGetAll(ctx, "h", partition.DB0).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"n": "3"}, all)

	typed, err := HashGetAllAsAsync[map[string]int](ctx, c, "h", partition.DB0).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"n": 3}, typed)

	hlen, err := a.HashLength(ctx, "h", partition.DB0).Await(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, hlen)

	added, err := a.SetAdd(ctx, "s", "m", partition.DB0).Await(ctx)
	require.NoError(t, err)
	assert.True(t, added)

	members, err := a.SetMembers(ctx, "s", partition.DB0).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{`"m"`}, members)

	slen, err := a.SetLength(ctx, "s", partition.DB0).Await(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, slen)

	moved, err = a.SetMove(ctx, "s", "t", "m", partition.DB0).Await(ctx)
	require.NoError(t, err)
	assert.True(t, moved)

	popped, err := a.SetPop(ctx, "t", partition.DB0).Await(ctx)
	require.NoError(t, err)
	require.NotNil(t, popped)
	assert.Equal(t, `"m"`, *popped)

	popped, err = a.SetPop(ctx, "t", partition.DB0).Await(ctx)
	require.NoError(t, err)
	assert.Nil(t, popped)
}

func TestAsyncPreparationFailuresAreImmediate(t *testing.T) {
	ctx := context.Background()
	c, conn := newTestClient(t)
	c.SetLifetimes(lifetime.Table{})

	f := c.Async().StringSet(ctx, "k", "v", partition.DB0)
	select {
	case <-f.Done():
	default:
		t.Fatal("expected an already resolved future")
	}
	_, err := f.Wait()
	assert.ErrorIs(t, err, ErrUnknownPartition)

	_, err = c.Async().SetAdd(ctx, "s", make(chan int), partition.DB0).Wait()
	assert.ErrorIs(t, err, ErrSerialization)

	// Nothing reached the store
	assert.Zero(t, conn.commands.Load())

	require.NoError(t, c.Close())
	_, err = c.Async().KeyExists(ctx, "k", partition.DB0).Wait()
	assert.ErrorIs(t, err, ErrConnectionUnavailable)
}

func TestAsyncPropagatesContext(t *testing.T) {
	c, _ := newTestClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Async().StringSet(ctx, "k", "v", partition.DB0).Await(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}
