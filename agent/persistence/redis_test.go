package persistence

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, clock *fakeClock) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, WithClock(clock.Now), WithKeyPrefix("test:")), mr
}

func TestRedisStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T, clock *fakeClock) Store {
		s, _ := newRedisStore(t, clock)
		return s
	})
}

func TestRedisStore_KeyLayout(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t, newFakeClock())

	require.NoError(t, s.Put(ctx, rec("todo", "u:1", "t1", "x", `{}`)))

	assert.True(t, mr.Exists("test:rec:todo:u%3A1:t1:x"))
	members, err := mr.ZMembers("test:idx:todo:u%3A1:t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, members)
}

func TestRedisStore_ListPrunesStaleIndex(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t, newFakeClock())

	require.NoError(t, s.Put(ctx, rec("todo", "u1", "t1", "a", `{}`)))
	require.NoError(t, s.Put(ctx, rec("todo", "u1", "t1", "b", `{}`)))
	mr.Del("test:rec:todo:u1:t1:a")

	list, err := s.List(ctx, Query{Collection: "todo", UserID: "u1", ThreadID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(list))

	members, err := mr.ZMembers("test:idx:todo:u1:t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, members)
}

func TestRedisStore_ConnectionError(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t, newFakeClock())
	mr.Close()

	assert.Error(t, s.Ping(ctx))
	assert.Error(t, s.Put(ctx, rec("todo", "u1", "t1", "a", `{}`)))
}

func TestDialRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := DialRedisStore(context.Background(), RedisConfig{Addr: mr.Addr(), KeyPrefix: "dial:"})
	require.NoError(t, err)

	require.NoError(t, s.Put(context.Background(), rec("memory", "u1", "", "u1", `{}`)))
	assert.True(t, mr.Exists("dial:rec:memory:u1::u1"))
	require.NoError(t, s.Close())
}
