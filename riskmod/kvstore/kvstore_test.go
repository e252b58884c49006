package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStoreBasics(t *testing.T, s Store) {
	assert := assert.New(t)
	ctx := context.Background()

	v, err := s.Get(ctx, "test/missing")
	assert.NoError(err)
	assert.Nil(v)

	assert.NoError(s.Set(ctx, "test/one", []byte("hello"), time.Minute))
	v, err = s.Get(ctx, "test/one")
	assert.NoError(err)
	assert.Equal([]byte("hello"), v)

	assert.NoError(s.Set(ctx, "test/one", []byte("world"), time.Minute))
	v, err = s.Get(ctx, "test/one")
	assert.NoError(err)
	assert.Equal([]byte("world"), v)
}

func TestMemStoreBasics(t *testing.T) {
	testStoreBasics(t, NewMemStore(100))
}

func TestMemStoreExpiry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemStore(100)
	s.Clock = func() time.Time { return now }

	assert.NoError(s.Set(ctx, "short", []byte("a"), time.Minute))
	assert.NoError(s.Set(ctx, "long", []byte("b"), time.Hour))

	now = now.Add(2 * time.Minute)
	v, err := s.Get(ctx, "short")
	assert.NoError(err)
	assert.Nil(v)

	v, err = s.Get(ctx, "long")
	assert.NoError(err)
	assert.Equal([]byte("b"), v)
}

func TestMemStoreCopies(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := NewMemStore(10)

	buf := []byte("abc")
	assert.NoError(s.Set(ctx, "k", buf, time.Minute))
	buf[0] = 'x'
	v, err := s.Get(ctx, "k")
	assert.NoError(err)
	assert.Equal([]byte("abc"), v)
}

func TestMemcacheExpiration(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(int32(1), memcacheExpiration(0))
	assert.Equal(int32(1), memcacheExpiration(200*time.Millisecond))
	assert.Equal(int32(2), memcacheExpiration(1500*time.Millisecond))
	assert.Equal(int32(3600), memcacheExpiration(time.Hour))
	assert.Equal(int32(maxMemcacheExpiration), memcacheExpiration(90*24*time.Hour))
}

func TestOpen(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	s, err := Open("", 10)
	require.NoError(err)
	_, ok := s.(*MemStore)
	assert.True(ok)

	_, err = Open("ftp://example.com", 10)
	assert.Error(err)
}

func TestRedisStoreBasics(t *testing.T) {
	t.Skip("live test, need redis running locally")

	s, err := NewRedisStore("redis://localhost:6379/0")
	require.NoError(t, err)
	testStoreBasics(t, s)
}

func TestMemcacheStoreBasics(t *testing.T) {
	t.Skip("live test, need memcached running locally")

	s, err := NewMemcacheStore("localhost:11211")
	require.NoError(t, err)
	testStoreBasics(t, s)
}
