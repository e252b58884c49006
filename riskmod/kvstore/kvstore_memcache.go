package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// memcached treats expirations beyond 30 days as absolute unix timestamps
const maxMemcacheExpiration = (30 * 24 * 60 * 60) - 60

type MemcacheStore struct {
	Client *memcache.Client
}

var _ Store = (*MemcacheStore)(nil)

func NewMemcacheStore(servers ...string) (*MemcacheStore, error) {
	if len(servers) == 0 || servers[0] == "" {
		return nil, fmt.Errorf("no memcached servers configured")
	}
	client := memcache.New(servers...)
	if err := client.Ping(); err != nil {
		return nil, err
	}
	return &MemcacheStore{
		Client: client,
	}, nil
}

func memcacheExpiration(ttl time.Duration) int32 {
	secs := int64(ttl / time.Second)
	if ttl%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	if secs > maxMemcacheExpiration {
		secs = maxMemcacheExpiration
	}
	return int32(secs)
}

// The memcache client has no context support; ctx is accepted for interface compatibility only.
func (s *MemcacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	item, err := s.Client.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return item.Value, nil
}

func (s *MemcacheStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return s.Client.Set(&memcache.Item{
		Key:        key,
		Value:      val,
		Expiration: memcacheExpiration(ttl),
	})
}
