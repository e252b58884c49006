package kvstore

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Values are opaque bytes. Get returns nil (and no error) when the key is missing or expired.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// Picks a backend by URL scheme: "redis://" and "rediss://" for redis, "memcache://host:port[,host:port]" for memcached, and empty for in-process memory.
func Open(url string, memCapacity int) (Store, error) {
	switch {
	case url == "":
		return NewMemStore(memCapacity), nil
	case strings.HasPrefix(url, "redis://"), strings.HasPrefix(url, "rediss://"):
		s, err := NewRedisStore(url)
		if err != nil {
			return nil, fmt.Errorf("initializing redis store: %w", err)
		}
		return s, nil
	case strings.HasPrefix(url, "memcache://"):
		servers := strings.Split(strings.TrimPrefix(url, "memcache://"), ",")
		s, err := NewMemcacheStore(servers...)
		if err != nil {
			return nil, fmt.Errorf("initializing memcached store: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unsupported key/value store URL: %s", url)
}
