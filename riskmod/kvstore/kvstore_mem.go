package kvstore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memEntry struct {
	val       []byte
	expiresAt time.Time
}

// In-process store. Each entry carries its own expiry; the LRU bounds total size.
type MemStore struct {
	Data *expirable.LRU[string, memEntry]
	// if nil, time.Now is used
	Clock func() time.Time
}

var _ Store = (*MemStore)(nil)

func NewMemStore(capacity int) *MemStore {
	return &MemStore{
		// zero TTL: entries only age out through their own expiresAt, or LRU eviction
		Data: expirable.NewLRU[string, memEntry](capacity, nil, 0),
	}
}

func (s *MemStore) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func (s *MemStore) Get(ctx context.Context, key string) ([]byte, error) {
	e, ok := s.Data.Get(key)
	if !ok {
		return nil, nil
	}
	if !e.expiresAt.After(s.now()) {
		s.Data.Remove(key)
		return nil, nil
	}
	out := make([]byte, len(e.val))
	copy(out, e.val)
	return out, nil
}

func (s *MemStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	buf := make([]byte, len(val))
	copy(buf, val)
	s.Data.Add(key, memEntry{val: buf, expiresAt: s.now().Add(ttl)})
	return nil
}
