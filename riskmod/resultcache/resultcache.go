package resultcache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/bluesky-social/postwatch/riskmod/engine"
	"github.com/bluesky-social/postwatch/riskmod/kvstore"
)

var DefaultTTL = 24 * time.Hour

// Last evaluation result per user and detail level, boxed with a fixed TTL.
type Cache struct {
	Store  kvstore.Store
	TTL    time.Duration
	Logger *slog.Logger
}

func New(store kvstore.Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		Store:  store,
		TTL:    DefaultTTL,
		Logger: logger.With("component", "resultcache"),
	}
}

// Cache key for a user and detail level. The two detail levels never share an entry.
func Key(userID string, includeHistory bool) string {
	level := "basic"
	if includeHistory {
		level = "full"
	}
	return fmt.Sprintf("risk-result:%s:%s", userID, level)
}

// Returns the cached result, or nil on a miss. Undecodable entries count as a miss.
func (c *Cache) Get(ctx context.Context, userID string, includeHistory bool) (*engine.EvaluationResult, error) {
	key := Key(userID, includeHistory)
	b, err := c.Store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reading cached result: %w", err)
	}
	if b == nil {
		cacheMisses.Inc()
		return nil, nil
	}
	var res engine.EvaluationResult
	if err := json.Unmarshal(b, &res); err != nil {
		c.Logger.Warn("ignoring undecodable cached result", "key", key, "err", err)
		cacheMisses.Inc()
		return nil, nil
	}
	cacheHits.Inc()
	return &res, nil
}

func (c *Cache) Set(ctx context.Context, userID string, includeHistory bool, res *engine.EvaluationResult) error {
	b, err := json.Marshal(res)
	if err != nil {
		return err
	}
	if err := c.Store.Set(ctx, Key(userID, includeHistory), b, c.TTL); err != nil {
		return fmt.Errorf("writing cached result: %w", err)
	}
	return nil
}
