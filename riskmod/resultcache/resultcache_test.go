package resultcache

import (
	"context"
	"testing"
	"time"

	"github.com/bluesky-social/postwatch/riskmod/engine"
	"github.com/bluesky-social/postwatch/riskmod/kvstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRoundTrip(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	c := New(kvstore.NewMemStore(10), nil)
	res := &engine.EvaluationResult{
		GeneratedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Warnings: []engine.Warning{
			{ID: "rule:example:promo", Type: engine.WarningRule, Severity: engine.SeverityHigh, Destination: "example",
				Title: "Promotional links restricted", Metadata: &engine.WarningMetadata{RuleRef: "promo"}},
		},
		Stats: engine.EvaluationStats{UpcomingPosts: 1, FlaggedDestinations: 1},
	}

	got, err := c.Get(ctx, "user-1", false)
	require.NoError(err)
	assert.Nil(got)

	require.NoError(c.Set(ctx, "user-1", false, res))
	got, err = c.Get(ctx, "user-1", false)
	require.NoError(err)
	assert.Equal(res, got)

	// detail levels are cached separately
	got, err = c.Get(ctx, "user-1", true)
	require.NoError(err)
	assert.Nil(got)
}

func TestCacheCorruptEntry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	store := kvstore.NewMemStore(10)
	c := New(store, nil)
	assert.NoError(store.Set(ctx, Key("user-1", true), []byte(`{"warnings": [{"severity": "extreme"}]}`), time.Hour))

	got, err := c.Get(ctx, "user-1", true)
	assert.NoError(err)
	assert.Nil(got)
}

func TestCacheExpiry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := kvstore.NewMemStore(10)
	store.Clock = func() time.Time { return now }
	c := New(store, nil)

	assert.NoError(c.Set(ctx, "user-1", false, &engine.EvaluationResult{GeneratedAt: now, Warnings: []engine.Warning{}}))
	now = now.Add(23 * time.Hour)
	got, err := c.Get(ctx, "user-1", false)
	assert.NoError(err)
	assert.NotNil(got)

	now = now.Add(2 * time.Hour)
	got, err = c.Get(ctx, "user-1", false)
	assert.NoError(err)
	assert.Nil(got)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "risk-result:user-1:full", Key("user-1", true))
	assert.Equal(t, "risk-result:user-1:basic", Key("user-1", false))
}
