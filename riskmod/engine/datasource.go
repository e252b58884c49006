package engine

import (
	"context"
	"time"
)

// Read and snapshot-write access to a user's posting history. Implementations are expected to do network or database I/O.
type DataSource interface {
	// pending posts scheduled at or after "now", ascending by scheduled time
	GetUpcomingScheduledPosts(ctx context.Context, userID string, now time.Time) ([]ScheduledPost, error)
	// outcomes since the given time, ascending by occurrence
	GetRecentOutcomes(ctx context.Context, userID string, since time.Time) ([]Outcome, error)
	GetRecentFlags(ctx context.Context, userID string, since time.Time) ([]Flag, error)
	// stored rule payloads for the given (normalized) destinations
	GetRuleSets(ctx context.Context, destinations []string) ([]RawRuleSet, error)
	// must be idempotent per user, UTC day, and metric type: repeat saves on the same day overwrite
	SaveSnapshot(ctx context.Context, snap Snapshot) error
}
