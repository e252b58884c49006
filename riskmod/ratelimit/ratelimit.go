package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bluesky-social/postwatch/riskmod/kvstore"
)

// Requests allowed per fixed window for one account tier.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Tier used when an account's tier has no policy of its own.
const DefaultTier = "free"

func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		"free": {Limit: 2, Window: time.Hour},
		"pro":  {Limit: 10, Window: 30 * time.Minute},
	}
}

// Per-user window state, as stored in the key/value store.
type State struct {
	Count   int       `json:"count"`
	ResetAt time.Time `json:"resetAt"`
	Limit   int       `json:"limit"`
}

type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Limit     int
}

// Fixed-window request counter keyed by user.
//
// Consume is a read-then-write against the store and is not atomic: two concurrent requests for the same user may both be allowed.
type Limiter struct {
	Store    kvstore.Store
	Policies map[string]Policy
	Logger   *slog.Logger
	// if nil, time.Now is used
	Clock func() time.Time
}

func NewLimiter(store kvstore.Store, policies map[string]Policy, logger *slog.Logger) *Limiter {
	if policies == nil {
		policies = DefaultPolicies()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		Store:    store,
		Policies: policies,
		Logger:   logger.With("component", "ratelimit"),
	}
}

func (l *Limiter) now() time.Time {
	if l.Clock != nil {
		return l.Clock().UTC()
	}
	return time.Now().UTC()
}

// Returns the policy for a tier, falling back to DefaultTier.
func (l *Limiter) PolicyFor(tier string) (Policy, error) {
	if p, ok := l.Policies[tier]; ok {
		return p, nil
	}
	if p, ok := l.Policies[DefaultTier]; ok {
		return p, nil
	}
	return Policy{}, fmt.Errorf("no rate limit policy for tier %q", tier)
}

func stateKey(userID string) string {
	return "ratelimit:" + userID
}

// Counts one request for the user against the tier's policy.
//
// A rejected request does not touch the stored state; the decision reports the existing window.
func (l *Limiter) Consume(ctx context.Context, userID, tier string) (*Decision, error) {
	policy, err := l.PolicyFor(tier)
	if err != nil {
		return nil, err
	}
	now := l.now()
	key := stateKey(userID)

	prev, err := l.load(ctx, key)
	if err != nil {
		return nil, err
	}

	active := prev != nil && prev.ResetAt.After(now)
	if active && prev.Count >= policy.Limit {
		decisionCount.WithLabelValues(tier, "reject").Inc()
		l.Logger.Info("rate limited", "user", userID, "tier", tier, "count", prev.Count, "resetAt", prev.ResetAt)
		return &Decision{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   prev.ResetAt,
			Limit:     prev.Limit,
		}, nil
	}

	next := State{Count: 1, ResetAt: now.Add(policy.Window), Limit: policy.Limit}
	if active {
		next = State{Count: prev.Count + 1, ResetAt: prev.ResetAt, Limit: policy.Limit}
	}

	b, err := json.Marshal(next)
	if err != nil {
		return nil, err
	}
	if err := l.Store.Set(ctx, key, b, next.ResetAt.Sub(now)); err != nil {
		return nil, fmt.Errorf("saving rate limit state: %w", err)
	}

	decisionCount.WithLabelValues(tier, "allow").Inc()
	return &Decision{
		Allowed:   true,
		Remaining: max(next.Limit-next.Count, 0),
		ResetAt:   next.ResetAt,
		Limit:     next.Limit,
	}, nil
}

func (l *Limiter) load(ctx context.Context, key string) (*State, error) {
	b, err := l.Store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("loading rate limit state: %w", err)
	}
	if b == nil {
		return nil, nil
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		// start a fresh window rather than locking the user out
		l.Logger.Warn("discarding corrupt rate limit state", "key", key, "err", err)
		return nil, nil
	}
	return &st, nil
}

// Parses a policy table like "free=2/3600,pro=10/1800" (tier=limit/window-seconds).
func ParsePolicies(raw string) (map[string]Policy, error) {
	out := make(map[string]Policy)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tier, rule, ok := strings.Cut(part, "=")
		if !ok || tier == "" {
			return nil, fmt.Errorf("invalid tier policy (expected tier=limit/seconds): %q", part)
		}
		limitStr, windowStr, ok := strings.Cut(rule, "/")
		if !ok {
			return nil, fmt.Errorf("invalid tier policy (expected tier=limit/seconds): %q", part)
		}
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return nil, fmt.Errorf("invalid limit for tier %q: %q", tier, limitStr)
		}
		secs, err := strconv.Atoi(windowStr)
		if err != nil || secs < 1 {
			return nil, fmt.Errorf("invalid window for tier %q: %q", tier, windowStr)
		}
		out[tier] = Policy{Limit: limit, Window: time.Duration(secs) * time.Second}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty tier policy table")
	}
	return out, nil
}
