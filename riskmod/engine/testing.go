package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// In-process DataSource, for tests and local development. Intentionally exported, for use in other packages.
//
// Destinations on stored rule sets are matched after normalization, the same way a real backend would store them.
type MemDataSource struct {
	mu        sync.Mutex
	Posts     map[string][]ScheduledPost
	Outcomes  map[string][]Outcome
	Flags     map[string][]Flag
	RuleSets  map[string][]byte
	Snapshots map[string]Snapshot

	// if set, returned from the corresponding method
	PostsErr    error
	OutcomesErr error
	FlagsErr    error
	RuleSetsErr error
	SnapshotErr error

	// number of GetRuleSets calls, and the destinations last requested
	RuleSetCalls       int
	LastRuleSetRequest []string
	SnapshotWriteCount int
}

var _ DataSource = (*MemDataSource)(nil)

func NewMemDataSource() *MemDataSource {
	return &MemDataSource{
		Posts:     make(map[string][]ScheduledPost),
		Outcomes:  make(map[string][]Outcome),
		Flags:     make(map[string][]Flag),
		RuleSets:  make(map[string][]byte),
		Snapshots: make(map[string]Snapshot),
	}
}

func (s *MemDataSource) GetUpcomingScheduledPosts(ctx context.Context, userID string, now time.Time) ([]ScheduledPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PostsErr != nil {
		return nil, s.PostsErr
	}
	out := []ScheduledPost{}
	for _, p := range s.Posts[userID] {
		if !p.ScheduledFor.Before(now) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ScheduledFor.Before(out[j].ScheduledFor) })
	return out, nil
}

func (s *MemDataSource) GetRecentOutcomes(ctx context.Context, userID string, since time.Time) ([]Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.OutcomesErr != nil {
		return nil, s.OutcomesErr
	}
	out := []Outcome{}
	for _, o := range s.Outcomes[userID] {
		if !o.OccurredAt.Before(since) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func (s *MemDataSource) GetRecentFlags(ctx context.Context, userID string, since time.Time) ([]Flag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FlagsErr != nil {
		return nil, s.FlagsErr
	}
	out := []Flag{}
	for _, f := range s.Flags[userID] {
		if !f.CreatedAt.Before(since) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *MemDataSource) GetRuleSets(ctx context.Context, destinations []string) ([]RawRuleSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RuleSetCalls++
	s.LastRuleSetRequest = append([]string{}, destinations...)
	if s.RuleSetsErr != nil {
		return nil, s.RuleSetsErr
	}
	want := make(map[string]bool, len(destinations))
	for _, d := range destinations {
		want[d] = true
	}
	out := []RawRuleSet{}
	for name, payload := range s.RuleSets {
		if want[NormalizeDestination(name)] {
			out = append(out, RawRuleSet{Destination: name, Payload: payload})
		}
	}
	return out, nil
}

func (s *MemDataSource) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SnapshotErr != nil {
		return s.SnapshotErr
	}
	s.SnapshotWriteCount++
	s.Snapshots[snapshotKey(snap.UserID, snap.GeneratedAt)] = snap
	return nil
}

// Returns the snapshot stored for the user on the UTC day of "at", if any.
func (s *MemDataSource) Snapshot(userID string, at time.Time) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.Snapshots[snapshotKey(userID, at)]
	return snap, ok
}

func snapshotKey(userID string, at time.Time) string {
	return userID + "/" + at.UTC().Format(time.DateOnly) + "/risk"
}

// Builds an engine around a MemDataSource with a fixed clock and the given analyzers.
func EngineTestFixture(src *MemDataSource, now time.Time, analyzers ...AnalyzerFunc) Engine {
	return Engine{
		Logger:    slog.Default(),
		Source:    src,
		Analyzers: analyzers,
		Clock:     func() time.Time { return now },
	}
}
