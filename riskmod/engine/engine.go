package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/bluesky-social/postwatch/riskmod/ruleset"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var (
	// how far back outcomes and flags are considered for a normal evaluation
	LookbackDefault = 30 * 24 * time.Hour
	// same, when the caller asks for extended history
	LookbackHistory = 90 * 24 * time.Hour
)

// Runtime for evaluating posting risk for a user: fetches inputs, runs analyzers, merges their warnings, and persists a snapshot.
//
// The engine holds no per-user state; all state lives behind the DataSource.
type Engine struct {
	Logger    *slog.Logger
	Source    DataSource
	Analyzers []AnalyzerFunc
	// if nil, time.Now is used
	Clock func() time.Time
}

func (eng *Engine) now() time.Time {
	if eng.Clock != nil {
		return eng.Clock().UTC()
	}
	return time.Now().UTC()
}

// Evaluates current posting risk for a user.
//
// Any upstream failure aborts the whole evaluation: no partial result is returned and no snapshot is written.
func (eng *Engine) Evaluate(ctx context.Context, userID string, includeHistory bool) (*EvaluationResult, error) {
	ctx, span := tracer.Start(ctx, "Evaluate")
	defer span.End()
	span.SetAttributes(attribute.String("user", userID), attribute.Bool("history", includeHistory))

	start := time.Now()
	defer func() {
		evaluationDuration.Observe(time.Since(start).Seconds())
	}()
	evaluationCount.WithLabelValues(strconv.FormatBool(includeHistory)).Inc()

	now := eng.now()
	lookback := LookbackDefault
	if includeHistory {
		lookback = LookbackHistory
	}

	in, err := eng.fetchInputs(ctx, userID, now, now.Add(-lookback))
	if err != nil {
		evaluationErrorCount.WithLabelValues("fetch").Inc()
		return nil, err
	}

	in.RuleSets, err = eng.fetchRuleSets(ctx, ruleDestinations(in))
	if err != nil {
		evaluationErrorCount.WithLabelValues("rulesets").Inc()
		return nil, err
	}

	warnings := []Warning{}
	for _, f := range eng.Analyzers {
		warnings = append(warnings, f(in)...)
	}
	merged := MergeWarnings(warnings)
	SortWarnings(merged)

	res := &EvaluationResult{
		GeneratedAt: now,
		Warnings:    merged,
		Stats:       ComputeStats(merged, len(in.Posts)),
	}

	err = eng.Source.SaveSnapshot(ctx, Snapshot{
		UserID:      userID,
		GeneratedAt: res.GeneratedAt,
		Warnings:    res.Warnings,
		Stats:       res.Stats,
	})
	if err != nil {
		evaluationErrorCount.WithLabelValues("snapshot").Inc()
		return nil, fmt.Errorf("persisting risk snapshot: %w", err)
	}

	for _, w := range res.Warnings {
		warningCount.WithLabelValues(string(w.Type), w.Severity.String()).Inc()
	}
	eng.canonicalLogLine(userID, includeHistory, res, time.Since(start))
	return res, nil
}

// fetches the three independent inputs concurrently, and normalizes destinations on the results
func (eng *Engine) fetchInputs(ctx context.Context, userID string, now, since time.Time) (*Inputs, error) {
	var (
		posts    []ScheduledPost
		outcomes []Outcome
		flags    []Flag
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		posts, err = eng.Source.GetUpcomingScheduledPosts(egCtx, userID, now)
		if err != nil {
			return fmt.Errorf("fetching scheduled posts: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		outcomes, err = eng.Source.GetRecentOutcomes(egCtx, userID, since)
		if err != nil {
			return fmt.Errorf("fetching post outcomes: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		flags, err = eng.Source.GetRecentFlags(egCtx, userID, since)
		if err != nil {
			return fmt.Errorf("fetching moderation flags: %w", err)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	in := &Inputs{
		UserID:   userID,
		Now:      now,
		Posts:    make([]ScheduledPost, len(posts)),
		Outcomes: make([]Outcome, len(outcomes)),
		Flags:    make([]Flag, len(flags)),
	}
	for i, p := range posts {
		p.Destination = NormalizeDestination(p.Destination)
		in.Posts[i] = p
	}
	for i, o := range outcomes {
		o.Destination = NormalizeDestination(o.Destination)
		in.Outcomes[i] = o
	}
	for i, f := range flags {
		f.Destination = NormalizeDestination(f.Destination)
		in.Flags[i] = f
	}
	return in, nil
}

// distinct, known destinations referenced by any input, sorted
func ruleDestinations(in *Inputs) []string {
	seen := make(map[string]bool)
	add := func(d string) {
		if d != UnknownDestination {
			seen[d] = true
		}
	}
	for _, p := range in.Posts {
		add(p.Destination)
	}
	for _, o := range in.Outcomes {
		add(o.Destination)
	}
	for _, f := range in.Flags {
		add(f.Destination)
	}
	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func (eng *Engine) fetchRuleSets(ctx context.Context, destinations []string) (map[string]*ruleset.RuleSet, error) {
	out := make(map[string]*ruleset.RuleSet)
	if len(destinations) == 0 {
		return out, nil
	}

	raw, err := eng.Source.GetRuleSets(ctx, destinations)
	if err != nil {
		return nil, fmt.Errorf("fetching destination rule sets: %w", err)
	}
	for _, r := range raw {
		dest := NormalizeDestination(r.Destination)
		p := ruleset.Normalize(r.Payload)
		ruleSetParseCount.WithLabelValues(p.Kind.String()).Inc()
		if p.Kind == ruleset.KindNone {
			eng.Logger.Debug("no usable rule set for destination", "destination", dest, "reason", p.Err)
			continue
		}
		out[dest] = p.Rules
	}
	return out, nil
}

func (eng *Engine) canonicalLogLine(userID string, includeHistory bool, res *EvaluationResult, dur time.Duration) {
	eng.Logger.Info("canonical-evaluation-line",
		"user", userID,
		"history", includeHistory,
		"warnings", len(res.Warnings),
		"upcomingPosts", res.Stats.UpcomingPosts,
		"flaggedDestinations", res.Stats.FlaggedDestinations,
		"removalWarnings", res.Stats.RemovalWarnings,
		"cadenceConflicts", res.Stats.CadenceConflicts,
		"duration", dur.String(),
	)
}
