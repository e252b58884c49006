package rules

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/bluesky-social/postwatch/riskmod/engine"
)

var _ engine.AnalyzerFunc = CadenceWarnings

// baseline spacing between posts to the same destination, regardless of destination rules
var SafeCadence = 72 * time.Hour

// Flags upcoming posts which land too soon after another post (scheduled or already attempted) to the same destination.
//
// Three checks, in order, first match wins:
//   - gap to the previous scheduled post is under SafeCadence
//   - gap to the latest prior outcome is under SafeCadence
//   - gap to whichever of those two is closer is under the destination cooldown
//
// The cooldown reported to the user is the stricter of SafeCadence and the destination cooldown.
func CadenceWarnings(in *engine.Inputs) []engine.Warning {
	byDest := make(map[string][]engine.ScheduledPost)
	for _, p := range in.Posts {
		byDest[p.Destination] = append(byDest[p.Destination], p)
	}
	latestOutcome := make(map[string]time.Time)
	for _, o := range in.Outcomes {
		if t, ok := latestOutcome[o.Destination]; !ok || o.OccurredAt.After(t) {
			latestOutcome[o.Destination] = o.OccurredAt
		}
	}

	out := []engine.Warning{}
	for _, dest := range sortedKeys(byDest) {
		posts := byDest[dest]
		sort.SliceStable(posts, func(i, j int) bool {
			return posts[i].ScheduledFor.Before(posts[j].ScheduledFor)
		})

		cooldown, hasCooldown := in.RuleSets[dest].Cooldown()
		threshold := SafeCadence
		if hasCooldown && cooldown > threshold {
			threshold = cooldown
		}

		for i, p := range posts {
			var gapPrev, gapOutcome time.Duration
			hasPrev := i > 0
			if hasPrev {
				gapPrev = p.ScheduledFor.Sub(posts[i-1].ScheduledFor)
			}
			last, hasOutcome := latestOutcome[dest]
			if hasOutcome && last.After(p.ScheduledFor) {
				hasOutcome = false
			}
			if hasOutcome {
				gapOutcome = p.ScheduledFor.Sub(last)
			}

			// gap to the closer of the two prior events
			var closest time.Duration
			hasClosest := hasPrev || hasOutcome
			switch {
			case hasPrev && hasOutcome:
				closest = min(gapPrev, gapOutcome)
			case hasPrev:
				closest = gapPrev
			case hasOutcome:
				closest = gapOutcome
			}

			var gap time.Duration
			switch {
			case hasPrev && gapPrev < SafeCadence:
				gap = gapPrev
			case hasOutcome && gapOutcome < SafeCadence:
				gap = gapOutcome
			case hasCooldown && hasClosest && closest < cooldown:
				gap = closest
			default:
				continue
			}
			out = append(out, cadenceWarning(dest, p, gap, threshold))
		}
	}
	return out
}

func cadenceSeverity(gap time.Duration) engine.Severity {
	switch {
	case gap < 24*time.Hour:
		return engine.SeverityHigh
	case gap < 72*time.Hour:
		return engine.SeverityMedium
	default:
		return engine.SeverityLow
	}
}

func cadenceWarning(dest string, p engine.ScheduledPost, gap, threshold time.Duration) engine.Warning {
	hoursSince := roundHours(gap.Hours())
	cooldownHours := roundHours(threshold.Hours())
	scheduledFor := p.ScheduledFor
	title := p.Title
	if title == "" {
		title = "untitled post"
	}
	return engine.Warning{
		ID:          engine.WarningID(engine.WarningCadence, dest, strconv.FormatInt(p.ScheduledFor.UnixMilli(), 10)),
		Type:        engine.WarningCadence,
		Severity:    cadenceSeverity(gap),
		Destination: dest,
		Title:       fmt.Sprintf("Posting too frequently to %s", dest),
		Message: fmt.Sprintf("%q is scheduled %.1f hours after your previous post to %s; this destination expects at least %.0f hours between posts.",
			title, hoursSince, dest, cooldownHours),
		RecommendedAction: fmt.Sprintf("Reschedule this post to at least %.0f hours after the previous one.", cooldownHours),
		Metadata: &engine.WarningMetadata{
			PostID:             p.ID,
			PostTitle:          p.Title,
			ScheduledFor:       &scheduledFor,
			CooldownHours:      &cooldownHours,
			HoursSinceLastPost: &hoursSince,
		},
	}
}
