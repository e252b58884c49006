package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bluesky-social/postwatch/riskmod/engine"
)

var _ engine.AnalyzerFunc = RemovalWarnings

// outcome statuses which count against a destination
var removalStatuses = map[string]bool{
	"removed":      true,
	"rejected":     true,
	"shadowbanned": true,
	"failed":       true,
}

func isRemovalStatus(status string) bool {
	return removalStatuses[strings.ToLower(strings.TrimSpace(status))]
}

// Emits one warning per destination with recent removed, rejected, shadowbanned or failed posts, scaled by how many there were.
func RemovalWarnings(in *engine.Inputs) []engine.Warning {
	counts := make(map[string]int)
	latest := make(map[string]engine.Outcome)
	for _, o := range in.Outcomes {
		if !isRemovalStatus(o.Status) {
			continue
		}
		counts[o.Destination]++
		if prev, ok := latest[o.Destination]; !ok || o.OccurredAt.After(prev.OccurredAt) {
			latest[o.Destination] = o
		}
	}

	out := []engine.Warning{}
	for _, dest := range sortedKeys(counts) {
		n := counts[dest]
		last := latest[dest]
		removedAt := last.OccurredAt

		reason := last.Reason
		if reason == "" {
			reason = "no reason given"
		}
		msg := fmt.Sprintf("%d recent post(s) to %s were %s. Most recent: %s (%s).",
			n, dest, strings.ToLower(last.Status), reason, removedAt.UTC().Format("Jan 2 15:04 MST"))

		out = append(out, engine.Warning{
			ID:                engine.WarningID(engine.WarningRemoval, dest, strconv.FormatInt(removedAt.UnixMilli(), 10)),
			Type:              engine.WarningRemoval,
			Severity:          removalSeverity(n),
			Destination:       dest,
			Title:             fmt.Sprintf("Recent removals on %s", dest),
			Message:           msg,
			RecommendedAction: "Review the destination rules and pause posting there until you understand why posts were removed.",
			Metadata: &engine.WarningMetadata{
				RemovalReason: last.Reason,
				RemovedAt:     &removedAt,
				RemovalCount:  n,
			},
		})
	}
	return out
}

func removalSeverity(n int) engine.Severity {
	switch {
	case n >= 3:
		return engine.SeverityHigh
	case n == 2:
		return engine.SeverityMedium
	default:
		return engine.SeverityLow
	}
}
