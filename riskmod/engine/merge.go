package engine

import (
	"sort"
)

// Reduces a warning list to one entry per ID, keeping the higher severity when IDs collide.
//
// On a severity tie the first occurrence is kept. Output order follows first appearance of each ID.
func MergeWarnings(warnings []Warning) []Warning {
	idx := make(map[string]int, len(warnings))
	out := make([]Warning, 0, len(warnings))
	for _, w := range warnings {
		i, ok := idx[w.ID]
		if !ok {
			idx[w.ID] = len(out)
			out = append(out, w)
			continue
		}
		if w.Severity > out[i].Severity {
			out[i] = w
		}
	}
	return out
}

// Orders warnings for presentation: highest severity first, then by type, destination and ID.
func SortWarnings(warnings []Warning) {
	sort.SliceStable(warnings, func(i, j int) bool {
		a, b := warnings[i], warnings[j]
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Destination != b.Destination {
			return a.Destination < b.Destination
		}
		return a.ID < b.ID
	})
}

// Derives aggregate counters from the final (merged) warning set.
func ComputeStats(warnings []Warning, upcomingPosts int) EvaluationStats {
	dests := make(map[string]bool)
	stats := EvaluationStats{
		UpcomingPosts: upcomingPosts,
	}
	for _, w := range warnings {
		dests[w.Destination] = true
		switch w.Type {
		case WarningCadence:
			stats.CadenceConflicts++
		case WarningRemoval:
			stats.RemovalWarnings++
		}
	}
	stats.FlaggedDestinations = len(dests)
	return stats
}
