package rules

import (
	"math"
	"sort"

	"github.com/bluesky-social/postwatch/riskmod/engine"
)

// The full set of analyzers run for a normal risk evaluation.
func DefaultAnalyzers() []engine.AnalyzerFunc {
	return []engine.AnalyzerFunc{
		CadenceWarnings,
		RemovalWarnings,
		ContentWarnings,
		FlagWarnings,
	}
}

// rounds to one decimal place, for human-facing hour values
func roundHours(h float64) float64 {
	return math.Round(h*10) / 10
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
