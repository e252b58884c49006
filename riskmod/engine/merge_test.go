package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeKeepsHigherSeverity(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	in := []Warning{
		{ID: "cadence:example:1", Type: WarningCadence, Severity: SeverityLow, Destination: "example", Title: "low"},
		{ID: "rule:example:promo", Type: WarningRule, Severity: SeverityMedium, Destination: "example"},
		{ID: "cadence:example:1", Type: WarningCadence, Severity: SeverityHigh, Destination: "example", Title: "high"},
		{ID: "cadence:example:1", Type: WarningCadence, Severity: SeverityMedium, Destination: "example", Title: "medium"},
	}
	out := MergeWarnings(in)
	require.Len(out, 2)
	assert.Equal("cadence:example:1", out[0].ID)
	assert.Equal(SeverityHigh, out[0].Severity)
	assert.Equal("high", out[0].Title)
	assert.Equal("rule:example:promo", out[1].ID)
}

func TestMergeTieKeepsFirst(t *testing.T) {
	out := MergeWarnings([]Warning{
		{ID: "a", Severity: SeverityMedium, Title: "first"},
		{ID: "a", Severity: SeverityMedium, Title: "second"},
	})
	assert.Len(t, out, 1)
	assert.Equal(t, "first", out[0].Title)
}

func TestMergeEmpty(t *testing.T) {
	assert.Empty(t, MergeWarnings(nil))
}

func TestSortWarnings(t *testing.T) {
	assert := assert.New(t)

	ws := []Warning{
		{ID: "rule:b:promo", Type: WarningRule, Severity: SeverityLow, Destination: "b"},
		{ID: "removal:a:1", Type: WarningRemoval, Severity: SeverityHigh, Destination: "a"},
		{ID: "cadence:b:2", Type: WarningCadence, Severity: SeverityHigh, Destination: "b"},
		{ID: "cadence:a:2", Type: WarningCadence, Severity: SeverityHigh, Destination: "a"},
	}
	SortWarnings(ws)
	ids := []string{}
	for _, w := range ws {
		ids = append(ids, w.ID)
	}
	assert.Equal([]string{"cadence:a:2", "cadence:b:2", "removal:a:1", "rule:b:promo"}, ids)
}

func TestComputeStats(t *testing.T) {
	assert := assert.New(t)

	stats := ComputeStats([]Warning{
		{ID: "cadence:a:1", Type: WarningCadence, Destination: "a"},
		{ID: "cadence:a:2", Type: WarningCadence, Destination: "a"},
		{ID: "removal:b:1", Type: WarningRemoval, Destination: "b"},
		{ID: "removal:unknown:flag-1", Type: WarningRemoval, Destination: UnknownDestination},
		{ID: "rule:c:promo", Type: WarningRule, Destination: "c"},
	}, 7)
	assert.Equal(EvaluationStats{
		UpcomingPosts:       7,
		FlaggedDestinations: 4,
		RemovalWarnings:     2,
		CadenceConflicts:    2,
	}, stats)

	assert.Equal(EvaluationStats{}, ComputeStats(nil, 0))
}

func TestNormalizeDestination(t *testing.T) {
	assert := assert.New(t)

	for _, raw := range []string{"R/Example", "example", "r/EXAMPLE", "/r/example", "  Ex-am.ple "} {
		assert.Equal("example", NormalizeDestination(raw), "raw: %q", raw)
	}
	assert.Equal("ask_me_2", NormalizeDestination("r/Ask_Me_2"))
	assert.Equal(UnknownDestination, NormalizeDestination(""))
	assert.Equal(UnknownDestination, NormalizeDestination("r/"))
	assert.Equal(UnknownDestination, NormalizeDestination("!!!"))
}

func TestSeverityText(t *testing.T) {
	assert := assert.New(t)

	assert.True(SeverityLow < SeverityMedium && SeverityMedium < SeverityHigh)
	b, err := SeverityHigh.MarshalText()
	assert.NoError(err)
	assert.Equal("high", string(b))

	var s Severity
	assert.NoError(s.UnmarshalText([]byte("medium")))
	assert.Equal(SeverityMedium, s)
	assert.Error(s.UnmarshalText([]byte("critical")))

	_, err = Severity(0).MarshalText()
	assert.Error(err)
}
