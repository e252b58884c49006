package rules

import (
	"testing"
	"time"

	"github.com/bluesky-social/postwatch/riskmod/engine"
	"github.com/bluesky-social/postwatch/riskmod/ruleset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func twoPosts(dest string, gap time.Duration) []engine.ScheduledPost {
	first := testNow.Add(6 * time.Hour)
	return []engine.ScheduledPost{
		{ID: "p1", Destination: dest, ScheduledFor: first, Title: "first"},
		{ID: "p2", Destination: dest, ScheduledFor: first.Add(gap), Title: "second"},
	}
}

func TestCadenceThresholds(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	in := &engine.Inputs{Now: testNow, Posts: twoPosts("example", 10*time.Hour)}
	out := CadenceWarnings(in)
	require.Len(out, 1)
	assert.Equal(engine.WarningCadence, out[0].Type)
	assert.Equal(engine.SeverityHigh, out[0].Severity)
	assert.Equal("example", out[0].Destination)
	assert.Equal(72.0, *out[0].Metadata.CooldownHours)
	assert.Equal(10.0, *out[0].Metadata.HoursSinceLastPost)
	assert.Equal("p2", out[0].Metadata.PostID)

	in.Posts = twoPosts("example", 48*time.Hour)
	out = CadenceWarnings(in)
	require.Len(out, 1)
	assert.Equal(engine.SeverityMedium, out[0].Severity)

	in.Posts = twoPosts("example", 100*time.Hour)
	assert.Empty(CadenceWarnings(in))
}

func TestCadenceCooldownOverride(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	cd := 96.0
	in := &engine.Inputs{
		Now:   testNow,
		Posts: twoPosts("example", 80*time.Hour),
		RuleSets: map[string]*ruleset.RuleSet{
			"example": {Posting: ruleset.Posting{CooldownHours: &cd}},
		},
	}
	out := CadenceWarnings(in)
	require.Len(out, 1)
	assert.Equal(96.0, *out[0].Metadata.CooldownHours)
	assert.Equal(engine.SeverityLow, out[0].Severity)

	// cooldown shorter than the baseline never loosens it
	short := 12.0
	in.RuleSets["example"].Posting.CooldownHours = &short
	in.Posts = twoPosts("example", 48*time.Hour)
	out = CadenceWarnings(in)
	require.Len(out, 1)
	assert.Equal(72.0, *out[0].Metadata.CooldownHours)
}

func TestCadenceImplicitDailyCooldown(t *testing.T) {
	assert := assert.New(t)

	one := 1
	in := &engine.Inputs{
		Now:   testNow,
		Posts: twoPosts("example", 100*time.Hour),
		RuleSets: map[string]*ruleset.RuleSet{
			"example": {Posting: ruleset.Posting{MaxPostsPerDay: &one}},
		},
	}
	// a 24h cooldown is looser than the baseline, so 100h is fine
	assert.Empty(CadenceWarnings(in))
}

func TestCadenceAgainstOutcome(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	in := &engine.Inputs{
		Now: testNow,
		Posts: []engine.ScheduledPost{
			{ID: "p1", Destination: "example", ScheduledFor: testNow.Add(5 * time.Hour)},
		},
		Outcomes: []engine.Outcome{
			{Destination: "example", Status: "success", OccurredAt: testNow.Add(-100 * time.Hour)},
			{Destination: "example", Status: "success", OccurredAt: testNow.Add(-1 * time.Hour)},
			{Destination: "other", Status: "success", OccurredAt: testNow.Add(-1 * time.Hour)},
		},
	}
	out := CadenceWarnings(in)
	require.Len(out, 1)
	assert.Equal(engine.SeverityHigh, out[0].Severity)
	assert.Equal(6.0, *out[0].Metadata.HoursSinceLastPost)
	assert.Contains(out[0].Message, "untitled post")
}

func TestCadenceOneWarningPerPost(t *testing.T) {
	assert := assert.New(t)

	cd := 200.0
	first := testNow.Add(time.Hour)
	in := &engine.Inputs{
		Now: testNow,
		Posts: []engine.ScheduledPost{
			{ID: "c", Destination: "example", ScheduledFor: first.Add(20 * time.Hour)},
			{ID: "a", Destination: "example", ScheduledFor: first},
			{ID: "b", Destination: "example", ScheduledFor: first.Add(2 * time.Hour)},
			{ID: "z", Destination: "elsewhere", ScheduledFor: first.Add(3 * time.Hour)},
		},
		Outcomes: []engine.Outcome{
			{Destination: "example", Status: "success", OccurredAt: testNow.Add(-2 * time.Hour)},
		},
		RuleSets: map[string]*ruleset.RuleSet{
			"example": {Posting: ruleset.Posting{CooldownHours: &cd}},
		},
	}
	out := CadenceWarnings(in)
	// every example post violates several thresholds, but yields exactly one warning
	assert.Len(out, 3)
	ids := map[string]bool{}
	for _, w := range out {
		ids[w.ID] = true
		assert.Equal("example", w.Destination)
		assert.Equal(200.0, *w.Metadata.CooldownHours)
	}
	assert.Len(ids, 3)
	assert.True(ids[engine.WarningID(engine.WarningCadence, "example", "1709298000000")])
}
