package engine

import (
	"fmt"
	"time"

	"github.com/bluesky-social/postwatch/riskmod/ruleset"
)

// Ordered warning severity. The zero value is not a valid severity.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

func ParseSeverity(raw string) (Severity, error) {
	switch raw {
	case "low":
		return SeverityLow, nil
	case "medium":
		return SeverityMedium, nil
	case "high":
		return SeverityHigh, nil
	}
	return 0, fmt.Errorf("unknown severity: %q", raw)
}

func (s Severity) MarshalText() ([]byte, error) {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return []byte(s.String()), nil
	}
	return nil, fmt.Errorf("invalid severity value: %d", int(s))
}

func (s *Severity) UnmarshalText(text []byte) error {
	v, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

type WarningType string

const (
	WarningCadence WarningType = "cadence"
	WarningRemoval WarningType = "removal"
	WarningRule    WarningType = "rule"
)

// Free-form key facts attached to a warning. All fields are optional.
type WarningMetadata struct {
	PostID             string     `json:"postId,omitempty"`
	PostTitle          string     `json:"postTitle,omitempty"`
	ScheduledFor       *time.Time `json:"scheduledFor,omitempty"`
	CooldownHours      *float64   `json:"cooldownHours,omitempty"`
	HoursSinceLastPost *float64   `json:"hoursSinceLastPost,omitempty"`
	RemovalReason      string     `json:"removalReason,omitempty"`
	RemovedAt          *time.Time `json:"removedAt,omitempty"`
	RemovalCount       int        `json:"removalCount,omitempty"`
	RuleRef            string     `json:"ruleRef,omitempty"`
	FlagReason         string     `json:"flagReason,omitempty"`
	FlagStatus         string     `json:"flagStatus,omitempty"`
	Notes              string     `json:"notes,omitempty"`
}

// An advisory unit produced by an analyzer.
//
// ID is the stable identity (type, destination, and a disambiguating suffix). Two warnings with the same ID are always merged, never both kept.
type Warning struct {
	ID                string           `json:"id"`
	Type              WarningType      `json:"type"`
	Severity          Severity         `json:"severity"`
	Destination       string           `json:"destination"`
	Title             string           `json:"title"`
	Message           string           `json:"message"`
	RecommendedAction string           `json:"recommendedAction"`
	Metadata          *WarningMetadata `json:"metadata,omitempty"`
}

func WarningID(t WarningType, destination, suffix string) string {
	return fmt.Sprintf("%s:%s:%s", t, destination, suffix)
}

type EvaluationStats struct {
	UpcomingPosts       int `json:"upcomingPosts"`
	FlaggedDestinations int `json:"flaggedDestinations"`
	RemovalWarnings     int `json:"removalWarnings"`
	CadenceConflicts    int `json:"cadenceConflicts"`
}

// Output of a single evaluation. Treated as immutable once produced; caches store it verbatim.
type EvaluationResult struct {
	GeneratedAt time.Time       `json:"generatedAt"`
	Warnings    []Warning       `json:"warnings"`
	Stats       EvaluationStats `json:"stats"`
}

type ScheduledPost struct {
	ID           string    `json:"id"`
	Destination  string    `json:"destination"`
	ScheduledFor time.Time `json:"scheduledFor"`
	Title        string    `json:"title"`
}

type Outcome struct {
	Destination string    `json:"destination"`
	Status      string    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

type Flag struct {
	Reason      string    `json:"reason"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	// empty when the flag is not linked to a destination
	Destination string `json:"destination,omitempty"`
}

// Stored, not-yet-normalized rule payload for a destination.
type RawRuleSet struct {
	Destination string
	Payload     []byte
}

type Snapshot struct {
	UserID      string
	GeneratedAt time.Time
	Warnings    []Warning
	Stats       EvaluationStats
}

// Everything analyzers get to look at for one evaluation. Destinations on all records are already normalized.
type Inputs struct {
	UserID   string
	Now      time.Time
	Posts    []ScheduledPost
	Outcomes []Outcome
	Flags    []Flag
	RuleSets map[string]*ruleset.RuleSet
}

// Analyzers are pure functions from inputs to warnings. They must not retain or mutate the inputs.
type AnalyzerFunc = func(in *Inputs) []Warning
