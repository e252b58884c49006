package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bluesky-social/postwatch/riskmod/engine"
)

var _ engine.AnalyzerFunc = FlagWarnings

// Maps each moderation flag on the account to a removal-type warning. Flags without a destination are reported under engine.UnknownDestination.
func FlagWarnings(in *engine.Inputs) []engine.Warning {
	out := []engine.Warning{}
	for _, f := range in.Flags {
		dest := f.Destination
		if dest == "" {
			dest = engine.UnknownDestination
		}
		createdAt := f.CreatedAt

		msg := fmt.Sprintf("Your account was flagged for %q (status: %s).", f.Reason, f.Status)
		if f.Description != "" {
			msg = fmt.Sprintf("%s %s", msg, f.Description)
		}
		title := "Moderation flag on your account"
		if dest != engine.UnknownDestination {
			title = fmt.Sprintf("Moderation flag on %s", dest)
		}

		out = append(out, engine.Warning{
			ID:                engine.WarningID(engine.WarningRemoval, dest, "flag-"+strconv.FormatInt(createdAt.UnixMilli(), 10)),
			Type:              engine.WarningRemoval,
			Severity:          flagSeverity(f.Status),
			Destination:       dest,
			Title:             title,
			Message:           msg,
			RecommendedAction: "Review the flagged activity and avoid repeating it while the flag is active.",
			Metadata: &engine.WarningMetadata{
				FlagReason: f.Reason,
				FlagStatus: f.Status,
				Notes:      f.Description,
			},
		})
	}
	return out
}

func flagSeverity(status string) engine.Severity {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "confirmed", "upheld", "actioned":
		return engine.SeverityHigh
	case "dismissed", "resolved", "rejected":
		return engine.SeverityLow
	default:
		return engine.SeverityMedium
	}
}
