package rules

import (
	"fmt"

	"github.com/bluesky-social/postwatch/riskmod/engine"
	"github.com/bluesky-social/postwatch/riskmod/ruleset"
)

var _ engine.AnalyzerFunc = ContentWarnings

// Turns destination content rules into warnings: promotional links, originality, and watermarks. Each category fires independently, at most once per destination.
func ContentWarnings(in *engine.Inputs) []engine.Warning {
	out := []engine.Warning{}
	for _, dest := range sortedKeys(in.RuleSets) {
		rs := in.RuleSets[dest]
		if rs == nil {
			continue
		}
		c := rs.Content

		if c.PromotionalLinks != nil && *c.PromotionalLinks != ruleset.PromoAllowed {
			sev := engine.SeverityMedium
			msg := fmt.Sprintf("%s limits promotional links; self-promotion beyond the allowed ratio is commonly removed.", dest)
			action := "Keep promotional links to a small fraction of your posts here."
			if *c.PromotionalLinks == ruleset.PromoForbidden {
				sev = engine.SeverityHigh
				msg = fmt.Sprintf("%s does not allow promotional links.", dest)
				action = "Remove links to your own pages or storefronts from posts to this destination."
			}
			out = append(out, ruleWarning(dest, "promo", sev, "Promotional links restricted", msg, action, rs.Notes))
		}

		if c.RequiresOriginalContent != nil && *c.RequiresOriginalContent {
			out = append(out, ruleWarning(dest, "original", engine.SeverityMedium,
				"Original content required",
				fmt.Sprintf("%s only accepts original content; reposts and crossposts are likely to be removed.", dest),
				"Only post content you created yourself to this destination.",
				rs.Notes))
		}

		if c.WatermarksAllowed != nil && !*c.WatermarksAllowed {
			out = append(out, ruleWarning(dest, "watermark", engine.SeverityLow,
				"Watermarks not allowed",
				fmt.Sprintf("%s does not allow watermarked images.", dest),
				"Disable or minimize the watermark overlay for posts to this destination only.",
				rs.Notes))
		}
	}
	return out
}

func ruleWarning(dest, category string, sev engine.Severity, title, msg, action, notes string) engine.Warning {
	return engine.Warning{
		ID:                engine.WarningID(engine.WarningRule, dest, category),
		Type:              engine.WarningRule,
		Severity:          sev,
		Destination:       dest,
		Title:             fmt.Sprintf("%s on %s", title, dest),
		Message:           msg,
		RecommendedAction: action,
		Metadata: &engine.WarningMetadata{
			RuleRef: category,
			Notes:   notes,
		},
	}
}
