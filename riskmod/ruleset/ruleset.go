// Normalization of stored destination rule payloads, which come in a current and a legacy schema.
package ruleset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// Promotional-link policy for a destination, normalized across schema versions.
type PromoPolicy string

const (
	PromoAllowed   PromoPolicy = "yes"
	PromoForbidden PromoPolicy = "no"
	PromoLimited   PromoPolicy = "limited"
)

func (p PromoPolicy) valid() bool {
	switch p {
	case PromoAllowed, PromoForbidden, PromoLimited:
		return true
	}
	return false
}

// Cooldown assumed when a destination only declares a daily post limit.
var ImplicitDailyCooldown = 24 * time.Hour

type Posting struct {
	CooldownHours  *float64 `json:"cooldownHours,omitempty"`
	MaxPostsPerDay *int     `json:"maxPostsPerDay,omitempty"`
}

type Content struct {
	PromotionalLinks        *PromoPolicy `json:"promotionalLinks,omitempty"`
	RequiresOriginalContent *bool        `json:"requiresOriginalContent,omitempty"`
	WatermarksAllowed       *bool        `json:"watermarksAllowed,omitempty"`
}

// Normalized posting rules for a single destination.
type RuleSet struct {
	Posting Posting `json:"posting"`
	Content Content `json:"content"`
	Notes   string  `json:"notes,omitempty"`
}

// Returns the minimum spacing between posts required by this rule set, if any.
//
// An explicit cooldown wins. Otherwise a declared "max posts per day" limit implies ImplicitDailyCooldown. This is a heuristic default, not a policy stated by the destination.
func (rs *RuleSet) Cooldown() (time.Duration, bool) {
	if rs == nil {
		return 0, false
	}
	if rs.Posting.CooldownHours != nil {
		return time.Duration(*rs.Posting.CooldownHours * float64(time.Hour)), true
	}
	if rs.Posting.MaxPostsPerDay != nil {
		return ImplicitDailyCooldown, true
	}
	return 0, false
}

// Which stored schema shape a payload was parsed from.
type Kind int

const (
	KindNone Kind = iota
	KindCurrent
	KindLegacy
)

func (k Kind) String() string {
	switch k {
	case KindCurrent:
		return "current"
	case KindLegacy:
		return "legacy"
	default:
		return "none"
	}
}

// Result of normalizing a stored payload. Rules is nil iff Kind is KindNone.
type Parsed struct {
	Kind  Kind
	Rules *RuleSet
	// why neither shape matched; informational only
	Err error
}

type currentPosting struct {
	CooldownHours  *float64 `json:"cooldownHours"`
	MaxPostsPerDay *int     `json:"maxPostsPerDay"`
}

type currentContent struct {
	PromotionalLinks        *string `json:"promotionalLinks"`
	RequiresOriginalContent *bool   `json:"requiresOriginalContent"`
	WatermarksAllowed       *bool   `json:"watermarksAllowed"`
}

type currentShape struct {
	Posting *currentPosting `json:"posting"`
	Content *currentContent `json:"content"`
	Notes   *string         `json:"notes"`
}

type legacyShape struct {
	CooldownHours       *float64 `json:"cooldown_hours"`
	MaxPostsPerDay      *int     `json:"max_posts_per_day"`
	PromoLinks          *string  `json:"promo_links"`
	OriginalContentOnly *bool    `json:"original_content_only"`
	AllowWatermarks     *bool    `json:"allow_watermarks"`
	Notes               *string  `json:"notes"`
}

var errEmptyPayload = errors.New("empty rule set payload")

// Normalizes an opaque stored rule payload.
//
// The current schema is attempted first, then the legacy one. Anything else yields KindNone; this is never an error, as most destinations have no known rules.
func Normalize(raw []byte) Parsed {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Parsed{Kind: KindNone, Err: errEmptyPayload}
	}

	rs, errCur := parseCurrent(raw)
	if errCur == nil {
		return Parsed{Kind: KindCurrent, Rules: rs}
	}
	rs, errLeg := parseLegacy(raw)
	if errLeg == nil {
		return Parsed{Kind: KindLegacy, Rules: rs}
	}
	return Parsed{Kind: KindNone, Err: fmt.Errorf("current schema: %v; legacy schema: %v", errCur, errLeg)}
}

func strictDecode(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	// reject trailing garbage after the object
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("unexpected data after rule set object")
	}
	return nil
}

func parseCurrent(raw []byte) (*RuleSet, error) {
	var s currentShape
	if err := strictDecode(raw, &s); err != nil {
		return nil, err
	}
	if s.Posting == nil && s.Content == nil {
		return nil, fmt.Errorf("neither posting nor content section present")
	}

	rs := RuleSet{}
	if s.Posting != nil {
		if err := checkCooldown(s.Posting.CooldownHours); err != nil {
			return nil, err
		}
		if err := checkMaxPerDay(s.Posting.MaxPostsPerDay); err != nil {
			return nil, err
		}
		rs.Posting = Posting{
			CooldownHours:  s.Posting.CooldownHours,
			MaxPostsPerDay: s.Posting.MaxPostsPerDay,
		}
	}
	if s.Content != nil {
		if s.Content.PromotionalLinks != nil {
			p := PromoPolicy(*s.Content.PromotionalLinks)
			if !p.valid() {
				return nil, fmt.Errorf("invalid promotionalLinks value: %q", *s.Content.PromotionalLinks)
			}
			rs.Content.PromotionalLinks = &p
		}
		rs.Content.RequiresOriginalContent = s.Content.RequiresOriginalContent
		rs.Content.WatermarksAllowed = s.Content.WatermarksAllowed
	}
	if s.Notes != nil {
		rs.Notes = *s.Notes
	}
	return &rs, nil
}

func parseLegacy(raw []byte) (*RuleSet, error) {
	var s legacyShape
	if err := strictDecode(raw, &s); err != nil {
		return nil, err
	}
	if s.CooldownHours == nil && s.MaxPostsPerDay == nil && s.PromoLinks == nil &&
		s.OriginalContentOnly == nil && s.AllowWatermarks == nil {
		return nil, fmt.Errorf("no legacy rule fields present")
	}
	if err := checkCooldown(s.CooldownHours); err != nil {
		return nil, err
	}
	if err := checkMaxPerDay(s.MaxPostsPerDay); err != nil {
		return nil, err
	}

	rs := RuleSet{
		Posting: Posting{
			CooldownHours:  s.CooldownHours,
			MaxPostsPerDay: s.MaxPostsPerDay,
		},
		Content: Content{
			RequiresOriginalContent: s.OriginalContentOnly,
			WatermarksAllowed:       s.AllowWatermarks,
		},
	}
	if s.PromoLinks != nil {
		var p PromoPolicy
		switch *s.PromoLinks {
		case "allowed":
			p = PromoAllowed
		case "limited":
			p = PromoLimited
		case "forbidden":
			p = PromoForbidden
		default:
			return nil, fmt.Errorf("invalid promo_links value: %q", *s.PromoLinks)
		}
		rs.Content.PromotionalLinks = &p
	}
	if s.Notes != nil {
		rs.Notes = *s.Notes
	}
	return &rs, nil
}

func checkCooldown(h *float64) error {
	if h != nil && *h < 0 {
		return fmt.Errorf("negative cooldown: %v", *h)
	}
	return nil
}

func checkMaxPerDay(n *int) error {
	if n != nil && *n < 1 {
		return fmt.Errorf("max posts per day must be positive: %d", *n)
	}
	return nil
}
