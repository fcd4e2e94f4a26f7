// Package filter matches a normalized Listing against per-user rule sets
// (collection × model × backdrop × marketplace × price band).
package filter

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nertexqq/giftwatch/internal/marketplace"
	"github.com/nertexqq/giftwatch/internal/normalize"
)

// Any is the wildcard sentinel for a rule dimension. Per the resolved
// open question, matching against Any is case-sensitive and only this
// exact uppercase token counts as a wildcard — "any" or "Any" are treated
// as literal (and almost certainly unmatched) values.
const Any = "ANY"

// Rule is one entry in a user's ordered rule set. Collections and Models
// match only when they contain the Any sentinel or a matching name; an
// empty slice matches nothing on that dimension. Backdrops is checked only
// when it is non-empty and the listing has a backdrop, so an empty
// Backdrops slice does not restrict the rule.
type Rule struct {
	Collections  []string
	Models       []string
	Backdrops    []string
	Marketplaces []marketplace.Name
	PriceMin     *decimal.Decimal
	PriceMax     *decimal.Decimal
}

// UserRules is one user's ordered rule set.
type UserRules struct {
	UserID string
	Rules  []Rule
}

var rarityParenSuffix = regexp.MustCompile(`\s*\([^)]*\)\s*$`)

// normalizeName lowercases and strips a trailing "(...)" rarity
// annotation, per spec §4.8's name-comparison rule.
func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(rarityParenSuffix.ReplaceAllString(s, "")))
}

func dimensionMatches(values []string, candidate string) bool {
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		if v == Any {
			return true
		}
		if normalizeName(v) == normalizeName(candidate) {
			return true
		}
	}
	return false
}

func marketplaceMatches(values []marketplace.Name, mp marketplace.Name) bool {
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		if v == mp {
			return true
		}
	}
	return false
}

func priceInBand(price decimal.Decimal, min, max *decimal.Decimal) bool {
	if min != nil && price.LessThan(*min) {
		return false
	}
	if max != nil && price.GreaterThan(*max) {
		return false
	}
	return true
}

// Matches reports whether any rule in r admits listing l.
func (r UserRules) Matches(l normalize.Listing) bool {
	for _, rule := range r.Rules {
		if ruleMatches(rule, l) {
			return true
		}
	}
	return false
}

func ruleMatches(rule Rule, l normalize.Listing) bool {
	if !dimensionMatches(rule.Collections, l.CollectionName) {
		return false
	}
	if !dimensionMatches(rule.Models, l.ModelName) {
		return false
	}
	if len(rule.Backdrops) > 0 && l.BackdropName != "" {
		if !dimensionMatches(rule.Backdrops, l.BackdropName) {
			return false
		}
	}
	if !marketplaceMatches(rule.Marketplaces, l.Marketplace) {
		return false
	}
	if !priceInBand(l.PriceTON, rule.PriceMin, rule.PriceMax) {
		return false
	}
	return true
}

// RuleSource is the external user-config collaborator: it returns the
// set of users subscribed to a marketplace, and each user's rule set.
// Implementations SHOULD cache and refresh on filter-change events, per
// spec §4.7/§4.8.
type RuleSource interface {
	SubscribedUsers(mp marketplace.Name) ([]string, error)
	RulesFor(userID string) (UserRules, error)
}

// Logger is the minimal logging capability Match needs; obslog.Logger
// satisfies it.
type Logger interface {
	Warn(msg string, fields ...any)
}

// Match returns the subset of users subscribed to l's marketplace whose
// rules admit it. An error fetching one user's rules must not block
// others (spec §4.8's failure mode): that user is treated as
// non-matching and the error is logged.
func Match(src RuleSource, log Logger, l normalize.Listing) ([]string, error) {
	users, err := src.SubscribedUsers(l.Marketplace)
	if err != nil {
		return nil, err
	}
	matched := make([]string, 0, len(users))
	for _, userID := range users {
		rules, err := src.RulesFor(userID)
		if err != nil {
			if log != nil {
				log.Warn("failed to fetch user rules, treating as non-matching", "user_id", userID, "error", err)
			}
			continue
		}
		if rules.Matches(l) {
			matched = append(matched, userID)
		}
	}
	return matched, nil
}
