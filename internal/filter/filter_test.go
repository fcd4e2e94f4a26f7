package filter

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/nertexqq/giftwatch/internal/marketplace"
	"github.com/nertexqq/giftwatch/internal/normalize"
)

func listing(collection, model string, price float64, mp marketplace.Name) normalize.Listing {
	return normalize.Listing{
		Marketplace:    mp,
		CollectionName: collection,
		ModelName:      model,
		PriceTON:       decimal.NewFromFloat(price),
	}
}

func TestAnyWildcardIsCaseSensitive(t *testing.T) {
	rules := UserRules{Rules: []Rule{{
		Collections:  []string{"any"}, // lowercase: must NOT act as wildcard
		Models:       []string{Any},
		Marketplaces: []marketplace.Name{marketplace.Portals},
	}}}
	l := listing("Plush Pepe", "Bubblegum", 5, marketplace.Portals)
	if rules.Matches(l) {
		t.Fatal("lowercase 'any' must not match as wildcard")
	}

	rules.Rules[0].Collections = []string{Any}
	if !rules.Matches(l) {
		t.Fatal("uppercase ANY must match as wildcard")
	}
}

func TestRarityParenSuffixStrippedBeforeCompare(t *testing.T) {
	rules := UserRules{Rules: []Rule{{
		Collections:  []string{Any},
		Models:       []string{"Bubblegum (Rare)"},
		Marketplaces: []marketplace.Name{marketplace.Portals},
	}}}
	l := listing("Plush Pepe", "bubblegum", 5, marketplace.Portals)
	if !rules.Matches(l) {
		t.Fatal("expected case-insensitive match after stripping rarity suffix")
	}
}

func TestPriceBandInclusiveAtEqualBounds(t *testing.T) {
	min := decimal.NewFromInt(5)
	max := decimal.NewFromInt(5)
	rules := UserRules{Rules: []Rule{{
		Collections:  []string{Any},
		Models:       []string{Any},
		Marketplaces: []marketplace.Name{marketplace.Tonnel},
		PriceMin:     &min,
		PriceMax:     &max,
	}}}
	l := listing("Desk Calendar", "N/A", 5, marketplace.Tonnel)
	if !rules.Matches(l) {
		t.Fatal("expected price exactly at min==max bound to match")
	}
}

func TestMarketplaceMismatchNeverMatches(t *testing.T) {
	rules := UserRules{Rules: []Rule{{
		Collections:  []string{Any},
		Models:       []string{Any},
		Marketplaces: []marketplace.Name{marketplace.MRKT},
	}}}
	l := listing("Desk Calendar", "N/A", 5, marketplace.GetGems)
	if rules.Matches(l) {
		t.Fatal("expected no match when listing's marketplace is not in the rule's set")
	}
}

type fakeRuleSource struct {
	users map[marketplace.Name][]string
	rules map[string]UserRules
	errUsers map[string]error
}

func (f fakeRuleSource) SubscribedUsers(mp marketplace.Name) ([]string, error) {
	return f.users[mp], nil
}

func (f fakeRuleSource) RulesFor(userID string) (UserRules, error) {
	if err, ok := f.errUsers[userID]; ok {
		return UserRules{}, err
	}
	return f.rules[userID], nil
}

func TestMatchSkipsUserWhoseRulesErrorWithoutBlockingOthers(t *testing.T) {
	src := fakeRuleSource{
		users: map[marketplace.Name][]string{marketplace.Portals: {"u1", "u2"}},
		rules: map[string]UserRules{
			"u2": {Rules: []Rule{{Collections: []string{Any}, Models: []string{Any}, Marketplaces: []marketplace.Name{marketplace.Portals}}}},
		},
		errUsers: map[string]error{"u1": errBoom},
	}
	l := listing("Plush Pepe", "Bubblegum", 5, marketplace.Portals)
	matched, err := Match(src, nil, l)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matched) != 1 || matched[0] != "u2" {
		t.Fatalf("matched = %v, want [u2]", matched)
	}
}

var errBoom = fakeErr("boom")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }
