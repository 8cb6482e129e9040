package core

import (
	"strings"
)

// Matches reports whether the rule applies to the given sender address and
// category label. Comparison is case-insensitive for every type. Domain
// rules use substring containment, not domain-suffix parsing: pattern
// "spam.com" matches "bad@spam.com" and also "bad@mail.spam.com.evil.net".
// That looseness is load-bearing; the dashboard documents it and existing
// rule sets rely on it.
func (r *Rule) Matches(sender, category string) bool {
	pattern := strings.ToLower(r.Pattern)
	switch r.Type {
	case RuleTypeEmail:
		return strings.ToLower(sender) == pattern
	case RuleTypeCategory:
		return strings.ToLower(category) == pattern
	case RuleTypeDomain:
		return strings.Contains(strings.ToLower(sender), pattern)
	default:
		return false
	}
}

// Decide computes the disposition for one message. It is a pure function:
// no I/O, no clock, no logger, and identical inputs always produce identical
// output.
//
// The policy is specificity precedence, not allow-overrides-block:
//
//  1. Rules are partitioned by type and at most one rule per type can match:
//     the first matching rule in slice order. Stores return rules ordered by
//     creation time, so within a type the oldest matching rule wins.
//  2. An email match decides the outcome outright; otherwise a domain match
//     does; otherwise a category match does — in each case regardless of
//     whether the losing matches were allows or blocks.
//  3. With no match at all the default is allow: mail fails open and
//     reaches the inbox unless a rule says otherwise.
//
// Malformed senders and patterns are treated as opaque strings; the worst
// a garbage rule can do is not match.
func Decide(sender, category string, rules []Rule) Disposition {
	var byType [3]*Rule // email, domain, category

	for i := range rules {
		r := &rules[i]
		var slot int
		switch r.Type {
		case RuleTypeEmail:
			slot = 0
		case RuleTypeDomain:
			slot = 1
		case RuleTypeCategory:
			slot = 2
		default:
			continue
		}
		if byType[slot] != nil {
			continue
		}
		if r.Matches(sender, category) {
			byType[slot] = r
		}
	}

	for _, matched := range byType {
		if matched != nil {
			m := *matched
			return Disposition{Action: m.Action, MatchedRule: &m}
		}
	}
	return Disposition{Action: ActionAllow}
}
