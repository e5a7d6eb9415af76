// Package rules implements the rule engine: a pure, deterministic mapping
// from a notification to a verdict (send, drop, or defer to the judge).
package rules

import (
	"fmt"
	"regexp"

	"sift/internal/notify"
)

// Action is what a matched rule asks the pipeline to do.
type Action string

const (
	ActionSend  Action = "send"
	ActionDrop  Action = "drop"
	ActionJudge Action = "judge" // defer the decision to the judgment capability
)

// ParseAction maps a config string to an Action; unknown input falls back
// to the given default.
func ParseAction(s string, def Action) Action {
	switch Action(s) {
	case ActionSend, ActionDrop, ActionJudge:
		return Action(s)
	default:
		return def
	}
}

// MatcherKind tags the predicate variant a Matcher carries.
type MatcherKind string

const (
	SenderContains    MatcherKind = "sender_contains"
	SenderNotContains MatcherKind = "sender_not_contains"
	BodyContains      MatcherKind = "body_contains"
	BodyNotContains   MatcherKind = "body_not_contains"
	Contains          MatcherKind = "contains"     // title+body combined
	NotContains       MatcherKind = "not_contains" // title+body combined
	SenderRegex       MatcherKind = "sender_regex"
	BodyRegex         MatcherKind = "body_regex"
	Regex             MatcherKind = "regex" // title+body combined
)

// Matcher is one typed predicate. A rule matches only if all of its
// matchers match (conjunction).
type Matcher struct {
	Kind    MatcherKind
	Pattern string

	// re is compiled once at construction for the regex kinds.
	// A malformed pattern leaves re nil and the matcher never matches.
	re  *regexp.Regexp
	bad bool
}

// NewMatcher builds a matcher, compiling regex kinds case-insensitively.
// A malformed regex is reported but still returns a usable matcher that
// fails closed (never matches).
func NewMatcher(kind MatcherKind, pattern string) (Matcher, error) {
	m := Matcher{Kind: kind, Pattern: pattern}
	switch kind {
	case SenderRegex, BodyRegex, Regex:
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			m.bad = true
			return m, fmt.Errorf("matcher %s: invalid pattern %q: %w", kind, pattern, err)
		}
		m.re = re
	}
	return m, nil
}

func (m Matcher) describe() string {
	switch m.Kind {
	case SenderContains:
		return fmt.Sprintf("sender contains %q", m.Pattern)
	case SenderNotContains:
		return fmt.Sprintf("sender not contains %q", m.Pattern)
	case BodyContains:
		return fmt.Sprintf("body contains %q", m.Pattern)
	case BodyNotContains:
		return fmt.Sprintf("body not contains %q", m.Pattern)
	case Contains:
		return fmt.Sprintf("contains %q", m.Pattern)
	case NotContains:
		return fmt.Sprintf("not contains %q", m.Pattern)
	case SenderRegex:
		return fmt.Sprintf("sender matches /%s/", m.Pattern)
	case BodyRegex:
		return fmt.Sprintf("body matches /%s/", m.Pattern)
	case Regex:
		return fmt.Sprintf("matches /%s/", m.Pattern)
	default:
		return string(m.Kind)
	}
}

// Rule pairs an ordered matcher set with an action.
type Rule struct {
	Matchers []Matcher
	Action   Action
	Priority notify.Priority
	Prompt   string // custom judge instruction when Action == ActionJudge
}

func (r Rule) describe() string {
	if len(r.Matchers) == 0 {
		return "empty rule"
	}
	s := ""
	for i, m := range r.Matchers {
		if i > 0 {
			s += " AND "
		}
		s += m.describe()
	}
	return s
}

// SourcePolicy is the per-source rule list plus its fallback action.
type SourcePolicy struct {
	Default Action
	Rules   []Rule
}

// Set is the full ordered rule collection the engine evaluates against.
type Set struct {
	Global         []Rule
	Sources        map[string]SourcePolicy
	UnknownSources Action
}

// Verdict is the engine's decision for one notification.
type Verdict struct {
	Action   Action
	Reason   string
	Priority notify.Priority
	Prompt   string
}
