package rules

import (
	"fmt"
	"strings"

	"sift/internal/notify"
)

// Engine evaluates notifications against a rule set.
//
// Evaluate is a pure function of its inputs: no I/O, no mutation, safe for
// concurrent use. Evaluation order is global rules, then source rules, then
// the source default, then the unknown-source default; the first rule whose
// matchers all match wins.
type Engine struct {
	set Set
}

func NewEngine(set Set) *Engine {
	if set.UnknownSources == "" {
		set.UnknownSources = ActionDrop
	}
	return &Engine{set: set}
}

// Evaluate never fails: every notification resolves to some action through
// the fallback chain.
func (e *Engine) Evaluate(n *notify.Notification) Verdict {
	title := Normalize(strings.ToLower(n.Title))
	body := Normalize(strings.ToLower(n.Body))
	combined := title + " " + body

	for _, rule := range e.set.Global {
		if matchesRule(rule, title, body, combined) {
			return verdictFor(rule, "global rule: "+rule.describe())
		}
	}

	policy, ok := e.set.Sources[n.Source]
	if !ok {
		return Verdict{
			Action:   e.set.UnknownSources,
			Reason:   fmt.Sprintf("unknown source %q", n.Source),
			Priority: notify.PriorityDefault,
		}
	}

	for _, rule := range policy.Rules {
		if matchesRule(rule, title, body, combined) {
			return verdictFor(rule, "matched rule: "+rule.describe())
		}
	}

	def := policy.Default
	if def == "" {
		def = ActionDrop
	}
	return Verdict{
		Action:   def,
		Reason:   "source default: " + string(def),
		Priority: notify.PriorityDefault,
	}
}

func verdictFor(rule Rule, reason string) Verdict {
	prio := rule.Priority
	if prio == "" {
		prio = notify.PriorityDefault
	}
	action := rule.Action
	if action == "" {
		action = ActionSend
	}
	return Verdict{Action: action, Reason: reason, Priority: prio, Prompt: rule.Prompt}
}

func matchesRule(rule Rule, title, body, combined string) bool {
	for _, m := range rule.Matchers {
		if !matches(m, title, body, combined) {
			return false
		}
	}
	return true
}

func matches(m Matcher, title, body, combined string) bool {
	switch m.Kind {
	case SenderContains:
		return strings.Contains(title, strings.ToLower(m.Pattern))
	case SenderNotContains:
		return !strings.Contains(title, strings.ToLower(m.Pattern))
	case BodyContains:
		return strings.Contains(body, strings.ToLower(m.Pattern))
	case BodyNotContains:
		return !strings.Contains(body, strings.ToLower(m.Pattern))
	case Contains:
		return strings.Contains(combined, strings.ToLower(m.Pattern))
	case NotContains:
		return !strings.Contains(combined, strings.ToLower(m.Pattern))
	case SenderRegex:
		return m.re != nil && m.re.MatchString(title)
	case BodyRegex:
		return m.re != nil && m.re.MatchString(body)
	case Regex:
		return m.re != nil && m.re.MatchString(combined)
	default:
		// Unknown kinds fail closed, same as malformed regexes.
		return false
	}
}
