package rules

import (
	"strings"
	"testing"
	"time"

	"sift/internal/notify"
)

func mkMatcher(t *testing.T, kind MatcherKind, pattern string) Matcher {
	t.Helper()
	m, err := NewMatcher(kind, pattern)
	if err != nil {
		t.Fatalf("NewMatcher(%s, %q): %v", kind, pattern, err)
	}
	return m
}

func note(source, title, body string) *notify.Notification {
	return notify.New(source, title, body, time.Now())
}

func TestEvaluatePrecedence(t *testing.T) {
	set := Set{
		Global: []Rule{
			{Matchers: []Matcher{mkMatcher(t, Contains, "verification code")}, Action: ActionSend},
		},
		Sources: map[string]SourcePolicy{
			"messages": {
				Default: ActionDrop,
				Rules: []Rule{
					{Matchers: []Matcher{mkMatcher(t, SenderContains, "mum")}, Action: ActionSend},
					{Matchers: []Matcher{mkMatcher(t, SenderContains, "mum")}, Action: ActionDrop},
				},
			},
			"mail": {Default: ActionSend},
		},
		UnknownSources: ActionDrop,
	}
	eng := NewEngine(set)

	tests := []struct {
		name   string
		n      *notify.Notification
		action Action
		reason string
	}{
		{"global beats source rules", note("messages", "Mum", "your verification code is 123"), ActionSend, "global rule:"},
		{"first source rule wins", note("messages", "Mum", "dinner?"), ActionSend, "matched rule:"},
		{"source default", note("messages", "Unknown", "hello"), ActionDrop, "source default: drop"},
		{"send default", note("mail", "Newsletter", "weekly digest"), ActionSend, "source default: send"},
		{"unknown source", note("randomapp", "Hi", "there"), ActionDrop, `unknown source "randomapp"`},
	}
	for _, tt := range tests {
		v := eng.Evaluate(tt.n)
		if v.Action != tt.action {
			t.Fatalf("%s: action = %s, want %s (reason %q)", tt.name, v.Action, tt.action, v.Reason)
		}
		if !strings.Contains(v.Reason, tt.reason) {
			t.Fatalf("%s: reason = %q, want contains %q", tt.name, v.Reason, tt.reason)
		}
	}
}

func TestEvaluateConjunction(t *testing.T) {
	rule := Rule{
		Matchers: []Matcher{
			mkMatcher(t, SenderContains, "weather"),
			mkMatcher(t, BodyContains, "storm"),
			mkMatcher(t, BodyNotContains, "test"),
		},
		Action:   ActionSend,
		Priority: notify.PriorityHigh,
	}
	eng := NewEngine(Set{
		Sources: map[string]SourcePolicy{
			"weatherapp": {Default: ActionDrop, Rules: []Rule{rule}},
		},
	})

	v := eng.Evaluate(note("weatherapp", "Weather Alert", "Storm warning for your area"))
	if v.Action != ActionSend || v.Priority != notify.PriorityHigh {
		t.Fatalf("all matchers hold: got %s/%s", v.Action, v.Priority)
	}

	// One failing matcher defeats the rule.
	v = eng.Evaluate(note("weatherapp", "Weather Alert", "Storm warning, this is a test"))
	if v.Action != ActionDrop {
		t.Fatalf("not_contains violated: got %s, want drop", v.Action)
	}
	v = eng.Evaluate(note("weatherapp", "Weather Alert", "Sunny tomorrow"))
	if v.Action != ActionDrop {
		t.Fatalf("body_contains missing: got %s, want drop", v.Action)
	}
}

func TestEvaluateCaseAndMarksInsensitive(t *testing.T) {
	eng := NewEngine(Set{
		Sources: map[string]SourcePolicy{
			"messages": {
				Default: ActionDrop,
				Rules:   []Rule{{Matchers: []Matcher{mkMatcher(t, SenderContains, "mum")}, Action: ActionSend}},
			},
		},
	})

	// iOS wraps sender names in bidi isolate marks.
	v := eng.Evaluate(note("messages", "\u2068MUM\u2069", "hi"))
	if v.Action != ActionSend {
		t.Fatalf("got %s, want send (reason %q)", v.Action, v.Reason)
	}
}

func TestEvaluateRegexKinds(t *testing.T) {
	eng := NewEngine(Set{
		Sources: map[string]SourcePolicy{
			"mail": {
				Default: ActionDrop,
				Rules: []Rule{
					{Matchers: []Matcher{mkMatcher(t, BodyRegex, `order #\d+`)}, Action: ActionSend},
					{Matchers: []Matcher{mkMatcher(t, SenderRegex, `^no-?reply`)}, Action: ActionDrop},
				},
			},
		},
	})

	if v := eng.Evaluate(note("mail", "Shop", "Your order #4521 has shipped")); v.Action != ActionSend {
		t.Fatalf("body_regex: got %s, want send", v.Action)
	}
	if v := eng.Evaluate(note("mail", "noreply@example.com", "hello")); v.Action != ActionDrop {
		t.Fatalf("sender_regex: got %s, want drop", v.Action)
	}
}

func TestMalformedRegexFailsClosed(t *testing.T) {
	m, err := NewMatcher(BodyRegex, `unclosed(`)
	if err == nil {
		t.Fatalf("expected compile error")
	}
	eng := NewEngine(Set{
		Sources: map[string]SourcePolicy{
			"mail": {
				Default: ActionSend,
				Rules:   []Rule{{Matchers: []Matcher{m}, Action: ActionDrop}},
			},
		},
	})

	// The broken rule never matches; evaluation falls through to the default.
	if v := eng.Evaluate(note("mail", "Shop", "unclosed( literally")); v.Action != ActionSend {
		t.Fatalf("got %s, want send via default", v.Action)
	}
}

func TestJudgeVerdictCarriesPrompt(t *testing.T) {
	eng := NewEngine(Set{
		Sources: map[string]SourcePolicy{
			"mail": {
				Default: ActionDrop,
				Rules: []Rule{{
					Matchers: []Matcher{mkMatcher(t, SenderContains, "bank")},
					Action:   ActionJudge,
					Prompt:   "only forward fraud alerts",
				}},
			},
		},
	})

	v := eng.Evaluate(note("mail", "MyBank", "statement ready"))
	if v.Action != ActionJudge {
		t.Fatalf("got %s, want judge", v.Action)
	}
	if v.Prompt != "only forward fraud alerts" {
		t.Fatalf("prompt = %q", v.Prompt)
	}
}

func TestUnknownSourcesDefault(t *testing.T) {
	eng := NewEngine(Set{})
	if v := eng.Evaluate(note("mystery", "x", "y")); v.Action != ActionDrop {
		t.Fatalf("zero-value set: got %s, want drop", v.Action)
	}

	eng = NewEngine(Set{UnknownSources: ActionSend})
	if v := eng.Evaluate(note("mystery", "x", "y")); v.Action != ActionSend {
		t.Fatalf("configured unknown_sources: got %s, want send", v.Action)
	}
}

func TestNormalizeStripsInvisibleMarks(t *testing.T) {
	tests := []struct{ in, want string }{
		{"\u2068Mum\u2069", "Mum"},
		{"a\u200bb\ufeffc", "abc"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
