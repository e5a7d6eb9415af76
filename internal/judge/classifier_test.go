package judge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"sift/internal/notify"
	logx "sift/pkg/logx"
)

func TestClassifyDecisions(t *testing.T) {
	tests := []struct {
		name     string
		response string
		send     bool
		reason   string
	}{
		{"send with reason", "SEND\nbank fraud alert", true, "bank fraud alert"},
		{"drop with reason", "DROP\npromotional content", false, "promotional content"},
		{"lowercase verdict", "send\nok", true, "ok"},
		{"bare verdict", "SEND", true, "judge decision"},
		{"garbage", "I think maybe yes?", false, "judge decision"},
		{"empty", "", false, "judge decision"},
	}
	for _, tt := range tests {
		cap := &fakeCapability{available: true, response: tt.response}
		c := NewClassifier(cap, logx.Nop())
		n := notify.New("mail", "MyBank", "suspicious login", time.Now())

		got := c.Classify(context.Background(), n, "")
		if got.ShouldSend != tt.send {
			t.Fatalf("%s: ShouldSend = %v, want %v", tt.name, got.ShouldSend, tt.send)
		}
		if got.Reason != tt.reason {
			t.Fatalf("%s: Reason = %q, want %q", tt.name, got.Reason, tt.reason)
		}
	}
}

func TestClassifyDefaultsToDropOnFailure(t *testing.T) {
	n := notify.New("mail", "MyBank", "statement", time.Now())

	c := NewClassifier(&fakeCapability{available: false}, logx.Nop())
	got := c.Classify(context.Background(), n, "")
	if got.ShouldSend || !strings.Contains(got.Reason, "unavailable") {
		t.Fatalf("unavailable: %+v", got)
	}

	c = NewClassifier(&fakeCapability{available: true, err: errors.New("timeout")}, logx.Nop())
	got = c.Classify(context.Background(), n, "")
	if got.ShouldSend || !strings.Contains(got.Reason, "error") {
		t.Fatalf("error: %+v", got)
	}
}

func TestClassifyCustomInstruction(t *testing.T) {
	cap := &fakeCapability{available: true, response: "SEND\nmatches instruction"}
	c := NewClassifier(cap, logx.Nop())
	n := notify.New("mail", "MyBank", "statement", time.Now())

	c.Classify(context.Background(), n, "only forward fraud alerts")
	cap.mu.Lock()
	prompt := cap.prompts[0]
	cap.mu.Unlock()
	if !strings.Contains(prompt, "only forward fraud alerts") {
		t.Fatalf("instruction missing from prompt:\n%s", prompt)
	}
}

func TestParseUrgency(t *testing.T) {
	tests := []struct {
		raw    string
		urgent bool
	}{
		{"URGENT - mentions an emergency", true},
		{"urgent", true},
		{"NORMAL", false},
		{"NOT URGENT", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := parseUrgency(tt.raw); got.Urgent != tt.urgent {
			t.Fatalf("parseUrgency(%q).Urgent = %v, want %v", tt.raw, got.Urgent, tt.urgent)
		}
	}
}

func TestParseBatchUrgency(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		count int
		want  []bool
	}{
		{"exact", "1. URGENT\n2. NORMAL\n3. URGENT", 3, []bool{true, false, true}},
		{"chatty lines skipped", "Here are my verdicts:\n1. URGENT\n2. NORMAL", 2, []bool{true, false}},
		{"short response padded", "1. URGENT", 3, []bool{true, false, false}},
		{"overlong response truncated", "1. URGENT\n2. URGENT\n3. URGENT", 2, []bool{true, true}},
		{"empty response", "", 2, []bool{false, false}},
	}
	for _, tt := range tests {
		got := parseBatchUrgency(tt.raw, tt.count)
		if len(got) != tt.count {
			t.Fatalf("%s: len = %d, want %d", tt.name, len(got), tt.count)
		}
		for i, want := range tt.want {
			if got[i].Urgent != want {
				t.Fatalf("%s: [%d].Urgent = %v, want %v", tt.name, i, got[i].Urgent, want)
			}
		}
	}
}
