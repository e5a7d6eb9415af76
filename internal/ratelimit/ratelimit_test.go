package ratelimit

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"sift/internal/notify"
)

// testClock drives the limiter's injected clock.
type testClock struct{ t time.Time }

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(cfg Config) (*Limiter, *testClock) {
	l := New(cfg)
	clk := &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l.now = clk.now
	return l, clk
}

func TestCheckDuplicateWithinWindow(t *testing.T) {
	l, clk := newTestLimiter(Config{DedupWindow: 5 * time.Minute, Cooldown: time.Second})

	n := notify.New("messages", "Bob", "lunch?", clk.t)
	if res := l.Check(n); !res.Allowed {
		t.Fatalf("first: %q", res.Reason)
	}

	clk.advance(2 * time.Minute)
	res := l.Check(notify.New("messages", "Bob", "lunch?", clk.t))
	if res.Allowed {
		t.Fatalf("duplicate allowed")
	}
	if !strings.Contains(res.Reason, "duplicate within") {
		t.Fatalf("reason = %q", res.Reason)
	}

	// Past the window the same content is fresh again.
	clk.advance(4 * time.Minute)
	if res := l.Check(notify.New("messages", "Bob", "lunch?", clk.t)); !res.Allowed {
		t.Fatalf("after window: %q", res.Reason)
	}
}

func TestCheckDuplicateIgnoresEmojiAndCase(t *testing.T) {
	l, clk := newTestLimiter(Config{})

	if res := l.Check(notify.New("messages", "Bob", "See you soon 🎉", clk.t)); !res.Allowed {
		t.Fatalf("first: %q", res.Reason)
	}
	clk.advance(time.Minute + time.Second)
	if res := l.Check(notify.New("messages", "Bob", "see you soon", clk.t)); res.Allowed {
		t.Fatalf("emoji/case variant not deduped")
	}
}

func TestCheckCooldown(t *testing.T) {
	l, clk := newTestLimiter(Config{Cooldown: 60 * time.Second, DedupWindow: time.Second})

	if res := l.Check(notify.New("messages", "Bob", "one", clk.t)); !res.Allowed {
		t.Fatalf("first: %q", res.Reason)
	}

	// Different body dodges the dedup hash but hits the per-key cooldown.
	clk.advance(10 * time.Second)
	res := l.Check(notify.New("messages", "Bob", "two", clk.t))
	if res.Allowed {
		t.Fatalf("cooldown not enforced")
	}
	if res.Reason != "cooldown: wait 50s" {
		t.Fatalf("reason = %q", res.Reason)
	}

	clk.advance(51 * time.Second)
	if res := l.Check(notify.New("messages", "Bob", "three", clk.t)); !res.Allowed {
		t.Fatalf("after cooldown: %q", res.Reason)
	}
}

func TestCheckHourlyCap(t *testing.T) {
	l, clk := newTestLimiter(Config{
		MaxPerHour:        3,
		Cooldown:          time.Second,
		DedupWindow:       time.Second,
		NoCooldownSources: []string{"messages"},
	})

	for i := 0; i < 3; i++ {
		clk.advance(2 * time.Second)
		n := notify.New("messages", "Bob", fmt.Sprintf("msg %d", i), clk.t)
		if res := l.Check(n); !res.Allowed {
			t.Fatalf("send %d: %q", i, res.Reason)
		}
	}

	clk.advance(2 * time.Second)
	res := l.Check(notify.New("messages", "Bob", "over cap", clk.t))
	if res.Allowed {
		t.Fatalf("cap not enforced")
	}
	if res.Reason != "hourly limit reached (3/hr)" {
		t.Fatalf("reason = %q", res.Reason)
	}

	// Another sender has its own budget.
	if res := l.Check(notify.New("messages", "Alice", "hello", clk.t)); !res.Allowed {
		t.Fatalf("other key: %q", res.Reason)
	}

	// An hour later the window has rolled off.
	clk.advance(time.Hour + time.Second)
	if res := l.Check(notify.New("messages", "Bob", "new hour", clk.t)); !res.Allowed {
		t.Fatalf("after an hour: %q", res.Reason)
	}
}

func TestCheckExemptSourceBypassesEverything(t *testing.T) {
	l, clk := newTestLimiter(Config{
		MaxPerHour:    1,
		ExemptSources: []string{"phone"},
	})

	for i := 0; i < 5; i++ {
		if res := l.Check(notify.New("phone", "Mum", "Incoming call", clk.t)); !res.Allowed {
			t.Fatalf("exempt call %d: %q", i, res.Reason)
		}
	}

	// Exempt checks leave no accounting behind.
	keys, hashes := l.Stats()
	if keys != 0 || hashes != 0 {
		t.Fatalf("exempt source recorded state: keys=%d hashes=%d", keys, hashes)
	}
}

func TestCheckRejectionDoesNotMutate(t *testing.T) {
	l, clk := newTestLimiter(Config{Cooldown: 60 * time.Second})

	if res := l.Check(notify.New("messages", "Bob", "one", clk.t)); !res.Allowed {
		t.Fatalf("first: %q", res.Reason)
	}
	keys, hashes := l.Stats()

	// Rejected checks must not extend the cooldown or add hashes.
	clk.advance(10 * time.Second)
	for i := 0; i < 3; i++ {
		if res := l.Check(notify.New("messages", "Bob", "spam", clk.t)); res.Allowed {
			t.Fatalf("expected rejection")
		}
	}
	if k, h := l.Stats(); k != keys || h != hashes {
		t.Fatalf("rejection mutated state: keys %d->%d hashes %d->%d", keys, k, hashes, h)
	}

	// The original cooldown anchor still applies.
	clk.advance(51 * time.Second)
	if res := l.Check(notify.New("messages", "Bob", "later", clk.t)); !res.Allowed {
		t.Fatalf("cooldown anchor moved: %q", res.Reason)
	}
}

func TestCheckPerSourceDedupWindow(t *testing.T) {
	l, clk := newTestLimiter(Config{
		Cooldown:    time.Second,
		DedupWindow: time.Minute,
		SourceDedupWindows: map[string]time.Duration{
			"whatsapp": 24 * time.Hour,
		},
	})

	if res := l.Check(notify.New("whatsapp", "Family", "photo", clk.t)); !res.Allowed {
		t.Fatalf("first: %q", res.Reason)
	}
	clk.advance(2 * time.Hour)
	res := l.Check(notify.New("whatsapp", "Family", "photo", clk.t))
	if res.Allowed {
		t.Fatalf("24h window not honored")
	}
	if res.Reason != "duplicate within 24h" {
		t.Fatalf("reason = %q", res.Reason)
	}
}

func TestPurgeDropsStaleState(t *testing.T) {
	l, clk := newTestLimiter(Config{Cooldown: time.Second, DedupWindow: time.Minute})

	if res := l.Check(notify.New("messages", "Bob", "one", clk.t)); !res.Allowed {
		t.Fatalf("first: %q", res.Reason)
	}

	clk.advance(2 * time.Hour)
	// Any later check triggers the lazy purge of >1h history and expired hashes.
	if res := l.Check(notify.New("messages", "Alice", "two", clk.t)); !res.Allowed {
		t.Fatalf("second: %q", res.Reason)
	}
	keys, hashes := l.Stats()
	if keys != 1 || hashes != 1 {
		t.Fatalf("stale state survived purge: keys=%d hashes=%d", keys, hashes)
	}
}

func TestApplyKeepsHistory(t *testing.T) {
	l, clk := newTestLimiter(Config{Cooldown: 60 * time.Second})

	if res := l.Check(notify.New("messages", "Bob", "one", clk.t)); !res.Allowed {
		t.Fatalf("first: %q", res.Reason)
	}

	l.Apply(Config{Cooldown: 30 * time.Second})
	clk.advance(10 * time.Second)
	res := l.Check(notify.New("messages", "Bob", "two", clk.t))
	if res.Allowed {
		t.Fatalf("history lost on Apply")
	}
	if res.Reason != "cooldown: wait 20s" {
		t.Fatalf("reason = %q", res.Reason)
	}
}
