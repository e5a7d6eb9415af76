// Package ratelimit gates notifications after rule evaluation: content-hash
// deduplication, per-key cooldown, and an hourly cap.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"sift/internal/notify"
)

const (
	defaultMaxPerHour  = 20
	defaultCooldown    = 60 * time.Second
	defaultDedupWindow = 5 * time.Minute
)

// Config holds the limiter tunables. Zero values take the defaults above.
type Config struct {
	MaxPerHour int
	Cooldown   time.Duration
	// DedupWindow is the default duplicate-suppression window; a per-source
	// override in SourceDedupWindows takes precedence.
	DedupWindow        time.Duration
	SourceDedupWindows map[string]time.Duration
	ExemptSources      []string // bypass all limiting
	NoCooldownSources  []string // bypass only the cooldown check
}

func (c Config) withDefaults() Config {
	if c.MaxPerHour <= 0 {
		c.MaxPerHour = defaultMaxPerHour
	}
	if c.Cooldown <= 0 {
		c.Cooldown = defaultCooldown
	}
	if c.DedupWindow <= 0 {
		c.DedupWindow = defaultDedupWindow
	}
	return c
}

// Result of a single Check call.
type Result struct {
	Allowed bool
	Reason  string
}

// Limiter is the in-memory, time-windowed gatekeeper. State is process-local
// and never persisted. Safe for concurrent use; checks for the same key are
// linearized by the mutex, so two racing duplicates cannot both pass.
type Limiter struct {
	mu  sync.Mutex
	cfg Config

	exempt     map[string]struct{}
	noCooldown map[string]struct{}

	// history: dedup key -> timestamps inside the last hour.
	history map[string][]time.Time
	// recentHashes: content hash -> last time it was recorded.
	recentHashes map[string]time.Time

	now func() time.Time // injectable clock for tests
}

func New(cfg Config) *Limiter {
	l := &Limiter{
		history:      map[string][]time.Time{},
		recentHashes: map[string]time.Time{},
		now:          func() time.Time { return time.Now().UTC() },
	}
	l.applyLocked(cfg)
	return l
}

// Apply swaps the tunables at runtime (config hot reload). Accumulated
// history survives the swap.
func (l *Limiter) Apply(cfg Config) {
	l.mu.Lock()
	l.applyLocked(cfg)
	l.mu.Unlock()
}

func (l *Limiter) applyLocked(cfg Config) {
	cfg = cfg.withDefaults()
	l.cfg = cfg
	l.exempt = toSet(cfg.ExemptSources)
	l.noCooldown = toSet(cfg.NoCooldownSources)
}

func toSet(xs []string) map[string]struct{} {
	m := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		m[x] = struct{}{}
	}
	return m
}

// Check runs the fixed gate sequence: exemption, duplicate hash, lazy purge,
// cooldown, hourly cap, then record. A rejected notification never mutates
// state, so suppressed traffic does not count toward future accounting.
func (l *Limiter) Check(n *notify.Notification) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.exempt[n.Source]; ok {
		return Result{Allowed: true}
	}

	now := l.now()
	key := DedupKey(n.Source, n.Title)
	window := l.dedupWindowLocked(n.Source)

	// Duplicate check comes first, before purge and before any recording.
	hash := ContentHash(n.Source, n.Title, n.Body)
	if seen, ok := l.recentHashes[hash]; ok && now.Sub(seen) < window {
		return Result{Allowed: false, Reason: "duplicate within " + formatWindow(window)}
	}

	l.purgeLocked(now)

	if _, skip := l.noCooldown[n.Source]; !skip {
		if ts := l.history[key]; len(ts) > 0 {
			last := ts[len(ts)-1]
			if since := now.Sub(last); since < l.cfg.Cooldown {
				wait := int((l.cfg.Cooldown - since).Seconds())
				return Result{Allowed: false, Reason: fmt.Sprintf("cooldown: wait %ds", wait)}
			}
		}
	}

	hourAgo := now.Add(-time.Hour)
	recent := 0
	for _, t := range l.history[key] {
		if t.After(hourAgo) {
			recent++
		}
	}
	if recent >= l.cfg.MaxPerHour {
		return Result{Allowed: false, Reason: fmt.Sprintf("hourly limit reached (%d/hr)", l.cfg.MaxPerHour)}
	}

	l.history[key] = append(l.history[key], now)
	l.recentHashes[hash] = now
	return Result{Allowed: true}
}

func (l *Limiter) dedupWindowLocked(source string) time.Duration {
	if w, ok := l.cfg.SourceDedupWindows[source]; ok && w > 0 {
		return w
	}
	return l.cfg.DedupWindow
}

// purgeLocked drops history older than one hour and hashes older than the
// widest configured dedup window. Runs lazily on each check; no timers.
func (l *Limiter) purgeLocked(now time.Time) {
	hourAgo := now.Add(-time.Hour)
	for key, ts := range l.history {
		kept := ts[:0]
		for _, t := range ts {
			if t.After(hourAgo) {
				kept = append(kept, t)
			}
		}
		if len(kept) == 0 {
			delete(l.history, key)
		} else {
			l.history[key] = kept
		}
	}

	maxWindow := l.cfg.DedupWindow
	for _, w := range l.cfg.SourceDedupWindows {
		if w > maxWindow {
			maxWindow = w
		}
	}
	for h, seen := range l.recentHashes {
		if now.Sub(seen) > maxWindow {
			delete(l.recentHashes, h)
		}
	}
}

// Stats reports current map sizes for operational logging.
func (l *Limiter) Stats() (keys, hashes int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.history), len(l.recentHashes)
}

func formatWindow(d time.Duration) string {
	if d >= time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}
