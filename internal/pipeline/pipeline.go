// Package pipeline composes the rule engine, the rate limiter, the judge,
// and the sink set into the end-to-end decision flow for one notification.
package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"sift/internal/eventbus"
	"sift/internal/judge"
	"sift/internal/notify"
	"sift/internal/ratelimit"
	"sift/internal/rules"
	logx "sift/pkg/logx"
)

// Classifier is the single-call judgment path (defer-to-judge verdicts).
type Classifier interface {
	Classify(ctx context.Context, n *notify.Notification, instruction string) judge.Classification
}

// UrgencyAnalyzer is the batched judgment path (drop-override checks).
type UrgencyAnalyzer interface {
	Analyze(ctx context.Context, n *notify.Notification) judge.Urgency
}

// Dispatcher fans a surviving notification out to the sink set.
type Dispatcher interface {
	Dispatch(ctx context.Context, n *notify.Notification) []string
}

// Config holds the pipeline's own tunables; component tunables live with
// the components.
type Config struct {
	// UrgencyOverride enables the second-chance urgency check for rule-dropped
	// notifications.
	UrgencyOverride bool
	// UrgencySources allow-lists sources eligible for the override.
	// Empty means every source is eligible.
	UrgencySources []string
}

// Event bus types published per finalized notification.
const (
	EventSent        = "notification.sent"
	EventDropped     = "notification.dropped"
	EventRateLimited = "notification.rate_limited"
)

// OutcomeEvent is the (notification, outcome, reason) triple emitted for
// external persistence.
type OutcomeEvent struct {
	Source    string          `json:"source"`
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	Priority  notify.Priority `json:"priority"`
	ActionURL string          `json:"action_url,omitempty"`
	At        time.Time       `json:"at"`
	Status    notify.Status   `json:"status"`
	Reason    string          `json:"reason"`
}

// GroupChatFunc decides whether a notification looks like a group
// conversation; group chatter is never promoted by the urgency override.
type GroupChatFunc func(n *notify.Notification) bool

// DefaultGroupChat keeps the reference markers: WhatsApp group prefixes,
// an explicit "Group" word, or a comma-separated member list in the title.
func DefaultGroupChat(n *notify.Notification) bool {
	return strings.Contains(n.Title, "~") ||
		strings.Contains(n.Title, "Group") ||
		strings.Contains(n.Title, ", ")
}

type Pipeline struct {
	mu  sync.RWMutex
	cfg Config
	eng *rules.Engine

	limiter    *ratelimit.Limiter
	classifier Classifier
	urgency    UrgencyAnalyzer
	sinks      Dispatcher
	bus        eventbus.Bus
	isGroup    GroupChatFunc
	log        logx.Logger
}

func New(cfg Config, eng *rules.Engine, limiter *ratelimit.Limiter, cl Classifier, ua UrgencyAnalyzer, d Dispatcher, bus eventbus.Bus, log logx.Logger) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		eng:        eng,
		limiter:    limiter,
		classifier: cl,
		urgency:    ua,
		sinks:      d,
		bus:        bus,
		isGroup:    DefaultGroupChat,
		log:        log,
	}
}

// SetGroupChatFunc replaces the group-chat heuristic. Intended for tests
// and for deployments whose messengers mark groups differently.
func (p *Pipeline) SetGroupChatFunc(fn GroupChatFunc) {
	p.mu.Lock()
	if fn != nil {
		p.isGroup = fn
	}
	p.mu.Unlock()
}

// Reload swaps the rule engine and pipeline tunables on config change.
func (p *Pipeline) Reload(cfg Config, eng *rules.Engine) {
	p.mu.Lock()
	p.cfg = cfg
	if eng != nil {
		p.eng = eng
	}
	p.mu.Unlock()
}

// SetDispatcher swaps the sink set on config change. Notifications already
// past the dispatch point keep the old set.
func (p *Pipeline) SetDispatcher(d Dispatcher) {
	p.mu.Lock()
	if d != nil {
		p.sinks = d
	}
	p.mu.Unlock()
}

// Process runs the full decision flow and returns a definite outcome.
// Nothing is left pending: every path finalizes the notification.
func (p *Pipeline) Process(ctx context.Context, n *notify.Notification) notify.Outcome {
	p.mu.RLock()
	cfg := p.cfg
	eng := p.eng
	isGroup := p.isGroup
	dispatch := p.sinks
	p.mu.RUnlock()

	verdict := eng.Evaluate(n)

	if verdict.Action == rules.ActionDrop {
		// Second chance: genuinely urgent messages get through even when a
		// rule drops them. Group chatter never qualifies.
		if cfg.UrgencyOverride && !isGroup(n) && sourceAllowed(cfg.UrgencySources, n.Source) {
			if u := p.urgency.Analyze(ctx, n); u.Urgent {
				p.log.Info("urgency override", logx.String("source", n.Source), logx.String("reason", u.Reason))
				verdict.Action = rules.ActionSend
				verdict.Reason = "urgency: " + u.Reason
			}
		}
		if verdict.Action == rules.ActionDrop {
			return p.finalize(n, notify.StatusDropped, verdict.Reason)
		}
	}

	if res := p.limiter.Check(n); !res.Allowed {
		return p.finalize(n, notify.StatusRateLimited, res.Reason)
	}

	if verdict.Action == rules.ActionJudge {
		cl := p.classifier.Classify(ctx, n, verdict.Prompt)
		if !cl.ShouldSend {
			return p.finalize(n, notify.StatusDropped, "judge: "+cl.Reason)
		}
		verdict.Reason = "judge: " + cl.Reason
	}

	n.Priority = verdict.Priority
	accepted := dispatch.Dispatch(ctx, n)
	reason := verdict.Reason + " -> sent to: " + strings.Join(accepted, ", ")
	return p.finalize(n, notify.StatusSent, reason)
}

func (p *Pipeline) finalize(n *notify.Notification, status notify.Status, reason string) notify.Outcome {
	n.Status = status
	n.Reason = reason

	switch status {
	case notify.StatusSent:
		p.log.Info("sent", logx.String("source", n.Source), logx.String("title", n.Title), logx.String("reason", reason))
	case notify.StatusDropped:
		p.log.Info("dropped", logx.String("source", n.Source), logx.String("title", n.Title), logx.String("reason", reason))
	case notify.StatusRateLimited:
		p.log.Info("rate limited", logx.String("source", n.Source), logx.String("title", n.Title), logx.String("reason", reason))
	}

	if p.bus != nil {
		p.bus.Publish(eventbus.Event{
			Type: eventType(status),
			Data: OutcomeEvent{
				Source:    n.Source,
				Title:     n.Title,
				Body:      n.Body,
				Priority:  n.Priority,
				ActionURL: n.ActionURL,
				At:        n.ReceivedAt,
				Status:    status,
				Reason:    reason,
			},
		})
	}
	return notify.Outcome{Status: status, Reason: reason}
}

func eventType(status notify.Status) string {
	switch status {
	case notify.StatusSent:
		return EventSent
	case notify.StatusRateLimited:
		return EventRateLimited
	default:
		return EventDropped
	}
}

func sourceAllowed(allowed []string, source string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, s := range allowed {
		if s == source {
			return true
		}
	}
	return false
}
