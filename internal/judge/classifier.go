package judge

import (
	"context"
	"strings"

	"sift/internal/notify"
	logx "sift/pkg/logx"
)

// Classifier runs single-notification judgment calls. Both paths default
// conservatively on any capability failure: classification defaults to
// drop, urgency defaults to not urgent. Both are deliberate policy, kept
// separate rather than derived from one another.
type Classifier struct {
	cap Capability
	log logx.Logger
}

func NewClassifier(cap Capability, log logx.Logger) *Classifier {
	return &Classifier{cap: cap, log: log}
}

// Classify decides SEND/DROP for one notification. instruction, when
// non-empty, replaces the built-in criteria (rule-supplied prompt).
func (c *Classifier) Classify(ctx context.Context, n *notify.Notification, instruction string) Classification {
	if !c.cap.Available(ctx) {
		return Classification{ShouldSend: false, Reason: "judge unavailable, defaulting to drop"}
	}

	prompt := classifyPrompt(n)
	if instruction != "" {
		prompt = customClassifyPrompt(n, instruction)
	}

	raw, err := c.cap.Generate(ctx, prompt, 256)
	if err != nil {
		c.log.Warn("judge classify failed", logx.String("source", n.Source), logx.Err(err))
		return Classification{ShouldSend: false, Reason: "judge error, defaulting to drop"}
	}
	return parseClassification(raw)
}

// Urgent runs the non-batched urgency check used by the drop-override path.
func (c *Classifier) Urgent(ctx context.Context, n *notify.Notification, isGroup bool) Urgency {
	if !c.cap.Available(ctx) {
		return Urgency{Urgent: false, Reason: "judge unavailable"}
	}

	raw, err := c.cap.Generate(ctx, urgencyPrompt(n, isGroup), 128)
	if err != nil {
		c.log.Warn("judge urgency failed", logx.String("source", n.Source), logx.Err(err))
		return Urgency{Urgent: false, Reason: "judge error"}
	}
	return parseUrgency(raw)
}

// urgentBatch judges a whole batch in one call, one verdict line per item.
// Always returns exactly len(batch) results.
func (c *Classifier) urgentBatch(ctx context.Context, batch []*notify.Notification) []Urgency {
	if !c.cap.Available(ctx) {
		return repeatUrgency(len(batch), Urgency{Urgent: false, Reason: "judge unavailable"})
	}

	raw, err := c.cap.Generate(ctx, batchUrgencyPrompt(batch), 256)
	if err != nil {
		c.log.Warn("judge batch failed", logx.Int("size", len(batch)), logx.Err(err))
		return repeatUrgency(len(batch), Urgency{Urgent: false, Reason: "judge error"})
	}
	return parseBatchUrgency(raw, len(batch))
}

func parseClassification(raw string) Classification {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	first := ""
	if len(lines) > 0 {
		first = strings.ToUpper(strings.TrimSpace(lines[0]))
	}
	reason := "judge decision"
	if len(lines) > 1 {
		reason = strings.TrimSpace(lines[1])
	}
	return Classification{ShouldSend: first == "SEND", Reason: reason}
}

func parseUrgency(raw string) Urgency {
	raw = strings.TrimSpace(raw)
	fields := strings.Fields(raw)
	urgent := len(fields) > 0 && strings.ToUpper(fields[0]) == "URGENT"
	reason := "no response"
	if raw != "" {
		reason = strings.SplitN(raw, "\n", 2)[0]
	}
	return Urgency{Urgent: urgent, Reason: reason}
}

// parseBatchUrgency extracts one verdict per response line. Lines that name
// neither verdict are skipped; missing tail entries default to NORMAL so no
// caller is left without an answer.
func parseBatchUrgency(raw string, count int) []Urgency {
	out := make([]Urgency, 0, count)
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		upper := strings.ToUpper(line)
		switch {
		case strings.Contains(upper, "URGENT"):
			out = append(out, Urgency{Urgent: true, Reason: "URGENT"})
		case strings.Contains(upper, "NORMAL"):
			out = append(out, Urgency{Urgent: false, Reason: "NORMAL"})
		}
		if len(out) == count {
			break
		}
	}
	for len(out) < count {
		out = append(out, Urgency{Urgent: false, Reason: "default"})
	}
	return out
}

func repeatUrgency(n int, u Urgency) []Urgency {
	out := make([]Urgency, n)
	for i := range out {
		out[i] = u
	}
	return out
}
