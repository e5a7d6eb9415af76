// Package notify holds the domain types shared by the decision pipeline:
// the notification itself, its priority, and its final status.
package notify

import (
	"strings"
	"time"
)

// Status is the final disposition of a notification.
type Status string

const (
	StatusPending     Status = "pending"
	StatusSent        Status = "sent"
	StatusDropped     Status = "dropped"
	StatusRateLimited Status = "rate_limited"
)

// Priority is set by rule matches and consumed by push sinks.
type Priority string

const (
	PriorityDefault  Priority = "default"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ParsePriority maps a config string to a Priority, defaulting on unknown input.
func ParsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return PriorityHigh
	case "critical":
		return PriorityCritical
	default:
		return PriorityDefault
	}
}

// Notification is the unit of work flowing through the pipeline.
//
// Created at ingestion, enriched by the rule engine (priority, action URL),
// finalized by the pipeline. Treated as immutable once dispatched to sinks.
type Notification struct {
	Source     string // lower-cased app/channel identifier
	Title      string // sender or subject line
	Body       string
	ReceivedAt time.Time

	Priority  Priority
	ActionURL string // optional tel:/sms: callback target

	Status Status
	Reason string
}

// New builds a notification from raw ingestion fields.
// The source is lower-cased; a zero timestamp defaults to now.
func New(source, title, body string, at time.Time) *Notification {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return &Notification{
		Source:     strings.ToLower(strings.TrimSpace(source)),
		Title:      title,
		Body:       body,
		ReceivedAt: at,
		Priority:   PriorityDefault,
		Status:     StatusPending,
	}
}

// Outcome is what the ingestion caller gets back.
type Outcome struct {
	Status Status `json:"status"`
	Reason string `json:"reason"`
}
