// Package sinks contains the outbound channel adapters and the dispatcher
// that fans a surviving notification out to all enabled sinks.
package sinks

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"sift/internal/notify"
	logx "sift/pkg/logx"
)

// Sink is one outbound channel. Send is best-effort and independent per
// sink; a failure is reported, never propagated to other sinks.
type Sink interface {
	Name() string
	Enabled() bool
	Send(ctx context.Context, n *notify.Notification) error
}

const sendTimeout = 15 * time.Second

// Dispatcher delivers a notification to every enabled sink, rate-limited by
// a shared token bucket so a burst of forwarded notifications cannot hammer
// paid downstream channels.
type Dispatcher struct {
	sinks   []Sink
	limiter *rate.Limiter
	log     logx.Logger
}

func NewDispatcher(ss []Sink, ratePerSec int, log logx.Logger) *Dispatcher {
	if ratePerSec <= 0 {
		ratePerSec = 3
	}
	return &Dispatcher{
		sinks: ss,
		// burst = rate per sec, so short spikes don't block too hard
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
		log:     log,
	}
}

// Dispatch sends to each enabled sink in order and returns the names of the
// sinks that accepted the notification.
func (d *Dispatcher) Dispatch(ctx context.Context, n *notify.Notification) []string {
	var accepted []string
	for _, s := range d.sinks {
		if !s.Enabled() {
			continue
		}
		if err := d.limiter.Wait(ctx); err != nil {
			return accepted
		}
		callCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := s.Send(callCtx, n)
		cancel()
		if err != nil {
			d.log.Warn("sink send failed",
				logx.String("sink", s.Name()),
				logx.String("source", n.Source),
				logx.Err(err))
			continue
		}
		accepted = append(accepted, s.Name())
	}
	return accepted
}
