package judge

import (
	"context"
	"sync"
	"time"

	"sift/internal/notify"
	logx "sift/pkg/logx"
)

const (
	defaultBatchWindow = 60 * time.Second
	defaultMaxBatch    = 30
)

// BatcherConfig tunes the accumulation window and the size cap.
type BatcherConfig struct {
	Window   time.Duration
	MaxBatch int
}

func (c BatcherConfig) withDefaults() BatcherConfig {
	if c.Window <= 0 {
		c.Window = defaultBatchWindow
	}
	if c.MaxBatch <= 0 {
		c.MaxBatch = defaultMaxBatch
	}
	return c
}

type request struct {
	n *notify.Notification
	// ch is buffered(1) and written exactly once, by whichever flush owns
	// the batch this request joined.
	ch chan Urgency
}

// Batcher coalesces concurrent urgency checks into one judgment call.
//
// A batch accumulates from the first request until either the window timer
// elapses or the batch reaches MaxBatch, whichever happens first; the two
// triggers are exclusive. Flushing detaches the batch under the lock, so
// new arrivals start a fresh batch and never interleave with one in flight.
type Batcher struct {
	cl  *Classifier
	log logx.Logger

	mu      sync.Mutex
	cfg     BatcherConfig
	pending []*request
	timer   *time.Timer
	// gen identifies the accumulating batch. The window timer captures the
	// generation it was armed for and refuses to flush any other, so a
	// stale timer racing a size-triggered flush cannot touch the next batch.
	gen uint64
}

func NewBatcher(cfg BatcherConfig, cl *Classifier, log logx.Logger) *Batcher {
	return &Batcher{cfg: cfg.withDefaults(), cl: cl, log: log}
}

// Apply updates the tunables; the batch currently accumulating finishes
// under its old settings.
func (b *Batcher) Apply(cfg BatcherConfig) {
	b.mu.Lock()
	b.cfg = cfg.withDefaults()
	b.mu.Unlock()
}

// Analyze queues the notification for the next batched judgment call and
// blocks until its verdict arrives. Never blocks past ctx: cancellation
// yields the conservative default while the batch still resolves normally
// for everyone else.
func (b *Batcher) Analyze(ctx context.Context, n *notify.Notification) Urgency {
	r := &request{n: n, ch: make(chan Urgency, 1)}

	b.mu.Lock()
	b.pending = append(b.pending, r)
	switch {
	case len(b.pending) == 1:
		b.gen++
		gen := b.gen
		b.timer = time.AfterFunc(b.cfg.Window, func() { b.windowElapsed(gen) })
	case len(b.pending) >= b.cfg.MaxBatch:
		batch := b.detachLocked()
		go b.flush(batch)
	}
	size := len(b.pending)
	b.mu.Unlock()

	if size > 0 {
		b.log.Debug("urgency check queued", logx.String("source", n.Source), logx.Int("pending", size))
	}

	select {
	case u := <-r.ch:
		return u
	case <-ctx.Done():
		return Urgency{Urgent: false, Reason: "cancelled"}
	}
}

func (b *Batcher) windowElapsed(gen uint64) {
	b.mu.Lock()
	if b.gen != gen || len(b.pending) == 0 {
		// A size-triggered flush already took this batch.
		b.mu.Unlock()
		return
	}
	batch := b.detachLocked()
	b.mu.Unlock()
	b.flush(batch)
}

// detachLocked atomically swaps out the pending list and disarms the timer.
// Callers must hold b.mu.
func (b *Batcher) detachLocked() []*request {
	batch := b.pending
	b.pending = nil
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	return batch
}

// flush issues exactly one judgment call for the batch and resolves every
// request in it. Runs outside the lock so accumulation of the next batch
// is never blocked by a slow capability.
func (b *Batcher) flush(batch []*request) {
	if len(batch) == 0 {
		return
	}
	b.log.Debug("flushing urgency batch", logx.Int("size", len(batch)))

	if len(batch) == 1 {
		u := b.cl.Urgent(context.Background(), batch[0].n, false)
		batch[0].ch <- u
		return
	}

	items := make([]*notify.Notification, len(batch))
	for i, r := range batch {
		items[i] = r.n
	}
	results := b.cl.urgentBatch(context.Background(), items)
	for i, r := range batch {
		r.ch <- results[i]
	}
}
