package app

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"sift/internal/ratelimit"
	"sift/internal/storage"
	logx "sift/pkg/logx"
)

// maintenance runs the periodic housekeeping jobs: a nightly retention
// prune of the notification log and an hourly stats line.
type maintenance struct {
	mu sync.Mutex
	c  *cron.Cron

	store     storage.Store
	limiter   *ratelimit.Limiter
	retention time.Duration
	log       logx.Logger
}

func newMaintenance(store storage.Store, limiter *ratelimit.Limiter, retention time.Duration, log logx.Logger) *maintenance {
	return &maintenance{
		store:     store,
		limiter:   limiter,
		retention: retention,
		log:       log,
	}
}

func (m *maintenance) start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.c != nil {
		return
	}
	m.c = cron.New()
	if m.retention > 0 {
		_, _ = m.c.AddFunc("15 4 * * *", m.prune)
	}
	_, _ = m.c.AddFunc("@hourly", m.stats)
	m.c.Start()
}

func (m *maintenance) stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.c == nil {
		return
	}
	<-m.c.Stop().Done()
	m.c = nil
}

func (m *maintenance) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-m.retention)
	n, err := m.store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		if err != storage.ErrDisabled {
			m.log.Warn("retention prune failed", logx.Err(err))
		}
		return
	}
	if n > 0 {
		m.log.Info("retention prune", logx.Int64("deleted", n), logx.Time("cutoff", cutoff))
	}
}

func (m *maintenance) stats() {
	keys, hashes := m.limiter.Stats()
	fields := []logx.Field{
		logx.Int("rate_keys", keys),
		logx.Int("dedup_hashes", hashes),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	counts, err := m.store.CountByStatusSince(ctx, time.Now().UTC().Add(-time.Hour))
	if err == nil {
		for status, n := range counts {
			fields = append(fields, logx.Int64(string(status), n))
		}
	}
	m.log.Info("hourly stats", fields...)
}
