package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sift/internal/notify"
	logx "sift/pkg/logx"
)

// Open returns a store for the configured driver.
func Open(cfg Config, log logx.Logger) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "none":
		return Nop{}, nil
	case "sqlite":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}

// Nop discards everything. Used when storage is disabled.
type Nop struct{}

func (Nop) Append(context.Context, Record) error { return nil }
func (Nop) CountByStatusSince(context.Context, time.Time) (map[notify.Status]int64, error) {
	return map[notify.Status]int64{}, nil
}
func (Nop) PruneOlderThan(context.Context, time.Time) (int64, error) { return 0, nil }
func (Nop) Ping(context.Context) error                               { return nil }
func (Nop) Close() error                                             { return nil }
