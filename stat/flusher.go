package stat

import (
	"context"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

const DefaultFlushInterval = time.Minute

type FlushTarget interface {
	Flush(ctx context.Context) error
}

// Flusher runs Flush on a fixed cadence. A failed flush is logged and the
// loop keeps going; one last flush runs after the context is done.
type Flusher struct {
	target   FlushTarget
	interval time.Duration
	logger   glog.Logger
}

func NewFlusher(target FlushTarget, interval time.Duration, logger glog.Logger) *Flusher {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Flusher{
		target:   target,
		interval: interval,
		logger:   glog.Ensure(logger),
	}
}

func (f *Flusher) Interval() time.Duration {
	if f == nil {
		return 0
	}
	return f.interval
}

// Run blocks until ctx is done.
func (f *Flusher) Run(ctx context.Context) error {
	if f == nil || f.target == nil {
		return fmt.Errorf("stat: flusher target is required")
	}
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := f.target.Flush(context.WithoutCancel(ctx)); err != nil {
				f.logger.Error("final stat flush failed", "error", err)
			}
			return nil
		case <-ticker.C:
			if err := f.target.Flush(ctx); err != nil {
				f.logger.Error("stat flush failed", "error", err)
			}
		}
	}
}
