package service

import (
	"context"
	"time"

	"codearena/internal/common/cache"
	"codearena/internal/submission/repository"
	"codearena/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	sweeperLockKey = "submission:sweeper:lock"

	defaultSweepWindow   = 10 * time.Minute
	defaultSweepInterval = time.Minute

	staleMessage = "evaluation did not complete"
)

// Sweeper reaps submissions stuck in the pending state, which happens when
// the judge backend fails or the process dies between dispatch and
// finalize. A distributed lock keeps concurrent instances from double
// sweeping; the update itself is idempotent either way.
type Sweeper struct {
	submissions repository.SubmissionRepository
	locker      cache.LockOps
	window      time.Duration
	interval    time.Duration
}

type SweeperOptions struct {
	Submissions repository.SubmissionRepository
	Locker      cache.LockOps

	// Window is how long a submission may stay pending before it is
	// marked as an error. Defaults to 10 minutes.
	Window time.Duration

	// Interval is the time between sweeps. Defaults to 1 minute.
	Interval time.Duration
}

func NewSweeper(opts SweeperOptions) *Sweeper {
	if opts.Window <= 0 {
		opts.Window = defaultSweepWindow
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultSweepInterval
	}
	return &Sweeper{
		submissions: opts.Submissions,
		locker:      opts.Locker,
		window:      opts.Window,
		interval:    opts.Interval,
	}
}

// Run sweeps on the configured interval until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs a single pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	if s.locker != nil {
		acquired, err := s.locker.TryLock(ctx, sweeperLockKey, s.interval)
		if err != nil {
			logger.Warn(ctx, "sweeper lock failed", zap.Error(err))
			return
		}
		if !acquired {
			return
		}
		defer func() {
			_ = s.locker.Unlock(ctx, sweeperLockKey)
		}()
	}

	cutoff := time.Now().Add(-s.window)
	reaped, err := s.submissions.MarkStalePending(ctx, nil, cutoff, staleMessage)
	if err != nil {
		logger.Error(ctx, "sweep stale submissions failed", zap.Error(err))
		return
	}
	if reaped > 0 {
		logger.Warn(ctx, "reaped stale pending submissions", zap.Int64("count", reaped))
	}
}
