package posting

import (
	"context"
	"fmt"
	"time"

	"go-savings-api/config"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/robfig/cron/v3"
)

// Jobs are the account sweeps run next to interest posting. MatureDeposits
// marks fixed deposits past their maturity date as matured and PayDueCharges
// collects fees that have fallen due.
type Jobs interface {
	MatureDeposits(ctx context.Context) (int, error)
	PayDueCharges(ctx context.Context) (int, error)
}

// Scheduler runs the posting, maturity and due charge jobs on their cron
// schedules.
type Scheduler struct {
	cron   *cron.Cron
	logger log.Logger
	cancel context.CancelFunc
}

// NewScheduler registers the jobs of cfg. Schedules are evaluated in loc.
func NewScheduler(ctx context.Context, cfg config.Posting, loc *time.Location, poster *Poster, jobs Jobs, logger log.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		logger: log.With(logger, "component", "scheduler"),
		cancel: cancel,
	}

	if _, err := s.cron.AddFunc(cfg.Schedule, func() {
		level.Info(s.logger).Log("msg", "interest posting started")
		if _, err := poster.Run(ctx); err != nil {
			level.Error(s.logger).Log("msg", "interest posting failed", "err", err)
		}
	}); err != nil {
		cancel()
		return nil, fmt.Errorf("posting schedule %q: %w", cfg.Schedule, err)
	}

	if jobs == nil {
		return s, nil
	}
	if cfg.MaturitySchedule != "" {
		if _, err := s.cron.AddFunc(cfg.MaturitySchedule, func() {
			n, err := jobs.MatureDeposits(ctx)
			if err != nil {
				level.Error(s.logger).Log("msg", "maturing deposits failed", "matured", n, "err", err)
				return
			}
			level.Info(s.logger).Log("msg", "deposits matured", "matured", n)
		}); err != nil {
			cancel()
			return nil, fmt.Errorf("maturity schedule %q: %w", cfg.MaturitySchedule, err)
		}
	}
	if cfg.ChargeSchedule != "" {
		if _, err := s.cron.AddFunc(cfg.ChargeSchedule, func() {
			n, err := jobs.PayDueCharges(ctx)
			if err != nil {
				level.Error(s.logger).Log("msg", "paying due charges failed", "paid", n, "err", err)
				return
			}
			level.Info(s.logger).Log("msg", "due charges paid", "paid", n)
		}); err != nil {
			cancel()
			return nil, fmt.Errorf("charge schedule %q: %w", cfg.ChargeSchedule, err)
		}
	}
	return s, nil
}

// Entries returns the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
