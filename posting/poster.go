// Package posting runs the scheduled jobs of the savings service: interest
// posting across all active accounts and the maturing of fixed deposits.
package posting

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go-savings-api/config"
	"go-savings-api/model"
	"go-savings-api/savings"
	"go-savings-api/storage"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/metrics/prometheus"
	"github.com/hashicorp/go-multierror"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

var (
	accountsPosted = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "savings_interest_postings_total",
		Help: "Counter of accounts processed by the interest posting job",
	}, []string{"outcome"})

	groupsPosted = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Name: "savings_interest_posting_batches_total",
		Help: "Counter of account groups committed or rolled back by the interest posting job",
	}, []string{"outcome"})

	postingDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Name:    "savings_interest_posting_duration_seconds",
		Help:    "Duration of interest posting runs in seconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	}, nil)
)

// Result counts the work done by one posting run.
type Result struct {
	Posted int
	// Skipped counts accounts that were no longer active when loaded.
	Skipped int
	Failed  int
	Groups  int
}

// Poster posts interest due on every active account. Accounts are processed
// in groups of the configured batch size and each group is written in one
// database transaction.
type Poster struct {
	store  storage.PostingStore
	rules  func() savings.Rules
	cfg    config.Posting
	logger log.Logger

	sleep func(time.Duration)
}

// NewPoster creates a Poster. rules supplies the account rules as of the
// business date at the start of each group.
func NewPoster(store storage.PostingStore, rules func() savings.Rules, cfg config.Posting, logger log.Logger) *Poster {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Poster{
		store:  store,
		rules:  rules,
		cfg:    cfg,
		logger: log.With(logger, "component", "posting"),
		sleep:  time.Sleep,
	}
}

// Run posts interest up to the business date on every active account. A
// group in which any account fails is rolled back as a whole and the run
// continues with the next group. The returned error collects every failure.
func (p *Poster) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	defer func() {
		postingDuration.Observe(time.Since(start).Seconds())
	}()

	var (
		res     Result
		errs    *multierror.Error
		afterID int64
	)
	for {
		if err := ctx.Err(); err != nil {
			errs = multierror.Append(errs, err)
			break
		}
		ids, err := p.store.ActiveAccountIDs(ctx, afterID, p.cfg.BatchSize)
		if err != nil {
			errs = multierror.Append(errs, err)
			break
		}
		if len(ids) == 0 {
			break
		}
		afterID = ids[len(ids)-1]

		res.Groups++
		skipped, err := p.postGroup(ctx, p.rules(), ids)
		if err != nil {
			res.Failed += len(ids)
			errs = multierror.Append(errs, err)
			continue
		}
		res.Skipped += skipped
		res.Posted += len(ids) - skipped
	}

	level.Info(p.logger).Log("msg", "interest posting finished",
		"posted", res.Posted, "skipped", res.Skipped, "failed", res.Failed, "groups", res.Groups)
	return res, errs.ErrorOrNil()
}

// postGroup posts one group and returns how many of its accounts were
// skipped because they are no longer active.
func (p *Poster) postGroup(ctx context.Context, r savings.Rules, ids []int64) (int, error) {
	batch, err := p.store.BeginPosting(ctx)
	if err != nil {
		return 0, err
	}

	var errs *multierror.Error
	skipped := 0
	accounts := make([]*model.Account, 0, len(ids))
	for _, id := range ids {
		acc, err := p.load(ctx, batch, id)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("account %d: %w", id, err))
			continue
		}
		if acc.Status != model.StatusActive {
			level.Debug(p.logger).Log("msg", "account no longer active, skipped", "account", id, "status", acc.Status.String())
			skipped++
			continue
		}
		if err := r.PostInterest(acc, r.Today); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("account %d: %w", id, err))
			continue
		}
		accounts = append(accounts, acc)
	}

	if errs == nil {
		if err := batch.Apply(ctx, accounts); err != nil {
			errs = multierror.Append(errs, err)
		} else if err := batch.Commit(ctx); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("could not commit posting batch: %w", err))
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		_ = batch.Rollback(ctx)
		level.Error(p.logger).Log("msg", "interest posting group rolled back",
			"first_account", ids[0], "last_account", ids[len(ids)-1], "err", err)
		accountsPosted.With("outcome", "failed").Add(float64(len(ids)))
		groupsPosted.With("outcome", "rolled_back").Add(1)
		return 0, err
	}

	accountsPosted.With("outcome", "posted").Add(float64(len(ids) - skipped))
	accountsPosted.With("outcome", "skipped").Add(float64(skipped))
	groupsPosted.With("outcome", "committed").Add(1)
	return skipped, nil
}

// load retries lock failures with a randomised back-off.
func (p *Poster) load(ctx context.Context, batch storage.PostingBatch, id int64) (*model.Account, error) {
	for attempt := 0; ; attempt++ {
		acc, err := batch.Load(ctx, id)
		if err == nil {
			return acc, nil
		}
		if !storage.IsRetryable(err) || attempt >= p.cfg.MaxRetries {
			return nil, err
		}
		wait := p.backoff()
		level.Warn(p.logger).Log("msg", "account locked, retrying", "account", id, "attempt", attempt+1, "wait", wait)
		p.sleep(wait)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

func (p *Poster) backoff() time.Duration {
	wait := time.Second
	if p.cfg.MaxRetryInterval > 0 {
		wait += time.Duration(rand.Int63n(int64(p.cfg.MaxRetryInterval) + 1))
	}
	return wait
}
