package bulk

import (
	"context"
	stderrors "errors"
	"time"

	"bulkctl/cli/internal/distlock"
	"bulkctl/cli/internal/errors"

	"github.com/pterm/pterm"
)

// Observer receives every status snapshot the poller fetches.
type Observer func(info *JobInfo)

// Poller waits for a job to become terminal and stable.
type Poller struct {
	interval time.Duration
	locks    distlock.Factory
	lockTTL  time.Duration
	observer Observer
	logger   *pterm.Logger
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithLocks sets the lock factory guarding each job id. The default is an
// in-process lock.
func WithLocks(f distlock.Factory) PollerOption {
	return func(p *Poller) {
		if f != nil {
			p.locks = f
		}
	}
}

// WithObserver registers a callback for status snapshots.
func WithObserver(o Observer) PollerOption {
	return func(p *Poller) { p.observer = o }
}

// WithPollLogger sets the logger.
func WithPollLogger(l *pterm.Logger) PollerOption {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPoller creates a poller that sleeps interval between status fetches.
// A non-positive interval means DefaultPollInterval.
func NewPoller(interval time.Duration, opts ...PollerOption) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	p := &Poller{
		interval: interval,
		locks:    distlock.Local(),
		lockTTL:  max(3*interval, time.Minute),
		logger:   disabledLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wait polls src until the job is terminal and its processed-record count did
// not move since the previous poll. The first snapshot never ends the wait,
// since a terminal state can be reported while batches are still draining.
//
// A status error ends the wait immediately, and so does losing the lock to
// another poller. Cancelling ctx returns a Cancelled error and leaves the
// remote job untouched.
func (p *Poller) Wait(ctx context.Context, src StatusSource, jobID string) (*JobInfo, error) {
	lock := p.locks(jobID)
	ok, err := lock.Acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &errors.E{Kind: errors.Cancelled, Message: "poll cancelled", Err: ctx.Err(), JobID: jobID}
		}
		return nil, &errors.E{Kind: errors.Transport, Message: "acquire poller lock", Err: err, JobID: jobID}
	}
	if !ok {
		return nil, &errors.E{Kind: errors.PollerConflict, Message: "job is already being polled", JobID: jobID}
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			p.logger.Warn("release poller lock", p.logger.Args("job_id", jobID, "error", err))
		}
	}()

	timer := time.NewTimer(p.interval)
	timer.Stop()
	defer timer.Stop()

	last := int64(-1)
	for polls := 1; ; polls++ {
		info, err := src.Status(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if p.observer != nil {
			p.observer(info)
		}
		p.logger.Debug("job status", p.logger.Args(
			"job_id", jobID,
			"poll", polls,
			"state", info.State,
			"processed", info.RecordsProcessed,
			"failed", info.RecordsFailed,
			"terminal", info.Terminal,
		))
		if info.Terminal && info.RecordsProcessed == last {
			return info, nil
		}
		last = info.RecordsProcessed

		if ext, ok := lock.(distlock.Extender); ok {
			err := ext.Extend(ctx, p.lockTTL)
			if stderrors.Is(err, distlock.ErrNotOwner) {
				return nil, &errors.E{Kind: errors.PollerConflict, Message: "poller lock lost to another poller", Err: err, JobID: jobID}
			}
			if err != nil {
				p.logger.Warn("extend poller lock", p.logger.Args("job_id", jobID, "error", err))
			}
		}

		if ctx.Err() != nil {
			return nil, &errors.E{Kind: errors.Cancelled, Message: "poll cancelled", Err: ctx.Err(), JobID: jobID}
		}
		timer.Reset(p.interval)
		select {
		case <-ctx.Done():
			return nil, &errors.E{Kind: errors.Cancelled, Message: "poll cancelled", Err: ctx.Err(), JobID: jobID}
		case <-timer.C:
		}
	}
}

func disabledLogger() *pterm.Logger {
	return pterm.DefaultLogger.WithLevel(pterm.LogLevelDisabled)
}
