package bulk

import (
	"context"
	"time"

	"bulkctl/cli/internal/distlock"
	"bulkctl/cli/internal/errors"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
)

// Controller runs bulk jobs end to end on one backend.
type Controller struct {
	backend  JobBackend
	locks    distlock.Factory
	observer Observer
	logger   *pterm.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger; nil keeps logging disabled.
func WithLogger(l *pterm.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithJobLocks sets the lock factory used while polling.
func WithJobLocks(f distlock.Factory) Option {
	return func(c *Controller) { c.locks = f }
}

// WithStatusObserver forwards every polled snapshot to o.
func WithStatusObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// NewController creates a controller for backend.
func NewController(backend JobBackend, opts ...Option) *Controller {
	c := &Controller{backend: backend, logger: disabledLogger()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backend returns the backend the controller drives.
func (c *Controller) Backend() JobBackend { return c.backend }

// Run validates req, creates the job, uploads every batch, closes the job,
// waits for it to finish and collects the results. The first failing stage
// ends the run; the returned error carries the stage and, once created, the
// job id. Nothing is retried and the job is never aborted here.
func (c *Controller) Run(ctx context.Context, req *Request) (*Result, error) {
	runID := uuid.NewString()
	started := time.Now()

	if err := req.Validate(); err != nil {
		return nil, errors.AtStage(err, errors.StageValidate, "")
	}
	if err := c.backend.Validate(req); err != nil {
		return nil, errors.AtStage(err, errors.StageValidate, "")
	}
	batches, err := c.plan(req)
	if err != nil {
		return nil, errors.AtStage(err, errors.StageValidate, "")
	}

	jobID, err := c.backend.CreateJob(ctx, req)
	if err != nil {
		return nil, c.fail(runID, err, errors.StageCreate, "")
	}
	c.logger.Info("job created", c.logger.Args(
		"run_id", runID,
		"backend", c.backend.Name(),
		"job_id", jobID,
		"object", req.Object,
		"operation", string(req.Operation),
	))

	batchIDs, err := c.backend.Upload(ctx, jobID, req, batches)
	if err != nil {
		return nil, c.fail(runID, err, errors.StageUpload, jobID)
	}
	c.logger.Info("data uploaded", c.logger.Args(
		"run_id", runID,
		"job_id", jobID,
		"batches", len(batches),
		"records", len(req.Records),
	))

	if err := c.backend.CloseJob(ctx, jobID); err != nil {
		return nil, c.fail(runID, err, errors.StageClose, jobID)
	}

	res, err := c.wait(ctx, runID, jobID, req, batchIDs)
	if err != nil {
		return nil, err
	}
	c.logger.Info("job finished", c.logger.Args(
		"run_id", runID,
		"job_id", jobID,
		"state", res.Job.State,
		"results", res.Count(),
		"failed", res.FailedCount(),
		"elapsed", time.Since(started).Round(time.Millisecond).String(),
	))
	return res, nil
}

// Resume waits for an existing job and collects its results. batchIDs are
// the v1 batch ids in upload order; v2 ignores them.
func (c *Controller) Resume(ctx context.Context, jobID string, req *Request, batchIDs []string) (*Result, error) {
	return c.wait(ctx, uuid.NewString(), jobID, req, batchIDs)
}

func (c *Controller) wait(ctx context.Context, runID, jobID string, req *Request, batchIDs []string) (*Result, error) {
	poller := NewPoller(req.pollInterval(),
		WithLocks(c.locks),
		WithObserver(c.observer),
		WithPollLogger(c.logger),
	)
	info, err := poller.Wait(ctx, c.backend, jobID)
	if err != nil {
		return nil, c.fail(runID, err, errors.StagePoll, jobID)
	}

	res, err := c.backend.CollectResults(ctx, info, req, batchIDs)
	if err != nil {
		return nil, c.fail(runID, err, errors.StageCollect, jobID)
	}
	return res, nil
}

// plan splits the records for backends with bounded batches and sends the
// whole set as one batch otherwise.
func (c *Controller) plan(req *Request) ([][]Record, error) {
	if req.Operation.IsQuery() {
		return nil, nil
	}
	limit := c.backend.BatchLimit(req)
	if limit <= 0 {
		return [][]Record{req.Records}, nil
	}
	return Split(req.Records, limit)
}

func (c *Controller) fail(runID string, err error, stage errors.Stage, jobID string) error {
	err = errors.AtStage(err, stage, jobID)
	c.logger.Error("bulk job failed", c.logger.Args(
		"run_id", runID,
		"stage", string(stage),
		"job_id", jobID,
		"kind", string(errors.KindOf(err)),
		"error", err.Error(),
	))
	return err
}
