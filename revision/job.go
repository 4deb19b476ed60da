package revision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"

	"github.com/dlboyd/socrata-go/api"
)

// ErrWaitTimeout is returned when WaitForFinish reaches its deadline before
// the job reports either completion or failure.
var ErrWaitTimeout = errors.New("timed out waiting for job to finish")

// Job tracks the asynchronous application of a revision.
type Job struct {
	ID         int        `json:"id"`
	Status     string     `json:"status"`
	CreatedAt  *time.Time `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at"`
	FailedAt   *time.Time `json:"failed_at"`

	client *api.Client
	logger log.Logger
}

type jobEnvelope struct {
	Resource Job `json:"resource"`
}

func (j *Job) path() string {
	return fmt.Sprintf("/api/publishing/v1/job/%d", j.ID)
}

// Show fetches a fresh snapshot of the job.
func (j *Job) Show(ctx context.Context) (*Job, error) {
	var resp jobEnvelope
	err := j.client.Get(ctx, j.path(), &resp)
	if err != nil {
		return nil, fmt.Errorf("show job %d: %w", j.ID, err)
	}

	job := resp.Resource
	job.client = j.client
	job.logger = j.logger
	return &job, nil
}

// WaitOptions configure Job.WaitForFinish.
type WaitOptions struct {
	// Progress is invoked with a fresh snapshot after every poll. May be nil.
	Progress func(*Job)
	// Timeout bounds the total wall-clock wait. Zero means no deadline.
	Timeout time.Duration
	// SleepInterval is the pause between polls. Defaults to one second.
	SleepInterval time.Duration
}

// WaitForFinish polls the job until it finishes or fails, or the timeout
// elapses. A remote failure is a normal terminal outcome: the snapshot is
// returned with a nil error and the caller inspects FailedAt.
func (j *Job) WaitForFinish(ctx context.Context, opts WaitOptions) (*Job, error) {
	interval := opts.SleepInterval
	if interval <= 0 {
		interval = time.Second
	}

	var deadline time.Time
	if opts.Timeout > 0 {
		deadline = time.Now().Add(opts.Timeout)
	}

	for {
		cur, err := j.Show(ctx)
		if err != nil {
			return nil, err
		}
		j.logger.Debugf("Job %d status: %s", cur.ID, cur.Status)

		if opts.Progress != nil {
			opts.Progress(cur)
		}

		if cur.FinishedAt != nil || cur.FailedAt != nil {
			return cur, nil
		}

		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return cur, ErrWaitTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}
