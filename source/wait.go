package source

import (
	"context"
	"errors"
	"time"
)

// ErrWaitTimeout is returned when WaitForFinish reaches its deadline before
// the source reports either completion or failure.
var ErrWaitTimeout = errors.New("timed out waiting for source to finish")

// WaitOptions configure WaitForFinish.
type WaitOptions struct {
	// Progress is invoked with a fresh snapshot after every poll. May be nil.
	Progress func(*Source)
	// Timeout bounds the total wall-clock wait. Zero means no deadline.
	Timeout time.Duration
	// SleepInterval is the pause between polls. Defaults to one second.
	SleepInterval time.Duration
}

// WaitForFinish polls the source until it finishes transforming and
// validating, or fails, or the timeout elapses. A remote failure is a normal
// terminal outcome: the snapshot is returned with a nil error and the caller
// inspects FailedAt. A timeout returns the last snapshot with ErrWaitTimeout.
func (s *Source) WaitForFinish(ctx context.Context, opts WaitOptions) (*Source, error) {
	interval := opts.SleepInterval
	if interval <= 0 {
		interval = time.Second
	}

	var deadline time.Time
	if opts.Timeout > 0 {
		deadline = time.Now().Add(opts.Timeout)
	}

	for {
		cur, err := s.Show(ctx)
		if err != nil {
			return nil, err
		}

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
