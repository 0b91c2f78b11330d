package archiver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-page-archiver/pkg/spn"
)

// DefaultPollInterval is the pause between status checks while a job is pending.
const DefaultPollInterval = 2 * time.Second

// Watch polls the job until it reaches success or error, or ctx is done.
// onPending, when set, is called with every pending status observed.
func Watch(ctx context.Context, getter StatusGetter, jobID string, interval time.Duration, onPending func(spn.CapturePending)) (spn.CaptureStatus, error) {
	if getter == nil {
		return nil, errors.New("status getter is nil")
	}
	if strings.TrimSpace(jobID) == "" {
		return nil, spn.ErrEmptyJobID
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		status, err := getter.CaptureStatus(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("capture status %s: %w", jobID, err)
		}
		if status == nil {
			return nil, fmt.Errorf("capture status %s: empty status", jobID)
		}
		if spn.Terminal(status) {
			return status, nil
		}
		if pending, ok := status.(spn.CapturePending); ok && onPending != nil {
			onPending(pending)
		}
		timer.Reset(interval)
	}
}
