package archiver

import (
	"context"

	"github.com/samvad-hq/samvad-page-archiver/pkg/publishers"
	"github.com/samvad-hq/samvad-page-archiver/pkg/spn"
)

// StatusGetter reports the current state of a capture job.
type StatusGetter interface {
	CaptureStatus(ctx context.Context, jobID string) (spn.CaptureStatus, error)
}

// CaptureClient submits captures and follows them; *spn.Client satisfies it.
type CaptureClient interface {
	StatusGetter
	RequestCapture(ctx context.Context, target string, opts spn.CaptureOptions) (spn.CaptureResponse, error)
}

// EventPublisher publishes capture outcomes downstream.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// Ledger remembers which URLs were captured recently.
type Ledger interface {
	RecentlyCaptured(url string) (bool, error)
	MarkCaptured(url string) error
}
