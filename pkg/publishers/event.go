package publishers

import (
	"time"

	"github.com/google/uuid"

	"github.com/samvad-hq/samvad-page-archiver/pkg/spn"
)

// Event represents a capture outcome published downstream.
type Event struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"source_id"`
	URL         string    `json:"url"`
	JobID       string    `json:"job_id"`
	Status      string    `json:"status"`
	Message     string    `json:"message,omitempty"`
	StatusExt   string    `json:"status_ext,omitempty"`
	ArchiveURL  string    `json:"archive_url,omitempty"`
	Timestamp   string    `json:"timestamp,omitempty"`
	DurationSec float64   `json:"duration_sec,omitempty"`
	Resources   []string  `json:"resources,omitempty"`
	Outlinks    []string  `json:"outlinks,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// NewEvent constructs an Event for the final status of a capture job.
func NewEvent(sourceID, url, jobID string, status spn.CaptureStatus) Event {
	evt := Event{
		ID:          uuid.NewString(),
		SourceID:    sourceID,
		URL:         url,
		JobID:       jobID,
		CompletedAt: time.Now().UTC(),
	}
	if status == nil {
		return evt
	}
	evt.Status = status.Status()

	switch st := status.(type) {
	case spn.CapturePending:
		evt.Resources = st.Resources
	case spn.CaptureError:
		evt.Message = st.Message
		evt.StatusExt = st.StatusExt
		evt.Resources = st.Resources
	case spn.CaptureSuccess:
		evt.ArchiveURL = st.ArchiveURL()
		evt.Timestamp = st.Timestamp
		evt.DurationSec = st.DurationSec
		evt.Resources = st.Resources
		evt.Outlinks = st.Outlinks
	}
	return evt
}
