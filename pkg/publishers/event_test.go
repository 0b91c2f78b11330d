package publishers

import (
	"testing"

	"github.com/samvad-hq/samvad-page-archiver/pkg/spn"
)

func TestNewEventSuccess(t *testing.T) {
	evt := NewEvent("docs", "https://example.com/", "spn2-abc", spn.CaptureSuccess{
		OriginalURL: "https://example.com/",
		Timestamp:   "20240101000000",
		DurationSec: 4.2,
		Resources:   []string{"https://example.com/app.js"},
		Outlinks:    []string{"https://example.com/about"},
	})

	if evt.ID == "" {
		t.Fatalf("event id should be generated")
	}
	if evt.Status != spn.StatusSuccess {
		t.Fatalf("status = %q", evt.Status)
	}
	if evt.ArchiveURL != "https://web.archive.org/web/20240101000000/https://example.com/" {
		t.Fatalf("archive url = %q", evt.ArchiveURL)
	}
	if len(evt.Outlinks) != 1 || evt.DurationSec != 4.2 {
		t.Fatalf("success fields not carried: %#v", evt)
	}
	if evt.CompletedAt.IsZero() {
		t.Fatalf("completed_at should be set")
	}
}

func TestNewEventError(t *testing.T) {
	evt := NewEvent("docs", "https://example.com/", "spn2-abc", spn.CaptureError{
		StatusExt: "error:too-many-daily-captures",
		Message:   "This URL has been already captured 10 times today.",
	})
	if evt.Status != spn.StatusError || evt.StatusExt != "error:too-many-daily-captures" {
		t.Fatalf("unexpected error event %#v", evt)
	}
	if evt.ArchiveURL != "" {
		t.Fatalf("error event should not carry an archive url")
	}

	other := NewEvent("docs", "https://example.com/", "spn2-abc", nil)
	if other.ID == evt.ID {
		t.Fatalf("event ids should be unique")
	}
}
