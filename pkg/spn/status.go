package spn

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Capture status discriminator values.
const (
	StatusPending = "pending"
	StatusError   = "error"
	StatusSuccess = "success"
)

const waybackBaseURL = "https://web.archive.org/web/"

// CaptureResponse is returned once a capture request has been accepted.
type CaptureResponse struct {
	URL   string `json:"url"`
	JobID string `json:"job_id"`
}

// CaptureStatus is one of CapturePending, CaptureError or CaptureSuccess.
type CaptureStatus interface {
	// Status returns the wire discriminator of the variant.
	Status() string
	isCaptureStatus()
}

// CapturePending means the capture has not been fully processed yet.
type CapturePending struct {
	Resources []string
}

// CaptureError means the capture failed.
type CaptureError struct {
	// Exception is nil when the service did not report one.
	Exception *string
	StatusExt string
	Message   string
	Resources []string
}

// CaptureSuccess means the page has been archived.
type CaptureSuccess struct {
	// OriginalURL is the requested URL after redirects.
	OriginalURL string
	Screenshot  *string
	// Timestamp uses the YYYYMMDDHHMMSS layout.
	Timestamp   string
	DurationSec float64
	Resources   []string
	Outlinks    []string
}

func (CapturePending) Status() string { return StatusPending }
func (CaptureError) Status() string   { return StatusError }
func (CaptureSuccess) Status() string { return StatusSuccess }

func (CapturePending) isCaptureStatus() {}
func (CaptureError) isCaptureStatus()   {}
func (CaptureSuccess) isCaptureStatus() {}

// ArchiveURL returns the playback URL of the capture.
func (s CaptureSuccess) ArchiveURL() string {
	return waybackBaseURL + s.Timestamp + "/" + s.OriginalURL
}

// Terminal reports whether polling should stop at status.
func Terminal(status CaptureStatus) bool {
	switch status.(type) {
	case CaptureError, CaptureSuccess:
		return true
	default:
		return false
	}
}

// UserStatus holds the authenticated account's capture session counters.
type UserStatus struct {
	Available  uint `json:"available"`
	Processing uint `json:"processing"`
}

// SystemState classifies the health of the capture service.
type SystemState int

const (
	SystemOK SystemState = iota
	SystemIssues
	SystemCritical
)

func (s SystemState) String() string {
	switch s {
	case SystemOK:
		return "ok"
	case SystemIssues:
		return "issues"
	case SystemCritical:
		return "critical"
	default:
		return fmt.Sprintf("SystemState(%d)", int(s))
	}
}

// SystemStatus is derived from the system status endpoint.
// Description is only set for SystemIssues.
type SystemStatus struct {
	State       SystemState
	Description string
}

// SystemStatusFromJSON maps a system status body: "ok" is SystemOK, any other
// string is SystemIssues carrying it verbatim. A 200 response never maps to
// SystemCritical.
func SystemStatusFromJSON(data []byte) (SystemStatus, error) {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return SystemStatus{}, err
	}
	if obj == nil {
		return SystemStatus{}, errors.New("invalid response: not an object")
	}
	status, ok := obj["status"].(string)
	if !ok {
		return SystemStatus{}, fmt.Errorf("invalid response: %s", bodySnippet(data))
	}
	if status == "ok" {
		return SystemStatus{State: SystemOK}, nil
	}
	return SystemStatus{State: SystemIssues, Description: status}, nil
}

// captureStatusWire carries every field any variant may need. Pointers mark presence.
type captureStatusWire struct {
	Status      *string   `json:"status"`
	Resources   *[]string `json:"resources"`
	Exception   *string   `json:"exception"`
	StatusExt   *string   `json:"status_ext"`
	Message     *string   `json:"message"`
	OriginalURL *string   `json:"original_url"`
	Screenshot  *string   `json:"screenshot"`
	Timestamp   *string   `json:"timestamp"`
	DurationSec *float64  `json:"duration_sec"`
	Outlinks    *[]string `json:"outlinks"`
}

var captureStatusKeys = []string{
	"status", "resources", "exception", "status_ext", "message",
	"original_url", "screenshot", "timestamp", "duration_sec", "outlinks",
}

// DecodeCaptureStatus decodes a capture status body, dispatching on its
// "status" field. Unknown discriminators and missing required fields fail.
func DecodeCaptureStatus(data []byte) (CaptureStatus, error) {
	var w captureStatusWire
	if err := unmarshalExact(data, &w, captureStatusKeys...); err != nil {
		return nil, err
	}
	if w.Status == nil {
		return nil, errors.New(`missing field "status"`)
	}

	switch *w.Status {
	case StatusPending:
		if err := require("resources", w.Resources != nil); err != nil {
			return nil, err
		}
		return CapturePending{Resources: *w.Resources}, nil
	case StatusError:
		if err := requireAll(
			field{"status_ext", w.StatusExt != nil},
			field{"message", w.Message != nil},
			field{"resources", w.Resources != nil},
		); err != nil {
			return nil, err
		}
		return CaptureError{
			Exception: w.Exception,
			StatusExt: *w.StatusExt,
			Message:   *w.Message,
			Resources: *w.Resources,
		}, nil
	case StatusSuccess:
		if err := requireAll(
			field{"original_url", w.OriginalURL != nil},
			field{"timestamp", w.Timestamp != nil},
			field{"duration_sec", w.DurationSec != nil},
			field{"resources", w.Resources != nil},
			field{"outlinks", w.Outlinks != nil},
		); err != nil {
			return nil, err
		}
		return CaptureSuccess{
			OriginalURL: *w.OriginalURL,
			Screenshot:  w.Screenshot,
			Timestamp:   *w.Timestamp,
			DurationSec: *w.DurationSec,
			Resources:   *w.Resources,
			Outlinks:    *w.Outlinks,
		}, nil
	default:
		return nil, fmt.Errorf("unknown variant %q, expected one of %q, %q, %q",
			*w.Status, StatusPending, StatusError, StatusSuccess)
	}
}

func decodeCaptureResponse(data []byte) (CaptureResponse, error) {
	var w struct {
		URL   *string `json:"url"`
		JobID *string `json:"job_id"`
	}
	if err := unmarshalExact(data, &w, "url", "job_id"); err != nil {
		return CaptureResponse{}, err
	}
	if err := requireAll(field{"url", w.URL != nil}, field{"job_id", w.JobID != nil}); err != nil {
		return CaptureResponse{}, err
	}
	return CaptureResponse{URL: *w.URL, JobID: *w.JobID}, nil
}

func decodeUserStatus(data []byte) (UserStatus, error) {
	var w struct {
		Available  *uint `json:"available"`
		Processing *uint `json:"processing"`
	}
	if err := unmarshalExact(data, &w, "available", "processing"); err != nil {
		return UserStatus{}, err
	}
	if err := requireAll(field{"available", w.Available != nil}, field{"processing", w.Processing != nil}); err != nil {
		return UserStatus{}, err
	}
	return UserStatus{Available: *w.Available, Processing: *w.Processing}, nil
}

// unmarshalExact decodes the JSON object in data into v using only the listed
// keys, matched byte for byte. encoding/json folds key case on its own, so a
// stray "Status" would otherwise override "status".
func unmarshalExact(data []byte, v any, keys ...string) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	exact := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		if val, ok := raw[k]; ok {
			exact[k] = val
		}
	}
	filtered, err := json.Marshal(exact)
	if err != nil {
		return err
	}
	return json.Unmarshal(filtered, v)
}

type field struct {
	name    string
	present bool
}

func require(name string, present bool) error {
	if !present {
		return fmt.Errorf("missing field %q", name)
	}
	return nil
}

func requireAll(fields ...field) error {
	for _, f := range fields {
		if err := require(f.name, f.present); err != nil {
			return err
		}
	}
	return nil
}
