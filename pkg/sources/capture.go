package sources

import (
	"errors"
	"time"

	"github.com/samvad-hq/samvad-page-archiver/pkg/spn"
)

// CaptureConfig is the per-source capture options block.
type CaptureConfig struct {
	CaptureAll           bool `json:"capture_all" yaml:"capture_all"`
	CaptureOutlinks      bool `json:"capture_outlinks" yaml:"capture_outlinks"`
	CaptureScreenshot    bool `json:"capture_screenshot" yaml:"capture_screenshot"`
	DelayWBAvailability  bool `json:"delay_wb_availability" yaml:"delay_wb_availability"`
	ForceGet             bool `json:"force_get" yaml:"force_get"`
	SkipFirstArchive     bool `json:"skip_first_archive" yaml:"skip_first_archive"`
	OutlinksAvailability bool `json:"outlinks_availability" yaml:"outlinks_availability"`
	EmailResult          bool `json:"email_result" yaml:"email_result"`

	IfNotArchivedWithinSeconds *int64 `json:"if_not_archived_within_seconds" yaml:"if_not_archived_within_seconds"`
	JSBehaviorTimeoutSeconds   *int64 `json:"js_behavior_timeout_seconds" yaml:"js_behavior_timeout_seconds"`

	CaptureCookie  string `json:"capture_cookie" yaml:"capture_cookie"`
	UseUserAgent   string `json:"use_user_agent" yaml:"use_user_agent"`
	TargetUsername string `json:"target_username" yaml:"target_username"`
	TargetPassword string `json:"target_password" yaml:"target_password"`
}

func (c CaptureConfig) validate() error {
	if c.IfNotArchivedWithinSeconds != nil && *c.IfNotArchivedWithinSeconds < 0 {
		return errors.New("if_not_archived_within_seconds must not be negative")
	}
	if c.JSBehaviorTimeoutSeconds != nil && *c.JSBehaviorTimeoutSeconds < 0 {
		return errors.New("js_behavior_timeout_seconds must not be negative")
	}
	return nil
}

// CaptureOptions converts the source's capture block into client options.
func (s Source) CaptureOptions() spn.CaptureOptions {
	c := s.Capture
	opts := spn.CaptureOptions{
		CaptureAll:           c.CaptureAll,
		CaptureOutlinks:      c.CaptureOutlinks,
		CaptureScreenshot:    c.CaptureScreenshot,
		DelayWBAvailability:  c.DelayWBAvailability,
		ForceGet:             c.ForceGet,
		SkipFirstArchive:     c.SkipFirstArchive,
		OutlinksAvailability: c.OutlinksAvailability,
		EmailResult:          c.EmailResult,
		CaptureCookie:        c.CaptureCookie,
		UseUserAgent:         c.UseUserAgent,
		TargetUsername:       c.TargetUsername,
		TargetPassword:       c.TargetPassword,
	}
	if c.IfNotArchivedWithinSeconds != nil {
		opts.IfNotArchivedWithin = spn.Duration(time.Duration(*c.IfNotArchivedWithinSeconds) * time.Second)
	}
	if c.JSBehaviorTimeoutSeconds != nil {
		opts.JSBehaviorTimeout = spn.Duration(time.Duration(*c.JSBehaviorTimeoutSeconds) * time.Second)
	}
	return opts
}
