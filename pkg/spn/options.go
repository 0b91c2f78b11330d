package spn

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// CaptureOptions are the optional capture request parameters.
//
// Boolean flags are always sent as "1" or "0". Durations are sent as whole
// seconds and omitted when nil. Strings are omitted when empty.
type CaptureOptions struct {
	CaptureAll           bool
	CaptureOutlinks      bool
	CaptureScreenshot    bool
	DelayWBAvailability  bool
	ForceGet             bool
	SkipFirstArchive     bool
	OutlinksAvailability bool
	EmailResult          bool

	// IfNotArchivedWithin skips the capture when the newest capture is younger than this.
	IfNotArchivedWithin *time.Duration
	// JSBehaviorTimeout bounds the JS behaviors run after page load. Zero disables them.
	JSBehaviorTimeout *time.Duration

	CaptureCookie  string
	UseUserAgent   string
	TargetUsername string
	TargetPassword string
}

// Duration returns a pointer to d, for use with the optional duration fields.
func Duration(d time.Duration) *time.Duration {
	return &d
}

type formField struct {
	key   string
	value string
}

// fields returns the option fields in wire order, presence rules applied.
func (o CaptureOptions) fields() []formField {
	out := []formField{
		{"capture_all", flag(o.CaptureAll)},
		{"capture_outlinks", flag(o.CaptureOutlinks)},
		{"capture_screenshot", flag(o.CaptureScreenshot)},
		{"delay_wb_availability", flag(o.DelayWBAvailability)},
		{"force_get", flag(o.ForceGet)},
		{"skip_first_archive", flag(o.SkipFirstArchive)},
		{"outlinks_availability", flag(o.OutlinksAvailability)},
		{"email_result", flag(o.EmailResult)},
	}
	if o.IfNotArchivedWithin != nil {
		out = append(out, formField{"if_not_archived_within", seconds(*o.IfNotArchivedWithin)})
	}
	if o.JSBehaviorTimeout != nil {
		out = append(out, formField{"js_behavior_timeout", seconds(*o.JSBehaviorTimeout)})
	}
	for _, f := range []formField{
		{"capture_cookie", o.CaptureCookie},
		{"use_user_agent", o.UseUserAgent},
		{"target_username", o.TargetUsername},
		{"target_password", o.TargetPassword},
	} {
		if f.value != "" {
			out = append(out, f)
		}
	}
	return out
}

// EncodeCaptureForm builds the form body for a capture request. Field order is
// fixed: url first, then the options in wire order. url.Values is not used
// because it sorts keys.
func EncodeCaptureForm(target string, opts CaptureOptions) string {
	var b strings.Builder
	b.WriteString("url=")
	b.WriteString(url.QueryEscape(target))
	for _, f := range opts.fields() {
		b.WriteByte('&')
		b.WriteString(f.key)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(f.value))
	}
	return b.String()
}

func flag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func seconds(d time.Duration) string {
	return strconv.FormatInt(int64(d/time.Second), 10)
}
