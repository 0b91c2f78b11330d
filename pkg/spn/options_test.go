package spn

import (
	"testing"
	"time"
)

func TestEncodeCaptureFormAllFlags(t *testing.T) {
	opts := CaptureOptions{
		CaptureAll:           true,
		CaptureOutlinks:      true,
		CaptureScreenshot:    true,
		DelayWBAvailability:  true,
		ForceGet:             true,
		SkipFirstArchive:     true,
		OutlinksAvailability: true,
		EmailResult:          false,
		IfNotArchivedWithin:  Duration(time.Second),
		UseUserAgent:         "Dummy",
	}

	want := "url=example.com&capture_all=1&capture_outlinks=1&capture_screenshot=1&delay_wb_availability=1&force_get=1&skip_first_archive=1&outlinks_availability=1&email_result=0&if_not_archived_within=1&use_user_agent=Dummy"
	if got := EncodeCaptureForm("example.com", opts); got != want {
		t.Fatalf("EncodeCaptureForm mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestEncodeCaptureFormDefaults(t *testing.T) {
	want := "url=example.com&capture_all=0&capture_outlinks=0&capture_screenshot=0&delay_wb_availability=0&force_get=0&skip_first_archive=0&outlinks_availability=0&email_result=0"
	if got := EncodeCaptureForm("example.com", CaptureOptions{}); got != want {
		t.Fatalf("EncodeCaptureForm mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestEncodeCaptureFormOptionalFieldsAndEscaping(t *testing.T) {
	opts := CaptureOptions{
		IfNotArchivedWithin: Duration(90 * time.Minute),
		JSBehaviorTimeout:   Duration(0),
		CaptureCookie:       "a=b; c=d",
		TargetUsername:      "user",
		TargetPassword:      "p&ss",
	}

	want := "url=https%3A%2F%2Fexample.com%2Fa%3Fb%3Dc&capture_all=0&capture_outlinks=0&capture_screenshot=0&delay_wb_availability=0&force_get=0&skip_first_archive=0&outlinks_availability=0&email_result=0" +
		"&if_not_archived_within=5400&js_behavior_timeout=0&capture_cookie=a%3Db%3B+c%3Dd&target_username=user&target_password=p%26ss"
	if got := EncodeCaptureForm("https://example.com/a?b=c", opts); got != want {
		t.Fatalf("EncodeCaptureForm mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestSecondsTruncatesFractions(t *testing.T) {
	if got := seconds(1500 * time.Millisecond); got != "1" {
		t.Fatalf("seconds(1.5s) = %s", got)
	}
}
