package app

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/samvad-hq/samvad-page-archiver/internal/archiver"
	"github.com/samvad-hq/samvad-page-archiver/internal/config"
	"github.com/samvad-hq/samvad-page-archiver/internal/logger"
	"github.com/samvad-hq/samvad-page-archiver/pkg/sources"
	"github.com/samvad-hq/samvad-page-archiver/pkg/spn"
)

type fakeStatusClient struct {
	system  spn.SystemStatus
	sysErr  error
	user    spn.UserStatus
	userErr error
}

func (f *fakeStatusClient) RequestCapture(context.Context, string, spn.CaptureOptions) (spn.CaptureResponse, error) {
	return spn.CaptureResponse{}, errors.New("not used")
}

func (f *fakeStatusClient) CaptureStatus(context.Context, string) (spn.CaptureStatus, error) {
	return nil, errors.New("not used")
}

func (f *fakeStatusClient) UserStatus(context.Context) (spn.UserStatus, error) {
	return f.user, f.userErr
}

func (f *fakeStatusClient) SystemStatus(context.Context) (spn.SystemStatus, error) {
	return f.system, f.sysErr
}

type recordingRunner struct {
	calls int
	limit int
}

func (r *recordingRunner) Run(_ context.Context, _ []sources.Source, maxInFlight int) (archiver.Result, error) {
	r.calls++
	r.limit = maxInFlight
	return archiver.Result{}, nil
}

func newTestArchiver(client statusClient, runner passRunner) *Archiver {
	return &Archiver{
		cfg:         &config.Config{},
		client:      client,
		service:     runner,
		maxInFlight: 4,
		log:         logger.NopLogger{},
	}
}

var testSources = []sources.Source{{ID: "docs", Type: sources.TypeURLs, URL: "https://example.com/"}}

func TestRunOnceSkipsWhenCritical(t *testing.T) {
	runner := &recordingRunner{}
	a := newTestArchiver(&fakeStatusClient{
		system: spn.SystemStatus{State: spn.SystemCritical, Description: "down"},
		user:   spn.UserStatus{Available: 5},
	}, runner)

	if err := a.runOnce(context.Background(), testSources); err != nil {
		t.Fatalf("runOnce: %v", err)
	}
	if runner.calls != 0 {
		t.Fatalf("pass should be skipped while critical")
	}
}

func TestRunOnceProceedsOnIssues(t *testing.T) {
	runner := &recordingRunner{}
	a := newTestArchiver(&fakeStatusClient{
		system: spn.SystemStatus{State: spn.SystemIssues, Description: "slow"},
		user:   spn.UserStatus{Available: 2, Processing: 3},
	}, runner)

	if err := a.runOnce(context.Background(), testSources); err != nil {
		t.Fatalf("runOnce: %v", err)
	}
	if runner.calls != 1 || runner.limit != 2 {
		t.Fatalf("calls=%d limit=%d", runner.calls, runner.limit)
	}
}

func TestRunOnceSkipsWithoutSlots(t *testing.T) {
	runner := &recordingRunner{}
	a := newTestArchiver(&fakeStatusClient{user: spn.UserStatus{Available: 0, Processing: 5}}, runner)

	if err := a.runOnce(context.Background(), testSources); err != nil {
		t.Fatalf("runOnce: %v", err)
	}
	if runner.calls != 0 {
		t.Fatalf("pass should be skipped without free slots")
	}
}

func TestRunOnceFallsBackWhenStatusUnavailable(t *testing.T) {
	runner := &recordingRunner{}
	a := newTestArchiver(&fakeStatusClient{
		sysErr:  errors.New("timeout"),
		userErr: errors.New("timeout"),
	}, runner)

	if err := a.runOnce(context.Background(), testSources); err != nil {
		t.Fatalf("runOnce: %v", err)
	}
	if runner.calls != 1 || runner.limit != 4 {
		t.Fatalf("calls=%d limit=%d", runner.calls, runner.limit)
	}
}

func TestInFlightLimit(t *testing.T) {
	cases := []struct {
		configured int
		available  uint
		want       int
	}{
		{configured: 4, available: 10, want: 4},
		{configured: 4, available: 2, want: 2},
		{configured: 4, available: 0, want: 1},
		{configured: 0, available: 3, want: 1},
		{configured: 4, available: math.MaxUint, want: 4},
		{configured: 4, available: uint(math.MaxInt) + 1, want: 4},
	}
	for _, tc := range cases {
		if got := inFlightLimit(tc.configured, spn.UserStatus{Available: tc.available}); got != tc.want {
			t.Fatalf("inFlightLimit(%d, %d) = %d want %d", tc.configured, tc.available, got, tc.want)
		}
	}
}

func TestNewSPNClientRejectsMissingCredentials(t *testing.T) {
	if _, err := NewSPNClient(&config.Config{SPNSecret: "s"}, nil); err == nil {
		t.Fatalf("expected error for missing access key")
	}
}
