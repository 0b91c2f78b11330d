package spn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-page-archiver/pkg/httpclient"
)

const (
	testKey    = "key123"
	testSecret = "s3cret"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts = append([]Option{WithBaseURL(srv.URL)}, opts...)
	client, err := New(testKey, testSecret, 2*time.Second, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func assertHeaders(t *testing.T, r *http.Request) {
	t.Helper()
	if got := r.Header.Get("Authorization"); got != "LOW key123:s3cret" {
		t.Errorf("Authorization = %q", got)
	}
	if got := r.Header.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q", got)
	}
}

func TestNewRejectsInvalidHeaderCharacters(t *testing.T) {
	cases := []struct{ key, secret string }{
		{"key\nX-Injected: 1", "secret"},
		{"key", "sec\x00ret"},
		{"key", "sec\rret"},
		{"", "secret"},
		{"key", " "},
		{"key", "s\u00e9cret"},
		{"\u5bc6\u94a5", "secret"},
		{"key", "sec\x7fret"},
	}
	for _, tc := range cases {
		client, err := New(tc.key, tc.secret, time.Second)
		if client != nil {
			t.Fatalf("expected nil client for %q/%q", tc.key, tc.secret)
		}
		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigError for %q/%q, got %v", tc.key, tc.secret, err)
		}
		if strings.Contains(err.Error(), tc.secret) && strings.TrimSpace(tc.secret) != "" {
			t.Fatalf("error leaks secret: %v", err)
		}
	}
}

func TestNewRejectsInvalidBaseURL(t *testing.T) {
	_, err := New(testKey, testSecret, time.Second, WithBaseURL("not a url"))
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestCredentialsNeverPrintSecret(t *testing.T) {
	creds := Credentials{AccessKey: testKey, Secret: testSecret}
	for _, s := range []string{creds.String(), fmt.Sprintf("%v", creds), fmt.Sprintf("%#v", creds), fmt.Sprintf("%+v", creds)} {
		if strings.Contains(s, testSecret) {
			t.Fatalf("secret leaked in %q", s)
		}
	}
}

func TestRequestCapturePostsForm(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assertHeaders(t, r)
		if r.Method != http.MethodPost || r.URL.Path != "/save" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Content-Type"); got != formContentType {
			t.Errorf("Content-Type = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.HasPrefix(string(body), "url=example.com&capture_all=1&") {
			t.Errorf("unexpected body %q", body)
		}
		_, _ = w.Write([]byte(`{"url":"example.com","job_id":"spn2-abc"}`))
	})

	resp, err := client.RequestCapture(context.Background(), "example.com", CaptureOptions{CaptureAll: true})
	if err != nil {
		t.Fatalf("RequestCapture: %v", err)
	}
	if resp.JobID != "spn2-abc" || resp.URL != "example.com" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestRequestCaptureUnexpectedStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	})

	_, err := client.RequestCapture(context.Background(), "example.com", CaptureOptions{})
	var statusErr *UnexpectedStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected UnexpectedStatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests || statusErr.Body != "too many requests" {
		t.Fatalf("unexpected error %+v", statusErr)
	}
}

func TestRequestCaptureMissingJobIDIsDecodeError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"url":"example.com"}`))
	})

	_, err := client.RequestCapture(context.Background(), "example.com", CaptureOptions{})
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestCaptureStatusDecodesVariant(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assertHeaders(t, r)
		if r.URL.Path != "/save/status/job-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"status":"pending","resources":["a"]}`))
	})

	status, err := client.CaptureStatus(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("CaptureStatus: %v", err)
	}
	if _, ok := status.(CapturePending); !ok {
		t.Fatalf("expected pending, got %T", status)
	}
}

func TestCaptureStatusUnknownVariantIsDecodeError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"weird"}`))
	})

	_, err := client.CaptureStatus(context.Background(), "job-1")
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestCaptureStatusEmptyJobID(t *testing.T) {
	client := newTestClient(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected")
	})
	if _, err := client.CaptureStatus(context.Background(), " "); !errors.Is(err, ErrEmptyJobID) {
		t.Fatalf("expected ErrEmptyJobID, got %v", err)
	}
}

func TestUserStatusSendsCacheBuster(t *testing.T) {
	now := time.Unix(1700000000, 0)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assertHeaders(t, r)
		if r.URL.Path != "/save/status/user" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("_t"); got != "1700000000" {
			t.Errorf("_t = %q", got)
		}
		_, _ = w.Write([]byte(`{"available":4,"processing":1}`))
	}, WithClock(func() time.Time { return now }))

	status, err := client.UserStatus(context.Background())
	if err != nil {
		t.Fatalf("UserStatus: %v", err)
	}
	if status.Available != 4 || status.Processing != 1 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestUserStatusRejectsNegativeCounters(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"available":-1,"processing":0}`))
	})
	_, err := client.UserStatus(context.Background())
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestSystemStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   SystemStatus
	}{
		{"ok", http.StatusOK, `{"status":"ok"}`, SystemStatus{State: SystemOK}},
		{"issues", http.StatusOK, `{"status":"Save Page Now servers are temporarily overloaded."}`,
			SystemStatus{State: SystemIssues, Description: "Save Page Now servers are temporarily overloaded."}},
		{"critical", http.StatusBadGateway, `<html>bad gateway`, SystemStatus{State: SystemCritical}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assertHeaders(t, r)
				if r.URL.Path != "/save/status/system" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			got, err := client.SystemStatus(context.Background())
			if err != nil {
				t.Fatalf("SystemStatus: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %+v want %+v", got, tc.want)
			}
		})
	}
}

func TestSystemStatusOtherCodesFail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := client.SystemStatus(context.Background())
	var statusErr *UnexpectedStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 UnexpectedStatusError, got %v", err)
	}
}

func TestSystemStatusMissingFieldIsDecodeError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"state":"ok"}`))
	})
	_, err := client.SystemStatus(context.Background())
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestTimeoutSurfacesAsTransportError(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)
	client.SetTimeout(50 * time.Millisecond)

	_, err := client.UserStatus(context.Background())
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if !terr.Timeout || !IsTimeout(err) {
		t.Fatalf("expected timeout flag, got %+v", terr)
	}
}

func TestCancelledContextIsTransportErrorWithoutTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.SystemStatus(ctx)
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if terr.Timeout {
		t.Fatalf("cancellation must not be reported as timeout")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", err)
	}
}

// recordingTransport captures the context deadline of each call.
type recordingTransport struct {
	deadlines []time.Duration
	calls     atomic.Int32
}

type stubResponse struct {
	status int
	body   string
}

func (s stubResponse) Body() []byte    { return []byte(s.body) }
func (s stubResponse) StatusCode() int { return s.status }

func (r *recordingTransport) record(ctx context.Context) {
	r.calls.Add(1)
	if dl, ok := ctx.Deadline(); ok {
		r.deadlines = append(r.deadlines, time.Until(dl))
	} else {
		r.deadlines = append(r.deadlines, 0)
	}
}

func (r *recordingTransport) Get(ctx context.Context, _ string, _ map[string]string) (httpclient.Response, error) {
	r.record(ctx)
	return stubResponse{status: http.StatusOK, body: `{"status":"ok"}`}, nil
}

func (r *recordingTransport) Post(ctx context.Context, _ string, _ []byte, _ map[string]string) (httpclient.Response, error) {
	r.record(ctx)
	return stubResponse{status: http.StatusOK, body: `{"url":"u","job_id":"j"}`}, nil
}

func TestSetTimeoutAppliesToLaterCalls(t *testing.T) {
	transport := &recordingTransport{}
	client, err := New(testKey, testSecret, time.Hour, WithHTTPClient(transport))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := client.SystemStatus(context.Background()); err != nil {
		t.Fatalf("SystemStatus: %v", err)
	}
	client.SetTimeout(time.Second)
	if client.Timeout() != time.Second {
		t.Fatalf("Timeout() = %v", client.Timeout())
	}
	if _, err := client.SystemStatus(context.Background()); err != nil {
		t.Fatalf("SystemStatus: %v", err)
	}
	client.SetTimeout(0)
	if _, err := client.RequestCapture(context.Background(), "u", CaptureOptions{}); err != nil {
		t.Fatalf("RequestCapture: %v", err)
	}

	if len(transport.deadlines) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(transport.deadlines))
	}
	if transport.deadlines[0] < 59*time.Minute {
		t.Fatalf("first call deadline too short: %v", transport.deadlines[0])
	}
	if transport.deadlines[1] > time.Second {
		t.Fatalf("second call deadline too long: %v", transport.deadlines[1])
	}
	if transport.deadlines[2] != 0 {
		t.Fatalf("zero timeout must not set a deadline, got %v", transport.deadlines[2])
	}
}

func TestTransportErrorFromInjectedClient(t *testing.T) {
	client, err := New(testKey, testSecret, time.Second, WithHTTPClient(failingTransport{err: errors.New("connection refused")}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = client.CaptureStatus(context.Background(), "job")
	var terr *TransportError
	if !errors.As(err, &terr) || terr.Timeout {
		t.Fatalf("expected non-timeout TransportError, got %v", err)
	}
}

type failingTransport struct{ err error }

func (f failingTransport) Get(context.Context, string, map[string]string) (httpclient.Response, error) {
	return nil, f.err
}

func (f failingTransport) Post(context.Context, string, []byte, map[string]string) (httpclient.Response, error) {
	return nil, f.err
}
