// Package spn is a client for the Save Page Now 2 capture API of the Wayback Machine.
//
// The client issues exactly one HTTP request per call and never retries or
// polls on its own; callers decide the polling cadence for capture jobs.
package spn

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/samvad-hq/samvad-page-archiver/pkg/httpclient"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/net/http/httpguts"
)

// DefaultBaseURL is the production host of the capture API.
const DefaultBaseURL = "https://web.archive.org"

const (
	capturePath      = "/save"
	statusPath       = "/save/status"
	userStatusPath   = "/save/status/user"
	systemStatusPath = "/save/status/system"

	opRequestCapture = "request capture"
	opCaptureStatus  = "capture status"
	opUserStatus     = "user status"
	opSystemStatus   = "system status"

	formContentType = "application/x-www-form-urlencoded"
)

// Credentials identify the account issuing captures.
type Credentials struct {
	AccessKey string
	Secret    string
}

// String never includes the secret.
func (c Credentials) String() string {
	return "spn.Credentials{AccessKey:" + c.AccessKey + ", Secret:***}"
}

// GoString never includes the secret.
func (c Credentials) GoString() string { return c.String() }

// MarshalLogObject never includes the secret.
func (c Credentials) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("access_key", c.AccessKey)
	enc.AddString("secret", "***")
	return nil
}

func (c Credentials) authorization() string {
	return "LOW " + c.AccessKey + ":" + c.Secret
}

// Option customizes a Client at construction time.
type Option func(*Client) error

// WithBaseURL points the client at another host, e.g. a test server.
func WithBaseURL(raw string) Option {
	return func(c *Client) error {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil {
			return &ConfigError{Field: "base url", Err: err}
		}
		if u.Scheme == "" || u.Host == "" {
			return &ConfigError{Field: "base url", Err: errors.New("scheme and host are required")}
		}
		c.baseURL = strings.TrimRight(u.String(), "/")
		return nil
	}
}

// WithHTTPClient replaces the default resty transport.
func WithHTTPClient(hc httpclient.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return &ConfigError{Field: "http client", Err: errors.New("must not be nil")}
		}
		c.http = hc
		return nil
	}
}

// WithLogger enables debug logging of request outcomes. Credentials are never logged.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) error {
		if log != nil {
			c.log = log
		}
		return nil
	}
}

// WithClock overrides the time source used for the user status cache buster.
func WithClock(now func() time.Time) Option {
	return func(c *Client) error {
		if now != nil {
			c.now = now
		}
		return nil
	}
}

// Client talks to the capture API. It is safe for concurrent use.
type Client struct {
	http    httpclient.Client
	baseURL string
	headers map[string]string
	timeout atomic.Int64
	log     *zap.Logger
	now     func() time.Time
}

// New builds a client authenticating with the given access key and secret.
// timeout bounds every call; a non-positive value leaves calls bounded only by
// their context.
func New(accessKey, secret string, timeout time.Duration, opts ...Option) (*Client, error) {
	creds := Credentials{AccessKey: accessKey, Secret: secret}
	if strings.TrimSpace(accessKey) == "" {
		return nil, &ConfigError{Field: "access key", Err: errors.New("must not be empty")}
	}
	if strings.TrimSpace(secret) == "" {
		return nil, &ConfigError{Field: "secret", Err: errors.New("must not be empty")}
	}
	auth := creds.authorization()
	if !httpguts.ValidHeaderFieldValue(auth) || !visibleASCII(auth) {
		return nil, &ConfigError{Field: "credentials", Err: errors.New("contain characters not allowed in a header value")}
	}

	c := &Client{
		baseURL: DefaultBaseURL,
		headers: map[string]string{
			"Authorization": auth,
			"Accept":        "application/json",
		},
		log: zap.NewNop(),
		now: time.Now,
	}
	c.SetTimeout(timeout)

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.http == nil {
		c.http = httpclient.NewRestyClient(0)
	}
	return c, nil
}

// SetTimeout changes the per-call timeout. In-flight calls keep the deadline
// they started with.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.timeout.Store(int64(timeout))
}

// Timeout returns the current per-call timeout.
func (c *Client) Timeout() time.Duration {
	return time.Duration(c.timeout.Load())
}

// RequestCapture asks the service to capture target.
func (c *Client) RequestCapture(ctx context.Context, target string, opts CaptureOptions) (CaptureResponse, error) {
	body := []byte(EncodeCaptureForm(target, opts))
	resp, err := c.do(ctx, opRequestCapture, func(ctx context.Context, headers map[string]string) (httpclient.Response, error) {
		headers["Content-Type"] = formContentType
		return c.http.Post(ctx, c.baseURL+capturePath, body, headers)
	})
	if err != nil {
		return CaptureResponse{}, err
	}
	if resp.StatusCode() != http.StatusOK {
		return CaptureResponse{}, newUnexpectedStatusError(opRequestCapture, resp.StatusCode(), resp.Body())
	}
	out, err := decodeCaptureResponse(resp.Body())
	if err != nil {
		return CaptureResponse{}, &DecodeError{Op: opRequestCapture, Err: err}
	}
	return out, nil
}

// CaptureStatus fetches the current status of a capture job.
func (c *Client) CaptureStatus(ctx context.Context, jobID string) (CaptureStatus, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, ErrEmptyJobID
	}
	endpoint := c.baseURL + statusPath + "/" + url.PathEscape(jobID)
	resp, err := c.get(ctx, opCaptureStatus, endpoint)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, newUnexpectedStatusError(opCaptureStatus, resp.StatusCode(), resp.Body())
	}
	status, err := DecodeCaptureStatus(resp.Body())
	if err != nil {
		return nil, &DecodeError{Op: opCaptureStatus, Err: err}
	}
	return status, nil
}

// UserStatus fetches the account's available and processing session counts.
// A timestamp query parameter keeps intermediaries from caching the answer.
func (c *Client) UserStatus(ctx context.Context) (UserStatus, error) {
	endpoint := c.baseURL + userStatusPath + "?_t=" + strconv.FormatInt(c.now().Unix(), 10)
	resp, err := c.get(ctx, opUserStatus, endpoint)
	if err != nil {
		return UserStatus{}, err
	}
	if resp.StatusCode() != http.StatusOK {
		return UserStatus{}, newUnexpectedStatusError(opUserStatus, resp.StatusCode(), resp.Body())
	}
	out, err := decodeUserStatus(resp.Body())
	if err != nil {
		return UserStatus{}, &DecodeError{Op: opUserStatus, Err: err}
	}
	return out, nil
}

// SystemStatus fetches the health of the capture service. A bad gateway
// answer is reported as SystemCritical without reading the body.
func (c *Client) SystemStatus(ctx context.Context) (SystemStatus, error) {
	resp, err := c.get(ctx, opSystemStatus, c.baseURL+systemStatusPath)
	if err != nil {
		return SystemStatus{}, err
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		out, err := SystemStatusFromJSON(resp.Body())
		if err != nil {
			return SystemStatus{}, &DecodeError{Op: opSystemStatus, Err: err}
		}
		return out, nil
	case http.StatusBadGateway:
		return SystemStatus{State: SystemCritical}, nil
	default:
		return SystemStatus{}, newUnexpectedStatusError(opSystemStatus, resp.StatusCode(), resp.Body())
	}
}

func (c *Client) get(ctx context.Context, op, endpoint string) (httpclient.Response, error) {
	return c.do(ctx, op, func(ctx context.Context, headers map[string]string) (httpclient.Response, error) {
		return c.http.Get(ctx, endpoint, headers)
	})
}

type sendFunc func(ctx context.Context, headers map[string]string) (httpclient.Response, error)

// do applies the per-call timeout and turns transport failures into TransportError.
func (c *Client) do(ctx context.Context, op string, send sendFunc) (httpclient.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout := c.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	headers := make(map[string]string, len(c.headers)+1)
	for k, v := range c.headers {
		headers[k] = v
	}

	start := time.Now()
	resp, err := send(ctx, headers)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = errors.Join(ctxErr, err)
		}
		terr := newTransportError(op, err)
		c.log.Debug("spn request failed",
			zap.String("op", op),
			zap.Bool("timeout", terr.Timeout),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, terr
	}
	c.log.Debug("spn request completed",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resp, nil
}

// visibleASCII reports whether s holds only visible ASCII, space and tab.
// Header values carrying obs-text would pass httpguts but are rejected upstream.
func visibleASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if b := s[i]; b != '\t' && (b < 0x20 || b > 0x7e) {
			return false
		}
	}
	return true
}
