package httpclient

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const redactedValue = "***"

// sensitiveHeaders are masked in resty debug output.
var sensitiveHeaders = []string{"Authorization", "Proxy-Authorization", "Cookie", "Set-Cookie"}

// Option customizes the underlying resty client.
type Option func(*resty.Client)

// WithLogger routes resty's internal logging (warnings, debug dumps) to log.
func WithLogger(log resty.Logger) Option {
	return func(c *resty.Client) {
		if log != nil {
			c.SetLogger(log)
		}
	}
}

// WithDebug toggles resty request/response dumps. Sensitive headers are always masked.
func WithDebug(debug bool) Option {
	return func(c *resty.Client) {
		c.SetDebug(debug)
	}
}

// RestyClient adapts resty.Client to the httpclient.Client interface.
type RestyClient struct {
	client *resty.Client
}

// NewRestyClient creates a new RestyClient with the specified timeout.
// A zero timeout leaves deadlines to the request context.
func NewRestyClient(timeout time.Duration, opts ...Option) *RestyClient {
	return &RestyClient{client: newRestyBaseClient(timeout, opts...)}
}

// NewRestyHTTPClient exposes a configured resty.Client for callers needing custom verbs.
func NewRestyHTTPClient(timeout time.Duration, opts ...Option) *resty.Client {
	return newRestyBaseClient(timeout, opts...)
}

// newRestyBaseClient creates a new resty.Client with the specified timeout.
func newRestyBaseClient(timeout time.Duration, opts ...Option) *resty.Client {
	c := resty.New()
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	c.OnRequestLog(redactRequestLog)
	c.OnResponseLog(redactResponseLog)
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Get performs an HTTP GET request with the specified context, URL, and headers.
func (r *RestyClient) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	req := r.client.R().SetContext(ctx)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	resp, err := req.Get(url)
	if err != nil {
		return nil, err
	}
	return &restyResponseAdapter{resp: resp}, nil
}

// Post performs an HTTP POST with a pre-encoded body. The caller owns Content-Type.
func (r *RestyClient) Post(ctx context.Context, url string, body []byte, headers map[string]string) (Response, error) {
	req := r.client.R().SetContext(ctx).SetBody(body)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	resp, err := req.Post(url)
	if err != nil {
		return nil, err
	}
	return &restyResponseAdapter{resp: resp}, nil
}

// restyResponseAdapter adapts resty.Response to the httpclient.Response interface.
type restyResponseAdapter struct {
	resp *resty.Response
}

func (r *restyResponseAdapter) Body() []byte    { return r.resp.Body() }
func (r *restyResponseAdapter) StatusCode() int { return r.resp.StatusCode() }

func redactRequestLog(rl *resty.RequestLog) error {
	redactHeader(rl.Header)
	return nil
}

func redactResponseLog(rl *resty.ResponseLog) error {
	redactHeader(rl.Header)
	return nil
}

// redactHeader masks sensitive header values in place.
func redactHeader(h http.Header) {
	if h == nil {
		return
	}
	for _, key := range sensitiveHeaders {
		if _, ok := h[http.CanonicalHeaderKey(key)]; ok {
			h.Set(key, redactedValue)
		}
	}
}
