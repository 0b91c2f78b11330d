package spn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrEmptyJobID is returned by CaptureStatus when called without a job id.
var ErrEmptyJobID = errors.New("spn: job id is empty")

const maxErrorBodyBytes = 512

// ConfigError reports invalid client construction input. It is not retryable.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("spn: invalid %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// TransportError wraps network failures, TLS failures, cancellation and deadline expiry.
type TransportError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("spn: %s: request timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("spn: %s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UnexpectedStatusError reports an HTTP status other than the documented success code(s).
type UnexpectedStatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *UnexpectedStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("spn: %s: unexpected response status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("spn: %s: unexpected response status %d: %s", e.Op, e.StatusCode, e.Body)
}

// DecodeError reports a response body that does not match the expected shape.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("spn: %s: decode response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a transport error caused by deadline expiry.
func IsTimeout(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Timeout
}

func newTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Timeout: isTimeoutErr(err), Err: err}
}

func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func newUnexpectedStatusError(op string, status int, body []byte) *UnexpectedStatusError {
	return &UnexpectedStatusError{Op: op, StatusCode: status, Body: bodySnippet(body)}
}

func bodySnippet(body []byte) string {
	if len(body) > maxErrorBodyBytes {
		body = body[:maxErrorBodyBytes]
	}
	return strings.TrimSpace(string(body))
}
