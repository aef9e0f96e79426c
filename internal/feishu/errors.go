package feishu

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrAuth is wrapped by every *AuthError so callers can test with errors.Is.
var ErrAuth = errors.New("feishu authentication failed")

// Application-level codes the open API is known to return.
const (
	CodeOK               = 0
	CodeInvalidAppID     = 1001
	CodeInvalidAppSecret = 1002
	CodeTokenExpired     = 1003
	CodePermissionDenied = 1004
	CodeRateLimited      = 1005
	CodeTableNotFound    = 1006
	CodeRecordNotFound   = 1007
	CodeFieldNotFound    = 1008
	CodeBadDataFormat    = 1009
	CodeUpstreamNetwork  = 1010

	CodeFrequencyLimit = 99991400
	CodeTokenInvalid   = 99991663
	CodeTokenMissing   = 99991661
	CodeTokenBad       = 99991668
)

var codeMessages = map[int]string{
	CodeInvalidAppID:     "invalid app id",
	CodeInvalidAppSecret: "invalid app secret",
	CodeTokenExpired:     "access token expired",
	CodePermissionDenied: "permission denied",
	CodeRateLimited:      "request rate limit exceeded",
	CodeTableNotFound:    "table not found",
	CodeRecordNotFound:   "record not found",
	CodeFieldNotFound:    "field not found",
	CodeBadDataFormat:    "invalid data format",
	CodeUpstreamNetwork:  "network connection failed",
	CodeFrequencyLimit:   "request rate limit exceeded",
	CodeTokenInvalid:     "access token invalid",
}

// Message returns the human-readable text for a code. Unknown codes use the
// server's own message, then a generic one.
func Message(code int, serverMsg string) string {
	if m, ok := codeMessages[code]; ok {
		return m
	}
	if serverMsg != "" {
		return serverMsg
	}
	return "unknown error"
}

// isTokenCode reports codes after which the cached token must be dropped.
func isTokenCode(code int) bool {
	switch code {
	case CodeTokenExpired, CodeTokenInvalid, CodeTokenMissing, CodeTokenBad:
		return true
	}
	return false
}

func isTransientCode(code int) bool {
	switch code {
	case CodeRateLimited, CodeFrequencyLimit, CodeUpstreamNetwork:
		return true
	}
	return isTokenCode(code)
}

// NetworkError is a transport failure, a timeout or a non-2xx response
// without a parseable envelope.
type NetworkError struct {
	Op     string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: network error (http %d): %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// maxExcerpt bounds the raw body kept on a ProtocolError.
const maxExcerpt = 200

// ProtocolError is a response whose body is not the expected JSON envelope.
type ProtocolError struct {
	Op      string
	Status  int
	Excerpt string
	Err     error
}

func newProtocolError(op string, status int, body []byte, err error) *ProtocolError {
	if len(body) > maxExcerpt {
		body = body[:maxExcerpt]
	}
	return &ProtocolError{Op: op, Status: status, Excerpt: string(body), Err: err}
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: malformed response (http %d): %q", e.Op, e.Status, e.Excerpt)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// APIError is a well-formed envelope carrying a non-zero code.
type APIError struct {
	Op     string
	Code   int
	Msg    string
	Status int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: feishu error %d: %s", e.Op, e.Code, e.Msg)
}

// Retryable reports whether the code is transient.
func (e *APIError) Retryable() bool { return isTransientCode(e.Code) }

// AuthError is a rejected token exchange.
type AuthError struct {
	Code int
	Msg  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%v: %s (code %d)", ErrAuth, e.Msg, e.Code)
}

func (e *AuthError) Unwrap() error { return ErrAuth }

// IsRetryable classifies an error returned by this package. Network errors
// and transient API codes are retryable; auth, protocol and permanent API
// errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var authErr *AuthError
	if errors.As(err, &authErr) {
		return false
	}
	var protoErr *ProtocolError
	if errors.As(err, &protoErr) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// IsRecordNotFound reports whether the API rejected a record id as unknown.
func IsRecordNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeRecordNotFound
}
