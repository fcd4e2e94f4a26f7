package marketplace

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// newHTTPClient builds a resty client with the timeout window spec §5
// requires on every outbound call (15-30s).
func newHTTPClient(timeoutSeconds int) *resty.Client {
	c := resty.New()
	c.SetTimeout(time.Duration(timeoutSeconds) * time.Second)
	c.SetRetryCount(0) // retries are owned by RetryTransient, not resty
	return c
}

// classifyHTTPError maps a resty response/error pair onto the three
// adapter error kinds from spec §7.
func classifyHTTPError(resp *resty.Response, err error) error {
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return &TransientError{Cause: err}
		}
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			return &TransientError{Cause: err}
		}
		return &TransientError{Cause: err}
	}
	if resp == nil {
		return &TransientError{Cause: errors.New("empty response")}
	}
	switch {
	case resp.StatusCode() == http.StatusTooManyRequests:
		return &TransientError{Cause: errors.New("rate limited (429)")}
	case resp.StatusCode() == http.StatusUnauthorized:
		return &AuthError{Cause: errors.New("unauthorized (401)")}
	case resp.StatusCode() >= 500:
		return &TransientError{Cause: errors.New(resp.Status())}
	case resp.StatusCode() >= 400:
		return &ProtocolError{Cause: errors.New(resp.Status())}
	}
	return nil
}

// ctxDone is a tiny helper so adapters can bail out early on cancellation
// without importing time in every file.
func ctxDone(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
