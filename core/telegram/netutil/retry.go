package netutil

import (
	"errors"
	"net"
	"net/url"
	"syscall"
)

// ShouldRetry reports whether a Telegram API call failed in a transient
// way worth retrying: timeouts, interrupted or refused connections, and
// dial failures. Anything else, including HTTP-level errors, is final.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil && !errors.Is(urlErr.Err, err) {
		return urlErr.Timeout() || ShouldRetry(urlErr.Err)
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout() || netErr.Temporary()
	}

	return false
}
