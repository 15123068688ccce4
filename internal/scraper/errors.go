package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrRobotsDisallowed is returned when robots.txt forbids the target URL.
var ErrRobotsDisallowed = errors.New("target url disallowed by robots.txt")

// StatusError reports a non-success response from the target site.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned HTTP %d for %s", e.StatusCode, e.URL)
}

// FetchError marks failures from the HTTP leg of the pipeline so the API
// layer can distinguish them from parse or internal errors.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return "probe fetch: " + e.Err.Error() }

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchFailure reports whether err came from fetching the target page,
// either a transport failure or an error status code.
func IsFetchFailure(err error) bool {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return true
	}
	var statusErr *StatusError
	return errors.As(err, &statusErr)
}

// IsTimeout reports whether err stems from an expired deadline or a network
// timeout, so callers can surface it as a timeout rather than a generic
// fetch failure.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
