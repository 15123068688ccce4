package scraper

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsTimeout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "wrapped deadline", err: fmt.Errorf("visit: %w", context.DeadlineExceeded), want: true},
		{name: "net timeout", err: timeoutNetError{}, want: true},
		{name: "fetch wrapping deadline", err: &FetchError{Err: context.DeadlineExceeded}, want: true},
		{name: "plain", err: errors.New("boom"), want: false},
		{name: "canceled", err: context.Canceled, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsTimeout(tt.err); got != tt.want {
				t.Fatalf("IsTimeout(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsFetchFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "fetch error", err: &FetchError{Err: errors.New("connection refused")}, want: true},
		{name: "wrapped fetch error", err: fmt.Errorf("scrape: %w", &FetchError{Err: errors.New("reset")}), want: true},
		{name: "status error", err: &StatusError{StatusCode: 404, URL: "https://example.com"}, want: true},
		{name: "robots", err: ErrRobotsDisallowed, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsFetchFailure(tt.err); got != tt.want {
				t.Fatalf("IsFetchFailure(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

type timeoutNetError struct{}

func (timeoutNetError) Error() string   { return "i/o timeout" }
func (timeoutNetError) Timeout() bool   { return true }
func (timeoutNetError) Temporary() bool { return true }
