package core

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrBackendUnreachable means the health probe failed or timed out.
	ErrBackendUnreachable = errors.New("backend unreachable")
	// ErrRequestTimeout means the chat call did not complete within its deadline.
	ErrRequestTimeout = errors.New("backend request timed out")
	// ErrNetworkFailure covers transport errors and non-2xx chat responses.
	ErrNetworkFailure = errors.New("backend network failure")
	// ErrMalformedReply means the backend answered with an undecodable payload.
	ErrMalformedReply = errors.New("malformed backend reply")
	// ErrSpeechCapabilityUnavailable means no platform speech engine is present.
	ErrSpeechCapabilityUnavailable = errors.New("speech capability unavailable")

	ErrEmptyMessage = errors.New("message is empty")
	ErrBusy         = errors.New("a backend request is already outstanding")
)

// ClassifyTransportError maps an HTTP client error onto ErrRequestTimeout or
// ErrNetworkFailure while keeping the original error in the chain.
func ClassifyTransportError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrRequestTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrRequestTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrNetworkFailure, err)
}
