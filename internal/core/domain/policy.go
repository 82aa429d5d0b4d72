package domain

import (
	"fmt"
	"strings"
)

// FailurePolicy decides what happens to the real call when recording fails.
type FailurePolicy string

const (
	// FailOpen logs the recording failure and still runs the real call.
	FailOpen FailurePolicy = "fail_open"
	// FailClosed aborts the real call with an error wrapping ErrRecordFailed.
	FailClosed FailurePolicy = "fail_closed"
)

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch p := FailurePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case FailOpen, FailClosed:
		return p, nil
	}
	return "", fmt.Errorf("%w %q: must be %q or %q", ErrInvalidPolicy, s, FailOpen, FailClosed)
}
