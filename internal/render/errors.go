package render

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDecode        = errors.New("decode error")
	ErrConfiguration = errors.New("configuration error")
	ErrEncodeRuntime = errors.New("encode error")
	// ErrCancelled reports a user-requested stop. It is not a failure and
	// callers should present it as such.
	ErrCancelled = errors.New("render cancelled")
	ErrBusy      = errors.New("a render job is already active")
)

// Wrap tags err with marker and the phase and operation it occurred in.
func Wrap(marker error, state State, operation string, err error) error {
	detail := buildDetail(state, operation)
	switch {
	case detail == "" && err == nil:
		return marker
	case detail == "":
		return fmt.Errorf("%w: %w", marker, err)
	case err == nil:
		return fmt.Errorf("%w: %s", marker, detail)
	default:
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
}

func buildDetail(state State, operation string) string {
	parts := make([]string, 0, 2)
	if label := state.Label(); label != "" {
		parts = append(parts, strings.ToLower(label))
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	return strings.Join(parts, ": ")
}

// IsCancellation reports whether err is a cooperative stop rather than a
// failure.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// TerminalState maps a job error to the state the job ends in.
func TerminalState(err error) State {
	switch {
	case err == nil:
		return Done
	case IsCancellation(err):
		return Cancelled
	default:
		return Failed
	}
}
