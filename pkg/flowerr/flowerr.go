// Package flowerr defines the engine's failure taxonomy: configuration
// errors are terminal and never retried, anything else is treated as
// transient and eligible for bounded automatic retry at the step level.
package flowerr

import (
	"errors"
	"fmt"
)

// ErrConfiguration marks bad or missing node settings, malformed
// credentials, and unsupported input shapes. It always aborts the run.
var ErrConfiguration = errors.New("configuration error")

// ErrCycle marks a stored graph containing a cycle. Detected at graph-load
// time, before any node executes.
var ErrCycle = errors.New("workflow graph contains a cycle")

// Configuration wraps an error as a terminal, non-retriable configuration
// failure with a human-readable per-node message.
func Configuration(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// NonRetriable converts an arbitrary error into a terminal failure while
// preserving the original chain.
func NonRetriable(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrConfiguration) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrConfiguration, err)
}

// IsNonRetriable reports whether the error (anywhere in its chain) is
// terminal and must bypass retry.
func IsNonRetriable(err error) bool {
	return errors.Is(err, ErrConfiguration) || errors.Is(err, ErrCycle)
}

// NodeError prefixes an error with the failing node's name so the
// orchestrator's failure record is self-explanatory.
func NodeError(nodeName string, err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("node %q: %w", nodeName, err)
}
