package collector

import (
	"errors"
	"fmt"
)

var (
	// ErrNoScript is returned when the runner has no script configured.
	ErrNoScript = errors.New("collector script path is not configured")
	// ErrTimeout is returned when the collector exceeded the configured deadline and was killed.
	ErrTimeout = errors.New("collector timed out")
)

// ExitError reports a collector process that terminated with a non-zero exit code.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("Script failed with return code %d", e.Code)
}
