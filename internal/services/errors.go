package services

import (
	"errors"
	"fmt"
)

// ErrProfileIncomplete is returned when matching is requested for a
// conversation whose profile accumulator is still empty
var ErrProfileIncomplete = errors.New("profile not complete")

// ConfigurationError reports a missing external credential. It is raised at
// first capability use, not at process start, so the conversation flow stays
// usable when matching is unconfigured.
type ConfigurationError struct {
	Missing string // name of the missing credential
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s not found in environment variables", e.Missing)
}

// MatchingError wraps a completion-service failure that survived the client's
// own retry budget. It propagates out of the matching engine unchanged; the
// HTTP boundary decides how to surface it.
type MatchingError struct {
	Stage string // pipeline stage that failed ("generation", "verification")
	Err   error
}

func (e *MatchingError) Error() string {
	return fmt.Sprintf("matching failed during %s: %v", e.Stage, e.Err)
}

func (e *MatchingError) Unwrap() error {
	return e.Err
}
