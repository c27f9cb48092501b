package analysis

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoProviders is returned when the router has nothing to call.
var ErrNoProviders = errors.New("no analysis providers configured")

// ErrMalformedResponse marks provider replies that carry no usable analysis.
var ErrMalformedResponse = errors.New("malformed provider response")

// ProviderError is a single provider failure. The router converts it into a
// fallback decision; it reaches callers only inside an AggregateError.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// AggregateError reports that every configured provider failed.
type AggregateError struct {
	Outcomes []ProviderOutcome
}

func (e *AggregateError) Error() string {
	parts := make([]string, 0, len(e.Outcomes))
	for _, o := range e.Outcomes {
		if o.Err == nil {
			continue
		}
		cause := o.Err
		var pe *ProviderError
		if errors.As(cause, &pe) && pe.Err != nil {
			cause = pe.Err
		}
		parts = append(parts, fmt.Sprintf("%s: %v", o.Provider, cause))
	}
	return fmt.Sprintf("all %d analysis providers failed (%s)", len(parts), strings.Join(parts, "; "))
}

// Unwrap exposes each provider's error to errors.Is / errors.As.
func (e *AggregateError) Unwrap() []error {
	errs := make([]error, 0, len(e.Outcomes))
	for _, o := range e.Outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errs
}
