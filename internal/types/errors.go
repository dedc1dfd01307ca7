package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrInvalidURL    = errors.New("invalid product URL")
	ErrUnsupported   = errors.New("unsupported platform")
	ErrBlocked       = errors.New("navigation blocked")
	ErrChallenge     = errors.New("challenge detected")
	ErrNavigation    = errors.New("navigation failed")
	ErrNoTokens      = errors.New("internal API tokens not found")
	ErrEmptyResponse = errors.New("empty response body")
	ErrNoElement     = errors.New("element not found")
	ErrNoProvider    = errors.New("no narrative provider configured")
)

// InvalidURLError is returned by the resolver when a URL does not match
// any known product URL pattern.
type InvalidURLError struct {
	Raw    string
	Reason string
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("invalid product URL %q: %s", e.Raw, e.Reason)
}

func (e *InvalidURLError) Unwrap() error { return ErrInvalidURL }

// NavigationError wraps a failed or refused page navigation.
type NavigationError struct {
	URL     string
	Outcome NavOutcome
	Err     error
}

func (e *NavigationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("navigate %s (%s): %v", e.URL, e.Outcome, e.Err)
	}
	return fmt.Sprintf("navigate %s: %s", e.URL, e.Outcome)
}

func (e *NavigationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	switch e.Outcome {
	case NavBlocked:
		return ErrBlocked
	case NavChallenge:
		return ErrChallenge
	default:
		return ErrNavigation
	}
}

// FetchError wraps errors that occur during internal API calls.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After header on HTTP 429
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ParseError wraps errors that occur while decoding page or API content.
type ParseError struct {
	URL      string
	Selector string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s (selector=%q): %v", e.URL, e.Selector, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ExportError wraps a failure to write one report output.
type ExportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s to %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// NarrativeError wraps a failed narrative generation for one report section.
type NarrativeError struct {
	Provider string
	Section  string
	Err      error
}

func (e *NarrativeError) Error() string {
	return fmt.Sprintf("narrative %s/%s: %v", e.Provider, e.Section, e.Err)
}

func (e *NarrativeError) Unwrap() error { return e.Err }
