// Package scraper implements the authenticated booking harvester.
package scraper

import (
	"errors"
	"fmt"
)

// ErrScrapeInProgress is returned when a scrape is requested for a club
// that already has one in flight. Enforced by the scheduler.
var ErrScrapeInProgress = errors.New("scrape already in progress for this club")

// AuthError indicates failed authentication against the upstream:
// credentials that would not decrypt, an unparseable login form, or a
// post-login page that still shows a login form. Never retried.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream auth failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("upstream auth failed: %s", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// UpstreamError indicates a failure external to this system: transport
// faults, unparseable responses, or an empty asset page after login.
type UpstreamError struct {
	Reason string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("upstream error: %s", e.Reason)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ConfigError indicates the club is not configured for scraping.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("scrape config error: %s", e.Reason)
}

// IsAuthError reports whether err is (or wraps) an AuthError.
func IsAuthError(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

// IsUpstreamError reports whether err is (or wraps) an UpstreamError.
func IsUpstreamError(err error) bool {
	var target *UpstreamError
	return errors.As(err, &target)
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}
