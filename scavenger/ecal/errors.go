package ecal

import (
	"errors"
	"fmt"

	"github.com/samgozman/fin-calendar/pkg/errlvl"
)

var (
	errRateLimited         = errors.New("rate limited by the feed host")
	errReadBody            = errors.New("failed to read response body")
	errMalformedJSON       = errors.New("malformed JSON payload")
	errMalformedHTML       = errors.New("malformed HTML payload")
	errEmptyPayload        = errors.New("source returned no events")
	errLinkNotFound        = errors.New("feed link not found on the calendar page")
	errRendererMissing     = errors.New("no page renderer configured")
	errUnknownStrategy     = errors.New("unknown resolver strategy")
	errStrategiesExhausted = errors.New("all resolver strategies failed")
)

// statusError is returned by the Fetcher for any non-200 response.
type statusError struct {
	code       int
	status     string
	retryAfter string // raw Retry-After header, only kept for 429
}

func (e *statusError) Error() string {
	return fmt.Sprintf("invalid status code error: %d, value %s", e.code, e.status)
}

// Error is the error type for the EconomicCalendar pipeline.
type Error struct {
	level errlvl.Lvl // severity level of the error
	errs  []error
}

func (e *Error) Error() string {
	return e.getWrappedError().Error()
}

func (e *Error) Unwrap() error {
	return e.getWrappedError()
}

func (e *Error) getWrappedError() error {
	return errlvl.Wrap(errors.Join(e.errs...), e.level)
}

// strategyError prefixes err with the name of the strategy that produced it.
func strategyError(s Strategy, err error) error {
	return fmt.Errorf("strategy %s: %w", s, err)
}

// newError creates a new Error instance.
func newError(lvl errlvl.Lvl, errs ...error) *Error {
	return &Error{
		level: lvl,
		errs:  errs,
	}
}
