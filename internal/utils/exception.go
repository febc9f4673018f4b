package utils

import (
	"github.com/getsentry/sentry-go"
	"github.com/samgozman/fin-calendar/pkg/errlvl"
)

type sentryHub interface {
	CaptureException(exception error) *sentry.EventID
	WithScope(callback func(scope *sentry.Scope))
}

// CaptureSentryException captures err under the given name.
// Sentry names exceptions after the Go error type (*errors.joinError, *ecal.Error) which says nothing
// about the failed operation, so the top exception type is rewritten to name and the event level
// follows the errlvl severity of err.
func CaptureSentryException(name string, hub sentryHub, err error) {
	level := errorsLevelMatcher(err)
	hub.WithScope(func(scope *sentry.Scope) {
		scope.AddEventProcessor(renameException(name, level))
		hub.CaptureException(err)
	})
}

// renameException sets the type of the outermost exception and the event level.
func renameException(name string, level sentry.Level) sentry.EventProcessor {
	return func(e *sentry.Event, _ *sentry.EventHint) *sentry.Event {
		// e.Exception is ordered from the innermost cause to the outermost error.
		if len(e.Exception) > 0 {
			e.Exception[len(e.Exception)-1].Type = name
		}
		e.Level = level
		return e
	}
}

// errorsLevelMatcher returns the Sentry level for the severity carried by err.
// Errors without a level are reported as errors.
func errorsLevelMatcher(err error) sentry.Level {
	if err == nil {
		return sentry.LevelDebug
	}
	switch errlvl.Of(err) {
	case errlvl.DEBUG:
		return sentry.LevelDebug
	case errlvl.INFO:
		return sentry.LevelInfo
	case errlvl.WARN:
		return sentry.LevelWarning
	case errlvl.FATAL:
		return sentry.LevelFatal
	default:
		return sentry.LevelError
	}
}
