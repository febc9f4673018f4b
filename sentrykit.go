package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/samgozman/fin-calendar/internal/utils"
	"github.com/samgozman/fin-calendar/pkg/errlvl"
)

// SentryKit is a wrapper around sentry-go SDK that provides some convenience methods for logging and tracing
type SentryKit struct {
	enabled bool
	log     *slog.Logger
}

// NewSentryKit initialises the sentry client. With an empty dsn events are only logged.
func NewSentryKit(dsn, release string, log *slog.Logger) (*SentryKit, error) {
	if dsn == "" {
		log.Debug("[sentry] SENTRY_DSN is not set, error tracking disabled")
		return &SentryKit{log: log}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          release,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, err
	}

	return &SentryKit{enabled: true, log: log}, nil
}

// AddBreadcrumb adds a breadcrumb to the current hub with the given category and message
func (s *SentryKit) AddBreadcrumb(c, m string) {
	sentry.CurrentHub().AddBreadcrumb(&sentry.Breadcrumb{
		Category: c,
		Message:  m,
		Level:    sentry.LevelInfo,
	}, nil)
}

// CaptureError logs the error at its errlvl severity and captures it under the given name
func (s *SentryKit) CaptureError(name, m string, err error) {
	lvl := errlvl.Of(err)
	if lvl == 0 {
		lvl = errlvl.ERROR
	}
	s.log.Log(context.Background(), lvl.SlogLevel(), m, "error", err)
	utils.CaptureSentryException(name, sentry.CurrentHub(), err)
}

// Flush waits for the queued events to be sent
func (s *SentryKit) Flush() {
	if s.enabled {
		sentry.Flush(2 * time.Second)
	}
}
