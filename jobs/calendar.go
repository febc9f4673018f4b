package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/samgozman/fin-calendar/internal/utils"
	"github.com/samgozman/fin-calendar/scavenger/ecal"
)

// JobFunc is a type for job function that will be executed by the scheduler.
type JobFunc func()

type calendarFetcher interface {
	FetchDetailed(ctx context.Context) (ecal.EconomicCalendarEvents, error)
}

type publisher interface {
	Publish(ctx context.Context, msg string) (string, error)
}

// CalendarJob is the struct that will fetch calendar events and publish them to the channel
type CalendarJob struct {
	calendarScavenger calendarFetcher // calendar scavenger that will fetch calendar events
	publisher         publisher       // publisher that will publish the digest to the channel
	timeout           time.Duration   // upper bound of a single run
	logger            *slog.Logger    // special logger for the job
}

func NewCalendarJob(calendarScavenger calendarFetcher, publisher publisher) *CalendarJob {
	return &CalendarJob{
		calendarScavenger: calendarScavenger,
		publisher:         publisher,
		timeout:           3 * time.Minute,
		logger:            slog.Default(),
	}
}

// WithLogger sets the logger of the job.
func (j *CalendarJob) WithLogger(l *slog.Logger) *CalendarJob {
	j.logger = l
	return j
}

// WithTimeout sets the upper bound of a single run. The browser strategy alone may take a minute.
func (j *CalendarJob) WithTimeout(d time.Duration) *CalendarJob {
	j.timeout = d
	return j
}

// RunWeeklyCalendarJob creates events plan for the upcoming week and publishes them to the channel.
// It should be run once a week on Monday.
func (j *CalendarJob) RunWeeklyCalendarJob() JobFunc {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		defer cancel()
		j.logger.Info("[calendar] Running weekly plan")

		// Sentry performance monitoring
		hub := sentry.GetHubFromContext(ctx)
		if hub == nil {
			hub = sentry.CurrentHub().Clone()
			ctx = sentry.SetHubOnContext(ctx, hub)
		}

		tx := sentry.StartTransaction(ctx, "RunWeeklyCalendarJob")
		tx.Op = "job-calendar"

		defer func() {
			tx.Finish()
			hub.Flush(2 * time.Second)
		}()

		span := tx.StartChild("EconomicCalendar.FetchDetailed")
		events, err := j.calendarScavenger.FetchDetailed(span.Context())
		span.Finish()
		if err != nil {
			j.logger.Error("[calendar] Error fetching events", "error", err)
			utils.CaptureSentryException("calendarJobFetchError", hub, err)
			return
		}

		m := formatWeeklyEvents(events)
		if m == "" {
			j.logger.Info("[calendar] No events for the upcoming week, nothing to publish")
			return
		}

		span = tx.StartChild("TelegramPublisher.Publish")
		id, err := j.publisher.Publish(span.Context(), m)
		span.Finish()
		if err != nil {
			j.logger.Error("[calendar] Error publishing events", "error", err)
			utils.CaptureSentryException("calendarJobPublishError", hub, err)
			return
		}

		j.logger.Info("[calendar] Weekly plan published", "events", len(events), "message", id)
	}
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "[", "\\[", "`", "\\`")

// formatWeeklyEvents formats events to the text for publishing to the telegram channel.
// Events are expected in chronological order, a new group starts whenever the date label changes.
func formatWeeklyEvents(events ecal.EconomicCalendarEvents) string {
	if len(events) == 0 {
		return ""
	}

	var m strings.Builder
	latestDateStr := ""
	for _, e := range events {
		// Add events group date
		if e.Date != latestDateStr {
			latestDateStr = e.Date
			m.WriteString(fmt.Sprintf("*%s*\n", markdownEscaper.Replace(e.Date)))
		}

		country, ok := ecal.EconomicCalendarCountryEmoji[e.Currency]
		if !ok {
			country = e.Currency
		}
		title := markdownEscaper.Replace(e.Event)

		// Print all day events without time
		if e.Time == ecal.AllDay {
			m.WriteString(fmt.Sprintf("%s %s\n", country, title))
			continue
		}
		m.WriteString(fmt.Sprintf("%s %s %s", country, e.Time, title))

		// Print forecast and previous values if they are not empty
		if e.ImpactMeta != nil {
			if e.Forecast != "" {
				m.WriteString(fmt.Sprintf(", forecast: %s", markdownEscaper.Replace(e.Forecast)))
			}
			if e.Previous != "" {
				m.WriteString(fmt.Sprintf(", last: %s", markdownEscaper.Replace(e.Previous)))
			}
		}

		m.WriteString("\n")
	}

	header := "📅 Economic calendar for the upcoming week\n\n"
	footer := "#calendar #economy"
	return header + m.String() + footer
}
