package ecal

import (
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/samgozman/fin-calendar/utils"
)

const (
	dateLayout  = "Jan 02" // short month-day label
	clockLayout = "3:04pm" // 12-hour clock without leading zero
)

// impactColors maps lowercase impact levels to display colors.
var impactColors = map[string]string{
	"low":    "#ffd700",
	"medium": "#ffa500",
	"high":   "#ff0000",
}

// CurrencyPolicy decides which currencies survive normalization.
type CurrencyPolicy struct {
	Allowed          []string // uppercase codes that are always kept
	KeepImpactTagged bool     // keep any 3-letter code when the source provides impact metadata
}

// Normalizer filters raw events by currency and derives canonical date and time labels.
type Normalizer struct {
	policy   CurrencyPolicy
	location *time.Location
}

// NewNormalizer creates a new Normalizer. Unix timestamps are converted to loc.
func NewNormalizer(policy CurrencyPolicy, loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	policy.Allowed = lo.Map(policy.Allowed, func(c string, _ int) string {
		return strings.ToUpper(strings.TrimSpace(c))
	})

	return &Normalizer{
		policy:   policy,
		location: loc,
	}
}

// NormalizeAll normalizes raws in order and drops the filtered ones.
func (n *Normalizer) NormalizeAll(raws []RawEvent) EconomicCalendarEvents {
	events := make(EconomicCalendarEvents, 0, len(raws))
	for _, r := range raws {
		if e, ok := n.Normalize(r); ok {
			events = append(events, e)
		}
	}
	return events
}

// Normalize returns the canonical event, or false when the event is filtered out by currency.
// Date parsing failures never escape: the raw text is kept instead.
func (n *Normalizer) Normalize(raw RawEvent) (*EconomicCalendarEvent, bool) {
	currency, ok := n.keep(raw)
	if !ok {
		return nil, false
	}

	date, clock := n.deriveDateTime(strings.TrimSpace(raw.Date), strings.TrimSpace(raw.Time))
	if clock == "" {
		clock = AllDay
	}

	e := &EconomicCalendarEvent{
		Date:     date,
		Time:     clock,
		Currency: currency,
		Event:    strings.TrimSpace(raw.Title),
	}
	if raw.Impact != nil {
		e.ImpactMeta = &ImpactMeta{
			Impact:      *raw.Impact,
			ImpactColor: ImpactColor(*raw.Impact),
			Forecast:    raw.Forecast,
			Previous:    raw.Previous,
		}
	}

	return e, true
}

// keep applies the currency policy and returns the uppercase currency.
func (n *Normalizer) keep(raw RawEvent) (string, bool) {
	currency := strings.ToUpper(strings.TrimSpace(raw.Currency))
	if lo.Contains(n.policy.Allowed, currency) {
		return currency, true
	}
	if n.policy.KeepImpactTagged && raw.Impact != nil && isCurrencyCode(currency) {
		return currency, true
	}
	return "", false
}

// deriveDateTime converts unix and ISO-8601 dates to labels. Anything else is passed through unchanged.
func (n *Normalizer) deriveDateTime(rawDate, rawTime string) (date, clock string) {
	if ts, ok := utils.ParseUnix(rawDate); ok {
		return ts.In(n.location).Format(dateLayout), rawTime
	}

	ts, hasClock, err := utils.ParseISO(rawDate, n.location)
	if err != nil {
		return rawDate, rawTime
	}
	if !hasClock {
		return ts.Format(dateLayout), rawTime
	}
	return ts.Format(dateLayout), ts.Format(clockLayout)
}

// ImpactColor returns the display color of an impact level, or "" when the level is unknown.
func ImpactColor(impact string) string {
	return impactColors[strings.ToLower(strings.TrimSpace(impact))]
}

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
