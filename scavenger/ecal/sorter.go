package ecal

import (
	"sort"
	"strings"
	"time"
)

// lastKey is the sort key of events whose date cannot be parsed.
var lastKey = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// SortKey returns the moment used to order e.
//
// The date carries no year: months before the current one belong to next year, everything else to the
// current year. This fits a "this week" feed. An event in the current month that really belongs to next
// year (possible only around December/January with stale data) is placed in the current year.
// "All Day" and unparseable times count as midnight, unparseable dates sort last.
func SortKey(e *EconomicCalendarEvent, now time.Time) time.Time {
	if e == nil {
		return lastKey
	}

	d, err := time.Parse("Jan 2", strings.TrimSpace(e.Date))
	if err != nil {
		return lastKey
	}

	year := now.Year()
	if d.Month() < now.Month() {
		year++
	}

	return time.Date(year, d.Month(), d.Day(), 0, minuteOfDay(e.Time), 0, 0, time.UTC)
}

// minuteOfDay converts "8:30am" to 510. AllDay and anything unparseable is 0.
func minuteOfDay(clock string) int {
	clock = strings.ToLower(strings.Join(strings.Fields(clock), ""))
	if clock == "" || clock == strings.ToLower(strings.ReplaceAll(AllDay, " ", "")) {
		return 0
	}

	t, err := time.Parse(clockLayout, clock)
	if err != nil {
		return 0
	}
	return t.Hour()*60 + t.Minute()
}

// SortChronologically sorts events in place by SortKey (ascending).
// Events with equal keys keep their extraction order.
func (e EconomicCalendarEvents) SortChronologically(now time.Time) {
	keys := make([]time.Time, len(e))
	for i, v := range e {
		keys[i] = SortKey(v, now)
	}

	sort.Stable(byKey{events: e, keys: keys})
}

// byKey sorts events together with their precomputed keys.
type byKey struct {
	events EconomicCalendarEvents
	keys   []time.Time
}

func (b byKey) Len() int           { return len(b.events) }
func (b byKey) Less(i, j int) bool { return b.keys[i].Before(b.keys[j]) }
func (b byKey) Swap(i, j int) {
	b.events[i], b.events[j] = b.events[j], b.events[i]
	b.keys[i], b.keys[j] = b.keys[j], b.keys[i]
}
