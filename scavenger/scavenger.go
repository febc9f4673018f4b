package scavenger

import "github.com/samgozman/fin-calendar/scavenger/ecal"

// Scavenger is the struct that fetches some custom data from defined sources.
// The Scavenger will hold all available sources and will fetch the data from them.
//
// The main purpose of this struct is to fetch custom unstructured data for different purposes,
// for example to scrape the weekly economic calendar.
type Scavenger struct {
	EconomicCalendar *ecal.EconomicCalendar
}
