package ecal

import (
	"bytes"
	"encoding/json"
	"errors"
	"html"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// Extractor turns a raw payload into RawEvent records.
type Extractor interface {
	Extract(payload []byte) ([]RawEvent, error)
}

// JSONExtractor reads a JSON array of feed objects.
type JSONExtractor struct{}

// Extract parses payload as a JSON array. Malformed JSON is an error for the whole payload.
func (*JSONExtractor) Extract(payload []byte) ([]RawEvent, error) {
	var feed []feedEvent
	if err := json.Unmarshal(payload, &feed); err != nil {
		return nil, errors.Join(errMalformedJSON, err)
	}

	events := make([]RawEvent, 0, len(feed))
	for _, e := range feed {
		currency := e.Currency
		if currency == "" {
			currency = e.Country
		}
		events = append(events, RawEvent{
			Currency: currency,
			Date:     string(e.Date),
			Time:     e.Time,
			Title:    e.Title,
			Impact:   e.Impact,
			Forecast: e.Forecast,
			Previous: e.Previous,
		})
	}

	return events, nil
}

// feedEvent is the JSON feed object. Different feed revisions use either currency or country.
type feedEvent struct {
	Title    string     `json:"title"`
	Currency string     `json:"currency"`
	Country  string     `json:"country"`
	Date     flexString `json:"date"`
	Time     string     `json:"time"`
	Impact   *string    `json:"impact"`
	Forecast string     `json:"forecast"`
	Previous string     `json:"previous"`
}

// flexString accepts a JSON string, a JSON number or null.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*s = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*s = flexString(n.String())
		return nil
	}
}

// TableSelectors are the CSS selectors of the calendar table. The page markup is an external contract
// and may change at any time, so they are kept in one place.
type TableSelectors struct {
	Table    string
	Row      string
	Date     string
	Time     string
	Currency string
	Title    string
	Impact   string
	Forecast string
	Previous string
}

// DefaultTableSelectors returns the selectors of the forexfactory.com calendar table.
func DefaultTableSelectors() TableSelectors {
	return TableSelectors{
		Table:    "table.calendar__table",
		Row:      "tr.calendar__row",
		Date:     "td.calendar__date",
		Time:     "td.calendar__time",
		Currency: "td.calendar__currency",
		Title:    "td.calendar__event",
		Impact:   "td.calendar__impact span",
		Forecast: "td.calendar__forecast",
		Previous: "td.calendar__previous",
	}
}

// HTMLExtractor reads events from the rows of a calendar table.
type HTMLExtractor struct {
	selectors TableSelectors
	sanitizer *bluemonday.Policy
	logger    *slog.Logger
}

// NewHTMLExtractor creates a new HTMLExtractor with the given selectors.
func NewHTMLExtractor(s TableSelectors) *HTMLExtractor {
	return &HTMLExtractor{
		selectors: s,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    slog.Default(),
	}
}

// Extract walks the table rows. A row with a date cell starts a new date context, other rows inherit it.
// Rows without a time, currency or title cell are skipped. A page without rows yields an empty list.
func (x *HTMLExtractor) Extract(payload []byte) ([]RawEvent, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Join(errMalformedHTML, err)
	}

	sel := x.selectors
	rows := doc.Find(sel.Table).First().Find(sel.Row)
	if rows.Length() == 0 {
		x.logNoRows(doc)
		return []RawEvent{}, nil
	}

	events := make([]RawEvent, 0, rows.Length())
	var currentDate, currentTime string
	rows.Each(func(_ int, row *goquery.Selection) {
		if d := row.Find(sel.Date); d.Length() > 0 {
			if date := dateCellText(d); date != "" {
				currentDate = date
				currentTime = ""
			}
		}

		timeCell, currencyCell, titleCell := row.Find(sel.Time), row.Find(sel.Currency), row.Find(sel.Title)
		if timeCell.Length() == 0 || currencyCell.Length() == 0 || titleCell.Length() == 0 {
			return
		}

		currency := cellText(currencyCell)
		title := x.sanitize(titleText(titleCell))
		if currency == "" || title == "" {
			return
		}

		// Consecutive events at the same time leave the time cell blank
		clock := cellText(timeCell)
		if clock == "" {
			clock = currentTime
		} else {
			currentTime = clock
		}

		e := RawEvent{
			Currency: currency,
			Date:     currentDate,
			Time:     clock,
			Title:    title,
		}
		if icon := row.Find(sel.Impact); icon.Length() > 0 {
			impact := impactFromIcon(icon.First())
			e.Impact = &impact
			e.Forecast = cellText(row.Find(sel.Forecast))
			e.Previous = cellText(row.Find(sel.Previous))
		}
		events = append(events, e)
	})

	return events, nil
}

// logNoRows logs what the page looked like when no calendar rows were found.
func (x *HTMLExtractor) logNoRows(doc *goquery.Document) {
	all := doc.Find("tr")
	var classes []string
	all.EachWithBreak(func(i int, s *goquery.Selection) bool {
		if c, ok := s.Attr("class"); ok && c != "" {
			classes = append(classes, c)
		}
		return len(classes) < 5
	})
	x.logger.Warn("[ecal] No calendar rows found",
		"table_found", doc.Find(x.selectors.Table).Length() > 0,
		"row_count", all.Length(),
		"sample_classes", classes,
	)
}

// sanitize strips markup that the page left escaped inside a title cell.
func (x *HTMLExtractor) sanitize(title string) string {
	return strings.TrimSpace(html.UnescapeString(x.sanitizer.Sanitize(title)))
}

// cellText returns the cell text with whitespace collapsed.
func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.First().Text()), " ")
}

// titleText prefers the dedicated title span over the whole cell.
func titleText(s *goquery.Selection) string {
	if t := s.Find(".calendar__event-title"); t.Length() > 0 {
		return cellText(t)
	}
	return cellText(s)
}

// dateCellText reduces "Mon Oct 23" to "Oct 23".
func dateCellText(s *goquery.Selection) string {
	fields := strings.Fields(s.First().Text())
	if len(fields) > 2 {
		fields = fields[len(fields)-2:]
	}
	return strings.Join(fields, " ")
}

// impactFromIcon reads the impact level from the icon title ("High Impact Expected") or its color class.
func impactFromIcon(s *goquery.Selection) string {
	if title, ok := s.Attr("title"); ok && title != "" {
		return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(title), "Impact Expected"))
	}

	class, _ := s.Attr("class")
	switch {
	case strings.Contains(class, "impact-red"):
		return "High"
	case strings.Contains(class, "impact-ora"):
		return "Medium"
	case strings.Contains(class, "impact-yel"):
		return "Low"
	case strings.Contains(class, "impact-gra"):
		return "Non-Economic"
	default:
		return ""
	}
}
