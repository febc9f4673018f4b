package ecal

import (
	"errors"
	"reflect"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONExtractor_Extract(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []RawEvent
		wantErr bool
	}{
		{
			name: "feed with country and impact",
			payload: `[
				{"title":"CB Consumer Confidence","country":"USD","date":"2023-10-31T10:00:00-04:00","impact":"High","forecast":"100.0","previous":"103.0"},
				{"title":"German Prelim CPI m/m","country":"EUR","date":"2023-10-30T09:00:00-04:00","impact":"Medium","forecast":"0.2%","previous":"0.3%"}
			]`,
			want: []RawEvent{
				{Currency: "USD", Date: "2023-10-31T10:00:00-04:00", Title: "CB Consumer Confidence", Impact: lo.ToPtr("High"), Forecast: "100.0", Previous: "103.0"},
				{Currency: "EUR", Date: "2023-10-30T09:00:00-04:00", Title: "German Prelim CPI m/m", Impact: lo.ToPtr("Medium"), Forecast: "0.2%", Previous: "0.3%"},
			},
		},
		{
			name:    "feed with currency and unix dates as string and number",
			payload: `[{"currency":"usd","date":"1700000000","title":"Non-Farm Payrolls"},{"currency":"ALL","date":1700086400,"time":"All Day","title":"OPEC"}]`,
			want: []RawEvent{
				{Currency: "usd", Date: "1700000000", Title: "Non-Farm Payrolls"},
				{Currency: "ALL", Date: "1700086400", Time: "All Day", Title: "OPEC"},
			},
		},
		{
			name:    "null date and impact",
			payload: `[{"currency":"USD","date":null,"impact":null,"title":"Unknown"}]`,
			want:    []RawEvent{{Currency: "USD", Title: "Unknown"}},
		},
		{
			name:    "empty array",
			payload: `[]`,
			want:    []RawEvent{},
		},
		{
			name:    "malformed JSON",
			payload: `<html><body>Request denied</body></html>`,
			wantErr: true,
		},
		{
			name:    "object instead of array",
			payload: `{"title":"x"}`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := &JSONExtractor{}
			got, err := x.Extract([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Errorf("Extract() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				if !errors.Is(err, errMalformedJSON) {
					t.Errorf("Extract() error = %v, want errMalformedJSON", err)
				}
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Extract() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

const calendarTable = `<html><body>
<table class="calendar__table">
  <tr class="calendar__row calendar__row--day-breaker"><td colspan="10">Mon Oct 23</td></tr>
  <tr class="calendar__row">
    <td class="calendar__date"><span class="date">Mon <span>Oct 23</span></span></td>
    <td class="calendar__time">All Day</td>
    <td class="calendar__currency">USD</td>
    <td class="calendar__impact"><span title="Non-Economic" class="icon icon--ff-impact-gra"></span></td>
    <td class="calendar__event"><span class="calendar__event-title">Bank Holiday</span></td>
    <td class="calendar__forecast"></td>
    <td class="calendar__previous"></td>
  </tr>
  <tr class="calendar__row">
    <td class="calendar__date"></td>
    <td class="calendar__time">8:30am</td>
    <td class="calendar__currency">USD</td>
    <td class="calendar__impact"><span title="High Impact Expected" class="icon icon--ff-impact-red"></span></td>
    <td class="calendar__event"><span class="calendar__event-title">Core CPI m/m</span></td>
    <td class="calendar__forecast">0.3%</td>
    <td class="calendar__previous">0.2%</td>
  </tr>
  <tr class="calendar__row">
    <td class="calendar__date"></td>
    <td class="calendar__time"></td>
    <td class="calendar__currency">USD</td>
    <td class="calendar__impact"><span class="icon icon--ff-impact-yel"></span></td>
    <td class="calendar__event"><span class="calendar__event-title">CPI y/y</span></td>
    <td class="calendar__forecast">3.7%</td>
    <td class="calendar__previous">3.7%</td>
  </tr>
  <tr class="calendar__row">
    <td class="calendar__date"></td>
    <td class="calendar__time">9:00am</td>
    <td class="calendar__event"><span class="calendar__event-title">Row without currency cell</span></td>
  </tr>
  <tr class="calendar__row">
    <td class="calendar__date">Tue <span>Oct 24</span></td>
    <td class="calendar__time">2:00am</td>
    <td class="calendar__currency">EUR</td>
    <td class="calendar__event">German Flash PMI</td>
  </tr>
</table>
</body></html>`

func TestHTMLExtractor_Extract(t *testing.T) {
	x := NewHTMLExtractor(DefaultTableSelectors())
	got, err := x.Extract([]byte(calendarTable))
	require.NoError(t, err)

	want := []RawEvent{
		{Currency: "USD", Date: "Oct 23", Time: "All Day", Title: "Bank Holiday", Impact: lo.ToPtr("Non-Economic")},
		{Currency: "USD", Date: "Oct 23", Time: "8:30am", Title: "Core CPI m/m", Impact: lo.ToPtr("High"), Forecast: "0.3%", Previous: "0.2%"},
		{Currency: "USD", Date: "Oct 23", Time: "8:30am", Title: "CPI y/y", Impact: lo.ToPtr("Low"), Forecast: "3.7%", Previous: "3.7%"},
		{Currency: "EUR", Date: "Oct 24", Time: "2:00am", Title: "German Flash PMI"},
	}
	assert.Equal(t, want, got)
}

func TestHTMLExtractor_Extract_sanitizesTitles(t *testing.T) {
	const page = `<table class="calendar__table">
  <tr class="calendar__row">
    <td class="calendar__date">Wed <span>Oct 25</span></td>
    <td class="calendar__time">9:45am</td>
    <td class="calendar__currency">USD</td>
    <td class="calendar__event"><span class="calendar__event-title">S&amp;P &lt;b&gt;Global&lt;/b&gt; PMI</span></td>
  </tr>
</table>`

	got, err := NewHTMLExtractor(DefaultTableSelectors()).Extract([]byte(page))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "S&P Global PMI", got[0].Title)
}

func TestHTMLExtractor_Extract_noRows(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{
			name:    "captcha page",
			payload: `<html><body><div class="challenge">Just a moment...</div></body></html>`,
		},
		{
			name:    "table without calendar rows",
			payload: `<table class="calendar__table"><tr class="header"><th>Date</th></tr></table>`,
		},
		{
			name:    "empty payload",
			payload: ``,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := NewHTMLExtractor(DefaultTableSelectors())
			got, err := x.Extract([]byte(tt.payload))
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func Test_impactFromIcon(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"title", `<span title="Medium Impact Expected"></span>`, "Medium"},
		{"red class", `<span class="icon icon--ff-impact-red"></span>`, "High"},
		{"orange class", `<span class="icon icon--ff-impact-ora"></span>`, "Medium"},
		{"unknown", `<span class="icon"></span>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := NewHTMLExtractor(TableSelectors{
				Table:    "table",
				Row:      "tr",
				Date:     "td.d",
				Time:     "td.t",
				Currency: "td.c",
				Title:    "td.e",
				Impact:   "td.i span",
			})
			page := `<table><tr><td class="t">1:00pm</td><td class="c">USD</td><td class="e">X</td><td class="i">` + tt.html + `</td></tr></table>`
			got, err := x.Extract([]byte(page))
			require.NoError(t, err)
			require.Len(t, got, 1)
			require.NotNil(t, got[0].Impact)
			assert.Equal(t, tt.want, *got[0].Impact)
		})
	}
}
