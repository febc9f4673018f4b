package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/samgozman/fin-calendar/scavenger/ecal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, feedURL string) *App {
	t.Helper()
	env, err := LoadEnv("")
	require.NoError(t, err)
	env.CalendarFeedURL = feedURL
	env.CalendarStrategies = "json-direct"
	env.CalendarTimezone = "UTC"
	env.FetchMaxRetries = 1
	env.FetchInitialDelay = time.Millisecond
	env.FetchRatePerSecond = 0

	cfg, err := NewConfig(env)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	kit, err := NewSentryKit("", version, logger)
	require.NoError(t, err)

	app, err := NewApp(cfg, kit, logger)
	require.NoError(t, err)
	return app
}

func TestApp_fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"title":"Unemployment Claims","country":"USD","date":"2023-10-26T08:30:00-04:00","impact":"High","forecast":"208K","previous":"198K"},
			{"title":"Tokyo Core CPI y/y","country":"JPY","date":"2023-10-26T19:30:00-04:00","impact":"Medium"}
		]`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := newTestApp(t, srv.URL).fetch(context.Background(), &out, true)
	require.NoError(t, err)

	var got []map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, map[string]string{
		"date":         "Oct 26",
		"time":         "8:30am",
		"currency":     "USD",
		"event":        "Unemployment Claims",
		"impact":       "High",
		"impact_color": "#ff0000",
		"forecast":     "208K",
		"previous":     "198K",
	}, got[0])
}

func TestApp_fetch_failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	app := newTestApp(t, srv.URL)

	var out bytes.Buffer
	require.NoError(t, app.fetch(context.Background(), &out, false))
	assert.Equal(t, "[]\n", out.String())

	out.Reset()
	require.Error(t, app.fetch(context.Background(), &out, true))
	assert.Equal(t, "[]\n", out.String())
}

func TestNewApp_withoutBrowser(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	env, err := LoadEnv("")
	require.NoError(t, err)
	env.BrowserExecPath = ""

	cfg, err := NewConfig(env)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	kit, err := NewSentryKit("", version, logger)
	require.NoError(t, err)

	app, err := NewApp(cfg, kit, logger)
	require.NoError(t, err)
	assert.Equal(t, []ecal.Strategy{ecal.StrategyJSONDirect, ecal.StrategyJSONDiscovered}, app.scavenger.EconomicCalendar.Strategies())
	assert.Nil(t, app.publisher)

	env.CalendarStrategies = "browser-rendered"
	cfg, err = NewConfig(env)
	require.NoError(t, err)
	_, err = NewApp(cfg, kit, logger)
	assert.Error(t, err)
}
