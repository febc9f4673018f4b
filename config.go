package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"github.com/samgozman/fin-calendar/scavenger/ecal"
	"github.com/spf13/viper"
)

// Env is a structure that holds all the environment variables that are used in the app.
type Env struct {
	ListenAddr               string        `mapstructure:"LISTEN_ADDR" validate:"required"`
	LogLevel                 string        `mapstructure:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat                string        `mapstructure:"LOG_FORMAT" validate:"oneof=text json"`
	CalendarFeedURL          string        `mapstructure:"CALENDAR_FEED_URL" validate:"required,url"`
	CalendarPageURL          string        `mapstructure:"CALENDAR_PAGE_URL" validate:"required,url"`
	CalendarStrategies       string        `mapstructure:"CALENDAR_STRATEGIES" validate:"required"`
	CalendarVersionedURL     bool          `mapstructure:"CALENDAR_VERSIONED_URL"`
	CalendarCurrencies       string        `mapstructure:"CALENDAR_CURRENCIES" validate:"required"`
	CalendarKeepImpactTagged bool          `mapstructure:"CALENDAR_KEEP_IMPACT_TAGGED"`
	CalendarTimezone         string        `mapstructure:"CALENDAR_TIMEZONE" validate:"required"`
	FetchMaxRetries          uint          `mapstructure:"FETCH_MAX_RETRIES" validate:"min=1,max=10"`
	FetchInitialDelay        time.Duration `mapstructure:"FETCH_INITIAL_DELAY" validate:"gte=0"`
	FetchTimeout             time.Duration `mapstructure:"FETCH_TIMEOUT" validate:"gt=0"`
	FetchRatePerSecond       float64       `mapstructure:"FETCH_RATE_PER_SECOND" validate:"gte=0"`
	BrowserTimeout           time.Duration `mapstructure:"BROWSER_TIMEOUT" validate:"gt=0"`
	BrowserExecPath          string        `mapstructure:"BROWSER_EXEC_PATH"`
	BrowserWaitSelector      string        `mapstructure:"BROWSER_WAIT_SELECTOR" validate:"required"`
	StaticDir                string        `mapstructure:"STATIC_DIR"`
	SentryDSN                string        `mapstructure:"SENTRY_DSN"`
	TelegramBotToken         string        `mapstructure:"TELEGRAM_BOT_TOKEN" validate:"required_with=TelegramChannelID"`
	TelegramChannelID        string        `mapstructure:"TELEGRAM_CHANNEL_ID" validate:"required_with=TelegramBotToken"`
	DigestCron               string        `mapstructure:"DIGEST_CRON" validate:"required"`
}

// envDefaults holds the value of every key when neither the environment nor the config file sets it.
var envDefaults = map[string]any{
	"LISTEN_ADDR":                 ":5000",
	"LOG_LEVEL":                   "info",
	"LOG_FORMAT":                  "text",
	"CALENDAR_FEED_URL":           ecal.ForexFactoryFeedURL,
	"CALENDAR_PAGE_URL":           ecal.ForexFactoryPageURL,
	"CALENDAR_STRATEGIES":         "json-direct,json-discovered,browser-rendered",
	"CALENDAR_VERSIONED_URL":      false,
	"CALENDAR_CURRENCIES":         "USD,ALL",
	"CALENDAR_KEEP_IMPACT_TAGGED": false,
	"CALENDAR_TIMEZONE":           "Local",
	"FETCH_MAX_RETRIES":           3,
	"FETCH_INITIAL_DELAY":         "1s",
	"FETCH_TIMEOUT":               "10s",
	"FETCH_RATE_PER_SECOND":       2,
	"BROWSER_TIMEOUT":             "60s",
	"BROWSER_EXEC_PATH":           "",
	"BROWSER_WAIT_SELECTOR":       ecal.DefaultWaitSelector,
	"STATIC_DIR":                  "",
	"SENTRY_DSN":                  "",
	"TELEGRAM_BOT_TOKEN":          "",
	"TELEGRAM_CHANNEL_ID":         "",
	"DIGEST_CRON":                 "0 7 * * 1",
}

// LoadEnv reads the Env from the environment. An optional config file (e.g. ".env") is read first
// and environment variables take precedence over it.
func LoadEnv(configFile string) (*Env, error) {
	v := viper.New()
	for k, d := range envDefaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if strings.HasSuffix(configFile, ".env") {
			v.SetConfigType("env")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
	}

	env := &Env{}
	if err := v.Unmarshal(env); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := validator.New().Struct(env); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return env, nil
}

type Config struct {
	env        *Env            // Holds all the environment variables that are used in the app
	strategies []ecal.Strategy // Resolver strategies in priority order
	currencies []string        // Currencies that are always kept by the normalizer
	location   *time.Location  // Time zone of timestamp-derived labels
}

// NewConfig creates a new Config object from the given Env.
func NewConfig(env *Env) (*Config, error) {
	c := DefaultConfig()
	c.env = env

	strategies, err := parseStrategies(env.CalendarStrategies)
	if err != nil {
		return nil, err
	}
	c.strategies = strategies

	c.currencies = splitList(env.CalendarCurrencies)
	if len(c.currencies) == 0 {
		return nil, fmt.Errorf("invalid config: CALENDAR_CURRENCIES is empty")
	}

	loc, err := time.LoadLocation(env.CalendarTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid config: CALENDAR_TIMEZONE: %w", err)
	}
	c.location = loc

	return c, nil
}

// DefaultConfig creates a new Config object with default values.
func DefaultConfig() *Config {
	return &Config{
		env:        &Env{},
		strategies: []ecal.Strategy{ecal.StrategyJSONDirect, ecal.StrategyJSONDiscovered, ecal.StrategyBrowserRendered},
		currencies: []string{ecal.EconomicCalendarUSD, ecal.EconomicCalendarALL},
		location:   time.Local,
	}
}

// Calendar returns the settings of the economic calendar pipeline.
func (c *Config) Calendar() *ecal.Config {
	cfg := ecal.DefaultConfig()
	cfg.FeedURL = c.env.CalendarFeedURL
	cfg.PageURL = c.env.CalendarPageURL
	cfg.Versioned = c.env.CalendarVersionedURL
	cfg.MaxRetries = c.env.FetchMaxRetries
	cfg.InitialDelay = c.env.FetchInitialDelay
	cfg.Timeout = c.env.FetchTimeout
	cfg.RatePerSecond = c.env.FetchRatePerSecond
	cfg.WaitSelector = c.env.BrowserWaitSelector
	cfg.RenderTimeout = c.env.BrowserTimeout
	cfg.Strategies = c.strategies
	cfg.Currencies = c.currencies
	cfg.ImpactTagged = c.env.CalendarKeepImpactTagged
	cfg.Location = c.location
	return cfg
}

// withoutStrategy removes s from the active strategies.
func (c *Config) withoutStrategy(s ecal.Strategy) *Config {
	c.strategies = lo.Without(c.strategies, s)
	return c
}

func parseStrategies(list string) ([]ecal.Strategy, error) {
	var strategies []ecal.Strategy
	for _, name := range splitList(list) {
		s, err := ecal.ParseStrategy(name)
		if err != nil {
			return nil, fmt.Errorf("invalid config: CALENDAR_STRATEGIES: %w", err)
		}
		strategies = append(strategies, s)
	}
	strategies = lo.Uniq(strategies)
	if len(strategies) == 0 {
		return nil, fmt.Errorf("invalid config: CALENDAR_STRATEGIES is empty")
	}
	return strategies, nil
}

// splitList splits a comma separated list and drops empty items.
func splitList(list string) []string {
	return lo.Compact(lo.Map(strings.Split(list, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
}

// newLogger creates the application logger from LOG_LEVEL and LOG_FORMAT.
func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
