package ecal

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samgozman/fin-calendar/pkg/errlvl"
)

const (
	// ForexFactoryFeedURL is the "this week" JSON feed behind the forexfactory.com calendar.
	ForexFactoryFeedURL = "https://nfs.faireconomy.media/ff_calendar_thisweek.json"
	// ForexFactoryPageURL is the HTML calendar page used for link discovery and rendering.
	ForexFactoryPageURL = "https://www.forexfactory.com/calendar"
	// DefaultWaitSelector is the element the rendered page must show before its markup is captured.
	DefaultWaitSelector = "table.calendar__table"
)

// Config holds the EconomicCalendar settings.
type Config struct {
	FeedURL       string        // JSON feed endpoint (Strategy A)
	PageURL       string        // HTML calendar page (Strategy B and C)
	Versioned     bool          // if true, adds version=<unix-seconds> to the direct feed URL
	MaxRetries    uint          // attempts per fetch, including the first one
	InitialDelay  time.Duration // base delay of the exponential backoff
	Timeout       time.Duration // per-request timeout of static HTTP fetches
	RatePerSecond float64       // outbound request rate, 0 disables limiting
	WaitSelector  string        // element awaited by the browser renderer
	RenderTimeout time.Duration // upper bound of a browser-rendered fetch
	Strategies    []Strategy    // resolver strategies in priority order
	Currencies    []string      // currencies that are always kept
	ImpactTagged  bool          // if true, any 3-letter currency is kept when the source tags impact
	Location      *time.Location
}

// DefaultConfig creates a new Config object with default values.
func DefaultConfig() *Config {
	return &Config{
		FeedURL:       ForexFactoryFeedURL,
		PageURL:       ForexFactoryPageURL,
		MaxRetries:    3,
		InitialDelay:  time.Second,
		Timeout:       10 * time.Second,
		RatePerSecond: 2,
		WaitSelector:  DefaultWaitSelector,
		RenderTimeout: 60 * time.Second,
		Strategies:    []Strategy{StrategyJSONDirect, StrategyJSONDiscovered, StrategyBrowserRendered},
		Currencies:    []string{EconomicCalendarUSD, EconomicCalendarALL},
		Location:      time.Local,
	}
}

// EconomicCalendar runs the fetch-normalize-sort pipeline over an ordered list of resolver strategies.
// Every call is independent: nothing is cached between runs.
type EconomicCalendar struct {
	resolver      *Resolver
	fetcher       *Fetcher
	renderer      Renderer
	jsonExtractor *JSONExtractor
	htmlExtractor *HTMLExtractor
	normalizer    *Normalizer
	strategies    []Strategy
	waitSelector  string
	renderTimeout time.Duration
	metrics       Metrics
	logger        *slog.Logger
	now           func() time.Time
}

// NewEconomicCalendar creates a new EconomicCalendar from the given Config.
// The browser strategy stays inactive until a Renderer is attached with WithRenderer.
func NewEconomicCalendar(cfg *Config) *EconomicCalendar {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	fetcher := NewFetcher(cfg.MaxRetries, cfg.InitialDelay, cfg.Timeout, cfg.RatePerSecond)
	return &EconomicCalendar{
		resolver:      NewResolver(cfg.FeedURL, cfg.PageURL, cfg.Versioned, fetcher),
		fetcher:       fetcher,
		jsonExtractor: &JSONExtractor{},
		htmlExtractor: NewHTMLExtractor(DefaultTableSelectors()),
		normalizer:    NewNormalizer(CurrencyPolicy{Allowed: cfg.Currencies, KeepImpactTagged: cfg.ImpactTagged}, cfg.Location),
		strategies:    cfg.Strategies,
		waitSelector:  cfg.WaitSelector,
		renderTimeout: cfg.RenderTimeout,
		metrics:       noopMetrics{},
		logger:        slog.Default(),
		now:           time.Now,
	}
}

// WithRenderer attaches the page renderer used by StrategyBrowserRendered.
func (c *EconomicCalendar) WithRenderer(r Renderer) *EconomicCalendar {
	c.renderer = r
	return c
}

// WithLogger sets the logger for the whole pipeline.
func (c *EconomicCalendar) WithLogger(l *slog.Logger) *EconomicCalendar {
	c.logger = l
	c.fetcher.logger = l
	c.htmlExtractor.logger = l
	return c
}

// WithMetrics sets the metrics observer for the whole pipeline.
func (c *EconomicCalendar) WithMetrics(m Metrics) *EconomicCalendar {
	c.metrics = m
	c.fetcher.metrics = m
	return c
}

// Strategies returns the active strategies in priority order.
func (c *EconomicCalendar) Strategies() []Strategy {
	return c.strategies
}

// Fetch returns the ordered calendar. It never fails: when every strategy fails the result is an empty list
// and the details only reach the logs.
func (c *EconomicCalendar) Fetch(ctx context.Context) EconomicCalendarEvents {
	events, _ := c.FetchDetailed(ctx)
	return events
}

// FetchDetailed is Fetch that also returns the joined diagnostics of the failed strategies.
// The error is nil when some strategy succeeded. The events are never nil.
func (c *EconomicCalendar) FetchDetailed(ctx context.Context) (EconomicCalendarEvents, error) {
	log := c.logger.With("run", uuid.NewString())
	start := time.Now()
	log.Info("[ecal] Fetching economic calendar", "strategies", c.strategies)

	var errs []error
	for _, s := range c.strategies {
		if ctx.Err() != nil {
			errs = append(errs, strategyError(s, ctx.Err()))
			break
		}

		events, err := c.runStrategy(ctx, s, log)
		if err != nil {
			log.Warn("[ecal] Strategy failed, falling back", "strategy", s, "error", err)
			c.metrics.ObserveStrategy(s, OutcomeFailure)
			errs = append(errs, strategyError(s, err))
			continue
		}

		c.metrics.ObserveStrategy(s, OutcomeSuccess)
		c.metrics.ObservePipeline(time.Since(start), len(events))
		log.Info("[ecal] Calendar fetched", "strategy", s, "events", len(events))
		if len(events) > 0 {
			log.Debug("[ecal] First events", "events", events[:min(2, len(events))])
		}
		return events, nil
	}

	c.metrics.ObservePipeline(time.Since(start), 0)
	err := newError(errlvl.ERROR, append([]error{errStrategiesExhausted}, errs...)...)
	log.Error("[ecal] Calendar fetch failed", "error", err)
	return EconomicCalendarEvents{}, err
}

// runStrategy resolves, fetches, extracts, normalizes and sorts the calendar with a single strategy.
func (c *EconomicCalendar) runStrategy(ctx context.Context, s Strategy, log *slog.Logger) (EconomicCalendarEvents, error) {
	target, err := c.resolver.Resolve(ctx, s)
	if err != nil {
		return nil, err
	}
	log.Debug("[ecal] Resolved target", "strategy", s, "url", target.URL)

	var raw []RawEvent
	switch target.Kind {
	case PayloadJSON:
		body, err := c.fetcher.Fetch(ctx, target.URL)
		if err != nil {
			return nil, err
		}
		raw, err = c.jsonExtractor.Extract(body)
		if err != nil {
			return nil, err
		}
	case PayloadRenderedHTML:
		if c.renderer == nil {
			return nil, errRendererMissing
		}
		markup, err := c.renderer.RenderPage(ctx, target.URL, c.waitSelector, c.renderTimeout)
		if err != nil {
			return nil, err
		}
		raw, err = c.htmlExtractor.Extract([]byte(markup))
		if err != nil {
			return nil, err
		}
	}

	if len(raw) == 0 {
		return nil, errEmptyPayload
	}

	events := c.normalizer.NormalizeAll(raw)
	events.SortChronologically(c.now())
	return events, nil
}

// EconomicCalendarCurrency impacted currencies(economic markets) by the event
type EconomicCalendarCurrency = string

const (
	EconomicCalendarUSD EconomicCalendarCurrency = "USD" // US Dollar
	EconomicCalendarALL EconomicCalendarCurrency = "ALL" // Events affecting every market
	EconomicCalendarEUR EconomicCalendarCurrency = "EUR" // Euro
	EconomicCalendarGBP EconomicCalendarCurrency = "GBP" // British Pound
	EconomicCalendarJPY EconomicCalendarCurrency = "JPY" // Japanese Yen
	EconomicCalendarCHF EconomicCalendarCurrency = "CHF" // Swiss Franc
	EconomicCalendarCNY EconomicCalendarCurrency = "CNY" // Chinese Yuan
	EconomicCalendarAUD EconomicCalendarCurrency = "AUD" // Australian Dollar
	EconomicCalendarNZD EconomicCalendarCurrency = "NZD" // New Zealand Dollar
	EconomicCalendarCAD EconomicCalendarCurrency = "CAD" // Canadian Dollar
)

// EconomicCalendarCountryEmoji is the map of currency code to emoji symbol
var EconomicCalendarCountryEmoji = map[EconomicCalendarCurrency]string{
	EconomicCalendarUSD: "🇺🇸",
	EconomicCalendarALL: "🌐",
	EconomicCalendarEUR: "🇪🇺",
	EconomicCalendarGBP: "🇬🇧",
	EconomicCalendarJPY: "🇯🇵",
	EconomicCalendarCHF: "🇨🇭",
	EconomicCalendarCNY: "🇨🇳",
	EconomicCalendarAUD: "🇦🇺",
	EconomicCalendarNZD: "🇳🇿",
	EconomicCalendarCAD: "🇨🇦",
}

// AllDay is the time label of events without a specific clock time.
const AllDay = "All Day"

// RawEvent is a source specific record before normalization.
type RawEvent struct {
	Currency string  // currency or country code as delivered
	Date     string  // unix timestamp, ISO-8601 timestamp or free text
	Time     string  // free text, may be empty
	Title    string  // event title
	Impact   *string // nil when the source carries no impact metadata
	Forecast string  // forecasted value (only used with Impact)
	Previous string  // previous value (only used with Impact)
}

// ImpactMeta is the optional impact metadata of an event.
type ImpactMeta struct {
	Impact      string `json:"impact"`
	ImpactColor string `json:"impact_color"`
	Forecast    string `json:"forecast"`
	Previous    string `json:"previous"`
}

// EconomicCalendarEvent is the struct for normalized economics calendar event object
type EconomicCalendarEvent struct {
	Date     string                   `json:"date"`     // Short month-day label, e.g. "Oct 23"
	Time     string                   `json:"time"`     // 12-hour clock label or AllDay
	Currency EconomicCalendarCurrency `json:"currency"` // Uppercase currency code or "ALL"
	Event    string                   `json:"event"`    // Event title
	*ImpactMeta                       // Present only when the source provides impact metadata
}

// EconomicCalendarEvents is the slice of economics calendar events
type EconomicCalendarEvents []*EconomicCalendarEvent
