package ecal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Strategy is one method of obtaining feed content.
type Strategy string

const (
	StrategyJSONDirect      Strategy = "json-direct"      // fixed JSON endpoint
	StrategyJSONDiscovered  Strategy = "json-discovered"  // JSON endpoint linked from the calendar page
	StrategyBrowserRendered Strategy = "browser-rendered" // calendar table from a headless browser
)

// ParseStrategy returns the Strategy with the given name.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case StrategyJSONDirect, StrategyJSONDiscovered, StrategyBrowserRendered:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", errUnknownStrategy, s)
	}
}

// PayloadKind tells which extractor handles a Target.
type PayloadKind uint8

const (
	PayloadJSON PayloadKind = iota + 1
	PayloadRenderedHTML
)

// Target is a resolved fetch target.
type Target struct {
	Strategy Strategy
	URL      string
	Kind     PayloadKind
}

// Renderer renders a page in a browser and returns the markup once waitSelector is present.
type Renderer interface {
	RenderPage(ctx context.Context, url, waitSelector string, timeout time.Duration) (string, error)
}

// pageFetcher is the part of Fetcher the Resolver needs.
type pageFetcher interface {
	FetchPage(ctx context.Context, url string) ([]byte, error)
}

// Resolver turns a Strategy into a fetch Target.
type Resolver struct {
	feedURL   string
	pageURL   string
	versioned bool
	fetcher   pageFetcher
	now       func() time.Time
}

// NewResolver creates a new Resolver. The fetcher is used to load the calendar page for link discovery.
func NewResolver(feedURL, pageURL string, versioned bool, fetcher pageFetcher) *Resolver {
	return &Resolver{
		feedURL:   feedURL,
		pageURL:   pageURL,
		versioned: versioned,
		fetcher:   fetcher,
		now:       time.Now,
	}
}

// Resolve returns the Target for the given strategy.
func (r *Resolver) Resolve(ctx context.Context, s Strategy) (*Target, error) {
	switch s {
	case StrategyJSONDirect:
		u, err := r.directURL()
		if err != nil {
			return nil, err
		}
		return &Target{Strategy: s, URL: u, Kind: PayloadJSON}, nil
	case StrategyJSONDiscovered:
		page, err := r.fetcher.FetchPage(ctx, r.pageURL)
		if err != nil {
			return nil, fmt.Errorf("fetching calendar page: %w", err)
		}
		u, err := discoverFeedLink(page, r.feedURL, r.pageURL)
		if err != nil {
			return nil, err
		}
		return &Target{Strategy: s, URL: u, Kind: PayloadJSON}, nil
	case StrategyBrowserRendered:
		return &Target{Strategy: s, URL: r.pageURL, Kind: PayloadRenderedHTML}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownStrategy, s)
	}
}

// directURL returns the feed URL, with a cache-busting version parameter when enabled.
func (r *Resolver) directURL() (string, error) {
	if !r.versioned {
		return r.feedURL, nil
	}

	u, err := url.Parse(r.feedURL)
	if err != nil {
		return "", fmt.Errorf("invalid feed url %q: %w", r.feedURL, err)
	}
	q := u.Query()
	q.Set("version", strconv.FormatInt(r.now().Unix(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// discoverFeedLink finds the first anchor whose href contains the host and path of feedURL.
// Relative and protocol-relative hrefs are resolved against pageURL.
func discoverFeedLink(page []byte, feedURL, pageURL string) (string, error) {
	feed, err := url.Parse(feedURL)
	if err != nil {
		return "", fmt.Errorf("invalid feed url %q: %w", feedURL, err)
	}
	needle := feed.Host + feed.Path

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", errors.Join(errMalformedHTML, err)
	}

	var href string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		v, _ := sel.Attr("href")
		if strings.Contains(v, needle) {
			href = strings.TrimSpace(v)
			return false
		}
		return true
	})
	if href == "" {
		return "", errLinkNotFound
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return href, nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("invalid discovered href %q: %w", href, err)
	}
	return base.ResolveReference(ref).String(), nil
}
