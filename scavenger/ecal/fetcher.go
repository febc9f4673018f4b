package ecal

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/avast/retry-go"
	"golang.org/x/time/rate"
)

// userAgents are rotated per request to look like a regular browser.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.5735.90 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

const (
	sourceOrigin  = "https://www.forexfactory.com"
	sourceReferer = "https://www.forexfactory.com/calendar"
)

const (
	acceptJSON = "application/json, text/plain, */*"
	acceptHTML = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

// maxBackoffShift caps the exponent of the backoff so the delay cannot overflow.
const maxBackoffShift = 10

// Fetcher performs GET requests with retry, backoff and rate-limit handling.
type Fetcher struct {
	client       *http.Client
	limiter      *rate.Limiter
	maxRetries   uint
	initialDelay time.Duration
	jitter       func() time.Duration
	now          func() time.Time
	metrics      Metrics
	logger       *slog.Logger
}

// NewFetcher creates a new Fetcher. maxRetries counts every attempt including the first one.
func NewFetcher(maxRetries uint, initialDelay, timeout time.Duration, ratePerSecond float64) *Fetcher {
	if maxRetries == 0 {
		maxRetries = 1
	}

	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}

	return &Fetcher{
		client:       newHTTPClient(timeout),
		limiter:      rate.NewLimiter(limit, 1),
		maxRetries:   maxRetries,
		initialDelay: initialDelay,
		jitter: func() time.Duration {
			return rand.N(time.Second)
		},
		now:     time.Now,
		metrics: noopMetrics{},
		logger:  slog.Default(),
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// Fetch returns the (decompressed) body of a 200 JSON response.
//
// HTTP 429 and network failures are retried up to maxRetries attempts. A 429 honors Retry-After,
// everything else waits initialDelay * 2^(attempt-1) plus up to one second of jitter.
// Any other non-200 status, a malformed request and an undecodable body fail immediately.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f.fetch(ctx, url, acceptJSON)
}

// FetchPage is Fetch for HTML pages, requested the way a browser navigation would be.
func (f *Fetcher) FetchPage(ctx context.Context, url string) ([]byte, error) {
	return f.fetch(ctx, url, acceptHTML)
}

func (f *Fetcher) fetch(ctx context.Context, url, accept string) ([]byte, error) {
	var body []byte
	err := retry.Do(
		func() error {
			b, err := f.fetchOnce(ctx, url, accept)
			if err != nil {
				return err
			}
			body = b
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(f.maxRetries),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && retry.IsRecoverable(err) && isRetryable(err)
		}),
		retry.DelayType(f.delay),
		retry.OnRetry(func(n uint, err error) {
			f.logger.Warn("[ecal] Fetch attempt failed", "url", url, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}

	return body, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, url, accept string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, retry.Unrecoverable(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	req.Header.Set("user-agent", userAgents[rand.N(len(userAgents))])
	req.Header.Set("accept", accept)
	req.Header.Set("accept-language", "en-US,en;q=0.9")
	req.Header.Set("accept-encoding", "gzip, deflate, br")
	req.Header.Set("origin", sourceOrigin)
	req.Header.Set("referer", sourceReferer)

	res, err := f.client.Do(req)
	if err != nil {
		f.metrics.ObserveRequest("error")
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			f.logger.Debug("[ecal] Error closing response body", "error", err)
		}
	}(res.Body)
	f.metrics.ObserveRequest(strconv.Itoa(res.StatusCode))

	if res.StatusCode != http.StatusOK {
		se := &statusError{code: res.StatusCode, status: res.Status}
		if res.StatusCode == http.StatusTooManyRequests {
			se.retryAfter = res.Header.Get("Retry-After")
			return nil, errors.Join(errRateLimited, se)
		}
		return nil, se
	}

	r, err := decodeBody(res)
	if err != nil {
		return nil, retry.Unrecoverable(errors.Join(errReadBody, err))
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Join(errReadBody, err)
	}

	return body, nil
}

// delay implements retry.DelayTypeFunc. n is the zero based index of the failed attempt.
func (f *Fetcher) delay(n uint, err error, _ *retry.Config) time.Duration {
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusTooManyRequests {
		if d, ok := parseRetryAfter(se.retryAfter, f.now()); ok {
			return d
		}
	}

	return f.initialDelay*time.Duration(1<<min(n, maxBackoffShift)) + f.jitter()
}

// isRetryable reports whether err is transient: a 429 or a network-level failure.
func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests
	}
	return true
}

// parseRetryAfter parses a Retry-After header given either in seconds or as an HTTP date.
func parseRetryAfter(v string, now time.Time) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}

	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}

	if t, err := http.ParseTime(v); err == nil {
		return max(t.Sub(now), 0), true
	}

	return 0, false
}

// decodeBody unwraps the content-encoding we asked for. Any other encoding is used as delivered.
func decodeBody(res *http.Response) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(res.Header.Get("Content-Encoding"))) {
	case "br":
		return brotli.NewReader(res.Body), nil
	case "gzip":
		return gzip.NewReader(res.Body)
	case "deflate":
		return newDeflateReader(res.Body)
	default:
		return res.Body, nil
	}
}

// newDeflateReader reads zlib wrapped deflate and falls back to raw deflate,
// which some servers send under the same encoding name.
func newDeflateReader(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(2)
	if err != nil {
		return nil, err
	}
	if isZlibHeader(header) {
		return zlib.NewReader(br)
	}
	return flate.NewReader(br), nil
}

// isZlibHeader checks the RFC 1950 CMF/FLG pair: deflate method and a valid check sum.
func isZlibHeader(h []byte) bool {
	return h[0]&0x0f == 8 && (uint16(h[0])<<8|uint16(h[1]))%31 == 0
}
