package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// hideWebdriver removes the most common automation marker before any page script runs.
const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var errEmptyMarkup = errors.New("rendered page is empty")

// knownBrowsers are the executable names looked up in PATH when no exec path is configured.
var knownBrowsers = []string{
	"headless-shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"chrome",
}

// Available reports whether a browser can be started: execPath when it is set, otherwise one of
// the well known Chrome builds in PATH. execPath must be an executable regular file.
func Available(execPath string) bool {
	if execPath != "" {
		info, err := os.Stat(execPath)
		return err == nil && info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
	}
	for _, name := range knownBrowsers {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

// Renderer renders pages in an isolated headless Chrome process.
// Every RenderPage call starts its own browser and always terminates it before returning.
type Renderer struct {
	execPath  string // chrome binary, empty means chromedp lookup
	userAgent string
	logger    *slog.Logger
}

// NewRenderer creates a new Renderer. execPath may be empty.
func NewRenderer(execPath string) *Renderer {
	return &Renderer{
		execPath:  execPath,
		userAgent: defaultUserAgent,
		logger:    slog.Default(),
	}
}

// WithLogger sets the logger of the Renderer.
func (r *Renderer) WithLogger(l *slog.Logger) *Renderer {
	r.logger = l
	return r
}

// allocatorOptions returns the flags of the browser process.
func (r *Renderer) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.NoSandbox,
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(r.userAgent),
	)
	if r.execPath != "" {
		opts = append(opts, chromedp.ExecPath(r.execPath))
	}
	return opts
}

// RenderPage navigates to url, waits until waitSelector is visible and returns the document markup.
// The whole call, browser start included, is bounded by timeout.
func (r *Renderer) RenderPage(ctx context.Context, url, waitSelector string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, r.allocatorOptions()...)
	defer cancelAlloc()

	// cancelBrowser stops the process and waits for it to exit, also when it never started.
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	start := time.Now()
	var markup string
	err := chromedp.Run(browserCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriver).Do(ctx)
			return err
		}),
		chromedp.Navigate(url),
		chromedp.WaitVisible(waitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("rendering %s: %w", url, err)
	}
	if markup == "" {
		return "", errEmptyMarkup
	}

	r.logger.Info("[browser] Page rendered", "url", url, "took", time.Since(start), "bytes", len(markup))
	return markup, nil
}
