package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/gamst-shin/goldmine-test/config"
	"github.com/gamst-shin/goldmine-test/utils"
)

// Pager is the navigation capability the scrapers consume. Session is
// the chromedp-backed implementation; tests substitute a fake.
type Pager interface {
	Navigate(ctx context.Context, url string) error
	LocateFirst(ctx context.Context, xpaths []string) (string, bool)
	ClickXPath(ctx context.Context, xpath string) error
	Eval(ctx context.Context, js string, out any) error
	OuterHTML(ctx context.Context, xpath string) (string, error)
}

// Session owns one headless browser and one tab. All page operations
// run against that tab with a bounded timeout; a crashed session is
// released through Close regardless of how the run ended.
type Session struct {
	logger  *utils.Logger
	timeout time.Duration

	tabCtx       context.Context
	cancelTab    context.CancelFunc
	cancelSilent context.CancelFunc
	cancelAlloc  context.CancelFunc
}

// NewSession launches a headless Chrome and opens a single tab.
func NewSession(cfg *config.Config, logger *utils.Logger) (*Session, error) {
	chromeBin := findChromeBinary(cfg.ChromeBin)
	logger.Info("[browser] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	// Suppress chromedp log noise
	silentCtx, cancelSilent := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))

	tabCtx, cancelTab := chromedp.NewContext(silentCtx)

	// Force the browser process to start now so a broken install fails
	// the run up front rather than on the first navigation.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelSilent()
		cancelAlloc()
		return nil, fmt.Errorf("browser: start: %w", err)
	}

	return &Session{
		logger:       logger,
		timeout:      time.Duration(cfg.PageTimeoutS) * time.Second,
		tabCtx:       tabCtx,
		cancelTab:    cancelTab,
		cancelSilent: cancelSilent,
		cancelAlloc:  cancelAlloc,
	}, nil
}

// run executes chromedp actions on the session tab under the page timeout.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.tabCtx, s.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(runCtx, actions...) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

// Navigate loads url in the session tab and waits for the initial render.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx,
		chromedp.Navigate(url),
		chromedp.Sleep(2*time.Second),
	); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	return nil
}

// locateFirstJS walks an ordered list of XPath candidates inside the
// page and returns the first non-empty text it finds. Doing the whole
// fallback chain in one evaluate keeps it a single CDP round-trip.
const locateFirstJS = `
(function(paths) {
	for (var i = 0; i < paths.length; i++) {
		try {
			var node = document.evaluate(paths[i], document, null,
				XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
			if (!node) continue;
			var text = (node.innerText || node.textContent || '').trim();
			if (text) return text;
		} catch (e) {}
	}
	return '';
})(%s)`

// LocateFirst tries each XPath candidate in order and returns the text
// of the first element with non-empty content. A candidate that fails
// is skipped; only exhausting the whole list yields ok == false. This
// is the one place that absorbs layout drift between item templates.
func (s *Session) LocateFirst(ctx context.Context, xpaths []string) (string, bool) {
	paths, err := json.Marshal(xpaths)
	if err != nil {
		return "", false
	}

	var text string
	if err := s.run(ctx, chromedp.Evaluate(fmt.Sprintf(locateFirstJS, paths), &text)); err != nil {
		s.logger.Debug("[browser] locate failed (%d candidates): %v", len(xpaths), err)
		return "", false
	}
	if text == "" {
		return "", false
	}
	return text, true
}

const clickXPathJS = `
(function(path) {
	var node = document.evaluate(path, document, null,
		XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
	if (!node) return false;
	node.click();
	return true;
})(%s)`

// ClickXPath finds the element at xpath and clicks it through JS. The
// forced click works on inputs the site keeps visually hidden, which
// regular element clicks refuse.
func (s *Session) ClickXPath(ctx context.Context, xpath string) error {
	path, err := json.Marshal(xpath)
	if err != nil {
		return fmt.Errorf("browser: click: %w", err)
	}

	var clicked bool
	if err := s.run(ctx, chromedp.Evaluate(fmt.Sprintf(clickXPathJS, path), &clicked)); err != nil {
		return fmt.Errorf("browser: click %s: %w", xpath, err)
	}
	if !clicked {
		return fmt.Errorf("browser: click %s: element not found", xpath)
	}
	return nil
}

// Eval runs an arbitrary JS expression on the current page.
func (s *Session) Eval(ctx context.Context, js string, out any) error {
	if err := s.run(ctx, chromedp.Evaluate(js, out)); err != nil {
		return fmt.Errorf("browser: evaluate: %w", err)
	}
	return nil
}

// OuterHTML returns the outer HTML of the first element matching the
// XPath, or an empty string when it is absent.
func (s *Session) OuterHTML(ctx context.Context, xpath string) (string, error) {
	path, err := json.Marshal(xpath)
	if err != nil {
		return "", fmt.Errorf("browser: outer html: %w", err)
	}

	js := fmt.Sprintf(`(function(path) {
		var node = document.evaluate(path, document, null,
			XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
		return node ? node.outerHTML : '';
	})(%s)`, path)

	var html string
	if err := s.Eval(ctx, js, &html); err != nil {
		return "", err
	}
	return html, nil
}

// Close tears the browser down. Safe to call more than once.
func (s *Session) Close() {
	s.cancelTab()
	s.cancelSilent()
	s.cancelAlloc()
}

// findChromeBinary locates a Chrome/Chromium binary, preferring the
// configured path.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
