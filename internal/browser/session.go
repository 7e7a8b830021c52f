// Package browser drives real Chrome sessions through chromedp. Each
// check gets an isolated session configured from a BrowserProfile;
// sessions must be closed on every exit path.
package browser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"ABWatch/internal/config"
	"ABWatch/internal/models"
)

// Session is one isolated browser context bound to a single profile.
type Session interface {
	// Navigate loads the URL and waits for the page to settle,
	// bounded by ctx.
	Navigate(ctx context.Context, url string) error
	// Cookie returns the named cookie's value from the session jar.
	Cookie(ctx context.Context, name string) (string, bool, error)
	// Screenshot captures a full-page screenshot of the current state.
	Screenshot(ctx context.Context) ([]byte, error)
	// Close releases the browser context and all its resources.
	Close()
}

// Factory creates sessions. The executor depends on this interface so
// tests can substitute fake sessions for real Chrome.
type Factory interface {
	NewSession(ctx context.Context, profile models.BrowserProfile) (Session, error)
}

type chromeFactory struct {
	cfg    config.BrowserConfig
	logger *slog.Logger
}

func NewChromeFactory(cfg config.BrowserConfig, logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &chromeFactory{cfg: cfg, logger: logger}
}

func (f *chromeFactory) NewSession(ctx context.Context, profile models.BrowserProfile) (Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.NoDefaultBrowserCheck,
	)

	if f.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(f.cfg.ExecPath))
	}

	if profile.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(profile.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	sess := &chromeSession{
		ctx:    browserCtx,
		cancel: func() { cancelBrowser(); cancelAlloc() },
		logger: f.logger,
	}

	if err := sess.configure(profile); err != nil {
		sess.Close()
		return nil, fmt.Errorf("failed to configure browser session: %w", err)
	}

	return sess, nil
}

type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

func (s *chromeSession) configure(profile models.BrowserProfile) error {
	width := int64(profile.ViewportWidth)
	height := int64(profile.ViewportHeight)
	if width == 0 || height == 0 {
		width, height = 1920, 1080
	}

	// Mobile and tablet device types get touch plus mobile emulation.
	actions := []chromedp.Action{
		emulation.SetDeviceMetricsOverride(width, height, 1.0, profile.IsMobile()),
		emulation.SetTouchEmulationEnabled(profile.IsMobile()),
	}

	return chromedp.Run(s.ctx, actions...)
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil && ctx.Err() != nil {
		// The caller's deadline fired; surface that instead of the
		// cancellation chromedp observed.
		return ctx.Err()
	}
	return err
}

func (s *chromeSession) Cookie(ctx context.Context, name string) (string, bool, error) {
	cookieCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var value string
	var found bool
	err := chromedp.Run(cookieCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range cookies {
			if c.Name == name {
				value = c.Value
				found = true
				return nil
			}
		}
		return nil
	}))
	if err != nil {
		return "", false, fmt.Errorf("failed to read cookies: %w", err)
	}

	return value, found, nil
}

func (s *chromeSession) Screenshot(ctx context.Context) ([]byte, error) {
	shotCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var buf []byte
	if err := chromedp.Run(shotCtx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

func (s *chromeSession) Close() {
	s.cancel()
}
