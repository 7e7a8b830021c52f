// Package executor runs one browser check against one target URL with
// one browser profile and classifies the outcome.
package executor

import (
	"context"
	"log/slog"
	"time"

	"ABWatch/internal/browser"
	"ABWatch/internal/cookie"
	"ABWatch/internal/models"
	"ABWatch/internal/screenshot"
)

// Outcome is the result of exactly one check. Execute never fails;
// every error becomes a classified outcome.
type Outcome struct {
	Status         models.CheckStatus
	PageLoadTimeMs *int64
	CookieFound    bool
	ErrorDetected  bool
	Report         *cookie.Report
	ScreenshotPath *string
	ErrorMessage   *string
	Attempts       int
}

type Config struct {
	CookieName     string
	AttemptTimeout time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	MaxErrorLength int
}

type Executor struct {
	sessions    browser.Factory
	screenshots *screenshot.Store
	cfg         Config
	logger      *slog.Logger
}

func New(sessions browser.Factory, screenshots *screenshot.Store, cfg Config, logger *slog.Logger) *Executor {
	if cfg.AttemptTimeout == 0 {
		cfg.AttemptTimeout = 30 * time.Second
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.MaxErrorLength == 0 {
		cfg.MaxErrorLength = 500
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		sessions:    sessions,
		screenshots: screenshots,
		cfg:         cfg,
		logger:      logger,
	}
}

// Execute drives the target URL with the given profile, retrying
// transient failures with linear backoff. Unreachable classifications
// exit the retry loop early: a refused connection or failed DNS lookup
// is not going to succeed seconds later.
func (e *Executor) Execute(ctx context.Context, target models.MonitoredTarget, profile models.BrowserProfile) Outcome {
	var last Outcome

	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		last = e.runAttempt(ctx, target, profile)
		last.Attempts = attempt

		if last.Status == models.CheckStatusSuccess {
			return last
		}

		if last.Status == models.CheckStatusUnreachable {
			e.logger.Debug("target unreachable, skipping remaining attempts",
				"url", target.URL,
				"profile", profile.Label(),
				"attempt", attempt,
			)
			return last
		}

		if attempt < e.cfg.MaxRetries {
			delay := e.cfg.RetryDelay * time.Duration(attempt)
			e.logger.Debug("check attempt failed, retrying",
				"url", target.URL,
				"profile", profile.Label(),
				"attempt", attempt,
				"status", last.Status,
				"delay", delay,
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return last
			}
		}
	}

	return last
}

func (e *Executor) runAttempt(ctx context.Context, target models.MonitoredTarget, profile models.BrowserProfile) Outcome {
	attemptCtx, cancel := context.WithTimeout(ctx, e.cfg.AttemptTimeout)
	defer cancel()

	// The launch itself must sit under the attempt deadline: a wedged
	// browser spawn would otherwise hold its batch slot forever.
	sess, err := e.sessions.NewSession(attemptCtx, profile)
	if err != nil {
		return e.failure(err, target, profile, "failed to launch browser session")
	}
	defer sess.Close()

	start := time.Now()
	if err := sess.Navigate(attemptCtx, target.URL); err != nil {
		return e.failure(err, target, profile, "navigation failed")
	}
	loadMs := time.Since(start).Milliseconds()

	outcome := Outcome{
		Status:         models.CheckStatusSuccess,
		PageLoadTimeMs: &loadMs,
	}

	raw, found, err := sess.Cookie(attemptCtx, e.cfg.CookieName)
	if err != nil {
		// The page loaded; failing to read the jar is a check error.
		return e.failure(err, target, profile, "cookie read failed")
	}
	if !found {
		return outcome
	}

	outcome.CookieFound = true

	report, err := cookie.Decode(raw)
	if err != nil {
		// Cookie present but unparseable surfaces an integration bug
		// on the client side; it never fails the check.
		e.logger.Warn("signaling cookie found but unparseable",
			"url", target.URL,
			"profile", profile.Label(),
			"error", err,
		)
		return outcome
	}

	report.ErrorMessage = cookie.Truncate(report.ErrorMessage, e.cfg.MaxErrorLength)
	outcome.ErrorDetected = true
	outcome.Report = report

	e.captureScreenshot(attemptCtx, sess, target, profile, &outcome)

	e.logger.Info("test failure reported by signaling cookie",
		"url", target.URL,
		"profile", profile.Label(),
		"test_id", report.TestID,
		"variant", report.Variant,
		"error_type", report.ErrorType,
	)

	return outcome
}

// captureScreenshot is best effort: a full disk or permission error
// must not fail the check.
func (e *Executor) captureScreenshot(ctx context.Context, sess browser.Session, target models.MonitoredTarget, profile models.BrowserProfile, outcome *Outcome) {
	if e.screenshots == nil {
		return
	}

	data, err := sess.Screenshot(ctx)
	if err != nil {
		e.logger.Warn("screenshot capture failed",
			"url", target.URL,
			"profile", profile.Label(),
			"error", err,
		)
		return
	}

	path, err := e.screenshots.Save(target.URL, profile.DeviceType, data)
	if err != nil {
		e.logger.Warn("screenshot save failed",
			"url", target.URL,
			"error", err,
		)
		return
	}

	outcome.ScreenshotPath = &path
}

func (e *Executor) failure(err error, target models.MonitoredTarget, profile models.BrowserProfile, prefix string) Outcome {
	status, _ := Classify(err)
	msg := cookie.Truncate(prefix+": "+err.Error(), e.cfg.MaxErrorLength)

	e.logger.Debug("check attempt classified",
		"url", target.URL,
		"profile", profile.Label(),
		"status", status,
		"error", err,
	)

	return Outcome{
		Status:       status,
		ErrorMessage: &msg,
	}
}
