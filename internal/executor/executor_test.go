package executor

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"ABWatch/internal/browser"
	"ABWatch/internal/models"
	"ABWatch/internal/screenshot"
)

type fakeSession struct {
	navigateErr  error
	cookieValue  string
	cookieFound  bool
	cookieErr    error
	shotErr      error
	closed       bool
	navigateHook func() error
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	if s.navigateHook != nil {
		return s.navigateHook()
	}
	return s.navigateErr
}

func (s *fakeSession) Cookie(ctx context.Context, name string) (string, bool, error) {
	return s.cookieValue, s.cookieFound, s.cookieErr
}

func (s *fakeSession) Screenshot(ctx context.Context) ([]byte, error) {
	if s.shotErr != nil {
		return nil, s.shotErr
	}
	return []byte("png"), nil
}

func (s *fakeSession) Close() { s.closed = true }

type fakeFactory struct {
	sessions  []*fakeSession
	launched  int
	launchErr error
}

func (f *fakeFactory) NewSession(ctx context.Context, profile models.BrowserProfile) (browser.Session, error) {
	if f.launchErr != nil {
		return nil, f.launchErr
	}
	sess := f.sessions[f.launched%len(f.sessions)]
	f.launched++
	return sess, nil
}

func testTarget() models.MonitoredTarget {
	return models.MonitoredTarget{ID: "target-1", ClientID: "client-1", URL: "https://example.com", Active: true, HasActiveTest: true}
}

func testProfile() models.BrowserProfile {
	return models.BrowserProfile{ID: "profile-1", Engine: "Chrome", Version: "120", DeviceType: models.DeviceDesktop, Active: true}
}

func newTestExecutor(t *testing.T, factory browser.Factory) *Executor {
	t.Helper()

	shots, err := screenshot.NewStore(t.TempDir(), slog.Default())
	if err != nil {
		t.Fatalf("failed to create screenshot store: %v", err)
	}

	return New(factory, shots, Config{
		CookieName:     "ab_test_failure",
		AttemptTimeout: time.Second,
		MaxRetries:     3,
		RetryDelay:     time.Millisecond,
		MaxErrorLength: 100,
	}, slog.Default())
}

func TestExecute_NoCookie(t *testing.T) {
	sess := &fakeSession{cookieFound: false}
	e := newTestExecutor(t, &fakeFactory{sessions: []*fakeSession{sess}})

	outcome := e.Execute(context.Background(), testTarget(), testProfile())

	if outcome.Status != models.CheckStatusSuccess {
		t.Errorf("expected success, got %s", outcome.Status)
	}
	if outcome.CookieFound || outcome.ErrorDetected {
		t.Errorf("expected cookieFound=false errorDetected=false, got %+v", outcome)
	}
	if outcome.PageLoadTimeMs == nil {
		t.Error("expected page load time to be recorded")
	}
	if !sess.closed {
		t.Error("session must be closed after a successful check")
	}
}

func TestExecute_CookieReportsFailure(t *testing.T) {
	raw := url.QueryEscape(`{"test_id":"t1","variant":"b","error_type":"js_error","error_message":"x","browser":"Chrome","timestamp":"2026-01-17T10:00:00Z"}`)
	sess := &fakeSession{cookieFound: true, cookieValue: raw}
	e := newTestExecutor(t, &fakeFactory{sessions: []*fakeSession{sess}})

	outcome := e.Execute(context.Background(), testTarget(), testProfile())

	if outcome.Status != models.CheckStatusSuccess {
		t.Fatalf("expected success status, got %s", outcome.Status)
	}
	if !outcome.CookieFound || !outcome.ErrorDetected {
		t.Errorf("expected cookie failure detection, got %+v", outcome)
	}
	if outcome.Report == nil || outcome.Report.TestID != "t1" {
		t.Errorf("expected decoded report, got %+v", outcome.Report)
	}
	if outcome.ScreenshotPath == nil {
		t.Error("expected a screenshot reference for a detected failure")
	}
}

func TestExecute_UnparseableCookie(t *testing.T) {
	sess := &fakeSession{cookieFound: true, cookieValue: "not-json"}
	e := newTestExecutor(t, &fakeFactory{sessions: []*fakeSession{sess}})

	outcome := e.Execute(context.Background(), testTarget(), testProfile())

	if outcome.Status != models.CheckStatusSuccess {
		t.Errorf("unparseable cookie must not fail the check, got %s", outcome.Status)
	}
	if !outcome.CookieFound {
		t.Error("expected cookieFound=true")
	}
	if outcome.ErrorDetected {
		t.Error("expected errorDetected=false for unparseable cookie")
	}
}

func TestExecute_ScreenshotFailureDoesNotFailCheck(t *testing.T) {
	raw := url.QueryEscape(`{"t":"t1","v":"b","e":"js","m":"x","b":"c","ts":1768644000}`)
	sess := &fakeSession{cookieFound: true, cookieValue: raw, shotErr: errors.New("disk full")}
	e := newTestExecutor(t, &fakeFactory{sessions: []*fakeSession{sess}})

	outcome := e.Execute(context.Background(), testTarget(), testProfile())

	if !outcome.ErrorDetected {
		t.Fatal("expected failure detection")
	}
	if outcome.ScreenshotPath != nil {
		t.Error("expected screenshot reference to be absent")
	}
}

func TestExecute_UnreachableSkipsRetries(t *testing.T) {
	sess := &fakeSession{navigateErr: errors.New("page load error net::ERR_CONNECTION_REFUSED")}
	factory := &fakeFactory{sessions: []*fakeSession{sess}}
	e := newTestExecutor(t, factory)

	outcome := e.Execute(context.Background(), testTarget(), testProfile())

	if outcome.Status != models.CheckStatusUnreachable {
		t.Errorf("expected unreachable, got %s", outcome.Status)
	}
	if outcome.PageLoadTimeMs != nil {
		t.Error("unreachable checks must not record a page load time")
	}
	if outcome.CookieFound {
		t.Error("unreachable checks must not report a cookie")
	}
	if factory.launched != 1 {
		t.Errorf("expected a single attempt for unreachable target, got %d", factory.launched)
	}
}

func TestExecute_TransientErrorRetriesUntilBudget(t *testing.T) {
	sess := &fakeSession{navigateErr: errors.New("page load error net::ERR_CONNECTION_RESET")}
	factory := &fakeFactory{sessions: []*fakeSession{sess}}
	e := newTestExecutor(t, factory)

	outcome := e.Execute(context.Background(), testTarget(), testProfile())

	if outcome.Status != models.CheckStatusError {
		t.Errorf("expected error status, got %s", outcome.Status)
	}
	if factory.launched != 3 {
		t.Errorf("expected 3 attempts, got %d", factory.launched)
	}
	if outcome.Attempts != 3 {
		t.Errorf("expected outcome to record 3 attempts, got %d", outcome.Attempts)
	}
	if outcome.ErrorMessage == nil {
		t.Error("expected an error message on the final outcome")
	}
}

func TestExecute_RetrySucceedsAfterTransientFailure(t *testing.T) {
	attempts := 0
	sess := &fakeSession{navigateHook: func() error {
		attempts++
		if attempts == 1 {
			return errors.New("net::ERR_NETWORK_CHANGED")
		}
		return nil
	}}
	e := newTestExecutor(t, &fakeFactory{sessions: []*fakeSession{sess}})

	outcome := e.Execute(context.Background(), testTarget(), testProfile())

	if outcome.Status != models.CheckStatusSuccess {
		t.Errorf("expected recovery on retry, got %s", outcome.Status)
	}
	if outcome.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", outcome.Attempts)
	}
}

// blockingFactory simulates a wedged browser spawn: NewSession only
// returns once its context is done.
type blockingFactory struct{}

func (f *blockingFactory) NewSession(ctx context.Context, profile models.BrowserProfile) (browser.Session, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestExecute_HungSessionLaunchBoundedByAttemptTimeout(t *testing.T) {
	e := New(&blockingFactory{}, nil, Config{
		CookieName:     "ab_test_failure",
		AttemptTimeout: 50 * time.Millisecond,
		MaxRetries:     1,
		RetryDelay:     time.Millisecond,
		MaxErrorLength: 100,
	}, slog.Default())

	start := time.Now()
	outcome := e.Execute(context.Background(), testTarget(), testProfile())
	elapsed := time.Since(start)

	if elapsed > 2*time.Second {
		t.Fatalf("Execute took %v, a hung launch must be cut off by the attempt timeout", elapsed)
	}
	if outcome.Status != models.CheckStatusTimeout {
		t.Errorf("expected timeout status, got %s", outcome.Status)
	}
}

func TestExecute_SessionLaunchFailure(t *testing.T) {
	factory := &fakeFactory{launchErr: errors.New("chrome executable not found")}
	e := newTestExecutor(t, factory)

	outcome := e.Execute(context.Background(), testTarget(), testProfile())

	if outcome.Status != models.CheckStatusError {
		t.Errorf("expected error status, got %s", outcome.Status)
	}
	if outcome.ErrorMessage == nil {
		t.Error("expected error message")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    models.CheckStatus
		retryable bool
	}{
		{"nil", nil, models.CheckStatusSuccess, false},
		{"context deadline", context.DeadlineExceeded, models.CheckStatusTimeout, true},
		{"chrome timed out", errors.New("page load error net::ERR_TIMED_OUT"), models.CheckStatusTimeout, true},
		{"connection timed out", errors.New("net::ERR_CONNECTION_TIMED_OUT"), models.CheckStatusTimeout, true},
		{"dns failure", errors.New("page load error net::ERR_NAME_NOT_RESOLVED"), models.CheckStatusUnreachable, false},
		{"dns resolution failed", errors.New("net::ERR_NAME_RESOLUTION_FAILED"), models.CheckStatusUnreachable, false},
		{"connection refused", errors.New("net::ERR_CONNECTION_REFUSED"), models.CheckStatusUnreachable, false},
		{"go dialer refused", errors.New("dial tcp 127.0.0.1:1: connect: connection refused"), models.CheckStatusUnreachable, false},
		{"tls failure", errors.New("net::ERR_SSL_PROTOCOL_ERROR"), models.CheckStatusUnreachable, false},
		{"cert failure", errors.New("net::ERR_CERT_AUTHORITY_INVALID"), models.CheckStatusUnreachable, false},
		{"address unreachable", errors.New("net::ERR_ADDRESS_UNREACHABLE"), models.CheckStatusUnreachable, false},
		{"no such host", errors.New("dial tcp: lookup nope.invalid: no such host"), models.CheckStatusUnreachable, false},
		{"connection reset", errors.New("net::ERR_CONNECTION_RESET"), models.CheckStatusError, true},
		{"network changed", errors.New("net::ERR_NETWORK_CHANGED"), models.CheckStatusError, true},
		{"target closed", errors.New("target closed"), models.CheckStatusError, true},
		{"unknown", errors.New("something exploded"), models.CheckStatusError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, retryable := Classify(tt.err)
			if status != tt.status {
				t.Errorf("expected status %s, got %s", tt.status, status)
			}
			if retryable != tt.retryable {
				t.Errorf("expected retryable=%v, got %v", tt.retryable, retryable)
			}
		})
	}
}
