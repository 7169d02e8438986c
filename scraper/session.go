package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LedMarketing/OpenManus/config"
	"github.com/LedMarketing/OpenManus/markup"
	"github.com/LedMarketing/OpenManus/models"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
)

// SessionState is the lifecycle state of the shared browser.
type SessionState int32

const (
	StateUninitialized SessionState = iota
	StateRunning
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "idle"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// ErrSessionClosed is returned by Extract after Close.
var ErrSessionClosed = errors.New("headless session is closed")

// launchFunc starts a browser and returns it with a cleanup hook.
type launchFunc func(cfg config.BrowserConfig) (*rod.Browser, func(), error)

// Session owns the single shared browser process. The browser is launched
// on the first Extract call and reused by every later call; each call gets
// its own page. Once closed, a Session never relaunches.
type Session struct {
	cfg       config.BrowserConfig
	userAgent string
	launch    launchFunc

	mu      sync.Mutex
	state   SessionState
	browser *rod.Browser
	cleanup func()

	activePages atomic.Int32
}

// NewSession creates a Session. No browser is started until the first Extract.
func NewSession(cfg config.BrowserConfig, userAgent string) *Session {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	if cfg.IdleTimeout <= 0 || cfg.IdleTimeout > cfg.NavigationTimeout {
		cfg.IdleTimeout = cfg.NavigationTimeout / 3
	}
	return &Session{
		cfg:       cfg,
		userAgent: userAgent,
		launch:    launchBrowser,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ActivePages returns the number of pages currently open.
func (s *Session) ActivePages() int {
	return int(s.activePages.Load())
}

// Extract opens a page, navigates to target, evaluates the selector-driven
// extraction script in the page and closes the page on every exit path.
//
// With an empty selector map the result is the {title, url, text} fallback.
// Failures are ExtractionErrors, except a selector the browser rejects,
// which is a ValidationError. None of them tear down the browser.
func (s *Session) Extract(ctx context.Context, target string, selectors map[string]string) (*models.AdvancedPage, error) {
	browser, err := s.acquire()
	if err != nil {
		return nil, models.ExtractionError("headless browser unavailable", err)
	}

	// In-flight navigations run to their own deadline.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.NavigationTimeout)
	defer cancel()

	s.activePages.Add(1)
	defer s.activePages.Add(-1)

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.ExtractionError("failed to open page", err)
	}
	// Close with the page's own context so cleanup succeeds after a timeout.
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			slog.Warn("failed to close page", "url", target, "error", closeErr)
		}
	}()

	if err := s.preparePage(page); err != nil {
		return nil, models.ExtractionError("failed to prepare page", err)
	}

	p := page.Context(ctx)

	// The idle waiter must be registered before Navigate to see every request.
	idleCtx, idleCancel := context.WithTimeout(ctx, s.cfg.IdleTimeout)
	defer idleCancel()
	waitIdle := page.Context(idleCtx).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)

	if err := p.Navigate(target); err != nil {
		return nil, categorizeNavError(err)
	}
	waitIdle()

	if selectors == nil {
		selectors = map[string]string{}
	}
	res, err := p.Eval(extractScript, selectors)
	if err != nil {
		return nil, categorizeNavError(err)
	}

	var out evalResult
	if err := json.Unmarshal([]byte(res.Value.JSON("", "")), &out); err != nil {
		return nil, models.ExtractionError("unexpected extraction result", err)
	}
	return out.toPage()
}

// Close shuts the browser down and moves the session to StateClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return
	}
	prev := s.state
	s.state = StateClosed

	if prev != StateRunning {
		return
	}
	slog.Info("headless session shutting down", "activePages", s.ActivePages())
	if err := s.browser.Close(); err != nil {
		slog.Warn("browser close failed", "error", err)
	}
	if s.cleanup != nil {
		s.cleanup()
	}
	s.browser = nil
	slog.Info("headless session closed")
}

// acquire returns the shared browser, launching it on first use.
func (s *Session) acquire() (*rod.Browser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosed:
		return nil, ErrSessionClosed
	case StateRunning:
		return s.browser, nil
	}

	browser, cleanup, err := s.launch(s.cfg)
	if err != nil {
		return nil, err
	}
	s.browser = browser
	s.cleanup = cleanup
	s.state = StateRunning
	return browser, nil
}

func (s *Session) preparePage(page *rod.Page) error {
	if s.cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}
	if s.userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      s.userAgent,
			AcceptLanguage: "en-US,en;q=0.9",
		}); err != nil {
			return err
		}
	}
	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		return err
	}
	return proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{
			"Accept-Language": "en-US,en;q=0.9",
		}),
	}.Call(page)
}

// launchBrowser starts a local Chromium through the rod launcher.
func launchBrowser(cfg config.BrowserConfig) (*rod.Browser, func(), error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)
	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))
	if cfg.Stealth {
		l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
		l.Delete(flags.Flag("enable-automation"))
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, nil, fmt.Errorf("launch browser: %w", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, nil, fmt.Errorf("connect to browser: %w", err)
	}
	return browser, l.Cleanup, nil
}

// categorizeNavError wraps page errors, naming timeouts explicitly.
func categorizeNavError(err error) *models.AppError {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.ExtractionError("navigation timed out", err)
	}
	return models.ExtractionError("navigation failed", err)
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// evalResult mirrors the object returned by extractScript.
type evalResult struct {
	Fields   map[string][]models.Element `json:"fields"`
	Fallback *models.PageSummary         `json:"fallback"`

	// InvalidSelector is set when the browser refused a selector.
	InvalidSelector *selectorFailure `json:"invalidSelector"`
}

type selectorFailure struct {
	Name     string `json:"name"`
	Selector string `json:"selector"`
	Message  string `json:"message"`
}

func (r evalResult) toPage() (*models.AdvancedPage, error) {
	if f := r.InvalidSelector; f != nil {
		return nil, models.ValidationError(fmt.Sprintf(
			"invalid selector %q for field %q: %s", f.Selector, f.Name, f.Message))
	}
	if r.Fallback != nil {
		r.Fallback.Text = markup.Truncate(r.Fallback.Text, models.MaxFallbackText)
		return &models.AdvancedPage{Fallback: r.Fallback}, nil
	}
	fields := r.Fields
	if fields == nil {
		fields = map[string][]models.Element{}
	}
	for name, elems := range fields {
		if elems == nil {
			fields[name] = []models.Element{}
		}
	}
	return &models.AdvancedPage{Fields: fields}, nil
}

// extractScript runs inside the page. With selectors it returns every match
// per name; without, the generic title/url/text summary.
const extractScript = `(selectors) => {
	const names = Object.keys(selectors || {});
	if (names.length === 0) {
		const body = document.body ? document.body.textContent.trim() : '';
		return {
			fallback: {
				title: document.title,
				url: window.location.href,
				text: body.substring(0, 5000),
			},
		};
	}
	const fields = {};
	for (const name of names) {
		let elements;
		try {
			elements = Array.from(document.querySelectorAll(selectors[name]));
		} catch (e) {
			return {
				invalidSelector: {
					name: name,
					selector: selectors[name],
					message: String((e && e.message) || e),
				},
			};
		}
		fields[name] = elements.map((el) => {
			const attributes = {};
			for (const attr of Array.from(el.attributes)) {
				attributes[attr.name] = attr.value;
			}
			return {
				text: (el.textContent || '').trim(),
				html: el.innerHTML,
				attributes: attributes,
			};
		});
	}
	return { fields: fields };
}`
