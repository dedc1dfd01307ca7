package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/StoreScope/internal/automation"
	"github.com/IshaanNene/StoreScope/internal/config"
	"github.com/IshaanNene/StoreScope/internal/types"
)

// CookieSource reads the current browser cookies.
type CookieSource func(ctx context.Context) ([]*http.Cookie, error)

// Session is a browser session for one product run. It implements
// Navigable on top of Rod with go-rod/stealth patches applied.
type Session struct {
	cfg        *config.Config
	platform   types.Platform
	pcfg       *config.PlatformConfig
	stealthCfg *StealthConfig
	proxies    *ProxyPool
	logger     *slog.Logger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	raw      *rod.Page
	page     automation.Page
	proxy    *url.URL
	closed   bool

	sleep      SleepFunc
	cookies    CookieSource
	clientOpts []ClientOption
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithPage attaches an existing page instead of launching a browser.
func WithPage(p automation.Page) SessionOption {
	return func(s *Session) { s.page = p }
}

// WithCookieSource replaces the browser cookie reader.
func WithCookieSource(fn CookieSource) SessionOption {
	return func(s *Session) { s.cookies = fn }
}

// WithSleep replaces the wait function used between navigation steps.
func WithSleep(fn SleepFunc) SessionOption {
	return func(s *Session) { s.sleep = fn }
}

// WithClientOptions forwards options to every Client built by HTTPClient.
func WithClientOptions(opts ...ClientOption) SessionOption {
	return func(s *Session) { s.clientOpts = append(s.clientOpts, opts...) }
}

// WithProxyPool sets the pool the session draws its exit proxy from.
func WithProxyPool(pool *ProxyPool) SessionOption {
	return func(s *Session) { s.proxies = pool }
}

// NewSession creates an unlaunched session for platform.
func NewSession(cfg *config.Config, platform types.Platform, logger *slog.Logger, opts ...SessionOption) (*Session, error) {
	pcfg := cfg.Platform(string(platform))
	if pcfg == nil {
		return nil, fmt.Errorf("new session: %w: %s", types.ErrUnsupported, platform)
	}
	s := &Session{
		cfg:        cfg,
		platform:   platform,
		pcfg:       pcfg,
		stealthCfg: NewStealthConfig(&cfg.Browser),
		logger:     logger.With("component", "session", "platform", string(platform)),
		sleep:      Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Launch starts Chromium and opens the working page. With WithPage it is a
// no-op.
func (s *Session) Launch(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page != nil {
		return nil
	}

	l := s.newLauncher()
	controlURL, err := l.Context(ctx).Launch()
	if err != nil {
		if s.proxy != nil {
			s.proxies.Fail(s.proxy, err)
		}
		return fmt.Errorf("launch browser: %w", err)
	}
	s.launcher = l

	browser := rod.New().Context(ctx).ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("connect browser: %w", err)
	}
	s.browser = browser

	var page *rod.Page
	if s.cfg.Browser.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		s.closeLocked()
		return fmt.Errorf("open page: %w", err)
	}

	if s.stealthCfg.UserAgent != "" {
		err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      s.stealthCfg.UserAgent,
			AcceptLanguage: s.cfg.Fetcher.AcceptLanguage,
			Platform:       s.stealthCfg.Platform,
		})
		if err != nil {
			s.logger.Warn("failed to set user agent", "error", err)
		}
	}
	if s.cfg.Browser.Stealth {
		if _, err := page.EvalOnNewDocument(s.stealthCfg.StealthJS()); err != nil {
			s.logger.Warn("failed to inject stealth script", "error", err)
		}
	}
	if s.proxy != nil {
		s.proxies.Succeed(s.proxy)
	}

	s.raw = page
	s.page = automation.NewRodPage(page, s.cfg.Browser.NavigationTimeout, s.logger)

	s.logger.Info("browser session ready",
		"headless", s.cfg.Browser.Headless,
		"stealth", s.cfg.Browser.Stealth,
		"proxy", s.proxy != nil,
	)
	return nil
}

// newLauncher builds the Chromium launcher with anti-automation flags.
func (s *Session) newLauncher() *launcher.Launcher {
	l := launcher.New().
		Headless(s.cfg.Browser.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-blink-features", "AutomationControlled").
		Set("window-size", s.stealthCfg.WindowSize).
		Set("lang", s.stealthCfg.Language)

	if s.cfg.Browser.Bin != "" {
		l = l.Bin(s.cfg.Browser.Bin)
	}
	if s.stealthCfg.UserDataDir != "" {
		l = l.UserDataDir(s.stealthCfg.UserDataDir)
	}
	if proxyURL := s.proxies.Acquire(); proxyURL != nil {
		s.proxy = proxyURL
		l = l.Proxy(proxyURL.String())
	}
	return l
}

// Page returns the live page. It is nil before Launch.
func (s *Session) Page() automation.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Navigate loads url and waits the initial load time. An "Access Denied"
// title is reported as blocked.
func (s *Session) Navigate(ctx context.Context, target string) types.NavOutcome {
	page := s.Page()
	if page == nil {
		return types.NavFailed
	}
	if err := page.Navigate(ctx, target); err != nil {
		s.logger.Warn("navigation failed", "url", target, "error", err)
		return types.NavFailed
	}
	if err := s.sleep(ctx, s.pcfg.InitialLoadWait); err != nil {
		return types.NavFailed
	}
	if IsBlocked(page.Title()) {
		s.logger.Warn("access denied", "url", target)
		return types.NavBlocked
	}
	return types.NavSuccess
}

// NavigateWithFallback warms up cookies, then tries primary and secondary
// in turn. Each error page gets one refresh before moving on.
func (s *Session) NavigateWithFallback(ctx context.Context, primary, secondary string) types.NavOutcome {
	page := s.Page()
	if page == nil {
		return types.NavFailed
	}

	if s.pcfg.WarmupURL != "" {
		s.logger.Info("warming up cookies", "url", s.pcfg.WarmupURL)
		if err := page.Navigate(ctx, s.pcfg.WarmupURL); err != nil {
			s.logger.Warn("warm-up navigation failed", "error", err)
		}
		if err := s.sleep(ctx, s.pcfg.WarmupWait); err != nil {
			return types.NavFailed
		}
	}

	for _, target := range []string{primary, secondary} {
		if target == "" {
			continue
		}
		s.logger.Info("opening product page", "url", target)
		if err := page.Navigate(ctx, target); err != nil {
			s.logger.Warn("navigation failed", "url", target, "error", err)
		}
		if err := s.sleep(ctx, s.pcfg.InitialLoadWait); err != nil {
			return types.NavFailed
		}
		switch s.classify(page) {
		case PageSuccess:
			return types.NavSuccess
		case PageChallenge:
			s.logger.Warn("challenge detected", "url", target)
			return types.NavChallenge
		}

		s.logger.Info("error page, refreshing", "url", target, "wait", s.pcfg.RefreshWait)
		if err := s.sleep(ctx, s.pcfg.RefreshWait); err != nil {
			return types.NavFailed
		}
		if err := page.Reload(ctx); err != nil {
			s.logger.Warn("reload failed", "error", err)
		}
		if err := s.sleep(ctx, s.pcfg.InitialLoadWait); err != nil {
			return types.NavFailed
		}
		switch s.classify(page) {
		case PageSuccess:
			return types.NavSuccess
		case PageChallenge:
			s.logger.Warn("challenge detected after refresh", "url", target)
			return types.NavChallenge
		}
	}

	s.logger.Warn("all navigation attempts failed", "primary", primary, "secondary", secondary)
	return types.NavFailed
}

// classify reads the page and applies ClassifyPage. A live __NEXT_DATA__
// script that the serialized source missed still counts as success.
func (s *Session) classify(page automation.Page) PageState {
	source, err := page.HTML()
	if err != nil {
		return PageError
	}
	title := page.Title()
	state := ClassifyPage(page.URL(), title, source)
	if state != PageError {
		return state
	}
	if len(source) < errorPageMaxLen && containsAny(title, source, errorSigns) {
		return PageError
	}
	if _, ok := page.Query("script#" + nextDataMarker); ok {
		return PageSuccess
	}
	return PageError
}

// WaitForChallenge polls until the challenge clears or ChallengeWait
// elapses. Headless sessions have nobody to solve it and return false at
// once.
func (s *Session) WaitForChallenge(ctx context.Context) bool {
	if s.cfg.Browser.Headless {
		s.logger.Warn("challenge cannot be solved in a headless session")
		return false
	}
	page := s.Page()
	if page == nil {
		return false
	}

	poll := s.pcfg.ChallengePoll
	if poll <= 0 {
		poll = 3 * time.Second
	}
	for waited := time.Duration(0); waited < s.pcfg.ChallengeWait; waited += poll {
		s.logger.Info("waiting for challenge to be solved in the browser",
			"remaining", s.pcfg.ChallengeWait-waited,
		)
		if err := s.sleep(ctx, poll); err != nil {
			return false
		}
		source, err := page.HTML()
		if err != nil {
			continue
		}
		if ChallengeCleared(source) {
			s.logger.Info("challenge cleared")
			return true
		}
	}
	return false
}

// HTTPClient builds an API client from the browser's cookies and user
// agent, with the platform's request headers.
func (s *Session) HTTPClient(ctx context.Context, referer string) (*Client, error) {
	page := s.Page()
	if page == nil {
		return nil, fmt.Errorf("http client: %w: session not launched", types.ErrNavigation)
	}

	ua, err := page.Eval(ctx, `() => navigator.userAgent`)
	if err != nil || ua == "" {
		ua = s.stealthCfg.UserAgent
	}

	cookies, err := s.readCookies(ctx)
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}

	opts := append([]ClientOption{
		WithHeaders(PlatformHeaders(s.platform, ua, referer, s.cfg.Fetcher.AcceptLanguage)),
	}, s.clientOpts...)
	client, err := NewClient(&s.cfg.Fetcher, s.proxy, s.logger, opts...)
	if err != nil {
		return nil, err
	}

	fallback, _ := url.Parse(referer)
	n := client.ImportCookies(fallback, cookies)
	s.logger.Info("api client ready", "cookies", n)
	return client, nil
}

func (s *Session) readCookies(ctx context.Context) ([]*http.Cookie, error) {
	if s.cookies != nil {
		return s.cookies(ctx)
	}
	s.mu.Lock()
	raw := s.raw
	s.mu.Unlock()
	if raw == nil {
		return nil, nil
	}
	cookies, err := raw.Context(ctx).Cookies(nil)
	if err != nil {
		return nil, err
	}
	return BrowserCookies(cookies), nil
}

// Close shuts down the browser. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Session) closeLocked() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.raw != nil {
		_ = s.raw.Close()
	}
	if s.browser != nil {
		err = s.browser.Close()
	}
	if s.launcher != nil {
		s.launcher.Kill()
	}
	return err
}
