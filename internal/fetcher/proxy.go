package fetcher

import (
	"log/slog"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"github.com/IshaanNene/StoreScope/internal/config"
)

// DefaultProxyCooldown is how long a proxy stays out of rotation after a
// failed launch.
const DefaultProxyCooldown = 10 * time.Minute

// ProxyPool hands out one exit proxy per browser session. The session's API
// client reuses the same proxy, since storefront cookies are bound to the
// address that earned them.
type ProxyPool struct {
	mu       sync.Mutex
	entries  []*proxyEntry
	rotation string
	next     int
	cooldown time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

type proxyEntry struct {
	url       *url.URL
	sessions  int
	failures  int
	lastErr   error
	downUntil time.Time
}

// NewProxyPool creates a pool from configuration. It returns nil when
// proxying is disabled or no URL parses.
func NewProxyPool(cfg *config.ProxyConfig, logger *slog.Logger) *ProxyPool {
	if !cfg.Enabled {
		return nil
	}
	p := &ProxyPool{
		rotation: cfg.Rotation,
		cooldown: DefaultProxyCooldown,
		now:      time.Now,
		logger:   logger.With("component", "proxy_pool"),
	}
	for _, raw := range cfg.URLs {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			p.logger.Warn("invalid proxy URL", "url", raw, "error", err)
			continue
		}
		p.entries = append(p.entries, &proxyEntry{url: u})
	}
	if len(p.entries) == 0 {
		return nil
	}
	p.logger.Info("proxy pool ready", "count", len(p.entries), "rotation", cfg.Rotation)
	return p
}

// Acquire returns the proxy for a new session, or nil when every proxy is
// cooling down.
func (p *ProxyPool) Acquire() *url.URL {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	var up []*proxyEntry
	for _, e := range p.entries {
		if !now.Before(e.downUntil) {
			up = append(up, e)
		}
	}
	if len(up) == 0 {
		p.logger.Warn("no proxy available, connecting directly")
		return nil
	}

	var e *proxyEntry
	if p.rotation == "random" {
		e = up[rand.Intn(len(up))]
	} else {
		e = up[p.next%len(up)]
		p.next++
	}
	e.sessions++
	return e.url
}

// Fail takes u out of rotation for the cooldown period.
func (p *ProxyPool) Fail(u *url.URL, err error) {
	if e := p.find(u); e != nil {
		p.mu.Lock()
		e.failures++
		e.lastErr = err
		e.downUntil = p.now().Add(p.cooldown)
		p.mu.Unlock()
		p.logger.Warn("proxy cooling down", "proxy", u.Host, "for", p.cooldown, "error", err)
	}
}

// Succeed returns u to rotation immediately.
func (p *ProxyPool) Succeed(u *url.URL) {
	if e := p.find(u); e != nil {
		p.mu.Lock()
		e.failures = 0
		e.lastErr = nil
		e.downUntil = time.Time{}
		p.mu.Unlock()
	}
}

// Available returns the number of proxies not cooling down.
func (p *ProxyPool) Available() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	n := 0
	for _, e := range p.entries {
		if !now.Before(e.downUntil) {
			n++
		}
	}
	return n
}

// Len returns the number of configured proxies.
func (p *ProxyPool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.entries)
}

func (p *ProxyPool) find(u *url.URL) *proxyEntry {
	if p == nil || u == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.entries {
		if e.url.String() == u.String() {
			return e
		}
	}
	return nil
}
