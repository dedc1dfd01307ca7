package fetcher

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/IshaanNene/StoreScope/internal/types"
)

// Accept headers sent by each storefront's own front-end for its API.
const (
	coupangAccept = "text/html,*/*"
	naverAccept   = "application/json, text/plain, */*"
)

// PlatformHeaders returns the default API headers for a platform.
func PlatformHeaders(platform types.Platform, userAgent, referer, acceptLanguage string) http.Header {
	if acceptLanguage == "" {
		acceptLanguage = "ko-KR,ko;q=0.9"
	}
	h := make(http.Header)
	h.Set("User-Agent", userAgent)
	h.Set("Accept-Language", acceptLanguage)
	if referer != "" {
		h.Set("Referer", referer)
	}
	switch platform {
	case types.PlatformCoupang:
		h.Set("Accept", coupangAccept)
		h.Set("X-Requested-With", "XMLHttpRequest")
	default:
		h.Set("Accept", naverAccept)
	}
	return h
}

// BrowserCookies converts cookies read from the browser into net/http form.
func BrowserCookies(cookies []*proto.NetworkCookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			hc.Expires = time.Unix(int64(c.Expires), 0)
		}
		out = append(out, hc)
	}
	return out
}

// ImportCookies stores browser cookies in the client's jar, grouped by the
// domain each cookie belongs to. Cookies without a domain are scoped to
// fallback.
func (c *Client) ImportCookies(fallback *url.URL, cookies []*http.Cookie) int {
	byDomain := make(map[string][]*http.Cookie)
	for _, ck := range cookies {
		domain := strings.TrimPrefix(ck.Domain, ".")
		if domain == "" && fallback != nil {
			domain = fallback.Hostname()
		}
		if domain == "" {
			continue
		}
		byDomain[domain] = append(byDomain[domain], ck)
	}

	n := 0
	for domain, list := range byDomain {
		c.SetCookies(&url.URL{Scheme: "https", Host: domain, Path: "/"}, list)
		n += len(list)
	}
	c.logger.Debug("cookies imported", "count", n, "domains", len(byDomain))
	return n
}
