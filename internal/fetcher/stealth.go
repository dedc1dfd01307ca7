package fetcher

import (
	"crypto/tls"
	"fmt"
	"math/rand"
	"strings"

	"github.com/IshaanNene/StoreScope/internal/config"
)

// StealthConfig is the fingerprint presented by one browser session.
type StealthConfig struct {
	UserAgent string

	// Window size for browser launch, "w,h"
	WindowSize  string
	UserDataDir string

	// Primary language and the full navigator.languages list
	Language  string
	Languages []string

	// navigator.platform, kept consistent with UserAgent
	Platform string

	HardwareConcurrency int
	DeviceMemory        int
}

// NewStealthConfig draws a fingerprint for one session from the configured
// user-agent pool.
func NewStealthConfig(cfg *config.BrowserConfig) *StealthConfig {
	ua := ""
	if len(cfg.UserAgents) > 0 {
		ua = cfg.UserAgents[rand.Intn(len(cfg.UserAgents))]
	}
	lang := cfg.Locale
	if lang == "" {
		lang = "ko-KR"
	}
	windowSize := cfg.WindowSize
	if windowSize == "" {
		windowSize = "1920,1080"
	}

	return &StealthConfig{
		UserAgent:           ua,
		WindowSize:          windowSize,
		UserDataDir:         cfg.UserDataDir,
		Language:            lang,
		Languages:           languageList(lang),
		Platform:            platformFor(ua),
		HardwareConcurrency: 4 + 2*rand.Intn(7), // 4-16 cores, even
		DeviceMemory:        8,
	}
}

func languageList(lang string) []string {
	base, _, _ := strings.Cut(lang, "-")
	out := []string{lang}
	if base != lang {
		out = append(out, base)
	}
	if base != "en" {
		out = append(out, "en-US", "en")
	}
	return out
}

// platformFor maps a user agent to the navigator.platform a real browser
// with that agent reports.
func platformFor(ua string) string {
	switch {
	case strings.Contains(ua, "Macintosh"):
		return "MacIntel"
	case strings.Contains(ua, "Windows"):
		return "Win32"
	case strings.Contains(ua, "Linux"):
		return "Linux x86_64"
	default:
		return "Win32"
	}
}

// StealthJS returns JavaScript to inject for fingerprint spoofing.
// This is injected into every page before any other scripts run.
func (sc *StealthConfig) StealthJS() string {
	return fmt.Sprintf(`
// --- StoreScope stealth patches ---

// Override navigator properties
Object.defineProperty(navigator, 'platform', { get: () => '%s' });
Object.defineProperty(navigator, 'language', { get: () => '%s' });
Object.defineProperty(navigator, 'languages', { get: () => [%s] });
Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => %d });
Object.defineProperty(navigator, 'deviceMemory', { get: () => %d });

// Remove webdriver flag
Object.defineProperty(navigator, 'webdriver', { get: () => false });

// Override Chrome properties
window.chrome = {
	runtime: { onMessage: { addListener: () => {} }, sendMessage: () => {} },
	loadTimes: () => ({}),
	csi: () => ({}),
};

// Fix permissions API
const originalQuery = window.navigator.permissions.query;
window.navigator.permissions.query = (parameters) => (
	parameters.name === 'notifications' ?
		Promise.resolve({ state: Notification.permission }) :
		originalQuery(parameters)
);

// Fix plugins array
Object.defineProperty(navigator, 'plugins', {
	get: () => {
		const plugins = [
			{ name: 'Chrome PDF Plugin', filename: 'internal-pdf-viewer' },
			{ name: 'Chrome PDF Viewer', filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai' },
			{ name: 'Native Client', filename: 'internal-nacl-plugin' },
		];
		plugins.length = 3;
		return plugins;
	}
});

// Fix iframe contentWindow
const iframeProto = HTMLIFrameElement.prototype;
const origContentWindow = Object.getOwnPropertyDescriptor(iframeProto, 'contentWindow');
if (origContentWindow) {
	Object.defineProperty(iframeProto, 'contentWindow', {
		get: function() {
			const win = origContentWindow.get.call(this);
			if (win) {
				try { win.chrome = window.chrome; } catch(e) {}
			}
			return win;
		}
	});
}

// Console debug logging protection
const originalToString = Function.prototype.toString;
Function.prototype.toString = function() {
	if (this === Function.prototype.toString) return 'function toString() { [native code] }';
	return originalToString.call(this);
};
`, sc.Platform, sc.Language, quotedList(sc.Languages), sc.HardwareConcurrency, sc.DeviceMemory)
}

func quotedList(items []string) string {
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = "'" + it + "'"
	}
	return strings.Join(quoted, ", ")
}

// Cipher suite orders offered by each browser family.
var (
	chromeSuites = []uint16{
		tls.TLS_AES_128_GCM_SHA256,
		tls.TLS_AES_256_GCM_SHA384,
		tls.TLS_CHACHA20_POLY1305_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
		tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
	}
	firefoxSuites = []uint16{
		tls.TLS_AES_128_GCM_SHA256,
		tls.TLS_CHACHA20_POLY1305_SHA256,
		tls.TLS_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
		tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	}
)

// tlsConfigFor returns a TLS config whose cipher order matches the browser
// family named by ua. The API client must not contradict the user agent
// the browser session presented.
func tlsConfigFor(ua string) *tls.Config {
	suites := chromeSuites
	if strings.Contains(ua, "Firefox/") {
		suites = firefoxSuites
	}
	return &tls.Config{
		CipherSuites: suites,
		MinVersion:   tls.VersionTLS12,
		MaxVersion:   tls.VersionTLS13,
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
			tls.CurveP384,
		},
	}
}
