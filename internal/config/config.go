package config

import (
	"math/rand"
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for StoreScope.
type Config struct {
	Browser   BrowserConfig   `mapstructure:"browser"   yaml:"browser"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"   yaml:"fetcher"`
	Proxy     ProxyConfig     `mapstructure:"proxy"     yaml:"proxy"`
	Cascade   CascadeConfig   `mapstructure:"cascade"   yaml:"cascade"`
	Delays    DelayConfig     `mapstructure:"delays"    yaml:"delays"`
	Platforms PlatformsConfig `mapstructure:"platforms" yaml:"platforms"`
	AI        AIConfig        `mapstructure:"ai"        yaml:"ai"`
	Report    ReportConfig    `mapstructure:"report"    yaml:"report"`
	Storage   StorageConfig   `mapstructure:"storage"   yaml:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"   yaml:"metrics"`
	Server    ServerConfig    `mapstructure:"server"    yaml:"server"`
}

// BrowserConfig controls the automated browser session.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless"           yaml:"headless"`
	Bin               string        `mapstructure:"bin"                yaml:"bin"`
	UserDataDir       string        `mapstructure:"user_data_dir"      yaml:"user_data_dir"`
	WindowSize        string        `mapstructure:"window_size"        yaml:"window_size"`
	Locale            string        `mapstructure:"locale"             yaml:"locale"`
	Stealth           bool          `mapstructure:"stealth"            yaml:"stealth"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	UserAgents        []string      `mapstructure:"user_agents"        yaml:"user_agents"`
}

// FetcherConfig controls the cookie-authenticated API client.
type FetcherConfig struct {
	RequestTimeout  time.Duration `mapstructure:"request_timeout"   yaml:"request_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	AcceptLanguage  string        `mapstructure:"accept_language"   yaml:"accept_language"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
}

// ProxyConfig controls proxy rotation.
type ProxyConfig struct {
	Enabled  bool     `mapstructure:"enabled"  yaml:"enabled"`
	Rotation string   `mapstructure:"rotation" yaml:"rotation"`
	URLs     []string `mapstructure:"urls"     yaml:"urls"`
}

// CascadeConfig controls the extraction cascade shared by all platforms.
type CascadeConfig struct {
	// Order lists strategy names in priority order. Unknown names are
	// ignored; names a platform does not implement are skipped.
	Order             []string `mapstructure:"order"              yaml:"order"`
	ReviewSufficiency int      `mapstructure:"review_sufficiency" yaml:"review_sufficiency"`
	QnASufficiency    int      `mapstructure:"qna_sufficiency"    yaml:"qna_sufficiency"`
	EmptyPageLimit    int      `mapstructure:"empty_page_limit"   yaml:"empty_page_limit"`
	FingerprintPrefix int      `mapstructure:"fingerprint_prefix" yaml:"fingerprint_prefix"`
	ExpandAnswers     bool     `mapstructure:"expand_answers"     yaml:"expand_answers"`
}

// DelayRange is an inclusive range a random delay is drawn from.
type DelayRange struct {
	Min time.Duration `mapstructure:"min" yaml:"min"`
	Max time.Duration `mapstructure:"max" yaml:"max"`
}

// Draw returns a fresh uniformly random duration within the range.
func (d DelayRange) Draw() time.Duration {
	if d.Max <= d.Min {
		return d.Min
	}
	return d.Min + time.Duration(rand.Int63n(int64(d.Max-d.Min)+1))
}

// DelayConfig holds the platform-independent pacing ranges.
type DelayConfig struct {
	Short   DelayRange `mapstructure:"short"    yaml:"short"`
	DOMPage DelayRange `mapstructure:"dom_page" yaml:"dom_page"`
}

// PlatformsConfig holds per-platform tunables.
type PlatformsConfig struct {
	Coupang PlatformConfig `mapstructure:"coupang" yaml:"coupang"`
	Naver   PlatformConfig `mapstructure:"naver"   yaml:"naver"`
}

// PlatformConfig holds the tunables for one storefront.
type PlatformConfig struct {
	PageDelay       DelayRange    `mapstructure:"page_delay"        yaml:"page_delay"`
	InitialLoadWait time.Duration `mapstructure:"initial_load_wait" yaml:"initial_load_wait"`
	RefreshWait     time.Duration `mapstructure:"refresh_wait"      yaml:"refresh_wait"`
	WarmupURL       string        `mapstructure:"warmup_url"        yaml:"warmup_url"`
	WarmupWait      time.Duration `mapstructure:"warmup_wait"       yaml:"warmup_wait"`
	ChallengeWait   time.Duration `mapstructure:"challenge_wait"    yaml:"challenge_wait"`
	ChallengePoll   time.Duration `mapstructure:"challenge_poll"    yaml:"challenge_poll"`
	TabClickWait    time.Duration `mapstructure:"tab_click_wait"    yaml:"tab_click_wait"`
	MaxReviewPages  int           `mapstructure:"max_review_pages"  yaml:"max_review_pages"`
	MaxReviews      int           `mapstructure:"max_reviews"       yaml:"max_reviews"`
	MaxQnAPages     int           `mapstructure:"max_qna_pages"     yaml:"max_qna_pages"`
	MaxQnA          int           `mapstructure:"max_qna"           yaml:"max_qna"`
	ReviewPageSize  int           `mapstructure:"review_page_size"  yaml:"review_page_size"`
	QnAPageSize     int           `mapstructure:"qna_page_size"     yaml:"qna_page_size"`
	UIPageLimit     int           `mapstructure:"ui_page_limit"     yaml:"ui_page_limit"`
	Selectors       SelectorTable `mapstructure:"selectors"         yaml:"selectors"`
}

// AIConfig controls narrative generation.
type AIConfig struct {
	Enabled         bool             `mapstructure:"enabled"           yaml:"enabled"`
	Providers       []ProviderConfig `mapstructure:"providers"         yaml:"providers"`
	MaxImages       int              `mapstructure:"max_images"        yaml:"max_images"`
	ImageTimeout    time.Duration    `mapstructure:"image_timeout"     yaml:"image_timeout"`
	ImagesPerSecond float64          `mapstructure:"images_per_second" yaml:"images_per_second"`
	Tokens          TokenConfig      `mapstructure:"tokens"            yaml:"tokens"`
	Sections        SectionConfig    `mapstructure:"sections"          yaml:"sections"`
}

// ProviderConfig configures one narrative provider.
type ProviderConfig struct {
	Label       string  `mapstructure:"label"       yaml:"label"`
	Provider    string  `mapstructure:"provider"    yaml:"provider"`
	Model       string  `mapstructure:"model"       yaml:"model"`
	Endpoint    string  `mapstructure:"endpoint"    yaml:"endpoint"`
	APIKey      string  `mapstructure:"api_key"     yaml:"api_key"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
}

// TokenConfig caps output tokens per analysis section.
type TokenConfig struct {
	Story  int `mapstructure:"story"  yaml:"story"`
	Review int `mapstructure:"review" yaml:"review"`
	QnA    int `mapstructure:"qna"    yaml:"qna"`
	Full   int `mapstructure:"full"   yaml:"full"`
}

// SectionConfig toggles analysis sections.
type SectionConfig struct {
	Story  bool `mapstructure:"story"  yaml:"story"  json:"story"`
	Review bool `mapstructure:"review" yaml:"review" json:"review"`
	QnA    bool `mapstructure:"qna"    yaml:"qna"    json:"qna"`
	Full   bool `mapstructure:"full"   yaml:"full"   json:"full"`
}

// ReportConfig controls exported files.
type ReportConfig struct {
	OutputDir string   `mapstructure:"output_dir" yaml:"output_dir"`
	Formats   []string `mapstructure:"formats"    yaml:"formats"`
}

// StorageConfig controls the archive of finished analyses. No backends
// means nothing is archived.
type StorageConfig struct {
	Backends   []string `mapstructure:"backends"   yaml:"backends"`
	Path       string   `mapstructure:"path"       yaml:"path"`
	MongoURI   string   `mapstructure:"mongo_uri"  yaml:"mongo_uri"`
	Database   string   `mapstructure:"database"   yaml:"database"`
	Collection string   `mapstructure:"collection" yaml:"collection"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// ServerConfig controls the HTTP job API.
type ServerConfig struct {
	Port              int `mapstructure:"port"                yaml:"port"`
	MaxConcurrentJobs int `mapstructure:"max_concurrent_jobs" yaml:"max_concurrent_jobs"`
}

// Platform returns the tunables for the named platform.
func (c *Config) Platform(name string) *PlatformConfig {
	switch name {
	case "coupang":
		return &c.Platforms.Coupang
	case "naver":
		return &c.Platforms.Naver
	default:
		return nil
	}
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:          true,
			WindowSize:        "1920,1080",
			Locale:            "ko-KR",
			Stealth:           true,
			NavigationTimeout: 60 * time.Second,
			UserAgents: []string{
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/145.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/145.0.0.0 Safari/537.36",
				"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/144.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/144.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/143.0.0.0 Safari/537.36",
			},
		},
		Fetcher: FetcherConfig{
			RequestTimeout:  15 * time.Second,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			AcceptLanguage:  "ko-KR,ko;q=0.9",
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    10,
		},
		Proxy: ProxyConfig{
			Enabled:  false,
			Rotation: "round_robin",
		},
		Cascade: CascadeConfig{
			Order:             []string{"embedded", "api", "dom", "legacy"},
			ReviewSufficiency: 5,
			QnASufficiency:    3,
			EmptyPageLimit:    3,
			FingerprintPrefix: 50,
			ExpandAnswers:     true,
		},
		Delays: DelayConfig{
			Short:   DelayRange{Min: 500 * time.Millisecond, Max: 1500 * time.Millisecond},
			DOMPage: DelayRange{Min: 2 * time.Second, Max: 3500 * time.Millisecond},
		},
		Platforms: PlatformsConfig{
			Coupang: PlatformConfig{
				PageDelay:       DelayRange{Min: 1800 * time.Millisecond, Max: 2500 * time.Millisecond},
				InitialLoadWait: 5 * time.Second,
				RefreshWait:     5 * time.Second,
				ChallengeWait:   120 * time.Second,
				ChallengePoll:   3 * time.Second,
				TabClickWait:    3 * time.Second,
				MaxReviewPages:  50,
				MaxReviews:      500,
				MaxQnAPages:     20,
				ReviewPageSize:  10,
				QnAPageSize:     10,
				UIPageLimit:     10,
				Selectors:       CoupangSelectors(),
			},
			Naver: PlatformConfig{
				PageDelay:       DelayRange{Min: 2500 * time.Millisecond, Max: 4 * time.Second},
				InitialLoadWait: 6 * time.Second,
				RefreshWait:     5 * time.Second,
				WarmupURL:       "https://www.naver.com",
				WarmupWait:      3 * time.Second,
				ChallengeWait:   120 * time.Second,
				ChallengePoll:   3 * time.Second,
				TabClickWait:    3 * time.Second,
				MaxReviewPages:  50,
				MaxReviews:      500,
				MaxQnAPages:     20,
				ReviewPageSize:  20,
				QnAPageSize:     20,
				UIPageLimit:     50,
				Selectors:       NaverSelectors(),
			},
		},
		AI: AIConfig{
			Enabled: false,
			Providers: []ProviderConfig{
				{Label: "openai", Provider: "openai", Model: "o4-mini"},
			},
			MaxImages:       10,
			ImageTimeout:    15 * time.Second,
			ImagesPerSecond: 4,
			Tokens:          TokenConfig{Story: 2000, Review: 3000, QnA: 2000, Full: 4000},
			Sections:        SectionConfig{Story: true, Review: true, QnA: true, Full: true},
		},
		Report: ReportConfig{
			OutputDir: "./output",
			Formats:   []string{"json", "xlsx", "docx"},
		},
		Storage: StorageConfig{
			Path:       "./output/archive.jsonl",
			MongoURI:   "mongodb://localhost:27017",
			Database:   "storescope",
			Collection: "analyses",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
		Server: ServerConfig{
			Port:              8080,
			MaxConcurrentJobs: 2,
		},
	}
}
