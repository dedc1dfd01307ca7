package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and CLI flags.
// Priority (highest to lowest): CLI flags > env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("STORESCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("storescope")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".storescope"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper so that environment
// variables can override keys that never appear in a config file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.bin", cfg.Browser.Bin)
	v.SetDefault("browser.user_data_dir", cfg.Browser.UserDataDir)
	v.SetDefault("browser.window_size", cfg.Browser.WindowSize)
	v.SetDefault("browser.locale", cfg.Browser.Locale)
	v.SetDefault("browser.stealth", cfg.Browser.Stealth)
	v.SetDefault("browser.navigation_timeout", cfg.Browser.NavigationTimeout)
	v.SetDefault("browser.user_agents", cfg.Browser.UserAgents)

	v.SetDefault("fetcher.request_timeout", cfg.Fetcher.RequestTimeout)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.accept_language", cfg.Fetcher.AcceptLanguage)
	v.SetDefault("fetcher.tls_insecure", cfg.Fetcher.TLSInsecure)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)

	v.SetDefault("proxy.enabled", cfg.Proxy.Enabled)
	v.SetDefault("proxy.rotation", cfg.Proxy.Rotation)

	v.SetDefault("cascade.order", cfg.Cascade.Order)
	v.SetDefault("cascade.review_sufficiency", cfg.Cascade.ReviewSufficiency)
	v.SetDefault("cascade.qna_sufficiency", cfg.Cascade.QnASufficiency)
	v.SetDefault("cascade.empty_page_limit", cfg.Cascade.EmptyPageLimit)
	v.SetDefault("cascade.fingerprint_prefix", cfg.Cascade.FingerprintPrefix)
	v.SetDefault("cascade.expand_answers", cfg.Cascade.ExpandAnswers)

	v.SetDefault("delays.short.min", cfg.Delays.Short.Min)
	v.SetDefault("delays.short.max", cfg.Delays.Short.Max)
	v.SetDefault("delays.dom_page.min", cfg.Delays.DOMPage.Min)
	v.SetDefault("delays.dom_page.max", cfg.Delays.DOMPage.Max)

	setPlatformDefaults(v, "platforms.coupang", &cfg.Platforms.Coupang)
	setPlatformDefaults(v, "platforms.naver", &cfg.Platforms.Naver)

	v.SetDefault("ai.enabled", cfg.AI.Enabled)
	v.SetDefault("ai.max_images", cfg.AI.MaxImages)
	v.SetDefault("ai.image_timeout", cfg.AI.ImageTimeout)
	v.SetDefault("ai.images_per_second", cfg.AI.ImagesPerSecond)
	v.SetDefault("ai.tokens.story", cfg.AI.Tokens.Story)
	v.SetDefault("ai.tokens.review", cfg.AI.Tokens.Review)
	v.SetDefault("ai.tokens.qna", cfg.AI.Tokens.QnA)
	v.SetDefault("ai.tokens.full", cfg.AI.Tokens.Full)
	v.SetDefault("ai.sections.story", cfg.AI.Sections.Story)
	v.SetDefault("ai.sections.review", cfg.AI.Sections.Review)
	v.SetDefault("ai.sections.qna", cfg.AI.Sections.QnA)
	v.SetDefault("ai.sections.full", cfg.AI.Sections.Full)

	v.SetDefault("report.output_dir", cfg.Report.OutputDir)
	v.SetDefault("report.formats", cfg.Report.Formats)

	v.SetDefault("storage.backends", cfg.Storage.Backends)
	v.SetDefault("storage.path", cfg.Storage.Path)
	v.SetDefault("storage.mongo_uri", cfg.Storage.MongoURI)
	v.SetDefault("storage.database", cfg.Storage.Database)
	v.SetDefault("storage.collection", cfg.Storage.Collection)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)

	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.max_concurrent_jobs", cfg.Server.MaxConcurrentJobs)
}

func setPlatformDefaults(v *viper.Viper, prefix string, p *PlatformConfig) {
	v.SetDefault(prefix+".page_delay.min", p.PageDelay.Min)
	v.SetDefault(prefix+".page_delay.max", p.PageDelay.Max)
	v.SetDefault(prefix+".initial_load_wait", p.InitialLoadWait)
	v.SetDefault(prefix+".refresh_wait", p.RefreshWait)
	v.SetDefault(prefix+".warmup_url", p.WarmupURL)
	v.SetDefault(prefix+".warmup_wait", p.WarmupWait)
	v.SetDefault(prefix+".challenge_wait", p.ChallengeWait)
	v.SetDefault(prefix+".challenge_poll", p.ChallengePoll)
	v.SetDefault(prefix+".tab_click_wait", p.TabClickWait)
	v.SetDefault(prefix+".max_review_pages", p.MaxReviewPages)
	v.SetDefault(prefix+".max_reviews", p.MaxReviews)
	v.SetDefault(prefix+".max_qna_pages", p.MaxQnAPages)
	v.SetDefault(prefix+".max_qna", p.MaxQnA)
	v.SetDefault(prefix+".review_page_size", p.ReviewPageSize)
	v.SetDefault(prefix+".qna_page_size", p.QnAPageSize)
	v.SetDefault(prefix+".ui_page_limit", p.UIPageLimit)
}
