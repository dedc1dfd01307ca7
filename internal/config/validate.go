package config

import (
	"fmt"
	"net/url"
)

var validStrategies = map[string]bool{
	"embedded": true, "api": true, "dom": true, "legacy": true,
}

var validProviders = map[string]bool{
	"openai": true, "anthropic": true, "claude": true, "ollama": true, "custom": true,
}

var validBackends = map[string]bool{
	"jsonl": true, "mongodb": true,
}

var validFormats = map[string]bool{
	"json": true, "xlsx": true, "docx": true, "csv": true, "md": true,
}

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be > 0")
	}
	if cfg.Fetcher.RequestTimeout <= 0 {
		return fmt.Errorf("fetcher.request_timeout must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}

	if cfg.Proxy.Enabled {
		if cfg.Proxy.Rotation != "round_robin" && cfg.Proxy.Rotation != "random" {
			return fmt.Errorf("proxy.rotation must be 'round_robin' or 'random', got %q", cfg.Proxy.Rotation)
		}
		for _, proxyURL := range cfg.Proxy.URLs {
			if _, err := url.Parse(proxyURL); err != nil {
				return fmt.Errorf("invalid proxy URL %q: %w", proxyURL, err)
			}
		}
	}

	if len(cfg.Cascade.Order) == 0 {
		return fmt.Errorf("cascade.order must name at least one strategy")
	}
	for _, name := range cfg.Cascade.Order {
		if !validStrategies[name] {
			return fmt.Errorf("cascade.order: unknown strategy %q (valid: embedded, api, dom, legacy)", name)
		}
	}
	if cfg.Cascade.ReviewSufficiency < 0 {
		return fmt.Errorf("cascade.review_sufficiency must be >= 0, got %d", cfg.Cascade.ReviewSufficiency)
	}
	if cfg.Cascade.QnASufficiency < 0 {
		return fmt.Errorf("cascade.qna_sufficiency must be >= 0, got %d", cfg.Cascade.QnASufficiency)
	}
	if cfg.Cascade.EmptyPageLimit < 1 {
		return fmt.Errorf("cascade.empty_page_limit must be >= 1, got %d", cfg.Cascade.EmptyPageLimit)
	}
	if cfg.Cascade.FingerprintPrefix < 1 {
		return fmt.Errorf("cascade.fingerprint_prefix must be >= 1, got %d", cfg.Cascade.FingerprintPrefix)
	}

	if err := validateRange("delays.short", cfg.Delays.Short); err != nil {
		return err
	}
	if err := validateRange("delays.dom_page", cfg.Delays.DOMPage); err != nil {
		return err
	}
	if err := validatePlatform("platforms.coupang", &cfg.Platforms.Coupang); err != nil {
		return err
	}
	if err := validatePlatform("platforms.naver", &cfg.Platforms.Naver); err != nil {
		return err
	}

	if cfg.AI.Enabled {
		if len(cfg.AI.Providers) == 0 {
			return fmt.Errorf("ai.providers must not be empty when ai.enabled is true")
		}
		labels := make(map[string]bool, len(cfg.AI.Providers))
		for i, p := range cfg.AI.Providers {
			if !validProviders[p.Provider] {
				return fmt.Errorf("ai.providers[%d].provider %q is not supported (valid: openai, anthropic, ollama, custom)", i, p.Provider)
			}
			if p.Label == "" {
				return fmt.Errorf("ai.providers[%d].label must not be empty", i)
			}
			if labels[p.Label] {
				return fmt.Errorf("ai.providers[%d].label %q is duplicated", i, p.Label)
			}
			labels[p.Label] = true
		}
		if cfg.AI.MaxImages < 0 {
			return fmt.Errorf("ai.max_images must be >= 0, got %d", cfg.AI.MaxImages)
		}
	}

	for _, f := range cfg.Report.Formats {
		if !validFormats[f] {
			return fmt.Errorf("report.formats: %q is not supported (valid: json, xlsx, docx, csv, md)", f)
		}
	}

	for _, b := range cfg.Storage.Backends {
		if !validBackends[b] {
			return fmt.Errorf("storage.backends: %q is not supported (valid: jsonl, mongodb)", b)
		}
		if b == "mongodb" && (cfg.Storage.MongoURI == "" || cfg.Storage.Database == "" || cfg.Storage.Collection == "") {
			return fmt.Errorf("storage: mongodb needs mongo_uri, database and collection")
		}
		if b == "jsonl" && cfg.Storage.Path == "" {
			return fmt.Errorf("storage.path must not be empty for the jsonl backend")
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}
	if cfg.Server.MaxConcurrentJobs < 1 {
		return fmt.Errorf("server.max_concurrent_jobs must be >= 1, got %d", cfg.Server.MaxConcurrentJobs)
	}

	return nil
}

func validateRange(key string, r DelayRange) error {
	if r.Min < 0 || r.Max < 0 {
		return fmt.Errorf("%s must not be negative", key)
	}
	if r.Max < r.Min {
		return fmt.Errorf("%s.max (%s) must be >= min (%s)", key, r.Max, r.Min)
	}
	return nil
}

func validatePlatform(key string, p *PlatformConfig) error {
	if err := validateRange(key+".page_delay", p.PageDelay); err != nil {
		return err
	}
	if p.MaxReviewPages < 1 {
		return fmt.Errorf("%s.max_review_pages must be >= 1, got %d", key, p.MaxReviewPages)
	}
	if p.MaxQnAPages < 1 {
		return fmt.Errorf("%s.max_qna_pages must be >= 1, got %d", key, p.MaxQnAPages)
	}
	if p.MaxReviews < 0 || p.MaxQnA < 0 {
		return fmt.Errorf("%s result caps must be >= 0", key)
	}
	if p.ReviewPageSize < 1 || p.QnAPageSize < 1 {
		return fmt.Errorf("%s page sizes must be >= 1", key)
	}
	if p.ChallengePoll <= 0 {
		return fmt.Errorf("%s.challenge_poll must be > 0", key)
	}
	return nil
}

// ValidateURL checks if a URL string is an absolute http(s) URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
