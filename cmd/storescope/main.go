package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/StoreScope/internal/config"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "storescope",
		Short: "StoreScope: Korean storefront product analyzer",
		Long: `StoreScope collects product details, reviews and Q&A from Coupang and
Naver Smart Store product pages and turns them into analyst reports.

Features:
  • Browser-backed navigation with stealth, warm-up and challenge handling
  • Embedded JSON, internal API, DOM and legacy selector extraction cascade
  • Multi-provider LLM narratives (OpenAI, Anthropic, Ollama, custom)
  • xlsx, docx, JSON, CSV and Markdown reports
  • JSONL and MongoDB archive of every analysis
  • HTTP job API and Prometheus metrics endpoint`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(resolveCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("StoreScope %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Browser:\n")
			fmt.Printf("  Headless:          %v\n", cfg.Browser.Headless)
			fmt.Printf("  Stealth:           %v\n", cfg.Browser.Stealth)
			fmt.Printf("  Locale:            %s\n", cfg.Browser.Locale)
			fmt.Printf("  Nav Timeout:       %s\n", cfg.Browser.NavigationTimeout)
			fmt.Printf("\nCascade:\n")
			fmt.Printf("  Order:             %s\n", strings.Join(cfg.Cascade.Order, " → "))
			fmt.Printf("  Sufficiency:       reviews %d, qna %d\n", cfg.Cascade.ReviewSufficiency, cfg.Cascade.QnASufficiency)
			fmt.Printf("  Empty Page Limit:  %d\n", cfg.Cascade.EmptyPageLimit)
			for _, name := range []string{"coupang", "naver"} {
				p := cfg.Platform(name)
				fmt.Printf("\nPlatform %s:\n", name)
				fmt.Printf("  Max Reviews:       %d (%d pages)\n", p.MaxReviews, p.MaxReviewPages)
				fmt.Printf("  Max Q&A Pages:     %d\n", p.MaxQnAPages)
				fmt.Printf("  Page Delay:        %s – %s\n", p.PageDelay.Min, p.PageDelay.Max)
			}
			fmt.Printf("\nAI:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.AI.Enabled)
			for _, pc := range cfg.AI.Providers {
				fmt.Printf("  Provider:          %s (%s, %s)\n", pc.Label, pc.Provider, pc.Model)
			}
			fmt.Printf("  Sections:          story=%v review=%v qna=%v full=%v\n",
				cfg.AI.Sections.Story, cfg.AI.Sections.Review, cfg.AI.Sections.QnA, cfg.AI.Sections.Full)
			fmt.Printf("\nReport:\n")
			fmt.Printf("  Output Dir:        %s\n", cfg.Report.OutputDir)
			fmt.Printf("  Formats:           %s\n", strings.Join(cfg.Report.Formats, ", "))
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Backends:          %s\n", strings.Join(cfg.Storage.Backends, ", "))
			fmt.Printf("  Path:              %s\n", cfg.Storage.Path)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:              %d\n", cfg.Metrics.Port)
			fmt.Printf("\nServer:\n")
			fmt.Printf("  Port:              %d\n", cfg.Server.Port)
			fmt.Printf("  Max Jobs:          %d\n", cfg.Server.MaxConcurrentJobs)
			return nil
		},
	}
}

// setupLogger creates a structured logger from the logging config. The
// verbose flag forces debug level.
func setupLogger(cfg *config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// loadConfig loads the config file, applies overrides and validates.
func loadConfig(overrides func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if overrides != nil {
		overrides(cfg)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}
