package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/StoreScope/internal/config"
	"github.com/IshaanNene/StoreScope/internal/report"
	"github.com/IshaanNene/StoreScope/internal/resolver"
	"github.com/IshaanNene/StoreScope/internal/types"
	"github.com/IshaanNene/StoreScope/pkg/storescope"
)

var (
	outputDir   string
	formats     string
	sections    string
	providers   []string
	backends    string
	headful     bool
	noAI        bool
	noReports   bool
	metricsPort int
)

// analyzeCmd creates the "analyze" subcommand.
func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [url]",
		Short: "Analyze one Coupang or Naver Smart Store product page",
		Long: `Open the product page in a browser, collect product details, reviews and
Q&A through the extraction cascade, generate narratives with every
configured LLM provider and write the report files.

Sections:
  story   detail-page storytelling analysis (uses product images)
  review  review sentiment and rating analysis
  qna     customer question analysis
  full    combined report (implies the other three)`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyze,
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "report output directory")
	cmd.Flags().StringVarP(&formats, "format", "f", "", "comma-separated report formats: json, xlsx, docx, csv, md")
	cmd.Flags().StringVarP(&sections, "sections", "s", "", "comma-separated sections: story, review, qna, full")
	cmd.Flags().StringSliceVarP(&providers, "provider", "p", nil, "provider labels to use (default: all configured)")
	cmd.Flags().StringVar(&backends, "archive", "", "comma-separated archive backends: jsonl, mongodb")
	cmd.Flags().BoolVar(&headful, "headful", false, "show the browser window (needed to solve a CAPTCHA by hand)")
	cmd.Flags().BoolVar(&noAI, "no-ai", false, "collect data only, skip narratives")
	cmd.Flags().BoolVar(&noReports, "no-reports", false, "skip writing report files")
	cmd.Flags().IntVar(&metricsPort, "metrics-port", 0, "serve metrics on this port during the run")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	rawURL := args[0]
	if _, err := resolver.Resolve(rawURL); err != nil {
		return err
	}

	var override *config.SectionConfig
	if sections != "" {
		s, err := parseSections(sections)
		if err != nil {
			return err
		}
		override = &s
	}

	cfg, err := loadConfig(func(cfg *config.Config) {
		if outputDir != "" {
			cfg.Report.OutputDir = outputDir
		}
		if formats != "" {
			cfg.Report.Formats = splitList(formats)
		}
		if backends != "" {
			cfg.Storage.Backends = splitList(backends)
		}
		if headful {
			cfg.Browser.Headless = false
		}
		if noAI {
			cfg.AI.Enabled = false
		}
		if override != nil {
			cfg.AI.Sections = *override
		}
		if metricsPort > 0 {
			cfg.Metrics.Enabled = true
			cfg.Metrics.Port = metricsPort
		}
	})
	if err != nil {
		return err
	}
	logger := setupLogger(&cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := storescope.New(ctx, storescope.WithConfig(cfg), storescope.WithLogger(logger))
	if err != nil {
		return err
	}
	defer p.Close()

	if cfg.Metrics.Enabled {
		srv := p.Metrics().StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
		defer srv.Close()
	}

	logger.Info("starting analysis",
		"url", rawURL,
		"providers", p.Providers(),
		"formats", cfg.Report.Formats,
		"output", cfg.Report.OutputDir,
	)

	start := time.Now()
	a, err := p.Analyze(ctx, rawURL, storescope.Options{Providers: providers, NoReports: noReports})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("\n⚠️  Analysis interrupted.")
		}
		return err
	}
	printAnalysis(a, time.Since(start))
	return nil
}

// parseSections turns "story,review" into a section selection.
func parseSections(s string) (config.SectionConfig, error) {
	var sc config.SectionConfig
	for _, name := range splitList(s) {
		switch types.Section(name) {
		case types.SectionStory:
			sc.Story = true
		case types.SectionReview:
			sc.Review = true
		case types.SectionQnA:
			sc.QnA = true
		case types.SectionFull:
			sc.Full = true
		default:
			return sc, fmt.Errorf("unknown section %q (want story, review, qna or full)", name)
		}
	}
	return sc, nil
}

func printAnalysis(a *storescope.Analysis, elapsed time.Duration) {
	r := a.Result
	switch r.Status {
	case types.StatusChallenge:
		fmt.Println("\n🛑 The storefront showed a security check (CAPTCHA).")
		fmt.Println("   Re-run with --headful and solve it in the browser window,")
		fmt.Println("   or wait a while before trying again.")
		return
	case types.StatusBlocked:
		fmt.Println("\n🛑 Access was denied by the storefront.")
		fmt.Println("   Try again later, from another network, or with a proxy (proxy.enabled).")
		return
	case types.StatusFailed:
		fmt.Println("\n🛑 The product page could not be loaded.")
		fmt.Println("   Check the URL in a normal browser, then retry with -v for details.")
		return
	}

	fmt.Printf("\n✅ Analysis complete in %s\n", elapsed.Round(time.Millisecond))
	if r.Product.Title != "" {
		fmt.Printf("   Product:   %s\n", r.Product.Title)
	}
	if r.Product.Price != "" {
		fmt.Printf("   Price:     %s\n", r.Product.Price)
	}
	fmt.Printf("   Reviews:   %s\n", a.Summaries.Reviews)
	fmt.Printf("   Q&A:       %s\n", a.Summaries.QnA)
	for _, n := range a.Narratives {
		if len(n.Errors) > 0 {
			fmt.Printf("   ⚠️  %s: %d section(s) failed\n", n.Provider, len(n.Errors))
		}
	}
	for _, w := range r.Warnings {
		fmt.Printf("   ⚠️  %s\n", w)
	}

	if len(a.Outputs) > 0 {
		fmt.Println("\n   Output:")
		for _, o := range a.Outputs {
			if o.OK() {
				fmt.Printf("     %s\n", o.Path)
			} else {
				fmt.Printf("     ✗ %s/%s: %v\n", o.Format, o.Label, o.Err)
			}
		}
	}
	if failed := report.Failed(a.Outputs); len(failed) > 0 && len(failed) == len(a.Outputs) {
		fmt.Println("\n💡 No report could be written. Check report.output_dir permissions.")
	}
	if len(r.Reviews) == 0 && len(r.QnA) == 0 {
		fmt.Println("\n💡 No reviews or Q&A were collected. The page layout may have changed;")
		fmt.Println("   run with -v to see which strategies were tried.")
	}
}

// resolveCmd creates the "resolve" subcommand.
func resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve [url...]",
		Short: "Print the product identity derived from URLs without opening a browser",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			var failed int
			for _, rawURL := range args {
				id, err := resolver.Resolve(rawURL)
				if err != nil {
					fmt.Fprintf(os.Stderr, "✗ %v\n", err)
					failed++
					continue
				}
				if err := enc.Encode(id); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d URLs could not be resolved", failed, len(args))
			}
			return nil
		},
	}
}
