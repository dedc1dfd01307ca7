// Package storescope provides a public SDK for embedding StoreScope as a
// library.
//
// Example usage:
//
//	p, err := storescope.New(ctx, storescope.WithConfigFile("storescope.yaml"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	a, err := p.Analyze(ctx, "https://www.coupang.com/vp/products/12345678", storescope.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(a.Summaries.Reviews)
package storescope

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/IshaanNene/StoreScope/internal/ai"
	"github.com/IshaanNene/StoreScope/internal/config"
	"github.com/IshaanNene/StoreScope/internal/engine"
	"github.com/IshaanNene/StoreScope/internal/extract"
	"github.com/IshaanNene/StoreScope/internal/fetcher"
	"github.com/IshaanNene/StoreScope/internal/observability"
	"github.com/IshaanNene/StoreScope/internal/report"
	"github.com/IshaanNene/StoreScope/internal/storage"
	"github.com/IshaanNene/StoreScope/internal/types"
)

// Options adjust one analysis.
type Options struct {
	// ID names the archived record. Empty derives one from the product.
	ID string

	// Sections overrides the configured analysis sections.
	Sections *config.SectionConfig

	// Providers restricts narratives to these provider labels. Empty
	// means every configured provider.
	Providers []string

	// NoReports skips rendering report files.
	NoReports bool
}

// Analysis is the outcome of one pipeline run.
type Analysis struct {
	ID         string              `json:"id"`
	Result     *types.Result       `json:"result"`
	Summaries  engine.Summaries    `json:"summaries"`
	Narratives []*types.Narratives `json:"narratives,omitempty"`
	Outputs    []report.Outcome    `json:"outputs,omitempty"`
}

// OK reports whether the storefront served the product page.
func (a *Analysis) OK() bool {
	return a != nil && a.Result != nil && a.Result.Status == types.StatusOK
}

// Paths returns the files written for the analysis.
func (a *Analysis) Paths() []string {
	var paths []string
	for _, o := range a.Outputs {
		if o.OK() {
			paths = append(paths, o.Path)
		}
	}
	return paths
}

// Pipeline runs extraction, narratives, reports and archiving.
type Pipeline struct {
	cfg        *config.Config
	cfgPath    string
	engine     *engine.Engine
	registry   *engine.Registry
	sessions   engine.SessionFactory
	generators []ai.Generator
	renderer   *report.Renderer
	store      storage.Storage
	metrics    *observability.Metrics
	sleep      fetcher.SleepFunc
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConfig uses cfg instead of loading one.
func WithConfig(cfg *config.Config) Option {
	return func(p *Pipeline) { p.cfg = cfg }
}

// WithConfigFile loads configuration from path.
func WithConfigFile(path string) Option {
	return func(p *Pipeline) { p.cfgPath = path }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithMetrics shares a metrics instance with every stage.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithSessionFactory replaces browser session creation.
func WithSessionFactory(f engine.SessionFactory) Option {
	return func(p *Pipeline) { p.sessions = f }
}

// WithRegistry replaces the built-in strategy registry.
func WithRegistry(r *engine.Registry) Option {
	return func(p *Pipeline) { p.registry = r }
}

// WithGenerators replaces the configured narrative providers.
func WithGenerators(gens ...ai.Generator) Option {
	return func(p *Pipeline) { p.generators = gens }
}

// WithStorage replaces the configured archive.
func WithStorage(s storage.Storage) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithSleep replaces the pacing sleep.
func WithSleep(fn fetcher.SleepFunc) Option {
	return func(p *Pipeline) { p.sleep = fn }
}

// New builds a pipeline. Without WithConfig the configuration is loaded
// from the WithConfigFile path or the default search paths.
func New(ctx context.Context, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if p.cfg == nil {
		cfg, err := config.Load(p.cfgPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		p.cfg = cfg
	}
	if err := config.Validate(p.cfg); err != nil {
		return nil, err
	}
	if p.metrics == nil {
		p.metrics = observability.NewMetrics(p.logger)
	}
	if p.registry == nil {
		p.registry = extract.DefaultRegistry(p.logger)
	}
	if p.sessions == nil {
		cfg, logger := p.cfg, p.logger
		var sessOpts []fetcher.SessionOption
		if pool := fetcher.NewProxyPool(&cfg.Proxy, logger); pool != nil {
			sessOpts = append(sessOpts, fetcher.WithProxyPool(pool))
		}
		p.sessions = func(ctx context.Context, platform types.Platform) (fetcher.Navigable, error) {
			sess, err := fetcher.NewSession(cfg, platform, logger, sessOpts...)
			if err != nil {
				return nil, err
			}
			return sess, nil
		}
	}
	if p.generators == nil && p.cfg.AI.Enabled {
		gens, err := ai.NewGenerators(&p.cfg.AI, p.logger)
		if err != nil {
			return nil, fmt.Errorf("create providers: %w", err)
		}
		p.generators = gens
	}
	if p.store == nil {
		store, err := storage.New(ctx, &p.cfg.Storage, p.logger)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		p.store = store
	}

	engineOpts := []engine.Option{engine.WithMetrics(p.metrics)}
	if p.sleep != nil {
		engineOpts = append(engineOpts, engine.WithSleep(p.sleep))
	}
	p.engine = engine.New(p.cfg, p.registry, p.sessions, p.logger, engineOpts...)
	p.renderer = report.NewRenderer(&p.cfg.Report, p.metrics, p.logger)
	p.logger = p.logger.With("component", "pipeline")
	return p, nil
}

// Config returns the pipeline's configuration.
func (p *Pipeline) Config() *config.Config { return p.cfg }

// Metrics returns the shared metrics.
func (p *Pipeline) Metrics() *observability.Metrics { return p.metrics }

// Providers returns the labels of the configured narrative providers.
func (p *Pipeline) Providers() []string {
	labels := make([]string, len(p.generators))
	for i, g := range p.generators {
		labels[i] = g.Label()
	}
	return labels
}

// Analyze runs the full pipeline for rawURL. Invalid URLs and browser
// failures are returned as errors. A blocked or challenged page returns
// an Analysis with that status and no narratives or reports. Narrative,
// report and archive failures never fail the analysis.
func (p *Pipeline) Analyze(ctx context.Context, rawURL string, opts Options) (*Analysis, error) {
	sections := p.cfg.AI.Sections
	if opts.Sections != nil {
		sections = *opts.Sections
	}
	gens, err := p.selectGenerators(opts.Providers)
	if err != nil {
		return nil, err
	}

	result, err := p.engine.RunScope(ctx, rawURL, engine.ScopeFor(sections))
	if err != nil {
		return nil, err
	}

	a := &Analysis{
		ID:        opts.ID,
		Result:    result,
		Summaries: engine.Summarize(result),
	}
	if a.ID == "" {
		a.ID = fmt.Sprintf("%s-%s-%d", result.Identity.Platform, result.Identity.ProductID, time.Now().UnixMilli())
	}

	if a.OK() {
		if len(gens) > 0 {
			aiCfg := p.cfg.AI
			aiCfg.Sections = sections
			a.Narratives = ai.NewRunner(&aiCfg, gens, p.metrics, p.logger).Run(ctx, result)
		}
		if !opts.NoReports {
			a.Outputs = p.renderer.Render(result, a.Narratives)
			for _, o := range report.Failed(a.Outputs) {
				p.logger.Warn("report output failed", "format", o.Format, "label", o.Label, "error", o.Err)
			}
		}
	}

	rec := storage.NewRecord(a.ID, rawURL, result, a.Narratives, a.Paths())
	if err := p.store.Store(ctx, rec); err != nil {
		p.logger.Warn("archive failed", "id", a.ID, "backend", p.store.Name(), "error", err)
	}
	return a, nil
}

func (p *Pipeline) selectGenerators(labels []string) ([]ai.Generator, error) {
	if len(labels) == 0 {
		return p.generators, nil
	}
	byLabel := make(map[string]ai.Generator, len(p.generators))
	for _, g := range p.generators {
		byLabel[g.Label()] = g
	}
	out := make([]ai.Generator, 0, len(labels))
	for _, l := range labels {
		g, ok := byLabel[l]
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", l)
		}
		out = append(out, g)
	}
	return out, nil
}

// Close releases the archive.
func (p *Pipeline) Close() error {
	return p.store.Close()
}

// Analyze runs a one-off analysis with the default configuration search
// and the given pipeline options.
func Analyze(ctx context.Context, rawURL string, opts Options, popts ...Option) (*Analysis, error) {
	p, err := New(ctx, popts...)
	if err != nil {
		return nil, err
	}
	defer p.Close()
	return p.Analyze(ctx, rawURL, opts)
}
