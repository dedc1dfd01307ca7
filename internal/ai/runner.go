package ai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/IshaanNene/StoreScope/internal/config"
	"github.com/IshaanNene/StoreScope/internal/observability"
	"github.com/IshaanNene/StoreScope/internal/types"
)

// NewGenerators builds one client per configured provider. All clients
// share one image fetcher so the download rate holds across providers.
func NewGenerators(cfg *config.AIConfig, logger *slog.Logger, opts ...ClientOption) ([]Generator, error) {
	timeout := cfg.ImageTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	images := NewImageFetcher(&http.Client{Timeout: timeout}, cfg.ImagesPerSecond, logger)

	base := []ClientOption{WithImageFetcher(images), WithMaxImages(cfg.MaxImages)}
	gens := make([]Generator, 0, len(cfg.Providers))
	seen := make(map[string]bool, len(cfg.Providers))
	for i, pc := range cfg.Providers {
		c, err := NewLLMClient(pc, logger, append(base, opts...)...)
		if err != nil {
			return nil, fmt.Errorf("provider %d (%s): %w", i, pc.Label, err)
		}
		if seen[c.Label()] {
			return nil, fmt.Errorf("provider %d: duplicate label %q", i, c.Label())
		}
		seen[c.Label()] = true
		gens = append(gens, c)
	}
	return gens, nil
}

// Runner generates narratives for every provider concurrently.
type Runner struct {
	gens     []Generator
	tokens   config.TokenConfig
	sections config.SectionConfig
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewRunner creates a runner. metrics may be nil.
func NewRunner(cfg *config.AIConfig, gens []Generator, metrics *observability.Metrics, logger *slog.Logger) *Runner {
	return &Runner{
		gens:     gens,
		tokens:   cfg.Tokens,
		sections: cfg.Sections,
		metrics:  metrics,
		logger:   logger.With("component", "narratives"),
	}
}

// Run analyzes r once per provider, one goroutine each. The result is
// only read. Output order follows provider order; section failures are
// carried in each Narratives rather than returned.
func (rn *Runner) Run(ctx context.Context, r *types.Result) []*types.Narratives {
	out := make([]*types.Narratives, len(rn.gens))
	if r == nil || len(rn.gens) == 0 {
		return out[:0]
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(rn.gens))
	for i, gen := range rn.gens {
		g.Go(func() error {
			out[i] = NewAnalyzer(gen, rn.tokens, rn.logger).Analyze(gctx, r, rn.sections)
			return nil
		})
	}
	_ = g.Wait()

	for _, n := range out {
		rn.count(n)
	}
	rn.logger.Info("narratives complete", "providers", len(out), "duration", time.Since(start))
	return out
}

func (rn *Runner) count(n *types.Narratives) {
	if rn.metrics == nil || n == nil {
		return
	}
	for _, s := range []types.Section{types.SectionStory, types.SectionReview, types.SectionQnA, types.SectionFull} {
		if n.Get(s) != "" {
			rn.metrics.NarrativesOK.Add(1)
		}
	}
	rn.metrics.NarrativesFailed.Add(int64(len(n.Errors)))
}
