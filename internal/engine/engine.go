// Package engine runs the extraction cascade for one product URL: it
// resolves the URL, navigates a browser session and folds the registered
// strategies into deduplicated, capped collections.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IshaanNene/StoreScope/internal/automation"
	"github.com/IshaanNene/StoreScope/internal/config"
	"github.com/IshaanNene/StoreScope/internal/fetcher"
	"github.com/IshaanNene/StoreScope/internal/observability"
	"github.com/IshaanNene/StoreScope/internal/pipeline"
	"github.com/IshaanNene/StoreScope/internal/resolver"
	"github.com/IshaanNene/StoreScope/internal/types"
)

// SessionFactory opens a browser session for a platform. The engine
// launches and closes it.
type SessionFactory func(ctx context.Context, platform types.Platform) (fetcher.Navigable, error)

// Scope selects which content types a run collects. Product metadata is
// always collected.
type Scope struct {
	Reviews bool
	QnA     bool
}

// FullScope collects everything.
var FullScope = Scope{Reviews: true, QnA: true}

// ScopeFor derives the collection scope from the requested analysis
// sections. The full report needs every content type.
func ScopeFor(s config.SectionConfig) Scope {
	if s.Full {
		return FullScope
	}
	return Scope{Reviews: s.Review, QnA: s.QnA}
}

// Engine is the extraction orchestrator.
type Engine struct {
	cfg      *config.Config
	registry *Registry
	sessions SessionFactory
	metrics  *observability.Metrics
	sleep    fetcher.SleepFunc
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics shares a metrics instance with the engine.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithSleep replaces the pacing sleep. Tests use it to avoid waiting.
func WithSleep(fn fetcher.SleepFunc) Option {
	return func(e *Engine) { e.sleep = fn }
}

// New creates an Engine.
func New(cfg *config.Config, registry *Registry, sessions SessionFactory, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		registry: registry,
		sessions: sessions,
		logger:   logger.With("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = observability.NewMetrics(logger)
	}
	return e
}

// Metrics returns the engine's metrics.
func (e *Engine) Metrics() *observability.Metrics { return e.metrics }

// Run analyzes rawURL with the scope implied by the configured sections.
func (e *Engine) Run(ctx context.Context, rawURL string) (*types.Result, error) {
	return e.RunScope(ctx, rawURL, ScopeFor(e.cfg.AI.Sections))
}

// RunScope analyzes rawURL. An invalid URL fails before any browser is
// started. A blocked, challenged or failed navigation returns a result
// with that status, empty collections and a nil error.
func (e *Engine) RunScope(ctx context.Context, rawURL string, scope Scope) (*types.Result, error) {
	identity, err := resolver.Resolve(rawURL)
	if err != nil {
		return nil, err
	}
	pcfg := e.cfg.Platform(string(identity.Platform))
	if pcfg == nil {
		return nil, fmt.Errorf("resolve %s: %w", identity.Platform, types.ErrUnsupported)
	}

	start := time.Now()
	result := &types.Result{
		Identity:       identity,
		StartedAt:      start,
		Reviews:        []types.ReviewRecord{},
		QnA:            []types.QnAPair{},
		StrategyYields: map[string]int{},
	}
	e.metrics.RunsTotal.Add(1)
	e.metrics.ActiveRuns.Add(1)
	defer e.metrics.ActiveRuns.Add(-1)

	logger := e.logger.With("product", identity.ProductID, "platform", identity.Platform)
	logger.Info("run starting", "url", identity.CanonicalURL)

	sess, err := e.sessions(ctx, identity.Platform)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("session close failed", "error", err)
		}
	}()
	if err := sess.Launch(ctx); err != nil {
		return nil, fmt.Errorf("launch session: %w", err)
	}

	outcome := e.navigate(ctx, sess, identity)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result.Status = statusFor(outcome)
	if result.Status != types.StatusOK {
		e.countStatus(result.Status)
		result.Warnings = append(result.Warnings, (&types.NavigationError{URL: identity.CanonicalURL, Outcome: outcome}).Error())
		result.Duration = time.Since(start)
		logger.Info("run stopped at navigation", "status", result.Status)
		return result, nil
	}

	run := NewRun(identity, e.cfg, sess, NewPacer(e.sleep), e.metrics, e.logger)
	defer run.closeClient()

	doc, err := automation.Snapshot(sess.Page())
	if err != nil {
		run.Warn("snapshot page: %v", err)
	} else {
		run.SetSnapshot(doc)
	}

	plan, unknown := e.registry.Plan(identity.Platform, e.cfg.Cascade.Order)
	for _, name := range unknown {
		logger.Debug("strategy not available on platform", "strategy", name)
	}

	result.Product = CollectProduct(ctx, run, plan.Product)

	prefix := e.cfg.Cascade.FingerprintPrefix
	if scope.Reviews {
		coll := NewCollection(pcfg.MaxReviews, ReviewFingerprint(prefix), pipeline.Reviews(e.logger), e.metrics)
		Collect(ctx, run, types.ContentReviews, plan.Reviews, coll, e.cfg.Cascade.ReviewSufficiency)
		result.Reviews = coll.Freeze()
	}
	if scope.QnA {
		coll := NewCollection(pcfg.MaxQnA, QnAFingerprint(prefix), pipeline.QnA(e.logger), e.metrics)
		Collect(ctx, run, types.ContentQnA, plan.QnA, coll, e.cfg.Cascade.QnASufficiency)
		result.QnA = coll.Freeze()
	}
	// Freeze of an empty collection may hand back nil.
	if result.Reviews == nil {
		result.Reviews = []types.ReviewRecord{}
	}
	if result.QnA == nil {
		result.QnA = []types.QnAPair{}
	}

	result.StrategyYields = run.Yields()
	result.Warnings = append(result.Warnings, run.Warnings()...)
	result.Duration = time.Since(start)
	e.countStatus(result.Status)

	logger.Info("run complete",
		"reviews", len(result.Reviews),
		"qna", len(result.QnA),
		"warnings", len(result.Warnings),
		"duration", result.Duration,
	)
	return result, ctx.Err()
}

// navigate opens the product page. Naver pages go through the desktop to
// mobile fallback and, when challenged, the bounded challenge wait.
func (e *Engine) navigate(ctx context.Context, sess fetcher.Navigable, id *types.ProductIdentity) types.NavOutcome {
	if id.Platform != types.PlatformNaver {
		return sess.Navigate(ctx, id.PageURL())
	}
	outcome := sess.NavigateWithFallback(ctx, id.CanonicalURL, id.MobileURL)
	if outcome == types.NavChallenge && sess.WaitForChallenge(ctx) {
		return types.NavSuccess
	}
	return outcome
}

func statusFor(o types.NavOutcome) types.Status {
	switch o {
	case types.NavSuccess:
		return types.StatusOK
	case types.NavBlocked:
		return types.StatusBlocked
	case types.NavChallenge:
		return types.StatusChallenge
	default:
		return types.StatusFailed
	}
}

func (e *Engine) countStatus(s types.Status) {
	switch s {
	case types.StatusOK:
		e.metrics.RunsOK.Add(1)
	case types.StatusChallenge:
		e.metrics.RunsChallenge.Add(1)
	case types.StatusBlocked:
		e.metrics.RunsBlocked.Add(1)
	default:
		e.metrics.RunsFailed.Add(1)
	}
}
