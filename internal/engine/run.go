package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/StoreScope/internal/automation"
	"github.com/IshaanNene/StoreScope/internal/config"
	"github.com/IshaanNene/StoreScope/internal/fetcher"
	"github.com/IshaanNene/StoreScope/internal/observability"
	"github.com/IshaanNene/StoreScope/internal/parser"
	"github.com/IshaanNene/StoreScope/internal/types"
)

// Run is the state shared by every strategy of one analysis run. Identity,
// Config and Platform are read-only.
type Run struct {
	Identity *types.ProductIdentity
	Config   *config.Config
	Platform *config.PlatformConfig
	Session  fetcher.Navigable
	Pacer    *Pacer
	Metrics  *observability.Metrics
	Logger   *slog.Logger

	mu       sync.Mutex
	doc      *goquery.Document
	nextData map[string]any
	decoded  bool
	client   *fetcher.Client
	product  types.ProductRecord
	memo     map[string]any
	warnings []string
	yields   map[string]int
}

// NewRun creates the run state for identity.
func NewRun(identity *types.ProductIdentity, cfg *config.Config, sess fetcher.Navigable, pacer *Pacer, metrics *observability.Metrics, logger *slog.Logger) *Run {
	if pacer == nil {
		pacer = NewPacer(nil)
	}
	if metrics == nil {
		metrics = observability.NewMetrics(logger)
	}
	return &Run{
		Identity: identity,
		Config:   cfg,
		Platform: cfg.Platform(string(identity.Platform)),
		Session:  sess,
		Pacer:    pacer,
		Metrics:  metrics,
		Logger:   logger.With("product", identity.ProductID, "platform", identity.Platform),
		memo:     make(map[string]any),
		yields:   make(map[string]int),
	}
}

// Page returns the live page of the session.
func (r *Run) Page() automation.Page {
	if r.Session == nil {
		return nil
	}
	return r.Session.Page()
}

// SetSnapshot installs the document captured right after navigation.
func (r *Run) SetSnapshot(doc *goquery.Document) {
	r.mu.Lock()
	r.doc = doc
	r.decoded = false
	r.nextData = nil
	r.mu.Unlock()
}

// Snapshot returns the document captured right after navigation, or nil.
func (r *Run) Snapshot() *goquery.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc
}

// Rescan parses the current state of the live page.
func (r *Run) Rescan() (*goquery.Document, error) {
	page := r.Page()
	if page == nil {
		return nil, fmt.Errorf("rescan: %w", types.ErrNavigation)
	}
	return automation.Snapshot(page)
}

// NextData returns the decoded __NEXT_DATA__ tree of the snapshot. The
// tree is decoded once per run.
func (r *Run) NextData() (map[string]any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.decoded {
		r.decoded = true
		if r.doc != nil {
			data, err := parser.NextData(r.doc)
			if err != nil {
				r.Logger.Debug("no embedded page data", "error", err)
			}
			r.nextData = data
		}
	}
	return r.nextData, r.nextData != nil
}

// Client returns the cookie-authenticated API client, creating it from the
// session on first use.
func (r *Run) Client(ctx context.Context) (*fetcher.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		return r.client, nil
	}
	if r.Session == nil {
		return nil, fmt.Errorf("create api client: %w", types.ErrNavigation)
	}
	c, err := r.Session.HTTPClient(ctx, r.Identity.CanonicalURL)
	if err != nil {
		return nil, fmt.Errorf("create api client: %w", err)
	}
	r.client = c
	return c, nil
}

// Memo returns the value cached under key, computing it with fn on first
// use. Strategies use it to share derived data such as API tokens.
func (r *Run) Memo(key string, fn func() any) any {
	r.mu.Lock()
	if v, ok := r.memo[key]; ok {
		r.mu.Unlock()
		return v
	}
	r.mu.Unlock()

	v := fn()

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.memo[key]; ok {
		return prev
	}
	r.memo[key] = v
	return v
}

// Product returns the product record assembled so far.
func (r *Run) Product() types.ProductRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.product
}

func (r *Run) setProduct(p types.ProductRecord) {
	r.mu.Lock()
	r.product = p
	r.mu.Unlock()
}

// ExpectedReviews is the review total advertised on a Coupang product
// page, or 0 when unknown. Paging stops once it is reached.
func (r *Run) ExpectedReviews() int {
	if r.Identity.Platform != types.PlatformCoupang {
		return 0
	}
	p := r.Product()
	if p.ReviewCount == nil || *p.ReviewCount < 0 {
		return 0
	}
	return *p.ReviewCount
}

// Warn records a run-level warning.
func (r *Run) Warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.mu.Lock()
	r.warnings = append(r.warnings, msg)
	r.mu.Unlock()
}

// Warnings returns the recorded warnings in order.
func (r *Run) Warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.warnings...)
}

func (r *Run) addYield(content types.ContentType, strategy string, n int) {
	r.mu.Lock()
	r.yields[types.YieldKey(content, strategy)] += n
	r.mu.Unlock()
	r.Metrics.AddYield(string(content), strategy, n)
}

// Yields returns the records contributed per content type and strategy.
func (r *Run) Yields() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.yields))
	for k, v := range r.yields {
		out[k] = v
	}
	return out
}

// closeClient releases the API client, if one was created.
func (r *Run) closeClient() {
	r.mu.Lock()
	c := r.client
	r.client = nil
	r.mu.Unlock()
	if c != nil {
		c.Close()
	}
}
