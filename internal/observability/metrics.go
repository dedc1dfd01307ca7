package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters for analysis runs.
type Metrics struct {
	// Run metrics
	RunsTotal     atomic.Int64
	RunsOK        atomic.Int64
	RunsChallenge atomic.Int64
	RunsBlocked   atomic.Int64
	RunsFailed    atomic.Int64
	ActiveRuns    atomic.Int32

	// API metrics
	APIPagesFetched atomic.Int64
	APIPagesFailed  atomic.Int64
	DOMPagesScanned atomic.Int64

	// Record metrics
	RecordsAccepted atomic.Int64
	RecordsDropped  atomic.Int64
	RecordsDuped    atomic.Int64

	// Strategy metrics
	StrategyErrors atomic.Int64

	// Narrative and export metrics
	NarrativesOK     atomic.Int64
	NarrativesFailed atomic.Int64
	ExportsOK        atomic.Int64
	ExportsFailed    atomic.Int64

	mu     sync.Mutex
	yields map[string]int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		yields: make(map[string]int64),
		logger: logger.With("component", "metrics"),
	}
}

// AddYield records n records accepted from strategy for a content type.
func (m *Metrics) AddYield(content, strategy string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.mu.Lock()
	m.yields[content+"/"+strategy] += int64(n)
	m.mu.Unlock()
}

// Yields returns a copy of the per-strategy yield counters.
func (m *Metrics) Yields() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.yields))
	for k, v := range m.yields {
		out[k] = v
	}
	return out
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		kind  string
		value int64
	}{
		{"storescope_runs_total", "Total analysis runs started", "counter", m.RunsTotal.Load()},
		{"storescope_runs_ok_total", "Runs that completed with status ok", "counter", m.RunsOK.Load()},
		{"storescope_runs_challenge_total", "Runs stopped by an unresolved challenge", "counter", m.RunsChallenge.Load()},
		{"storescope_runs_blocked_total", "Runs refused by the storefront", "counter", m.RunsBlocked.Load()},
		{"storescope_runs_failed_total", "Runs whose navigation failed", "counter", m.RunsFailed.Load()},
		{"storescope_active_runs", "Currently active runs", "gauge", int64(m.ActiveRuns.Load())},
		{"storescope_api_pages_total", "Internal API pages fetched", "counter", m.APIPagesFetched.Load()},
		{"storescope_api_pages_failed_total", "Internal API pages that failed", "counter", m.APIPagesFailed.Load()},
		{"storescope_dom_pages_total", "DOM pages scanned", "counter", m.DOMPagesScanned.Load()},
		{"storescope_records_accepted_total", "Records accepted into a collection", "counter", m.RecordsAccepted.Load()},
		{"storescope_records_dropped_total", "Records dropped by the record pipeline", "counter", m.RecordsDropped.Load()},
		{"storescope_records_duplicate_total", "Records rejected as duplicates", "counter", m.RecordsDuped.Load()},
		{"storescope_strategy_errors_total", "Strategy failures absorbed by the cascade", "counter", m.StrategyErrors.Load()},
		{"storescope_narratives_ok_total", "Narrative sections generated", "counter", m.NarrativesOK.Load()},
		{"storescope_narratives_failed_total", "Narrative sections that failed", "counter", m.NarrativesFailed.Load()},
		{"storescope_exports_ok_total", "Report files written", "counter", m.ExportsOK.Load()},
		{"storescope_exports_failed_total", "Report files that failed", "counter", m.ExportsFailed.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", metric.name, metric.kind)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}

	yields := m.Yields()
	keys := make([]string, 0, len(yields))
	for k := range yields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprint(w, "# HELP storescope_strategy_yield_total Records yielded per content type and strategy\n")
	fmt.Fprint(w, "# TYPE storescope_strategy_yield_total counter\n")
	for _, k := range keys {
		content, strategy := splitYieldKey(k)
		fmt.Fprintf(w, "storescope_strategy_yield_total{content=%q,strategy=%q} %d\n", content, strategy, yields[k])
	}
}

func splitYieldKey(k string) (string, string) {
	content, strategy, _ := strings.Cut(k, "/")
	return content, strategy
}

// StartServer starts the metrics HTTP server in the background.
func (m *Metrics) StartServer(port int, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return srv
}

// Snapshot returns all counters as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"runs_total":        m.RunsTotal.Load(),
		"runs_ok":           m.RunsOK.Load(),
		"runs_challenge":    m.RunsChallenge.Load(),
		"runs_blocked":      m.RunsBlocked.Load(),
		"runs_failed":       m.RunsFailed.Load(),
		"active_runs":       int64(m.ActiveRuns.Load()),
		"api_pages":         m.APIPagesFetched.Load(),
		"api_pages_failed":  m.APIPagesFailed.Load(),
		"dom_pages":         m.DOMPagesScanned.Load(),
		"records_accepted":  m.RecordsAccepted.Load(),
		"records_dropped":   m.RecordsDropped.Load(),
		"records_duplicate": m.RecordsDuped.Load(),
		"strategy_errors":   m.StrategyErrors.Load(),
		"narratives_ok":     m.NarrativesOK.Load(),
		"narratives_failed": m.NarrativesFailed.Load(),
		"exports_ok":        m.ExportsOK.Load(),
		"exports_failed":    m.ExportsFailed.Load(),
	}
}
