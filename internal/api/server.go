// Package api exposes the analysis pipeline over HTTP as asynchronous jobs.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/IshaanNene/StoreScope/internal/config"
	"github.com/IshaanNene/StoreScope/internal/engine"
	"github.com/IshaanNene/StoreScope/internal/observability"
	"github.com/IshaanNene/StoreScope/internal/resolver"
	"github.com/IshaanNene/StoreScope/internal/types"
	"github.com/IshaanNene/StoreScope/pkg/storescope"
)

// Analyzer runs one analysis. *storescope.Pipeline implements it.
type Analyzer interface {
	Analyze(ctx context.Context, rawURL string, opts storescope.Options) (*storescope.Analysis, error)
}

// JobState is the lifecycle position of a job.
type JobState string

const (
	JobQueued  JobState = "queued"
	JobRunning JobState = "running"
	JobDone    JobState = "done"
	JobFailed  JobState = "failed"
)

// Output is one report file of a finished job.
type Output struct {
	Format string `json:"format"`
	Label  string `json:"label"`
	Path   string `json:"path,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Job tracks one analysis request.
type Job struct {
	ID         string                `json:"id"`
	URL        string                `json:"url"`
	Platform   types.Platform        `json:"platform"`
	ProductID  string                `json:"product_id"`
	State      JobState              `json:"state"`
	Sections   *config.SectionConfig `json:"sections,omitempty"`
	Providers  []string              `json:"providers,omitempty"`
	Error      string                `json:"error,omitempty"`
	Status     types.Status          `json:"status,omitempty"`
	Reviews    int                   `json:"reviews"`
	QnA        int                   `json:"qna"`
	Summaries  *engine.Summaries     `json:"summaries,omitempty"`
	Narratives []*types.Narratives   `json:"narratives,omitempty"`
	Outputs    []Output              `json:"outputs,omitempty"`
	Warnings   []string              `json:"warnings,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
	StartedAt  *time.Time            `json:"started_at,omitempty"`
	FinishedAt *time.Time            `json:"finished_at,omitempty"`

	seq int64 // submission order, breaks CreatedAt ties
}

// Server provides a REST API for submitting and tracking analyses.
type Server struct {
	router   *mux.Router
	port     int
	version  string
	analyzer Analyzer
	metrics  *observability.Metrics
	logger   *slog.Logger

	// Job tracking
	jobs   map[string]*Job
	jobsMu sync.RWMutex
	seq    atomic.Int64
	slots  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	srv    *http.Server
}

// NewServer creates a new API server. metrics may be nil.
func NewServer(cfg *config.ServerConfig, analyzer Analyzer, metrics *observability.Metrics, logger *slog.Logger) *Server {
	limit := cfg.MaxConcurrentJobs
	if limit <= 0 {
		limit = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		port:     cfg.Port,
		version:  "dev",
		analyzer: analyzer,
		metrics:  metrics,
		logger:   logger.With("component", "api_server"),
		jobs:     make(map[string]*Job),
		slots:    make(chan struct{}, limit),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.router = s.registerRoutes()
	return s
}

// SetVersion sets the version reported by the health endpoint.
func (s *Server) SetVersion(v string) { s.version = v }

// Handler returns the HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.loggingMiddleware(s.corsMiddleware(s.router))
}

// Start starts the API server in the background.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", s.srv.Addr, "max_concurrent_jobs", cap(s.slots))

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Shutdown stops accepting requests, cancels running jobs and waits for
// them to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.srv != nil {
		err = s.srv.Shutdown(ctx)
	}
	s.cancel()
	s.Wait()
	return err
}

// Wait blocks until every submitted job has finished.
func (s *Server) Wait() { s.wg.Wait() }

func (s *Server) registerRoutes() *mux.Router {
	router := mux.NewRouter()
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.jsonResponse(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	})
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.jsonResponse(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})

	// Routes live on the root router: a subrouter reports a method
	// mismatch as 404.
	const base = "/api/v1"

	// Health
	router.HandleFunc(base+"/health", s.handleHealth).Methods(http.MethodGet)

	// Jobs
	router.HandleFunc(base+"/analyze", s.handleAnalyze).Methods(http.MethodPost)
	router.HandleFunc(base+"/jobs", s.handleListJobs).Methods(http.MethodGet)
	router.HandleFunc(base+"/jobs/{id}", s.handleGetJob).Methods(http.MethodGet)

	// Stats
	if s.metrics != nil {
		router.Handle("/metrics", s.metrics).Methods(http.MethodGet)
		router.HandleFunc(base+"/stats", s.handleStats).Methods(http.MethodGet)
	}
	return router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

type analyzeRequest struct {
	URL       string                `json:"url"`
	Sections  *config.SectionConfig `json:"sections"`
	Providers []string              `json:"providers"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var body analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	identity, err := resolver.Resolve(body.URL)
	if err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	job := &Job{
		ID:        "job-" + uuid.New().String(),
		seq:       s.seq.Add(1),
		URL:       body.URL,
		Platform:  identity.Platform,
		ProductID: identity.ProductID,
		State:     JobQueued,
		Sections:  body.Sections,
		Providers: body.Providers,
		CreatedAt: time.Now(),
	}

	s.jobsMu.Lock()
	s.jobs[job.ID] = job
	view := *job
	s.jobsMu.Unlock()

	s.wg.Add(1)
	go s.run(job)

	s.logger.Info("job queued", "job", job.ID, "platform", job.Platform, "product", job.ProductID)
	s.jsonResponse(w, http.StatusAccepted, &view)
}

// run waits for a free slot, then analyzes the job's URL.
func (s *Server) run(job *Job) {
	defer s.wg.Done()

	select {
	case s.slots <- struct{}{}:
	case <-s.ctx.Done():
		s.finish(job, nil, s.ctx.Err())
		return
	}
	defer func() { <-s.slots }()

	now := time.Now()
	s.jobsMu.Lock()
	job.State = JobRunning
	job.StartedAt = &now
	opts := storescope.Options{ID: job.ID, Sections: job.Sections, Providers: job.Providers}
	s.jobsMu.Unlock()

	a, err := s.analyzer.Analyze(s.ctx, job.URL, opts)
	s.finish(job, a, err)
}

func (s *Server) finish(job *Job, a *storescope.Analysis, err error) {
	now := time.Now()
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	job.FinishedAt = &now
	if err != nil {
		job.State = JobFailed
		job.Error = err.Error()
		s.logger.Warn("job failed", "job", job.ID, "error", err)
		return
	}

	job.State = JobDone
	if a.Result != nil {
		job.Status = a.Result.Status
		job.Reviews = len(a.Result.Reviews)
		job.QnA = len(a.Result.QnA)
		job.Warnings = a.Result.Warnings
	}
	sum := a.Summaries
	job.Summaries = &sum
	job.Narratives = a.Narratives
	for _, o := range a.Outputs {
		out := Output{Format: o.Format, Label: o.Label, Path: o.Path}
		if o.Err != nil {
			out.Path = ""
			out.Error = o.Err.Error()
		}
		job.Outputs = append(job.Outputs, out)
	}
	s.logger.Info("job done", "job", job.ID, "status", job.Status, "reviews", job.Reviews, "qna", job.QnA)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	s.jobsMu.RLock()
	jobs := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, *j)
	}
	s.jobsMu.RUnlock()

	sort.Slice(jobs, func(i, k int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[k].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[k].CreatedAt)
		}
		return jobs[i].ID > jobs[k].ID
	})
	s.jsonResponse(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.jobsMu.RLock()
	job, ok := s.jobs[id]
	var view Job
	if ok {
		view = *job
	}
	s.jobsMu.RUnlock()

	if !ok {
		s.jsonResponse(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	s.jsonResponse(w, http.StatusOK, &view)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("write response failed", "error", err)
	}
}

// --- Middleware ---

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Debug("API request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
		)
	})
}

// responseWriter captures the status code written by a handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
