package storescope

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/StoreScope/internal/ai"
	"github.com/IshaanNene/StoreScope/internal/automation"
	"github.com/IshaanNene/StoreScope/internal/config"
	"github.com/IshaanNene/StoreScope/internal/engine"
	"github.com/IshaanNene/StoreScope/internal/fetcher"
	"github.com/IshaanNene/StoreScope/internal/storage"
	"github.com/IshaanNene/StoreScope/internal/types"
)

const productURL = "https://www.coupang.com/vp/products/12345678"

var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

type fakeSession struct {
	page     automation.Page
	outcome  types.NavOutcome
	launches int
}

func (f *fakeSession) Launch(ctx context.Context) error { f.launches++; return nil }
func (f *fakeSession) Navigate(ctx context.Context, url string) types.NavOutcome {
	return f.outcome
}
func (f *fakeSession) NavigateWithFallback(ctx context.Context, primary, secondary string) types.NavOutcome {
	return f.outcome
}
func (f *fakeSession) WaitForChallenge(ctx context.Context) bool { return false }
func (f *fakeSession) HTTPClient(ctx context.Context, referer string) (*fetcher.Client, error) {
	return nil, errors.New("no api client in tests")
}
func (f *fakeSession) Page() automation.Page { return f.page }
func (f *fakeSession) Close() error          { return nil }

type fakeProduct struct{}

func (fakeProduct) Name() string { return engine.StrategyEmbedded }
func (fakeProduct) Extract(ctx context.Context, run *engine.Run) (*types.ProductRecord, error) {
	return &types.ProductRecord{Title: "스테인리스 텀블러", Price: "12,900원"}, nil
}

type fakeReviews struct{}

func (fakeReviews) Name() string { return engine.StrategyEmbedded }
func (fakeReviews) Attempt(ctx context.Context, run *engine.Run, sink engine.Sink[types.ReviewRecord]) error {
	sink.Add(types.ReviewRecord{Rating: types.Float(5), Author: "kim**", Content: "보온이 오래 갑니다"})
	sink.Add(types.ReviewRecord{Rating: types.Float(3), Author: "lee**", Content: "뚜껑이 조금 뻑뻑해요"})
	return nil
}

type fakeGen struct{ label string }

func (f fakeGen) Label() string { return f.label }
func (f fakeGen) Model() string { return "fake-1" }
func (f fakeGen) Summarize(ctx context.Context, system, text string, maxTokens int) (string, error) {
	return f.label + " narrative", nil
}
func (f fakeGen) SummarizeWithImages(ctx context.Context, prompt string, urls []string, maxTokens int) (string, error) {
	return f.label + " narrative", nil
}

type memStore struct{ records []*storage.Record }

func (m *memStore) Store(ctx context.Context, rec *storage.Record) error {
	m.records = append(m.records, rec)
	return nil
}
func (m *memStore) Close() error { return nil }
func (m *memStore) Name() string { return "memory" }

type fixture struct {
	pipeline *Pipeline
	session  *fakeSession
	store    *memStore
	dir      string
}

func newFixture(t *testing.T, outcome types.NavOutcome, gens ...string) *fixture {
	t.Helper()
	page, err := automation.NewStaticPage(productURL, "<html><body><h1>상품</h1></body></html>")
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Report.OutputDir = t.TempDir()
	cfg.Report.Formats = []string{"json"}

	reg := engine.NewRegistry()
	reg.Register(types.PlatformCoupang, engine.StrategyEmbedded, engine.StrategySet{
		Product: []engine.ProductStrategy{fakeProduct{}},
		Reviews: fakeReviews{},
	})

	f := &fixture{session: &fakeSession{page: page, outcome: outcome}, store: &memStore{}, dir: cfg.Report.OutputDir}
	opts := []Option{
		WithConfig(cfg),
		WithLogger(testLogger),
		WithRegistry(reg),
		WithStorage(f.store),
		WithSleep(noSleep),
		WithSessionFactory(func(ctx context.Context, platform types.Platform) (fetcher.Navigable, error) {
			return f.session, nil
		}),
	}
	if len(gens) > 0 {
		list := make([]ai.Generator, 0, len(gens))
		for _, l := range gens {
			list = append(list, fakeGen{label: l})
		}
		opts = append(opts, WithGenerators(list...))
	}

	f.pipeline, err = New(context.Background(), opts...)
	require.NoError(t, err)
	return f
}

func TestAnalyzeFullPipeline(t *testing.T) {
	f := newFixture(t, types.NavSuccess, "openai", "claude")

	a, err := f.pipeline.Analyze(context.Background(), productURL, Options{ID: "job-1"})
	require.NoError(t, err)
	require.True(t, a.OK())

	assert.Equal(t, "job-1", a.ID)
	assert.Equal(t, "스테인리스 텀블러", a.Result.Product.Title)
	assert.Len(t, a.Result.Reviews, 2)
	assert.Contains(t, a.Summaries.Reviews, "리뷰 2건 수집")

	require.Len(t, a.Narratives, 2)
	assert.Equal(t, "openai", a.Narratives[0].Provider)
	assert.Equal(t, "claude narrative", a.Narratives[1].Story)

	require.Len(t, a.Outputs, 2)
	for _, p := range a.Paths() {
		_, err := os.Stat(p)
		assert.NoError(t, err)
	}
	assert.FileExists(t, filepath.Join(f.dir, "coupang_analysis_raw_openai.json"))

	require.Len(t, f.store.records, 1)
	rec := f.store.records[0]
	assert.Equal(t, "job-1", rec.ID)
	assert.Equal(t, types.PlatformCoupang, rec.Platform)
	assert.Len(t, rec.Outputs, 2)
}

func TestAnalyzeWithoutProviders(t *testing.T) {
	f := newFixture(t, types.NavSuccess)

	a, err := f.pipeline.Analyze(context.Background(), productURL, Options{})
	require.NoError(t, err)
	assert.Empty(t, a.Narratives)
	assert.Contains(t, a.ID, "coupang-12345678-")
	assert.FileExists(t, filepath.Join(f.dir, "coupang_analysis_raw_data.json"))
}

func TestAnalyzeProviderSelection(t *testing.T) {
	f := newFixture(t, types.NavSuccess, "openai", "claude")

	a, err := f.pipeline.Analyze(context.Background(), productURL, Options{Providers: []string{"claude"}, NoReports: true})
	require.NoError(t, err)
	require.Len(t, a.Narratives, 1)
	assert.Equal(t, "claude", a.Narratives[0].Provider)
	assert.Empty(t, a.Outputs)

	_, err = f.pipeline.Analyze(context.Background(), productURL, Options{Providers: []string{"gemini"}})
	assert.ErrorContains(t, err, `unknown provider "gemini"`)
}

func TestAnalyzeSectionOverride(t *testing.T) {
	f := newFixture(t, types.NavSuccess, "openai")

	a, err := f.pipeline.Analyze(context.Background(), productURL, Options{
		Sections:  &config.SectionConfig{Story: true},
		NoReports: true,
	})
	require.NoError(t, err)
	require.Len(t, a.Narratives, 1)
	assert.NotEmpty(t, a.Narratives[0].Story)
	assert.Empty(t, a.Narratives[0].Review)
	assert.Empty(t, a.Result.Reviews, "reviews are not collected when no review section is requested")
}

func TestAnalyzeBlockedSkipsNarratives(t *testing.T) {
	f := newFixture(t, types.NavBlocked, "openai")

	a, err := f.pipeline.Analyze(context.Background(), productURL, Options{})
	require.NoError(t, err)
	assert.False(t, a.OK())
	assert.Equal(t, types.StatusBlocked, a.Result.Status)
	assert.Empty(t, a.Narratives)
	assert.Empty(t, a.Outputs)
	require.Len(t, f.store.records, 1, "blocked runs are still archived")
}

func TestAnalyzeInvalidURL(t *testing.T) {
	f := newFixture(t, types.NavSuccess)

	_, err := f.pipeline.Analyze(context.Background(), "https://www.coupang.com/np/search?q=cup", Options{})
	assert.ErrorIs(t, err, types.ErrInvalidURL)
	assert.Zero(t, f.session.launches)
	assert.Empty(t, f.store.records)
}

func TestProviders(t *testing.T) {
	f := newFixture(t, types.NavSuccess, "a", "b")
	assert.Equal(t, []string{"a", "b"}, f.pipeline.Providers())
}
